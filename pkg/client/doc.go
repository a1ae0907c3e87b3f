// Package client is the Fixline Go SDK.
//
// It wraps the Fixline HTTP API: signing up and logging in, submitting
// infrastructure reports with evidence images, and driving the report
// lifecycle (verify, assign, progress, resolve, close) — all in one coherent
// API.
//
// # Logging in
//
// Login stores the session token on the client, so subsequent calls are
// authenticated automatically:
//
//	c, err := client.New("https://fixline.example.gov")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	me, err := c.Login(ctx, "mia@example.gov", "secret")
//
// A token obtained elsewhere (a config file, an env var) can be attached
// directly:
//
//	c, _ := client.New(serverURL, client.WithBearerToken(token))
//
// # Submitting a report
//
// CreateReport uploads the evidence image from ImagePath when set:
//
//	rpt, err := c.CreateReport(ctx, client.CreateReportRequest{
//	    Title:       "Pothole on 5th Avenue",
//	    Description: "Deep pothole near the crossing, damaging tyres.",
//	    Category:    "road",
//	    Location:    "5th Ave & Main St",
//	    ImagePath:   "pothole.jpg",
//	})
//	fmt.Println(rpt.ID, rpt.Status) // <uuid> pending
//
// # Driving the lifecycle (staff)
//
// Each transition method returns the updated report:
//
//	rpt, _ = c.VerifyReport(ctx, rpt.ID, "verified", "road")
//	rpt, _ = c.AssignReport(ctx, rpt.ID, fieldHeadID)
//	rpt, _ = c.UpdateStatus(ctx, rpt.ID, "in_progress", "")
//	rpt, _ = c.UpdateStatus(ctx, rpt.ID, "resolved", "fixed.jpg")
//	rpt, _ = c.UpdateStatus(ctx, rpt.ID, "closed", "")
//
// # Error handling
//
// Non-2xx responses become *APIError carrying the HTTP status and the
// server's machine-readable reason code:
//
//	_, err := c.UpdateStatus(ctx, id, "resolved", "")
//	if client.ReasonOf(err) == "missing_evidence" {
//	    // resolving requires a closure image
//	}
//
// # Listings
//
// ListReports accepts the same filters as the web UI; reporters see only
// their own submissions:
//
//	page, err := c.ListReports(ctx, client.ListOptions{
//	    Statuses:   []string{"verified", "assigned"},
//	    Department: "road",
//	    Sort:       "created_at",
//	})
package client
