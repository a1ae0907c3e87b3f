package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/civicworks/fixline/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is overridden by goreleaser via -ldflags "-X main.version=...".
var version = "dev"

var (
	serverURL string
	cfgFile   string
	insecure  bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fixline",
	Short: "Fixline infrastructure-report CLI",
	Long: `fixline is the command-line interface for a Fixline server.

It lets reporters submit infrastructure issues, and staff verify, assign,
and close them, from the terminal.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			viper.AddConfigPath(configDir())
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if serverURL == "" {
			serverURL = viper.GetString("server_url")
		}
		if serverURL == "" {
			serverURL = "http://localhost:8080"
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.fixline/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Fixline server URL (default http://localhost:8080)")
	rootCmd.PersistentFlags().BoolVar(&insecure, "insecure", false, "Skip TLS certificate verification (development only)")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(signupCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(rejectCmd)
	rootCmd.AddCommand(assignCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(deptCmd)
	rootCmd.AddCommand(fieldHeadsCmd)
	rootCmd.AddCommand(versionCmd)
}

// configDir is where the session token and config file live.
func configDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".fixline")
}

// newClient builds an SDK client. When authed is true the stored session
// token is required.
func newClient(authed bool) (*client.Client, error) {
	opts := []client.Option{}
	if insecure {
		opts = append(opts, client.WithInsecureSkipVerify())
	}
	if authed {
		opts = append(opts, client.WithSessionDir(configDir()))
	}
	c, err := client.New(serverURL, opts...)
	if err != nil && authed {
		return nil, fmt.Errorf("%w\n\nRun 'fixline login <email>' first", err)
	}
	return c, err
}

// promptPassword reads a password from stdin. Plain read; fine for a
// dev-facing CLI.
func promptPassword(label string) (string, error) {
	fmt.Printf("%s: ", label)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.ToLower(strings.TrimSpace(answer)) == "y"
}

// ── login / signup / whoami ──────────────────────────────────────────────────

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Log in and store the session token in ~/.fixline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := promptPassword("Password")
		if err != nil {
			return err
		}

		c, err := newClient(false)
		if err != nil {
			return err
		}
		u, err := c.Login(context.Background(), args[0], password)
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}

		if err := client.SaveSessionToken(configDir(), c.Token()); err != nil {
			return err
		}
		fmt.Printf("✓ Logged in as %s (%s)\n", u.Name, u.Role)
		return nil
	},
}

var (
	signupName string
	signupRole string
	signupDept string
)

var signupCmd = &cobra.Command{
	Use:   "signup <email>",
	Short: "Create an account and store the session token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := promptPassword("Password")
		if err != nil {
			return err
		}

		c, err := newClient(false)
		if err != nil {
			return err
		}
		u, err := c.Signup(context.Background(), args[0], password, signupName, signupRole, signupDept)
		if err != nil {
			return fmt.Errorf("signup: %w", err)
		}

		if err := client.SaveSessionToken(configDir(), c.Token()); err != nil {
			return err
		}
		fmt.Printf("✓ Account created: %s (%s)\n", u.Name, u.Role)
		return nil
	},
}

func init() {
	signupCmd.Flags().StringVar(&signupName, "name", "", "Display name")
	signupCmd.Flags().StringVar(&signupRole, "role", "", "Account role: reporter, maintainer, or field_head (default reporter)")
	signupCmd.Flags().StringVar(&signupDept, "department", "", "Department (field heads only)")
	_ = signupCmd.MarkFlagRequired("name")
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in account",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(true)
		if err != nil {
			return err
		}
		u, err := c.Me(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("ID:    %s\n", u.ID)
		fmt.Printf("Name:  %s\n", u.Name)
		fmt.Printf("Email: %s\n", u.Email)
		fmt.Printf("Role:  %s\n", u.Role)
		if u.Department != "" {
			fmt.Printf("Dept:  %s\n", u.Department)
		}
		return nil
	},
}

// ── submit ───────────────────────────────────────────────────────────────────

var (
	submitTitle       string
	submitDescription string
	submitCategory    string
	submitLocation    string
	submitImage       string
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a new infrastructure report",
	Long: `Submit files a new report, which enters the queue as "pending" until a
maintainer or field head verifies it.

Example:

  fixline submit --title "Pothole on 5th Avenue" \
      --description "Deep pothole near the crossing, damaging tyres" \
      --category road --location "5th Ave & Main St" --image pothole.jpg`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(true)
		if err != nil {
			return err
		}

		rpt, err := c.CreateReport(context.Background(), client.CreateReportRequest{
			Title:       submitTitle,
			Description: submitDescription,
			Category:    submitCategory,
			Location:    submitLocation,
			ImagePath:   submitImage,
		})
		if err != nil {
			return fmt.Errorf("submit report: %w", err)
		}

		fmt.Printf("✓ Report submitted\n\n")
		fmt.Printf("  ID:     %s\n", rpt.ID)
		fmt.Printf("  Status: %s\n", rpt.Status)
		if rpt.ImageURL != "" {
			fmt.Printf("  Image:  %s\n", rpt.ImageURL)
		}
		return nil
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitTitle, "title", "", "Report title")
	submitCmd.Flags().StringVar(&submitDescription, "description", "", "What is broken and how badly")
	submitCmd.Flags().StringVar(&submitCategory, "category", "", "Category: road, electric, water, building, or other")
	submitCmd.Flags().StringVar(&submitLocation, "location", "", "Where the issue is")
	submitCmd.Flags().StringVar(&submitImage, "image", "", "Evidence image to upload (jpg/png/webp)")

	_ = submitCmd.MarkFlagRequired("title")
	_ = submitCmd.MarkFlagRequired("description")
	_ = submitCmd.MarkFlagRequired("category")
	_ = submitCmd.MarkFlagRequired("location")
}

// ── list / show ──────────────────────────────────────────────────────────────

var (
	listStatus     string
	listCategory   string
	listDepartment string
	listSearch     string
	listSort       string
	listOrder      string
	listPage       int
	listFormat     string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List reports visible to you",
	Long: `List shows the filtered, paginated report listing. Reporters see only
their own submissions; staff see everything.

  fixline list --status verified,assigned --department road --sort created_at`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(true)
		if err != nil {
			return err
		}

		opts := client.ListOptions{
			Category:   listCategory,
			Department: listDepartment,
			Search:     listSearch,
			Sort:       listSort,
			Order:      listOrder,
			Page:       listPage,
		}
		if listStatus != "" {
			opts.Statuses = strings.Split(listStatus, ",")
		}

		page, err := c.ListReports(context.Background(), opts)
		if err != nil {
			return err
		}

		if listFormat == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(page)
		}

		printReportTable(page.Reports)
		fmt.Printf("\n%d report(s), page %d\n", page.Total, page.Page)
		return nil
	},
}

func init() {
	listCmd.Flags().StringVar(&listStatus, "status", "", "Comma-separated statuses (e.g. pending,verified)")
	listCmd.Flags().StringVar(&listCategory, "category", "", "Filter by category")
	listCmd.Flags().StringVar(&listDepartment, "department", "", "Filter by department")
	listCmd.Flags().StringVar(&listSearch, "search", "", "Search in title and description")
	listCmd.Flags().StringVar(&listSort, "sort", "", "Sort key: created_at, title, or status")
	listCmd.Flags().StringVar(&listOrder, "order", "", "Sort order: asc or desc")
	listCmd.Flags().IntVar(&listPage, "page", 1, "Page number")
	listCmd.Flags().StringVar(&listFormat, "format", "text", "Output format: text or json")
}

func printReportTable(reports []client.Report) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tCATEGORY\tSTATUS\tDEPARTMENT\tCREATED")
	for _, r := range reports {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, truncate(r.Title, 40), r.Category, r.Status, r.Department,
			r.CreatedAt.Format("2006-01-02"))
	}
	w.Flush()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

var showCmd = &cobra.Command{
	Use:   "show <report-id>",
	Short: "Show a single report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(true)
		if err != nil {
			return err
		}
		rpt, err := c.GetReport(context.Background(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("ID:          %s\n", rpt.ID)
		fmt.Printf("Title:       %s\n", rpt.Title)
		fmt.Printf("Description: %s\n", rpt.Description)
		fmt.Printf("Category:    %s\n", rpt.Category)
		fmt.Printf("Location:    %s\n", rpt.Location)
		fmt.Printf("Status:      %s\n", rpt.Status)
		if rpt.Department != "" {
			fmt.Printf("Department:  %s\n", rpt.Department)
		}
		fmt.Printf("Reporter:    %s\n", rpt.ReporterName)
		if rpt.MaintainerName != "" {
			fmt.Printf("Maintainer:  %s\n", rpt.MaintainerName)
		}
		if rpt.FieldHeadName != "" {
			fmt.Printf("Field head:  %s\n", rpt.FieldHeadName)
		}
		if rpt.ImageURL != "" {
			fmt.Printf("Image:       %s\n", rpt.ImageURL)
		}
		if rpt.ClosureImage != "" {
			fmt.Printf("Closure:     %s\n", rpt.ClosureImage)
		}
		if rpt.ScreeningScore > 0 {
			fmt.Printf("Spam score:  %d\n", rpt.ScreeningScore)
		}
		fmt.Printf("Created:     %s\n", rpt.CreatedAt.Format("2006-01-02 15:04"))
		return nil
	},
}

// ── lifecycle transitions ────────────────────────────────────────────────────

var verifyDepartment string

var verifyCmd = &cobra.Command{
	Use:   "verify <report-id>",
	Short: "Verify a pending report, binding it to a department (staff)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(true)
		if err != nil {
			return err
		}
		rpt, err := c.VerifyReport(context.Background(), args[0], "verified", verifyDepartment)
		if err != nil {
			return fmt.Errorf("verify: %w", err)
		}
		fmt.Printf("✓ Report verified → department %s\n", rpt.Department)
		return nil
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifyDepartment, "department", "", "Department to route the report to (field heads default to their own)")
}

var rejectCmd = &cobra.Command{
	Use:   "reject <report-id>",
	Short: "Mark a pending report as fake (staff)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(true)
		if err != nil {
			return err
		}
		if _, err := c.VerifyReport(context.Background(), args[0], "fake", ""); err != nil {
			return fmt.Errorf("reject: %w", err)
		}
		fmt.Println("✓ Report marked fake")
		return nil
	},
}

var assignCmd = &cobra.Command{
	Use:   "assign <report-id> <field-head-id>",
	Short: "Assign a verified report to a field head (staff)",
	Long: `Assign hands a verified report to a field head in the report's department.

Find field head IDs with 'fixline field-heads --department <dept>'.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(true)
		if err != nil {
			return err
		}
		rpt, err := c.AssignReport(context.Background(), args[0], args[1])
		if err != nil {
			return fmt.Errorf("assign: %w", err)
		}
		fmt.Printf("✓ Report assigned to %s\n", rpt.FieldHeadName)
		return nil
	},
}

var statusClosureImage string

var statusCmd = &cobra.Command{
	Use:   "status <report-id> <new-status>",
	Short: "Advance a report through its working states (staff)",
	Long: `Status moves an assigned report forward: in_progress, resolved, closed.

Resolving requires closure evidence:

  fixline status 22222222-… resolved --closure-image fixed.jpg

Only maintainers may close a resolved report.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(true)
		if err != nil {
			return err
		}
		rpt, err := c.UpdateStatus(context.Background(), args[0], args[1], statusClosureImage)
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		fmt.Printf("✓ Report is now %s\n", rpt.Status)
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusClosureImage, "closure-image", "", "Closure evidence image (required when resolving)")
}

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:   "delete <report-id>",
	Short: "Permanently delete a fake report (staff)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(true)
		if err != nil {
			return err
		}

		if !deleteForce {
			rpt, err := c.GetReport(context.Background(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("\nReport to delete:\n\n")
			fmt.Printf("  Title:  %s\n", rpt.Title)
			fmt.Printf("  Status: %s\n\n", rpt.Status)
			if !confirm("This action cannot be undone. Confirm deletion?") {
				fmt.Println("Aborted.")
				return nil
			}
		}

		if err := c.DeleteReport(context.Background(), args[0]); err != nil {
			return fmt.Errorf("delete: %w", err)
		}
		fmt.Println("✓ Report deleted")
		return nil
	},
}

func init() {
	deleteCmd.Flags().BoolVar(&deleteForce, "force", false, "Skip confirmation prompt")
}

// ── departments ──────────────────────────────────────────────────────────────

var deptCmd = &cobra.Command{
	Use:   "dept",
	Short: "Department-scoped operations (staff)",
}

var historyStatus string

var historyCmd = &cobra.Command{
	Use:   "history <department>",
	Short: "Show a department's reports and per-status counts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(true)
		if err != nil {
			return err
		}
		h, err := c.History(context.Background(), args[0], historyStatus)
		if err != nil {
			return err
		}

		printReportTable(h.Reports)
		fmt.Printf("\n%d report(s)\n\nCounts:\n", h.Total)
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, status := range []string{"verified", "assigned", "in_progress", "resolved", "closed"} {
			fmt.Fprintf(w, "  %s\t%d\n", status, h.Counts[status])
		}
		return w.Flush()
	},
}

var bulkVerifyCmd = &cobra.Command{
	Use:   "bulk-verify <department>",
	Short: "Verify every pending report whose category matches the department",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return runBulk(args[0], "verify") },
}

var bulkRejectCmd = &cobra.Command{
	Use:   "bulk-reject <department>",
	Short: "Mark every matching pending report as fake",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return runBulk(args[0], "reject") },
}

func runBulk(department, op string) error {
	c, err := newClient(true)
	if err != nil {
		return err
	}
	if !confirm(fmt.Sprintf("Bulk %s all pending %s reports?", op, department)) {
		fmt.Println("Aborted.")
		return nil
	}

	var res *client.BulkResult
	if op == "verify" {
		res, err = c.BulkVerify(context.Background(), department)
	} else {
		res, err = c.BulkReject(context.Background(), department)
	}
	if err != nil {
		return fmt.Errorf("bulk %s: %w", op, err)
	}

	fmt.Printf("✓ %d report(s) processed\n", res.Count)
	for _, f := range res.Failures {
		fmt.Printf("  skipped %s: %s\n", f.ReportID, f.Reason)
	}
	return nil
}

func init() {
	historyCmd.Flags().StringVar(&historyStatus, "status", "", "Narrow the listing to one status")

	deptCmd.AddCommand(historyCmd)
	deptCmd.AddCommand(bulkVerifyCmd)
	deptCmd.AddCommand(bulkRejectCmd)
}

// ── field-heads ──────────────────────────────────────────────────────────────

var fieldHeadsDept string

var fieldHeadsCmd = &cobra.Command{
	Use:   "field-heads",
	Short: "List field heads available for assignment (staff)",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(true)
		if err != nil {
			return err
		}
		list, err := c.ListFieldHeads(context.Background(), fieldHeadsDept)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tEMAIL\tDEPARTMENT")
		for _, fh := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", fh.ID, fh.Name, fh.Email, fh.Department)
		}
		return w.Flush()
	},
}

func init() {
	fieldHeadsCmd.Flags().StringVar(&fieldHeadsDept, "department", "", "Filter by department")
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the fixline CLI version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fixline %s\n", version)
	},
}
