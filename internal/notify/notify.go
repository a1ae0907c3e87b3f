// Package notify fans report lifecycle events out to email and webhooks.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civicworks/fixline/internal/email"
	"github.com/civicworks/fixline/internal/reports/model"
	"github.com/civicworks/fixline/internal/users"
	"github.com/civicworks/fixline/internal/webhooks"
)

// accountDirectory resolves user IDs to accounts, for email addresses.
type accountDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*users.User, error)
}

// dispatcher fans an event out to webhook subscribers.
type dispatcher interface {
	Dispatch(ctx context.Context, eventType string, payload map[string]string)
}

// Notifier tells reporters and webhook subscribers about report transitions.
// Delivery is best-effort and asynchronous; failures are logged, never
// surfaced to the request that caused them.
type Notifier struct {
	sender   email.Sender
	accounts accountDirectory
	hooks    dispatcher
	logger   *zap.Logger
}

// New creates a Notifier. hooks may be nil when webhooks are not configured.
func New(sender email.Sender, accounts accountDirectory, hooks dispatcher, logger *zap.Logger) *Notifier {
	return &Notifier{sender: sender, accounts: accounts, hooks: hooks, logger: logger}
}

const deliveryTimeout = 15 * time.Second

// ReportCreated announces a new submission.
func (n *Notifier) ReportCreated(rpt *model.Report) {
	n.ReportEvent(webhooks.EventReportCreated, rpt)
}

// ReportTransitioned announces a completed status change.
func (n *Notifier) ReportTransitioned(rpt *model.Report) {
	if ev := EventForStatus(rpt.Status); ev != "" {
		n.ReportEvent(ev, rpt)
	}
}

// ReportDeleted announces the removal of a fake report.
func (n *Notifier) ReportDeleted(rpt *model.Report) {
	n.ReportEvent(webhooks.EventReportDeleted, rpt)
}

// ReportEvent announces one lifecycle event for rpt. It returns immediately;
// delivery happens in the background.
func (n *Notifier) ReportEvent(eventType string, rpt *model.Report) {
	payload := eventPayload(rpt)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		defer cancel()

		if n.hooks != nil {
			n.hooks.Dispatch(ctx, eventType, payload)
		}
		n.emailInterested(ctx, eventType, rpt)
	}()
}

// emailInterested mails the people a given event concerns: the reporter for
// visible outcomes, and the field head when work lands on their desk.
func (n *Notifier) emailInterested(ctx context.Context, eventType string, rpt *model.Report) {
	subject, body, ok := reporterMessage(eventType, rpt)
	if ok {
		n.sendTo(ctx, rpt.ReporterID, subject, body)
	}

	if eventType == webhooks.EventReportAssigned && rpt.FieldHeadID != nil {
		n.sendTo(ctx, *rpt.FieldHeadID,
			fmt.Sprintf("New assignment: %s", rpt.Title),
			fmt.Sprintf("You have been assigned a %s report at %s.\n\n%s",
				rpt.Category, rpt.Location, rpt.Description),
		)
	}
}

func (n *Notifier) sendTo(ctx context.Context, userID uuid.UUID, subject, body string) {
	u, err := n.accounts.GetByID(ctx, userID)
	if err != nil {
		n.logger.Warn("notify: look up recipient",
			zap.String("user_id", userID.String()), zap.Error(err))
		return
	}
	if err := n.sender.Send(ctx, u.Email, subject, body); err != nil {
		n.logger.Warn("notify: send email",
			zap.String("to", u.Email), zap.String("subject", subject), zap.Error(err))
	}
}

// reporterMessage composes the email a reporter receives for an event.
// Not every event warrants one: in_progress churn stays internal.
func reporterMessage(eventType string, rpt *model.Report) (subject, body string, ok bool) {
	switch eventType {
	case webhooks.EventReportVerified:
		return fmt.Sprintf("Your report %q was verified", rpt.Title),
			fmt.Sprintf("Your report has been verified and routed to the %s department.", rpt.Department),
			true
	case webhooks.EventReportRejected:
		return fmt.Sprintf("Your report %q was rejected", rpt.Title),
			"Your report was reviewed and marked as not actionable.",
			true
	case webhooks.EventReportAssigned:
		return fmt.Sprintf("Your report %q was assigned", rpt.Title),
			fmt.Sprintf("Your report has been assigned to %s.", rpt.FieldHeadName),
			true
	case webhooks.EventReportResolved:
		return fmt.Sprintf("Your report %q was resolved", rpt.Title),
			"The reported issue has been fixed. Closure evidence is attached to the report.",
			true
	case webhooks.EventReportClosed:
		return fmt.Sprintf("Your report %q was closed", rpt.Title),
			"Your report has been reviewed and closed. Thank you for reporting.",
			true
	}
	return "", "", false
}

// eventPayload is the webhook payload for a report event.
func eventPayload(rpt *model.Report) map[string]string {
	p := map[string]string{
		"report_id": rpt.ID.String(),
		"title":     rpt.Title,
		"category":  string(rpt.Category),
		"status":    string(rpt.Status),
	}
	if rpt.Department != "" {
		p["department"] = string(rpt.Department)
	}
	return p
}

// EventForStatus maps a transition target to its webhook event type, or ""
// for statuses that have none.
func EventForStatus(status model.ReportStatus) string {
	switch status {
	case model.StatusVerified:
		return webhooks.EventReportVerified
	case model.StatusFake:
		return webhooks.EventReportRejected
	case model.StatusAssigned:
		return webhooks.EventReportAssigned
	case model.StatusInProgress:
		return webhooks.EventReportInProgress
	case model.StatusResolved:
		return webhooks.EventReportResolved
	case model.StatusClosed:
		return webhooks.EventReportClosed
	}
	return ""
}
