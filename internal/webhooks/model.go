package webhooks

import (
	"time"

	"github.com/google/uuid"
)

// Event types dispatched as reports move through their lifecycle.
const (
	EventReportCreated    = "report.created"
	EventReportVerified   = "report.verified"
	EventReportRejected   = "report.rejected"
	EventReportAssigned   = "report.assigned"
	EventReportInProgress = "report.in_progress"
	EventReportResolved   = "report.resolved"
	EventReportClosed     = "report.closed"
	EventReportDeleted    = "report.deleted"
)

// Subscription is a staff member's subscription to report lifecycle events.
type Subscription struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	URL       string    `json:"url"`
	Events    []string  `json:"events"`
	Secret    string    `json:"-"` // never returned in API responses
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Event is dispatched to matching subscriptions.
type Event struct {
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   map[string]string `json:"payload"`
}

// Delivery records the outcome of a single delivery attempt.
type Delivery struct {
	ID             uuid.UUID `json:"id"`
	SubscriptionID uuid.UUID `json:"subscription_id"`
	EventType      string    `json:"event_type"`
	StatusCode     int       `json:"status_code"`
	Attempt        int       `json:"attempt"`
	Success        bool      `json:"success"`
	ErrorMessage   string    `json:"error_message"`
	DeliveredAt    time.Time `json:"delivered_at"`
}

// CreateSubscriptionRequest is the payload for creating a subscription.
type CreateSubscriptionRequest struct {
	URL    string   `json:"url"    binding:"required,url"`
	Events []string `json:"events" binding:"required"`
}

// knownEvents guards subscriptions against typos in event names.
var knownEvents = map[string]bool{
	EventReportCreated:    true,
	EventReportVerified:   true,
	EventReportRejected:   true,
	EventReportAssigned:   true,
	EventReportInProgress: true,
	EventReportResolved:   true,
	EventReportClosed:     true,
	EventReportDeleted:    true,
}
