package model

import "errors"

// Reason is the machine-readable code attached to every denial or failure
// the engine produces. The presentation layer maps reasons to user-facing
// messages; nothing is ever swallowed silently.
type Reason string

const (
	// ReasonValidation — malformed or missing input; the caller can correct
	// and retry.
	ReasonValidation Reason = "validation_error"
	// ReasonForbidden — the actor lacks role or department authority.
	ReasonForbidden Reason = "forbidden"
	// ReasonIllegalTransition — the requested status is not the permitted
	// successor of the current status.
	ReasonIllegalTransition Reason = "illegal_transition"
	// ReasonNoOp — the requested status equals the current status.
	ReasonNoOp Reason = "no_op"
	// ReasonMissingEvidence — resolve requested without a closure image.
	ReasonMissingEvidence Reason = "missing_evidence"
	// ReasonInvalidAssignee — the assignment target is not a field head of
	// the report's department.
	ReasonInvalidAssignee Reason = "invalid_assignee"
	// ReasonNotDeletable — delete requested on a report that is not fake.
	ReasonNotDeletable Reason = "not_deletable"
	// ReasonNotFound — no report with the given identifier.
	ReasonNotFound Reason = "not_found"
	// ReasonConflict — the optimistic concurrency check lost a race; safe to
	// retry once after re-reading.
	ReasonConflict Reason = "conflict"
	// ReasonStoreUnavailable — the report store timed out or is unreachable.
	// Retried by the caller with backoff, never by the engine.
	ReasonStoreUnavailable Reason = "store_unavailable"
)

// Error is the typed failure returned by the policy, the engine, and the
// router. Reason is stable; Msg is human-oriented detail.
type Error struct {
	Reason Reason
	Msg    string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return string(e.Reason)
	}
	return string(e.Reason) + ": " + e.Msg
}

// NewError builds a typed failure with the given reason code.
func NewError(reason Reason, msg string) *Error {
	return &Error{Reason: reason, Msg: msg}
}

// ReasonOf extracts the reason code from err, or empty when err is not a
// typed engine failure.
func ReasonOf(err error) Reason {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// IsReason reports whether err carries the given reason code.
func IsReason(err error, reason Reason) bool {
	return ReasonOf(err) == reason
}
