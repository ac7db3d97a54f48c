package stripe

import "strings"

type Status string

const (
	StatusNone     Status = "none"
	StatusActive   Status = "active"
	StatusTrialing Status = "trialing"
	StatusPastDue  Status = "past_due"
	StatusUnpaid   Status = "unpaid"
	StatusCanceled Status = "canceled"
)

// NormalizeStatus folds Stripe subscription statuses into the handful the
// gatekeeper distinguishes. Unrecognized values are kept verbatim.
func NormalizeStatus(s string) Status {
	switch strings.TrimSpace(s) {
	case "":
		return StatusNone
	case "active":
		return StatusActive
	case "trialing":
		return StatusTrialing
	case "past_due":
		return StatusPastDue
	case "unpaid":
		return StatusUnpaid
	case "canceled", "incomplete_expired":
		return StatusCanceled
	default:
		return Status(strings.TrimSpace(s))
	}
}

// KeepsAccess reports whether a subscription in this state still entitles the
// customer until its current period ends. Past-due subscriptions keep access
// while Stripe retries the charge; unpaid ones do not, Stripe has stopped
// retrying.
func (s Status) KeepsAccess() bool {
	switch s {
	case StatusActive, StatusTrialing, StatusPastDue, StatusCanceled:
		return true
	default:
		return false
	}
}
