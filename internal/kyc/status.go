package kyc

import "strings"

// Status is the KYC state mirrored from the provider.
type Status string

const (
	StatusNotStarted  Status = "not_started"
	StatusUnderReview Status = "under_review"
	StatusIncomplete  Status = "incomplete"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
	// StatusUnknown covers values this client does not recognise.
	StatusUnknown Status = "unknown"
)

// ParseStatus maps a provider string onto the closed set of statuses.
func ParseStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "not_started", "":
		return StatusNotStarted
	case "under_review", "manual_review", "pending":
		return StatusUnderReview
	case "incomplete", "awaiting_ubo":
		return StatusIncomplete
	case "approved", "active":
		return StatusApproved
	case "rejected":
		return StatusRejected
	default:
		return StatusUnknown
	}
}

// Label is a short human readable description.
func (s Status) Label() string {
	switch s {
	case StatusNotStarted:
		return "Not started"
	case StatusUnderReview:
		return "Under review"
	case StatusIncomplete:
		return "Incomplete"
	case StatusApproved:
		return "Approved"
	case StatusRejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}
