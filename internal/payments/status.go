package payments

import "strings"

// TransferStatus is the server-assigned state of a transfer.
type TransferStatus string

const (
	TransferPending    TransferStatus = "pending"
	TransferProcessing TransferStatus = "processing"
	TransferCompleted  TransferStatus = "completed"
	TransferFailed     TransferStatus = "failed"
	// TransferUnknown covers values this client does not recognise.
	TransferUnknown TransferStatus = "unknown"
)

// ParseTransferStatus maps a provider string onto the closed set.
func ParseTransferStatus(raw string) TransferStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending", "awaiting_funds", "created":
		return TransferPending
	case "processing", "in_review", "submitted", "payment_submitted", "funds_received":
		return TransferProcessing
	case "completed", "confirmed", "payment_processed", "success":
		return TransferCompleted
	case "failed", "error", "returned", "refunded", "canceled":
		return TransferFailed
	default:
		return TransferUnknown
	}
}

// Terminal reports whether no further transitions are expected.
func (s TransferStatus) Terminal() bool {
	return s == TransferCompleted || s == TransferFailed
}
