package gateway

import "github.com/coursehub/checkout/internal/models"

// Gateway payment statuses.
const (
	StatusPending           = "pending"
	StatusWaitingForCapture = "waiting_for_capture"
	StatusSucceeded         = "succeeded"
	StatusCanceled          = "canceled"
	StatusRefunded          = "refunded"
)

// MapStatus converts a gateway payment status to the internal vocabulary.
// Unknown values map to FAILED.
func MapStatus(status string) models.PaymentStatus {
	switch status {
	case StatusPending:
		return models.PaymentStatusPending
	case StatusWaitingForCapture:
		return models.PaymentStatusProcessing
	case StatusSucceeded:
		return models.PaymentStatusSucceeded
	case StatusCanceled:
		return models.PaymentStatusCancelled
	case StatusRefunded:
		return models.PaymentStatusRefunded
	default:
		return models.PaymentStatusFailed
	}
}

// MapRefundStatus converts a gateway refund status to the internal vocabulary.
func MapRefundStatus(status string) models.RefundStatus {
	switch status {
	case StatusPending:
		return models.RefundStatusPending
	case StatusSucceeded:
		return models.RefundStatusSucceeded
	case StatusCanceled:
		return models.RefundStatusCancelled
	default:
		return models.RefundStatusFailed
	}
}
