package models

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")

	ErrOrderNotFound         = errors.New("order not found")
	ErrOrderAlreadyProcessed = errors.New("order already processed")
	ErrCoursesUnavailable    = errors.New("some courses are unavailable")
	ErrInvalidTotal          = errors.New("order total must be greater than zero")

	ErrPaymentNotFound      = errors.New("payment not found")
	ErrPaymentExists        = errors.New("payment for this order already exists")
	ErrPaymentNotCancelable = errors.New("payment cannot be cancelled")
	ErrPaymentNotRefundable = errors.New("payment must be succeeded to refund")

	ErrRefundNotFound       = errors.New("refund not found")
	ErrRefundExceedsPayment = errors.New("refund amount exceeds payment amount")
	ErrInvalidAmount        = errors.New("amount must be greater than zero")

	ErrEnrollmentNotFound = errors.New("enrollment not found")
	ErrInvalidProgress    = errors.New("progress must be between 0 and 100")

	ErrWebhookEventNotFound = errors.New("webhook event not found")

	ErrForbidden = errors.New("forbidden")
)
