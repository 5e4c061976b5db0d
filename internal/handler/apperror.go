package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError    = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrUnknownProvider       = &AppError{http.StatusBadRequest, "UNKNOWN_PROVIDER", "Unknown webhook provider"}
	ErrMissingSignature      = &AppError{http.StatusUnauthorized, "MISSING_SIGNATURE", "Webhook signature header required"}
	ErrInvalidSignature      = &AppError{http.StatusUnauthorized, "INVALID_SIGNATURE", "Webhook signature is invalid"}
	ErrMissingIdempotencyKey = &AppError{http.StatusBadRequest, "MISSING_IDEMPOTENCY_KEY", "Idempotency-Key header is required"}

	ErrInvalidAmount        = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be greater than zero"}
	ErrInvalidCurrency      = &AppError{http.StatusBadRequest, "INVALID_CURRENCY", "Invalid currency"}
	ErrFeeExceedsAmount     = &AppError{http.StatusBadRequest, "FEE_EXCEEDS_AMOUNT", "Fee must not exceed amount"}
	ErrCurrencyMismatch     = &AppError{http.StatusUnprocessableEntity, "CURRENCY_MISMATCH", "Currency mismatch"}
	ErrAccountNotFound      = &AppError{http.StatusUnprocessableEntity, "ACCOUNT_NOT_FOUND", "Account not found"}
	ErrTransactionTerminal  = &AppError{http.StatusConflict, "TRANSACTION_TERMINAL", "Transaction already in a terminal state"}
	ErrDuplicateTransaction = &AppError{http.StatusConflict, "DUPLICATE_TRANSACTION", "Duplicate transaction"}
	ErrConfirmationInvalid  = &AppError{http.StatusUnprocessableEntity, "CONFIRMATION_INVALID", "Confirmation token invalid or expired"}
	ErrVersionConflict      = &AppError{http.StatusConflict, "VERSION_CONFLICT", "Resource was modified concurrently, please retry"}
)
