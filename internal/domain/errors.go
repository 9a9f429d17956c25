package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrAccountNotFound    = errors.New("account_not_found")
	ErrInstrumentNotFound = errors.New("instrument_not_found")
	ErrCurrencyNotFound   = errors.New("currency_instrument_not_found")
	ErrOrderNotFound      = errors.New("order_not_found")
	ErrQuoteNotFound      = errors.New("quote_not_found")

	// ErrStorage wraps failures of the storage layer. It is the only
	// retryable error class.
	ErrStorage = errors.New("storage_unavailable")
)

// ValidationError represents a malformed request: a required field is
// missing, or mutually exclusive fields are both present.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// UnprocessableError represents a well-formed request that resolves to an
// uneconomic order, such as a non-positive price or quantity.
type UnprocessableError struct {
	Message string
}

func (e *UnprocessableError) Error() string {
	return e.Message
}

// IsRetryable reports whether err originates in the storage layer.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorage)
}
