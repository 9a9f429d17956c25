package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/efreitasn/minibroker/internal/domain"
)

// timeFormat renders timestamps as second-precision RFC 3339 in UTC.
const timeFormat = "2006-01-02T15:04:05Z"

var errInvalidBody = errors.New("Request body must be valid JSON with Content-Type: application/json")

// WriteJSON writes a JSON response with the given status code and data.
// Sets Content-Type to application/json before writing the status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data) // Write error intentionally ignored in response helper
}

// errorResponse is the standard error response format.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a standard error response with the given status code,
// error code, and human-readable message.
func WriteError(w http.ResponseWriter, status int, errorCode, message string) {
	WriteJSON(w, status, errorResponse{
		Error:   errorCode,
		Message: message,
	})
}

// ParseJSON decodes the request body as JSON into v.
// It validates that the Content-Type header is application/json and
// returns an error for missing/incorrect content type or malformed JSON.
func ParseJSON(r *http.Request, v any) error {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(ct, "application/json") {
		return errInvalidBody
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errInvalidBody
	}

	return nil
}

// mapError maps domain errors to HTTP responses. Not-found sentinels carry
// their own snake_case code.
func mapError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}
	var unprocessableErr *domain.UnprocessableError
	if errors.As(err, &unprocessableErr) {
		WriteError(w, http.StatusUnprocessableEntity, "unprocessable_order", unprocessableErr.Message)
		return
	}

	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		WriteError(w, http.StatusNotFound, domain.ErrAccountNotFound.Error(), "Account not found")
	case errors.Is(err, domain.ErrInstrumentNotFound):
		WriteError(w, http.StatusNotFound, domain.ErrInstrumentNotFound.Error(), "Instrument not found")
	case errors.Is(err, domain.ErrCurrencyNotFound):
		WriteError(w, http.StatusNotFound, domain.ErrCurrencyNotFound.Error(), "Settlement currency instrument not found")
	case errors.Is(err, domain.ErrOrderNotFound):
		WriteError(w, http.StatusNotFound, domain.ErrOrderNotFound.Error(), "Order not found")
	case errors.Is(err, domain.ErrQuoteNotFound):
		WriteError(w, http.StatusNotFound, domain.ErrQuoteNotFound.Error(), "No market data for instrument")
	case domain.IsRetryable(err):
		WriteError(w, http.StatusServiceUnavailable, domain.ErrStorage.Error(), "Storage is temporarily unavailable, retry later")
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
