package core

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrorType represents the category of an exchange error.
type ErrorType int

// Error type constants categorize REST failures for callers.
const (
	// ErrorTypeUnknown indicates an unclassified error.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeNetwork indicates a network connectivity issue.
	ErrorTypeNetwork
	// ErrorTypeTimeout indicates the request exceeded its deadline.
	ErrorTypeTimeout
	// ErrorTypeRateLimit indicates rate limit was exceeded.
	ErrorTypeRateLimit
	// ErrorTypeAuthentication indicates invalid or expired credentials.
	ErrorTypeAuthentication
	// ErrorTypeBadRequest indicates invalid request parameters.
	ErrorTypeBadRequest
	// ErrorTypeNotFound indicates the requested resource does not exist.
	ErrorTypeNotFound
	// ErrorTypeServerError indicates a server-side error.
	ErrorTypeServerError
	// ErrorTypeInsufficientFunds indicates account lacks required balance.
	ErrorTypeInsufficientFunds
	// ErrorTypeInvalidOrder indicates the order violates exchange rules.
	ErrorTypeInvalidOrder
)

// String returns the string representation of the error type.
func (t ErrorType) String() string {
	return [...]string{
		"UNKNOWN",
		"NETWORK",
		"TIMEOUT",
		"RATE_LIMIT",
		"AUTHENTICATION",
		"BAD_REQUEST",
		"NOT_FOUND",
		"SERVER_ERROR",
		"INSUFFICIENT_FUNDS",
		"INVALID_ORDER",
	}[t]
}

// Sentinel errors for common error conditions.
var (
	// ErrClientClosed is returned when attempting to use a closed client.
	ErrClientClosed = errors.New("client is closed")
	// ErrNotConnected is returned when WebSocket is not connected.
	ErrNotConnected = errors.New("websocket not connected")
	// ErrCircuitBreakerOpen is returned when circuit breaker is open.
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")
	// ErrNoCredentials is returned when an authenticated call has no credentials attached.
	ErrNoCredentials = errors.New("no credentials configured")
	// ErrEmptySecret is returned when signing is attempted with an empty secret.
	ErrEmptySecret = errors.New("empty signing secret")
)

// SigningError reports a failure to compute a request signature.
// It is a configuration problem and never worth retrying.
type SigningError struct {
	Err error
}

func (e *SigningError) Error() string {
	return "sign: " + e.Err.Error()
}

func (e *SigningError) Unwrap() error {
	return e.Err
}

// APIError is the body the REST API returns alongside a non-2xx status.
type APIError struct {
	Label   string `json:"label"`
	Message string `json:"message"`
	Status  *int   `json:"status,omitempty"`
	// HTTPStatus is taken from the response, not the body.
	HTTPStatus int `json:"-"`
}

// Error formats the body together with the HTTP status code.
func (e *APIError) Error() string {
	status := "null"
	if e.Status != nil {
		status = strconv.Itoa(*e.Status)
	}
	return fmt.Sprintf("Http code: %d. Label: %q. Message: %q. Status: %q.",
		e.HTTPStatus, e.Label, e.Message, status)
}

// ExchangeError represents a structured error returned from an exchange.
// It provides detailed context for debugging and error handling.
type ExchangeError struct {
	// Type categorizes the error for programmatic handling.
	Type ErrorType `json:"type"`
	// StatusCode is the HTTP status code from the response.
	StatusCode int `json:"status_code"`
	// Code is the exchange error label, e.g. "INVALID_KEY".
	Code string `json:"code"`
	// Message is the human-readable error description.
	Message string `json:"message"`
	// RawError holds the decoded error body when one was present.
	RawError any `json:"raw_error,omitempty"`
	// Exchange identifies which exchange returned this error.
	Exchange string `json:"exchange"`
	// Timestamp is when the error occurred.
	Timestamp time.Time `json:"timestamp"`
}

// Error implements the error interface for ExchangeError.
func (e *ExchangeError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("[%s] %s (%d/%s): %s",
			e.Exchange, e.Type, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s (%d): %s",
		e.Exchange, e.Type, e.StatusCode, e.Message)
}

// Unwrap exposes RawError when it is an error, such as the decoded API body.
func (e *ExchangeError) Unwrap() error {
	if err, ok := e.RawError.(error); ok {
		return err
	}
	return nil
}

// WithCause attaches err as RawError so errors.Is and errors.As can reach it.
func (e *ExchangeError) WithCause(err error) *ExchangeError {
	e.RawError = err
	return e
}

// WithCode sets the error code and returns the same error.
func (e *ExchangeError) WithCode(code ErrorCode) *ExchangeError {
	e.Code = string(code)
	return e
}

// NewExchangeError creates a new ExchangeError with the specified details.
func NewExchangeError(exchange string, errorType ErrorType, statusCode int, message string) *ExchangeError {
	return &ExchangeError{
		Type:       errorType,
		StatusCode: statusCode,
		Message:    message,
		Exchange:   exchange,
		Timestamp:  time.Now(),
	}
}

// NewAPIExchangeError wraps a decoded API error body. The label becomes the error code.
func NewAPIExchangeError(exchange string, errorType ErrorType, apiErr *APIError) *ExchangeError {
	return &ExchangeError{
		Type:       errorType,
		StatusCode: apiErr.HTTPStatus,
		Code:       apiErr.Label,
		Message:    apiErr.Message,
		RawError:   apiErr,
		Exchange:   exchange,
		Timestamp:  time.Now(),
	}
}

// AsAPIError returns the API error body carried by err, if any.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func errorTypeOf(err error) (ErrorType, bool) {
	var e *ExchangeError
	if errors.As(err, &e) {
		return e.Type, true
	}
	return ErrorTypeUnknown, false
}

// IsNetworkError returns true if the error is a network connectivity issue.
func IsNetworkError(err error) bool {
	t, ok := errorTypeOf(err)
	return ok && t == ErrorTypeNetwork
}

// IsTimeoutError returns true if the error is a timeout.
func IsTimeoutError(err error) bool {
	t, ok := errorTypeOf(err)
	return ok && t == ErrorTypeTimeout
}

// IsRateLimitError returns true if the error is a rate limit violation.
func IsRateLimitError(err error) bool {
	t, ok := errorTypeOf(err)
	return ok && t == ErrorTypeRateLimit
}

// IsAuthenticationError returns true if the error is an authentication failure.
// Missing credentials count as an authentication failure.
func IsAuthenticationError(err error) bool {
	if errors.Is(err, ErrNoCredentials) {
		return true
	}
	t, ok := errorTypeOf(err)
	return ok && t == ErrorTypeAuthentication
}

// IsTerminalError returns true if the error will not succeed on a repeat call.
func IsTerminalError(err error) bool {
	t, ok := errorTypeOf(err)
	if !ok {
		return false
	}
	return t == ErrorTypeInsufficientFunds ||
		t == ErrorTypeInvalidOrder ||
		t == ErrorTypeNotFound
}
