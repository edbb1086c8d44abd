package core

import "errors"

// ErrorCode is an error label as returned by the REST API or assigned locally.
type ErrorCode string

// Labels the API returns in the error body, plus a few local ones.
const (
	ErrCodeInvalidKey        ErrorCode = "INVALID_KEY"
	ErrCodeInvalidSignature  ErrorCode = "INVALID_SIGNATURE"
	ErrCodeMissingRequired   ErrorCode = "MISSING_REQUIRED_HEADER"
	ErrCodeRequestExpired    ErrorCode = "REQUEST_EXPIRED"
	ErrCodeForbidden         ErrorCode = "FORBIDDEN"
	ErrCodeTooManyRequests   ErrorCode = "TOO_MANY_REQUESTS"
	ErrCodeInvalidParam      ErrorCode = "INVALID_PARAM_VALUE"
	ErrCodeInvalidCurrency   ErrorCode = "INVALID_CURRENCY_PAIR"
	ErrCodeBalanceNotEnough  ErrorCode = "BALANCE_NOT_ENOUGH"
	ErrCodeOrderNotFound     ErrorCode = "ORDER_NOT_FOUND"
	ErrCodeOrderClosed       ErrorCode = "ORDER_CLOSED"
	ErrCodeInvalidPrecision  ErrorCode = "INVALID_PRECISION"
	ErrCodeTooFewAmount      ErrorCode = "TOO_FEW_AMOUNT"
	ErrCodeServerError       ErrorCode = "SERVER_ERROR"
	ErrCodeInternal          ErrorCode = "INTERNAL"

	// Local codes.
	ErrCodeCircuitBreaker ErrorCode = "CIRCUIT_BREAKER_OPEN"
	ErrCodeNoCredentials  ErrorCode = "NO_CREDENTIALS"
	ErrCodeUnsupported    ErrorCode = "UNSUPPORTED_OPERATION"
)

// ErrorTypeForLabel maps an API error label to an error category.
// Unknown labels fall back to the HTTP status.
func ErrorTypeForLabel(label string, statusCode int) ErrorType {
	switch ErrorCode(label) {
	case ErrCodeInvalidKey, ErrCodeInvalidSignature, ErrCodeMissingRequired,
		ErrCodeRequestExpired, ErrCodeForbidden:
		return ErrorTypeAuthentication
	case ErrCodeTooManyRequests:
		return ErrorTypeRateLimit
	case ErrCodeBalanceNotEnough:
		return ErrorTypeInsufficientFunds
	case ErrCodeOrderNotFound:
		return ErrorTypeNotFound
	case ErrCodeOrderClosed, ErrCodeInvalidPrecision, ErrCodeTooFewAmount:
		return ErrorTypeInvalidOrder
	case ErrCodeInvalidParam, ErrCodeInvalidCurrency:
		return ErrorTypeBadRequest
	case ErrCodeServerError, ErrCodeInternal:
		return ErrorTypeServerError
	}
	return ErrorTypeForStatus(statusCode)
}

// ErrorTypeForStatus maps an HTTP status code to an error category.
func ErrorTypeForStatus(statusCode int) ErrorType {
	switch {
	case statusCode >= 500:
		return ErrorTypeServerError
	case statusCode == 429:
		return ErrorTypeRateLimit
	case statusCode == 401 || statusCode == 403:
		return ErrorTypeAuthentication
	case statusCode == 404:
		return ErrorTypeNotFound
	case statusCode >= 400:
		return ErrorTypeBadRequest
	default:
		return ErrorTypeUnknown
	}
}

// IsErrorCode checks if the error carries the given code.
func IsErrorCode(err error, code ErrorCode) bool {
	var exErr *ExchangeError
	if errors.As(err, &exErr) {
		return ErrorCode(exErr.Code) == code
	}
	return false
}
