package errors

// ErrorCode represents a machine-readable error identifier for client error handling.
type ErrorCode string

// Validation Errors (request input validation)
const (
	ErrCodeMissingField  ErrorCode = "missing_field"
	ErrCodeInvalidField  ErrorCode = "invalid_field"
	ErrCodeInvalidAmount ErrorCode = "invalid_amount"
	ErrCodeInvalidPhone  ErrorCode = "invalid_phone"
	ErrCodeInvalidToken  ErrorCode = "invalid_token"
)

// Resource/State Errors
const (
	ErrCodeFoodCourtIDNotFound ErrorCode = "foodcourt_id_not_found"
	ErrCodeStoreNotFound       ErrorCode = "store_not_found"
	ErrCodeSettlementNotFound  ErrorCode = "settlement_not_found"
	ErrCodeProfileNotFound     ErrorCode = "banking_profile_not_found"
	ErrCodeResourceNotFound    ErrorCode = "resource_not_found"
)

// Escrow Errors (stored-value lifecycle)
const (
	ErrCodeInsufficientBalance ErrorCode = "insufficient_balance"
	ErrCodeAlreadyRefunded     ErrorCode = "already_refunded"
	ErrCodeNotActive           ErrorCode = "foodcourt_id_not_active"
	ErrCodeZeroBalance         ErrorCode = "zero_balance"
)

// Conflict Errors (business rule violations)
const (
	ErrCodeDuplicatePhone        ErrorCode = "duplicate_phone"
	ErrCodeDuplicateToken        ErrorCode = "duplicate_token"
	ErrCodeSettlementExists      ErrorCode = "settlement_already_created"
	ErrCodeIllegalTransition     ErrorCode = "illegal_state_transition"
	ErrCodeDuplicateSlip         ErrorCode = "duplicate_slip_reference"
	ErrCodeConcurrentUpdate      ErrorCode = "concurrent_update"
	ErrCodeReceiptNumberConflict ErrorCode = "receipt_number_conflict"
)

// External Service Errors (SCB, K Bank, Omise, Stripe)
const (
	ErrCodeGatewayError       ErrorCode = "gateway_error"
	ErrCodeGatewayTimeout     ErrorCode = "gateway_timeout"
	ErrCodeGatewayUnavailable ErrorCode = "gateway_unavailable"
	ErrCodeNetworkError       ErrorCode = "network_error"
)

// Auth / throttling
const (
	ErrCodeUnauthorized ErrorCode = "unauthorized"
	ErrCodeRateLimited  ErrorCode = "rate_limited"
)

// Internal/System Errors
const (
	ErrCodeInternalError ErrorCode = "internal_error"
	ErrCodeDatabaseError ErrorCode = "database_error"
	ErrCodeConfigError   ErrorCode = "config_error"
)

// IsRetryable returns whether an error code represents a retryable error.
// Retryable errors are transient network/service issues, not validation failures.
func (e ErrorCode) IsRetryable() bool {
	switch e {
	case ErrCodeGatewayTimeout,
		ErrCodeGatewayUnavailable,
		ErrCodeNetworkError,
		ErrCodeConcurrentUpdate,
		ErrCodeRateLimited,
		ErrCodeDatabaseError:
		return true
	default:
		return false
	}
}

// HTTPStatus returns the appropriate HTTP status code for this error.
func (e ErrorCode) HTTPStatus() int {
	switch e {
	// 400 Bad Request - validation and escrow rule failures
	case ErrCodeMissingField,
		ErrCodeInvalidField,
		ErrCodeInvalidAmount,
		ErrCodeInvalidPhone,
		ErrCodeInvalidToken,
		ErrCodeInsufficientBalance,
		ErrCodeAlreadyRefunded,
		ErrCodeNotActive,
		ErrCodeZeroBalance:
		return 400

	// 401 Unauthorized
	case ErrCodeUnauthorized:
		return 401

	// 404 Not Found
	case ErrCodeFoodCourtIDNotFound,
		ErrCodeStoreNotFound,
		ErrCodeSettlementNotFound,
		ErrCodeProfileNotFound,
		ErrCodeResourceNotFound:
		return 404

	// 409 Conflict - business rule conflicts
	case ErrCodeDuplicatePhone,
		ErrCodeDuplicateToken,
		ErrCodeSettlementExists,
		ErrCodeIllegalTransition,
		ErrCodeDuplicateSlip,
		ErrCodeConcurrentUpdate,
		ErrCodeReceiptNumberConflict:
		return 409

	// 429 Too Many Requests
	case ErrCodeRateLimited:
		return 429

	// 502 Bad Gateway - upstream rail errors
	case ErrCodeGatewayError,
		ErrCodeGatewayUnavailable,
		ErrCodeNetworkError:
		return 502

	// 504 Gateway Timeout
	case ErrCodeGatewayTimeout:
		return 504

	// 500 Internal Server Error
	default:
		return 500
	}
}
