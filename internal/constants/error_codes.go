package constants

const (
	// Shared REST/WS transport-agnostic errors
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeForbidden       = "FORBIDDEN"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodePayloadTooLarge = "PAYLOAD_TOO_LARGE"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeConflict        = "CONFLICT"
	ErrCodeInternal        = "INTERNAL_ERROR"

	// Dating domain errors
	ErrCodeNotVerified    = "NOT_VERIFIED"
	ErrCodeQuotaExceeded  = "QUOTA_EXCEEDED"
	ErrCodeNotMatched     = "NOT_MATCHED"
	ErrCodeMessageTooLong = "MESSAGE_TOO_LONG"
	ErrCodeSelfAction     = "SELF_ACTION"
	ErrCodeAccountBlocked = "ACCOUNT_BLOCKED"
)
