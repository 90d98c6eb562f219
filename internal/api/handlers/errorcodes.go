package handlers

// API error codes returned in JSON { "error": "...", "code": "..." } for stable client handling.
// Token and account-state codes are written by auth.Middleware.
const (
	ErrCodeInvalidRequest     = "invalid_request"
	ErrCodeDuplicateIdentity  = "duplicate_identity"
	ErrCodeInvalidCredentials = "invalid_credentials"
	ErrCodeUnauthorized       = "unauthorized"
	ErrCodeNotFound           = "not_found"
	ErrCodeUnsupportedType    = "unsupported_type"
	ErrCodeDivisionByZero     = "division_by_zero"
	ErrCodeInvalidInputs      = "invalid_inputs"
	ErrCodeResultOverflow     = "result_overflow"
	ErrCodeRateLimited        = "rate_limited"
	ErrCodeInternal           = "internal_error"
)
