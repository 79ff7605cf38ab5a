package service

import "errors"

// Failure kinds the HTTP layer maps to status codes. Anything not wrapped in
// one of these is an internal fault and surfaces as a 500.
var (
	ErrConflict           = errors.New("conflict")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrNotVerified        = errors.New("email_not_verified")
	ErrAlreadyVerified    = errors.New("already_verified")
	ErrCodeExpired        = errors.New("code_expired")
	ErrCodeMismatch       = errors.New("code_mismatch")
	ErrSessionRevoked     = errors.New("session_revoked")
	ErrTokenInvalid       = errors.New("token_invalid")
	ErrTokenExpired       = errors.New("token_expired")
	ErrValidation         = errors.New("validation")
)
