package http

import (
	"errors"
	"net/http"

	"github.com/tradehall/tradehall/internal/auth/service"
	"github.com/tradehall/tradehall/pkg/httpx"
	"github.com/tradehall/tradehall/pkg/slogx"
)

// writeServiceError maps service failure kinds onto HTTP statuses. Anything
// unrecognized is an internal fault: logged with detail, surfaced without.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, service.ErrConflict):
		httpx.WriteError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, service.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, service.ErrInvalidCredentials):
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "invalid username or password")
	case errors.Is(err, service.ErrNotVerified):
		httpx.WriteError(w, http.StatusUnauthorized, "email_not_verified", "verify your email before logging in")
	case errors.Is(err, service.ErrAlreadyVerified):
		httpx.WriteError(w, http.StatusBadRequest, "already_verified", "email is already verified")
	case errors.Is(err, service.ErrCodeExpired):
		httpx.WriteError(w, http.StatusBadRequest, "code_expired", "code has expired, request a new one")
	case errors.Is(err, service.ErrCodeMismatch):
		httpx.WriteError(w, http.StatusBadRequest, "code_mismatch", "code does not match")
	case errors.Is(err, service.ErrTokenExpired):
		httpx.WriteError(w, http.StatusUnauthorized, "token_expired", "token has expired")
	case errors.Is(err, service.ErrTokenInvalid):
		httpx.WriteError(w, http.StatusUnauthorized, "token_invalid", "token is invalid")
	case errors.Is(err, service.ErrSessionRevoked):
		httpx.WriteError(w, http.StatusUnauthorized, "session_revoked", "session is no longer valid")
	default:
		slogx.FromContext(r.Context()).Error("internal error", "path", r.URL.Path, "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal server error")
	}
}
