package http

import (
	"net/http"

	"github.com/tradehall/tradehall/internal/auth/service"
	"github.com/tradehall/tradehall/pkg/httpx"
)

type VerifyHandler struct {
	AuthService *service.AuthService
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// HandleVerify consumes a verification code, activates the account and logs
// the device straight in.
func (h *VerifyHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	u, pair, err := h.AuthService.Verify(r.Context(),
		req.Email, req.Code,
		r.UserAgent(), httpx.IPKeyExtractor(r),
	)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, loginResponse{
		User:   toUserResponse(u),
		Tokens: toTokenResponse(pair),
	})
}

// HandleCheck validates a pending code without consuming it, so a signup form
// can give feedback before submission.
func (h *VerifyHandler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	if err := h.AuthService.CheckVerificationCode(r.Context(), req.Email, req.Code); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, okResponse)
}

type resendRequest struct {
	Email string `json:"email"`
}

// HandleResend issues a fresh verification code, invalidating the old one.
func (h *VerifyHandler) HandleResend(w http.ResponseWriter, r *http.Request) {
	var req resendRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	if err := h.AuthService.ResendVerification(r.Context(), req.Email); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, okResponse)
}
