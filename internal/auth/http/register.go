package http

import (
	"net/http"

	"github.com/tradehall/tradehall/internal/auth/service"
	"github.com/tradehall/tradehall/pkg/httpx"
)

type RegisterHandler struct {
	AuthService *service.AuthService
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// ServeHTTP creates an unverified account and emails a verification code.
func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	u, err := h.AuthService.Register(r.Context(), req.Username, req.Email, req.Name, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toUserResponse(u))
}

type UsernameAvailabilityHandler struct {
	AuthService *service.AuthService
}

// ServeHTTP reports whether a username is free to claim.
func (h *UsernameAvailabilityHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")

	available, err := h.AuthService.CheckUsernameAvailability(r.Context(), username)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"username":  username,
		"available": available,
	})
}
