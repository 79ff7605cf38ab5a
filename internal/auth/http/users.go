package http

import (
	"net/http"

	"github.com/tradehall/tradehall/internal/auth/service"
	"github.com/tradehall/tradehall/pkg/httpx"
)

type UsersHandler struct {
	UserService *service.UserService
}

// HandleGetMe returns the authenticated user's profile.
func (h *UsersHandler) HandleGetMe(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFromContext(r.Context())
	if userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "token_invalid", "missing authentication")
		return
	}

	u, err := h.UserService.GetUserByID(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(u))
}

type updateProfileRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
}

// HandleUpdateMe updates display name and/or username. Omitted fields keep
// their current values.
func (h *UsersHandler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFromContext(r.Context())
	if userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "token_invalid", "missing authentication")
		return
	}

	var req updateProfileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	u, err := h.UserService.UpdateProfile(r.Context(), userID, req.Name, req.Username)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(u))
}

// HandleDeleteMe removes the account and all its sessions.
func (h *UsersHandler) HandleDeleteMe(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFromContext(r.Context())
	if userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "token_invalid", "missing authentication")
		return
	}

	if err := h.UserService.DeleteAccount(r.Context(), userID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
