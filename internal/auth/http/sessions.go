package http

import (
	"net/http"

	"github.com/tradehall/tradehall/internal/auth/service"
	"github.com/tradehall/tradehall/pkg/httpx"
)

type SessionsHandler struct {
	SessionService *service.SessionService
}

// HandleList returns the user's active device sessions, most recent first.
func (h *SessionsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFromContext(r.Context())
	if userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "token_invalid", "missing authentication")
		return
	}

	sessions, err := h.SessionService.ListUserSessions(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toSessionResponse(s))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

// HandleRevoke revokes one of the user's own sessions by id.
func (h *SessionsHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFromContext(r.Context())
	if userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "token_invalid", "missing authentication")
		return
	}

	sessionID := r.PathValue("id")
	if err := h.SessionService.RevokeSession(r.Context(), userID, sessionID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
