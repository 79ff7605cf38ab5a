package service

import (
	"context"
	"errors"

	"github.com/tradehall/tradehall/internal/auth/domain"
	"github.com/tradehall/tradehall/internal/auth/store"
	"github.com/tradehall/tradehall/pkg/slogx"
)

// SessionService exposes session visibility and revocation to the HTTP layer.
type SessionService struct {
	Store store.Store
}

// ListUserSessions returns the user's active device sessions, most recently
// used first.
func (s *SessionService) ListUserSessions(ctx context.Context, userID string) ([]domain.Session, error) {
	return s.Store.Sessions().ListUserSessions(ctx, userID)
}

// RevokeSession revokes one session. Only the owning user may revoke it;
// anything else reports ErrNotFound so session IDs can't be probed.
func (s *SessionService) RevokeSession(ctx context.Context, userID, sessionID string) error {
	sess, err := s.Store.Sessions().GetSessionByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if sess.UserID != userID {
		return ErrNotFound
	}

	if err := s.Store.Sessions().DeleteSession(ctx, sessionID); err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("session revoked", "user_id", userID, "session_id", sessionID)
	return nil
}

// RevokeAll drops every session for the user.
func (s *SessionService) RevokeAll(ctx context.Context, userID string) error {
	return s.Store.Sessions().DeleteUserSessions(ctx, userID)
}
