package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tradehall/tradehall/internal/auth/domain"
	"github.com/tradehall/tradehall/internal/auth/store"
	"github.com/tradehall/tradehall/pkg/slogx"
)

type UserService struct {
	Store store.Store
}

// GetUserByID fetches a user by id.
func (s *UserService) GetUserByID(ctx context.Context, userID string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrNotFound
	}
	return u, err
}

// UpdateProfile changes the display name and/or username. Empty fields keep
// their current value.
func (s *UserService) UpdateProfile(ctx context.Context, userID, name, username string) (domain.User, error) {
	u, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}

	name = strings.TrimSpace(name)
	username = strings.TrimSpace(username)
	if name == "" {
		name = u.Name
	}
	if username == "" {
		username = u.Username
	} else if err := validateUsername(username); err != nil {
		return domain.User{}, err
	}

	if err := s.Store.Users().UpdateProfile(ctx, userID, name, username); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, fmt.Errorf("%w: username already taken", ErrConflict)
		}
		return domain.User{}, err
	}

	return s.GetUserByID(ctx, userID)
}

// DeleteAccount removes the user. Sessions go with it via the FK cascade.
func (s *UserService) DeleteAccount(ctx context.Context, userID string) error {
	if err := s.Store.Users().DeleteUser(ctx, userID); err != nil {
		return err
	}
	slogx.FromContext(ctx).Info("account deleted", "user_id", userID)
	return nil
}
