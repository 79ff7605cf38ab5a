package store

import (
	"context"
	"errors"
	"time"

	"github.com/tradehall/tradehall/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable.
type Store interface {
	Users() Users
	Sessions() Sessions

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// Use it for multi-step operations that must be atomic (e.g., refresh rotation).
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources (optional for sqlite).
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// CreateUser inserts a new user (id is provided by app via ULID).
	// Returns ErrAlreadyExists when the username or email is taken.
	CreateUser(ctx context.Context, u domain.User) error

	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail returns a user by email.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// GetUserByIdentifier looks up by username or email, whichever matches.
	// Used during login where clients send either.
	GetUserByIdentifier(ctx context.Context, identifier string) (domain.User, error)

	// UpdateProfile mutates name and username, bumps updated_at.
	// Returns ErrAlreadyExists when the new username is taken.
	UpdateProfile(ctx context.Context, userID, name, username string) error

	// UpdatePasswordHash sets the password_hash (argon2) and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error

	// SetVerificationCode stores a fresh verification code and its issue time.
	SetVerificationCode(ctx context.Context, userID, code string, sentAt time.Time) error

	// MarkVerified flips verified=1 and clears the pending verification code.
	MarkVerified(ctx context.Context, userID string) error

	// SetResetCode stores a fresh password reset code and its issue time.
	SetResetCode(ctx context.Context, userID, code string, sentAt time.Time) error

	// ClearResetCode removes the pending reset code without changing anything else.
	ClearResetCode(ctx context.Context, userID string) error

	// DeleteUser cascades to sessions (per schema).
	DeleteUser(ctx context.Context, userID string) error

	// CountUsers returns the total number of users.
	CountUsers(ctx context.Context) (int, error)
}

type Sessions interface {
	// CreateSession stores a new device session.
	CreateSession(ctx context.Context, s domain.Session) error

	// GetSessionByID returns a session by id.
	GetSessionByID(ctx context.Context, id string) (domain.Session, error)

	// ListUserSessions returns all active sessions for a user, newest first.
	ListUserSessions(ctx context.Context, userID string) ([]domain.Session, error)

	// RotateRefreshToken swaps the stored fingerprint in one conditional
	// UPDATE keyed on the expected old value. When the row no longer holds
	// oldHash (a concurrent rotation won, or the session was revoked) it
	// returns ErrNotFound and changes nothing.
	RotateRefreshToken(ctx context.Context, sessionID, oldHash, newHash string, expiresAt, lastAccessedAt time.Time) error

	// DeactivateSession flips active=0 so the refresh token stops working.
	DeactivateSession(ctx context.Context, sessionID string) error

	// DeleteSession removes a session row entirely.
	DeleteSession(ctx context.Context, sessionID string) error

	// DeleteUserSessions removes every session for a user (password reset, account deletion).
	DeleteUserSessions(ctx context.Context, userID string) error

	// DeleteExpiredSessions removes sessions whose expires_at has passed and
	// returns how many rows went away. Housekeeping.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	// DeleteOldestUserSessions trims a user down to at most keep sessions,
	// dropping the least recently accessed first.
	DeleteOldestUserSessions(ctx context.Context, userID string, keep int) error

	// CountUserSessions returns the number of active sessions for a user.
	CountUserSessions(ctx context.Context, userID string) (int, error)
}
