package domain

import "time"

// Session models one authenticated device. Each login creates a new session;
// refreshing rotates the stored token fingerprint in place so the session ID
// stays stable across rotations.
type Session struct {
	ID               string
	UserID           string
	RefreshTokenHash string // deterministic fingerprint (base64url SHA-256)
	DeviceInfo       string
	IPAddress        string
	Active           bool
	ExpiresAt        time.Time
	CreatedAt        time.Time
	LastAccessedAt   time.Time
}

// Expired reports whether the session's refresh window has passed.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
