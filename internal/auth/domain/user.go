package domain

import "time"

type User struct {
	ID           string
	Username     string
	Email        string
	Name         string
	PasswordHash string // argon2 encoded

	Verified           bool
	VerificationCode   *string // 6-digit code (nullable, cleared on verify)
	VerificationSentAt *time.Time
	ResetCode          *string // 6-digit code (nullable, cleared on reset)
	ResetSentAt        *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// VerificationCodeExpired reports whether the pending verification code was
// issued more than ttl before now. A missing timestamp counts as expired.
func (u *User) VerificationCodeExpired(ttl time.Duration, now time.Time) bool {
	return u.VerificationSentAt == nil || now.Sub(*u.VerificationSentAt) > ttl
}

// ResetCodeExpired reports whether the pending password reset code was issued
// more than ttl before now.
func (u *User) ResetCodeExpired(ttl time.Duration, now time.Time) bool {
	return u.ResetSentAt == nil || now.Sub(*u.ResetSentAt) > ttl
}
