package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tradehall/tradehall/internal/auth/domain"
	"github.com/tradehall/tradehall/internal/auth/mail"
	"github.com/tradehall/tradehall/internal/auth/store"
	"github.com/tradehall/tradehall/pkg/cryptox"
	"github.com/tradehall/tradehall/pkg/idx"
	"github.com/tradehall/tradehall/pkg/jwtx"
	"github.com/tradehall/tradehall/pkg/slogx"
)

const (
	// DefaultSessionLimit caps concurrent device sessions per user. Logging in
	// past the cap evicts the least recently used session.
	DefaultSessionLimit = 4

	// DefaultCodeTTL is how long verification and reset codes stay valid.
	DefaultCodeTTL = 15 * time.Minute

	minPasswordLength = 8
	minUsernameLength = 3
	maxUsernameLength = 32
)

// AuthService owns registration, verification, credential login, token
// refresh and the password reset flow.
type AuthService struct {
	Store  store.Store
	Mailer mail.Mailer

	AccessSigner    *jwtx.HS256Signer
	RefreshSigner   *jwtx.HS256Signer
	RefreshVerifier jwtx.Verifier

	Issuer       string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	CodeTTL      time.Duration
	SessionLimit int
}

func (s *AuthService) codeTTL() time.Duration {
	if s.CodeTTL <= 0 {
		return DefaultCodeTTL
	}
	return s.CodeTTL
}

func (s *AuthService) sessionLimit() int {
	if s.SessionLimit <= 0 {
		return DefaultSessionLimit
	}
	return s.SessionLimit
}

// Register creates an unverified account and emails a verification code.
// Duplicate username or email is always a conflict, even when the existing
// account never verified.
func (s *AuthService) Register(ctx context.Context, username, email, name, password string) (domain.User, error) {
	l := slogx.FromContext(ctx)
	now := time.Now()

	username = strings.TrimSpace(username)
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)

	if err := validateUsername(username); err != nil {
		return domain.User{}, err
	}
	if err := validateEmail(email); err != nil {
		return domain.User{}, err
	}
	if err := validatePassword(password); err != nil {
		return domain.User{}, err
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.User{}, err
	}

	code, err := cryptox.GenerateCode(cryptox.CodeLength)
	if err != nil {
		return domain.User{}, err
	}

	u := domain.User{
		ID:                 idx.New().String(),
		Username:           username,
		Email:              email,
		Name:               name,
		PasswordHash:       hash,
		VerificationCode:   &code,
		VerificationSentAt: &now,
	}

	// Insert first and let the unique constraints arbitrate races. Two
	// concurrent registrations of the same identity can both pass a
	// read-then-check, but only one insert wins.
	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, fmt.Errorf("%w: username or email already registered", ErrConflict)
		}
		return domain.User{}, err
	}

	// Delivery failure doesn't undo the account; the user can request a
	// resend.
	if err := s.sendCode(ctx, u, mail.TemplateVerification, code); err != nil {
		l.Error("verification email failed", "user_id", u.ID, "error", err)
	}

	l.Info("user registered", "user_id", u.ID, "username", u.Username)
	return u, nil
}

// Verify consumes a pending verification code, activates the account and
// logs the device in, returning the first token pair. Expiry is checked
// before the code value so an attacker can't distinguish a stale code from a
// wrong one by timing.
func (s *AuthService) Verify(ctx context.Context, email, code, deviceInfo, ipAddress string) (domain.User, *domain.TokenPair, error) {
	l := slogx.FromContext(ctx)
	now := time.Now()

	u, err := s.Store.Users().GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, nil, ErrNotFound
		}
		return domain.User{}, nil, err
	}

	if u.Verified {
		return domain.User{}, nil, ErrAlreadyVerified
	}
	if u.VerificationCode == nil || u.VerificationCodeExpired(s.codeTTL(), now) {
		return domain.User{}, nil, ErrCodeExpired
	}
	if !cryptox.CodesEqual(*u.VerificationCode, code) {
		return domain.User{}, nil, ErrCodeMismatch
	}

	if err := s.Store.Users().MarkVerified(ctx, u.ID); err != nil {
		return domain.User{}, nil, err
	}
	u.Verified = true
	u.VerificationCode = nil
	u.VerificationSentAt = nil

	pair, err := s.createUserSession(ctx, u, deviceInfo, ipAddress)
	if err != nil {
		return domain.User{}, nil, err
	}

	if err := s.Mailer.Send(ctx, mail.Message{
		To:        u.Email,
		Template:  mail.TemplateWelcome,
		Variables: map[string]string{"Name": displayName(u)},
	}); err != nil {
		l.Error("welcome email failed", "user_id", u.ID, "error", err)
	}

	l.Info("email verified", "user_id", u.ID)
	return u, pair, nil
}

// CheckVerificationCode validates a pending code without consuming it.
func (s *AuthService) CheckVerificationCode(ctx context.Context, email, code string) error {
	u, err := s.Store.Users().GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	if u.Verified {
		return ErrAlreadyVerified
	}
	if u.VerificationCode == nil || u.VerificationCodeExpired(s.codeTTL(), time.Now()) {
		return ErrCodeExpired
	}
	if !cryptox.CodesEqual(*u.VerificationCode, code) {
		return ErrCodeMismatch
	}
	return nil
}

// ResendVerification issues a fresh code, invalidating the previous one.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	now := time.Now()

	u, err := s.Store.Users().GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if u.Verified {
		return ErrAlreadyVerified
	}

	code, err := cryptox.GenerateCode(cryptox.CodeLength)
	if err != nil {
		return err
	}
	if err := s.Store.Users().SetVerificationCode(ctx, u.ID, code, now); err != nil {
		return err
	}

	return s.sendCode(ctx, u, mail.TemplateVerification, code)
}

// Login checks credentials and opens a new device session. The password is
// verified before the verification flag so an unverified response never
// confirms a correct password for free.
func (s *AuthService) Login(ctx context.Context, identifier, password, deviceInfo, ipAddress string) (domain.User, *domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	u, err := s.Store.Users().GetUserByIdentifier(ctx, strings.TrimSpace(identifier))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, nil, ErrInvalidCredentials
		}
		return domain.User{}, nil, err
	}

	if err := cryptox.VerifyPassword(password, u.PasswordHash); err != nil {
		l.Info("password verification failed", "user_id", u.ID)
		return domain.User{}, nil, ErrInvalidCredentials
	}

	if !u.Verified {
		return domain.User{}, nil, ErrNotVerified
	}

	pair, err := s.createUserSession(ctx, u, deviceInfo, ipAddress)
	if err != nil {
		return domain.User{}, nil, err
	}

	l.Info("user logged in", "user_id", u.ID)
	return u, pair, nil
}

// createUserSession opens a fresh session for the user, evicting the least
// recently used ones when the device cap would be exceeded.
func (s *AuthService) createUserSession(ctx context.Context, u domain.User, deviceInfo, ipAddress string) (*domain.TokenPair, error) {
	now := time.Now()
	sessionID := idx.New().String()

	accessToken, err := s.AccessSigner.Sign(jwtx.NewAccessClaims(u.ID, u.Email, s.Issuer, s.AccessTTL, now))
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.RefreshSigner.Sign(jwtx.NewRefreshClaims(u.ID, sessionID, s.Issuer, s.RefreshTTL, now))
	if err != nil {
		return nil, err
	}

	sess := domain.Session{
		ID:               sessionID,
		UserID:           u.ID,
		RefreshTokenHash: cryptox.FingerprintToken(refreshToken),
		DeviceInfo:       deviceInfo,
		IPAddress:        ipAddress,
		Active:           true,
		ExpiresAt:        now.Add(s.RefreshTTL),
	}

	// Trim and insert atomically so a burst of logins can't overshoot the cap.
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Sessions().DeleteOldestUserSessions(ctx, u.ID, s.sessionLimit()-1); err != nil {
			return err
		}
		return tx.Sessions().CreateSession(ctx, sess)
	})
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    s.AccessTTL,
	}, nil
}

// RefreshToken rotates a refresh token and issues a new pair. The stored
// fingerprint is swapped with a compare-and-swap, so when two requests race
// with the same token exactly one wins and the other is treated as a replay.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	l := slogx.FromContext(ctx)
	now := time.Now()

	claims, err := s.RefreshVerifier.Verify(refreshToken)
	if err != nil {
		if errors.Is(err, jwtx.ErrExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	sess, err := s.Store.Sessions().GetSessionByID(ctx, claims.SID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSessionRevoked
		}
		return nil, err
	}
	if !sess.Active {
		return nil, ErrSessionRevoked
	}
	if sess.Expired(now) {
		// Expired rows are dropped here rather than left for the sweep.
		if err := s.Store.Sessions().DeleteSession(ctx, sess.ID); err != nil {
			return nil, err
		}
		return nil, ErrSessionRevoked
	}

	// A fingerprint mismatch means this token was already rotated away.
	if sess.RefreshTokenHash != cryptox.FingerprintToken(refreshToken) {
		l.Warn("refresh token replay detected", "session_id", sess.ID, "user_id", sess.UserID)
		return nil, ErrSessionRevoked
	}

	u, err := s.Store.Users().GetUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSessionRevoked
		}
		return nil, err
	}

	accessToken, err := s.AccessSigner.Sign(jwtx.NewAccessClaims(u.ID, u.Email, s.Issuer, s.AccessTTL, now))
	if err != nil {
		return nil, err
	}
	newRefresh, err := s.RefreshSigner.Sign(jwtx.NewRefreshClaims(u.ID, sess.ID, s.Issuer, s.RefreshTTL, now))
	if err != nil {
		return nil, err
	}

	err = s.Store.Sessions().RotateRefreshToken(ctx,
		sess.ID,
		cryptox.FingerprintToken(refreshToken),
		cryptox.FingerprintToken(newRefresh),
		now.Add(s.RefreshTTL),
		now,
	)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Lost the race to a concurrent refresh.
			return nil, ErrSessionRevoked
		}
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
		TokenType:    "Bearer",
		ExpiresIn:    s.AccessTTL,
	}, nil
}

// Logout revokes the session carried by the refresh token. Idempotent: an
// already-revoked or unknown session is not an error, only a token that fails
// verification is.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.RefreshVerifier.Verify(refreshToken)
	if err != nil {
		if errors.Is(err, jwtx.ErrExpired) {
			return ErrTokenExpired
		}
		return ErrTokenInvalid
	}

	return s.Store.Sessions().DeleteSession(ctx, claims.SID)
}

// LogoutAll drops every session the user has, across all devices.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) error {
	return s.Store.Sessions().DeleteUserSessions(ctx, userID)
}

// ForgotPassword starts the reset flow. It reports success whether or not
// the email exists so the endpoint can't be used to enumerate accounts.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	l := slogx.FromContext(ctx)
	now := time.Now()

	u, err := s.Store.Users().GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			l.Info("password reset requested for unknown email")
			return nil
		}
		return err
	}

	code, err := cryptox.GenerateCode(cryptox.CodeLength)
	if err != nil {
		return err
	}
	if err := s.Store.Users().SetResetCode(ctx, u.ID, code, now); err != nil {
		return err
	}

	if err := s.sendCode(ctx, u, mail.TemplatePasswordReset, code); err != nil {
		l.Error("password reset email failed", "user_id", u.ID, "error", err)
	}
	return nil
}

// ResetPassword consumes a reset code, replaces the password and revokes
// every session in one transaction. Unknown emails report a code mismatch so
// the endpoint stays enumeration-safe.
func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	l := slogx.FromContext(ctx)
	now := time.Now()

	if err := validatePassword(newPassword); err != nil {
		return err
	}

	u, err := s.Store.Users().GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrCodeMismatch
		}
		return err
	}

	if u.ResetCode == nil || u.ResetCodeExpired(s.codeTTL(), now) {
		return ErrCodeExpired
	}
	if !cryptox.CodesEqual(*u.ResetCode, code) {
		return ErrCodeMismatch
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().UpdatePasswordHash(ctx, u.ID, hash); err != nil {
			return err
		}
		if err := tx.Users().ClearResetCode(ctx, u.ID); err != nil {
			return err
		}
		return tx.Sessions().DeleteUserSessions(ctx, u.ID)
	})
	if err != nil {
		return err
	}

	l.Info("password reset completed", "user_id", u.ID)
	return nil
}

// CheckUsernameAvailability reports whether a username is free to claim.
func (s *AuthService) CheckUsernameAvailability(ctx context.Context, username string) (bool, error) {
	username = strings.TrimSpace(username)
	if err := validateUsername(username); err != nil {
		return false, err
	}

	_, err := s.Store.Users().GetUserByIdentifier(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

// CleanupExpiredSessions removes sessions past their refresh window and
// returns how many were dropped. Safe to call repeatedly.
func (s *AuthService) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	return s.Store.Sessions().DeleteExpiredSessions(ctx, time.Now())
}

func (s *AuthService) sendCode(ctx context.Context, u domain.User, tmpl mail.Template, code string) error {
	return s.Mailer.Send(ctx, mail.Message{
		To:       u.Email,
		Template: tmpl,
		Variables: map[string]string{
			"Name":       displayName(u),
			"Code":       code,
			"TTLMinutes": strconv.Itoa(int(s.codeTTL().Minutes())),
		},
	})
}

func displayName(u domain.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateUsername(username string) error {
	if len(username) < minUsernameLength || len(username) > maxUsernameLength {
		return fmt.Errorf("%w: username must be %d-%d characters", ErrValidation, minUsernameLength, maxUsernameLength)
	}
	for _, r := range username {
		if !isUsernameRune(r) {
			return fmt.Errorf("%w: username may only contain letters, digits, '-', '_' and '.'", ErrValidation)
		}
	}
	return nil
}

func isUsernameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '-', r == '_', r == '.':
		return true
	}
	return false
}

func validateEmail(email string) error {
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 || !strings.Contains(email[at+1:], ".") {
		return fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}
	return nil
}
