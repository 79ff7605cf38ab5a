package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tradehall/tradehall/internal/auth/domain"
	"github.com/tradehall/tradehall/internal/auth/mail"
	"github.com/tradehall/tradehall/internal/auth/store"
	"github.com/tradehall/tradehall/internal/auth/store/drivers/sqlite"
	"github.com/tradehall/tradehall/pkg/cryptox"
	"github.com/tradehall/tradehall/pkg/jwtx"
)

type fakeMailer struct {
	mu       sync.Mutex
	messages []mail.Message
}

func (m *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *fakeMailer) lastCode(to string, tmpl mail.Template) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].To == to && m.messages[i].Template == tmpl {
			return m.messages[i].Variables["Code"]
		}
	}
	return ""
}

func newTestAuthService(t *testing.T) (*AuthService, store.Store, *fakeMailer) {
	t.Helper()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	accessSigner, err := jwtx.NewSignerHS256([]byte("access-secret-at-least-32-bytes!"))
	require.NoError(t, err)
	refreshSigner, err := jwtx.NewSignerHS256([]byte("refresh-secret-at-least-32-byte!"))
	require.NoError(t, err)
	refreshVerifier := jwtx.NewVerifierHS256(
		[]byte("refresh-secret-at-least-32-byte!"), "test-issuer", jwtx.KindRefresh)

	mailer := &fakeMailer{}
	svc := &AuthService{
		Store:           st,
		Mailer:          mailer,
		AccessSigner:    accessSigner,
		RefreshSigner:   refreshSigner,
		RefreshVerifier: refreshVerifier,
		Issuer:          "test-issuer",
		AccessTTL:       30 * time.Minute,
		RefreshTTL:      7 * 24 * time.Hour,
		CodeTTL:         15 * time.Minute,
		SessionLimit:    4,
	}
	return svc, st, mailer
}

func registerAndVerify(t *testing.T, svc *AuthService, mailer *fakeMailer, username, email string) domain.User {
	t.Helper()
	ctx := context.Background()

	u, err := svc.Register(ctx, username, email, "Test User", "correct horse battery")
	require.NoError(t, err)

	code := mailer.lastCode(u.Email, mail.TemplateVerification)
	require.Len(t, code, 6)
	verified, pair, err := svc.Verify(ctx, u.Email, code, "test-device", "127.0.0.1")
	require.NoError(t, err)
	require.True(t, verified.Verified)
	require.NotEmpty(t, pair.AccessToken)

	// The verification session doesn't count against later logins in these
	// tests
	require.NoError(t, svc.Logout(ctx, pair.RefreshToken))
	return u
}

func TestRegister_DuplicateIsConflict(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "alice@example.com", "Alice", "password123")
	require.NoError(t, err)

	// Same username, different email
	_, err = svc.Register(ctx, "alice", "other@example.com", "Alice", "password123")
	require.ErrorIs(t, err, ErrConflict)

	// Same email, different username; the existing account being unverified
	// doesn't matter
	_, err = svc.Register(ctx, "alice2", "alice@example.com", "Alice", "password123")
	require.ErrorIs(t, err, ErrConflict)
}

func TestRegister_Validation(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "al", "a@example.com", "", "password123")
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Register(ctx, "alice", "not-an-email", "", "password123")
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Register(ctx, "alice", "a@example.com", "", "short")
	require.ErrorIs(t, err, ErrValidation)
}

func TestVerify_CodeChecks(t *testing.T) {
	svc, st, mailer := newTestAuthService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, "bob", "bob@example.com", "Bob", "password123")
	require.NoError(t, err)

	_, _, err = svc.Verify(ctx, u.Email, "000000", "", "")
	require.ErrorIs(t, err, ErrCodeMismatch)
	_, _, err = svc.Verify(ctx, "nobody@example.com", "000000", "", "")
	require.ErrorIs(t, err, ErrNotFound)

	// Expiry wins over value: even the right code is rejected once stale
	code := mailer.lastCode(u.Email, mail.TemplateVerification)
	require.NoError(t, st.Users().SetVerificationCode(ctx, u.ID, code, time.Now().Add(-time.Hour)))
	_, _, err = svc.Verify(ctx, u.Email, code, "", "")
	require.ErrorIs(t, err, ErrCodeExpired)
	_, _, err = svc.Verify(ctx, u.Email, "000000", "", "")
	require.ErrorIs(t, err, ErrCodeExpired)

	// Fresh code verifies and opens the first session
	require.NoError(t, svc.ResendVerification(ctx, u.Email))
	code = mailer.lastCode(u.Email, mail.TemplateVerification)
	verified, pair, err := svc.Verify(ctx, u.Email, code, "", "")
	require.NoError(t, err)
	require.True(t, verified.Verified)
	require.NotEmpty(t, pair.RefreshToken)

	// The pair from verification is usable immediately
	_, err = svc.RefreshToken(ctx, pair.RefreshToken)
	require.NoError(t, err)

	_, _, err = svc.Verify(ctx, u.Email, code, "", "")
	require.ErrorIs(t, err, ErrAlreadyVerified)
	require.ErrorIs(t, svc.ResendVerification(ctx, u.Email), ErrAlreadyVerified)
}

func TestLogin_Gates(t *testing.T) {
	svc, _, mailer := newTestAuthService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, "carol", "carol@example.com", "Carol", "password123")
	require.NoError(t, err)

	// Password is checked before the verified flag: a wrong password on an
	// unverified account must not reveal the account is unverified
	_, _, err = svc.Login(ctx, "carol", "wrong-password", "", "")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "carol", "password123", "", "")
	require.ErrorIs(t, err, ErrNotVerified)

	_, _, err = svc.Login(ctx, "ghost", "password123", "", "")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	code := mailer.lastCode(u.Email, mail.TemplateVerification)
	_, _, err = svc.Verify(ctx, u.Email, code, "", "")
	require.NoError(t, err)

	// Both username and email work as the identifier
	_, pair, err := svc.Login(ctx, "carol", "password123", "ua", "1.2.3.4")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, "Bearer", pair.TokenType)

	_, _, err = svc.Login(ctx, "carol@example.com", "password123", "ua", "1.2.3.4")
	require.NoError(t, err)
}

func TestLogin_SessionCap(t *testing.T) {
	svc, st, mailer := newTestAuthService(t)
	ctx := context.Background()

	u := registerAndVerify(t, svc, mailer, "dave", "dave@example.com")

	var pairs []*domain.TokenPair
	for i := 0; i < 6; i++ {
		_, pair, err := svc.Login(ctx, "dave", "correct horse battery", "device", "")
		require.NoError(t, err)
		pairs = append(pairs, pair)
	}

	sessions, err := st.Sessions().ListUserSessions(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 4)

	// The oldest sessions were evicted; their refresh tokens are dead
	_, err = svc.RefreshToken(ctx, pairs[0].RefreshToken)
	require.ErrorIs(t, err, ErrSessionRevoked)

	// The newest still works
	_, err = svc.RefreshToken(ctx, pairs[5].RefreshToken)
	require.NoError(t, err)
}

func TestRefreshToken_Rotation(t *testing.T) {
	svc, _, mailer := newTestAuthService(t)
	ctx := context.Background()

	registerAndVerify(t, svc, mailer, "erin", "erin@example.com")
	_, pair, err := svc.Login(ctx, "erin", "correct horse battery", "", "")
	require.NoError(t, err)

	next, err := svc.RefreshToken(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	// The replaced token is a replay now
	_, err = svc.RefreshToken(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrSessionRevoked)

	// The rotated token keeps working
	_, err = svc.RefreshToken(ctx, next.RefreshToken)
	require.NoError(t, err)
}

func TestRefreshToken_ConcurrentExactlyOneWins(t *testing.T) {
	svc, _, mailer := newTestAuthService(t)
	ctx := context.Background()

	registerAndVerify(t, svc, mailer, "frank", "frank@example.com")
	_, pair, err := svc.Login(ctx, "frank", "correct horse battery", "", "")
	require.NoError(t, err)

	const attempts = 4
	results := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RefreshToken(ctx, pair.RefreshToken)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, replays int
	for err := range results {
		switch {
		case err == nil:
			wins++
		default:
			require.ErrorIs(t, err, ErrSessionRevoked)
			replays++
		}
	}
	require.Equal(t, 1, wins)
	require.Equal(t, attempts-1, replays)
}

func TestRefreshToken_ExpiredSessionIsDeleted(t *testing.T) {
	svc, st, mailer := newTestAuthService(t)
	ctx := context.Background()

	u := registerAndVerify(t, svc, mailer, "nora", "nora@example.com")
	_, pair, err := svc.Login(ctx, "nora", "correct horse battery", "", "")
	require.NoError(t, err)

	sessions, err := st.Sessions().ListUserSessions(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	// Push the session past its expiry without touching the fingerprint
	fp := cryptox.FingerprintToken(pair.RefreshToken)
	require.NoError(t, st.Sessions().RotateRefreshToken(ctx,
		sessions[0].ID, fp, fp, time.Now().Add(-time.Minute), time.Now()))

	_, err = svc.RefreshToken(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrSessionRevoked)

	// The row is gone, not just unusable
	sessions, err = st.Sessions().ListUserSessions(ctx, u.ID)
	require.NoError(t, err)
	require.Empty(t, sessions)
}

func TestRefreshToken_Garbage(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.RefreshToken(ctx, "not-a-jwt")
	require.ErrorIs(t, err, ErrTokenInvalid)

	// An access token is the wrong kind and must not refresh
	svc2, _, mailer := newTestAuthService(t)
	registerAndVerify(t, svc2, mailer, "gina", "gina@example.com")
	_, pair, err := svc2.Login(ctx, "gina", "correct horse battery", "", "")
	require.NoError(t, err)
	_, err = svc2.RefreshToken(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestLogout(t *testing.T) {
	svc, _, mailer := newTestAuthService(t)
	ctx := context.Background()

	registerAndVerify(t, svc, mailer, "hank", "hank@example.com")
	_, pair, err := svc.Login(ctx, "hank", "correct horse battery", "", "")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, pair.RefreshToken))

	_, err = svc.RefreshToken(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrSessionRevoked)

	// Logging out twice is not an error
	require.NoError(t, svc.Logout(ctx, pair.RefreshToken))

	// A token that doesn't verify still is
	require.ErrorIs(t, svc.Logout(ctx, "not-a-jwt"), ErrTokenInvalid)
}

func TestLogoutAll(t *testing.T) {
	svc, _, mailer := newTestAuthService(t)
	ctx := context.Background()

	u := registerAndVerify(t, svc, mailer, "iris", "iris@example.com")

	var pairs []*domain.TokenPair
	for i := 0; i < 3; i++ {
		_, pair, err := svc.Login(ctx, "iris", "correct horse battery", "", "")
		require.NoError(t, err)
		pairs = append(pairs, pair)
	}

	require.NoError(t, svc.LogoutAll(ctx, u.ID))

	for _, pair := range pairs {
		_, err := svc.RefreshToken(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, ErrSessionRevoked)
	}
}

func TestPasswordReset_Flow(t *testing.T) {
	svc, _, mailer := newTestAuthService(t)
	ctx := context.Background()

	u := registerAndVerify(t, svc, mailer, "judy", "judy@example.com")
	_, pair, err := svc.Login(ctx, "judy", "correct horse battery", "", "")
	require.NoError(t, err)

	// Unknown emails succeed silently
	require.NoError(t, svc.ForgotPassword(ctx, "ghost@example.com"))

	require.NoError(t, svc.ForgotPassword(ctx, u.Email))
	code := mailer.lastCode(u.Email, mail.TemplatePasswordReset)
	require.Len(t, code, 6)

	require.ErrorIs(t, svc.ResetPassword(ctx, u.Email, "000000", "new password 1"), ErrCodeMismatch)
	require.ErrorIs(t, svc.ResetPassword(ctx, "ghost@example.com", code, "new password 1"), ErrCodeMismatch)
	require.ErrorIs(t, svc.ResetPassword(ctx, u.Email, code, "short"), ErrValidation)

	require.NoError(t, svc.ResetPassword(ctx, u.Email, code, "new password 1"))

	// Old password no longer works, new one does
	_, _, err = svc.Login(ctx, "judy", "correct horse battery", "", "")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "judy", "new password 1", "", "")
	require.NoError(t, err)

	// Every pre-reset session is revoked
	_, err = svc.RefreshToken(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrSessionRevoked)

	// The code is single-use
	require.ErrorIs(t, svc.ResetPassword(ctx, u.Email, code, "another pass 1"), ErrCodeExpired)
}

func TestPasswordReset_IndependentOfVerificationCode(t *testing.T) {
	svc, _, mailer := newTestAuthService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, "kate", "kate@example.com", "Kate", "password123")
	require.NoError(t, err)

	require.NoError(t, svc.ForgotPassword(ctx, u.Email))

	// Requesting a reset code must not clobber the pending verification code
	verifyCode := mailer.lastCode(u.Email, mail.TemplateVerification)
	_, _, err = svc.Verify(ctx, u.Email, verifyCode, "", "")
	require.NoError(t, err)
}

func TestCleanupExpiredSessions(t *testing.T) {
	svc, st, mailer := newTestAuthService(t)
	ctx := context.Background()

	u := registerAndVerify(t, svc, mailer, "liam", "liam@example.com")

	_, pair, err := svc.Login(ctx, "liam", "correct horse battery", "", "")
	require.NoError(t, err)

	// Force one session past its window
	sessions, err := st.Sessions().ListUserSessions(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.NoError(t, st.Sessions().RotateRefreshToken(ctx,
		sessions[0].ID, sessions[0].RefreshTokenHash, sessions[0].RefreshTokenHash+"x",
		time.Now().Add(-time.Minute), time.Now()))

	n, err := svc.CleanupExpiredSessions(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	// Idempotent
	n, err = svc.CleanupExpiredSessions(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 0, n)

	_, err = svc.RefreshToken(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrSessionRevoked)
}

func TestCheckUsernameAvailability(t *testing.T) {
	svc, _, mailer := newTestAuthService(t)
	ctx := context.Background()

	free, err := svc.CheckUsernameAvailability(ctx, "mallory")
	require.NoError(t, err)
	require.True(t, free)

	registerAndVerify(t, svc, mailer, "mallory", "mallory@example.com")

	free, err = svc.CheckUsernameAvailability(ctx, "mallory")
	require.NoError(t, err)
	require.False(t, free)
}
