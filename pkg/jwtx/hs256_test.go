package jwtx_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"github.com/tradehall/tradehall/pkg/jwtx"
)

const testIssuer = "tradehall-auth"

var (
	accessSecret  = []byte("access-secret-0123456789abcdef-0123456789")
	refreshSecret = []byte("refresh-secret-0123456789abcdef-012345678")
)

func TestHS256SignAndVerifyAccess(t *testing.T) {
	signer, err := jwtx.NewSignerHS256(accessSecret)
	require.NoError(t, err)
	require.Equal(t, "HS256", signer.Alg())

	now := time.Now().UTC()
	claims := jwtx.NewAccessClaims("user-123", "a@x.com", testIssuer, 5*time.Minute, now)

	token, err := signer.Sign(claims)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	verifier := jwtx.NewVerifierHS256(accessSecret, testIssuer, jwtx.KindAccess)
	parsed, err := verifier.Verify(token)
	require.NoError(t, err)

	require.Equal(t, "user-123", parsed.Subject)
	require.Equal(t, "a@x.com", parsed.Email)
	require.Equal(t, jwtx.KindAccess, parsed.Kind)
	require.Equal(t, testIssuer, parsed.Issuer)
	require.NotEmpty(t, parsed.ID) // jti
}

func TestHS256RefreshCarriesSessionID(t *testing.T) {
	signer, err := jwtx.NewSignerHS256(refreshSecret)
	require.NoError(t, err)

	now := time.Now().UTC()
	claims := jwtx.NewRefreshClaims("user-123", "session-abc", testIssuer, time.Hour, now)

	token, err := signer.Sign(claims)
	require.NoError(t, err)

	verifier := jwtx.NewVerifierHS256(refreshSecret, testIssuer, jwtx.KindRefresh)
	parsed, err := verifier.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "session-abc", parsed.SID)
	require.Equal(t, jwtx.KindRefresh, parsed.Kind)
}

func TestHS256VerifyRejectsWrongKind(t *testing.T) {
	signer, err := jwtx.NewSignerHS256(accessSecret)
	require.NoError(t, err)

	now := time.Now().UTC()
	token, err := signer.Sign(jwtx.NewAccessClaims("user-1", "a@x.com", testIssuer, time.Minute, now))
	require.NoError(t, err)

	// An access token presented where a refresh token is expected must fail
	// even though the signature would check out under the right secret.
	verifier := jwtx.NewVerifierHS256(accessSecret, testIssuer, jwtx.KindRefresh)
	_, err = verifier.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrKindMismatch)
}

func TestHS256VerifyRejectsWrongSecret(t *testing.T) {
	signer, err := jwtx.NewSignerHS256(accessSecret)
	require.NoError(t, err)

	now := time.Now().UTC()
	token, err := signer.Sign(jwtx.NewAccessClaims("user-1", "a@x.com", testIssuer, time.Minute, now))
	require.NoError(t, err)

	verifier := jwtx.NewVerifierHS256(refreshSecret, testIssuer, jwtx.KindAccess)
	_, err = verifier.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrMalformed)
	require.NotErrorIs(t, err, jwtx.ErrExpired)
}

func TestHS256VerifyRejectsExpired(t *testing.T) {
	signer, err := jwtx.NewSignerHS256(accessSecret)
	require.NoError(t, err)

	issued := time.Now().UTC().Add(-2 * time.Hour)
	token, err := signer.Sign(jwtx.NewAccessClaims("user-1", "a@x.com", testIssuer, time.Minute, issued))
	require.NoError(t, err)

	verifier := jwtx.NewVerifierHS256(accessSecret, testIssuer, jwtx.KindAccess)
	_, err = verifier.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrExpired)
}

func TestHS256VerifyRejectsWrongIssuer(t *testing.T) {
	signer, err := jwtx.NewSignerHS256(accessSecret)
	require.NoError(t, err)

	now := time.Now().UTC()
	token, err := signer.Sign(jwtx.NewAccessClaims("user-1", "a@x.com", "other-issuer", time.Minute, now))
	require.NoError(t, err)

	verifier := jwtx.NewVerifierHS256(accessSecret, testIssuer, jwtx.KindAccess)
	_, err = verifier.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrIssuer)
}

func TestHS256VerifyRejectsGarbage(t *testing.T) {
	verifier := jwtx.NewVerifierHS256(accessSecret, testIssuer, jwtx.KindAccess)

	_, err := verifier.Verify("not-a-jwt")
	require.ErrorIs(t, err, jwtx.ErrMalformed)
}

func TestHS256VerifyRejectsAlgorithmConfusion(t *testing.T) {
	// A token signed with "none" must never be accepted.
	claims := jwtx.NewAccessClaims("user-1", "a@x.com", testIssuer, time.Minute, time.Now().UTC())
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	verifier := jwtx.NewVerifierHS256(accessSecret, testIssuer, jwtx.KindAccess)
	_, err = verifier.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrMalformed)
}

func TestNewSignerHS256RejectsShortSecret(t *testing.T) {
	_, err := jwtx.NewSignerHS256([]byte("too-short"))
	require.Error(t, err)
}
