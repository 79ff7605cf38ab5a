package cryptox_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tradehall/tradehall/pkg/cryptox"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := cryptox.HashPassword("Passw0rd!")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"))

	require.NoError(t, cryptox.VerifyPassword("Passw0rd!", hash))
	require.ErrorIs(t, cryptox.VerifyPassword("wrong-password", hash), cryptox.ErrHashMismatch)
}

func TestHashPasswordSaltsAreUnique(t *testing.T) {
	h1, err := cryptox.HashPassword("same-password")
	require.NoError(t, err)
	h2, err := cryptox.HashPassword("same-password")
	require.NoError(t, err)

	require.NotEqual(t, h1, h2, "two hashes of the same password should differ by salt")
	require.NoError(t, cryptox.VerifyPassword("same-password", h1))
	require.NoError(t, cryptox.VerifyPassword("same-password", h2))
}

func TestVerifyPasswordRejectsMalformedHash(t *testing.T) {
	require.Error(t, cryptox.VerifyPassword("x", "not-a-phc-string"))
	require.Error(t, cryptox.VerifyPassword("x", "$argon2id$v=19$m=19456,t=2,p=1$bad"))
	require.Error(t, cryptox.VerifyPassword("x", ""))
}
