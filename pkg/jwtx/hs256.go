package jwtx

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

const minSecretLength = 32

// HS256Signer signs JWTs using HMAC-SHA256. The access and refresh signers
// hold distinct secrets so leaking one key cannot forge the other kind.
type HS256Signer struct {
	secret []byte
}

// NewSignerHS256 creates an HS256 signer. The secret must hold at least
// 256 bits of key material.
func NewSignerHS256(secret []byte) (*HS256Signer, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("jwtx: HS256 secret must be at least %d bytes", minSecretLength)
	}
	return &HS256Signer{secret: secret}, nil
}

// Alg returns the JWA algorithm name.
func (s *HS256Signer) Alg() string { return jwt.SigningMethodHS256.Alg() }

// Sign produces a compact serialized JWT for the given claims.
func (s *HS256Signer) Sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign token: %w", err)
	}
	return signed, nil
}

// HS256Verifier validates JWTs signed with HMAC-SHA256 and enforces issuer
// and token-kind expectations.
type HS256Verifier struct {
	secret []byte
	issuer string
	kind   Kind
}

// NewVerifierHS256 creates a verifier for tokens of the given kind.
func NewVerifierHS256(secret []byte, issuer string, kind Kind) *HS256Verifier {
	return &HS256Verifier{secret: secret, issuer: issuer, kind: kind}
}

// Verify validates the JWT string and returns its parsed Claims.
//
// Callers can distinguish an expired-but-otherwise-valid token (ErrExpired)
// from every other failure via errors.Is; everything else means the token is
// malformed, mis-signed, or of the wrong kind and the holder must
// re-authenticate rather than refresh.
func (v *HS256Verifier) Verify(tokenStr string) (Claims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		// The parser folds expiry into its joined error; surface it as our
		// sentinel so callers can branch on refresh-vs-relogin.
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpired
		}
		return Claims{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Claims{}, ErrInvalidClaim
	}

	if err := claims.ValidateIssuer(v.issuer); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateKind(v.kind); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateExpiry(); err != nil {
		return Claims{}, err
	}

	return *claims, nil
}
