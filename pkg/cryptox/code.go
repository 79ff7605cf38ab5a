package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
)

// CodeLength is the number of digits in verification and password-reset codes.
// Six digits is enough entropy for a code that expires within minutes.
const CodeLength = 6

// GenerateCode produces a fixed-length numeric one-time code using crypto/rand.
// Leading zeros are kept, so the result is always exactly n digits.
func GenerateCode(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("code length must be positive, got %d", n)
	}

	max := big.NewInt(10)
	digits := make([]byte, n)
	for i := range digits {
		d, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate code digit: %w", err)
		}
		digits[i] = byte('0' + d.Int64())
	}
	return string(digits), nil
}

// CodesEqual compares two one-time codes in constant time.
func CodesEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
