// Package otpcode generates and hashes 6-digit one-time codes.
package otpcode

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
)

// Length is the number of digits in a code.
const Length = 6

var upper = big.NewInt(1_000_000)

// Generate returns a cryptographically random zero-padded 6-digit code.
func Generate() (string, error) {
	n, err := rand.Int(rand.Reader, upper)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// WellFormed reports whether code is exactly six ASCII digits.
func WellFormed(code string) bool {
	if len(code) != Length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// Hasher derives a keyed digest of a code bound to its email, so a leaked
// table row cannot be brute-forced offline without the secret.
type Hasher struct {
	secret []byte
}

func NewHasher(secret string) *Hasher {
	return &Hasher{secret: []byte(secret)}
}

func (h *Hasher) Hash(email, code string) string {
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(email))
	mac.Write([]byte{0})
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))
}

// Equal compares a candidate code against a stored hash in constant time.
func (h *Hasher) Equal(email, code, storedHash string) bool {
	want, err := hex.DecodeString(storedHash)
	if err != nil {
		return false
	}
	got, _ := hex.DecodeString(h.Hash(email, code))
	return hmac.Equal(got, want)
}
