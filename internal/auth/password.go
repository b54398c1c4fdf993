// Package auth holds the session and credential collaborators: JWT
// sessions, bcrypt password hashes, school password tokens and the parent
// login failure limiter.
package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the cost used for director and admin passwords.
const DefaultBcryptCost = 12

// Hasher hashes and verifies passwords with bcrypt.
type Hasher struct {
	cost int
}

// NewHasher creates a Hasher. A cost outside bcrypt's range falls back to
// DefaultBcryptCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &Hasher{cost: cost}
}

// Hash returns the bcrypt hash of plaintext.
func (h *Hasher) Hash(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether plaintext matches hash. A malformed hash never
// matches.
func (h *Hasher) Verify(plaintext, hash string) bool {
	if hash == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	return err == nil
}

// schoolPasswordAlphabet leaves out characters that are easy to misread
// when a password is dictated to parents.
const schoolPasswordAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// SchoolPasswordLength is the length of generated school passwords.
const SchoolPasswordLength = 8

var errEmptyPassword = errors.New("school password must not be empty")

// GenerateSchoolPassword returns a random uppercase school password.
func GenerateSchoolPassword() (string, error) {
	size := big.NewInt(int64(len(schoolPasswordAlphabet)))
	var b strings.Builder
	b.Grow(SchoolPasswordLength)
	for range SchoolPasswordLength {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", fmt.Errorf("generate school password: %w", err)
		}
		b.WriteByte(schoolPasswordAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// NormalizeSchoolPassword trims and uppercases a school password.
func NormalizeSchoolPassword(p string) (string, error) {
	p = strings.ToUpper(strings.TrimSpace(p))
	if p == "" {
		return "", errEmptyPassword
	}
	return p, nil
}
