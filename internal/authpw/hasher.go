package authpw

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is the bcrypt input limit. Longer passwords are truncated
// before hashing and before verification.
const MaxPasswordBytes = 72

const legacyPrefix = "{bcrypt}"

// Hasher produces and checks salted bcrypt digests.
type Hasher struct {
	cost int
}

func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

func (h *Hasher) Hash(password string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword(truncate(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether password matches digest. A plain mismatch is false.
// Digests the primary check cannot read are normalised and checked again.
func (h *Hasher) Verify(password, digest string) bool {
	input := truncate(password)
	err := bcrypt.CompareHashAndPassword([]byte(digest), input)
	if err == nil {
		return true
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false
	}
	return verifyLegacy(input, digest)
}

func verifyLegacy(input []byte, digest string) bool {
	normalised := strings.TrimSpace(digest)
	normalised = strings.TrimPrefix(normalised, legacyPrefix)
	normalised = strings.TrimSpace(normalised)
	if normalised == "" || normalised == digest {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(normalised), input) == nil
}

func truncate(password string) []byte {
	b := []byte(password)
	if len(b) > MaxPasswordBytes {
		b = b[:MaxPasswordBytes]
	}
	return b
}
