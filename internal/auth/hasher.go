package auth

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/Additional-Code/orderdesk/pkg/errorbank"
)

// bcrypt ignores everything past 72 bytes; longer inputs are truncated
// up front so hashing and verification agree on the effective password.
const maxPasswordBytes = 72

// Hasher wraps bcrypt password hashing with a configurable cost.
type Hasher struct {
	cost int
}

// NewHasher builds a Hasher. Costs outside bcrypt's range fall back to
// the library default.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash generates a salted bcrypt hash of the password. Primitive
// failures surface as a generic internal error; the cause stays
// server-side.
func (h *Hasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword(truncate(password), h.cost)
	if err != nil {
		return "", errorbank.Internal("password hashing failed", errorbank.WithCause(err))
	}
	return string(hashed), nil
}

// Verify reports whether the password matches the stored hash. A
// mismatch is a plain false, never an error.
func (h *Hasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), truncate(password)) == nil
}

func truncate(password string) []byte {
	b := []byte(password)
	if len(b) > maxPasswordBytes {
		b = b[:maxPasswordBytes]
	}
	return b
}
