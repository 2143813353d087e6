// Package credential is the one place secrets are produced or checked:
// bcrypt hashing for passwords and system keys, bearer token minting, and
// the anonymized names given to deleted accounts.
package credential

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes and verifies secrets with a fixed bcrypt cost.
type Hasher struct {
	cost int
}

// NewHasher clamps cost into bcrypt's accepted range.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{cost: cost}
}

// Hash returns the bcrypt hash of secret.
func (h *Hasher) Hash(secret string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether secret matches hash. A malformed hash is an error,
// a plain mismatch is not.
func (h *Hasher) Verify(hash, secret string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("failed to verify secret: %w", err)
}

// NewToken mints an opaque bearer token bound to name. 32 bytes from
// crypto/rand go into the digest, so tokens are unguessable even for
// callers who know the name and the clock.
func NewToken(name string) (string, error) {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return "", fmt.Errorf("failed to read random seed: %w", err)
	}

	var stamp [8]byte
	binary.BigEndian.PutUint64(stamp[:], uint64(time.Now().UnixNano()))

	h := blake3.New()
	h.Write(seed[:])
	h.Write([]byte(name))
	h.Write(stamp[:])
	return hex.EncodeToString(h.Sum(nil)), nil
}

// AnonymousName is the deterministic replacement name of a deleted account.
// Names stay unique because the input is the account's UUID.
func AnonymousName(uuid string) string {
	sum := blake3.Sum256([]byte("maelink/deleted/" + uuid))
	return "deleted_" + hex.EncodeToString(sum[:6])
}
