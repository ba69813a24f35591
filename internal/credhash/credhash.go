// ABOUTME: One-way credential hashing and comparison built on bcrypt
// ABOUTME: Treats the hash as an opaque oracle; callers never see raw credentials back

package credhash

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when no real hash is available, so a
// lookup miss costs the same as a mismatch.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Hash derives a one-way hash of the supplied credential bytes.
// The salt is generated internally and embedded in the returned hash.
func Hash(credential []byte) ([]byte, error) {
	h, err := bcrypt.GenerateFromPassword(credential, bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing credential: %w", err)
	}
	return h, nil
}

// Verify reports whether credential matches hash. When hash is empty
// (unknown user, passwordless row) a dummy comparison still runs to
// keep timing independent of username validity.
func Verify(hash, credential []byte) bool {
	if len(hash) == 0 {
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), credential)
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, credential) == nil
}
