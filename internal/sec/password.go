package sec

import (
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrPasswordMismatch is returned when a password does not match its stored
// form.
var ErrPasswordMismatch = errors.New("password mismatch")

// ComparePassword returns an error if the provided password does not resolve to
// the given hash.
func ComparePassword[T ~string | ~[]byte](password T, hash []byte) error {
	return bcrypt.CompareHashAndPassword(hash, []byte(password))
}

// HashPassword generates the hash for a given password. It errors if the
// password is longer than 72 bytes.
func HashPassword[T ~string | ~[]byte](password T) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

// IsHashed reports whether stored is a bcrypt hash rather than a legacy
// plaintext password.
func IsHashed(stored string) bool {
	_, err := bcrypt.Cost([]byte(stored))
	return err == nil && strings.HasPrefix(stored, "$2")
}

// VerifyStoredPassword checks password against a stored value that is either a
// bcrypt hash or legacy plaintext. needsRehash is true when the check
// succeeded against plaintext and the caller should persist a hash instead.
func VerifyStoredPassword(password, stored string) (needsRehash bool, err error) {
	if IsHashed(stored) {
		if err = ComparePassword(password, []byte(stored)); err != nil {
			return false, ErrPasswordMismatch
		}
		return false, nil
	}
	if stored == "" || subtle.ConstantTimeCompare([]byte(password), []byte(stored)) != 1 {
		return false, ErrPasswordMismatch
	}
	return true, nil
}
