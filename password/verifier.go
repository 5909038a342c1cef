package password

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrUnsupportedHash is returned when a stored hash matches no known encoding.
var ErrUnsupportedHash = errors.New("unsupported password hash encoding")

// Verifier compares candidate passwords against stored argon2id or bcrypt hashes.
// The zero value is ready to use.
type Verifier struct{}

// Matches reports whether candidate hashes to storedHash. A mismatch is
// (false, nil); an unreadable hash is an error.
func (Verifier) Matches(storedHash, candidate string) (bool, error) {
	switch {
	case strings.HasPrefix(storedHash, argon2Prefix):
		return verifyArgon2(storedHash, candidate)
	case isBcrypt(storedHash):
		err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(candidate))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, ErrUnsupportedHash
	}
}

func isBcrypt(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") ||
		strings.HasPrefix(hash, "$2b$") ||
		strings.HasPrefix(hash, "$2y$")
}
