package password

import (
	"errors"

	"github.com/mojzu/mz/pkg/sso"
	"golang.org/x/crypto/bcrypt"
)

// Hasher stores passwords as bcrypt hashes.
type Hasher struct {
	cost int
}

// NewHasher returns a hasher using cost, or bcrypt.DefaultCost when cost is
// out of range.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

func (h *Hasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", sso.ErrInvalidRequest(err.Error())
	}
	return string(hash), nil
}

// Verify checks password against hash. A nil hash means the user has no
// password set.
func (h *Hasher) Verify(hash *string, password string) error {
	if hash == nil {
		return sso.ErrUserPasswordUndefined()
	}
	err := bcrypt.CompareHashAndPassword([]byte(*hash), []byte(password))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return sso.ErrUserPasswordIncorrect()
	default:
		return sso.DriverError(err)
	}
}
