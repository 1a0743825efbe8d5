package password

import (
	"testing"

	"github.com/mojzu/mz/pkg/sso"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasher(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	hash, err := h.Hash("s3cret-value")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-value", hash)

	assert.NoError(t, h.Verify(&hash, "s3cret-value"))

	err = h.Verify(&hash, "wrong")
	assert.True(t, sso.IsCode(err, sso.CodeUserPasswordIncorrect))

	err = h.Verify(nil, "s3cret-value")
	assert.True(t, sso.IsCode(err, sso.CodeUserPasswordUndefined))
}

func TestNewHasherClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(0).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(99).cost)
	assert.Equal(t, 12, NewHasher(12).cost)
}
