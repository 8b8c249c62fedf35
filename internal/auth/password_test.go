package auth_test

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/projecthub/apiserver/internal/auth"
)

func TestHashPassword(t *testing.T) {
	t.Run("produces bcrypt hash with cost 10", func(t *testing.T) {
		hash, err := auth.HashPassword("pw1")
		require.NoError(t, err)
		cost, err := bcrypt.Cost([]byte(hash))
		require.NoError(t, err)
		assert.Equal(t, auth.PasswordCost, cost)
		assert.NotContains(t, hash, "pw1")
	})

	t.Run("same password produces different hashes", func(t *testing.T) {
		hash1, err := auth.HashPassword("samepassword")
		require.NoError(t, err)
		hash2, err := auth.HashPassword("samepassword")
		require.NoError(t, err)
		assert.NotEqual(t, hash1, hash2)
	})

	t.Run("rejects empty password", func(t *testing.T) {
		_, err := auth.HashPassword("")
		assert.ErrorIs(t, err, auth.ErrEmptyPassword)
	})
}

func TestCheckPassword(t *testing.T) {
	hash, err := auth.HashPassword("correct")
	require.NoError(t, err)

	assert.True(t, auth.CheckPassword(hash, "correct"))
	assert.False(t, auth.CheckPassword(hash, "wrong"))
	assert.False(t, auth.CheckPassword("not-a-hash", "correct"))
}

func TestGeneratePassword(t *testing.T) {
	alnum := regexp.MustCompile(`^[A-Za-z0-9]{8}$`)

	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		password, err := auth.GeneratePassword(auth.GeneratedPasswordLength)
		require.NoError(t, err)
		assert.Regexp(t, alnum, password)
		seen[password] = struct{}{}
	}
	assert.Greater(t, len(seen), 1, "generated passwords should vary")

	_, err := auth.GeneratePassword(0)
	assert.Error(t, err)
}
