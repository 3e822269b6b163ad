package sec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	t.Parallel()

	t.Run("string password", func(t *testing.T) {
		t.Parallel()
		hash, err := HashPassword("mypassword")
		require.NoError(t, err)
		assert.NotEmpty(t, hash)
		assert.True(t, IsHashed(string(hash)))
	})

	t.Run("byte slice password", func(t *testing.T) {
		t.Parallel()
		hash, err := HashPassword([]byte("mypassword"))
		require.NoError(t, err)
		assert.NotEmpty(t, hash)
	})

	t.Run("too long", func(t *testing.T) {
		t.Parallel()
		_, err := HashPassword(make([]byte, 73))
		assert.Error(t, err)
	})
}

func TestComparePassword(t *testing.T) {
	t.Parallel()

	// Pre-generate a hash for testing
	password := "correctpassword"
	hash, err := HashPassword(password)
	require.NoError(t, err)

	t.Run("correct password string", func(t *testing.T) {
		t.Parallel()
		err := ComparePassword(password, hash)
		assert.NoError(t, err)
	})

	t.Run("correct password bytes", func(t *testing.T) {
		t.Parallel()
		err := ComparePassword([]byte(password), hash)
		assert.NoError(t, err)
	})

	t.Run("incorrect password", func(t *testing.T) {
		t.Parallel()
		err := ComparePassword("wrongpassword", hash)
		assert.Error(t, err)
	})
}

func TestVerifyStoredPassword(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("pw1")
	require.NoError(t, err)

	tests := []struct {
		name       string
		password   string
		stored     string
		wantRehash bool
		wantErr    bool
	}{
		{name: "hash match", password: "pw1", stored: string(hash)},
		{name: "hash mismatch", password: "pw2", stored: string(hash), wantErr: true},
		{name: "plaintext match", password: "pw1", stored: "pw1", wantRehash: true},
		{name: "plaintext mismatch", password: "pw2", stored: "pw1", wantErr: true},
		{name: "empty stored never matches", password: "", stored: "", wantErr: true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			rehash, err := VerifyStoredPassword(test.password, test.stored)
			if test.wantErr {
				require.ErrorIs(t, err, ErrPasswordMismatch)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.wantRehash, rehash)
		})
	}
}
