package signin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{
			name:     "Valid password",
			password: "securePassword123!",
			wantErr:  false,
		},
		{
			name:     "Empty password",
			password: "",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := hashPasswordCost(tt.password, bcrypt.MinCost)

			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoEmptyString)
				return
			}

			assert.NoError(t, err)
			assert.NotEmpty(t, hash)
			assert.NoError(t, ComparePasswordAndHash(tt.password, hash))
		})
	}
}

func TestComparePasswordAndHash(t *testing.T) {
	hash, err := hashPasswordCost("testPassword123!", bcrypt.MinCost)
	require.NoError(t, err)

	assert.NoError(t, ComparePasswordAndHash("testPassword123!", hash))
	assert.ErrorIs(t, ComparePasswordAndHash("wrong", hash), ErrMismatchedHashAndPassword)
	assert.Error(t, ComparePasswordAndHash("testPassword123!", "not-a-hash"))
}
