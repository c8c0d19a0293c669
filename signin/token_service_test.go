package signin

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/zento"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenServiceRoundTrip(t *testing.T) {
	email := "ada@example.com"
	identity := &zento.Identity{ID: uuid.New(), Email: &email}

	ts := NewTokenService([]byte(testSigningKey), time.Hour, "zento", nil)
	token, err := ts.Generate(identity)
	require.NoError(t, err)

	session, err := ts.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, identity.ID.String(), session.IdentityID())
	assert.Equal(t, email, session.Email())
	assert.Equal(t, time.Hour, ts.Expiration())
}

func TestTokenServiceRejects(t *testing.T) {
	identity := &zento.Identity{ID: uuid.New()}
	ts := NewTokenService([]byte(testSigningKey), time.Hour, "zento", nil)

	other, err := NewTokenService([]byte("another-key"), time.Hour, "zento", nil).Generate(identity)
	require.NoError(t, err)
	_, err = ts.Validate(other)
	assert.Error(t, err)

	wrongIssuer, err := NewTokenService([]byte(testSigningKey), time.Hour, "elsewhere", nil).Generate(identity)
	require.NoError(t, err)
	_, err = ts.Validate(wrongIssuer)
	assert.Error(t, err)

	_, err = ts.Validate("garbage")
	assert.Error(t, err)

	_, err = ts.Generate(nil)
	assert.Error(t, err)
}

func TestTokenServiceExpired(t *testing.T) {
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSigningKey))
	require.NoError(t, err)

	_, err = NewTokenService([]byte(testSigningKey), time.Hour, "", nil).Validate(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}
