package jwt

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func signToken(t *testing.T, claims *Claims, key string) string {
	t.Helper()
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(key))
	require.NoError(t, err)
	return signed
}

func TestValidateToken(t *testing.T) {
	claims := &Claims{
		UserID: "64f0c2a1b3e4d5a6f7081920",
		Email:  "aida@example.com",
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	parsed, err := ValidateToken(signToken(t, claims, secret), secret)
	require.NoError(t, err)
	assert.Equal(t, claims.UserID, parsed.UserID)
	assert.Equal(t, claims.Email, parsed.Email)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	claims := &Claims{
		UserID: "64f0c2a1b3e4d5a6f7081920",
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	_, err := ValidateToken(signToken(t, claims, "other-secret"), secret)
	assert.Error(t, err)
}

func TestValidateTokenExpired(t *testing.T) {
	claims := &Claims{
		UserID: "64f0c2a1b3e4d5a6f7081920",
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}

	_, err := ValidateToken(signToken(t, claims, secret), secret)
	assert.Error(t, err)
}
