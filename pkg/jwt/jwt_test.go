package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	token, err := GenerateToken("64b7f0c2a1b2c3d4e5f60718", "Ada Lovelace", true, "secret", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "64b7f0c2a1b2c3d4e5f60718", claims.UserID)
	assert.Equal(t, "Ada Lovelace", claims.FullName)
	assert.True(t, claims.IsAdmin)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	token, err := GenerateToken("u1", "User", false, "secret", time.Hour)
	require.NoError(t, err)

	_, err = ValidateToken(token, "other-secret")
	assert.Error(t, err)
}

func TestValidateToken_Expired(t *testing.T) {
	token, err := GenerateToken("u1", "User", false, "secret", -time.Minute)
	require.NoError(t, err)

	_, err = ValidateToken(token, "secret")
	assert.Error(t, err)
}

func TestValidateToken_Garbage(t *testing.T) {
	_, err := ValidateToken("not-a-token", "secret")
	assert.Error(t, err)
}
