package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key"

func TestGenerateTokenPair_RoundTrip(t *testing.T) {
	pair, err := GenerateTokenPair("user-1", "tenant-a", "dev@acme.test", "admin", testSecret)
	require.NoError(t, err)
	assert.Equal(t, "bearer", pair.TokenType)
	assert.Equal(t, int(accessTokenTTL.Seconds()), pair.ExpiresIn)

	claims, err := ValidateToken(pair.AccessToken, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "tenant-a", claims.TenantID)
	assert.Equal(t, "dev@acme.test", claims.Email)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, TokenTypeAccess, claims.TokenType)

	claims, err = ValidateToken(pair.RefreshToken, testSecret)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeRefresh, claims.TokenType)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	token, err := GenerateToken("user-1", "tenant-a", "dev@acme.test", "admin", TokenTypeAccess, testSecret, time.Minute)
	require.NoError(t, err)

	_, err = ValidateToken(token, "other-secret")
	assert.Error(t, err)
}

func TestValidateToken_Expired(t *testing.T) {
	token, err := GenerateToken("user-1", "tenant-a", "dev@acme.test", "admin", TokenTypeAccess, testSecret, -time.Minute)
	require.NoError(t, err)

	_, err = ValidateToken(token, testSecret)
	assert.Error(t, err)
}

func TestRefreshAccessToken(t *testing.T) {
	pair, err := GenerateTokenPair("user-1", "tenant-a", "dev@acme.test", "member", testSecret)
	require.NoError(t, err)

	access, err := RefreshAccessToken(pair.RefreshToken, testSecret)
	require.NoError(t, err)

	claims, err := ValidateToken(access, testSecret)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeAccess, claims.TokenType)
	assert.Equal(t, "tenant-a", claims.TenantID)

	// An access token cannot mint new tokens.
	_, err = RefreshAccessToken(pair.AccessToken, testSecret)
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2hunter2", hash)
	assert.True(t, VerifyPassword("hunter2hunter2", hash))
	assert.False(t, VerifyPassword("wrong", hash))
}
