package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestNewTokensRejectsShortSecret(t *testing.T) {
	_, err := NewTokens("short", nil)
	assert.Error(t, err)
}

func TestIssueAndValidate(t *testing.T) {
	tokens, err := NewTokens(testSecret, nil)
	require.NoError(t, err)

	signed, issued, err := tokens.Issue("user-42", "reviewer", time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, issued.ID)

	claims, err := tokens.Validate(context.Background(), signed)
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.UserID)
	assert.Equal(t, "reviewer", claims.Role)
	assert.Equal(t, issued.ID, claims.ID)
}

func TestValidateRejectsBadTokens(t *testing.T) {
	tokens, err := NewTokens(testSecret, nil)
	require.NoError(t, err)
	other, err := NewTokens(strings.Repeat("z", 32), nil)
	require.NoError(t, err)

	foreign, _, err := other.Issue("user-1", "", time.Hour)
	require.NoError(t, err)
	_, err = tokens.Validate(context.Background(), foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	tokens.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _, err := tokens.Issue("user-1", "", time.Hour)
	require.NoError(t, err)
	tokens.now = time.Now
	_, err = tokens.Validate(context.Background(), expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "user-1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = tokens.Validate(context.Background(), unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = tokens.Validate(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRevokeRequiresRedis(t *testing.T) {
	tokens, err := NewTokens(testSecret, nil)
	require.NoError(t, err)

	_, claims, err := tokens.Issue("user-1", "", time.Hour)
	require.NoError(t, err)
	assert.Error(t, tokens.Revoke(context.Background(), claims))
}
