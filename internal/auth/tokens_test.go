package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	tokens := NewTokens("s3cret", time.Hour)

	session, err := tokens.Issue("user-1", "alice")
	require.NoError(t, err)
	require.Equal(t, "bearer", session.TokenType)
	require.Equal(t, 3600, session.ExpiresIn)

	user, err := tokens.Verify(session.AccessToken)
	require.NoError(t, err)
	require.Equal(t, SessionUser{ID: "user-1", Username: "alice"}, user)
}

func TestVerifyRejects(t *testing.T) {
	tokens := NewTokens("s3cret", time.Hour)
	session, err := tokens.Issue("user-1", "alice")
	require.NoError(t, err)

	_, err = NewTokens("other", time.Hour).Verify(session.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = tokens.Verify("not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)

	later := NewTokens("s3cret", time.Hour)
	later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = later.Verify(session.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	require.NotEqual(t, "hunter22", hash)
	require.True(t, CheckPassword(hash, "hunter22"))
	require.False(t, CheckPassword(hash, "hunter23"))
}
