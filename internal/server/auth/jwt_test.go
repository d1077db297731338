package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vkuznetsov-dev/cipherchat/internal/common"
)

func TestToken_RoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	token, err := GenerateToken(42, secret, time.Minute)
	require.NoError(t, err)

	userID, err := UserIDFromToken(token, secret)
	require.NoError(t, err)
	require.Equal(t, int64(42), userID)
}

func TestToken_WrongSecret(t *testing.T) {
	token, err := GenerateToken(42, []byte("right"), time.Minute)
	require.NoError(t, err)

	_, err = UserIDFromToken(token, []byte("wrong"))
	require.True(t, errors.Is(err, common.ErrInvalidToken))
}

func TestToken_Expired(t *testing.T) {
	secret := []byte("test-secret")
	token, err := GenerateToken(42, secret, -time.Minute)
	require.NoError(t, err)

	_, err = UserIDFromToken(token, secret)
	require.True(t, errors.Is(err, common.ErrInvalidToken))
}

func TestToken_Garbage(t *testing.T) {
	_, err := UserIDFromToken("not.a.token", []byte("secret"))
	require.True(t, errors.Is(err, common.ErrInvalidToken))
}
