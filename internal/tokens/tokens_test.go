package tokens

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mkostiuk/contact_service/internal/apperr"
)

var testSecret = []byte("test-secret")

func TestAccessRoundTrip(t *testing.T) {
	signed, err := SignAccess("user@example.com", testSecret, time.Minute)
	require.NoError(t, err)

	claims, err := ParseAccess(signed, testSecret)
	require.NoError(t, err)
	require.Equal(t, "user@example.com", claims.Subject)
}

func TestAccessExpired(t *testing.T) {
	signed, err := SignAccess("user@example.com", testSecret, -time.Minute)
	require.NoError(t, err)

	_, err = ParseAccess(signed, testSecret)
	require.ErrorIs(t, err, apperr.ErrTokenExpired)
	require.ErrorIs(t, err, apperr.ErrAuthentication)
}

func TestAccessBadSignature(t *testing.T) {
	signed, err := SignAccess("user@example.com", testSecret, time.Minute)
	require.NoError(t, err)

	_, err = ParseAccess(signed, []byte("other-secret"))
	require.ErrorIs(t, err, apperr.ErrTokenMalformed)
}

func TestAccessGarbage(t *testing.T) {
	_, err := ParseAccess("not.a.token", testSecret)
	require.ErrorIs(t, err, apperr.ErrTokenMalformed)
}

func TestRefreshRoundTrip(t *testing.T) {
	signed, err := SignRefresh("user@example.com", "jti-1", testSecret, time.Hour)
	require.NoError(t, err)

	claims, err := ParseRefresh(signed, testSecret)
	require.NoError(t, err)
	require.Equal(t, "user@example.com", claims.Subject)
	require.Equal(t, "jti-1", claims.ID)
	require.Equal(t, string(KindRefresh), claims.Type)
}

func TestAccessTokenIsNotRefresh(t *testing.T) {
	signed, err := SignAccess("user@example.com", testSecret, time.Minute)
	require.NoError(t, err)

	_, err = ParseRefresh(signed, testSecret)
	require.ErrorIs(t, err, apperr.ErrTokenMalformed)
}

func TestRefreshTokenIsNotAccess(t *testing.T) {
	signed, err := SignRefresh("user@example.com", "jti-1", testSecret, time.Hour)
	require.NoError(t, err)

	_, err = ParseAccess(signed, testSecret)
	require.ErrorIs(t, err, apperr.ErrTokenMalformed)
}

func TestActionKindMismatch(t *testing.T) {
	signed, err := SignAction("user@example.com", KindPasswordReset, testSecret, time.Hour)
	require.NoError(t, err)

	claims, err := ParseAction(signed, KindPasswordReset, testSecret)
	require.NoError(t, err)
	require.Equal(t, "user@example.com", claims.Subject)

	_, err = ParseAction(signed, KindEmailVerification, testSecret)
	require.ErrorIs(t, err, apperr.ErrTokenMalformed)
}

func TestActionTokenRejectedAsAccess(t *testing.T) {
	// Action tokens share the access secret, so only the typ check keeps a
	// reset token from doubling as a session.
	signed, err := SignAction("user@example.com", KindPasswordReset, testSecret, time.Hour)
	require.NoError(t, err)

	_, err = ParseAccess(signed, testSecret)
	require.ErrorIs(t, err, apperr.ErrTokenMalformed)
}
