package service

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-at-least-32-characters"

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestTokens(clock *fakeClock) TokenService {
	return NewTokenService(testSecret, 24*time.Hour, 30*24*time.Hour, clock.Now)
}

func TestTokenService_RoundTrip(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	tokens := newTestTokens(clock)

	token, err := tokens.Issue("alice", AccessToken)
	require.NoError(t, err)

	username, err := tokens.Verify(token, AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)

	// same inputs at the same instant give the same token
	again, err := tokens.Issue("alice", AccessToken)
	require.NoError(t, err)
	assert.Equal(t, token, again)
}

func TestTokenService_Expiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	tokens := newTestTokens(clock)

	token, err := tokens.Issue("alice", AccessToken)
	require.NoError(t, err)

	clock.Advance(24*time.Hour - time.Second)
	_, err = tokens.Verify(token, AccessToken)
	assert.NoError(t, err)

	clock.Advance(2 * time.Second)
	_, err = tokens.Verify(token, AccessToken)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenService_RefreshLivesThirtyDays(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	tokens := newTestTokens(clock)

	token, err := tokens.Issue("alice", RefreshToken)
	require.NoError(t, err)

	clock.Advance(29 * 24 * time.Hour)
	_, err = tokens.Verify(token, RefreshToken)
	assert.NoError(t, err)

	clock.Advance(2 * 24 * time.Hour)
	_, err = tokens.Verify(token, RefreshToken)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenService_WrongKind(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	tokens := newTestTokens(clock)

	refresh, err := tokens.Issue("alice", RefreshToken)
	require.NoError(t, err)

	_, err = tokens.Verify(refresh, AccessToken)
	assert.ErrorIs(t, err, ErrWrongTokenKind)
}

func TestTokenService_Invalid(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	tokens := newTestTokens(clock)

	_, err := tokens.Verify("", AccessToken)
	assert.ErrorIs(t, err, ErrNoToken)

	_, err = tokens.Verify("not.a.token", AccessToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	// signed with another secret
	other := NewTokenService(strings.Repeat("x", 40), time.Hour, time.Hour, clock.Now)
	foreign, err := other.Issue("alice", AccessToken)
	require.NoError(t, err)
	_, err = tokens.Verify(foreign, AccessToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	// tampered payload
	token, _ := tokens.Issue("alice", AccessToken)
	parts := strings.Split(token, ".")
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(`{"type":"access","sub":"mallory","exp":4102444800}`))
	_, err = tokens.Verify(strings.Join(parts, "."), AccessToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	// alg none is refused
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		Kind:             AccessToken,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "alice", ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour))},
	})
	none, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = tokens.Verify(none, AccessToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
