package token

import (
	"testing"
	"time"

	"github.com/smallbiznis/sekarnet/internal/clock"
	"github.com/smallbiznis/sekarnet/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMaker(t *testing.T, clk clock.Clock) Maker {
	t.Helper()
	m, err := NewMaker(config.Config{
		Auth: config.AuthConfig{
			JWTSecret:       "test-secret",
			Issuer:          "sekarnet-test",
			AccessTokenTTL:  30 * time.Minute,
			RefreshTokenTTL: 7 * 24 * time.Hour,
		},
	}, clk)
	require.NoError(t, err)
	return m
}

func TestGeneratePairAndParse(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	m := newTestMaker(t, clk)

	pair, err := m.GeneratePair("42", "customer")
	require.NoError(t, err)
	assert.Equal(t, "bearer", pair.TokenType)
	assert.Equal(t, clk.Now().Add(30*time.Minute).Unix(), pair.AccessExpiresAt.Unix())

	claims, err := m.Parse(pair.AccessToken, TypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "customer", claims.Role)

	_, err = m.Parse(pair.AccessToken, TypeRefresh)
	assert.ErrorIs(t, err, ErrWrongTokenType)

	_, err = m.Parse(pair.RefreshToken, TypeRefresh)
	assert.NoError(t, err)
}

func TestParseExpired(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	m := newTestMaker(t, clk)

	access, _, err := m.Generate("7", "admin", TypeAccess)
	require.NoError(t, err)

	clk.Advance(31 * time.Minute)
	_, err = m.Parse(access, TypeAccess)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestParseRejectsForeignSignature(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	m := newTestMaker(t, clk)

	other, err := NewMaker(config.Config{Auth: config.AuthConfig{JWTSecret: "other", AccessTokenTTL: time.Minute}}, clk)
	require.NoError(t, err)
	foreign, _, err := other.Generate("1", "admin", TypeAccess)
	require.NoError(t, err)

	_, err = m.Parse(foreign, TypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = m.Parse("not-a-jwt", TypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
