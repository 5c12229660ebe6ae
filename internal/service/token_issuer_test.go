package service

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/geo-attendance-api/pkg/config"
)

func testIssuer() *TokenIssuer {
	return NewTokenIssuer(config.AttendanceConfig{TokenLength: 32, TokenTTL: 5 * time.Minute, TokenMaxTTL: time.Hour})
}

func TestTokenIssuerIssue(t *testing.T) {
	issuer := testIssuer()
	now := time.Date(2024, 3, 4, 10, 0, 0, 123456789, time.UTC)

	token, expires, err := issuer.Issue(now, 0)
	require.NoError(t, err)
	assert.Len(t, token, 32)
	for _, r := range token {
		assert.True(t, strings.ContainsRune(tokenAlphabet, r))
	}
	assert.Equal(t, time.Date(2024, 3, 4, 10, 5, 0, 123000000, time.UTC), expires)

	other, _, err := issuer.Issue(now, time.Minute)
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestTokenIssuerEnforcesMinimumLength(t *testing.T) {
	issuer := NewTokenIssuer(config.AttendanceConfig{TokenLength: 4})
	token, _, err := issuer.Issue(time.Now(), time.Minute)
	require.NoError(t, err)
	assert.Len(t, token, config.MinTokenLength)
}

func TestTokenIssuerSkipsBiasedBytes(t *testing.T) {
	issuer := testIssuer()
	issuer.length = config.MinTokenLength
	// 255 lies above the sampling bound and must be discarded.
	src := append(bytes.Repeat([]byte{255}, 24), bytes.Repeat([]byte{0}, 24)...)
	issuer.random = bytes.NewReader(src)

	token, _, err := issuer.Issue(time.Now(), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("A", 24), token)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("no entropy") }

func TestTokenIssuerEntropyFailure(t *testing.T) {
	issuer := testIssuer()
	issuer.random = failingReader{}
	_, _, err := issuer.Issue(time.Now(), time.Minute)
	assert.Error(t, err)
}

func TestTokenIssuerResolveTTL(t *testing.T) {
	issuer := testIssuer()
	ten, huge, zero := 10, 600, 0
	assert.Equal(t, 5*time.Minute, issuer.ResolveTTL(nil))
	assert.Equal(t, 5*time.Minute, issuer.ResolveTTL(&zero))
	assert.Equal(t, 10*time.Minute, issuer.ResolveTTL(&ten))
	assert.Equal(t, time.Hour, issuer.ResolveTTL(&huge))
}
