package service

import (
	"crypto/rand"
	"fmt"
	"io"
	"time"

	"github.com/noah-isme/geo-attendance-api/pkg/config"
)

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// rejection sampling bound: the largest multiple of len(tokenAlphabet) below 256.
const tokenByteLimit = 256 - 256%len(tokenAlphabet)

// TokenIssuer generates opaque QR tokens and their expiry.
type TokenIssuer struct {
	length     int
	defaultTTL time.Duration
	maxTTL     time.Duration
	random     io.Reader
}

// NewTokenIssuer builds an issuer from the attendance configuration.
func NewTokenIssuer(cfg config.AttendanceConfig) *TokenIssuer {
	length := cfg.TokenLength
	if length < config.MinTokenLength {
		length = config.MinTokenLength
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	maxTTL := cfg.TokenMaxTTL
	if maxTTL < ttl {
		maxTTL = ttl
	}
	return &TokenIssuer{length: length, defaultTTL: ttl, maxTTL: maxTTL, random: rand.Reader}
}

// ResolveTTL converts an optional minutes override into a lifetime capped at the configured maximum.
func (i *TokenIssuer) ResolveTTL(minutes *int) time.Duration {
	if minutes == nil || *minutes <= 0 {
		return i.defaultTTL
	}
	ttl := time.Duration(*minutes) * time.Minute
	if ttl > i.maxTTL {
		return i.maxTTL
	}
	return ttl
}

// Issue returns a fresh alphanumeric token valid until now+ttl, truncated to milliseconds.
func (i *TokenIssuer) Issue(now time.Time, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = i.defaultTTL
	}
	token := make([]byte, 0, i.length)
	buf := make([]byte, i.length)
	for len(token) < i.length {
		if _, err := io.ReadFull(i.random, buf); err != nil {
			return "", time.Time{}, fmt.Errorf("read token entropy: %w", err)
		}
		for _, b := range buf {
			if int(b) >= tokenByteLimit {
				continue
			}
			token = append(token, tokenAlphabet[int(b)%len(tokenAlphabet)])
			if len(token) == i.length {
				break
			}
		}
	}
	return string(token), now.Add(ttl).UTC().Truncate(time.Millisecond), nil
}
