// Package widgetauth issues and verifies the static capability tokens that let
// an embedded widget act for a tenant slug without a login session.
//
// A token is the hex HMAC-SHA256 of the normalized slug under the server
// secret. Rotating the secret invalidates every token for every tenant at once.
package widgetauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
)

var (
	ErrSecretMissing = errors.New("widgetauth: signing secret not configured")
	ErrSlugRequired  = errors.New("widgetauth: slug required")
)

// Signer computes tenant capability tokens. Safe for concurrent use.
type Signer struct {
	secret []byte
}

// NewSigner returns a signer for the given secret. An empty secret yields a
// signer that refuses to issue and rejects every token.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// NormalizeSlug trims and lower-cases a tenant slug.
func NormalizeSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}

// Issue returns the capability token for slug.
func (s *Signer) Issue(slug string) (string, error) {
	if s == nil || len(s.secret) == 0 {
		return "", ErrSecretMissing
	}
	normalized := NormalizeSlug(slug)
	if normalized == "" {
		return "", ErrSlugRequired
	}
	return hex.EncodeToString(s.digest(normalized)), nil
}

// Verify reports whether token is the capability token for slug.
func (s *Signer) Verify(slug, token string) bool {
	if s == nil || len(s.secret) == 0 {
		return false
	}
	normalized := NormalizeSlug(slug)
	token = strings.TrimSpace(token)
	if normalized == "" || token == "" {
		return false
	}
	expected := hex.EncodeToString(s.digest(normalized))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(token))) == 1
}

func (s *Signer) digest(normalized string) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(normalized))
	return mac.Sum(nil)
}
