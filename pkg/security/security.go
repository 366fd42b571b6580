// Package security signs and verifies the compact HMAC envelopes used for
// attribution cookies and ambassador access tokens.
//
// An envelope is base64url(payload) "." base64url(HMAC-SHA256(key, encodedPayload)).
// Keys are never the configured secret itself: each purpose gets its own HKDF
// subkey so a shared fallback secret cannot mint values for another purpose.
package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"io"
	"strings"

	"smallbiznis-referral/pkg/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/hkdf"
)

const (
	PurposeAmbassadorToken   = "ambassador-token"
	PurposeAttributionCookie = "attribution-cookie"

	keySize = 32
)

var (
	ErrNoSecret         = errors.New("security: no signing secret configured")
	ErrMalformed        = errors.New("security: malformed envelope")
	ErrInvalidSignature = errors.New("security: invalid signature")
)

var Module = fx.Module("security", fx.Provide(NewKeys))

// Keys holds the derived per-purpose signing keys.
type Keys struct {
	AmbassadorToken   []byte
	AttributionCookie []byte
}

// NewKeys resolves the root secret from configuration and derives every
// purpose key from it.
func NewKeys(cfg *config.Config) (*Keys, error) {
	root, source := ResolveSecret(cfg)
	if root == "" {
		return nil, ErrNoSecret
	}
	if source != "AMBASSADOR_TOKEN_SECRET" {
		zap.L().Warn("dedicated token secret not set, deriving keys from fallback secret",
			zap.String("source", source))
	}
	return DeriveKeys([]byte(root))
}

func DeriveKeys(root []byte) (*Keys, error) {
	tokenKey, err := DeriveKey(root, PurposeAmbassadorToken)
	if err != nil {
		return nil, err
	}
	cookieKey, err := DeriveKey(root, PurposeAttributionCookie)
	if err != nil {
		return nil, err
	}
	return &Keys{AmbassadorToken: tokenKey, AttributionCookie: cookieKey}, nil
}

// ResolveSecret walks the fallback chain and returns the first non-empty
// secret together with the name of the variable it came from.
func ResolveSecret(cfg *config.Config) (string, string) {
	chain := []struct {
		name  string
		value string
	}{
		{"AMBASSADOR_TOKEN_SECRET", cfg.Secrets.AmbassadorToken},
		{"PUBLIC_TOKEN_FALLBACK", cfg.Secrets.PublicTokenFallback},
		{"SERVICE_ROLE_KEY", cfg.Secrets.ServiceRoleKey},
		{"ANON_KEY", cfg.Secrets.AnonKey},
	}
	for _, c := range chain {
		if v := strings.TrimSpace(c.value); v != "" {
			return v, c.name
		}
	}
	return "", ""
}

func DeriveKey(root []byte, purpose string) ([]byte, error) {
	if len(root) == 0 {
		return nil, ErrNoSecret
	}
	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, root, nil, []byte(purpose)), key); err != nil {
		return nil, err
	}
	return key, nil
}

// Sign wraps payload into a signed envelope.
func Sign(key, payload []byte) string {
	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return encoded + "." + base64.RawURLEncoding.EncodeToString(mac(key, encoded))
}

// Open checks the envelope signature in constant time and returns the decoded
// payload. The signature is compared in its encoded form so that every
// altered character is rejected, including the padding bits of the last one.
func Open(key []byte, envelope string) ([]byte, error) {
	encoded, sig, ok := strings.Cut(envelope, ".")
	if !ok || encoded == "" || sig == "" || strings.Contains(sig, ".") {
		return nil, ErrMalformed
	}

	want := base64.RawURLEncoding.EncodeToString(mac(key, encoded))
	if !hmac.Equal([]byte(sig), []byte(want)) {
		return nil, ErrInvalidSignature
	}

	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrMalformed
	}
	return payload, nil
}

// EqualString compares two secrets without leaking where they differ.
func EqualString(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func mac(key []byte, data string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(data))
	return h.Sum(nil)
}
