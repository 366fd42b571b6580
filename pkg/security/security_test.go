package security

import (
	"strings"
	"testing"

	"smallbiznis-referral/pkg/config"

	"github.com/stretchr/testify/require"
)

func TestSignOpenRoundTrip(t *testing.T) {
	keys, err := DeriveKeys([]byte("root-secret"))
	require.NoError(t, err)

	env := Sign(keys.AmbassadorToken, []byte(`{"code":"ACME-1"}`))
	payload, err := Open(keys.AmbassadorToken, env)
	require.NoError(t, err)
	require.JSONEq(t, `{"code":"ACME-1"}`, string(payload))
}

func TestOpenRejectsOtherPurposeKey(t *testing.T) {
	keys, err := DeriveKeys([]byte("shared"))
	require.NoError(t, err)
	require.NotEqual(t, keys.AmbassadorToken, keys.AttributionCookie)

	env := Sign(keys.AttributionCookie, []byte("{}"))
	_, err = Open(keys.AmbassadorToken, env)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestOpenMalformed(t *testing.T) {
	key := []byte("k")
	for _, env := range []string{"", "abc", ".sig", "abc.", "a.b.c"} {
		_, err := Open(key, env)
		require.ErrorIs(t, err, ErrMalformed, env)
	}

	_, err := Open(key, "abc.***")
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestOpenRejectsEverySignatureCharFlip(t *testing.T) {
	key := []byte("k")
	env := Sign(key, []byte(`{"code":"X"}`))
	payload, sig, _ := strings.Cut(env, ".")

	for i := range sig {
		b := []byte(sig)
		if b[i] == 'A' {
			b[i] = 'B'
		} else {
			b[i] = 'A'
		}
		_, err := Open(key, payload+"."+string(b))
		require.ErrorIs(t, err, ErrInvalidSignature, i)
	}
}

func TestOpenTamperedPayload(t *testing.T) {
	key := []byte("k")
	env := Sign(key, []byte(`{"id":"1"}`))
	_, sig, _ := strings.Cut(env, ".")
	forged := Sign([]byte("other"), []byte(`{"id":"2"}`))
	payload, _, _ := strings.Cut(forged, ".")

	_, err := Open(key, payload+"."+sig)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestResolveSecretChain(t *testing.T) {
	cfg := &config.Config{}
	v, src := ResolveSecret(cfg)
	require.Empty(t, v)
	require.Empty(t, src)

	cfg.Secrets.AnonKey = "anon"
	v, src = ResolveSecret(cfg)
	require.Equal(t, "anon", v)
	require.Equal(t, "ANON_KEY", src)

	cfg.Secrets.ServiceRoleKey = "service"
	_, src = ResolveSecret(cfg)
	require.Equal(t, "SERVICE_ROLE_KEY", src)

	cfg.Secrets.PublicTokenFallback = "public"
	_, src = ResolveSecret(cfg)
	require.Equal(t, "PUBLIC_TOKEN_FALLBACK", src)

	cfg.Secrets.AmbassadorToken = "  dedicated "
	v, src = ResolveSecret(cfg)
	require.Equal(t, "dedicated", v)
	require.Equal(t, "AMBASSADOR_TOKEN_SECRET", src)
}

func TestNewKeysWithoutSecret(t *testing.T) {
	_, err := NewKeys(&config.Config{})
	require.ErrorIs(t, err, ErrNoSecret)
}

func TestEqualString(t *testing.T) {
	require.True(t, EqualString("token", "token"))
	require.False(t, EqualString("token", "token2"))
	require.False(t, EqualString("", "x"))
}
