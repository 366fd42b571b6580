package attribution

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"smallbiznis-referral/pkg/security"
)

// Codec issues and reads the attribution cookie and ambassador tokens. Both
// are HMAC envelopes signed with different derived keys.
type Codec struct {
	keys *security.Keys
	now  func() time.Time
}

func NewCodec(keys *security.Keys) *Codec {
	return &Codec{keys: keys, now: time.Now}
}

func (c *Codec) IssueAttributionCookie(ambassadorID, code, businessID, source string) CookiePayload {
	return CookiePayload{
		ID:         ambassadorID,
		Code:       code,
		BusinessID: businessID,
		Timestamp:  c.now().UnixMilli(),
		Source:     source,
	}
}

// EncodeCookie signs the payload into the cookie value.
func (c *Codec) EncodeCookie(p CookiePayload) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return security.Sign(c.keys.AttributionCookie, raw), nil
}

func (c *Codec) ReadAttribution(raw string) Attribution {
	if raw == "" {
		return Attribution{Reason: ReasonNoCookie}
	}

	body, err := security.Open(c.keys.AttributionCookie, raw)
	if err != nil {
		return Attribution{Reason: ReasonParseError}
	}

	var p CookiePayload
	if err := json.Unmarshal(body, &p); err != nil || p.Timestamp <= 0 {
		return Attribution{Reason: ReasonParseError}
	}

	age := c.now().UnixMilli() - p.Timestamp
	if age < 0 {
		age = 0
	}

	lifetime := CookieLifetime.Milliseconds()
	if age > lifetime {
		return Attribution{Reason: ReasonExpired, DaysOld: age / msPerDay}
	}

	remaining := lifetime - age
	return Attribution{
		Valid:          true,
		Ambassador:     &p,
		DaysRemaining:  remaining / msPerDay,
		HoursRemaining: (remaining % msPerDay) / msPerHour,
	}
}

// CreateAmbassadorToken mints a bearer token for code. A non-positive ttl
// uses DefaultTokenTTL.
func (c *Codec) CreateAmbassadorToken(code string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	raw, err := json.Marshal(TokenPayload{
		Code:  code,
		Exp:   c.now().Add(ttl).UnixMilli(),
		Nonce: base64.RawURLEncoding.EncodeToString(nonce),
	})
	if err != nil {
		return "", err
	}
	return security.Sign(c.keys.AmbassadorToken, raw), nil
}

func (c *Codec) VerifyAmbassadorToken(token, expectedCode string) Verification {
	if token == "" {
		return Verification{Reason: TokenMissing}
	}

	body, err := security.Open(c.keys.AmbassadorToken, token)
	switch {
	case errors.Is(err, security.ErrInvalidSignature):
		return Verification{Reason: TokenInvalidSignature}
	case err != nil:
		return Verification{Reason: TokenMalformed}
	}

	var p TokenPayload
	if err := json.Unmarshal(body, &p); err != nil || p.Code == "" || p.Exp == 0 {
		return Verification{Reason: TokenParseFailure}
	}
	if p.Code != expectedCode {
		return Verification{Reason: TokenCodeMismatch}
	}
	if c.now().UnixMilli() > p.Exp {
		return Verification{Reason: TokenExpired}
	}

	return Verification{Valid: true, Payload: &p}
}
