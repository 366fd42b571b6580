package attribution

import "time"

const (
	CookieName = "ref_ambassador"
	// CookieLifetime bounds how long a referral click stays attributable.
	CookieLifetime = 30 * 24 * time.Hour
	// DefaultTokenTTL is the lifetime of an ambassador self-service token.
	DefaultTokenTTL = 15 * time.Minute

	SourceReferralLink = "referral_link"

	nonceSize = 6
	msPerDay  = int64(24 * time.Hour / time.Millisecond)
	msPerHour = int64(time.Hour / time.Millisecond)
)

// CookiePayload is the signed content of the attribution cookie.
type CookiePayload struct {
	ID         string `json:"id"`
	Code       string `json:"code"`
	BusinessID string `json:"business_id"`
	Timestamp  int64  `json:"timestamp"`
	Source     string `json:"source,omitempty"`
}

type Reason string

const (
	ReasonNoCookie   Reason = "no_cookie"
	ReasonParseError Reason = "parse_error"
	ReasonExpired    Reason = "expired"
)

// Attribution is the outcome of reading the cookie. An invalid attribution is
// not an error: callers treat it as "no referral".
type Attribution struct {
	Valid          bool
	Reason         Reason
	Ambassador     *CookiePayload
	DaysRemaining  int64
	HoursRemaining int64
	DaysOld        int64
}

type TokenPayload struct {
	Code  string `json:"code"`
	Exp   int64  `json:"exp"`
	Nonce string `json:"nonce"`
}

type TokenReason string

const (
	TokenMissing          TokenReason = "missing_token"
	TokenMalformed        TokenReason = "malformed_token"
	TokenInvalidSignature TokenReason = "invalid_signature"
	TokenCodeMismatch     TokenReason = "code_mismatch"
	TokenExpired          TokenReason = "expired"
	TokenParseFailure     TokenReason = "parse_failure"
)

type Verification struct {
	Valid   bool
	Reason  TokenReason
	Payload *TokenPayload
}

type verifyAttributionResponse struct {
	HasAttribution bool              `json:"hasAttribution"`
	Ambassador     *ambassadorOutput `json:"ambassador,omitempty"`
	DaysRemaining  *int64            `json:"daysRemaining,omitempty"`
	HoursRemaining *int64            `json:"hoursRemaining,omitempty"`
	Reason         Reason            `json:"reason,omitempty"`
	DaysOld        *int64            `json:"daysOld,omitempty"`
}

type ambassadorOutput struct {
	ID         string `json:"id"`
	Code       string `json:"code"`
	BusinessID string `json:"business_id"`
	Source     string `json:"source,omitempty"`
}

type trackEventRequest struct {
	EventType string         `json:"eventType" binding:"required"`
	Metadata  map[string]any `json:"metadata"`
}
