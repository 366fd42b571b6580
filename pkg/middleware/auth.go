package middleware

import (
	"errors"
	"strings"
	"time"

	"smallbiznis-referral/pkg/config"
	"smallbiznis-referral/pkg/errutil"

	"github.com/gin-gonic/gin"
	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"go.uber.org/fx"
)

const userIDKey = "user_id"

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid access token")
)

var AuthModule = fx.Module("auth", fx.Provide(NewTokenVerifier))

// TokenVerifier resolves an identity-provider access token to a user id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

type jwtVerifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewTokenVerifier(cfg *config.Config) TokenVerifier {
	return &jwtVerifier{
		secret: []byte(cfg.Auth.JWTSecret),
		issuer: cfg.Auth.Issuer,
		now:    time.Now,
	}
}

func (v *jwtVerifier) Verify(raw string) (string, error) {
	if len(v.secret) == 0 {
		return "", ErrInvalidToken
	}

	tok, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return "", ErrInvalidToken
	}

	var claims jwt.Claims
	if err := tok.Claims(v.secret, &claims); err != nil {
		return "", ErrInvalidToken
	}

	expected := jwt.Expected{Time: v.now()}
	if v.issuer != "" {
		expected.Issuer = v.issuer
	}
	if err := claims.ValidateWithLeeway(expected, 30*time.Second); err != nil {
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}

	return claims.Subject, nil
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// Auth requires a valid access token and stores the user id on the context.
func Auth(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			_ = c.Error(errutil.Unauthorized("unauthorized", ErrMissingToken))
			c.Abort()
			return
		}

		userID, err := v.Verify(token)
		if err != nil {
			_ = c.Error(errutil.Unauthorized("unauthorized", err))
			c.Abort()
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
