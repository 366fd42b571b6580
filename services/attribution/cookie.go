package attribution

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// setCookie writes a host-only cookie. Leaving Domain unset keeps each tenant
// host isolated from the others.
func setCookie(c *gin.Context, value string, secure bool) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(CookieLifetime.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearCookie(c *gin.Context, secure bool) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// FromRequest reads the attribution carried by the request cookie.
func (c *Codec) FromRequest(ctx *gin.Context) Attribution {
	raw, err := ctx.Cookie(CookieName)
	if err != nil {
		return Attribution{Reason: ReasonNoCookie}
	}
	return c.ReadAttribution(raw)
}
