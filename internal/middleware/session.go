package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionKey is the gin context key holding the basket session id.
const SessionKey = "session_id"

const sessionMaxAge = 60 * 60 * 24 * 365

// Session makes sure the browser carries a basket session cookie. Invalid
// or missing cookies are replaced with a fresh id.
func Session(cookieName string, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(cookieName)
		if err != nil || uuid.Validate(id) != nil {
			id = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(cookieName, id, sessionMaxAge, "/", "", secure, true)
		}
		c.Set(SessionKey, id)
		c.Next()
	}
}

// SessionID returns the id set by Session.
func SessionID(c *gin.Context) string {
	return c.GetString(SessionKey)
}
