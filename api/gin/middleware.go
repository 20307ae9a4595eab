package gin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pilab-dev/stepauth/domain"
	"github.com/pilab-dev/stepauth/sessions"
)

// SessionCookieName is the cookie carrying the session identifier.
const SessionCookieName = "stepauth_session"

const sessionContextKey = "stepauth_session_record"

// SessionMiddleware resolves the request's session from its cookie, creating
// a fresh anonymous session when none exists. Handlers that regenerate the
// session identifier re-issue the cookie themselves.
func SessionMiddleware(store sessions.Store, ttl time.Duration, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var sess *domain.Session

		if id, err := c.Cookie(SessionCookieName); err == nil && id != "" {
			if found, err := store.Get(c.Request.Context(), id); err == nil {
				sess = found
			}
		}

		if sess == nil {
			sess = domain.NewSession(ttl)
			if err := store.Save(c.Request.Context(), sess); err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session unavailable"})
				return
			}
			setSessionCookie(c, sess, ttl, secure)
		}

		c.Set(sessionContextKey, sess)
		c.Next()
	}
}

// sessionFromContext returns the request's session. The middleware
// guarantees presence on all routes it wraps.
func sessionFromContext(c *gin.Context) *domain.Session {
	v, _ := c.Get(sessionContextKey)
	sess, _ := v.(*domain.Session)
	return sess
}

func setSessionCookie(c *gin.Context, sess *domain.Session, ttl time.Duration, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, sess.ID, int(ttl.Seconds()), "/", "", secure, true)
}
