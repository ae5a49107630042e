package middlewares

import "github.com/gin-gonic/gin"

const (
	defaultCSP = "default-src 'none'; frame-ancestors 'none'"
	hstsValue  = "max-age=31536000; includeSubDomains"
)

// SecurityHeaders marks every response as an uncacheable, non-embeddable
// JSON API response. Auth responses carry bearer tokens, hence no-store.
func SecurityHeaders(hsts bool) gin.HandlerFunc {
	static := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Referrer-Policy":         "no-referrer",
		"Content-Security-Policy": defaultCSP,
		"Cache-Control":           "no-store",
	}
	if hsts {
		static["Strict-Transport-Security"] = hstsValue
	}

	return func(c *gin.Context) {
		for k, v := range static {
			c.Header(k, v)
		}
		c.Next()
	}
}
