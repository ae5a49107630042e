package middlewares

import (
	"net/http"
	"strings"

	"github.com/geocoder89/collegehub/internal/actorctx"
	"github.com/geocoder89/collegehub/internal/auth"
	"github.com/gin-gonic/gin"
)

const notAuthorized = "Not authorized"

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	jwt TokenVerifier
}

func NewAuthMiddleware(jwt TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)

	return token, token != ""
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := BearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortError(c, http.StatusUnauthorized, "unauthorized", notAuthorized)
			return
		}

		claims, err := m.jwt.Verify(raw)
		if err != nil {
			abortError(c, http.StatusUnauthorized, "unauthorized", notAuthorized)
			return
		}

		c.Request = c.Request.WithContext(actorctx.WithActor(c.Request.Context(), claims.UserID, claims.Role))

		c.Next()
	}
}
