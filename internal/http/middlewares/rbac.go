package middlewares

import (
	"net/http"

	"github.com/geocoder89/collegehub/internal/actorctx"
	"github.com/gin-gonic/gin"
)

// RequireRole admits callers whose verified role is one of roles. It must
// run after RequireAuth.
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role, ok := actorctx.RoleFrom(c.Request.Context())
		if !ok {
			abortError(c, http.StatusUnauthorized, "unauthorized", notAuthorized)
			return
		}

		if _, permitted := allowed[role]; !permitted {
			abortError(c, http.StatusForbidden, "forbidden", "Forbidden")
			return
		}
		c.Next()
	}
}
