package middlewares

import (
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
)

// msgValidation matches the field-agnostic message the handlers use for
// malformed input.
const msgValidation = "Please provide all required fields"

// RequireJSON rejects write requests whose media type is not
// application/json as a validation error. Parameters such as charset are
// accepted.
func RequireJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !hasBodyMethod(c.Request.Method) {
			c.Next()
			return
		}

		mediaType, _, err := mime.ParseMediaType(c.GetHeader("Content-Type"))
		if err != nil || mediaType != "application/json" {
			abortError(c, http.StatusBadRequest, "validation_error", msgValidation)
			return
		}
		c.Next()
	}
}

func hasBodyMethod(method string) bool {
	return method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch
}
