package middlewares

import "github.com/gin-gonic/gin"

// abortError writes the same error envelope the handlers use.
func abortError(c *gin.Context, status int, code, message string) {
	reqID := c.GetString(CtxRequestID)

	errBody := gin.H{
		"code":    code,
		"message": message,
	}
	if reqID != "" {
		errBody["requestId"] = reqID
	}

	c.AbortWithStatusJSON(status, gin.H{
		"message": message,
		"error":   errBody,
	})
}
