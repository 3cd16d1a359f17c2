package utils

import (
	"github.com/gin-gonic/gin"
)

// RespondWithError aborts the request with a JSON error body.
func RespondWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error":      message,
		"request_id": c.GetString(RequestIDKey),
	})
}
