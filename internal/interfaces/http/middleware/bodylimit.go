package middleware

import (
	"net/http"

	"github.com/erp/marketsync/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// DefaultBodyLimit is enough for any sync request body
const DefaultBodyLimit int64 = 64 << 10

// BodyLimit returns a middleware that limits request body size
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
				dto.NewErrorResponse("ERR_REQUEST_TOO_LARGE", "Request body exceeds maximum allowed size"))
			return
		}

		// Wrap the body with a limited reader for streaming requests
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
