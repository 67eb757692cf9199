package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	resp "user-api/internal/transport/http/response"
)

// MaxBodyBytes limits the request body to n bytes. Declared lengths over the
// limit are refused up front; chunked bodies fail while being decoded.
func MaxBodyBytes(n int64) gin.HandlerFunc {
	if n <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		if c.Request.ContentLength > n {
			resp.Abort(c, resp.CodeTooLarge, "")
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}
