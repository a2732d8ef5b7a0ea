package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	resp "empire-mine/internal/transport/http/response"
)

// MaxBodyBytes caps request bodies at n bytes. A declared Content-Length
// over the cap is refused before the handler runs; chunked bodies are cut
// off by http.MaxBytesReader and fail to bind.
func MaxBodyBytes(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > n {
			c.Header("Connection", "close")
			c.AbortWithStatusJSON(http.StatusOK, resp.Error(resp.CodeBadRequest, "request body too large"))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}
