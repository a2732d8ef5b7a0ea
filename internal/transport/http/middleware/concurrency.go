package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/semaphore"

	resp "empire-mine/internal/transport/http/response"
)

// ConcurrencyLimit caps in-flight requests at limit. A request queues for at
// most wait before it is turned away with CodeTooManyRequests and a
// Retry-After hint.
func ConcurrencyLimit(limit int64, wait time.Duration) gin.HandlerFunc {
	sem := semaphore.NewWeighted(limit)
	retryAfter := strconv.Itoa(max(int(wait.Seconds()), 1))
	return func(c *gin.Context) {
		if !sem.TryAcquire(1) {
			ctx, cancel := context.WithTimeout(c.Request.Context(), wait)
			err := sem.Acquire(ctx, 1)
			cancel()
			if err != nil {
				c.Header("Retry-After", retryAfter)
				c.AbortWithStatusJSON(http.StatusOK, resp.Error(resp.CodeTooManyRequests, "server busy"))
				return
			}
		}
		defer sem.Release(1)
		c.Next()
	}
}
