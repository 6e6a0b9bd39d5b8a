package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"mediashare/internal/metrics"
)

// Recovery turns a handler panic into a 500 JSON reply. http.ErrAbortHandler is
// re-raised so net/http can drop the connection.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			if err, ok := r.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(r)
			}

			metrics.PanicsTotal.Inc()
			log.Error().
				Interface("panic", r).
				Str("method", c.Request.Method).
				Str("path", c.Request.URL.Path).
				Str("request_id", RequestIDFrom(c)).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Internal server error",
			})
		}()
		c.Next()
	}
}
