package middleware

import "github.com/gin-gonic/gin"

// SecurityHeaders sets the response headers a browser needs to sandbox API and upload
// responses. Uploaded media is served cross-origin to the frontend.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "SAMEORIGIN")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cross-Origin-Resource-Policy", "cross-origin")
		h.Set("Cross-Origin-Opener-Policy", "same-origin")
		h.Set("Content-Security-Policy", "default-src 'self'; img-src 'self' data: blob:; media-src 'self' blob:; script-src 'self'; object-src 'none'; frame-ancestors 'self'")
		c.Next()
	}
}
