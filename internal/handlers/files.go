package handlers

import (
	"errors"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"mediashare/internal/storage"
)

// placeholderSVG is rendered in place of media whose stored file has gone missing.
const placeholderSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="400" height="300" viewBox="0 0 400 300">` +
	`<rect width="400" height="300" fill="#e5e7eb"/>` +
	`<path d="M150 190l40-50 30 36 20-24 40 38z" fill="#9ca3af"/>` +
	`<circle cx="165" cy="120" r="14" fill="#9ca3af"/>` +
	`<text x="200" y="240" font-family="sans-serif" font-size="16" text-anchor="middle" fill="#6b7280">Media unavailable</text>` +
	`</svg>`

// ServeFile streams a stored object by its flat name.
func (h HandlerSet) ServeFile(c *gin.Context) {
	name := strings.TrimPrefix(c.Param("name"), "/")
	if !storage.ValidName(name) {
		c.Status(http.StatusNotFound)
		return
	}

	body, obj, err := h.store.Open(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			c.Status(http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("path", name).Msg("open stored file failed")
		c.Status(http.StatusInternalServerError)
		return
	}
	defer body.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(path.Ext(name))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	headers := map[string]string{
		"Cache-Control":          "public, max-age=86400",
		"X-Content-Type-Options": "nosniff",
	}
	// Sanitized on upload, but still never allowed to run script in the site origin.
	if strings.HasPrefix(contentType, "image/svg+xml") {
		headers["Content-Security-Policy"] = "default-src 'none'; style-src 'unsafe-inline'; sandbox"
	}
	if !obj.ModTime.IsZero() {
		headers["Last-Modified"] = obj.ModTime.UTC().Format(http.TimeFormat)
	}

	if c.Request.Method == http.MethodHead {
		for k, v := range headers {
			c.Header(k, v)
		}
		c.Header("Content-Type", contentType)
		c.Header("Content-Length", strconv.FormatInt(obj.Size, 10))
		c.Status(http.StatusOK)
		return
	}

	c.DataFromReader(http.StatusOK, obj.Size, contentType, body, headers)
}

func (h HandlerSet) Placeholder(c *gin.Context) {
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, "image/svg+xml", []byte(placeholderSVG))
}
