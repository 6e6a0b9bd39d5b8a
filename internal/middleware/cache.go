package middleware

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"mediashare/internal/cache"
	"mediashare/internal/metrics"
)

const cacheHeader = "X-Cache"

// bodyRecorder tees the response body so it can be stored after the handler ran.
type bodyRecorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Cache serves GET requests from store and stores successful responses under the given
// tags for ttl. A response is not stored when its tags were invalidated while the
// handler ran. Store failures degrade to an uncached request.
func Cache(store cache.Store, ttl time.Duration, log zerolog.Logger, tags ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := cache.Key(c.Request.Method, c.Request.URL.Path, c.Request.URL.Query())

		entry, ok, err := store.Get(ctx, key)
		switch {
		case err != nil:
			metrics.RecordCacheLookup("error")
			log.Warn().Err(err).Str("key", key).Msg("response cache lookup failed")
		case ok:
			metrics.RecordCacheLookup("hit")
			c.Header(cacheHeader, "HIT")
			c.Data(entry.Status, entry.ContentType, entry.Body)
			c.Abort()
			return
		default:
			metrics.RecordCacheLookup("miss")
		}

		gen, err := store.Generation(ctx, tags...)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("response cache generation failed")
			c.Next()
			return
		}

		recorder := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = recorder
		c.Header(cacheHeader, "MISS")

		c.Next()

		if recorder.Status() != http.StatusOK || c.IsAborted() {
			return
		}
		stored := cache.Entry{
			Status:      http.StatusOK,
			ContentType: recorder.Header().Get("Content-Type"),
			Body:        bytes.Clone(recorder.body.Bytes()),
		}
		err = store.Set(ctx, key, stored, ttl, gen, tags...)
		switch {
		case errors.Is(err, cache.ErrStale):
			log.Debug().Str("key", key).Msg("response cache fill skipped after invalidation")
		case err != nil:
			log.Warn().Err(err).Str("key", key).Msg("response cache store failed")
		}
	}
}
