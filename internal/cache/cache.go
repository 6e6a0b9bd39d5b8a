// Package cache memoizes rendered GET responses. Entries carry tags so writes can drop
// every response they affect without waiting for the TTL.
package cache

import (
	"context"
	"errors"
	"net/url"
	"time"
)

const (
	TagPhotos = "photos"
	TagSearch = "search"
)

// Entry is a captured response.
type Entry struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// ErrStale is returned by Set when one of the entry's tags was invalidated after the
// generation passed to it was read.
var ErrStale = errors.New("cache: tags invalidated during fill")

type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	// Generation returns a counter that grows every time any of tags is invalidated.
	Generation(ctx context.Context, tags ...string) (uint64, error)
	// Set stores entry under tags if their generation still equals gen.
	Set(ctx context.Context, key string, entry Entry, ttl time.Duration, gen uint64, tags ...string) error
	// Invalidate drops every entry carrying any of tags and bumps their generation.
	Invalidate(ctx context.Context, tags ...string) error
}

// Key builds the cache key for a request: method, path and query with sorted parameters.
func Key(method, path string, query url.Values) string {
	key := method + " " + path
	if encoded := query.Encode(); encoded != "" {
		key += "?" + encoded
	}
	return key
}
