package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"
)

var ErrNotExist = errors.New("stored object does not exist")

// Object describes a stored file.
type Object struct {
	Name        string
	Size        int64
	ContentType string
	ModTime     time.Time
}

// Store keeps uploaded media under flat, generated names.
type Store interface {
	Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, name string) (io.ReadCloser, Object, error)
	Exists(ctx context.Context, name string) (bool, error)
	// Delete removes name. A missing object is not an error.
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]Object, error)
}

// URLFor returns the relative URL a catalog row stores for name.
func URLFor(prefix, name string) string {
	return strings.TrimRight(prefix, "/") + "/" + name
}

// NameFromURL is the inverse of URLFor. ok is false for URLs outside prefix.
func NameFromURL(prefix, url string) (string, bool) {
	base := strings.TrimRight(prefix, "/") + "/"
	if !strings.HasPrefix(url, base) {
		return "", false
	}
	name := strings.TrimPrefix(url, base)
	if !ValidName(name) {
		return "", false
	}
	return name, true
}

// ValidName reports whether name is a single flat path element.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && path.Clean(name) == name
}
