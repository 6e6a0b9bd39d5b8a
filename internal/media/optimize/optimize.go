// Package optimize derives resized and thumbnail variants of uploaded photos.
package optimize

import (
	"context"
	"errors"
)

// ErrNotApplicable is returned when an optimizer leaves the input untouched. Callers
// fall back to using the original for every variant.
var ErrNotApplicable = errors.New("optimization not applicable")

type Options struct {
	MaxWidth         int
	MaxHeight        int
	Quality          int
	ThumbnailSize    int
	ThumbnailQuality int
}

func DefaultOptions() Options {
	return Options{
		MaxWidth:         1920,
		MaxHeight:        1080,
		Quality:          85,
		ThumbnailSize:    300,
		ThumbnailQuality: 80,
	}
}

// Variant is one encoded output.
type Variant struct {
	Data []byte
	MIME string
	Ext  string
}

type Result struct {
	Optimized Variant
	Thumbnail Variant
}

type Optimizer interface {
	Name() string
	Optimize(ctx context.Context, data []byte, mimeType string) (Result, error)
}

// Passthrough never transforms anything.
type Passthrough struct{}

func (Passthrough) Name() string { return "none" }

func (Passthrough) Optimize(context.Context, []byte, string) (Result, error) {
	return Result{}, ErrNotApplicable
}
