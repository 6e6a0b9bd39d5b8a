package optimize

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPassthroughIsNotApplicable(t *testing.T) {
	var o Optimizer = Passthrough{}
	_, err := o.Optimize(context.Background(), []byte{1, 2, 3}, "image/png")
	assert.ErrorIs(t, err, ErrNotApplicable)
	assert.Equal(t, "none", o.Name())
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, 1920, opts.MaxWidth)
	assert.Equal(t, 1080, opts.MaxHeight)
	assert.Equal(t, 85, opts.Quality)
	assert.Equal(t, 300, opts.ThumbnailSize)
	assert.Equal(t, 80, opts.ThumbnailQuality)
}
