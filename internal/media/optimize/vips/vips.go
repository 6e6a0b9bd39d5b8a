// Package vips implements optimize.Optimizer on libvips through bimg.
package vips

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/h2non/bimg"

	"mediashare/internal/media/optimize"
)

// formats lists the input types that are re-encoded. Anything else (animated gif, svg,
// avif) is stored as uploaded.
var formats = map[bimg.ImageType]struct {
	mime string
	ext  string
}{
	bimg.JPEG: {"image/jpeg", ".jpg"},
	bimg.PNG:  {"image/png", ".png"},
	bimg.WEBP: {"image/webp", ".webp"},
}

type Optimizer struct {
	opts optimize.Options
}

// New probes libvips once by round-tripping a generated PNG. An error means the caller
// should use optimize.Passthrough instead.
func New(opts optimize.Options) (*Optimizer, error) {
	if !bimg.IsTypeSupportedSave(bimg.JPEG) {
		return nil, fmt.Errorf("libvips %s cannot encode jpeg", bimg.VipsVersion)
	}

	probe, err := probeImage()
	if err != nil {
		return nil, err
	}
	if _, err := bimg.NewImage(probe).Process(bimg.Options{Width: 4, Height: 4, Crop: true, Type: bimg.JPEG}); err != nil {
		return nil, fmt.Errorf("libvips probe: %w", err)
	}
	return &Optimizer{opts: opts}, nil
}

func (o *Optimizer) Name() string { return "vips" }

func (o *Optimizer) Optimize(ctx context.Context, data []byte, _ string) (optimize.Result, error) {
	if err := ctx.Err(); err != nil {
		return optimize.Result{}, err
	}

	img := bimg.NewImage(data)
	kind := bimg.DetermineImageType(data)
	format, ok := formats[kind]
	if !ok {
		return optimize.Result{}, optimize.ErrNotApplicable
	}

	size, err := img.Size()
	if err != nil {
		return optimize.Result{}, fmt.Errorf("read dimensions: %w", err)
	}

	resize := bimg.Options{
		Quality:       o.opts.Quality,
		Type:          kind,
		StripMetadata: true,
	}
	if kind == bimg.JPEG {
		resize.Interlace = true
	}
	if kind == bimg.PNG {
		resize.Compression = 9
	}
	if size.Width > o.opts.MaxWidth || size.Height > o.opts.MaxHeight {
		resize.Width = o.opts.MaxWidth
		resize.Height = o.opts.MaxHeight
	}

	optimized, err := img.Process(resize)
	if err != nil {
		return optimize.Result{}, fmt.Errorf("optimize: %w", err)
	}

	thumb, err := bimg.NewImage(data).Process(bimg.Options{
		Width:         o.opts.ThumbnailSize,
		Height:        o.opts.ThumbnailSize,
		Crop:          true,
		Enlarge:       true,
		Gravity:       bimg.GravityCentre,
		Quality:       o.opts.ThumbnailQuality,
		Type:          bimg.JPEG,
		StripMetadata: true,
	})
	if err != nil {
		return optimize.Result{}, fmt.Errorf("thumbnail: %w", err)
	}

	return optimize.Result{
		Optimized: optimize.Variant{Data: optimized, MIME: format.mime, Ext: format.ext},
		Thumbnail: optimize.Variant{Data: thumb, MIME: "image/jpeg", Ext: ".jpg"},
	}, nil
}

func probeImage() ([]byte, error) {
	src := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			src.Set(x, y, color.RGBA{R: uint8(x * 32), G: uint8(y * 32), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		return nil, fmt.Errorf("encode probe: %w", err)
	}
	return buf.Bytes(), nil
}
