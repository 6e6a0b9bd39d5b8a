package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"mediashare/internal/cache"
	"mediashare/internal/config"
	"mediashare/internal/ids"
	"mediashare/internal/media/optimize"
	"mediashare/internal/media/sniffer"
	"mediashare/internal/media/svg"
	"mediashare/internal/models"
	"mediashare/internal/repository"
	"mediashare/internal/storage"
)

type UploadInput struct {
	CreatorID    string
	File         io.Reader
	FileName     string
	DeclaredMIME string
	// Size is the client-reported length; -1 when unknown.
	Size     int64
	Title    string
	Caption  string
	Location string
	People   string
}

type UploadService struct {
	photos    PhotoStore
	store     storage.Store
	optimizer optimize.Optimizer
	cache     Invalidator
	cfg       config.UploadConfig
	prefix    string
	log       zerolog.Logger
}

func NewUploadService(
	photos PhotoStore,
	store storage.Store,
	optimizer optimize.Optimizer,
	cache Invalidator,
	cfg *config.AppConfig,
	log zerolog.Logger,
) *UploadService {
	if optimizer == nil {
		optimizer = optimize.Passthrough{}
	}
	return &UploadService{
		photos:    photos,
		store:     store,
		optimizer: optimizer,
		cache:     cache,
		cfg:       cfg.Upload,
		prefix:    cfg.Storage.PublicPrefix,
		log:       log,
	}
}

// TooLarge is the error reported for bodies over the configured upload limit.
func (s *UploadService) TooLarge() error {
	return PayloadTooLarge(fmt.Sprintf("File size too large. Maximum size is %dMB.", s.cfg.MaxBytes/(1<<20)))
}

// Upload stores the file and its derived variants, then inserts the catalog row. Every
// stored object is removed again if a later step fails.
func (s *UploadService) Upload(ctx context.Context, input UploadInput) (models.Photo, error) {
	if input.File == nil {
		return models.Photo{}, Validation("Media file is required")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return models.Photo{}, Validation("Title is required")
	}
	if s.cfg.MaxBytes > 0 && input.Size > s.cfg.MaxBytes {
		return models.Photo{}, s.TooLarge()
	}

	body := &limitedReader{r: input.File, limit: s.cfg.MaxBytes}
	_, head, err := sniffer.Detect(body)
	if err != nil && !errors.Is(err, sniffer.ErrUnknownType) {
		return models.Photo{}, s.readError(err)
	}

	class, err := sniffer.Classify(input.FileName, input.DeclaredMIME, head)
	if err != nil {
		var rejected *sniffer.RejectedError
		if errors.As(err, &rejected) {
			return models.Photo{}, UnsupportedMediaType(rejected.Error())
		}
		return models.Photo{}, Internal(err)
	}

	id := ids.New()
	w := &writtenObjects{store: s.store, log: s.log}
	originalName := id + class.Extension
	stream := io.MultiReader(bytes.NewReader(head), body)

	var (
		data []byte
		size int64
	)
	if class.MediaType == models.MediaTypePhoto {
		data, err = io.ReadAll(stream)
		if err != nil {
			return models.Photo{}, s.readError(err)
		}
		if class.Sniffed == sniffer.TypeSVG {
			if data, err = svg.Sanitize(data); err != nil {
				return models.Photo{}, UnsupportedMediaType(err.Error())
			}
		}
		size = int64(len(data))
		err = w.put(ctx, originalName, bytes.NewReader(data), size, class.MIME)
	} else {
		counter := &countingReader{r: stream}
		err = w.put(ctx, originalName, counter, input.Size, class.MIME)
		size = counter.n
	}
	if err != nil {
		w.cleanup(ctx)
		if errors.Is(err, errTooLarge) {
			return models.Photo{}, s.TooLarge()
		}
		return models.Photo{}, Internal(err)
	}

	originalURL := storage.URLFor(s.prefix, originalName)
	filePath, thumbPath := originalURL, originalURL
	if class.MediaType == models.MediaTypePhoto {
		if optimized, thumb, ok := s.storeVariants(ctx, w, id, data, class.MIME); ok {
			filePath, thumbPath = optimized, thumb
		}
	}

	photo, err := s.photos.Create(ctx, models.Photo{
		ID:            id,
		CreatorID:     input.CreatorID,
		Title:         title,
		Caption:       optional(input.Caption),
		Location:      optional(input.Location),
		People:        optional(input.People),
		FilePath:      filePath,
		OriginalPath:  &originalURL,
		ThumbnailPath: &thumbPath,
		FileName:      input.FileName,
		MimeType:      class.MIME,
		FileSize:      size,
		MediaType:     class.MediaType,
	})
	if err != nil {
		w.cleanup(ctx)
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.Photo{}, Unauthorized(msgAccountGone)
		}
		return models.Photo{}, Internal(err)
	}

	if err := s.cache.Invalidate(ctx, cache.TagPhotos, cache.TagSearch); err != nil {
		s.log.Error().Err(err).Str("photo_id", photo.ID).Msg("cache invalidation failed")
	}

	s.log.Info().
		Str("photo_id", photo.ID).
		Str("user_id", photo.CreatorID).
		Str("media_type", string(photo.MediaType)).
		Int64("size", photo.FileSize).
		Msg("media uploaded")
	return photo, nil
}

// storeVariants runs the optimizer and stores its outputs. Any failure leaves only the
// original behind and reports ok=false.
func (s *UploadService) storeVariants(ctx context.Context, w *writtenObjects, id string, data []byte, mimeType string) (string, string, bool) {
	result, err := s.optimizer.Optimize(ctx, data, mimeType)
	if err != nil {
		if !errors.Is(err, optimize.ErrNotApplicable) {
			s.log.Warn().Err(err).Str("photo_id", id).Str("optimizer", s.optimizer.Name()).Msg("image optimization failed, keeping original")
		}
		return "", "", false
	}

	mark := len(w.names)
	optimizedName := id + "_optimized" + result.Optimized.Ext
	thumbName := id + "_thumb" + result.Thumbnail.Ext
	for _, v := range []struct {
		name    string
		variant optimize.Variant
	}{
		{optimizedName, result.Optimized},
		{thumbName, result.Thumbnail},
	} {
		if err := w.put(ctx, v.name, bytes.NewReader(v.variant.Data), int64(len(v.variant.Data)), v.variant.MIME); err != nil {
			s.log.Warn().Err(err).Str("photo_id", id).Msg("storing image variant failed, keeping original")
			w.cleanupFrom(ctx, mark)
			return "", "", false
		}
	}
	return storage.URLFor(s.prefix, optimizedName), storage.URLFor(s.prefix, thumbName), true
}

func (s *UploadService) readError(err error) error {
	if errors.Is(err, errTooLarge) {
		return s.TooLarge()
	}
	return Internal(fmt.Errorf("read upload: %w", err))
}

// writtenObjects remembers what an upload stored so a failure can undo it.
type writtenObjects struct {
	store storage.Store
	log   zerolog.Logger
	names []string
}

func (w *writtenObjects) put(ctx context.Context, name string, r io.Reader, size int64, contentType string) error {
	// Record before writing; a partial object is removed too.
	w.names = append(w.names, name)
	return w.store.Put(ctx, name, r, size, contentType)
}

func (w *writtenObjects) cleanup(ctx context.Context) {
	w.cleanupFrom(ctx, 0)
}

func (w *writtenObjects) cleanupFrom(ctx context.Context, from int) {
	ctx = context.WithoutCancel(ctx)
	for _, name := range w.names[from:] {
		if err := w.store.Delete(ctx, name); err != nil {
			w.log.Error().Err(err).Str("path", name).Msg("failed to remove stored upload")
		}
	}
	w.names = w.names[:from]
}

var errTooLarge = errors.New("upload exceeds size limit")

// limitedReader fails with errTooLarge once more than limit bytes have been read.
// A non-positive limit disables the check.
type limitedReader struct {
	r     io.Reader
	limit int64
	read  int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.read += int64(n)
	if l.limit > 0 && l.read > l.limit {
		return n, errTooLarge
	}
	return n, err
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
