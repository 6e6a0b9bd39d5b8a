package service

import (
	"bytes"
	"context"
	"errors"
	"os"
	"sort"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediashare/internal/config"
	"mediashare/internal/media/optimize"
	"mediashare/internal/models"
	"mediashare/internal/repository"
	"mediashare/internal/service/servicetest"
	"mediashare/internal/storage"
)

var errBoom = errors.New("boom")

var (
	pngBytes = append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, bytes.Repeat([]byte{7}, 64)...)
	mp4Bytes = append([]byte("\x00\x00\x00\x20ftypisom\x00\x00\x02\x00"), bytes.Repeat([]byte{1}, 256)...)
)

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		Storage: config.StorageConfig{PublicPrefix: "/uploads"},
		Upload: config.UploadConfig{
			MaxBytes:       100 << 20,
			PlaceholderURL: "/placeholder/missing-media.svg",
		},
	}
}

type uploadFixture struct {
	db    *servicetest.MemDB
	dir   string
	store *storage.LocalStore
	cache *servicetest.RecordingInvalidator
	svc   *UploadService
}

func newUploadFixture(t *testing.T, optimizer optimize.Optimizer, mutate func(*config.AppConfig)) uploadFixture {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}
	dir := t.TempDir()
	store, err := storage.NewLocalStore(dir)
	require.NoError(t, err)
	db := servicetest.NewMemDB()
	inv := &servicetest.RecordingInvalidator{}
	return uploadFixture{
		db:    db,
		dir:   dir,
		store: store,
		cache: inv,
		svc:   NewUploadService(db.Photos(), store, optimizer, inv, cfg, zerolog.Nop()),
	}
}

func (f uploadFixture) files(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

type fakeOptimizer struct {
	result optimize.Result
	err    error
}

func (f fakeOptimizer) Name() string { return "fake" }

func (f fakeOptimizer) Optimize(context.Context, []byte, string) (optimize.Result, error) {
	return f.result, f.err
}

func photoInput(title string) UploadInput {
	return UploadInput{
		CreatorID:    "creator-1",
		File:         bytes.NewReader(pngBytes),
		FileName:     "sunset.png",
		DeclaredMIME: "image/png",
		Size:         int64(len(pngBytes)),
		Title:        title,
		Caption:      "  evening  ",
		People:       "",
	}
}

func TestUploadPhotoWithoutOptimizer(t *testing.T) {
	f := newUploadFixture(t, optimize.Passthrough{}, nil)

	photo, err := f.svc.Upload(context.Background(), photoInput("Sunset"))
	require.NoError(t, err)

	assert.Equal(t, models.MediaTypePhoto, photo.MediaType)
	assert.Equal(t, "/uploads/"+photo.ID+".png", photo.FilePath)
	require.NotNil(t, photo.ThumbnailPath)
	assert.Equal(t, photo.FilePath, *photo.ThumbnailPath)
	assert.Equal(t, photo.FilePath, *photo.OriginalPath)
	assert.Equal(t, int64(len(pngBytes)), photo.FileSize)
	require.NotNil(t, photo.Caption)
	assert.Equal(t, "evening", *photo.Caption)
	assert.Nil(t, photo.People)

	name, ok := storage.NameFromURL("/uploads", photo.FilePath)
	require.True(t, ok)
	exists, err := f.store.Exists(context.Background(), name)
	require.NoError(t, err)
	assert.True(t, exists)

	require.Equal(t, 1, f.cache.Count())
	assert.Equal(t, []string{"photos", "search"}, f.cache.Calls()[0])
}

func TestUploadVideo(t *testing.T) {
	f := newUploadFixture(t, optimize.Passthrough{}, nil)

	photo, err := f.svc.Upload(context.Background(), UploadInput{
		CreatorID:    "creator-1",
		File:         bytes.NewReader(mp4Bytes),
		FileName:     "clip.mp4",
		DeclaredMIME: "video/mp4",
		Size:         -1,
		Title:        "Clip",
	})
	require.NoError(t, err)
	assert.Equal(t, models.MediaTypeVideo, photo.MediaType)
	assert.Equal(t, "video/mp4", photo.MimeType)
	assert.Equal(t, int64(len(mp4Bytes)), photo.FileSize)
	assert.Equal(t, []string{photo.ID + ".mp4"}, f.files(t))
}

func TestUploadWithoutTitleLeavesNoFile(t *testing.T) {
	f := newUploadFixture(t, optimize.Passthrough{}, nil)

	_, err := f.svc.Upload(context.Background(), photoInput("   "))
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "Title is required", PublicMessage(err))
	assert.Empty(t, f.files(t))
	assert.Equal(t, 0, f.cache.Count())
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	f := newUploadFixture(t, optimize.Passthrough{}, nil)

	_, err := f.svc.Upload(context.Background(), UploadInput{
		CreatorID:    "creator-1",
		File:         strings.NewReader("%PDF-1.7 ..."),
		FileName:     "doc.pdf",
		DeclaredMIME: "application/pdf",
		Size:         12,
		Title:        "Doc",
	})
	require.ErrorIs(t, err, ErrUnsupportedMediaType)
	assert.Contains(t, PublicMessage(err), "Got: application/pdf")
	assert.Empty(t, f.files(t))
}

func TestUploadTooLarge(t *testing.T) {
	f := newUploadFixture(t, optimize.Passthrough{}, func(cfg *config.AppConfig) { cfg.Upload.MaxBytes = 32 })

	_, err := f.svc.Upload(context.Background(), photoInput("Big"))
	require.ErrorIs(t, err, ErrPayloadTooLarge)

	// Size unknown up front: the reader limit catches it.
	input := photoInput("Big")
	input.Size = -1
	_, err = f.svc.Upload(context.Background(), input)
	require.ErrorIs(t, err, ErrPayloadTooLarge)

	video := UploadInput{CreatorID: "c", File: bytes.NewReader(mp4Bytes), FileName: "v.mp4", DeclaredMIME: "video/mp4", Size: -1, Title: "V"}
	_, err = f.svc.Upload(context.Background(), video)
	require.ErrorIs(t, err, ErrPayloadTooLarge)
	assert.Empty(t, f.files(t))
}

func TestUploadStoresVariants(t *testing.T) {
	optimizer := fakeOptimizer{result: optimize.Result{
		Optimized: optimize.Variant{Data: []byte("small"), MIME: "image/png", Ext: ".png"},
		Thumbnail: optimize.Variant{Data: []byte("thumb"), MIME: "image/jpeg", Ext: ".jpg"},
	}}
	f := newUploadFixture(t, optimizer, nil)

	photo, err := f.svc.Upload(context.Background(), photoInput("Sunset"))
	require.NoError(t, err)

	assert.Equal(t, "/uploads/"+photo.ID+"_optimized.png", photo.FilePath)
	assert.Equal(t, "/uploads/"+photo.ID+"_thumb.jpg", *photo.ThumbnailPath)
	assert.Equal(t, "/uploads/"+photo.ID+".png", *photo.OriginalPath)
	assert.Len(t, f.files(t), 3)
}

func TestUploadFallsBackWhenOptimizerFails(t *testing.T) {
	f := newUploadFixture(t, fakeOptimizer{err: errBoom}, nil)

	photo, err := f.svc.Upload(context.Background(), photoInput("Sunset"))
	require.NoError(t, err)
	assert.Equal(t, *photo.OriginalPath, photo.FilePath)
	assert.Equal(t, []string{photo.ID + ".png"}, f.files(t))
}

func TestUploadCleansUpWhenInsertFails(t *testing.T) {
	optimizer := fakeOptimizer{result: optimize.Result{
		Optimized: optimize.Variant{Data: []byte("small"), MIME: "image/png", Ext: ".png"},
		Thumbnail: optimize.Variant{Data: []byte("thumb"), MIME: "image/jpeg", Ext: ".jpg"},
	}}
	f := newUploadFixture(t, optimizer, nil)
	f.db.FailPhotoCreate = errBoom

	_, err := f.svc.Upload(context.Background(), photoInput("Sunset"))
	require.ErrorIs(t, err, ErrInternal)
	assert.Equal(t, "Internal server error", PublicMessage(err))
	assert.Empty(t, f.files(t))
	assert.Equal(t, 0, f.cache.Count())
}

func TestUploadByDeletedAccount(t *testing.T) {
	f := newUploadFixture(t, optimize.Passthrough{}, nil)
	f.db.FailPhotoCreate = repository.ErrUserNotFound

	_, err := f.svc.Upload(context.Background(), photoInput("Sunset"))
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, "User account no longer exists", PublicMessage(err))
	assert.Empty(t, f.files(t))
}

func TestUploadSanitizesSVG(t *testing.T) {
	f := newUploadFixture(t, optimize.Passthrough{}, nil)
	doc := `<svg xmlns="http://www.w3.org/2000/svg"><script>alert(1)</script><rect/></svg>`

	photo, err := f.svc.Upload(context.Background(), UploadInput{
		CreatorID:    "creator-1",
		File:         strings.NewReader(doc),
		FileName:     "logo.svg",
		DeclaredMIME: "image/svg+xml",
		Size:         int64(len(doc)),
		Title:        "Logo",
	})
	require.NoError(t, err)

	stored, err := os.ReadFile(f.dir + "/" + photo.ID + ".svg")
	require.NoError(t, err)
	assert.NotContains(t, string(stored), "script")
}

func TestUploadCacheFailureDoesNotFail(t *testing.T) {
	f := newUploadFixture(t, optimize.Passthrough{}, nil)
	f.cache.Err = errBoom

	_, err := f.svc.Upload(context.Background(), photoInput("Sunset"))
	require.NoError(t, err)
}
