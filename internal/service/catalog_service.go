package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"mediashare/internal/cache"
	"mediashare/internal/config"
	"mediashare/internal/models"
	"mediashare/internal/repository"
	"mediashare/internal/storage"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100

	// fileChecks bounds concurrent stored-file lookups per listed page.
	fileChecks = 8
)

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// NormalizePage applies the default page and limit and caps the limit.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

func newPagination(page, limit int, total int64) Pagination {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: totalPages}
}

// PhotoView is a listed catalog item. FileMissing marks rows whose stored file is gone;
// their paths then point at the placeholder image.
type PhotoView struct {
	models.PhotoSummary
	FileMissing bool
}

type PhotoPage struct {
	Photos     []PhotoView
	Pagination Pagination
}

type SearchInput struct {
	Query    string
	Location string
	Creator  string
	Page     int
	Limit    int
}

type SearchResult struct {
	PhotoPage
	Query SearchInput
}

type CatalogService struct {
	photos      PhotoStore
	store       storage.Store
	cache       Invalidator
	prefix      string
	placeholder string
	log         zerolog.Logger
}

func NewCatalogService(photos PhotoStore, store storage.Store, cache Invalidator, cfg *config.AppConfig, log zerolog.Logger) *CatalogService {
	return &CatalogService{
		photos:      photos,
		store:       store,
		cache:       cache,
		prefix:      cfg.Storage.PublicPrefix,
		placeholder: cfg.Upload.PlaceholderURL,
		log:         log,
	}
}

// List returns a page of the feed, newest first. Unknown categories list everything.
func (s *CatalogService) List(ctx context.Context, page, limit int, category models.Category) (PhotoPage, error) {
	var filter models.PhotoFilter
	switch category {
	case models.CategoryPhoto:
		filter.MediaType = models.MediaTypePhoto
	case models.CategoryVideo:
		filter.MediaType = models.MediaTypeVideo
	}
	return s.page(ctx, filter, page, limit)
}

func (s *CatalogService) ListByCreator(ctx context.Context, creatorID string, page, limit int) (PhotoPage, error) {
	return s.page(ctx, models.PhotoFilter{CreatorID: creatorID}, page, limit)
}

func (s *CatalogService) Search(ctx context.Context, input SearchInput) (SearchResult, error) {
	input.Query = strings.TrimSpace(input.Query)
	input.Location = strings.TrimSpace(input.Location)
	input.Creator = strings.TrimSpace(input.Creator)
	input.Page, input.Limit = NormalizePage(input.Page, input.Limit)

	result, err := s.page(ctx, models.PhotoFilter{
		Query:    input.Query,
		Location: input.Location,
		Creator:  input.Creator,
	}, input.Page, input.Limit)
	if err != nil {
		return SearchResult{}, err
	}
	return SearchResult{PhotoPage: result, Query: input}, nil
}

func (s *CatalogService) Get(ctx context.Context, id string) (PhotoView, error) {
	summary, err := s.photos.GetSummary(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrPhotoNotFound) {
			return PhotoView{}, NotFound("Photo not found")
		}
		return PhotoView{}, Internal(err)
	}
	return s.resolve(ctx, summary), nil
}

// Delete removes an item owned by requesterID together with its stored files. Files are
// removed while the row is locked, and a storage failure keeps the row.
func (s *CatalogService) Delete(ctx context.Context, id, requesterID string) error {
	err := s.photos.Delete(ctx, id, func(photo models.Photo) error {
		if photo.CreatorID != requesterID {
			return Forbidden("You can only delete your own photos")
		}
		for _, path := range photo.StoredPaths() {
			name, ok := storage.NameFromURL(s.prefix, path)
			if !ok {
				s.log.Warn().Str("photo_id", photo.ID).Str("path", path).Msg("stored path outside upload prefix")
				continue
			}
			if err := s.store.Delete(ctx, name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrPhotoNotFound) {
			return NotFound("Photo not found")
		}
		var appErr *Error
		if errors.As(err, &appErr) {
			return err
		}
		return Internal(err)
	}

	if err := s.cache.Invalidate(ctx, cache.TagPhotos, cache.TagSearch); err != nil {
		s.log.Error().Err(err).Str("photo_id", id).Msg("cache invalidation failed")
	}
	s.log.Info().Str("photo_id", id).Str("user_id", requesterID).Msg("media deleted")
	return nil
}

func (s *CatalogService) page(ctx context.Context, filter models.PhotoFilter, page, limit int) (PhotoPage, error) {
	page, limit = NormalizePage(page, limit)

	total, err := s.photos.Count(ctx, filter)
	if err != nil {
		return PhotoPage{}, Internal(err)
	}

	summaries, err := s.photos.List(ctx, filter, limit, (page-1)*limit)
	if err != nil {
		return PhotoPage{}, Internal(err)
	}

	return PhotoPage{Photos: s.resolveAll(ctx, summaries), Pagination: newPagination(page, limit, total)}, nil
}

// resolveAll resolves a page of rows with at most fileChecks storage lookups in flight,
// keeping the listing order.
func (s *CatalogService) resolveAll(ctx context.Context, summaries []models.PhotoSummary) []PhotoView {
	views := make([]PhotoView, len(summaries))
	var g errgroup.Group
	g.SetLimit(fileChecks)
	for i, summary := range summaries {
		i, summary := i, summary
		g.Go(func() error {
			views[i] = s.resolve(ctx, summary)
			return nil
		})
	}
	_ = g.Wait()
	return views
}

// resolve swaps in the placeholder for rows whose stored file no longer exists.
func (s *CatalogService) resolve(ctx context.Context, summary models.PhotoSummary) PhotoView {
	view := PhotoView{PhotoSummary: summary}

	name, ok := storage.NameFromURL(s.prefix, summary.FilePath)
	if ok {
		exists, err := s.store.Exists(ctx, name)
		if err != nil {
			// Unknown is not missing.
			s.log.Warn().Err(err).Str("photo_id", summary.ID).Msg("stored file check failed")
			return view
		}
		ok = exists
	}
	if !ok {
		placeholder := s.placeholder
		view.FileMissing = true
		view.FilePath = placeholder
		view.ThumbnailPath = &placeholder
	}
	return view
}
