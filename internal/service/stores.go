package service

import (
	"context"

	"mediashare/internal/models"
)

// The interfaces below are satisfied by the pgx repositories and let the services run
// against in-memory fakes in tests.

type UserStore interface {
	Create(ctx context.Context, user models.User) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	CountByRole(ctx context.Context, role models.UserRole) (int64, error)
	List(ctx context.Context) ([]models.User, error)
}

type PhotoStore interface {
	Create(ctx context.Context, photo models.Photo) (models.Photo, error)
	Exists(ctx context.Context, id string) (bool, error)
	GetSummary(ctx context.Context, id string) (models.PhotoSummary, error)
	List(ctx context.Context, filter models.PhotoFilter, limit, offset int) ([]models.PhotoSummary, error)
	Count(ctx context.Context, filter models.PhotoFilter) (int64, error)
	Delete(ctx context.Context, id string, beforeDelete func(models.Photo) error) error
}

type CommentStore interface {
	Create(ctx context.Context, comment models.Comment) (models.CommentView, error)
	GetByID(ctx context.Context, id string) (models.Comment, error)
	ListByPhoto(ctx context.Context, photoID string) ([]models.CommentView, error)
	UpdateContent(ctx context.Context, id string, content string) error
	Delete(ctx context.Context, id string) error
}

type RatingStore interface {
	Upsert(ctx context.Context, rating models.Rating) (models.Rating, bool, error)
	GetByUser(ctx context.Context, photoID, userID string) (models.Rating, error)
	ListByPhoto(ctx context.Context, photoID string) ([]models.RatingView, error)
	Stats(ctx context.Context, photoID string) (models.RatingStats, error)
	Delete(ctx context.Context, photoID, userID string) error
}

// Invalidator drops cached responses by tag.
type Invalidator interface {
	Invalidate(ctx context.Context, tags ...string) error
}
