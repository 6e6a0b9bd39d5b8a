package service

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"mediashare/internal/cache"
	"mediashare/internal/ids"
	"mediashare/internal/models"
	"mediashare/internal/repository"
)

const (
	msgPhotoNotFound = "Photo not found"
	// A valid token whose account was deleted cannot write.
	msgAccountGone = "User account no longer exists"
)

type EngagementService struct {
	photos   PhotoStore
	comments CommentStore
	ratings  RatingStore
	cache    Invalidator
	log      zerolog.Logger
}

func NewEngagementService(photos PhotoStore, comments CommentStore, ratings RatingStore, cache Invalidator, log zerolog.Logger) *EngagementService {
	return &EngagementService{
		photos:   photos,
		comments: comments,
		ratings:  ratings,
		cache:    cache,
		log:      log,
	}
}

func (s *EngagementService) ListComments(ctx context.Context, photoID string) ([]models.CommentView, error) {
	comments, err := s.comments.ListByPhoto(ctx, photoID)
	if err != nil {
		return nil, Internal(err)
	}
	return comments, nil
}

func (s *EngagementService) AddComment(ctx context.Context, photoID, userID, content string) (models.CommentView, error) {
	if photoID == "" || content == "" {
		return models.CommentView{}, Validation("Photo ID and content are required")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return models.CommentView{}, Validation("Comment content cannot be empty")
	}
	if err := s.requirePhoto(ctx, photoID); err != nil {
		return models.CommentView{}, err
	}

	view, err := s.comments.Create(ctx, models.Comment{
		ID:      ids.New(),
		PhotoID: photoID,
		UserID:  userID,
		Content: content,
	})
	if err != nil {
		// The photo may be deleted between the check and the insert.
		if errors.Is(err, repository.ErrPhotoNotFound) {
			return models.CommentView{}, NotFound(msgPhotoNotFound)
		}
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.CommentView{}, Unauthorized(msgAccountGone)
		}
		return models.CommentView{}, Internal(err)
	}
	s.invalidate(ctx, photoID)
	return view, nil
}

func (s *EngagementService) UpdateComment(ctx context.Context, id, userID, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return Validation("Comment content is required")
	}
	comment, err := s.ownComment(ctx, id, userID, "You can only edit your own comments")
	if err != nil {
		return err
	}
	if err := s.comments.UpdateContent(ctx, id, content); err != nil {
		return commentError(err)
	}
	s.invalidate(ctx, comment.PhotoID)
	return nil
}

func (s *EngagementService) DeleteComment(ctx context.Context, id, userID string) error {
	comment, err := s.ownComment(ctx, id, userID, "You can only delete your own comments")
	if err != nil {
		return err
	}
	if err := s.comments.Delete(ctx, id); err != nil {
		return commentError(err)
	}
	s.invalidate(ctx, comment.PhotoID)
	return nil
}

func (s *EngagementService) ownComment(ctx context.Context, id, userID, forbidden string) (models.Comment, error) {
	comment, err := s.comments.GetByID(ctx, id)
	if err != nil {
		return models.Comment{}, commentError(err)
	}
	if comment.UserID != userID {
		return models.Comment{}, Forbidden(forbidden)
	}
	return comment, nil
}

func commentError(err error) error {
	if errors.Is(err, repository.ErrCommentNotFound) {
		return NotFound("Comment not found")
	}
	return Internal(err)
}

type RatingInput struct {
	PhotoID string
	UserID  string
	// Value is nil when the client sent no rating.
	Value *float64
}

// SubmitRating records the user's rating for a photo, replacing an earlier one in place.
// created reports whether this was the user's first rating of the photo.
func (s *EngagementService) SubmitRating(ctx context.Context, input RatingInput) (models.Rating, bool, error) {
	if input.PhotoID == "" || input.Value == nil {
		return models.Rating{}, false, Validation("Photo ID and rating are required")
	}
	value := *input.Value
	if value != math.Trunc(value) || value < 1 || value > 5 {
		return models.Rating{}, false, Validation("Rating must be a number between 1 and 5")
	}
	if err := s.requirePhoto(ctx, input.PhotoID); err != nil {
		return models.Rating{}, false, err
	}

	rating, created, err := s.ratings.Upsert(ctx, models.Rating{
		ID:      ids.New(),
		PhotoID: input.PhotoID,
		UserID:  input.UserID,
		Rating:  int(value),
	})
	if err != nil {
		if errors.Is(err, repository.ErrPhotoNotFound) {
			return models.Rating{}, false, NotFound(msgPhotoNotFound)
		}
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.Rating{}, false, Unauthorized(msgAccountGone)
		}
		return models.Rating{}, false, Internal(err)
	}
	s.invalidate(ctx, input.PhotoID)
	return rating, created, nil
}

// UserRating returns the user's rating of a photo, or nil when there is none.
func (s *EngagementService) UserRating(ctx context.Context, photoID, userID string) (*models.Rating, error) {
	rating, err := s.ratings.GetByUser(ctx, photoID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrRatingNotFound) {
			return nil, nil
		}
		return nil, Internal(err)
	}
	return &rating, nil
}

func (s *EngagementService) ListRatings(ctx context.Context, photoID string) ([]models.RatingView, models.RatingStats, error) {
	ratings, err := s.ratings.ListByPhoto(ctx, photoID)
	if err != nil {
		return nil, models.RatingStats{}, Internal(err)
	}
	stats, err := s.RatingStats(ctx, photoID)
	if err != nil {
		return nil, models.RatingStats{}, err
	}
	return ratings, stats, nil
}

// RatingStats returns the mean rating rounded to two decimals, 0 when unrated.
func (s *EngagementService) RatingStats(ctx context.Context, photoID string) (models.RatingStats, error) {
	stats, err := s.ratings.Stats(ctx, photoID)
	if err != nil {
		return models.RatingStats{}, Internal(err)
	}
	stats.Average = math.Round(stats.Average*100) / 100
	return stats, nil
}

func (s *EngagementService) DeleteRating(ctx context.Context, photoID, userID string) error {
	if err := s.ratings.Delete(ctx, photoID, userID); err != nil {
		if errors.Is(err, repository.ErrRatingNotFound) {
			return NotFound("Rating not found")
		}
		return Internal(err)
	}
	s.invalidate(ctx, photoID)
	return nil
}

func (s *EngagementService) requirePhoto(ctx context.Context, photoID string) error {
	exists, err := s.photos.Exists(ctx, photoID)
	if err != nil {
		return Internal(err)
	}
	if !exists {
		return NotFound(msgPhotoNotFound)
	}
	return nil
}

// Listings carry rating and comment aggregates, so engagement writes drop them.
func (s *EngagementService) invalidate(ctx context.Context, photoID string) {
	if err := s.cache.Invalidate(ctx, cache.TagPhotos, cache.TagSearch); err != nil {
		s.log.Error().Err(err).Str("photo_id", photoID).Msg("cache invalidation failed")
	}
}
