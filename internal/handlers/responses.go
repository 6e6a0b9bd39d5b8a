package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"mediashare/internal/middleware"
	"mediashare/internal/models"
	"mediashare/internal/service"
)

const msgInvalidBody = "Invalid request body"

// fail writes err as {"error": msg}. Internal causes are logged, never returned.
func (h HandlerSet) fail(c *gin.Context, err error) {
	kind := service.KindOf(err)
	if kind == service.KindInternal {
		h.log.Error().
			Err(err).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Str("request_id", middleware.RequestIDFrom(c)).
			Msg("request failed")
	}
	c.JSON(statusFor(kind), gin.H{"error": service.PublicMessage(err)})
}

func statusFor(kind service.Kind) int {
	switch kind {
	case service.KindValidation, service.KindUnsupportedMediaType:
		return http.StatusBadRequest
	case service.KindUnauthorized:
		return http.StatusUnauthorized
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	case service.KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// bindMessage turns a JSON binding failure into a client message.
func bindMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Tag() == "email" {
		return "A valid email address is required"
	}
	return msgInvalidBody
}

// queryInt parses an optional integer query parameter; anything unparsable is 0 and
// falls back to the service default.
func queryInt(c *gin.Context, key string) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return v
}

type userResponse struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

func newUserResponse(user models.User) userResponse {
	resp := userResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     string(user.Role),
	}
	if !user.CreatedAt.IsZero() {
		createdAt := user.CreatedAt
		resp.CreatedAt = &createdAt
	}
	return resp
}

type photoResponse struct {
	ID            string    `json:"id"`
	CreatorID     string    `json:"creator_id"`
	Title         string    `json:"title"`
	Caption       *string   `json:"caption"`
	Location      *string   `json:"location"`
	People        *string   `json:"people"`
	FilePath      string    `json:"file_path"`
	OriginalPath  *string   `json:"original_path"`
	ThumbnailPath *string   `json:"thumbnail_path"`
	FileName      string    `json:"file_name"`
	MimeType      string    `json:"mime_type"`
	FileSize      int64     `json:"file_size"`
	MediaType     string    `json:"media_type"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func newPhotoResponse(photo models.Photo) photoResponse {
	return photoResponse{
		ID:            photo.ID,
		CreatorID:     photo.CreatorID,
		Title:         photo.Title,
		Caption:       photo.Caption,
		Location:      photo.Location,
		People:        photo.People,
		FilePath:      photo.FilePath,
		OriginalPath:  photo.OriginalPath,
		ThumbnailPath: photo.ThumbnailPath,
		FileName:      photo.FileName,
		MimeType:      photo.MimeType,
		FileSize:      photo.FileSize,
		MediaType:     string(photo.MediaType),
		CreatedAt:     photo.CreatedAt,
		UpdatedAt:     photo.UpdatedAt,
	}
}

type photoSummaryResponse struct {
	photoResponse
	CreatorUsername string   `json:"creator_username"`
	AvgRating       *float64 `json:"avg_rating"`
	RatingCount     int64    `json:"rating_count"`
	CommentCount    int64    `json:"comment_count"`
	FileMissing     bool     `json:"file_missing,omitempty"`
}

func newPhotoSummaryResponse(view service.PhotoView) photoSummaryResponse {
	return photoSummaryResponse{
		photoResponse:   newPhotoResponse(view.Photo),
		CreatorUsername: view.CreatorUsername,
		AvgRating:       view.AvgRating,
		RatingCount:     view.RatingCount,
		CommentCount:    view.CommentCount,
		FileMissing:     view.FileMissing,
	}
}

func newPhotoSummaries(views []service.PhotoView) []photoSummaryResponse {
	out := make([]photoSummaryResponse, 0, len(views))
	for _, view := range views {
		out = append(out, newPhotoSummaryResponse(view))
	}
	return out
}

type commentResponse struct {
	ID        string    `json:"id"`
	PhotoID   string    `json:"photo_id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newCommentResponse(view models.CommentView) commentResponse {
	return commentResponse{
		ID:        view.ID,
		PhotoID:   view.PhotoID,
		UserID:    view.UserID,
		Content:   view.Content,
		Username:  view.Username,
		Role:      string(view.Role),
		CreatedAt: view.CreatedAt,
		UpdatedAt: view.UpdatedAt,
	}
}

type ratingResponse struct {
	ID        string    `json:"id"`
	PhotoID   string    `json:"photo_id"`
	UserID    string    `json:"user_id"`
	Rating    int       `json:"rating"`
	Username  string    `json:"username,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newRatingResponse(rating models.Rating) ratingResponse {
	return ratingResponse{
		ID:        rating.ID,
		PhotoID:   rating.PhotoID,
		UserID:    rating.UserID,
		Rating:    rating.Rating,
		CreatedAt: rating.CreatedAt,
		UpdatedAt: rating.UpdatedAt,
	}
}

type ratingStatsResponse struct {
	Average float64 `json:"average"`
	Count   int64   `json:"count"`
}
