package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"mediashare/internal/middleware"
	"mediashare/internal/service"
)

func (h HandlerSet) ListComments(c *gin.Context) {
	comments, err := h.engagement.ListComments(c.Request.Context(), c.Param("photoId"))
	if err != nil {
		h.fail(c, err)
		return
	}

	items := make([]commentResponse, 0, len(comments))
	for _, comment := range comments {
		items = append(items, newCommentResponse(comment))
	}
	c.JSON(http.StatusOK, gin.H{"comments": items})
}

type addCommentRequest struct {
	PhotoID string `json:"photo_id"`
	Content string `json:"content"`
}

func (h HandlerSet) AddComment(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var req addCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidBody})
		return
	}

	comment, err := h.engagement.AddComment(c.Request.Context(), req.PhotoID, user.ID, req.Content)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Comment added successfully",
		"comment": newCommentResponse(comment),
	})
}

type updateCommentRequest struct {
	Content string `json:"content"`
}

func (h HandlerSet) UpdateComment(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var req updateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidBody})
		return
	}

	if err := h.engagement.UpdateComment(c.Request.Context(), c.Param("id"), user.ID, req.Content); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Comment updated successfully"})
}

func (h HandlerSet) DeleteComment(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	if err := h.engagement.DeleteComment(c.Request.Context(), c.Param("id"), user.ID); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted successfully"})
}

func (h HandlerSet) ListRatings(c *gin.Context) {
	ratings, stats, err := h.engagement.ListRatings(c.Request.Context(), c.Param("photoId"))
	if err != nil {
		h.fail(c, err)
		return
	}

	items := make([]ratingResponse, 0, len(ratings))
	for _, rating := range ratings {
		item := newRatingResponse(rating.Rating)
		item.Username = rating.Username
		items = append(items, item)
	}
	c.JSON(http.StatusOK, gin.H{
		"ratings": items,
		"stats":   ratingStatsResponse{Average: stats.Average, Count: stats.Count},
	})
}

func (h HandlerSet) UserRating(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	rating, err := h.engagement.UserRating(c.Request.Context(), c.Param("photoId"), user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if rating == nil {
		c.JSON(http.StatusOK, gin.H{"rating": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rating": newRatingResponse(*rating)})
}

// ratingValue accepts a rating sent either as a JSON number or as a numeric string.
// Absent and null leave value nil.
type ratingValue struct {
	value   *float64
	invalid bool
}

func (r *ratingValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	var number float64
	if err := json.Unmarshal(data, &number); err == nil {
		r.value = &number
		return nil
	}

	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		r.invalid = true
		return nil
	}
	if text = strings.TrimSpace(text); text == "" {
		return nil
	}
	number, err := strconv.ParseFloat(text, 64)
	if err != nil {
		r.invalid = true
		return nil
	}
	r.value = &number
	return nil
}

type submitRatingRequest struct {
	PhotoID string      `json:"photo_id"`
	Rating  ratingValue `json:"rating"`
}

func (h HandlerSet) SubmitRating(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var req submitRatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidBody})
		return
	}
	if req.Rating.invalid && req.PhotoID != "" {
		h.fail(c, service.Validation("Rating must be a number between 1 and 5"))
		return
	}

	rating, created, err := h.engagement.SubmitRating(c.Request.Context(), service.RatingInput{
		PhotoID: req.PhotoID,
		UserID:  user.ID,
		Value:   req.Rating.value,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	status, message := http.StatusOK, "Rating updated successfully"
	if created {
		status, message = http.StatusCreated, "Rating added successfully"
	}
	c.JSON(status, gin.H{
		"message": message,
		"rating":  newRatingResponse(rating),
	})
}

func (h HandlerSet) DeleteRating(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	if err := h.engagement.DeleteRating(c.Request.Context(), c.Param("photoId"), user.ID); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Rating deleted successfully"})
}
