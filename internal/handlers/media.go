package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"mediashare/internal/metrics"
	"mediashare/internal/middleware"
	"mediashare/internal/models"
	"mediashare/internal/service"
)

// multipartOverhead is the slack allowed on top of the file limit for form fields and
// part headers.
const multipartOverhead = 1 << 20

func (h HandlerSet) UploadPhoto(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Access token required"})
		return
	}

	if limit := h.cfg.Upload.MaxBytes; limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)
	}

	input := service.UploadInput{CreatorID: user.ID, Size: -1}
	file, header, err := c.Request.FormFile("photo")
	switch {
	case err == nil:
		defer file.Close()
		input.File = file
		input.FileName = header.Filename
		input.DeclaredMIME = header.Header.Get("Content-Type")
		input.Size = header.Size
	case errors.Is(err, http.ErrMissingFile):
	default:
		h.fail(c, h.formError(err))
		return
	}
	input.Title = c.PostForm("title")
	input.Caption = c.PostForm("caption")
	input.Location = c.PostForm("location")
	input.People = c.PostForm("people")

	photo, err := h.uploads.Upload(c.Request.Context(), input)
	if err != nil {
		h.fail(c, err)
		return
	}
	metrics.RecordUpload(string(photo.MediaType), photo.FileSize)

	message := "Photo uploaded and optimized successfully"
	if photo.MediaType == models.MediaTypeVideo {
		message = "Video uploaded successfully"
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": message,
		"photo":   newPhotoResponse(photo),
	})
}

func (h HandlerSet) formError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) || errors.Is(err, multipart.ErrMessageTooLarge) {
		return h.uploads.TooLarge()
	}
	h.log.Warn().Err(err).Msg("multipart form rejected")
	return service.Validation("File upload error")
}

func (h HandlerSet) ListPhotos(c *gin.Context) {
	page, err := h.catalog.List(c.Request.Context(), queryInt(c, "page"), queryInt(c, "limit"), models.Category(c.Query("category")))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"photos":     newPhotoSummaries(page.Photos),
		"pagination": page.Pagination,
	})
}

func (h HandlerSet) GetPhoto(c *gin.Context) {
	view, err := h.catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"photo": newPhotoSummaryResponse(view),
	})
}

func (h HandlerSet) ListCreatorPhotos(c *gin.Context) {
	page, err := h.catalog.ListByCreator(c.Request.Context(), c.Param("creatorId"), queryInt(c, "page"), queryInt(c, "limit"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"photos":     newPhotoSummaries(page.Photos),
		"pagination": page.Pagination,
	})
}

func (h HandlerSet) DeletePhoto(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Access token required"})
		return
	}

	if err := h.catalog.Delete(c.Request.Context(), c.Param("id"), user.ID); err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Photo deleted successfully"})
}

func (h HandlerSet) Search(c *gin.Context) {
	result, err := h.catalog.Search(c.Request.Context(), service.SearchInput{
		Query:    c.Query("q"),
		Location: c.Query("location"),
		Creator:  c.Query("creator"),
		Page:     queryInt(c, "page"),
		Limit:    queryInt(c, "limit"),
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"photos":     newPhotoSummaries(result.Photos),
		"pagination": result.Pagination,
		"query": gin.H{
			"q":        result.Query.Query,
			"location": result.Query.Location,
			"creator":  result.Query.Creator,
		},
	})
}
