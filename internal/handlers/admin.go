package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mediashare/internal/service"
)

type createCreatorRequest struct {
	Username string `json:"username"`
	Email    string `json:"email" binding:"omitempty,email"`
	Password string `json:"password"`
}

func (h HandlerSet) CreateCreator(c *gin.Context) {
	var req createCreatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindMessage(err)})
		return
	}

	user, err := h.auth.CreateCreator(c.Request.Context(), service.CreateCreatorInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Creator account created successfully",
		"user":    newUserResponse(user),
	})
}

func (h HandlerSet) ListUsers(c *gin.Context) {
	users, err := h.auth.ListUsers(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	items := make([]userResponse, 0, len(users))
	for _, user := range users {
		items = append(items, newUserResponse(user))
	}

	c.JSON(http.StatusOK, gin.H{
		"users": items,
	})
}
