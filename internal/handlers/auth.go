package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mediashare/internal/middleware"
	"mediashare/internal/models"
	"mediashare/internal/service"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email" binding:"omitempty,email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// RegisterUser handles self-service sign-up.
func (h HandlerSet) RegisterUser(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindMessage(err)})
		return
	}

	result, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	message := "User registered successfully"
	if result.User.Role == models.UserRoleAdmin {
		message = "Admin registered successfully"
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": message,
		"token":   result.Token,
		"user":    newUserResponse(result.User),
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindMessage(err)})
		return
	}

	result, err := h.auth.Login(c.Request.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   result.Token,
		"user":    newUserResponse(result.User),
	})
}

func (h HandlerSet) Me(c *gin.Context) {
	current, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Access token required"})
		return
	}

	user, err := h.auth.Profile(c.Request.Context(), current.ID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user": newUserResponse(user),
	})
}
