package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"mediashare/internal/cache"
	"mediashare/internal/config"
	"mediashare/internal/media/optimize"
	"mediashare/internal/middleware"
	"mediashare/internal/models"
	"mediashare/internal/security"
	"mediashare/internal/service"
	"mediashare/internal/storage"
)

const (
	msgCreatorRequired = "Creator access required"
	msgRoleRequired    = "Valid user role required"
	msgAdminRequired   = "Admin access required"
)

// Dependencies are the backends a HandlerSet is built on.
type Dependencies struct {
	Users     service.UserStore
	Photos    service.PhotoStore
	Comments  service.CommentStore
	Ratings   service.RatingStore
	Store     storage.Store
	Optimizer optimize.Optimizer
	Responses cache.Store
	Tokens    *security.TokenIssuer
}

type HandlerSet struct {
	log        zerolog.Logger
	cfg        *config.AppConfig
	auth       *service.AuthService
	uploads    *service.UploadService
	catalog    *service.CatalogService
	engagement *service.EngagementService
	store      storage.Store
	responses  cache.Store
	tokens     *security.TokenIssuer
}

func NewHandlerSet(log zerolog.Logger, cfg *config.AppConfig, deps Dependencies) HandlerSet {
	return HandlerSet{
		log:        log,
		cfg:        cfg,
		auth:       service.NewAuthService(deps.Users, deps.Tokens, log),
		uploads:    service.NewUploadService(deps.Photos, deps.Store, deps.Optimizer, deps.Responses, cfg, log),
		catalog:    service.NewCatalogService(deps.Photos, deps.Store, deps.Responses, cfg, log),
		engagement: service.NewEngagementService(deps.Photos, deps.Comments, deps.Ratings, deps.Responses, log),
		store:      deps.Store,
		responses:  deps.Responses,
		tokens:     deps.Tokens,
	}
}

// Register mounts the JSON API. router is expected to be the /api group.
func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/health", h.Health)

	authenticated := middleware.Auth(h.tokens)
	anyRole := middleware.RequireRoles(msgRoleRequired, models.UserRoleAdmin, models.UserRoleCreator, models.UserRoleConsumer)
	creators := middleware.RequireRoles(msgCreatorRequired, models.UserRoleCreator, models.UserRoleAdmin)

	auth := router.Group("/auth")
	{
		auth.POST("/register", h.RegisterUser)
		auth.POST("/login", h.Login)
		auth.GET("/me", authenticated, h.Me)
	}

	photos := router.Group("/photos")
	photos.Use(middleware.Cache(h.responses, h.cfg.Cache.ListingTTL, h.log, cache.TagPhotos))
	{
		photos.POST("/upload", authenticated, creators, h.UploadPhoto)
		photos.GET("", h.ListPhotos)
		photos.GET("/:id", h.GetPhoto)
		photos.GET("/creator/:creatorId", h.ListCreatorPhotos)
		photos.DELETE("/:id", authenticated, creators, h.DeletePhoto)
	}

	comments := router.Group("/comments")
	{
		comments.GET("/photo/:photoId", h.ListComments)
		comments.POST("", authenticated, anyRole, h.AddComment)
		comments.PUT("/:id", authenticated, anyRole, h.UpdateComment)
		comments.DELETE("/:id", authenticated, anyRole, h.DeleteComment)
	}

	ratings := router.Group("/ratings")
	{
		ratings.GET("/photo/:photoId", h.ListRatings)
		ratings.GET("/photo/:photoId/user", authenticated, anyRole, h.UserRating)
		ratings.POST("", authenticated, anyRole, h.SubmitRating)
		ratings.DELETE("/photo/:photoId", authenticated, anyRole, h.DeleteRating)
	}

	router.GET("/search", middleware.Cache(h.responses, h.cfg.Cache.SearchTTL, h.log, cache.TagSearch), h.Search)

	admin := router.Group("/admin")
	admin.Use(authenticated, middleware.RequireRoles(msgAdminRequired, models.UserRoleAdmin))
	{
		admin.POST("/create-creator", h.CreateCreator)
		admin.GET("/users", h.ListUsers)
	}
}

// RegisterFiles mounts stored media and the missing-media placeholder outside /api.
func (h HandlerSet) RegisterFiles(router *gin.RouterGroup) {
	prefix := strings.TrimRight(h.cfg.Storage.PublicPrefix, "/")
	router.GET(prefix+"/*name", h.ServeFile)
	router.HEAD(prefix+"/*name", h.ServeFile)

	if placeholder := h.cfg.Upload.PlaceholderURL; strings.HasPrefix(placeholder, "/") && !strings.HasPrefix(placeholder, prefix+"/") {
		router.GET(placeholder, h.Placeholder)
	}
}
