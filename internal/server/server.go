package server

import (
	"strings"
	"time"

	"github.com/danuartha/kabarkita/internal/config"
	"github.com/danuartha/kabarkita/internal/handler"
	"github.com/danuartha/kabarkita/internal/middleware"
	"github.com/danuartha/kabarkita/internal/repository"
	"github.com/danuartha/kabarkita/internal/service"
	"github.com/danuartha/kabarkita/pkg/storage"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/meilisearch/meilisearch-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires repositories, services and handlers and returns the router.
// redisClient and searchClient may be nil; the affected features degrade
// gracefully (no rate limiting, no search).
func New(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, searchClient meilisearch.ServiceManager, media storage.MediaStorage) *gin.Engine {
	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	likeRepo := repository.NewLikeRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	tokenTTL := time.Duration(cfg.JWTTTLMinutes) * time.Minute

	searchService := service.NewSearchService(searchClient)

	authService := service.NewAuthService(userRepo, activityRepo, cfg.JWTSecret, tokenTTL)
	authHandler := handler.NewAuthHandler(authService)

	likeService := service.NewLikeService(likeRepo, postRepo, commentRepo, activityRepo)

	postService := service.NewPostService(postRepo, userRepo, categoryRepo, activityRepo, searchService, redisClient, cfg.RateLimitPost)
	postHandler := handler.NewPostHandler(postService, likeService)

	commentService := service.NewCommentService(commentRepo, postRepo, userRepo, activityRepo, redisClient, cfg.RateLimitComment)
	commentHandler := handler.NewCommentHandler(commentService, likeService)

	categoryService := service.NewCategoryService(categoryRepo)
	categoryHandler := handler.NewCategoryHandler(categoryService)

	profileService := service.NewProfileService(userRepo, activityRepo, media, cfg.CloudinaryUploadFolder)
	profileHandler := handler.NewProfileHandler(profileService, cfg.MaxAvatarSizeBytes)

	adminService := service.NewAdminService(userRepo, postRepo, commentRepo, activityRepo)
	adminHandler := handler.NewAdminHandler(adminService)

	authMiddleware := middleware.NewAuthMiddleware(userRepo, cfg.JWTSecret)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	setupCORS(router, cfg.AllowedOrigins)

	api := router.Group("/api")

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
	}

	// Public reads; OptionalAuth lets authors see their own unpublished posts.
	public := api.Group("")
	public.Use(authMiddleware.OptionalAuth())
	{
		public.GET("/posts", postHandler.ListPosts)
		public.GET("/posts/search", postHandler.SearchPosts)
		public.GET("/posts/:id", postHandler.GetPost)
		public.GET("/posts/:id/comments", commentHandler.ListByPost)
		public.GET("/categories", categoryHandler.ListCategories)
	}

	protected := api.Group("")
	protected.Use(authMiddleware.RequireAuth())
	{
		protected.POST("/posts", postHandler.CreatePost)
		protected.PUT("/posts/:id", postHandler.UpdatePost)
		protected.DELETE("/posts/:id", postHandler.DeletePost)
		protected.POST("/posts/:id/like", postHandler.ToggleLike)

		protected.POST("/comments", commentHandler.CreateComment)
		protected.DELETE("/comments/:id", commentHandler.DeleteComment)
		protected.POST("/comments/:id/like", commentHandler.ToggleLike)

		profile := protected.Group("/profile")
		{
			profile.GET("/me", profileHandler.GetCurrentProfile)
			profile.GET("/:id", profileHandler.GetProfile)
			profile.PUT("", profileHandler.UpdateProfile)
			profile.PUT("/avatar", profileHandler.UpdateAvatar)
			profile.PUT("/password", profileHandler.ChangePassword)
		}

		admin := protected.Group("/admin")
		admin.Use(authMiddleware.RequireAdmin())
		{
			admin.GET("/stats", adminHandler.GetStats)
			admin.GET("/activities", adminHandler.ListActivities)
			admin.GET("/users", adminHandler.ListUsers)
			admin.PUT("/users/:id", adminHandler.UpdateUser)
			admin.DELETE("/users/:id", adminHandler.DeleteUser)
			admin.GET("/posts", adminHandler.ListPosts)
			admin.PUT("/posts/:id", postHandler.UpdatePost)
			admin.DELETE("/posts/:id", postHandler.DeletePost)
			admin.POST("/categories", categoryHandler.CreateCategory)
			admin.PUT("/categories/:id", categoryHandler.UpdateCategory)
			admin.DELETE("/categories/:id", categoryHandler.DeleteCategory)
		}
	}

	return router
}

func setupCORS(router *gin.Engine, allowedOrigins string) {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = strings.Split(allowedOrigins, ",")
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	router.Use(cors.New(corsConfig))
}
