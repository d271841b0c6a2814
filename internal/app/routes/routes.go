package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/memoria-app/memoria/internal/app/controllers"
	"github.com/memoria-app/memoria/internal/app/models/dto"
	"github.com/memoria-app/memoria/internal/middleware"
	"github.com/memoria-app/memoria/internal/pkg/realtime"
)

// SetupRouter configures all application routes
func SetupRouter(
	router *gin.Engine,
	authController *controllers.AuthController,
	profileController *controllers.ProfileController,
	groupController *controllers.GroupController,
	memoryController *controllers.MemoryController,
	realtimeHandler *realtime.Handler,
	authMiddleware *middleware.AuthMiddleware,
) {
	// API version group
	v1 := router.Group("/api/v1")

	// --- Public Auth routes ---
	auth := v1.Group("/auth")
	{
		auth.POST("/register", authController.Register)
		auth.POST("/login", authController.Login)
		auth.POST("/refresh", authController.RefreshToken)
		auth.POST("/logout", authController.Logout)
		auth.GET("/verify-email", authController.VerifyEmail)
		auth.POST("/resend-verification", authController.ResendVerification)
	}

	// Username availability must work during signup, before any token exists
	v1.GET("/profile/username-check", profileController.CheckUsername)

	// --- Authenticated Routes Group ---
	authenticated := v1.Group("")
	authenticated.Use(authMiddleware.JWTAuth())

	// Profile stays reachable with an unverified email so users can fix
	// their data; everything else requires a confirmed address.
	authenticated.GET("/profile", profileController.GetMyProfile)
	authenticated.PUT("/profile", profileController.UpdateMyProfile)

	verified := authenticated.Group("")
	verified.Use(authMiddleware.EmailVerificationRequired())
	{
		groups := verified.Group("/groups")
		{
			groups.GET("/mine", groupController.ListMine)
			groups.GET("/explore", groupController.Explore)
			groups.POST("", groupController.Create)
			groups.GET("/:id", groupController.Get)
			groups.GET("/:id/members", groupController.ListMembers)
			groups.PUT("/:id", groupController.Update)
			groups.PUT("/:id/cover", groupController.UpdateCover)
			groups.POST("/:id/join", groupController.Join)
			groups.DELETE("/:id/membership", groupController.Leave)

			// Memory feed
			groups.GET("/:id/memories", memoryController.List)
			groups.POST("/:id/memories", memoryController.Create)
			groups.POST("/:id/memories/quick", memoryController.QuickCreate)
		}

		verified.DELETE("/memories/:id", memoryController.Delete)

		// Group change feed subscription
		verified.GET("/ws/groups", realtimeHandler.HandleConnection)
	}

	// Health check endpoint (public)
	v1.GET("/health", func(c *gin.Context) {
		c.JSON(200, dto.NewSuccessResponse(gin.H{"status": "ok"}))
	})

	// Swagger and /metrics are set up in bootstrap.go
}
