package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/luyenthi/vstep-backend/internal/config"
	"github.com/luyenthi/vstep-backend/internal/handler"
	"github.com/luyenthi/vstep-backend/internal/middleware"
	"github.com/luyenthi/vstep-backend/internal/response"
	"github.com/luyenthi/vstep-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth     *handler.AuthHandler
	Exam     *handler.ExamHandler
	MockExam *handler.MockExamHandler
	Clock    *handler.ClockHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/register", handlers.Auth.Register)
		auth.POST("/login", handlers.Auth.Login)
		auth.GET("/me", middleware.RequireAuth(authService), handlers.Auth.Me)
	}

	// ─── 2. Exam Catalog Group (Authenticated) ─────────────────────────
	exams := router.Group("/api/v1/exams")
	exams.Use(middleware.RequireAuth(authService))
	{
		exams.GET("", handlers.Exam.List)
		exams.GET("/:id", handlers.Exam.Get)

		// Mock exam session lifecycle. Every :id lookup is scoped to the
		// authenticated owner inside the service layer.
		mock := exams.Group("/mock-exams")
		{
			mock.POST("/random", handlers.MockExam.AssembleRandom)
			mock.POST("", handlers.MockExam.Start)
			mock.GET("", handlers.MockExam.ListMine)
			mock.GET("/:id", handlers.MockExam.GetDetail)
			mock.PUT("/:id/save", handlers.MockExam.SaveProgress)
			mock.PUT("/:id/skill", handlers.MockExam.UpdateCurrentSkill)
			mock.POST("/:id/submit", handlers.MockExam.Submit)
			mock.GET("/:id/result", handlers.MockExam.GetResult)
		}
	}

	// ─── 3. WebSocket Group (Token via Query Param) ────────────────────
	wsGroup := router.Group("/ws/v1")
	wsGroup.Use(middleware.RequireWSAuth(authService))
	{
		wsGroup.GET("/mock-exams/:id/clock", handlers.Clock.SessionClockStream)
	}

	// ─── 4. Admin Group (Admin JWT Required) ───────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdmin(authService))
	{
		adminAPI.POST("/exams", handlers.Exam.Create)
		adminAPI.PUT("/exams/:id", handlers.Exam.Update)
		adminAPI.POST("/exams/:id/publish", handlers.Exam.Publish)
		adminAPI.DELETE("/exams/:id", handlers.Exam.Delete)
	}

	return router
}
