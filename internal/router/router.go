package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/studyplan-backend/internal/config"
	"github.com/stemsi/studyplan-backend/internal/handler"
	"github.com/stemsi/studyplan-backend/internal/middleware"
	"github.com/stemsi/studyplan-backend/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Health      *handler.HealthHandler
	Auth        *handler.AuthHandler
	Participant *handler.ParticipantHandler
	OwnerExam   *handler.OwnerExamHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// limiter guards the unauthenticated endpoints; it may be nil.
func SetupRouter(
	auth middleware.TokenValidator,
	handlers *Handlers,
	limiter *middleware.RateLimiter,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", response.HeaderRequestID}
	corsConfig.ExposeHeaders = []string{response.HeaderRequestID, "Content-Disposition"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.BrotliWithConfig(middleware.BrotliConfig{
		Quality: middleware.DefaultBrotliConfig.Quality,
		Skipper: middleware.SkipDownloads,
	}))

	router.NoRoute(func(c *gin.Context) {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	})

	router.GET("/health", handlers.Health.Health)

	api := router.Group("/api/v1")

	limited := func(hs ...gin.HandlerFunc) []gin.HandlerFunc {
		if limiter == nil {
			return hs
		}
		return append([]gin.HandlerFunc{limiter.Middleware()}, hs...)
	}

	// ─── 1. Auth ───────────────────────────────────────────────────────
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/login", limited(handlers.Auth.Login)...)
		authGroup.GET("/me", middleware.RequireOwnerJWT(auth), handlers.Auth.Me)
	}

	// ─── 2. Participant (No Auth) ──────────────────────────────────────
	exams := api.Group("/exams", middleware.NoStore())
	{
		exams.GET("/check", limited(handlers.Participant.Check)...)
		exams.POST("/check", limited(handlers.Participant.Check)...)
		exams.POST("/:exam_id/join", limited(handlers.Participant.Join)...)
		exams.POST("/:exam_id/submit", limited(handlers.Participant.Submit)...)
	}

	api.GET("/results/view", append([]gin.HandlerFunc{middleware.NoStore()}, limited(handlers.Participant.ViewResult)...)...)

	// ─── 3. Owner (JWT) ────────────────────────────────────────────────
	owner := api.Group("/owner", middleware.RequireOwnerJWT(auth), middleware.NoStore())
	{
		owner.GET("/exams", handlers.OwnerExam.ListExams)
		owner.POST("/exams", handlers.OwnerExam.CreateExam)
		owner.GET("/exams/:id", handlers.OwnerExam.GetExam)
		owner.PUT("/exams/:id", handlers.OwnerExam.UpdateExam)
		owner.GET("/exams/:id/results", handlers.OwnerExam.ListResults)
		owner.GET("/exams/:id/results/export", handlers.OwnerExam.ExportResults)
		owner.POST("/exams/:id/send-results", handlers.OwnerExam.SendResults)
	}

	return router
}
