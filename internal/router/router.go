package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/listening-survey/internal/config"
	"github.com/stemsi/listening-survey/internal/handler"
	"github.com/stemsi/listening-survey/internal/middleware"
	"github.com/stemsi/listening-survey/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Questionnaire *handler.QuestionnaireHandler
	Response      *handler.ResponseHandler
	System        *handler.SystemHandler
}

// SetupRouter configures the survey routes. submitLimiter guards the only
// write route and may be nil.
func SetupRouter(
	handlers *Handlers,
	submitLimiter *middleware.RateLimiter,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so the survey pages work from any host in dev.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())

	// Questionnaire definitions with many pair trials are the large bodies.
	router.Use(middleware.Brotli())

	router.GET("/health", handlers.System.Health)

	// ─── Page loader ───────────────────────────────────────────────────
	router.GET("/questionnaire", handlers.Questionnaire.PageData)

	// ─── API ───────────────────────────────────────────────────────────
	api := router.Group("/api")
	{
		api.GET("/questionnaires", handlers.Questionnaire.ListIDs)
		api.GET("/questionnaires/:id", handlers.Questionnaire.GetByID)

		submit := []gin.HandlerFunc{handlers.Response.Submit}
		if submitLimiter != nil {
			submit = append([]gin.HandlerFunc{submitLimiter.Middleware()}, submit...)
		}
		api.POST("/responses", submit...)
	}

	return router
}
