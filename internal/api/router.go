package api

import (
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"perfdash-backend/config"
	"perfdash-backend/internal/metrics"
	"perfdash-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg config.ServerConfig, m *metrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), mw.RequestLogger(h.log), mw.Metrics(m), mw.CORS(cfg.AllowedOrigins))

	r.GET("/healthz", h.Health)
	if m != nil {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	// The dashboard and monthly views never change at runtime.
	cacheStore := cache.New(cfg.CacheTTL(), 2*cfg.CacheTTL())
	caching := mw.Cache(cacheStore, cfg.CacheTTL())

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/dashboard", caching, h.GetDashboard)
		api.GET("/monthly", caching, h.ListMonths)
		api.GET("/monthly/:month", caching, h.GetMonth)
		api.GET("/monthly/:month/machines/:machine", caching, h.GetMachineMonth)

		api.GET("/machines", h.ListMachines)
		api.POST("/machines", h.CreateMachine)
		api.GET("/machines/:id", h.GetMachine)
		api.PUT("/machines/:id", h.UpdateMachine)
		api.DELETE("/machines/:id", h.DeleteMachine)

		api.GET("/analyses", h.ListAnalyses)
		api.GET("/analyses/:id", h.GetAnalysis)
		api.POST("/analyses/:id/regenerate", h.RegenerateAnalysis)
		api.DELETE("/analyses/:id/regenerate", h.CancelRegeneration)

		api.POST("/assistant/analyses", h.StartAssistant)
		api.GET("/tasks/:id", h.GetTask)

		api.GET("/import/fields", caching, h.ImportFields)
		api.GET("/import/template", h.ImportTemplate)
		api.POST("/import/sessions", h.CreateImportSession)
		api.GET("/import/sessions/:id", h.GetImportSession)
		api.DELETE("/import/sessions/:id", h.DeleteImportSession)
		api.POST("/import/sessions/:id/file", h.UploadImportFile)
		api.PUT("/import/sessions/:id/mapping", h.UpdateImportMapping)
		api.POST("/import/sessions/:id/import", h.StartImport)
		api.POST("/import/sessions/:id/reset", h.ResetImportSession)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
