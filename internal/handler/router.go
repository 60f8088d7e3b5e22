package handler

import (
	"sitegen/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func SetupRouter(h *Handler, cfg *config.ServerConfig, log logrus.FieldLogger) *gin.Engine {
	if cfg.Mode == gin.DebugMode || cfg.Mode == gin.TestMode {
		gin.SetMode(cfg.Mode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(RecoveryMiddleware(log))
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORSOrigins))
	r.Use(MetricsMiddleware())

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		api.GET("/health/config", h.ConfigHealth)
		api.GET("/credits/pricing", h.Pricing)

		authed := api.Group("", AuthMiddleware(h.verifier, log))
		{
			authed.GET("/credits", h.GetCredits)
			authed.GET("/credits/transactions", h.ListTransactions)
			authed.POST("/generate", h.Generate)

			authed.POST("/accounts", h.RegisterAccount)
			authed.GET("/accounts/:user_id/credits", h.GetAccountCredits)
			authed.POST("/accounts/:user_id/credits", h.AdjustCredits)

			authed.GET("/websites", h.ListWebsites)
			authed.GET("/websites/:id", h.GetWebsite)
		}
	}

	return r
}
