package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes регистрирует все маршруты API v1
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	protected := api.Group("")
	protected.Use(APIKeyAuthMiddleware(h.cfg, h.logger))

	// Компании и отчеты
	companies := protected.Group("/companies")
	{
		companies.GET("", h.listCompanies)
		companies.GET("/:id", h.getCompany)
		companies.PUT("/:id/wallet", h.assignWallet)
		companies.GET("/:id/incidents", h.listCompanyIncidents)
		companies.GET("/:id/summary", h.getCompanySummary)
	}

	// Инциденты и команды оператора
	incidents := protected.Group("/incidents")
	{
		incidents.POST("", h.createIncident)
		incidents.GET("/:id", h.getIncident)
		incidents.POST("/:id/proof", h.requestProof)
		incidents.POST("/:id/resubmit", h.resubmit)
	}

	// Входящие события внешних сервисов подписываются HMAC, а не API-ключом
	webhooks := api.Group("/webhooks")
	webhooks.Use(SignatureMiddleware(h.cfg.InboundWebhookSecret, h.logger))
	{
		webhooks.POST("/prover", h.proverWebhook)
		webhooks.POST("/chain", h.chainWebhook)
	}

	// Маршрут Health-check
	api.GET("/system/health", h.healthCheck)
}

// RegisterMetrics публикует метрики Prometheus вне группы API
func RegisterMetrics(router *gin.Engine, gatherer prometheus.Gatherer) {
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}
