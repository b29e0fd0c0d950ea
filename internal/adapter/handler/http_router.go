package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rl1809/sweet-shop/internal/observability"
)

// NewRouter builds the gin engine for the storefront API. metricsHandler may
// be nil to leave /metrics unrouted.
func NewRouter(h *HTTPHandler, logger *zap.Logger, metrics *observability.Metrics, metricsHandler http.Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(logger, metrics))

	r.GET("/health", h.HealthCheck)
	if metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(metricsHandler))
	}

	api := r.Group("/api")
	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)
	api.GET("/categories", h.ListCategories)

	authed := api.Group("", Authenticate(h.auth))
	{
		authed.GET("/auth/me", h.Me)
		authed.GET("/sweets", h.ListItems)
		authed.GET("/sweets/search", h.SearchItems)
		authed.GET("/sweets/:id", h.GetItem)
		authed.POST("/sweets/:id/purchase", h.Purchase)
		authed.GET("/purchases", h.PurchaseHistory)
	}

	admin := authed.Group("", RequireAdmin())
	{
		admin.POST("/sweets", h.CreateItem)
		admin.PUT("/sweets/:id", h.UpdateItem)
		admin.DELETE("/sweets/:id", h.DeleteItem)
		admin.POST("/sweets/:id/restock", h.Restock)
		admin.POST("/categories", h.CreateCategory)
		admin.GET("/admin/stats", h.Stats)
	}

	return r
}
