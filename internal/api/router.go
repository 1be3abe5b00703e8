package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/akylbek/payment-system/order-reconciler/internal/handlers"
	"github.com/akylbek/payment-system/order-reconciler/internal/interfaces"
	"github.com/akylbek/payment-system/order-reconciler/internal/telemetry"
)

func NewRouter(reconciler handlers.Reconciler, repo interfaces.ReconciliationRepository, store responseStore) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(telemetry.TracingMiddleware())

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "order-reconciler"})
	})

	orderHandler := handlers.NewOrderHandler(reconciler)
	runHandler := handlers.NewReconciliationHandler(repo)

	orders := r.Group("/orders/:reference")
	orders.GET("", orderHandler.GetOrder)
	orders.GET("/runs", runHandler.ListRuns)

	commands := orders.Group("", IdempotencyMiddleware(store))
	commands.POST("/captures", orderHandler.Capture)
	commands.POST("/returns", orderHandler.Return)
	commands.POST("/updates", orderHandler.Update)
	commands.POST("/items", orderHandler.AddItems)
	commands.POST("/cancel", orderHandler.Cancel)
	commands.POST("/reference", orderHandler.UpdateReference)
	commands.POST("/transactions/:id/retry-reversal", orderHandler.RetryReversal)

	return r
}
