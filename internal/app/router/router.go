// Package router assembles the gin engine of the service.
package router

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	coinshandler "crypto_backend/internal/feature/coins/transport/handler"
	"crypto_backend/internal/platform/http/handler"
)

func NewRouter(listings *coinshandler.ListingHandler, details *coinshandler.DetailHandler,
	ready gin.HandlerFunc, metrics http.Handler) *gin.Engine {
	r := gin.Default()
	// browser clients call the API cross-origin
	r.Use(cors.Default())

	// probes
	r.GET("/healthz", handler.Health)
	r.HEAD("/healthz", handler.Health)
	r.GET("/readyz", ready)
	r.GET("/metrics", gin.WrapH(metrics))

	// listing sessions
	l := r.Group("/listings")
	{
		l.POST("", listings.Create)
		l.GET("/:id", listings.Get)
		l.POST("/:id/more", listings.More)
		l.POST("/:id/refresh", listings.Refresh)
		l.POST("/:id/retry", listings.Retry)
		l.DELETE("/:id", listings.Delete)
		l.GET("/:id/ws", listings.Stream)
	}

	// coin detail
	r.GET("/coins/:name", details.Get)
	r.GET("/coins/:name/ws", details.Stream)

	return r
}
