package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"menuvista-session/config"
	"menuvista-session/internal/events"
	"menuvista-session/internal/mw"
	"menuvista-session/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg *config.ServerConfig, s store.Store, webpushOptions *webpush.Options, pool Dispatcher, ev *events.OrderEvents) *gin.Engine {
	r := gin.Default()

	if len(cfg.AllowOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	responseCache := mw.NewResponseCache(cfg.CacheTTL)
	handler := NewHandler(s, webpushOptions, pool, ev, responseCache)
	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		sessions := api.Group("/menu-session")
		sessions.POST("/:key/init", handler.InitSession)
		sessions.GET("/:key/status", responseCache.Middleware(), handler.SessionStatus)
		sessions.POST("/:key/orders", handler.PlaceOrder)
		sessions.PUT("/:key/push", handler.PutPushSubscription)
		sessions.DELETE("/:key/push", handler.DeletePushSubscription)

		api.PATCH("/kitchen/orders/:id/status", handler.UpdateOrderStatus)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
