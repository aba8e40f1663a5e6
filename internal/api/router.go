package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"clinic-presence-backend/config"
	"clinic-presence-backend/internal/mw"
	"clinic-presence-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(s store.Store, cfg *config.Config, webpushOptions *webpush.Options, notifier Notifier) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(s, cfg, webpushOptions, notifier)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst)

	// The cache TTL stays under the clients' 30-second poll so a zone
	// move never waits more than one cycle to show.
	cacheTTL := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 10*time.Minute)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		// Zone assignment state machine
		api.POST("/zone", handler.SetZone)
		api.POST("/appointments/:id/arrive", handler.MarkArrived)
		api.POST("/appointments/:id/no-show", handler.MarkNoShow)
		api.POST("/appointments/:id/cancel-arrival", handler.CancelArrival)
		api.POST("/appointments/:id/start", handler.StartConsultation)
		api.POST("/appointments/:id/end", handler.EndConsultation)
		api.GET("/zones", caching, handler.GetZoneStates)

		// Presence locator
		api.POST("/presence/control", handler.TakeControl)
		api.POST("/presence/heartbeat", handler.Heartbeat)
		api.GET("/presence", caching, handler.GetPresence)
		api.GET("/presence/history", handler.GetPresenceHistory)

		// Reference data
		api.GET("/rooms", caching, handler.GetRooms)

		// Push subscriptions
		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
