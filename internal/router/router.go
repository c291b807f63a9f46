// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/parkops/daypass/internal/config"
	"github.com/parkops/daypass/internal/handler"
	"github.com/parkops/daypass/internal/middleware"
)

// RegisterRoutes registers routes that need no authentication or state.
// Currently it exposes only a health check for load balancers.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterBooking wires the public reservation endpoints. The hold
// endpoint sits behind the Redis token bucket to blunt bursts; the
// availability endpoint gets the short-TTL response cache. Both
// middlewares pass through when Redis is unavailable.
func RegisterBooking(e *echo.Echo, b *handler.BookingHandler, rdb *redis.Client) {
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	e.GET("/v1/parks/:park/facilities/:facility/availability", b.Availability, cache)
	e.POST("/v1/passes/hold", b.CreateHold, limiter)
	e.POST("/v1/passes/commit", b.CommitHold)
	e.POST("/v1/passes/cancel", b.CancelPass)
	e.GET("/v1/passes/:park/:reg", b.GetPass)
}

// RegisterAdmin wires the operator endpoints behind JWT auth and the
// PARK_OPERATOR role. Token issuance belongs to the identity service;
// this server only verifies.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string) {
	g := e.Group("/v1/admin")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("PARK_OPERATOR"))

	g.POST("/capacity", a.ApplyCapacityModifier)
	g.PUT("/facilities/:park/:facility/slots", a.UpdateSlots)
	g.PUT("/facilities/:park/:facility/status", a.SetFacilityStatus)
}
