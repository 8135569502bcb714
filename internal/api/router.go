package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
	"storefront-service/internal/entity"
)

type RouterConfig struct {
	JWTSecret string
	// RateLimit is requests per second per client IP; zero disables limiting.
	RateLimit float64
	RateBurst int
}

// NewRouter registers every storefront route on a new echo instance.
func NewRouter(h *StorefrontHandler, cfg RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	if cfg.RateLimit > 0 {
		e.Use(rateLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":  "ok",
			"service": "storefront-service",
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	g := e.Group("/api", jwtMiddleware([]byte(cfg.JWTSecret)), withActor)
	g.GET("/dashboard", h.GetDashboard)
	g.POST("/quotes/:id/accept", h.AcceptQuote)
	g.POST("/quotes/:id/reject", h.RejectQuote)
	g.POST("/quotes/:id/checkout", h.Checkout)
	g.POST("/payments/:gatewayOrderId/callback", h.PaymentCallback)
	g.GET("/ws", h.Stream)

	admin := g.Group("/admin", requireRole(entity.RoleAdmin))
	admin.PUT("/quotes/:id/respond", h.RespondQuote)
	admin.PUT("/orders/:id/tracking", h.UpdateTracking)
	admin.GET("/quotes/:id/attempts", h.ListAttempts)

	return e
}
