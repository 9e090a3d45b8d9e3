// Package router assembles the HTTP surface: public Twilio webhooks and
// the JWT-protected operator API.
package router

import (
	"net/http"
	"time"

	"missedcall_backend/internal/alerts"
	"missedcall_backend/internal/numberpool"
	"missedcall_backend/internal/onboarding"
	"missedcall_backend/internal/stuck"
	"missedcall_backend/platform/config"
	"missedcall_backend/platform/httpkit"
	"missedcall_backend/platform/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Deps carries the handlers the router mounts.
type Deps struct {
	Config     *config.Config
	Logger     *logger.Logger
	Pool       *pgxpool.Pool
	Webhooks   *onboarding.Handler
	Alerts     *alerts.Handler
	NumberPool *numberpool.Handler
	Stuck      *stuck.Handler
	Extraction interface{ ConsecutiveFailures() int }
}

func New(d Deps) *gin.Engine {
	if d.Config.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestLogger(d.Logger))
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(corsMiddleware(d.Config))

	engine.GET("/api/health", func(c *gin.Context) {
		if err := d.Pool.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "down"})
			return
		}
		body := gin.H{"status": "ok"}
		if d.Extraction != nil {
			body["extractionConsecutiveFailures"] = d.Extraction.ConsecutiveFailures()
		}
		c.JSON(http.StatusOK, body)
	})

	// Twilio signs its requests; the rate limiter is belt-and-braces
	// against a leaked webhook URL.
	webhookLimiter := httpkit.NewIPRateLimiter(30, 60, d.Logger)
	webhooks := engine.Group("/webhooks/twilio")
	webhooks.Use(webhookLimiter.RateLimit())
	webhooks.Use(onboarding.VerifyTwilioSignature(d.Config, d.Logger))
	d.Webhooks.RegisterRoutes(webhooks)

	v1 := engine.Group("/api/v1")
	v1.Use(httpkit.AuthRequired(d.Config))
	d.Alerts.RegisterRoutes(v1.Group("/alerts"))
	d.NumberPool.RegisterRoutes(v1.Group("/numberpool"))
	d.Stuck.RegisterRoutes(v1.Group("/onboarding"))

	return engine
}

func corsMiddleware(cfg config.HTTPConfig) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.GetCORSAllowAll() {
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	} else {
		corsConfig.AllowOrigins = cfg.GetCORSOrigins()
	}
	return cors.New(corsConfig)
}
