// Package httpapi wires the HTTP transport (Gin) to the ledger services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, authentication, idempotency, and rate limiting.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-garden-backend/docs"
	"github.com/tbourn/go-garden-backend/internal/config"
	"github.com/tbourn/go-garden-backend/internal/http/handlers"
	"github.com/tbourn/go-garden-backend/internal/http/middleware"
	"github.com/tbourn/go-garden-backend/internal/repo"
	"github.com/tbourn/go-garden-backend/internal/services"
)

// maxBodyBytes caps request bodies. The ledger API takes no payloads beyond
// path parameters, so the limit is small.
const maxBodyBytes = 64 << 10

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and returns the ledger it built, so callers can share it.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Access log (RedactingLogger, or the plain Logger in debug mode)
//  4. Recovery: capture panics after logger
//  5. Body size limiter, gzip
//  6. Metrics
//  7. CORS and security headers
//
// The API group then adds Auth, the Idempotency-Key validator and the rate
// limiter, in that order, so replays are known before buckets are charged.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, catalog services.CatalogSource, cfg config.Config) *services.LedgerService {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging
	if cfg.GinMode == gin.DebugMode {
		r.Use(middleware.Logger())
	} else {
		r.Use(middleware.RedactingLogger(middleware.RedactOptions{
			MaskHeaders: []string{middleware.HeaderUserID},
		}))
	}

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Body size limit and response compression
	r.Use(limitBody(maxBodyBytes))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) CORS posture (allow all if none configured) and security headers
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
		PerUser:      true,
		CSP:          middleware.APIContentSecurityPolicy,
		CSPSkip:      []string{"/swagger/"},
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/catalog
	selector := &services.TaskSelector{DB: db, Catalog: catalog, Location: cfg.Location}
	ledger := &services.LedgerService{DB: db, Selector: selector}
	h := handlers.New(selector, ledger)

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(
		middleware.Auth(middleware.AuthOptions{
			JWTSecret:   []byte(cfg.Auth.JWTSecret),
			AllowHeader: cfg.Auth.AllowHeader,
		}),
		middleware.IdempotencyValidator(
			middleware.IdempotencyOptions{MaxLen: 200, TTL: cfg.IdempotencyTTL},
			idempotencyLookup(db),
			idempotencyRecord(db),
		),
		rl.Handler(),
	)
	{
		api.GET("/tasks/today", h.TodayTasks)
		api.GET("/tasks/history", h.History)
		api.POST("/tasks/bonus", h.ClaimBonus)
		api.POST("/tasks/:id/complete", h.CompleteTask)
		api.GET("/wallet", h.GetWallet)
	}
	return ledger
}

// idempotencyLookup returns the stored result of unexpired keys. Lookup
// errors count as a miss; the ledger is idempotent on its own.
func idempotencyLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, userID, scope, key string, now time.Time) (*middleware.IdempotencyHit, error) {
		rec, err := repo.GetIdempotency(ctx, db, userID, scope, key, now)
		if err != nil || rec == nil {
			return nil, nil
		}
		return &middleware.IdempotencyHit{Awarded: rec.Awarded, Status: rec.Status}, nil
	}
}

// idempotencyRecord stores a key after a successful call. A concurrent
// request that already stored the same key is not an error.
func idempotencyRecord(db *gorm.DB) middleware.IdempotencyRecord {
	return func(ctx context.Context, userID, scope, key string, awarded int64, status int, ttl time.Duration) error {
		_, err := repo.CreateIdempotency(ctx, db, userID, scope, key, awarded, status, ttl)
		if errors.Is(err, repo.ErrDuplicate) {
			return nil
		}
		return err
	}
}

// corsMiddleware returns the CORS handlers for the configured origins. With
// no allowlist every origin is accepted without credentials.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	allowHeaders := []string{
		"Origin", "Content-Type", "Accept", "Authorization",
		middleware.HeaderUserID, middleware.HeaderIdempotencyKey, "If-None-Match",
	}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "ETag", middleware.HeaderReplayed}
	methods := []string{"GET", "POST", "OPTIONS"}

	if len(origins) == 0 {
		return []gin.HandlerFunc{
			// Force ACAO: * even for requests without an Origin header.
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(cors.Config{
				AllowAllOrigins:  true,
				AllowMethods:     methods,
				AllowHeaders:     allowHeaders,
				ExposeHeaders:    exposeHeaders,
				AllowCredentials: false, // must remain false with AllowAllOrigins
				MaxAge:           12 * time.Hour,
			}),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return []gin.HandlerFunc{
		// Echo ACAO for allowlisted origins on plain (non-CORS-preflight) requests too.
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     methods,
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}),
	}
}

// limitBody caps the request body size with http.MaxBytesReader. Reads past
// the cap fail downstream.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
