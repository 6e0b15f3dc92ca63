// Command server runs the garden daily-task HTTP API.
//
// @title                      Garden Daily Tasks API
// @version                    1.0
// @description                Daily task selection and reward ledger: today's tasks, completions under a daily earning cap, the all-done bonus, and wallet balances.
// @BasePath                   /api/v1
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
// @description                HS256 JWT; the user id is the sub claim. Format: Bearer <token>
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-garden-backend/internal/catalog"
	"github.com/tbourn/go-garden-backend/internal/config"
	httpapi "github.com/tbourn/go-garden-backend/internal/http"
	"github.com/tbourn/go-garden-backend/internal/observability"
	"github.com/tbourn/go-garden-backend/internal/repo"
	"github.com/tbourn/go-garden-backend/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Missing .env is fine; real environment variables win.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	sysutil.ConfigureLogger(os.Stdout, cfg.LogLevel, cfg.LogPretty)
	gin.SetMode(cfg.GinMode)

	appVersion := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)
	log.Info().
		Str("version", appVersion).
		Str("db_driver", cfg.DBDriver).
		Str("timezone", cfg.Timezone).
		Msg("starting garden backend")

	shutdownOTel, err := observability.SetupOTel(context.Background(), cfg.OTEL, appVersion)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.Open(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	// A missing or invalid catalog is not fatal: the API serves empty lists
	// until a SIGHUP reload succeeds.
	tasks := catalog.NewStore(cfg.TasksPath)
	if snap, err := tasks.Reload(); err != nil {
		log.Warn().Err(err).Str("path", cfg.TasksPath).Msg("task catalog unavailable")
	} else {
		log.Info().Int("tasks", snap.Len()).Str("path", cfg.TasksPath).Msg("task catalog loaded")
	}

	if cfg.Auth.JWTSecret == "" && !cfg.Auth.AllowHeader {
		log.Warn().Msg("no auth mode configured (AUTH_JWT_SECRET, AUTH_ALLOW_HEADER): every API call will be rejected")
	}
	if cfg.Auth.AllowHeader {
		log.Warn().Msg("AUTH_ALLOW_HEADER is on: X-User-ID is trusted as-is")
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, db, tasks, cfg)

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	go purgeIdempotencyKeys(janitorCtx, db, cfg.IdempotencyPurgeInterval)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range sigs {
		if sig != syscall.SIGHUP {
			log.Info().Str("signal", sig.String()).Msg("shutting down")
			break
		}
		if snap, err := tasks.Reload(); err != nil {
			log.Error().Err(err).Msg("catalog reload failed; keeping previous catalog")
		} else {
			log.Info().Int("tasks", snap.Len()).Msg("task catalog reloaded")
		}
	}
	signal.Stop(sigs)
	stopJanitor()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("http server forced to shutdown")
	}
	if err := shutdownOTel(ctx); err != nil {
		log.Error().Err(err).Msg("otel shutdown failed")
	}
	if err := repo.Close(db); err != nil {
		log.Warn().Err(err).Msg("database close failed")
	}
	log.Info().Msg("server exited")
}

// purgeIdempotencyKeys deletes lapsed Idempotency-Key records every interval
// until ctx is done.
func purgeIdempotencyKeys(ctx context.Context, db *gorm.DB, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeExpiredIdempotency(ctx, db, now.UTC())
			if err != nil {
				log.Warn().Err(err).Msg("idempotency purge failed")
				continue
			}
			if n > 0 {
				log.Debug().Int64("deleted", n).Msg("expired idempotency keys purged")
			}
		}
	}
}
