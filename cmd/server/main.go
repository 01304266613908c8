// Command server runs the Messenger webhook relay: it receives message
// deliveries from the platform, resolves a location from the text via the
// NLU service, fetches case statistics, and replies to the sender.
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

	"github.com/tbourn/go-messenger-bot/internal/config"
	httpapi "github.com/tbourn/go-messenger-bot/internal/http"
	"github.com/tbourn/go-messenger-bot/internal/messenger"
	"github.com/tbourn/go-messenger-bot/internal/nlu"
	"github.com/tbourn/go-messenger-bot/internal/observability"
	"github.com/tbourn/go-messenger-bot/internal/repo"
	"github.com/tbourn/go-messenger-bot/internal/services"
	"github.com/tbourn/go-messenger-bot/internal/session"
	"github.com/tbourn/go-messenger-bot/internal/stats"
	"github.com/tbourn/go-messenger-bot/internal/sysutil"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Local development convenience; production supplies real env vars.
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	sysutil.SetupLogging(cfg.LogLevel, cfg.LogPretty)
	gin.SetMode(cfg.GinMode)

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("tracing setup failed")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("tracing shutdown failed")
		}
	}()

	store, err := newSessionStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("session store setup failed")
	}

	relay := services.NewRelayService(
		store,
		nlu.NewWitClient(cfg.NLU, cfg.OutboundTimeout),
		stats.NewCovidClient(cfg.Stats, cfg.OutboundTimeout),
		messenger.NewGraphClient(cfg.Messenger, cfg.OutboundTimeout),
	)

	engine := gin.New()
	httpapi.RegisterRoutes(engine, relay, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
	if err := runServer(ctx, srv); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
	log.Info().Msg("server stopped")
}

// newSessionStore picks the store driver: SQLite-backed when a database path
// is configured, otherwise in-memory with TTL eviction.
func newSessionStore(cfg config.Config) (session.Store, error) {
	if cfg.Session.DBPath == "" {
		return session.NewMemoryStore(session.WithTTL(cfg.Session.TTL)), nil
	}

	db, err := repo.OpenSQLite(cfg.Session.DBPath)
	if err != nil {
		return nil, err
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, err
	}
	log.Info().Str("path", cfg.Session.DBPath).Msg("using persistent session store")
	return session.NewGormStore(db), nil
}

// runServer serves until the context is cancelled, then drains with a
// bounded shutdown deadline.
func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
