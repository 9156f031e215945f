package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/careloop/signaling/internal/adapters/agora"
	"github.com/careloop/signaling/internal/adapters/cache"
	"github.com/careloop/signaling/internal/adapters/httpapi"
	"github.com/careloop/signaling/internal/adapters/push"
	"github.com/careloop/signaling/internal/adapters/store"
	"github.com/careloop/signaling/internal/app"
	"github.com/careloop/signaling/internal/config"
	"github.com/careloop/signaling/internal/core"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open message store")
	}
	defer db.Close()

	var tokens core.TokenCache
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedis(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect token cache")
		}
		defer rc.Close()
		tokens = rc
	} else {
		log.Info().Msg("no redis configured, using in-memory token cache")
		tokens = cache.NewMemory()
	}

	var signer core.CredentialSigner
	mediaAppID := ""
	if cfg.Media.Enabled {
		s, err := agora.NewSigner(cfg.Media.AppID, cfg.Media.Certificate)
		if err != nil {
			log.Fatal().Err(err).Msg("media credentials enabled but not configured")
		}
		signer = s
		mediaAppID = s.AppID()
	}
	broker := app.NewCredentialBroker(tokens, signer, cfg.Media.Enabled)

	registry := app.NewRegistry(cfg.MailboxCap)
	disp := app.NewDispatcher(registry)
	calls := app.NewCallManager(disp, broker, db, cfg.RingTimeout, cfg.Media.TokenTTL)

	reaper := app.NewReaper(registry, calls, cfg.ReapInterval, cfg.StaleAfter)
	go reaper.Run(ctx)

	handlers := &httpapi.Handlers{
		Registry:   registry,
		Disp:       disp,
		Calls:      calls,
		Messages:   db,
		Users:      db,
		Broker:     broker,
		MediaAppID: mediaAppID,
		TokenTTL:   cfg.Media.TokenTTL,
		Limiter:    httpapi.NewUserRateLimiter(cfg.TokenRateLimit, cfg.TokenRateWindow),
	}
	wsCtl := &push.Controller{
		Registry:  registry,
		Disp:      disp,
		Calls:     calls,
		Messages:  db,
		Users:     db,
		ReadLimit: cfg.ReadLimit,
	}

	r := httpapi.SetupRouter(ctx, cfg, handlers, wsCtl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("signaling server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	<-reaper.Done()
	log.Info().Msg("Server exited gracefully")
}
