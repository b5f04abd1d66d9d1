// Command server runs the chat relay: the websocket hub at /ws, the REST
// pull endpoints under the API base path, and the attachment store under
// /uploads.
//
//	@title			Chat Relay API
//	@version		1.0
//	@description	REST pull endpoints of the chat relay. Live traffic uses the websocket at /ws.
//	@BasePath		/api/v1
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-chat-relay/internal/config"
	httpapi "github.com/tbourn/go-chat-relay/internal/http"
	"github.com/tbourn/go-chat-relay/internal/media"
	"github.com/tbourn/go-chat-relay/internal/observability"
	"github.com/tbourn/go-chat-relay/internal/presence"
	"github.com/tbourn/go-chat-relay/internal/realtime"
	"github.com/tbourn/go-chat-relay/internal/repo"
	"github.com/tbourn/go-chat-relay/internal/services"
	"github.com/tbourn/go-chat-relay/internal/sysutil"
	"github.com/tbourn/go-chat-relay/internal/timefmt"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = ""

const shutdownGrace = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty, os.Stdout)
	gin.SetMode(cfg.GinMode)
	ver := sysutil.FirstNonEmpty(version, os.Getenv("APP_VERSION"), "dev")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTEL, ver)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn().Err(err).Msg("tracing shutdown")
		}
	}()

	db, err := repo.Open(repo.Options{
		Driver:  cfg.DB.Driver,
		Path:    cfg.DB.Path,
		DSN:     cfg.DB.DSN,
		Tracing: cfg.OTEL.Enabled,
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer func() { _ = sqlDB.Close() }()
	}
	if err := repo.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	store := media.NewStore(cfg.Media.UploadDir, media.Transcoder{
		MaxWidth: cfg.Media.ImageMaxWidth,
		Quality:  cfg.Media.ImageQuality,
	})
	assembler := media.NewAssembler(store)
	defer assembler.Close()

	msgs := &services.MessageService{DB: db, IdempotencyTTL: cfg.IdempotencyTTL}
	reg := presence.NewRegistry(&services.DirectoryService{DB: db}, msgs)
	msgs.Presence = reg
	views := services.NewConversationService(msgs, cfg.Media.ServiceURL, timefmt.NewClock(cfg.Location()))

	rt := realtime.NewRouter(reg, msgs, views, store, assembler, cfg.AdminEnforced)
	hub := realtime.NewHub(rt, realtime.Options{
		MaxMessageBytes: cfg.WS.MaxMessageBytes,
		EventRPS:        cfg.WS.EventRPS,
		EventBurst:      cfg.WS.EventBurst,
		AllowedOrigins:  cfg.WS.AllowedOrigins,
	})

	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		Messages:    msgs,
		Views:       views,
		Sender:      rt,
		Realtime:    hub,
		Live:        hub,
		Idempotency: httpapi.IdempotencyLookup(db),
		UploadDir:   cfg.Media.UploadDir,
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("version", ver).
			Str("db_driver", cfg.DB.Driver).
			Str("timezone", cfg.Location().String()).
			Bool("admin_enforced", cfg.AdminEnforced).
			Msg("chat relay listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	// upgraded websockets are hijacked, so Shutdown does not wait for them
	hub.Shutdown(sctx)
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	log.Info().Msg("stopped")
	return nil
}
