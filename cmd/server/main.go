package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/janburzinski/notra/common/crypto"
	"github.com/janburzinski/notra/core/config"
	"github.com/janburzinski/notra/internal/bootstrap"
	"github.com/janburzinski/notra/internal/http/middleware"
	httprouter "github.com/janburzinski/notra/internal/http/router"
	"github.com/janburzinski/notra/internal/ledger"
	"github.com/janburzinski/notra/internal/queue"
	"github.com/janburzinski/notra/internal/service"
	"github.com/janburzinski/notra/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	fmt.Println(banner)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	proc, err := bootstrap.Start(ctx, config.ServiceTypeServer)
	if err != nil {
		bootstrap.Exit(ctx, "server bootstrap failed", err)
	}
	cfg := proc.Config

	services, err := buildServices(cfg, proc)
	if err != nil {
		proc.Close(context.Background())
		bootstrap.Exit(ctx, "failed to build services", err)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           setupRouter(cfg, services, redis_rate.NewLimiter(proc.Redis)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "http server listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		slog.ErrorContext(ctx, "http server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	slog.InfoContext(shutdownCtx, "shutting down server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}
	proc.Close(shutdownCtx)
	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func buildServices(cfg config.Config, proc *bootstrap.Process) (*service.Services, error) {
	webhookSecrets, err := crypto.DeriveFieldEncryptor([]byte(cfg.Security.TokenEncryptionKey), crypto.PurposeWebhookSecret)
	if err != nil {
		return nil, fmt.Errorf("webhook secret key: %w", err)
	}

	gateway := ledger.New(cfg.Ledger, slog.Default())
	if !gateway.Enabled() {
		slog.Info("credit ledger disabled, using default retention")
	}

	return service.NewServices(
		store.NewStores(proc.DB.Queries()),
		service.NewTxRunner(proc.DB),
		queue.NewRedisProducer(proc.Redis, cfg.Pipeline.RedisStream, slog.Default()),
		gateway,
		webhookSecrets,
		slog.Default(),
	), nil
}

func setupRouter(cfg config.Config, services *service.Services, limiter middleware.Limiter) *gin.Engine {
	router := gin.New()

	// The span must exist before Recovery and Logger run so both see it.
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery(), middleware.Logger())

	httprouter.SetupRoutes(router, services, httprouter.RouterConfig{
		WorkflowSecret:  cfg.Security.WorkflowSecret,
		TraceHeaderName: cfg.Pipeline.TraceHeaderName,
		CommitSHA:       cfg.CommitSHA,
		Limiter:         limiter,
	})
	return router
}

const banner = `
███╗   ██╗ ██████╗ ████████╗██████╗  █████╗
████╗  ██║██╔═══██╗╚══██╔══╝██╔══██╗██╔══██╗
██╔██╗ ██║██║   ██║   ██║   ██████╔╝███████║
██║╚██╗██║██║   ██║   ██║   ██╔══██╗██╔══██║
██║ ╚████║╚██████╔╝   ██║   ██║  ██║██║  ██║
╚═╝  ╚═══╝ ╚═════╝    ╚═╝   ╚═╝  ╚═╝╚═╝  ╚═╝  server`
