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

	"github.com/janburzinski/notra/common/crypto"
	"github.com/janburzinski/notra/common/llm"
	"github.com/janburzinski/notra/core/config"
	"github.com/janburzinski/notra/internal/agent"
	"github.com/janburzinski/notra/internal/bootstrap"
	"github.com/janburzinski/notra/internal/ledger"
	"github.com/janburzinski/notra/internal/metrics"
	"github.com/janburzinski/notra/internal/notify"
	"github.com/janburzinski/notra/internal/queue"
	"github.com/janburzinski/notra/internal/repoaccess"
	"github.com/janburzinski/notra/internal/scm"
	"github.com/janburzinski/notra/internal/store"
	"github.com/janburzinski/notra/internal/worker"
	"github.com/janburzinski/notra/internal/workflow"
)

const (
	llmMaxRetries   = 2
	shutdownTimeout = 30 * time.Second
)

func main() {
	fmt.Println(banner)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	proc, err := bootstrap.Start(ctx, config.ServiceTypeWorker)
	if err != nil {
		bootstrap.Exit(ctx, "worker bootstrap failed", err)
	}
	cfg := proc.Config
	stores := store.NewStores(proc.DB.Queries())

	engine, err := buildEngine(cfg, stores)
	if err != nil {
		proc.Close(context.Background())
		bootstrap.Exit(ctx, "failed to build workflow engine", err)
	}

	consumer, err := queue.NewRedisConsumer(proc.Redis, queue.ConsumerConfig{
		Stream:       cfg.Pipeline.RedisStream,
		Group:        cfg.Pipeline.RedisGroup,
		Consumer:     cfg.Pipeline.RedisConsumer,
		DLQStream:    cfg.Pipeline.RedisDLQStream,
		BatchSize:    int64(cfg.Worker.Concurrency),
		Block:        5 * time.Second,
		RequeueDelay: time.Second,
	})
	if err != nil {
		proc.Close(context.Background())
		bootstrap.Exit(ctx, "failed to create consumer", err)
	}

	w := worker.New(consumer, stores.WorkflowRuns(), engine, worker.Config{
		MaxAttempts: cfg.Worker.MaxAttempts,
		Concurrency: cfg.Worker.Concurrency,
	})

	// Generation can run for minutes, so only reclaim well past the
	// generation timeout.
	reclaimer := worker.NewRedisReclaimer(proc.Redis, worker.RedisReclaimerConfig{
		Stream:    cfg.Pipeline.RedisStream,
		Group:     cfg.Pipeline.RedisGroup,
		Consumer:  cfg.Pipeline.RedisConsumer + "-reclaimer",
		MinIdle:   cfg.Worker.GenerationTimeout + 5*time.Minute,
		Interval:  time.Minute,
		BatchSize: 10,
	}, consumer, w.Handle, w.Abandon)

	sweeper := notify.NewRetentionSweeper(stores.RunLogs(), cfg.Worker.RetentionSweep)

	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           metricsMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.ErrorContext(ctx, "metrics server error", "error", err)
		}
	}()

	// The loops get their own context: on SIGTERM in-flight runs are
	// drained through Stop instead of being cancelled.
	runCtx, cancelRuns := context.WithCancel(context.Background())
	defer cancelRuns()

	runErr := make(chan error, 1)
	go func() { runErr <- w.Run(runCtx) }()
	go reclaimer.Run(runCtx)
	go sweeper.Run(runCtx)

	slog.InfoContext(ctx, "worker running",
		"consumer_group", cfg.Pipeline.RedisGroup,
		"consumer_name", cfg.Pipeline.RedisConsumer,
		"concurrency", cfg.Worker.Concurrency,
		"metrics_addr", cfg.MetricsAddr)

	select {
	case <-ctx.Done():
	case err := <-runErr:
		if err != nil {
			slog.ErrorContext(ctx, "worker stopped unexpectedly", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	slog.InfoContext(shutdownCtx, "shutting down worker")

	drained := make(chan struct{})
	go func() {
		reclaimer.Stop()
		sweeper.Stop()
		sweeper.Wait()
		w.Stop()
		close(drained)
	}()
	select {
	case <-drained:
	case <-shutdownCtx.Done():
		slog.WarnContext(shutdownCtx, "drain timed out, cancelling in-flight runs")
		cancelRuns()
	}

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "metrics server shutdown error", "error", err)
	}
	proc.Close(shutdownCtx)
	slog.InfoContext(shutdownCtx, "worker shutdown complete")
}

func buildEngine(cfg config.Config, stores *store.Stores) (*workflow.Engine, error) {
	tokens, err := crypto.DeriveFieldEncryptor([]byte(cfg.Security.TokenEncryptionKey), crypto.PurposeAccessToken)
	if err != nil {
		return nil, fmt.Errorf("deriving access token key: %w", err)
	}
	resolver := repoaccess.NewResolver(stores.Repositories(), tokens)

	llmClient, err := llm.NewAgentClient(llm.Config{
		Provider:        cfg.LLM.Provider,
		APIKey:          cfg.LLM.APIKey,
		BaseURL:         cfg.LLM.BaseURL,
		Model:           cfg.LLM.Model,
		MaxTokens:       cfg.LLM.MaxTokens,
		ReasoningEffort: llm.ReasoningEffort(cfg.LLM.ReasoningEffort),
		MaxRetries:      llmMaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("creating llm client: %w", err)
	}

	skills, err := agent.DefaultSkills()
	if err != nil {
		return nil, fmt.Errorf("loading agent skills: %w", err)
	}

	runtime := agent.New(agent.Params{
		LLM:      llmClient,
		Posts:    stores.Posts(),
		Resolver: resolver,
		Hosts:    scm.NewFactory(cfg.GitHub, nil),
		Skills:   skills,
		Logger:   slog.Default(),
	})

	notifier := notify.NewNotifier(cfg.Email, slog.Default())
	if !notifier.Enabled() {
		slog.Info("email notifications disabled (RESEND_API_KEY or EMAIL_FROM missing)")
	}

	return workflow.New(workflow.Params{
		Triggers:      stores.Triggers(),
		Repositories:  resolver,
		Organizations: stores.Organizations(),
		Ledger:        ledger.New(cfg.Ledger, slog.Default()),
		Audit:         notify.NewAuditSink(stores.RunLogs(), slog.Default()),
		Notifier:      notifier,
		Generator:     runtime,
		Steps:         stores.WorkflowSteps(),
		Timeouts: workflow.Timeouts{
			Step:       cfg.Worker.StepTimeout,
			Generation: cfg.Worker.GenerationTimeout,
		},
		AppURL: cfg.AppURL,
		Logger: slog.Default(),
	}), nil
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

const banner = `
███╗   ██╗ ██████╗ ████████╗██████╗  █████╗
████╗  ██║██╔═══██╗╚══██╔══╝██╔══██╗██╔══██╗
██╔██╗ ██║██║   ██║   ██║   ██████╔╝███████║
██║╚██╗██║██║   ██║   ██║   ██╔══██╗██╔══██║
██║ ╚████║╚██████╔╝   ██║   ██║  ██║██║  ██║
╚═╝  ╚═══╝ ╚═════╝    ╚═╝   ╚═╝  ╚═╝╚═╝  ╚═╝  worker`
