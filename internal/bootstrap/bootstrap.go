// Package bootstrap brings up the dependencies shared by the server and
// worker binaries: config, telemetry, logging, ids, Postgres and Redis.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/janburzinski/notra/common/id"
	"github.com/janburzinski/notra/common/logger"
	"github.com/janburzinski/notra/common/otel"
	"github.com/janburzinski/notra/core/config"
	"github.com/janburzinski/notra/core/db"
)

// Node ids keep snowflake ids from the two binaries apart.
var nodeIDs = map[config.ServiceType]int64{
	config.ServiceTypeServer: 1,
	config.ServiceTypeWorker: 2,
}

type Process struct {
	Config    config.Config
	DB        *db.DB
	Redis     *redis.Client
	telemetry *otel.Telemetry
}

// Start loads config for serviceType and connects everything. Telemetry is
// installed before the logger so production logs can use the OTLP bridge.
func Start(ctx context.Context, serviceType config.ServiceType) (*Process, error) {
	cfg, err := config.Load(serviceType)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	telemetry, err := otel.Setup(ctx, cfg.OTel, cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("otel: %w", err)
	}
	logger.Setup(cfg)

	p := &Process{Config: cfg, telemetry: telemetry}
	slog.InfoContext(ctx, "notra starting",
		"service", serviceType,
		"env", cfg.Env,
		"otel", telemetry != nil)

	if err := id.Init(nodeIDs[serviceType]); err != nil {
		p.Close(ctx)
		return nil, fmt.Errorf("id generator: %w", err)
	}

	if p.DB, err = db.New(ctx, cfg.DB); err != nil {
		p.Close(ctx)
		return nil, fmt.Errorf("database: %w", err)
	}

	redisOpts, err := redis.ParseURL(cfg.Pipeline.RedisURL)
	if err != nil {
		p.Close(ctx)
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	p.Redis = redis.NewClient(redisOpts)
	if err := p.Redis.Ping(ctx).Err(); err != nil {
		p.Close(ctx)
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	slog.InfoContext(ctx, "dependencies connected", "stream", cfg.Pipeline.RedisStream)
	return p, nil
}

// Close releases connections and flushes telemetry. Safe on a partially
// started Process.
func (p *Process) Close(ctx context.Context) {
	if p.Redis != nil {
		_ = p.Redis.Close()
	}
	if p.DB != nil {
		p.DB.Close()
	}
	if err := p.telemetry.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "otel shutdown error", "error", err)
	}
}

// Exit logs err and terminates the process.
func Exit(ctx context.Context, msg string, err error) {
	slog.ErrorContext(ctx, msg, "error", err)
	os.Exit(1)
}
