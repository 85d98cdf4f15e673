package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/janburzinski/notra/common/logger"
	"github.com/janburzinski/notra/internal/queue"
)

const defaultMaxDeliveries = 5

type RedisReclaimerConfig struct {
	Stream   string
	Group    string
	Consumer string
	MinIdle  time.Duration
	Interval time.Duration
	// BatchSize caps how many entries one XAUTOCLAIM call takes over.
	BatchSize int64
	// MaxDeliveries moves an entry to the DLQ once it has been handed out
	// this many times without an ack, e.g. because it keeps killing workers.
	MaxDeliveries int64
}

// PoisonHandler gives up on a message that exceeded MaxDeliveries.
type PoisonHandler func(ctx context.Context, msg queue.Message, cause error)

// RedisReclaimer takes over stream entries whose consumer died between
// XREADGROUP and XACK and feeds them back through the worker.
type RedisReclaimer struct {
	client    *redis.Client
	cfg       RedisReclaimerConfig
	queue     Consumer
	processor queue.MessageProcessor
	onPoison  PoisonHandler

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// NewRedisReclaimer wires the reclaimer. onPoison may be nil, in which case
// poisoned messages are only moved to the DLQ.
func NewRedisReclaimer(client *redis.Client, cfg RedisReclaimerConfig, consumer Consumer, processor queue.MessageProcessor, onPoison PoisonHandler) *RedisReclaimer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.MaxDeliveries <= 0 {
		cfg.MaxDeliveries = defaultMaxDeliveries
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &RedisReclaimer{
		client:    client,
		cfg:       cfg,
		queue:     consumer,
		processor: processor,
		onPoison:  onPoison,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run sweeps the pending list on every tick until Stop is called or ctx ends.
func (r *RedisReclaimer) Run(ctx context.Context) {
	defer close(r.stoppedCh)

	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "notra.worker.reclaimer"})
	slog.InfoContext(ctx, "reclaimer started",
		"interval", r.cfg.Interval,
		"min_idle", r.cfg.MinIdle,
		"max_deliveries", r.cfg.MaxDeliveries)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			slog.InfoContext(ctx, "reclaimer stopping")
			return
		case <-ticker.C:
			n, err := r.sweep(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "reclaim sweep failed", "error", err)
			} else if n > 0 {
				slog.InfoContext(ctx, "reclaimed stale runs", "count", n)
			}
		}
	}
}

func (r *RedisReclaimer) Stop() {
	close(r.stopCh)
	<-r.stoppedCh
}

// sweep walks the whole pending list once, following the XAUTOCLAIM cursor.
func (r *RedisReclaimer) sweep(ctx context.Context) (int, error) {
	claimed := 0
	cursor := "0-0"
	for {
		msgs, next, err := r.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   r.cfg.Stream,
			Group:    r.cfg.Group,
			Consumer: r.cfg.Consumer,
			MinIdle:  r.cfg.MinIdle,
			Start:    cursor,
			Count:    r.cfg.BatchSize,
		}).Result()
		if err != nil {
			return claimed, fmt.Errorf("xautoclaim: %w", err)
		}

		for _, msg := range msgs {
			claimed++
			r.handle(ctx, msg)
		}

		if next == "0-0" || next == "" || len(msgs) == 0 {
			return claimed, nil
		}
		cursor = next
	}
}

func (r *RedisReclaimer) handle(ctx context.Context, raw redis.XMessage) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{MessageID: logger.Ptr(raw.ID)})

	msg, err := queue.ParseMessage(raw)
	if err != nil {
		slog.WarnContext(ctx, "dropping unparsable reclaimed message", "error", err)
		_ = r.queue.Ack(ctx, queue.Message{ID: raw.ID, Raw: raw})
		return
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{RunID: logger.Ptr(msg.RunID)})

	deliveries, err := r.deliveryCount(ctx, raw.ID)
	if err != nil {
		slog.WarnContext(ctx, "could not read delivery count", "error", err)
	}
	if deliveries > r.cfg.MaxDeliveries {
		cause := fmt.Errorf("delivered %d times without acknowledgement", deliveries)
		slog.ErrorContext(ctx, "abandoning poisoned run", "deliveries", deliveries)
		if r.onPoison != nil {
			r.onPoison(ctx, msg, cause)
			return
		}
		if err := r.queue.SendDLQ(ctx, msg, cause.Error()); err != nil {
			slog.ErrorContext(ctx, "failed to move poisoned run to dlq", "error", err)
		}
		return
	}

	start := time.Now()
	if err := r.processor(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "reclaimed run failed", "error", err)
		return
	}
	slog.InfoContext(ctx, "reclaimed run processed",
		"deliveries", deliveries,
		"duration_ms", time.Since(start).Milliseconds())
}

func (r *RedisReclaimer) deliveryCount(ctx context.Context, id string) (int64, error) {
	pending, err := r.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: r.cfg.Stream,
		Group:  r.cfg.Group,
		Start:  id,
		End:    id,
		Count:  1,
	}).Result()
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}
	return pending[0].RetryCount, nil
}
