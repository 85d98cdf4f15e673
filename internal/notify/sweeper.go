package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/janburzinski/notra/common/logger"
)

type ExpiredLogDeleter interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// RetentionSweeper deletes run log entries past their expiry.
type RetentionSweeper struct {
	logs     ExpiredLogDeleter
	interval time.Duration
	now      func() time.Time

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewRetentionSweeper(logs ExpiredLogDeleter, interval time.Duration) *RetentionSweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &RetentionSweeper{
		logs:      logs,
		interval:  interval,
		now:       time.Now,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run sweeps once immediately and then on every tick until Stop is called
// or ctx ends.
func (s *RetentionSweeper) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "notra.notify.sweeper"})
	defer close(s.stoppedCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "retention sweeper started", "interval", s.interval)
	s.SweepOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			slog.InfoContext(ctx, "retention sweeper stopping")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

func (s *RetentionSweeper) SweepOnce(ctx context.Context) int64 {
	deleted, err := s.logs.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		slog.ErrorContext(ctx, "retention sweep failed", "error", err)
		return 0
	}
	if deleted > 0 {
		slog.InfoContext(ctx, "deleted expired run logs", "count", deleted)
	}
	return deleted
}

func (s *RetentionSweeper) Stop() {
	close(s.stopCh)
}

// Wait blocks until Run has returned.
func (s *RetentionSweeper) Wait() {
	<-s.stoppedCh
}
