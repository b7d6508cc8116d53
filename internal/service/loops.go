package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// TickLoop drives TickService on a fixed interval for deployments that
// run without an external cron trigger.
type TickLoop struct {
	tick     *TickService
	logger   *zap.Logger
	interval time.Duration
	limit    int
}

func NewTickLoop(tick *TickService, interval time.Duration, limit int, logger *zap.Logger) *TickLoop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TickLoop{
		tick:     tick,
		logger:   logger,
		interval: interval,
		limit:    limit,
	}
}

func (l *TickLoop) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			summary, err := l.tick.Run(ctx, TickParams{Limit: l.limit})
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				l.logger.Error("tick failed", zap.Error(err))
				continue
			}
			if summary.Skipped {
				l.logger.Debug("tick skipped, another run holds the lock")
				continue
			}
			if summary.Checked > 0 {
				l.logger.Info("tick completed",
					zap.Int("checked", summary.Checked),
					zap.Int("sent", summary.Sent),
					zap.Int("scheduled", summary.Scheduled),
					zap.Int("suppressed", summary.Suppressed),
					zap.Int("failed", summary.Failed),
					zap.Int("completed", summary.Completed),
					zap.Int("claimMisses", summary.ClaimMisses),
				)
			}
		}
	}
}

// WatcherLoop drives WatcherService on a fixed interval.
type WatcherLoop struct {
	watcher  *WatcherService
	logger   *zap.Logger
	interval time.Duration
}

func NewWatcherLoop(watcher *WatcherService, interval time.Duration, logger *zap.Logger) *WatcherLoop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WatcherLoop{
		watcher:  watcher,
		logger:   logger,
		interval: interval,
	}
}

func (l *WatcherLoop) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			summary, err := l.watcher.Scan(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				l.logger.Error("folder watch scan failed", zap.Error(err))
				continue
			}
			if summary.Enrolled > 0 || summary.Errors > 0 {
				l.logger.Info("folder watch scan completed",
					zap.Int("watchesScanned", summary.WatchesScanned),
					zap.Int("enrolled", summary.Enrolled),
					zap.Int("deactivated", summary.Deactivated),
					zap.Int("errors", summary.Errors),
				)
			}
		}
	}
}
