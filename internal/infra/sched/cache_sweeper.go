package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper removes expired cache entries.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// CacheSweeper periodically removes expired result cache entries.
type CacheSweeper struct {
	interval time.Duration
	cache    Sweeper
	log      *zerolog.Logger
}

func NewCacheSweeper(interval time.Duration, cache Sweeper, logger *zerolog.Logger) *CacheSweeper {
	compLog := logger.With().Str("component", "CacheSweeper").Logger()
	return &CacheSweeper{interval: interval, cache: cache, log: &compLog}
}

func (w *CacheSweeper) Run(ctx context.Context) error {
	if w.interval <= 0 {
		return nil
	}
	w.log.Info().Dur("interval", w.interval).Msg("Starting cache sweeper")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping cache sweeper")
			return ctx.Err()
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *CacheSweeper) runOnce(ctx context.Context) {
	n, err := w.cache.Sweep(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("cache sweep error")
		return
	}
	if n > 0 {
		w.log.Info().Int("count", n).Msg("expired cache entries removed")
	}
}
