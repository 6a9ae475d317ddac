package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Replayer re-delivers parked webhook events.
type Replayer interface {
	ReplayDue(ctx context.Context, maxAttempts int) (int, error)
}

// DeadLetterReplayer gives every parked record one bounded attempt per tick.
// Records at maxAttempts are left for manual replay.
type DeadLetterReplayer struct {
	interval    time.Duration
	maxAttempts int
	notifier    Replayer
	log         *zerolog.Logger
}

func NewDeadLetterReplayer(interval time.Duration, maxAttempts int, notifier Replayer, logger *zerolog.Logger) *DeadLetterReplayer {
	compLog := logger.With().Str("component", "DeadLetterReplayer").Logger()
	return &DeadLetterReplayer{
		interval:    interval,
		maxAttempts: maxAttempts,
		notifier:    notifier,
		log:         &compLog,
	}
}

// Run blocks until ctx ends. A zero interval disables scheduled replay.
func (w *DeadLetterReplayer) Run(ctx context.Context) error {
	if w.interval <= 0 {
		w.log.Info().Msg("scheduled replay disabled")
		return nil
	}
	w.log.Info().Dur("interval", w.interval).Int("max_attempts", w.maxAttempts).Msg("Starting dead-letter replayer")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping dead-letter replayer")
			return ctx.Err()
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *DeadLetterReplayer) runOnce(ctx context.Context) {
	n, err := w.notifier.ReplayDue(ctx, w.maxAttempts)
	if err != nil {
		w.log.Error().Err(err).Msg("dead-letter replay error")
	}
	if n > 0 {
		w.log.Info().Int("delivered", n).Msg("dead letters delivered")
	}
}
