package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"tttranscribe/internal/domain"
	"tttranscribe/internal/domain/model"
	"tttranscribe/internal/domain/ports/adapter"
	"tttranscribe/internal/domain/ports/repository"
	"tttranscribe/internal/infra/logging"
	"tttranscribe/internal/infra/metrics"
	"tttranscribe/internal/infra/webhook"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ NotificationUseCase = (*notificationUC)(nil)

type NotificationUseCase interface {
	// Notify delivers the terminal event for job. A failed delivery is parked
	// in the dead-letter queue and reported as domain.ErrNotificationFailed.
	Notify(ctx context.Context, job *model.Job) error
	ListDeadLetters(ctx context.Context) ([]*model.DeliveryRecord, error)
	// Replay re-sends one parked delivery. Success removes the record. A
	// replay of the same job already running yields domain.ErrReplayInProgress.
	Replay(ctx context.Context, jobID string) error
	// ReplayDue replays every parked record with fewer than maxAttempts
	// attempts, returning how many were delivered.
	ReplayDue(ctx context.Context, maxAttempts int) (int, error)
}

type NotificationOptions struct {
	ImmediateAttempts int
	Now               func() time.Time
}

type notificationUC struct {
	sender   adapter.WebhookSender
	signer   adapter.Signer
	dlq      repository.DeadLetterRepository
	attempts int
	now      func() time.Time
	log      *zerolog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewNotificationUseCase wires the notifier. A nil sender disables delivery:
// Notify becomes a no-op and nothing is dead-lettered.
func NewNotificationUseCase(sender adapter.WebhookSender, signer adapter.Signer, dlq repository.DeadLetterRepository, opts NotificationOptions, logger *zerolog.Logger) *notificationUC {
	if opts.ImmediateAttempts <= 0 {
		opts.ImmediateAttempts = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	l := logger.With().Str("component", "NotificationUC").Logger()
	return &notificationUC{
		sender:   sender,
		signer:   signer,
		dlq:      dlq,
		attempts: opts.ImmediateAttempts,
		now:      opts.Now,
		log:      &l,
		inflight: make(map[string]struct{}),
	}
}

// delivered is the success criterion: any 2xx, or 409 from a receiver that
// already processed the idempotency key.
func delivered(status int) bool {
	return status == http.StatusConflict || (status >= 200 && status < 300)
}

func (n *notificationUC) Notify(ctx context.Context, job *model.Job) error {
	if n.sender == nil || n.signer == nil {
		return nil
	}
	defer logging.TraceDuration(n.log, "NotificationUC.Notify")()

	ev, ok := model.NewWebhookEvent(job)
	if !ok {
		return fmt.Errorf("%w: job %s is not terminal", domain.ErrInvalidInput, job.ID)
	}
	body, sig, err := webhook.Encode(ev, n.signer)
	if err != nil {
		return err
	}
	rec := &model.DeliveryRecord{
		JobID:          ev.JobID,
		IdempotencyKey: ev.IdempotencyKey,
		Body:           body,
		Signature:      sig,
		Timestamp:      ev.Timestamp,
		CorrelationID:  ev.CorrelationID,
		CreatedAt:      n.now(),
	}
	log := logging.With(logging.WithJobID(ctx, job.ID), n.log)

	var lastErr error
	for i := 0; i < n.attempts; i++ {
		rec.Attempts++
		rec.LastAttemptAt = n.now()
		if lastErr = n.attempt(ctx, rec, "notify"); lastErr == nil {
			log.Info().Str("status", string(ev.Status)).Int("attempts", rec.Attempts).Msg("webhook delivered")
			return nil
		}
		if ctx.Err() != nil {
			break
		}
	}

	rec.LastError = lastErr.Error()
	if err := n.dlq.Put(ctx, rec); err != nil {
		log.Error().Err(err).Msg("failed to store dead letter")
		return fmt.Errorf("%w: %v (dead letter not stored: %v)", domain.ErrNotificationFailed, lastErr, err)
	}
	n.refreshGauge(ctx)
	log.Warn().Err(lastErr).Int("attempts", rec.Attempts).Msg("webhook delivery failed; dead-lettered")
	return fmt.Errorf("%w: %v", domain.ErrNotificationFailed, lastErr)
}

func (n *notificationUC) attempt(ctx context.Context, rec *model.DeliveryRecord, trigger string) error {
	status, err := n.sender.Send(ctx, adapter.WebhookRequest{
		Body:           rec.Body,
		Signature:      rec.Signature,
		IdempotencyKey: rec.IdempotencyKey,
		Timestamp:      rec.Timestamp,
		CorrelationID:  rec.CorrelationID,
	})
	switch {
	case err != nil:
		metrics.IncWebhookDelivery(trigger, "failed")
		return err
	case status == http.StatusConflict:
		metrics.IncWebhookDelivery(trigger, "duplicate")
		return nil
	case delivered(status):
		metrics.IncWebhookDelivery(trigger, "delivered")
		return nil
	default:
		metrics.IncWebhookDelivery(trigger, "failed")
		return fmt.Errorf("receiver responded %d", status)
	}
}

func (n *notificationUC) ListDeadLetters(ctx context.Context) ([]*model.DeliveryRecord, error) {
	return n.dlq.List(ctx)
}

func (n *notificationUC) Replay(ctx context.Context, jobID string) error {
	if n.sender == nil {
		return fmt.Errorf("%w: webhook delivery is not configured", domain.ErrNotificationFailed)
	}
	_, err := n.replay(ctx, jobID, "replay", 0)
	return err
}

// claim marks jobID as being replayed. It reports false when another replay
// holds it.
func (n *notificationUC) claim(jobID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, busy := n.inflight[jobID]; busy {
		return false
	}
	n.inflight[jobID] = struct{}{}
	return true
}

func (n *notificationUC) release(jobID string) {
	n.mu.Lock()
	delete(n.inflight, jobID)
	n.mu.Unlock()
}

// replay makes one attempt for jobID. The record is read after the claim so a
// delivery completed by a concurrent replay is never written back. A positive
// maxAttempts skips records that reached it; skipped reports that case.
func (n *notificationUC) replay(ctx context.Context, jobID, trigger string, maxAttempts int) (skipped bool, err error) {
	if !n.claim(jobID) {
		return true, fmt.Errorf("%w: job %s", domain.ErrReplayInProgress, jobID)
	}
	defer n.release(jobID)

	rec, err := n.dlq.Get(ctx, jobID)
	if err != nil {
		return true, err
	}
	if maxAttempts > 0 && rec.Attempts >= maxAttempts {
		return true, nil
	}
	log := logging.With(logging.WithJobID(ctx, rec.JobID), n.log)

	rec.Attempts++
	rec.LastAttemptAt = n.now()
	if err := n.attempt(ctx, rec, trigger); err != nil {
		rec.LastError = err.Error()
		if perr := n.dlq.Put(ctx, rec); perr != nil {
			log.Error().Err(perr).Msg("failed to update dead letter")
		}
		log.Warn().Err(err).Int("attempts", rec.Attempts).Str("trigger", trigger).Msg("webhook replay failed")
		return false, fmt.Errorf("%w: %v", domain.ErrNotificationFailed, err)
	}
	if err := n.dlq.Delete(ctx, rec.JobID); err != nil && !errors.Is(err, domain.ErrDeadLetterNotFound) {
		return false, err
	}
	n.refreshGauge(ctx)
	log.Info().Int("attempts", rec.Attempts).Str("trigger", trigger).Msg("webhook replay delivered")
	return false, nil
}

func (n *notificationUC) ReplayDue(ctx context.Context, maxAttempts int) (int, error) {
	if n.sender == nil {
		return 0, nil
	}
	recs, err := n.dlq.List(ctx)
	if err != nil {
		return 0, err
	}
	ok := 0
	for _, rec := range recs {
		if ctx.Err() != nil {
			return ok, ctx.Err()
		}
		if maxAttempts > 0 && rec.Attempts >= maxAttempts {
			continue
		}
		if skipped, err := n.replay(ctx, rec.JobID, "scheduled", maxAttempts); err == nil && !skipped {
			ok++
		}
	}
	return ok, nil
}

func (n *notificationUC) refreshGauge(ctx context.Context) {
	if recs, err := n.dlq.List(ctx); err == nil {
		metrics.SetDeadLetters(len(recs))
	}
}
