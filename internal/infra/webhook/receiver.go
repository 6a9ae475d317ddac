package webhook

import (
	"errors"
	"io"
	"net/http"
	"time"

	"tttranscribe/internal/domain/model"
	"tttranscribe/internal/domain/ports/adapter"
	"tttranscribe/internal/infra/memstore"

	"github.com/rs/zerolog"
)

// Receiver is the cooperative half of at-least-once delivery: it verifies the
// signature and answers 409 for an idempotency key it has already processed.
type Receiver struct {
	signer  adapter.Signer
	seen    *memstore.Store[time.Time]
	onEvent func(model.WebhookEvent) error
	log     *zerolog.Logger
}

func NewReceiver(signer adapter.Signer, onEvent func(model.WebhookEvent) error, logger *zerolog.Logger) *Receiver {
	if onEvent == nil {
		onEvent = func(model.WebhookEvent) error { return nil }
	}
	l := logger.With().Str("component", "WebhookReceiver").Logger()
	return &Receiver{
		signer:  signer,
		seen:    memstore.NewStore[time.Time](),
		onEvent: onEvent,
		log:     &l,
	}
}

func (rc *Receiver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	ev, err := VerifyBody(rc.signer, body)
	if err == nil {
		if hdr := r.Header.Get(HeaderSignature); hdr != "" {
			canon, _ := Canonical(ev)
			if !rc.signer.Verify(canon, hdr) {
				err = ErrBadSignature
			}
		}
	}
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrBadSignature) {
			status = http.StatusUnauthorized
		}
		rc.log.Warn().Err(err).Msg("rejecting webhook")
		http.Error(w, err.Error(), status)
		return
	}
	if key := r.Header.Get(HeaderIdempotencyKey); key != "" && key != ev.IdempotencyKey {
		http.Error(w, "idempotency key mismatch", http.StatusBadRequest)
		return
	}
	if _, dup := rc.seen.Get(ev.IdempotencyKey); dup {
		rc.log.Info().Str("job_id", ev.JobID).Msg("duplicate webhook")
		http.Error(w, "already processed", http.StatusConflict)
		return
	}
	if err := rc.onEvent(ev); err != nil {
		rc.log.Error().Err(err).Str("job_id", ev.JobID).Msg("webhook handler failed")
		http.Error(w, "processing failed", http.StatusServiceUnavailable)
		return
	}
	rc.seen.Put(ev.IdempotencyKey, time.Now())
	rc.log.Info().Str("job_id", ev.JobID).Str("status", string(ev.Status)).Msg("webhook accepted")
	w.WriteHeader(http.StatusOK)
}

// Seen reports how many distinct events were processed.
func (rc *Receiver) Seen() int { return rc.seen.Len() }
