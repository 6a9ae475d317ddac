// File: cmd/receiver/main.go
//
// receiver is a reference billing endpoint: it verifies webhook signatures
// and answers 409 for idempotency keys it has already processed.
package main

import (
	"errors"
	"flag"
	"net/http"
	"os"
	"time"

	"tttranscribe/internal/config"
	"tttranscribe/internal/domain/model"
	"tttranscribe/internal/infra/logging"
	"tttranscribe/internal/infra/security"
	"tttranscribe/internal/infra/webhook"
)

func main() {
	addr := flag.String("addr", ":9090", "listen address")
	path := flag.String("path", "/webhooks/transcription", "webhook path")
	flag.Parse()

	logger := logging.New(config.LogConfig{Level: "info", Format: "console"}, true)

	signer, err := security.NewHMACSigner(os.Getenv("WEBHOOK_SECRET"))
	if err != nil {
		logger.Fatal().Err(err).Msg("WEBHOOK_SECRET is required")
	}

	rc := webhook.NewReceiver(signer, func(ev model.WebhookEvent) error {
		logger.Info().
			Str("job_id", ev.JobID).
			Str("correlation_id", ev.CorrelationID).
			Str("status", string(ev.Status)).
			Float64("audio_seconds", ev.Usage.AudioDurationSeconds).
			Int("characters", ev.Usage.TranscriptCharacters).
			Bool("cache_hit", ev.Usage.CacheHit).
			Msg("usage recorded")
		return nil
	}, logger)

	mux := http.NewServeMux()
	mux.Handle(*path, rc)
	srv := &http.Server{Addr: *addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	logger.Info().Str("addr", *addr).Str("path", *path).Msg("receiver listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("receiver stopped")
	}
}
