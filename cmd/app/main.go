// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tttranscribe/internal/config"
	"tttranscribe/internal/domain/ports/adapter"
	"tttranscribe/internal/domain/ports/repository"
	"tttranscribe/internal/infra/adapters/media"
	"tttranscribe/internal/infra/logging"
	"tttranscribe/internal/infra/memstore"
	"tttranscribe/internal/infra/metrics"
	red "tttranscribe/internal/infra/redis"
	"tttranscribe/internal/infra/sched"
	"tttranscribe/internal/infra/security"
	"tttranscribe/internal/infra/web"
	"tttranscribe/internal/infra/webhook"
	"tttranscribe/internal/infra/worker"
	"tttranscribe/internal/usecase"

	"github.com/rs/zerolog"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (fake downloader and transcriber)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Stores ----
	jobRepo := memstore.NewJobRepo()
	dlqRepo := memstore.NewDeadLetterRepo()
	buckets := memstore.NewBucketStore()

	var cacheRepo repository.CacheRepository = memstore.NewCacheRepo()
	if strings.EqualFold(cfg.Cache.Backend, "redis") {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		cacheRepo = red.NewResultCacheRepo(redisClient)
		logger.Info().Msg("result cache backed by redis")
	}

	// ---- Webhook ----
	var (
		sender adapter.WebhookSender
		signer adapter.Signer
	)
	if cfg.Webhook.URL != "" {
		hs, err := webhook.NewHTTPSender(cfg.Webhook.URL, cfg.Webhook.Timeout)
		if err != nil {
			logger.Fatal().Err(err).Msg("webhook sender")
		}
		sg, err := security.NewHMACSigner(cfg.Webhook.Secret)
		if err != nil {
			logger.Fatal().Err(err).Msg("webhook signer")
		}
		sender, signer = hs, sg
		logger.Info().Str("url", logging.Redact(cfg.Webhook.URL, cfg.Runtime.Dev)).Msg("webhook delivery enabled")
	} else {
		logger.Warn().Msg("webhook.url not set; terminal events are not delivered")
	}

	// ---- Collaborators ----
	downloader, transcriber, summarizer := buildMedia(ctx, cfg, logger)

	// ---- Worker pool ----
	// Tasks run on their own context so shutdown can drain them first.
	poolCtx, cancelPool := context.WithCancel(context.Background())
	defer cancelPool()
	pool := worker.NewPool(cfg.Worker.Count, cfg.Worker.QueueSize, logger)
	pool.Start(poolCtx)

	// ---- Use cases ----
	resultCache := usecase.NewResultCache(cacheRepo, cfg.Cache.TTL, time.Now, logger)
	admission := usecase.NewAdmissionController(buckets, usecase.AdmissionOptions{
		Capacity:        cfg.RateLimit.Capacity,
		RefillPerMinute: cfg.RateLimit.RefillPerMinute,
		Exempt:          cfg.RateLimit.ExemptClientIDs,
	})
	notifier := usecase.NewNotificationUseCase(sender, signer, dlqRepo, usecase.NotificationOptions{
		ImmediateAttempts: cfg.Webhook.ImmediateAttempts,
	}, logger)
	jobs := usecase.NewJobUseCase(jobRepo, resultCache, downloader, transcriber, summarizer, notifier, pool, usecase.JobOptions{
		AllowedHosts:      cfg.Media.AllowedHosts,
		MaxAudioSeconds:   cfg.Media.MaxAudioSeconds,
		DownloadTimeout:   cfg.Media.DownloadTimeout,
		TranscribeTimeout: cfg.Media.TranscribeTimeout,
		SummarizeTimeout:  cfg.Media.SummarizeTimeout,
		Dev:               cfg.Runtime.Dev,
	}, logger)

	// ---- HTTP ----
	auth := web.NewAuthManager(web.AuthConfig{
		APIKeys:   cfg.Auth.APIKeys,
		AdminIDs:  cfg.Auth.AdminIDs,
		JWTSecret: cfg.Auth.JWTSecret,
		JWTIssuer: cfg.Auth.JWTIssuer,
		JWTTTL:    cfg.Auth.JWTTTL,

		SigningSecret: cfg.Auth.SigningSecret,
		SignatureSkew: cfg.Auth.SignatureSkew,
	})
	srv := web.NewServer(jobs, admission, notifier, auth, web.Options{
		PublicBaseURL:       cfg.Server.PublicBaseURL,
		PollIntervalSeconds: cfg.Server.PollIntervalSeconds,
		RequestTimeout:      cfg.Server.RequestTimeout,
		MetricsEnabled:      cfg.Metrics.Enabled,
		MetricsPath:         cfg.Metrics.Path,
	}, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Background maintenance ----
	sweeper := sched.NewCacheSweeper(cfg.Cache.SweepInterval, resultCache, logger)
	go func() { _ = sweeper.Run(ctx) }()
	replayer := sched.NewDeadLetterReplayer(cfg.Webhook.ReplayInterval, cfg.Webhook.MaxReplayAttempts, notifier, logger)
	go func() { _ = replayer.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel()
	if err := pool.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("in-flight jobs abandoned")
	}
	cancelPool()
	logger.Info().Msg("bye")
}

// buildMedia wires the downloader, transcriber and optional summarizer.
func buildMedia(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (adapter.Downloader, adapter.Transcriber, adapter.Summarizer) {
	var (
		dl adapter.Downloader
		tr adapter.Transcriber
	)
	if cfg.Runtime.Dev {
		dl = &media.NoopDownloader{TempDir: cfg.Media.TempDir, Delay: 500 * time.Millisecond}
		tr = &media.NoopTranscriber{Delay: 500 * time.Millisecond}
	} else {
		dl = media.NewYtDlpDownloader(cfg.Media.DownloaderPath, cfg.Media.TempDir)
		wt, err := media.NewWhisperTranscriber(cfg.AI.OpenAIKey, cfg.AI.TranscribeURL, cfg.AI.TranscribeModel, cfg.Media.TranscribeTimeout)
		if err != nil {
			logger.Fatal().Err(err).Msg("transcriber")
		}
		tr = wt
	}
	dl = media.NewLimitedDownloader(dl, cfg.Media.MaxConcurrentFetches)
	tr = media.NewLimitedTranscriber(tr, cfg.Media.MaxConcurrentTranscribes)

	if !cfg.AI.Summarize {
		return dl, tr, nil
	}
	providers := map[string]adapter.Summarizer{}
	if cfg.AI.OpenAIKey != "" {
		s, err := media.NewOpenAISummarizer(cfg.AI.OpenAIKey, cfg.AI.OpenAIBaseURL, cfg.AI.SummaryModel)
		if err != nil {
			logger.Error().Err(err).Msg("openai summarizer disabled")
		} else {
			providers["openai"] = s
		}
	}
	if cfg.AI.GeminiKey != "" {
		s, err := media.NewGeminiSummarizer(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.SummaryModel, 1024)
		if err != nil {
			logger.Error().Err(err).Msg("gemini summarizer disabled")
		} else {
			providers["gemini"] = s
		}
	}
	sum := media.NewMultiSummarizer(cfg.AI.SummaryModel, providers)
	if sum == nil {
		logger.Warn().Msg("ai.summarize set but no provider configured")
	}
	return dl, tr, sum
}
