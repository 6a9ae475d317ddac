package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"tttranscribe/internal/domain"
	"tttranscribe/internal/domain/model"
	"tttranscribe/internal/domain/ports/adapter"
	"tttranscribe/internal/domain/ports/repository"
	"tttranscribe/internal/infra/logging"
	"tttranscribe/internal/infra/metrics"
	"tttranscribe/internal/infra/worker"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

const maxInputKeyLen = 2048

// Compile-time check
var _ JobUseCase = (*jobUC)(nil)

type JobUseCase interface {
	// Submit registers a job and returns its snapshot without waiting for
	// the work. A cache hit returns an already completed job.
	Submit(ctx context.Context, req SubmitRequest) (*model.Job, error)
	GetStatus(ctx context.Context, jobID string) (*model.Job, error)
	Summary(ctx context.Context, limit int) (*JobSummary, error)
	// ListByPhase returns jobs in one phase, newest first. FAILED jobs
	// carry their failure kind and reason.
	ListByPhase(ctx context.Context, phase model.JobPhase, limit int) ([]*model.Job, error)
}

type SubmitRequest struct {
	ClientID      string
	InputKey      string
	CorrelationID string // generated when empty
}

type JobSummary struct {
	Counts map[model.JobPhase]int
	Recent []*model.Job
}

// TaskSubmitter runs detached work. Submit must not block.
type TaskSubmitter interface {
	Submit(task worker.Task) error
}

type JobOptions struct {
	AllowedHosts      []string
	MaxAudioSeconds   float64
	DownloadTimeout   time.Duration
	TranscribeTimeout time.Duration
	SummarizeTimeout  time.Duration
	Now               func() time.Time
	NewID             func() string
	Dev               bool
}

type jobUC struct {
	jobs        repository.JobRepository
	cache       ResultCache
	downloader  adapter.Downloader
	transcriber adapter.Transcriber
	summarizer  adapter.Summarizer // optional
	notifier    NotificationUseCase
	tasks       TaskSubmitter
	opts        JobOptions
	log         *zerolog.Logger
}

func NewJobUseCase(
	jobs repository.JobRepository,
	cache ResultCache,
	downloader adapter.Downloader,
	transcriber adapter.Transcriber,
	summarizer adapter.Summarizer,
	notifier NotificationUseCase,
	tasks TaskSubmitter,
	opts JobOptions,
	logger *zerolog.Logger,
) *jobUC {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return ulid.Make().String() }
	}
	l := logger.With().Str("component", "JobUC").Logger()
	return &jobUC{
		jobs:        jobs,
		cache:       cache,
		downloader:  downloader,
		transcriber: transcriber,
		summarizer:  summarizer,
		notifier:    notifier,
		tasks:       tasks,
		opts:        opts,
		log:         &l,
	}
}

// ValidateInputKey accepts absolute http(s) URLs with a host. When allowed is
// non-empty the host must equal or be a subdomain of one of its entries.
func ValidateInputKey(raw string, allowed []string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > maxInputKeyLen {
		return fmt.Errorf("%w: input key must be 1..%d bytes", domain.ErrInvalidInput, maxInputKeyLen)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if s := strings.ToLower(u.Scheme); s != "http" && s != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", domain.ErrInvalidInput, u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("%w: missing host", domain.ErrInvalidInput)
	}
	if len(allowed) == 0 {
		return nil
	}
	for _, h := range allowed {
		h = strings.ToLower(strings.TrimPrefix(h, "."))
		if host == h || strings.HasSuffix(host, "."+h) {
			return nil
		}
	}
	return fmt.Errorf("%w: host %q not allowed", domain.ErrInvalidInput, host)
}

func (uc *jobUC) Submit(ctx context.Context, req SubmitRequest) (*model.Job, error) {
	defer logging.TraceDuration(uc.log, "JobUC.Submit")()

	inputKey := strings.TrimSpace(req.InputKey)
	if err := ValidateInputKey(inputKey, uc.opts.AllowedHosts); err != nil {
		return nil, err
	}
	corr := req.CorrelationID
	if corr == "" {
		corr = uuid.NewString()
	}
	now := uc.opts.Now()
	job, err := model.NewJob(uc.opts.NewID(), inputKey, req.ClientID, corr, now)
	if err != nil {
		return nil, err
	}
	log := logging.With(logging.WithJobID(ctx, job.ID), uc.log)

	if out, ok := uc.cache.Get(ctx, inputKey); ok {
		if err := job.CompleteCached(model.JobResult{Outcome: *out}, uc.opts.Now()); err != nil {
			return nil, err
		}
		if err := uc.jobs.Put(ctx, job); err != nil {
			return nil, err
		}
		metrics.IncJobSubmitted("cache")
		metrics.IncJobFinished("completed", "")
		log.Info().Msg("served from result cache")
		uc.notifyAsync(job.Clone())
		return job.Clone(), nil
	}

	if err := uc.jobs.Put(ctx, job); err != nil {
		return nil, err
	}
	id := job.ID
	if err := uc.tasks.Submit(func(ctx context.Context) error { return uc.execute(ctx, id) }); err != nil {
		if derr := uc.jobs.Delete(ctx, id); derr != nil {
			log.Error().Err(derr).Msg("failed to remove rejected job")
		}
		log.Warn().Err(err).Msg("job rejected")
		return nil, err
	}
	metrics.IncJobSubmitted("pipeline")
	log.Info().Str("input", logging.Redact(inputKey, uc.opts.Dev)).Msg("job queued")
	return job.Clone(), nil
}

func (uc *jobUC) GetStatus(ctx context.Context, jobID string) (*model.Job, error) {
	return uc.jobs.Get(ctx, jobID)
}

func (uc *jobUC) Summary(ctx context.Context, limit int) (*JobSummary, error) {
	counts, err := uc.jobs.CountByPhase(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := uc.jobs.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	return &JobSummary{Counts: counts, Recent: recent}, nil
}

func (uc *jobUC) ListByPhase(ctx context.Context, phase model.JobPhase, limit int) ([]*model.Job, error) {
	if !phase.Valid() {
		return nil, fmt.Errorf("%w: unknown phase %q", domain.ErrInvalidInput, phase)
	}
	return uc.jobs.ListByPhase(ctx, phase, limit)
}

// execute drives one job through the pipeline. Collaborator errors end the
// job in FAILED; only registry errors are returned.
func (uc *jobUC) execute(ctx context.Context, jobID string) (err error) {
	ctx = logging.WithJobID(ctx, jobID)
	log := logging.With(ctx, uc.log)

	job, err := uc.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Msg("pipeline panicked")
			err = uc.fail(ctx, job, model.FailureUnknown, fmt.Errorf("panic: %v", rec))
		}
	}()
	started := uc.opts.Now()

	// download
	phaseStart := uc.opts.Now()
	if err := uc.advance(ctx, job, model.JobPhaseDownloading); err != nil {
		return err
	}
	media, err := uc.fetch(ctx, job.InputKey)
	if err != nil {
		return uc.fail(ctx, job, adapter.KindOf(err), err)
	}
	defer func() {
		if cerr := media.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("media cleanup")
		}
	}()
	if uc.opts.MaxAudioSeconds > 0 && media.DurationSeconds > uc.opts.MaxAudioSeconds {
		return uc.fail(ctx, job, model.FailureTooLong,
			fmt.Errorf("duration %.0fs exceeds %.0fs", media.DurationSeconds, uc.opts.MaxAudioSeconds))
	}
	metrics.ObservePhase(string(model.JobPhaseDownloading), uc.opts.Now().Sub(phaseStart))

	// transcribe
	phaseStart = uc.opts.Now()
	if err := uc.advance(ctx, job, model.JobPhaseTranscribing); err != nil {
		return err
	}
	tr, err := uc.transcribe(ctx, media)
	if err != nil {
		return uc.fail(ctx, job, adapter.KindOf(err), err)
	}
	metrics.ObservePhase(string(model.JobPhaseTranscribing), uc.opts.Now().Sub(phaseStart))

	// finalize
	phaseStart = uc.opts.Now()
	if err := uc.advance(ctx, job, model.JobPhaseFinalizing); err != nil {
		return err
	}
	outcome := model.Outcome{
		Transcript:      tr.Text,
		Summary:         uc.summarize(ctx, tr.Text),
		Title:           media.Title,
		Language:        tr.Language,
		DurationSeconds: media.DurationSeconds,
		CharacterCount:  len([]rune(tr.Text)),
	}
	metrics.ObservePhase(string(model.JobPhaseFinalizing), uc.opts.Now().Sub(phaseStart))

	now := uc.opts.Now()
	if err := job.Complete(model.JobResult{Outcome: outcome, ProcessingTime: now.Sub(started)}, now); err != nil {
		return err
	}
	if err := uc.jobs.Put(ctx, job); err != nil {
		return err
	}
	metrics.IncJobFinished("completed", "")
	if err := uc.cache.Put(ctx, job.InputKey, outcome); err != nil {
		log.Warn().Err(err).Msg("result cache write failed")
	}
	log.Info().Dur("elapsed", job.Result.ProcessingTime).Int("chars", outcome.CharacterCount).Msg("job completed")
	uc.notify(ctx, job)
	return nil
}

func (uc *jobUC) advance(ctx context.Context, job *model.Job, next model.JobPhase) error {
	if err := job.Advance(next, uc.opts.Now()); err != nil {
		return err
	}
	return uc.jobs.Put(ctx, job)
}

// fail records kind on the job. The raw cause is logged only.
func (uc *jobUC) fail(ctx context.Context, job *model.Job, kind model.FailureKind, cause error) error {
	log := logging.With(ctx, uc.log)
	if err := job.Fail(kind, uc.opts.Now()); err != nil {
		if errors.Is(err, domain.ErrJobTerminal) {
			return nil
		}
		return err
	}
	if err := uc.jobs.Put(ctx, job); err != nil {
		return err
	}
	metrics.IncJobFinished("failed", string(kind))
	log.Warn().Err(cause).Str("kind", string(kind)).Msg("job failed")
	uc.notify(ctx, job)
	return nil
}

func (uc *jobUC) fetch(ctx context.Context, inputKey string) (*adapter.Media, error) {
	ctx, cancel := withTimeout(ctx, uc.opts.DownloadTimeout)
	defer cancel()
	m, err := uc.downloader.Fetch(ctx, inputKey)
	if err == nil && m == nil {
		err = errors.New("downloader returned no media")
	}
	return m, err
}

func (uc *jobUC) transcribe(ctx context.Context, m *adapter.Media) (adapter.Transcript, error) {
	ctx, cancel := withTimeout(ctx, uc.opts.TranscribeTimeout)
	defer cancel()
	return uc.transcriber.Transcribe(ctx, m)
}

// summarize is best effort; failures leave the summary empty.
func (uc *jobUC) summarize(ctx context.Context, text string) string {
	if uc.summarizer == nil || strings.TrimSpace(text) == "" {
		return ""
	}
	ctx, cancel := withTimeout(ctx, uc.opts.SummarizeTimeout)
	defer cancel()
	s, err := uc.summarizer.Summarize(ctx, text)
	if err != nil {
		logging.With(ctx, uc.log).Warn().Err(err).Msg("summary skipped")
		return ""
	}
	return strings.TrimSpace(s)
}

// notify never affects the job outcome.
func (uc *jobUC) notify(ctx context.Context, job *model.Job) {
	if uc.notifier == nil {
		return
	}
	if err := uc.notifier.Notify(ctx, job.Clone()); err != nil {
		logging.With(ctx, uc.log).Warn().Err(err).Msg("terminal notification not delivered")
	}
}

func (uc *jobUC) notifyAsync(job *model.Job) {
	task := func(ctx context.Context) error {
		uc.notify(logging.WithJobID(ctx, job.ID), job)
		return nil
	}
	if err := uc.tasks.Submit(task); err != nil {
		go func() { _ = task(context.Background()) }()
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
