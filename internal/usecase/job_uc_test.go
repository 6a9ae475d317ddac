//go:build !integration

package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"tttranscribe/internal/domain"
	"tttranscribe/internal/domain/model"
	"tttranscribe/internal/domain/ports/adapter"
	"tttranscribe/internal/infra/memstore"
)

type jobFixture struct {
	uc          *jobUC
	jobs        *phaseRecorder
	dlq         *memstore.DeadLetterRepo
	sender      *fakeSender
	downloader  *mockDownloader
	transcriber *mockTranscriber
	clock       *fakeClock
}

func newJobFixture(t *testing.T, tasks TaskSubmitter, summarizer adapter.Summarizer) *jobFixture {
	t.Helper()
	f := &jobFixture{
		jobs:        newPhaseRecorder(memstore.NewJobRepo()),
		dlq:         memstore.NewDeadLetterRepo(),
		sender:      &fakeSender{},
		downloader:  &mockDownloader{},
		transcriber: &mockTranscriber{},
		clock:       newFakeClock(),
	}
	seq := 0
	cache := NewResultCache(memstore.NewCacheRepo(), 48*time.Hour, f.clock.Now, newTestLogger())
	notifier := NewNotificationUseCase(f.sender, newTestSigner(t), f.dlq, NotificationOptions{Now: f.clock.Now}, newTestLogger())
	f.uc = NewJobUseCase(f.jobs, cache, f.downloader, f.transcriber, summarizer, notifier, tasks, JobOptions{
		MaxAudioSeconds: 600,
		Now:             f.clock.Now,
		NewID: func() string {
			seq++
			return fmt.Sprintf("job-%d", seq)
		},
	}, newTestLogger())
	return f
}

func TestValidateInputKey(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		allowed []string
		ok      bool
	}{
		{"https url", "https://www.youtube.com/watch?v=abc", nil, true},
		{"http url", "http://x/video/1", nil, true},
		{"empty", "", nil, false},
		{"no scheme", "x/video/1", nil, false},
		{"ftp", "ftp://x/file", nil, false},
		{"no host", "https:///path", nil, false},
		{"allowed subdomain", "https://m.youtube.com/watch", []string{"youtube.com"}, true},
		{"disallowed host", "https://evil.example/watch", []string{"youtube.com"}, false},
		{"suffix trick", "https://notyoutube.com/watch", []string{"youtube.com"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateInputKey(tc.in, tc.allowed)
			if tc.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.ok && !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestJobUseCase_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("pipeline completes and second submit is a cache hit", func(t *testing.T) {
		f := newJobFixture(t, syncSubmitter{}, &mockSummarizer{})

		first, err := f.uc.Submit(ctx, SubmitRequest{ClientID: "client-a", InputKey: "https://x/video/123?ref=app"})
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		done, err := f.uc.GetStatus(ctx, first.ID)
		if err != nil {
			t.Fatalf("get status: %v", err)
		}
		if done.Phase != model.JobPhaseCompleted || done.Result == nil || done.Result.CacheHit {
			t.Fatalf("unexpected first job %+v", done)
		}
		if done.Result.Summary == "" || done.Result.CharacterCount != len("hello world") {
			t.Errorf("unexpected result %+v", done.Result)
		}

		second, err := f.uc.Submit(ctx, SubmitRequest{ClientID: "client-a", InputKey: "https://x/video/123"})
		if err != nil {
			t.Fatalf("second submit: %v", err)
		}
		if second.Phase != model.JobPhaseCompleted || second.Result == nil || !second.Result.CacheHit {
			t.Fatalf("expected cached completion, got %+v", second)
		}
		if second.Result.Outcome != done.Result.Outcome {
			t.Errorf("cached outcome differs: %+v vs %+v", second.Result.Outcome, done.Result.Outcome)
		}
		if second.Result.ProcessingTime != 0 {
			t.Errorf("expected near-zero processing time, got %v", second.Result.ProcessingTime)
		}
		if f.downloader.calls != 1 {
			t.Errorf("expected one download, got %d", f.downloader.calls)
		}
		if got := f.jobs.phases[second.ID]; len(got) != 1 || got[0] != model.JobPhaseCompleted {
			t.Errorf("cache hit should be written once as COMPLETED, got %v", got)
		}
		if n := len(f.sender.Calls()); n != 2 {
			t.Errorf("expected both jobs to notify, got %d", n)
		}
	})

	t.Run("phases and progress are monotonic", func(t *testing.T) {
		f := newJobFixture(t, syncSubmitter{}, nil)
		job, err := f.uc.Submit(ctx, SubmitRequest{InputKey: "https://x/video/9"})
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		want := []model.JobPhase{
			model.JobPhaseSubmitted, model.JobPhaseDownloading, model.JobPhaseTranscribing,
			model.JobPhaseFinalizing, model.JobPhaseCompleted,
		}
		got := f.jobs.phases[job.ID]
		if fmt.Sprint(got) != fmt.Sprint(want) {
			t.Fatalf("expected phases %v, got %v", want, got)
		}
		prog := f.jobs.prog[job.ID]
		for i := 1; i < len(prog); i++ {
			if prog[i] < prog[i-1] {
				t.Fatalf("progress went backwards: %v", prog)
			}
		}
	})

	t.Run("not found download fails the job without a dead letter", func(t *testing.T) {
		f := newJobFixture(t, syncSubmitter{}, nil)
		f.downloader.FetchFunc = func(ctx context.Context, inputKey string) (*adapter.Media, error) {
			return nil, adapter.NewFetchError(model.FailureNotFound, errors.New("ERROR: Video unavailable /tmp/secret"))
		}
		job, err := f.uc.Submit(ctx, SubmitRequest{InputKey: "https://x/video/gone"})
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		got, _ := f.uc.GetStatus(ctx, job.ID)
		if got.Phase != model.JobPhaseFailed || got.Failure == nil || got.Failure.Kind != model.FailureNotFound {
			t.Fatalf("unexpected job %+v", got)
		}
		if got.Failure.Message != model.FailureMessage(model.FailureNotFound) {
			t.Errorf("raw error leaked into message: %q", got.Failure.Message)
		}
		if recs, _ := f.dlq.List(ctx); len(recs) != 0 {
			t.Errorf("expected no dead letters, got %d", len(recs))
		}
		if len(f.sender.Calls()) != 1 {
			t.Errorf("expected the failure to be notified once")
		}
	})

	t.Run("overlong media fails with too_long", func(t *testing.T) {
		f := newJobFixture(t, syncSubmitter{}, nil)
		f.downloader.FetchFunc = func(ctx context.Context, inputKey string) (*adapter.Media, error) {
			return &adapter.Media{Path: "/tmp/long.m4a", DurationSeconds: 3600}, nil
		}
		job, _ := f.uc.Submit(ctx, SubmitRequest{InputKey: "https://x/video/long"})
		got, _ := f.uc.GetStatus(ctx, job.ID)
		if got.Failure == nil || got.Failure.Kind != model.FailureTooLong {
			t.Fatalf("expected too_long, got %+v", got.Failure)
		}
	})

	t.Run("transcriber timeout maps to network", func(t *testing.T) {
		f := newJobFixture(t, syncSubmitter{}, nil)
		f.transcriber.TranscribeFunc = func(ctx context.Context, m *adapter.Media) (adapter.Transcript, error) {
			return adapter.Transcript{}, fmt.Errorf("post: %w", context.DeadlineExceeded)
		}
		job, _ := f.uc.Submit(ctx, SubmitRequest{InputKey: "https://x/video/slow"})
		got, _ := f.uc.GetStatus(ctx, job.ID)
		if got.Failure == nil || got.Failure.Kind != model.FailureNetwork {
			t.Fatalf("expected network, got %+v", got.Failure)
		}
		if got.ProgressPercent != 40 {
			t.Errorf("progress should stay at the failed phase, got %d", got.ProgressPercent)
		}
	})

	t.Run("summarizer failure is not fatal", func(t *testing.T) {
		f := newJobFixture(t, syncSubmitter{}, &mockSummarizer{err: errors.New("quota")})
		job, _ := f.uc.Submit(ctx, SubmitRequest{InputKey: "https://x/video/s"})
		got, _ := f.uc.GetStatus(ctx, job.ID)
		if got.Phase != model.JobPhaseCompleted || got.Result.Summary != "" {
			t.Fatalf("expected completion without summary, got %+v", got)
		}
	})

	t.Run("collaborator panic fails with unknown", func(t *testing.T) {
		f := newJobFixture(t, syncSubmitter{}, nil)
		f.transcriber.TranscribeFunc = func(ctx context.Context, m *adapter.Media) (adapter.Transcript, error) {
			panic("nil map")
		}
		job, _ := f.uc.Submit(ctx, SubmitRequest{InputKey: "https://x/video/p"})
		got, _ := f.uc.GetStatus(ctx, job.ID)
		if got.Failure == nil || got.Failure.Kind != model.FailureUnknown {
			t.Fatalf("expected unknown, got %+v", got)
		}
	})

	t.Run("notification failure does not change the job", func(t *testing.T) {
		f := newJobFixture(t, syncSubmitter{}, nil)
		f.sender.set(503)
		job, _ := f.uc.Submit(ctx, SubmitRequest{InputKey: "https://x/video/n"})
		got, _ := f.uc.GetStatus(ctx, job.ID)
		if got.Phase != model.JobPhaseCompleted {
			t.Fatalf("expected completed, got %s", got.Phase)
		}
		if recs, _ := f.dlq.List(ctx); len(recs) != 1 {
			t.Fatalf("expected 1 dead letter, got %d", len(recs))
		}
	})

	t.Run("full queue rejects and forgets the job", func(t *testing.T) {
		f := newJobFixture(t, fullSubmitter{}, nil)
		_, err := f.uc.Submit(ctx, SubmitRequest{InputKey: "https://x/video/q"})
		if !errors.Is(err, domain.ErrQueueFull) {
			t.Fatalf("expected ErrQueueFull, got %v", err)
		}
		if _, err := f.uc.GetStatus(ctx, "job-1"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("rejected job should be gone, got %v", err)
		}
	})

	t.Run("invalid input is rejected before any work", func(t *testing.T) {
		f := newJobFixture(t, syncSubmitter{}, nil)
		if _, err := f.uc.Submit(ctx, SubmitRequest{InputKey: "not a url"}); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
		if f.downloader.calls != 0 {
			t.Fatal("downloader must not run for invalid input")
		}
	})

	t.Run("unknown job id", func(t *testing.T) {
		f := newJobFixture(t, syncSubmitter{}, nil)
		if _, err := f.uc.GetStatus(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("summary counts phases", func(t *testing.T) {
		f := newJobFixture(t, syncSubmitter{}, nil)
		_, _ = f.uc.Submit(ctx, SubmitRequest{InputKey: "https://x/video/1"})
		_, _ = f.uc.Submit(ctx, SubmitRequest{InputKey: "https://x/video/2"})
		s, err := f.uc.Summary(ctx, 25)
		if err != nil {
			t.Fatalf("summary: %v", err)
		}
		if s.Counts[model.JobPhaseCompleted] != 2 || len(s.Recent) != 2 {
			t.Fatalf("unexpected summary %+v", s)
		}
	})

	t.Run("failed jobs are listed with their reasons", func(t *testing.T) {
		f := newJobFixture(t, syncSubmitter{}, nil)
		f.downloader.FetchFunc = func(ctx context.Context, inputKey string) (*adapter.Media, error) {
			if strings.HasSuffix(inputKey, "/ok") {
				return &adapter.Media{Path: "/tmp/a.m4a", Title: "A video", DurationSeconds: 42}, nil
			}
			return nil, adapter.NewFetchError(model.FailureBlocked, errors.New("HTTP Error 403"))
		}
		_, _ = f.uc.Submit(ctx, SubmitRequest{InputKey: "https://x/video/ok"})
		bad, _ := f.uc.Submit(ctx, SubmitRequest{InputKey: "https://x/video/bad"})

		failed, err := f.uc.ListByPhase(ctx, model.JobPhaseFailed, 10)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(failed) != 1 || failed[0].ID != bad.ID {
			t.Fatalf("expected only the blocked job, got %d jobs", len(failed))
		}
		if failed[0].Failure == nil || failed[0].Failure.Kind != model.FailureBlocked || failed[0].Failure.Message == "" {
			t.Fatalf("missing failure reason: %+v", failed[0].Failure)
		}
		if _, err := f.uc.ListByPhase(ctx, model.JobPhase("BROKEN"), 10); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for unknown phase, got %v", err)
		}
	})
}
