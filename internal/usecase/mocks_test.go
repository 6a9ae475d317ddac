//go:build !integration

package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tttranscribe/internal/domain"
	"tttranscribe/internal/domain/model"
	"tttranscribe/internal/domain/ports/adapter"
	"tttranscribe/internal/domain/ports/repository"
	"tttranscribe/internal/infra/security"
	"tttranscribe/internal/infra/worker"

	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func newTestSigner(t *testing.T) *security.HMACSigner {
	t.Helper()
	s, err := security.NewHMACSigner("test-secret")
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	return s
}

// --- clock ---

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// --- task submitters ---

// syncSubmitter runs tasks inline so pipeline tests are deterministic.
type syncSubmitter struct{}

func (syncSubmitter) Submit(task worker.Task) error {
	_ = task(context.Background())
	return nil
}

type fullSubmitter struct{}

func (fullSubmitter) Submit(worker.Task) error { return domain.ErrQueueFull }

// --- webhook sender ---

type fakeSender struct {
	mu       sync.Mutex
	statuses []int // consumed in order; the last one repeats
	err      error
	calls    []adapter.WebhookRequest
}

func (f *fakeSender) Send(ctx context.Context, req adapter.WebhookRequest) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return 0, f.err
	}
	if len(f.statuses) == 0 {
		return 200, nil
	}
	s := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return s, nil
}

func (f *fakeSender) set(statuses ...int) {
	f.mu.Lock()
	f.statuses = statuses
	f.err = nil
	f.mu.Unlock()
}

func (f *fakeSender) Calls() []adapter.WebhookRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]adapter.WebhookRequest(nil), f.calls...)
}

// gatedSender blocks the blockOn-th call until release is closed.
type gatedSender struct {
	mu       sync.Mutex
	statuses []int // indexed by call; missing entries are 200
	calls    int
	blockOn  int
	entered  chan struct{}
	release  chan struct{}
}

func newGatedSender(blockOn int, statuses ...int) *gatedSender {
	return &gatedSender{
		statuses: statuses,
		blockOn:  blockOn,
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
	}
}

func (g *gatedSender) Send(ctx context.Context, req adapter.WebhookRequest) (int, error) {
	g.mu.Lock()
	g.calls++
	n := g.calls
	status := 200
	if n <= len(g.statuses) {
		status = g.statuses[n-1]
	}
	g.mu.Unlock()
	if n == g.blockOn {
		close(g.entered)
		<-g.release
	}
	return status, nil
}

func (g *gatedSender) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// staleListDLQ serves a fixed List snapshot over a live repository.
type staleListDLQ struct {
	repository.DeadLetterRepository
	snapshot []*model.DeliveryRecord
}

func (s *staleListDLQ) List(context.Context) ([]*model.DeliveryRecord, error) {
	return s.snapshot, nil
}

// --- collaborators ---

type mockDownloader struct {
	FetchFunc func(ctx context.Context, inputKey string) (*adapter.Media, error)
	calls     int
}

func (m *mockDownloader) Fetch(ctx context.Context, inputKey string) (*adapter.Media, error) {
	m.calls++
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, inputKey)
	}
	return &adapter.Media{Path: "/tmp/a.m4a", Title: "A video", DurationSeconds: 42}, nil
}

type mockTranscriber struct {
	TranscribeFunc func(ctx context.Context, m *adapter.Media) (adapter.Transcript, error)
}

func (m *mockTranscriber) Transcribe(ctx context.Context, media *adapter.Media) (adapter.Transcript, error) {
	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, media)
	}
	return adapter.Transcript{Text: "hello world", Language: "en"}, nil
}

type mockSummarizer struct {
	err error
}

func (m *mockSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return "summary: " + text, nil
}

// --- repositories ---

// phaseRecorder wraps a JobRepository and records every phase written.
type phaseRecorder struct {
	repository.JobRepository
	mu     sync.Mutex
	phases map[string][]model.JobPhase
	prog   map[string][]int
}

func newPhaseRecorder(inner repository.JobRepository) *phaseRecorder {
	return &phaseRecorder{JobRepository: inner, phases: map[string][]model.JobPhase{}, prog: map[string][]int{}}
}

func (p *phaseRecorder) Put(ctx context.Context, job *model.Job) error {
	p.mu.Lock()
	p.phases[job.ID] = append(p.phases[job.ID], job.Phase)
	p.prog[job.ID] = append(p.prog[job.ID], job.ProgressPercent)
	p.mu.Unlock()
	return p.JobRepository.Put(ctx, job)
}

// brokenCacheRepo fails every call.
type brokenCacheRepo struct {
	repository.CacheRepository
}

var errBackend = errors.New("backend down")

func (brokenCacheRepo) Get(context.Context, string) (*model.CacheEntry, error) { return nil, errBackend }
func (brokenCacheRepo) Put(context.Context, *model.CacheEntry) error          { return errBackend }
