package media

import (
	"context"

	"tttranscribe/internal/domain/ports/adapter"
)

// Compile-time check
var (
	_ adapter.Downloader  = (*limitedDownloader)(nil)
	_ adapter.Transcriber = (*limitedTranscriber)(nil)
)

type semaphore chan struct{}

func (s semaphore) acquire(ctx context.Context) error {
	select {
	case s <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s semaphore) release() { <-s }

type limitedDownloader struct {
	inner adapter.Downloader
	sem   semaphore
}

// NewLimitedDownloader bounds concurrent fetches. maxConcurrent <= 0 disables the limit.
func NewLimitedDownloader(inner adapter.Downloader, maxConcurrent int) adapter.Downloader {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedDownloader{inner: inner, sem: make(semaphore, maxConcurrent)}
}

func (l *limitedDownloader) Fetch(ctx context.Context, inputKey string) (*adapter.Media, error) {
	if err := l.sem.acquire(ctx); err != nil {
		return nil, err
	}
	defer l.sem.release()
	return l.inner.Fetch(ctx, inputKey)
}

type limitedTranscriber struct {
	inner adapter.Transcriber
	sem   semaphore
}

func NewLimitedTranscriber(inner adapter.Transcriber, maxConcurrent int) adapter.Transcriber {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedTranscriber{inner: inner, sem: make(semaphore, maxConcurrent)}
}

func (l *limitedTranscriber) Transcribe(ctx context.Context, m *adapter.Media) (adapter.Transcript, error) {
	if err := l.sem.acquire(ctx); err != nil {
		return adapter.Transcript{}, err
	}
	defer l.sem.release()
	return l.inner.Transcribe(ctx, m)
}
