package adapter

import (
	"context"
	"errors"
	"fmt"
	"os"

	"tttranscribe/internal/domain/model"
)

// Media is a locally materialized download.
type Media struct {
	Path            string
	Dir             string // temp dir owned by this handle; removed by Close
	Title           string
	DurationSeconds float64
}

// Close removes the handle's temp dir, if any.
func (m *Media) Close() error {
	if m == nil || m.Dir == "" {
		return nil
	}
	if err := os.RemoveAll(m.Dir); err != nil {
		return err
	}
	m.Dir = ""
	return nil
}

// FetchError is a classified collaborator failure.
type FetchError struct {
	Kind model.FailureKind
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func NewFetchError(kind model.FailureKind, err error) *FetchError {
	return &FetchError{Kind: kind, Err: err}
}

// KindOf extracts the classified kind from err, defaulting to unknown.
func KindOf(err error) model.FailureKind {
	var fe *FetchError
	if errors.As(err, &fe) && fe.Kind.Known() {
		return fe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return model.FailureNetwork
	}
	return model.FailureUnknown
}

// Downloader fetches the media behind an input key.
type Downloader interface {
	Fetch(ctx context.Context, inputKey string) (*Media, error)
}

// Transcriber converts local media to text.
type Transcriber interface {
	Transcribe(ctx context.Context, media *Media) (Transcript, error)
}

type Transcript struct {
	Text     string
	Language string
}

// Summarizer produces a short note for a transcript. Optional.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}
