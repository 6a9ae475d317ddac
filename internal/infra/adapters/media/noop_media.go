package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tttranscribe/internal/domain/ports/adapter"
)

var (
	_ adapter.Downloader  = (*NoopDownloader)(nil)
	_ adapter.Transcriber = (*NoopTranscriber)(nil)
)

// NoopDownloader writes a placeholder file so dev runs need no network.
type NoopDownloader struct {
	TempDir string
	Delay   time.Duration
}

func (d *NoopDownloader) Fetch(ctx context.Context, inputKey string) (*adapter.Media, error) {
	if err := sleep(ctx, d.Delay); err != nil {
		return nil, err
	}
	dir, err := os.MkdirTemp(d.TempDir, "tttranscribe-dev-*")
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "audio.m4a")
	if err := os.WriteFile(path, []byte("dev"), 0o600); err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	return &adapter.Media{Path: path, Dir: dir, Title: "dev: " + inputKey, DurationSeconds: 30}, nil
}

type NoopTranscriber struct {
	Delay time.Duration
}

func (t *NoopTranscriber) Transcribe(ctx context.Context, m *adapter.Media) (adapter.Transcript, error) {
	if err := sleep(ctx, t.Delay); err != nil {
		return adapter.Transcript{}, err
	}
	return adapter.Transcript{Text: fmt.Sprintf("placeholder transcript for %s", m.Title), Language: "en"}, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
