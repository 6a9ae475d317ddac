package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"tttranscribe/internal/domain/model"
	"tttranscribe/internal/domain/ports/adapter"
)

var _ adapter.Downloader = (*YtDlpDownloader)(nil)

type commandResult struct {
	Stdout string
	Stderr string
}

// commandRunner abstracts process execution for tests.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return commandResult{Stdout: stdout.String(), Stderr: stderr.String()}, err
}

// YtDlpDownloader fetches the audio track with the yt-dlp CLI into a
// per-job temp dir.
type YtDlpDownloader struct {
	binary  string
	tempDir string
	runner  commandRunner
}

func NewYtDlpDownloader(binary, tempDir string) *YtDlpDownloader {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &YtDlpDownloader{binary: binary, tempDir: tempDir, runner: execRunner{}}
}

type ytdlpInfo struct {
	ID       string  `json:"id"`
	Ext      string  `json:"ext"`
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
	Filename string  `json:"_filename"`
}

func (d *YtDlpDownloader) Fetch(ctx context.Context, inputKey string) (*adapter.Media, error) {
	dir, err := os.MkdirTemp(d.tempDir, "tttranscribe-*")
	if err != nil {
		return nil, adapter.NewFetchError(model.FailureUnknown, fmt.Errorf("temp dir: %w", err))
	}
	m := &adapter.Media{Dir: dir}

	args := []string{
		"--no-playlist",
		"--no-warnings",
		"--no-part",
		"--no-cache-dir",
		"--socket-timeout", "30",
		"-f", "m4a/bestaudio[ext=m4a]/bestaudio/best",
		"-o", filepath.Join(dir, "%(id)s.%(ext)s"),
		"--print-json",
		inputKey,
	}
	res, err := d.runner.Run(ctx, d.binary, args...)
	if err != nil {
		_ = m.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, adapter.NewFetchError(model.FailureNetwork, ctxErr)
		}
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return nil, adapter.NewFetchError(model.FailureUnknown, err)
		}
		return nil, adapter.NewFetchError(classifyStderr(res.Stderr), fmt.Errorf("%w: %s", err, lastLine(res.Stderr)))
	}

	info, err := parseInfo(res.Stdout)
	if err != nil {
		_ = m.Close()
		return nil, adapter.NewFetchError(model.FailureUnknown, err)
	}
	m.Path = info.Filename
	if m.Path == "" {
		m.Path = filepath.Join(dir, info.ID+"."+info.Ext)
	}
	if _, err := os.Stat(m.Path); err != nil {
		_ = m.Close()
		return nil, adapter.NewFetchError(model.FailureUnknown, fmt.Errorf("downloaded file missing: %w", err))
	}
	m.Title = info.Title
	m.DurationSeconds = info.Duration
	return m, nil
}

// parseInfo reads the last JSON object yt-dlp printed.
func parseInfo(stdout string) (ytdlpInfo, error) {
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var info ytdlpInfo
		if err := json.Unmarshal([]byte(line), &info); err != nil {
			return ytdlpInfo{}, fmt.Errorf("parse yt-dlp output: %w", err)
		}
		return info, nil
	}
	return ytdlpInfo{}, errors.New("yt-dlp printed no metadata")
}

// classifyStderr maps yt-dlp error text onto failure kinds.
func classifyStderr(stderr string) model.FailureKind {
	s := strings.ToLower(stderr)
	switch {
	// bot checks are phrased "Sign in to confirm you're not a bot"
	case containsAny(s, "not a bot", "not a robot", "captcha", "unusual traffic"):
		return model.FailureBlocked
	case containsAny(s, "private video", "sign in", "login required", "log in", "members-only", "age-restricted"):
		return model.FailureAuth
	case containsAny(s, "http error 403", "forbidden", "blocked", "too many requests", "http error 429", "rate-limit"):
		return model.FailureBlocked
	case containsAny(s, "http error 404", "not found", "video unavailable", "has been removed", "does not exist", "unsupported url"):
		return model.FailureNotFound
	case containsAny(s, "timed out", "connection reset", "connection refused", "unable to resolve", "name resolution", "network is unreachable", "temporary failure"):
		return model.FailureNetwork
	}
	return model.FailureUnknown
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
