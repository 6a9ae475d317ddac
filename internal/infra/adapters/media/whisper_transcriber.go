package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tttranscribe/internal/domain/model"
	"tttranscribe/internal/domain/ports/adapter"
)

var _ adapter.Transcriber = (*WhisperTranscriber)(nil)

// WhisperTranscriber posts audio to an OpenAI compatible
// /audio/transcriptions endpoint.
type WhisperTranscriber struct {
	apiKey string
	base   string
	model  string
	client *http.Client
}

func NewWhisperTranscriber(apiKey, baseURL, model string, timeout time.Duration) (*WhisperTranscriber, error) {
	if apiKey == "" {
		return nil, errors.New("whisper: api key empty")
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "whisper-1"
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &WhisperTranscriber{
		apiKey: apiKey,
		base:   strings.TrimRight(baseURL, "/"),
		model:  model,
		client: &http.Client{Timeout: timeout},
	}, nil
}

func (w *WhisperTranscriber) Transcribe(ctx context.Context, m *adapter.Media) (adapter.Transcript, error) {
	if m == nil || m.Path == "" {
		return adapter.Transcript{}, adapter.NewFetchError(model.FailureUnknown, errors.New("no media to transcribe"))
	}
	f, err := os.Open(m.Path)
	if err != nil {
		return adapter.Transcript{}, adapter.NewFetchError(model.FailureUnknown, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("model", w.model)
	_ = mw.WriteField("response_format", "verbose_json")
	part, err := mw.CreateFormFile("file", filepath.Base(m.Path))
	if err != nil {
		return adapter.Transcript{}, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return adapter.Transcript{}, adapter.NewFetchError(model.FailureUnknown, err)
	}
	if err := mw.Close(); err != nil {
		return adapter.Transcript{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.base+"/audio/transcriptions", &buf)
	if err != nil {
		return adapter.Transcript{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+w.apiKey)

	resp, err := w.client.Do(req)
	if err != nil {
		return adapter.Transcript{}, adapter.NewFetchError(model.FailureNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return adapter.Transcript{}, adapter.NewFetchError(statusKind(resp.StatusCode),
			fmt.Errorf("transcription http %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}

	var payload struct {
		Text     string `json:"text"`
		Language string `json:"language"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return adapter.Transcript{}, adapter.NewFetchError(model.FailureUnknown, err)
	}
	return adapter.Transcript{Text: strings.TrimSpace(payload.Text), Language: payload.Language}, nil
}

func statusKind(code int) model.FailureKind {
	switch {
	case code == http.StatusTooManyRequests, code >= 500:
		return model.FailureNetwork
	default:
		return model.FailureUnknown
	}
}
