package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"tttranscribe/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.WebhookSender = (*HTTPSender)(nil)

// HTTPSender POSTs signed events to a single receiver URL.
type HTTPSender struct {
	url    string
	client *http.Client
}

func NewHTTPSender(url string, timeout time.Duration) (*HTTPSender, error) {
	if url == "" {
		return nil, errors.New("webhook: empty url")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSender{url: url, client: &http.Client{Timeout: timeout}}, nil
}

func (s *HTTPSender) Send(ctx context.Context, wr adapter.WebhookRequest) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(wr.Body))
	if err != nil {
		return 0, fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSignature, wr.Signature)
	req.Header.Set(HeaderIdempotencyKey, wr.IdempotencyKey)
	req.Header.Set(HeaderTimestamp, wr.Timestamp)
	if wr.CorrelationID != "" {
		req.Header.Set(HeaderCorrelationID, wr.CorrelationID)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return resp.StatusCode, nil
}
