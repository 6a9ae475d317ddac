//go:build !integration

package webhook

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tttranscribe/internal/domain/model"
	"tttranscribe/internal/domain/ports/adapter"
	"tttranscribe/internal/infra/security"

	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

func testEvent() model.WebhookEvent {
	ts := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	return model.WebhookEvent{
		JobID:          "01JOB",
		CorrelationID:  "corr-1",
		Status:         model.TerminalStatusCompleted,
		Usage:          model.Usage{AudioDurationSeconds: 12.5, TranscriptCharacters: 42, ProcessingTimeMs: 900},
		IdempotencyKey: model.IdempotencyKey("01JOB", model.TerminalStatusCompleted, ts),
		Timestamp:      ts.Format(time.RFC3339Nano),
	}
}

func mustSigner(t *testing.T) *security.HMACSigner {
	t.Helper()
	s, err := security.NewHMACSigner("whsec")
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	return s
}

func TestEncodeAndVerifyBody(t *testing.T) {
	signer := mustSigner(t)
	body, sig, err := Encode(testEvent(), signer)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	ev, err := VerifyBody(signer, body)
	if err != nil {
		t.Fatalf("expected body to verify, got %v", err)
	}
	if ev.JobID != "01JOB" || ev.Usage.TranscriptCharacters != 42 {
		t.Fatalf("decoded event mismatch: %+v", ev)
	}

	canon, _ := Canonical(ev)
	if !signer.Verify(canon, sig) {
		t.Fatal("returned signature must cover the canonical form")
	}

	t.Run("tampered usage fails", func(t *testing.T) {
		tampered := bytes.Replace(body, []byte(`"transcriptCharacters":42`), []byte(`"transcriptCharacters":43`), 1)
		if _, err := VerifyBody(signer, tampered); err != ErrBadSignature {
			t.Fatalf("expected ErrBadSignature, got %v", err)
		}
	})

	t.Run("any single byte change fails", func(t *testing.T) {
		for i := range body {
			mutated := bytes.Clone(body)
			mutated[i] ^= 0x01
			if _, err := VerifyBody(signer, mutated); err == nil {
				t.Fatalf("byte %d mutated (%q) still verifies", i, mutated)
			}
		}
	})

	t.Run("field name case and extra fields fail", func(t *testing.T) {
		recased := bytes.Replace(body, []byte(`"jobId"`), []byte(`"JobId"`), 1)
		if _, err := VerifyBody(signer, recased); err != ErrBadSignature {
			t.Fatalf("expected ErrBadSignature for recased key, got %v", err)
		}
		injected := append([]byte(`{"extra":1,`), body[1:]...)
		if _, err := VerifyBody(signer, injected); err != ErrBadSignature {
			t.Fatalf("expected ErrBadSignature for injected field, got %v", err)
		}
	})

	t.Run("encoding is deterministic", func(t *testing.T) {
		again, sig2, _ := Encode(testEvent(), signer)
		if !bytes.Equal(again, body) || sig2 != sig {
			t.Fatal("same event must encode to identical bytes and signature")
		}
	})
}

func TestHTTPSender_Send(t *testing.T) {
	var got *http.Request
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sender, err := NewHTTPSender(srv.URL, time.Second)
	if err != nil {
		t.Fatalf("sender: %v", err)
	}
	req := adapter.WebhookRequest{
		Body:           []byte(`{"a":1}`),
		Signature:      "sha256=abc",
		IdempotencyKey: "idem-1",
		Timestamp:      "2026-10-14T12:00:00Z",
		CorrelationID:  "corr-1",
	}
	code, err := sender.Send(context.Background(), req)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if code != http.StatusAccepted {
		t.Fatalf("want 202, got %d", code)
	}
	if got.Method != http.MethodPost {
		t.Errorf("want POST, got %s", got.Method)
	}
	if got.Header.Get(HeaderSignature) != "sha256=abc" || got.Header.Get(HeaderIdempotencyKey) != "idem-1" {
		t.Errorf("missing signature headers: %v", got.Header)
	}
	if got.Header.Get(HeaderCorrelationID) != "corr-1" {
		t.Errorf("missing correlation header")
	}
	if string(gotBody) != `{"a":1}` {
		t.Errorf("body mismatch: %s", gotBody)
	}

	t.Run("transport error", func(t *testing.T) {
		dead, _ := NewHTTPSender("http://127.0.0.1:1", 200*time.Millisecond)
		code, err := dead.Send(context.Background(), req)
		if err == nil || code != 0 {
			t.Fatalf("expected transport error and code 0, got %d, %v", code, err)
		}
	})

	t.Run("empty url rejected", func(t *testing.T) {
		if _, err := NewHTTPSender("", time.Second); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestReceiver(t *testing.T) {
	signer := mustSigner(t)
	var processed []string
	rc := NewReceiver(signer, func(ev model.WebhookEvent) error {
		processed = append(processed, ev.JobID)
		return nil
	}, newTestLogger())

	body, sig, _ := Encode(testEvent(), signer)
	deliver := func(b []byte, sig string) int {
		req := httptest.NewRequest(http.MethodPost, "/hook", bytes.NewReader(b))
		req.Header.Set(HeaderSignature, sig)
		req.Header.Set(HeaderIdempotencyKey, testEvent().IdempotencyKey)
		rec := httptest.NewRecorder()
		rc.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := deliver(body, sig); code != http.StatusOK {
		t.Fatalf("first delivery: want 200, got %d", code)
	}
	if code := deliver(body, sig); code != http.StatusConflict {
		t.Fatalf("duplicate delivery: want 409, got %d", code)
	}
	if len(processed) != 1 || rc.Seen() != 1 {
		t.Fatalf("expected exactly one processed event, got %v", processed)
	}

	t.Run("bad header signature", func(t *testing.T) {
		other := testEvent()
		other.JobID = "02JOB"
		other.IdempotencyKey = "other"
		b, _, _ := Encode(other, signer)
		if code := deliver(b, "sha256=00"); code != http.StatusUnauthorized {
			t.Fatalf("want 401, got %d", code)
		}
	})

	t.Run("wrong method", func(t *testing.T) {
		rec := httptest.NewRecorder()
		rc.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hook", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("want 405, got %d", rec.Code)
		}
	})
}
