package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

type TerminalStatus string

const (
	TerminalStatusCompleted TerminalStatus = "completed"
	TerminalStatusFailed    TerminalStatus = "failed"
)

// Usage is the billing-relevant part of a terminal event.
type Usage struct {
	AudioDurationSeconds float64 `json:"audioDurationSeconds"`
	TranscriptCharacters int     `json:"transcriptCharacters"`
	ProcessingTimeMs     int64   `json:"processingTimeMs"`
	CacheHit             bool    `json:"cacheHit"`
}

type EventError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WebhookEvent is the canonical (unsigned) terminal event. Field order is the
// canonical serialization order.
type WebhookEvent struct {
	JobID          string         `json:"jobId"`
	CorrelationID  string         `json:"correlationId"`
	Status         TerminalStatus `json:"status"`
	Usage          Usage          `json:"usage"`
	Error          *EventError    `json:"error,omitempty"`
	IdempotencyKey string         `json:"idempotencyKey"`
	Timestamp      string         `json:"timestamp"`
}

// IdempotencyKey is a deterministic fingerprint of (jobID, status, timestamp).
func IdempotencyKey(jobID string, status TerminalStatus, ts time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%d", jobID, status, ts.UTC().UnixNano())))
	return hex.EncodeToString(sum[:])
}

// NewWebhookEvent builds the terminal event for a job. It returns false when
// the job is not terminal.
func NewWebhookEvent(j *Job) (WebhookEvent, bool) {
	status, ok := j.TerminalStatus()
	if !ok {
		return WebhookEvent{}, false
	}
	ev := WebhookEvent{
		JobID:          j.ID,
		CorrelationID:  j.CorrelationID,
		Status:         status,
		IdempotencyKey: IdempotencyKey(j.ID, status, j.UpdatedAt),
		Timestamp:      j.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if j.Result != nil {
		ev.Usage = Usage{
			AudioDurationSeconds: j.Result.DurationSeconds,
			TranscriptCharacters: j.Result.CharacterCount,
			ProcessingTimeMs:     j.Result.ProcessingTime.Milliseconds(),
			CacheHit:             j.Result.CacheHit,
		}
	}
	if j.Failure != nil {
		ev.Error = &EventError{Code: string(j.Failure.Kind), Message: j.Failure.Message}
	}
	return ev, true
}

// DeliveryRecord is one notification lineage held in the dead-letter queue.
type DeliveryRecord struct {
	JobID          string
	IdempotencyKey string
	Body           []byte
	Signature      string
	Timestamp      string
	CorrelationID  string
	Attempts       int
	LastError      string
	CreatedAt      time.Time
	LastAttemptAt  time.Time
}

func (r *DeliveryRecord) Clone() *DeliveryRecord {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Body = append([]byte(nil), r.Body...)
	return &cp
}
