// Package webhook delivers and verifies signed terminal events.
package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"tttranscribe/internal/domain/model"
	"tttranscribe/internal/domain/ports/adapter"
)

const (
	HeaderSignature      = "X-Webhook-Signature"
	HeaderIdempotencyKey = "X-Idempotency-Key"
	HeaderTimestamp      = "X-Webhook-Timestamp"
	HeaderCorrelationID  = "X-Correlation-Id"
)

var ErrBadSignature = errors.New("webhook: signature mismatch")

// signedEvent is the delivered body: the canonical event plus its signature.
type signedEvent struct {
	model.WebhookEvent
	Signature string `json:"signature"`
}

// Canonical is the byte form the signature covers.
func Canonical(ev model.WebhookEvent) ([]byte, error) {
	return json.Marshal(ev)
}

// Encode signs ev and returns the body to deliver and the signature.
func Encode(ev model.WebhookEvent, signer adapter.Signer) ([]byte, string, error) {
	canon, err := Canonical(ev)
	if err != nil {
		return nil, "", fmt.Errorf("canonicalize event: %w", err)
	}
	sig := signer.Sign(canon)
	body, err := json.Marshal(signedEvent{WebhookEvent: ev, Signature: sig})
	if err != nil {
		return nil, "", fmt.Errorf("encode event: %w", err)
	}
	return body, sig, nil
}

// VerifyBody decodes a delivered body, checks the embedded signature over
// the canonical form and requires body to be exactly the canonical encoding.
// Any byte outside that encoding (field-name case, extra fields, spacing)
// is rejected.
func VerifyBody(signer adapter.Signer, body []byte) (model.WebhookEvent, error) {
	var se signedEvent
	if err := json.Unmarshal(body, &se); err != nil {
		return model.WebhookEvent{}, fmt.Errorf("decode event: %w", err)
	}
	canon, err := Canonical(se.WebhookEvent)
	if err != nil {
		return model.WebhookEvent{}, err
	}
	if se.Signature == "" || !signer.Verify(canon, se.Signature) {
		return model.WebhookEvent{}, ErrBadSignature
	}
	want, _, err := Encode(se.WebhookEvent, signer)
	if err != nil {
		return model.WebhookEvent{}, err
	}
	if !bytes.Equal(want, body) {
		return model.WebhookEvent{}, ErrBadSignature
	}
	return se.WebhookEvent, nil
}
