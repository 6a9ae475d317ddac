package adapter

import "context"

// WebhookRequest is one signed delivery attempt.
type WebhookRequest struct {
	Body           []byte
	Signature      string
	IdempotencyKey string
	Timestamp      string
	CorrelationID  string
}

// WebhookSender performs a single HTTP delivery and reports the status code.
// A transport failure returns a non-nil error and status 0.
type WebhookSender interface {
	Send(ctx context.Context, req WebhookRequest) (int, error)
}

// Signer computes a signature over canonical bytes.
type Signer interface {
	Sign(payload []byte) string
	Verify(payload []byte, signature string) bool
}
