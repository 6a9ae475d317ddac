package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"tttranscribe/internal/domain/ports/adapter"
)

var _ adapter.Signer = (*HMACSigner)(nil)

// SignaturePrefix tags the algorithm in the signature header value.
const SignaturePrefix = "sha256="

// HMACSigner signs canonical payloads with HMAC-SHA256 over a shared secret.
type HMACSigner struct {
	secret []byte
}

func NewHMACSigner(secret string) (*HMACSigner, error) {
	if secret == "" {
		return nil, errors.New("hmac signer: empty secret")
	}
	return &HMACSigner{secret: []byte(secret)}, nil
}

// Sign returns "sha256=<hex>".
func (s *HMACSigner) Sign(payload []byte) string {
	h := hmac.New(sha256.New, s.secret)
	h.Write(payload)
	return SignaturePrefix + hex.EncodeToString(h.Sum(nil))
}

// Verify accepts the signature with or without the prefix, in any hex case.
func (s *HMACSigner) Verify(payload []byte, signature string) bool {
	sig := strings.ToLower(strings.TrimSpace(signature))
	sig = strings.TrimPrefix(sig, SignaturePrefix)
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	h := hmac.New(sha256.New, s.secret)
	h.Write(payload)
	return hmac.Equal(h.Sum(nil), got)
}
