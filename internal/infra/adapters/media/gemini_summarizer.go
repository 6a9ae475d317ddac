package media

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"

	"tttranscribe/internal/domain/ports/adapter"
)

var _ adapter.Summarizer = (*GeminiSummarizer)(nil)

type GeminiSummarizer struct {
	client *genai.Client
	model  string
	maxOut int
}

// NewGeminiSummarizer builds a summarizer over the official Gemini SDK.
// An empty baseURL uses the SDK default endpoint.
func NewGeminiSummarizer(ctx context.Context, apiKey, baseURL, model string, maxOut int) (*GeminiSummarizer, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	if maxOut <= 0 {
		maxOut = 512
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiSummarizer{client: c, model: model, maxOut: maxOut}, nil
}

func (g *GeminiSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(summaryInput(text)),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(summaryInstruction, genai.RoleUser),
			MaxOutputTokens:   int32(g.maxOut),
		},
	)
	if err != nil {
		return "", err
	}
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		var b strings.Builder
		for _, p := range resp.Candidates[0].Content.Parts {
			if p != nil {
				b.WriteString(p.Text)
			}
		}
		if s := strings.TrimSpace(b.String()); s != "" {
			return s, nil
		}
	}
	return "", errors.New("gemini: empty response")
}
