package media

import (
	"context"
	"errors"
	"strings"

	"tttranscribe/internal/domain/ports/adapter"
)

var _ adapter.Summarizer = (*MultiSummarizer)(nil)

// MultiSummarizer routes to the provider that owns the configured model and
// falls back to the remaining providers in order.
type MultiSummarizer struct {
	order      []string
	byProvider map[string]adapter.Summarizer
}

// NewMultiSummarizer returns nil when no provider is configured, which the
// job pipeline treats as "summaries off".
func NewMultiSummarizer(model string, byProvider map[string]adapter.Summarizer) adapter.Summarizer {
	avail := map[string]adapter.Summarizer{}
	for name, s := range byProvider {
		if s != nil {
			avail[strings.ToLower(name)] = s
		}
	}
	if len(avail) == 0 {
		return nil
	}
	first := resolveProvider(model)
	order := make([]string, 0, len(avail))
	if _, ok := avail[first]; ok {
		order = append(order, first)
	}
	for _, name := range []string{"openai", "gemini"} {
		if _, ok := avail[name]; ok && name != first {
			order = append(order, name)
		}
	}
	for name := range avail {
		if name != "openai" && name != "gemini" && name != first {
			order = append(order, name)
		}
	}
	return &MultiSummarizer{order: order, byProvider: avail}
}

func resolveProvider(model string) string {
	if strings.HasPrefix(strings.ToLower(model), "gemini") {
		return "gemini"
	}
	return "openai"
}

func (m *MultiSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	var errs []error
	for _, name := range m.order {
		out, err := m.byProvider[name].Summarize(ctx, text)
		if err == nil {
			return out, nil
		}
		errs = append(errs, errors.New(name+": "+err.Error()))
		if ctx.Err() != nil {
			break
		}
	}
	return "", errors.Join(errs...)
}
