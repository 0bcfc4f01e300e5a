package provider

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"inboxtriage/internal/domain"
	"inboxtriage/internal/metrics"
)

// Completer adapts a chat Provider to the single-turn domain.Completer
// contract used by the triage stages. Every returned error carries a
// *ProviderError reachable through errors.As.
type Completer struct {
	provider domain.Provider
	logger   *slog.Logger
}

func NewCompleter(p domain.Provider, logger *slog.Logger) *Completer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Completer{provider: p, logger: logger}
}

func (c *Completer) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	msgs := make([]domain.Message, 0, 2)
	if req.System != "" {
		msgs = append(msgs, domain.Message{Role: "system", Content: req.System})
	}
	msgs = append(msgs, domain.Message{Role: "user", Content: req.User})

	start := time.Now()
	resp, err := c.provider.Chat(ctx, domain.ChatRequest{
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	elapsed := time.Since(start)
	metrics.LLMRequestsTotal.Inc()
	metrics.LLMLatency.Observe(elapsed.Seconds())

	if err != nil {
		metrics.LLMErrorsTotal.Inc()
		var perr *ProviderError
		if errors.As(err, &perr) {
			return "", err
		}
		return "", &ProviderError{Provider: c.provider.Name(), Err: err}
	}

	c.logger.Debug("completion done",
		"provider", c.provider.Name(),
		"latency_ms", elapsed.Milliseconds(),
		"tokens", resp.Usage.TotalTokens,
		"finish", resp.FinishReason,
	)
	return strings.TrimSpace(resp.Content), nil
}
