package triage

import (
	"context"
	"log/slog"
	"strings"

	"inboxtriage/internal/domain"
	"inboxtriage/internal/metrics"
)

// ClassifierConfig configures a Classifier. Zero numeric fields take the
// defaults used by the config package.
type ClassifierConfig struct {
	Completer   domain.Completer
	Prompts     Prompts
	BodyLimit   int
	MaxTokens   int
	Temperature float64
	Logger      *slog.Logger
}

// Classifier assigns one taxonomy label to an email body.
type Classifier struct {
	completer   domain.Completer
	prompts     Prompts
	bodyLimit   int
	maxTokens   int
	temperature float64
	logger      *slog.Logger
}

func NewClassifier(cfg ClassifierConfig) *Classifier {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Prompts == (Prompts{}) {
		cfg.Prompts = DefaultPrompts()
	}
	if cfg.BodyLimit <= 0 {
		cfg.BodyLimit = 1000
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 10
	}
	return &Classifier{
		completer:   cfg.Completer,
		prompts:     cfg.Prompts,
		bodyLimit:   cfg.BodyLimit,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      cfg.Logger,
	}
}

// Classify issues exactly one completion request. It never fails: a provider
// error yields Unknown with Err set.
func (c *Classifier) Classify(ctx context.Context, body string) Classification {
	text, err := c.completer.Complete(ctx, domain.CompletionRequest{
		System:      c.prompts.ClassifySystem,
		User:        c.prompts.classifyUser(truncateRunes(body, c.bodyLimit)),
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		metrics.ClassificationFailures.Inc()
		c.logger.Warn("classification failed", "err", err)
		return Classification{Label: LabelUnknown, Err: err}
	}

	raw := strings.TrimSpace(text)
	label, ok := ParseLabel(raw)
	if !ok {
		c.logger.Info("model answer outside taxonomy", "answer", raw)
	}
	return Classification{Label: label, Raw: raw}
}
