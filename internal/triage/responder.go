package triage

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"inboxtriage/internal/domain"
	"inboxtriage/internal/metrics"
)

// ErrEmptyDraft is recorded when the model returns no text for a draft.
var ErrEmptyDraft = errors.New("model returned an empty draft")

type ResponderConfig struct {
	Completer   domain.Completer
	Prompts     Prompts
	BodyLimit   int
	MaxTokens   int
	Temperature float64
	Logger      *slog.Logger
}

// Responder drafts replies for labels that warrant one.
type Responder struct {
	completer   domain.Completer
	prompts     Prompts
	bodyLimit   int
	maxTokens   int
	temperature float64
	logger      *slog.Logger
}

func NewResponder(cfg ResponderConfig) *Responder {
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
		cfg.MaxTokens = 150
	}
	return &Responder{
		completer:   cfg.Completer,
		prompts:     cfg.Prompts,
		bodyLimit:   cfg.BodyLimit,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      cfg.Logger,
	}
}

// Draft returns NotNeeded without calling the model for labels other than
// Urgent and Follow-up. label must equal one of them ignoring case; model
// output is normalized by ParseLabel before it gets here.
func (r *Responder) Draft(ctx context.Context, body, label string) Draft {
	var system string
	switch {
	case strings.EqualFold(label, string(LabelUrgent)):
		system = r.prompts.UrgentSystem
	case strings.EqualFold(label, string(LabelFollowUp)):
		system = r.prompts.FollowUpSystem
	default:
		return Draft{Status: DraftNotNeeded}
	}

	text, err := r.completer.Complete(ctx, domain.CompletionRequest{
		System:      system,
		User:        truncateRunes(body, r.bodyLimit),
		MaxTokens:   r.maxTokens,
		Temperature: r.temperature,
	})
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyDraft
	}
	if err != nil {
		metrics.DraftsFailed.Inc()
		r.logger.Warn("draft failed", "label", label, "err", err)
		return Draft{Status: DraftFailed, Err: err}
	}

	metrics.DraftsProduced.Inc()
	return Draft{Status: DraftProduced, Text: strings.TrimSpace(text)}
}
