// Package triage runs the per-message triage state machine: extract the
// plain-text body, classify it, draft a reply when the label calls for one,
// and either report the result or send it.
package triage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"inboxtriage/internal/domain"
	"inboxtriage/internal/metrics"
)

// SendMode selects whether drafted replies are sent or only reported.
type SendMode string

const (
	ModeReportOnly SendMode = "report-only"
	ModeLive       SendMode = "live"
)

// ParseSendMode accepts exactly the recognized mode names.
func ParseSendMode(s string) (SendMode, error) {
	switch SendMode(s) {
	case ModeReportOnly, ModeLive:
		return SendMode(s), nil
	}
	return "", fmt.Errorf("unknown send mode %q (want %s or %s)", s, ModeReportOnly, ModeLive)
}

// State is the terminal state of one message in a run.
type State string

const (
	StateSkipped      State = "skipped"
	StateReportedOnly State = "reported-only"
	StateSent         State = "sent"
)

// Outcome records what happened to one message.
type Outcome struct {
	MessageID      string
	ThreadID       string
	Subject        string
	From           string
	State          State
	Classification *Classification // nil when skipped before classification
	Draft          Draft
	Sent           bool
	Err            error
}

type PipelineConfig struct {
	Gateway    domain.MailGateway
	Extractor  *Extractor
	Classifier *Classifier
	Responder  *Responder
	Mode       SendMode // empty means report-only
	Logger     *slog.Logger
}

// Pipeline processes the unread batch sequentially.
type Pipeline struct {
	gateway    domain.MailGateway
	extractor  *Extractor
	classifier *Classifier
	responder  *Responder
	mode       SendMode
	logger     *slog.Logger
}

func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeReportOnly
	}
	if cfg.Extractor == nil {
		cfg.Extractor = NewExtractor(false, cfg.Logger)
	}
	return &Pipeline{
		gateway:    cfg.Gateway,
		extractor:  cfg.Extractor,
		classifier: cfg.Classifier,
		responder:  cfg.Responder,
		mode:       cfg.Mode,
		logger:     cfg.Logger,
	}
}

// Mode returns the send mode the pipeline was built with.
func (p *Pipeline) Mode() SendMode { return p.mode }

// Run processes every message in the unread batch once, in listing order.
// Per-message failures are recorded in the report and never stop the batch.
// An error is returned only when the batch cannot be listed, or together
// with the partial report when ctx is cancelled between messages.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	report := newReport(p.mode)

	ids, err := p.gateway.ListUnread(ctx)
	if err != nil {
		metrics.GatewayErrors.Inc()
		return nil, fmt.Errorf("list unread: %w", err)
	}
	if len(ids) == 0 {
		p.logger.Info("no new unread emails found")
		report.finish()
		return report, nil
	}
	p.logger.Info("processing unread batch", "count", len(ids), "mode", p.mode, "run", report.RunID)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			report.finish()
			return report, err
		}
		out := p.process(ctx, id)
		countOutcome(out)
		report.Outcomes = append(report.Outcomes, out)
	}

	report.finish()
	return report, nil
}

func (p *Pipeline) process(ctx context.Context, id string) Outcome {
	out := Outcome{MessageID: id}
	logger := p.logger.With("id", id)

	msg, err := p.gateway.GetMessage(ctx, id)
	if err != nil {
		metrics.GatewayErrors.Inc()
		logger.Warn("fetch failed, skipping", "err", err)
		return skipped(out, err)
	}
	if msg == nil {
		metrics.GatewayErrors.Inc()
		logger.Warn("fetch returned no message, skipping")
		return skipped(out, fmt.Errorf("get message %s: empty response", id))
	}
	out.ThreadID = msg.ThreadID
	out.Subject = msg.Header("Subject")
	out.From = msg.Header("From")

	body := p.extractor.Extract(msg.Payload)
	if strings.TrimSpace(body) == "" {
		logger.Info("no usable body, skipping")
		return skipped(out, nil)
	}

	c := p.classifier.Classify(ctx, body)
	out.Classification = &c
	logger.Info("classified", "label", c.Label, "raw", c.Raw, "failed", c.Failed())

	if c.Label.Draftable() {
		out.Draft = p.responder.Draft(ctx, body, string(c.Label))
	}
	if out.Draft.Status != DraftProduced || p.mode != ModeLive {
		out.State = StateReportedOnly
		return out
	}

	reply, err := BuildReply(msg, out.Draft.Text)
	if err != nil {
		logger.Warn("cannot address reply, skipping", "err", err)
		return skipped(out, err)
	}
	if err := p.gateway.SendReply(ctx, reply); err != nil {
		metrics.GatewayErrors.Inc()
		logger.Warn("send failed, skipping", "err", err)
		return skipped(out, err)
	}
	out.Sent = true

	if err := p.gateway.MarkRead(ctx, id); err != nil {
		metrics.GatewayErrors.Inc()
		logger.Warn("reply sent but mark-read failed", "err", err)
		return skipped(out, err)
	}
	out.State = StateSent
	return out
}

func skipped(out Outcome, err error) Outcome {
	out.State = StateSkipped
	out.Err = err
	return out
}

func countOutcome(out Outcome) {
	switch out.State {
	case StateSkipped:
		metrics.MessagesSkipped.Inc()
	case StateReportedOnly:
		metrics.MessagesReportedOnly.Inc()
	case StateSent:
		metrics.MessagesSent.Inc()
	}
}
