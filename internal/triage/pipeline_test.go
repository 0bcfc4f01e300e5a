package triage

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"inboxtriage/internal/domain"
)

// inboxModel classifies by keyword and drafts a fixed reply.
func inboxModel() *scriptedCompleter {
	p := DefaultPrompts()
	return &scriptedCompleter{fn: func(req domain.CompletionRequest) (string, error) {
		if req.System != p.ClassifySystem {
			return "We received your message and will reply shortly.", nil
		}
		switch {
		case strings.Contains(req.User, "server is down"):
			return "Urgent", nil
		case strings.Contains(req.User, "invoice"):
			return "Follow-up", nil
		case strings.Contains(req.User, "cheap"):
			return "Spam", nil
		}
		return "Unknown", nil
	}}
}

func newTestPipeline(gw domain.MailGateway, c domain.Completer, mode SendMode) *Pipeline {
	logger := testLogger()
	return NewPipeline(PipelineConfig{
		Gateway:    gw,
		Extractor:  NewExtractor(false, logger),
		Classifier: newTestClassifier(c),
		Responder:  newTestResponder(c),
		Mode:       mode,
		Logger:     logger,
	})
}

func threeMessageInbox() *fakeGateway {
	return &fakeGateway{
		ids: []string{"a", "b", "c"},
		msgs: map[string]*domain.MailMessage{
			"a": textMessage("a", "(no body)", "x@example.com", ""),
			"b": textMessage("b", "Outage", "ops@example.com", "The server is down, please help."),
			"c": textMessage("c", "Deal", "shop@example.com", "Buy cheap watches now"),
		},
	}
}

func states(r *Report) []State {
	var out []State
	for _, o := range r.Outcomes {
		out = append(out, o.State)
	}
	return out
}

func TestPipeline_ReportOnlyBatch(t *testing.T) {
	gw := threeMessageInbox()
	model := inboxModel()

	report, err := newTestPipeline(gw, model, ModeReportOnly).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	want := []State{StateSkipped, StateReportedOnly, StateReportedOnly}
	if got := states(report); !reflect.DeepEqual(got, want) {
		t.Fatalf("states = %v, want %v", got, want)
	}

	a, b, c := report.Outcomes[0], report.Outcomes[1], report.Outcomes[2]
	if a.Classification != nil || a.Err != nil {
		t.Fatalf("empty body should skip before classification without error: %+v", a)
	}
	if b.Classification.Label != LabelUrgent || b.Draft.Status != DraftProduced || b.Draft.Text == "" {
		t.Fatalf("urgent message should carry a draft: %+v", b)
	}
	if c.Classification.Label != LabelSpam || c.Draft.Status != DraftNotNeeded {
		t.Fatalf("spam message should have no draft: %+v", c)
	}

	if len(gw.sent) != 0 || len(gw.marked) != 0 {
		t.Fatalf("report-only must not send or mark read: sent=%d marked=%d", len(gw.sent), len(gw.marked))
	}
	// classify b, draft b, classify c
	if model.count() != 3 {
		t.Fatalf("expected 3 model calls, got %d", model.count())
	}
}

func TestPipeline_FetchFailureDoesNotAbortBatch(t *testing.T) {
	gw := threeMessageInbox()
	gw.msgs["a"] = textMessage("a", "Invoice", "acct@example.com", "Please check the invoice.")
	fetchErr := errors.New("503 backend error")
	gw.getErr = map[string]error{"b": fetchErr}

	report, err := newTestPipeline(gw, inboxModel(), ModeReportOnly).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(report.Outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(report.Outcomes))
	}

	a, b, c := report.Outcomes[0], report.Outcomes[1], report.Outcomes[2]
	if a.State != StateReportedOnly || a.Classification.Label != LabelFollowUp || a.Draft.Status != DraftProduced {
		t.Fatalf("a not fully processed: %+v", a)
	}
	if b.State != StateSkipped || !errors.Is(b.Err, fetchErr) {
		t.Fatalf("b should be skipped with the fetch error: %+v", b)
	}
	if c.State != StateReportedOnly || c.Classification.Label != LabelSpam {
		t.Fatalf("c not fully processed: %+v", c)
	}
	if !reflect.DeepEqual(gw.gets, []string{"a", "b", "c"}) {
		t.Fatalf("fetch order = %v", gw.gets)
	}
}

func TestPipeline_MissingMessageIsSkipped(t *testing.T) {
	gw := threeMessageInbox()
	gw.ids = append([]string{"gone"}, gw.ids...)

	report, err := newTestPipeline(gw, inboxModel(), ModeReportOnly).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []State{StateSkipped, StateSkipped, StateReportedOnly, StateReportedOnly}
	if got := states(report); !reflect.DeepEqual(got, want) {
		t.Fatalf("states = %v, want %v", got, want)
	}
	gone := report.Outcomes[0]
	if gone.Err == nil || !strings.Contains(gone.Err.Error(), "gone") || gone.Classification != nil {
		t.Fatalf("missing message should be skipped with an error naming it: %+v", gone)
	}
}

func TestPipeline_ClassificationFailure(t *testing.T) {
	gw := &fakeGateway{
		ids:  []string{"m"},
		msgs: map[string]*domain.MailMessage{"m": textMessage("m", "Hello", "a@example.com", "The server is down")},
	}
	model := failing(errors.New("provider unavailable"))

	report, err := newTestPipeline(gw, model, ModeLive).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	o := report.Outcomes[0]
	if o.State != StateReportedOnly {
		t.Fatalf("expected reported-only, got %s", o.State)
	}
	if o.Classification.Label != LabelUnknown || !o.Classification.Failed() {
		t.Fatalf("expected failed Unknown classification, got %+v", o.Classification)
	}
	if o.Draft.Status != DraftNotNeeded {
		t.Fatalf("expected no draft, got %+v", o.Draft)
	}
	if model.count() != 1 {
		t.Fatalf("responder must not call the model, got %d calls", model.count())
	}
	if len(gw.sent) != 0 {
		t.Fatal("nothing should be sent")
	}
}

func TestPipeline_LiveModeSendsAndMarksRead(t *testing.T) {
	gw := threeMessageInbox()
	gw.msgs["b"].Payload.Headers = append(gw.msgs["b"].Payload.Headers,
		domain.Header{Name: "Reply-To", Value: "oncall@example.com"})

	report, err := newTestPipeline(gw, inboxModel(), ModeLive).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	want := []State{StateSkipped, StateSent, StateReportedOnly}
	if got := states(report); !reflect.DeepEqual(got, want) {
		t.Fatalf("states = %v, want %v", got, want)
	}
	if len(gw.sent) != 1 || !reflect.DeepEqual(gw.marked, []string{"b"}) {
		t.Fatalf("expected one send and one mark-read for b, got sent=%v marked=%v", gw.sent, gw.marked)
	}

	r := gw.sent[0]
	if r.ThreadID != "thread-b" || r.To != "oncall@example.com" || r.Subject != "Re: Outage" {
		t.Fatalf("reply misaddressed: %+v", r)
	}
	if r.InReplyTo != "<b@mail.example.com>" {
		t.Fatalf("in-reply-to = %q", r.InReplyTo)
	}
	if !report.Outcomes[1].Sent {
		t.Fatal("outcome should be marked sent")
	}
}

func TestPipeline_SendFailureSkips(t *testing.T) {
	gw := threeMessageInbox()
	sendErr := errors.New("quota exceeded")
	gw.sendErr = sendErr

	report, err := newTestPipeline(gw, inboxModel(), ModeLive).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	b := report.Outcomes[1]
	if b.State != StateSkipped || b.Sent || !errors.Is(b.Err, sendErr) {
		t.Fatalf("expected skipped unsent outcome, got %+v", b)
	}
	if len(gw.marked) != 0 {
		t.Fatal("unsent message must stay unread")
	}
	if report.Outcomes[2].State != StateReportedOnly {
		t.Fatal("batch should continue after a send failure")
	}
}

func TestPipeline_MarkReadFailureAfterSend(t *testing.T) {
	gw := threeMessageInbox()
	markErr := errors.New("modify failed")
	gw.markErr = markErr

	report, err := newTestPipeline(gw, inboxModel(), ModeLive).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	b := report.Outcomes[1]
	if b.State != StateSkipped || !b.Sent || !errors.Is(b.Err, markErr) {
		t.Fatalf("expected skipped-but-sent outcome, got %+v", b)
	}
}

func TestPipeline_MissingRecipientSkipsInLiveMode(t *testing.T) {
	msg := textMessage("m", "Outage", "", "The server is down")
	gw := &fakeGateway{ids: []string{"m"}, msgs: map[string]*domain.MailMessage{"m": msg}}

	report, err := newTestPipeline(gw, inboxModel(), ModeLive).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	o := report.Outcomes[0]
	if o.State != StateSkipped || !errors.Is(o.Err, ErrNoRecipient) || o.Sent {
		t.Fatalf("expected skipped with ErrNoRecipient, got %+v", o)
	}
	if len(gw.sent) != 0 {
		t.Fatal("nothing should be sent")
	}
}

func TestPipeline_ListFailureIsReturned(t *testing.T) {
	listErr := errors.New("unauthorized")
	gw := &fakeGateway{listErr: listErr}

	report, err := newTestPipeline(gw, inboxModel(), ModeReportOnly).Run(context.Background())
	if !errors.Is(err, listErr) || report != nil {
		t.Fatalf("expected list error and no report, got %v / %v", report, err)
	}
}

func TestPipeline_EmptyBatch(t *testing.T) {
	model := inboxModel()
	report, err := newTestPipeline(&fakeGateway{}, model, ModeReportOnly).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(report.Outcomes) != 0 || model.count() != 0 {
		t.Fatalf("expected empty report and no model calls, got %d outcomes, %d calls", len(report.Outcomes), model.count())
	}
	if report.FinishedAt.IsZero() || report.RunID == "" {
		t.Fatal("report should be finished and carry a run id")
	}
}

func TestPipeline_CancellationReturnsPartialReport(t *testing.T) {
	gw := threeMessageInbox()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inner := inboxModel()
	model := &scriptedCompleter{fn: func(req domain.CompletionRequest) (string, error) {
		cancel()
		return inner.fn(req)
	}}

	report, err := newTestPipeline(gw, model, ModeReportOnly).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if report == nil || len(report.Outcomes) != 2 {
		t.Fatalf("expected outcomes for a and b only, got %+v", report)
	}
	if report.Outcomes[1].MessageID != "b" {
		t.Fatalf("unexpected last outcome %+v", report.Outcomes[1])
	}
}

func TestPipeline_IdempotentWithoutMarkRead(t *testing.T) {
	gw := threeMessageInbox()
	p := newTestPipeline(gw, inboxModel(), ModeReportOnly)

	first, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	second, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if first.RunID == second.RunID {
		t.Fatal("each run gets its own id")
	}
	if !reflect.DeepEqual(first.Outcomes, second.Outcomes) {
		t.Fatalf("outcomes differ between runs:\n%+v\n%+v", first.Outcomes, second.Outcomes)
	}
}

func TestParseSendMode(t *testing.T) {
	for _, s := range []string{"report-only", "live"} {
		if _, err := ParseSendMode(s); err != nil {
			t.Errorf("%q: %v", s, err)
		}
	}
	for _, s := range []string{"", "Live", "send"} {
		if _, err := ParseSendMode(s); err == nil {
			t.Errorf("%q: expected error", s)
		}
	}
}

func TestBuildReply_Subject(t *testing.T) {
	cases := map[string]string{
		"Outage":       "Re: Outage",
		"Re: Outage":   "Re: Outage",
		"RE: Outage":   "RE: Outage",
		"re:Outage":    "re:Outage",
		"Regarding Q3": "Re: Regarding Q3",
		"":             "Re:",
	}
	for subject, want := range cases {
		msg := textMessage("m", subject, "a@example.com", "x")
		r, err := BuildReply(msg, "body")
		if err != nil {
			t.Fatalf("%q: %v", subject, err)
		}
		if r.Subject != want {
			t.Errorf("subject %q: got %q, want %q", subject, r.Subject, want)
		}
	}
}
