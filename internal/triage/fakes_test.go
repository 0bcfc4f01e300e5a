package triage

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"sync"

	"inboxtriage/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedCompleter answers with fn and records every request.
type scriptedCompleter struct {
	mu    sync.Mutex
	calls []domain.CompletionRequest
	fn    func(req domain.CompletionRequest) (string, error)
}

func (s *scriptedCompleter) Complete(_ context.Context, req domain.CompletionRequest) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()
	return s.fn(req)
}

func (s *scriptedCompleter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func answer(text string) *scriptedCompleter {
	return &scriptedCompleter{fn: func(domain.CompletionRequest) (string, error) { return text, nil }}
}

func failing(err error) *scriptedCompleter {
	return &scriptedCompleter{fn: func(domain.CompletionRequest) (string, error) { return "", err }}
}

// fakeGateway is an in-memory mailbox.
type fakeGateway struct {
	ids     []string
	msgs    map[string]*domain.MailMessage
	listErr error
	getErr  map[string]error
	sendErr error
	markErr error

	gets   []string
	sent   []domain.Reply
	marked []string
}

func (g *fakeGateway) ListUnread(context.Context) ([]string, error) {
	if g.listErr != nil {
		return nil, g.listErr
	}
	return append([]string(nil), g.ids...), nil
}

func (g *fakeGateway) GetMessage(_ context.Context, id string) (*domain.MailMessage, error) {
	g.gets = append(g.gets, id)
	if err := g.getErr[id]; err != nil {
		return nil, err
	}
	return g.msgs[id], nil
}

func (g *fakeGateway) SendReply(_ context.Context, r domain.Reply) error {
	if g.sendErr != nil {
		return g.sendErr
	}
	g.sent = append(g.sent, r)
	return nil
}

func (g *fakeGateway) MarkRead(_ context.Context, id string) error {
	if g.markErr != nil {
		return g.markErr
	}
	g.marked = append(g.marked, id)
	return nil
}

func encode(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

// textMessage builds a multipart/alternative message with a text/plain part.
// An empty body yields a message with only an HTML part.
func textMessage(id, subject, from, body string) *domain.MailMessage {
	payload := &domain.Part{
		MimeType: "multipart/alternative",
		Headers: []domain.Header{
			{Name: "Subject", Value: subject},
			{Name: "From", Value: from},
			{Name: "Message-ID", Value: "<" + id + "@mail.example.com>"},
		},
	}
	if body != "" {
		payload.Parts = append(payload.Parts, &domain.Part{
			MimeType: "text/plain",
			Body:     domain.PartBody{Data: encode(body), Size: int64(len(body))},
		})
	}
	payload.Parts = append(payload.Parts, &domain.Part{
		MimeType: "text/html",
		Body:     domain.PartBody{Data: encode("<p>" + body + "</p>")},
	})
	return &domain.MailMessage{ID: id, ThreadID: "thread-" + id, Payload: payload}
}
