package domain

import (
	"context"
	"strings"
)

// MailMessage is a read-only view of one message in the mail store.
type MailMessage struct {
	ID       string
	ThreadID string
	LabelIDs []string
	Snippet  string
	Payload  *Part
}

// Part is one node of a message's MIME tree. Body data is base64url encoded,
// exactly as the mail store transports it.
type Part struct {
	MimeType string
	Filename string
	Headers  []Header
	Body     PartBody
	Parts    []*Part
}

type PartBody struct {
	Data string
	Size int64
}

type Header struct {
	Name  string
	Value string
}

// Header returns the first header value matching name case-insensitively.
func (p *Part) Header(name string) string {
	if p == nil {
		return ""
	}
	for _, h := range p.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// Header returns a top-level header of the message.
func (m *MailMessage) Header(name string) string {
	if m == nil {
		return ""
	}
	return m.Payload.Header(name)
}

// Reply is an outgoing answer on an existing thread.
type Reply struct {
	ThreadID  string
	InReplyTo string // Message-ID of the message being answered, optional
	To        string
	Subject   string
	Body      string
}

// MailGateway is the mail-store surface the triage pipeline depends on.
type MailGateway interface {
	ListUnread(ctx context.Context) ([]string, error)
	GetMessage(ctx context.Context, id string) (*MailMessage, error)
	SendReply(ctx context.Context, reply Reply) error
	MarkRead(ctx context.Context, id string) error
}
