// Package mail implements the mail gateway on top of the Gmail API.
package mail

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	"google.golang.org/api/gmail/v1"

	"inboxtriage/internal/domain"
)

const (
	labelUnread = "UNREAD"

	// Gmail caps a single list page at 500 ids.
	maxPageSize = 500
)

// GatewayConfig configures a GmailGateway.
type GatewayConfig struct {
	Service    *gmail.Service
	User       string // userId, "me" for the authorized account
	Query      string // search query selecting the unread batch
	MaxResults int    // cap on the batch size
	From       string // From header on replies; left to Gmail when not an address
	Logger     *slog.Logger
}

// GmailGateway talks to one Gmail mailbox.
type GmailGateway struct {
	srv        *gmail.Service
	user       string
	query      string
	maxResults int
	from       string
	logger     *slog.Logger
}

var _ domain.MailGateway = (*GmailGateway)(nil)

func NewGmailGateway(cfg GatewayConfig) *GmailGateway {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.User == "" {
		cfg.User = "me"
	}
	if cfg.Query == "" {
		cfg.Query = "is:unread"
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 100
	}
	return &GmailGateway{
		srv:        cfg.Service,
		user:       cfg.User,
		query:      cfg.Query,
		maxResults: cfg.MaxResults,
		from:       cfg.From,
		logger:     cfg.Logger,
	}
}

// ListUnread returns message ids matching the configured query, in the order
// Gmail returns them, following page tokens up to MaxResults.
func (g *GmailGateway) ListUnread(ctx context.Context) ([]string, error) {
	var (
		ids       []string
		pageToken string
	)
	for len(ids) < g.maxResults {
		call := g.srv.Users.Messages.List(g.user).
			Q(g.query).
			MaxResults(int64(min(g.maxResults-len(ids), maxPageSize))).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("list messages: %w", err)
		}
		for _, m := range resp.Messages {
			if len(ids) == g.maxResults {
				break
			}
			ids = append(ids, m.Id)
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}
	g.logger.Debug("listed messages", "query", g.query, "count", len(ids))
	return ids, nil
}

// GetMessage fetches the full payload of one message.
func (g *GmailGateway) GetMessage(ctx context.Context, id string) (*domain.MailMessage, error) {
	msg, err := g.srv.Users.Messages.Get(g.user, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", id, err)
	}
	return &domain.MailMessage{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		LabelIDs: msg.LabelIds,
		Snippet:  msg.Snippet,
		Payload:  convertPart(msg.Payload),
	}, nil
}

// SendReply composes the reply and sends it on the original thread.
func (g *GmailGateway) SendReply(ctx context.Context, reply domain.Reply) error {
	raw, err := ComposeReply(g.from, reply)
	if err != nil {
		return err
	}
	out := &gmail.Message{
		Raw:      base64.URLEncoding.EncodeToString(raw),
		ThreadId: reply.ThreadID,
	}
	sent, err := g.srv.Users.Messages.Send(g.user, out).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("send reply on thread %s: %w", reply.ThreadID, err)
	}
	g.logger.Info("reply sent", "thread", reply.ThreadID, "id", sent.Id, "to", reply.To)
	return nil
}

// MarkRead removes the UNREAD label.
func (g *GmailGateway) MarkRead(ctx context.Context, id string) error {
	req := &gmail.ModifyMessageRequest{RemoveLabelIds: []string{labelUnread}}
	if _, err := g.srv.Users.Messages.Modify(g.user, id, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("mark read %s: %w", id, err)
	}
	return nil
}

func convertPart(p *gmail.MessagePart) *domain.Part {
	if p == nil {
		return nil
	}
	part := &domain.Part{
		MimeType: p.MimeType,
		Filename: p.Filename,
	}
	for _, h := range p.Headers {
		part.Headers = append(part.Headers, domain.Header{Name: h.Name, Value: h.Value})
	}
	if p.Body != nil {
		part.Body = domain.PartBody{Data: p.Body.Data, Size: p.Body.Size}
	}
	for _, child := range p.Parts {
		part.Parts = append(part.Parts, convertPart(child))
	}
	return part
}
