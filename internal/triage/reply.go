package triage

import (
	"errors"
	"strings"

	"inboxtriage/internal/domain"
)

// ErrNoRecipient means the message has neither Reply-To nor From.
var ErrNoRecipient = errors.New("message has no reply address")

// BuildReply addresses body as an answer to msg on the same thread.
func BuildReply(msg *domain.MailMessage, body string) (domain.Reply, error) {
	to := strings.TrimSpace(msg.Header("Reply-To"))
	if to == "" {
		to = strings.TrimSpace(msg.Header("From"))
	}
	if to == "" {
		return domain.Reply{}, ErrNoRecipient
	}
	return domain.Reply{
		ThreadID:  msg.ThreadID,
		InReplyTo: msg.Header("Message-ID"),
		To:        to,
		Subject:   replySubject(msg.Header("Subject")),
		Body:      body,
	}, nil
}

func replySubject(subject string) string {
	subject = strings.TrimSpace(subject)
	if len(subject) >= 3 && strings.EqualFold(subject[:3], "re:") {
		return subject
	}
	return strings.TrimSpace("Re: " + subject)
}
