package mail

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	gomail "github.com/emersion/go-message/mail"

	"inboxtriage/internal/domain"
)

// ComposeReply renders reply as an RFC 5322 message with a single
// text/plain UTF-8 body. from is written only when it parses as an address;
// otherwise the mail store fills in the authenticated sender.
func ComposeReply(from string, reply domain.Reply) ([]byte, error) {
	if strings.TrimSpace(reply.To) == "" {
		return nil, fmt.Errorf("compose reply: missing recipient")
	}
	to, err := gomail.ParseAddressList(reply.To)
	if err != nil {
		return nil, fmt.Errorf("compose reply: invalid recipient %q: %w", reply.To, err)
	}

	var h gomail.Header
	h.SetDate(time.Now())
	if addr, err := gomail.ParseAddress(from); err == nil {
		h.SetAddressList("From", []*gomail.Address{addr})
	}
	h.SetAddressList("To", to)
	h.SetSubject(reply.Subject)
	if id := strings.Trim(strings.TrimSpace(reply.InReplyTo), "<>"); id != "" {
		h.SetMsgIDList("In-Reply-To", []string{id})
		h.SetMsgIDList("References", []string{id})
	}
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	h.Set("Content-Transfer-Encoding", "quoted-printable")

	var buf bytes.Buffer
	w, err := gomail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("compose reply: %w", err)
	}
	if _, err := io.WriteString(w, reply.Body); err != nil {
		return nil, fmt.Errorf("compose reply body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compose reply: %w", err)
	}
	return buf.Bytes(), nil
}
