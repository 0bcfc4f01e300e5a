package triage

import (
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"inboxtriage/internal/domain"
)

const mimeTextPlain = "text/plain"

// Extractor pulls the plain-text body out of a message payload.
type Extractor struct {
	recursive bool
	logger    *slog.Logger
}

// NewExtractor returns an extractor. With recursive set it walks the whole
// MIME tree depth-first, root included; otherwise only the payload's direct
// parts are inspected.
func NewExtractor(recursive bool, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{recursive: recursive, logger: logger}
}

// Extract returns the decoded text of the first text/plain part carrying
// data, or "" when there is none or it cannot be decoded.
func (e *Extractor) Extract(payload *domain.Part) string {
	if payload == nil {
		return ""
	}
	var part *domain.Part
	if e.recursive {
		part = findTextPart(payload)
	} else {
		for _, p := range payload.Parts {
			if isTextPart(p) {
				part = p
				break
			}
		}
	}
	if part == nil {
		return ""
	}

	text, err := decodeBody(part.Body.Data)
	if err != nil {
		e.logger.Warn("cannot decode text/plain body", "size", part.Body.Size, "err", err)
		return ""
	}
	return text
}

func isTextPart(p *domain.Part) bool {
	return p != nil && p.MimeType == mimeTextPlain && p.Body.Data != ""
}

func findTextPart(p *domain.Part) *domain.Part {
	if p == nil {
		return nil
	}
	if isTextPart(p) {
		return p
	}
	for _, child := range p.Parts {
		if found := findTextPart(child); found != nil {
			return found
		}
	}
	return nil
}

var errInvalidUTF8 = errors.New("body is not valid UTF-8")

// decodeBody accepts base64url with or without padding. The decoded text
// must be valid UTF-8.
func decodeBody(data string) (string, error) {
	data = strings.TrimSpace(data)
	enc := base64.RawURLEncoding
	if strings.HasSuffix(data, "=") {
		enc = base64.URLEncoding
	}
	b, err := enc.DecodeString(data)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", errInvalidUTF8
	}
	return string(b), nil
}
