package triage

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// bodyPlaceholder marks where the email text goes in Prompts.ClassifyUser.
const bodyPlaceholder = "{body}"

// Prompts holds the instruction templates sent to the model.
type Prompts struct {
	ClassifySystem string `yaml:"classify_system"`
	ClassifyUser   string `yaml:"classify_user"`
	UrgentSystem   string `yaml:"urgent_system"`
	FollowUpSystem string `yaml:"follow_up_system"`
}

// DefaultPrompts returns the built-in templates.
func DefaultPrompts() Prompts {
	return Prompts{
		ClassifySystem: "You are a helpful assistant that classifies emails with a single word.",
		ClassifyUser: `You are an AI email assistant. Classify the following email into one of these categories:
- Urgent: The email requires an immediate response or action.
- Follow-up: The email requires a non-urgent response or a follow-up task.
- Spam: The email is unsolicited and likely promotional or unwanted.

Email content:
"{body}"

Classification:`,
		UrgentSystem: "Draft a professional, polite, and brief response to an urgent email, " +
			"acknowledging receipt and stating you will get back to them as soon as possible.",
		FollowUpSystem: "Draft a professional, polite response to an email, " +
			"acknowledging receipt and stating you will look into it soon.",
	}
}

// LoadPrompts reads a YAML file over the defaults. Keys left out keep their
// built-in text.
func LoadPrompts(path string) (Prompts, error) {
	p := DefaultPrompts()
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read prompts %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse prompts %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("prompts %s: %w", path, err)
	}
	return p, nil
}

func (p Prompts) Validate() error {
	var errs []string
	if strings.TrimSpace(p.ClassifySystem) == "" {
		errs = append(errs, "classify_system is empty")
	}
	if !strings.Contains(p.ClassifyUser, bodyPlaceholder) {
		errs = append(errs, "classify_user must contain "+bodyPlaceholder)
	}
	if strings.TrimSpace(p.UrgentSystem) == "" {
		errs = append(errs, "urgent_system is empty")
	}
	if strings.TrimSpace(p.FollowUpSystem) == "" {
		errs = append(errs, "follow_up_system is empty")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func (p Prompts) classifyUser(body string) string {
	return strings.ReplaceAll(p.ClassifyUser, bodyPlaceholder, body)
}

// truncateRunes cuts s to at most n characters without splitting UTF-8.
func truncateRunes(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
