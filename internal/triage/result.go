package triage

import "strings"

// Label is one value of the closed classification taxonomy.
type Label string

const (
	LabelUrgent   Label = "Urgent"
	LabelFollowUp Label = "Follow-up"
	LabelSpam     Label = "Spam"
	LabelUnknown  Label = "Unknown"
)

// Labels lists the taxonomy in display order.
var Labels = []Label{LabelUrgent, LabelFollowUp, LabelSpam, LabelUnknown}

// Draftable reports whether messages with this label get a reply draft.
func (l Label) Draftable() bool {
	return l == LabelUrgent || l == LabelFollowUp
}

// ParseLabel maps free model output onto the taxonomy. Matching ignores
// case, surrounding whitespace, quotes and trailing punctuation. ok is false
// when the text names no known label, in which case Unknown is returned.
func ParseLabel(raw string) (Label, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.Trim(s, "\"'`*")
	s = strings.TrimRight(s, ".!:;,")
	s = strings.TrimSpace(s)

	switch s {
	case "urgent":
		return LabelUrgent, true
	case "follow-up", "followup", "follow up":
		return LabelFollowUp, true
	case "spam":
		return LabelSpam, true
	case "unknown":
		return LabelUnknown, true
	}
	return LabelUnknown, false
}

// Classification is the outcome of one classification attempt. A non-nil
// Err marks a failed attempt; Label is then Unknown. A model answer outside
// the taxonomy is a successful attempt with Label Unknown and Raw set.
type Classification struct {
	Label Label
	Raw   string
	Err   error
}

// Failed reports whether the provider call failed.
func (c Classification) Failed() bool { return c.Err != nil }

// DraftStatus distinguishes why a draft is or is not present.
type DraftStatus int

const (
	DraftNotNeeded DraftStatus = iota
	DraftProduced
	DraftFailed
)

func (s DraftStatus) String() string {
	switch s {
	case DraftProduced:
		return "produced"
	case DraftFailed:
		return "failed"
	default:
		return "not-needed"
	}
}

// Draft is the outcome of one draft decision. Text is set only when
// Produced, Err only when Failed.
type Draft struct {
	Status DraftStatus
	Text   string
	Err    error
}
