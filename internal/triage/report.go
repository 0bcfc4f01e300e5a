package triage

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
)

var now = time.Now

// Report is the auditable result of one pipeline run. It lives only as long
// as the process does.
type Report struct {
	RunID      string
	Mode       SendMode
	StartedAt  time.Time
	FinishedAt time.Time
	Outcomes   []Outcome
}

func newReport(mode SendMode) *Report {
	return &Report{
		RunID:     uuid.NewString(),
		Mode:      mode,
		StartedAt: now(),
	}
}

func (r *Report) finish() { r.FinishedAt = now() }

// Summary aggregates a report's outcomes.
type Summary struct {
	Total                  int
	Skipped                int
	ReportedOnly           int
	Sent                   int
	Drafted                int
	DraftFailures          int
	ClassificationFailures int
	ByLabel                map[Label]int
}

func (r *Report) Summary() Summary {
	s := Summary{Total: len(r.Outcomes), ByLabel: make(map[Label]int)}
	for _, o := range r.Outcomes {
		switch o.State {
		case StateSkipped:
			s.Skipped++
		case StateReportedOnly:
			s.ReportedOnly++
		case StateSent:
			s.Sent++
		}
		switch o.Draft.Status {
		case DraftProduced:
			s.Drafted++
		case DraftFailed:
			s.DraftFailures++
		}
		if o.Classification != nil {
			s.ByLabel[o.Classification.Label]++
			if o.Classification.Failed() {
				s.ClassificationFailures++
			}
		}
	}
	return s
}

// WriteText renders the report for an operator.
func (r *Report) WriteText(w io.Writer) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "run %s (%s)\n", r.RunID, r.Mode)
	if len(r.Outcomes) == 0 {
		sb.WriteString("No new unread emails found.\n")
		_, err := io.WriteString(w, sb.String())
		return err
	}
	fmt.Fprintf(&sb, "Processed %d unread emails in %s.\n", len(r.Outcomes), r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))

	for _, o := range r.Outcomes {
		sb.WriteString(strings.Repeat("-", 20) + "\n")
		writeOutcome(&sb, o)
	}
	sb.WriteString(strings.Repeat("-", 20) + "\n")

	s := r.Summary()
	tw := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "total\tskipped\treported-only\tsent\tdrafted\tdraft failures\tclassify failures")
	fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
		s.Total, s.Skipped, s.ReportedOnly, s.Sent, s.Drafted, s.DraftFailures, s.ClassificationFailures)
	if err := tw.Flush(); err != nil {
		return err
	}
	var labels []string
	for _, l := range Labels {
		if n := s.ByLabel[l]; n > 0 {
			labels = append(labels, fmt.Sprintf("%s=%d", l, n))
		}
	}
	if len(labels) > 0 {
		fmt.Fprintf(&sb, "labels: %s\n", strings.Join(labels, " "))
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func writeOutcome(sb *strings.Builder, o Outcome) {
	fmt.Fprintf(sb, "message %s [%s]\n", o.MessageID, o.State)
	if o.Subject != "" {
		fmt.Fprintf(sb, "  subject: %s\n", o.Subject)
	}
	if o.From != "" {
		fmt.Fprintf(sb, "  from:    %s\n", o.From)
	}

	if o.Classification == nil {
		if o.Err != nil {
			fmt.Fprintf(sb, "  error:   %v\n", o.Err)
		} else {
			sb.WriteString("  could not retrieve a plain-text body\n")
		}
		return
	}

	c := o.Classification
	switch {
	case c.Failed():
		fmt.Fprintf(sb, "  classified as: %s (classification failed: %v)\n", c.Label, c.Err)
	case c.Raw != "" && !strings.EqualFold(c.Raw, string(c.Label)):
		fmt.Fprintf(sb, "  classified as: %s (model said %q)\n", c.Label, c.Raw)
	default:
		fmt.Fprintf(sb, "  classified as: %s\n", c.Label)
	}

	switch o.Draft.Status {
	case DraftNotNeeded:
		sb.WriteString("  no response needed\n")
	case DraftFailed:
		fmt.Fprintf(sb, "  draft failed: %v\n", o.Draft.Err)
	case DraftProduced:
		if o.Sent {
			sb.WriteString("  response sent:\n")
		} else {
			sb.WriteString("  drafted response (not sent):\n")
		}
		for _, line := range strings.Split(o.Draft.Text, "\n") {
			sb.WriteString("    " + line + "\n")
		}
	}
	if o.Err != nil {
		fmt.Fprintf(sb, "  error:   %v\n", o.Err)
	}
}
