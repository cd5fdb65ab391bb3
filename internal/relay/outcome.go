package relay

import (
	"fmt"
	"time"
)

// Status is the per-item result of a run.
type Status string

// Item statuses.
const (
	StatusSent    Status = "sent"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Outcome records what happened to one picked item. Each item yields
// exactly one Outcome per run.
type Outcome struct {
	ItemID   string
	Filename string
	Status   Status
	Detail   string
}

// Result tallies a run. Outcomes are appended in enumeration order.
type Result struct {
	RunID     string
	SessionID string
	Started   time.Time
	Duration  time.Duration
	Outcomes  []Outcome

	Sent    int
	Skipped int
	Failed  int
}

func (r *Result) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)

	switch o.Status {
	case StatusSent:
		r.Sent++
	case StatusSkipped:
		r.Skipped++
	case StatusFailed:
		r.Failed++
	}
}

// Total is the number of items the run saw.
func (r *Result) Total() int {
	return len(r.Outcomes)
}

// Summary is the one-line tally shown to the user.
func (r *Result) Summary() string {
	s := fmt.Sprintf("Done. Sent %d item(s).", r.Sent)

	if r.Skipped > 0 {
		s += fmt.Sprintf(" %d already sent.", r.Skipped)
	}

	if r.Failed > 0 {
		s += fmt.Sprintf(" %d failed.", r.Failed)
	}

	return s
}
