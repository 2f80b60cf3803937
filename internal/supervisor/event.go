package supervisor

import (
	"fmt"

	"github.com/fyrsmithlabs/shihand/internal/pager"
)

// EventType identifies what triggered a supervision cycle.
type EventType string

const (
	// EventCycleEnd fires at the boundary of an autonomous coding cycle.
	EventCycleEnd EventType = "cycle_end"

	// EventManualCheck is an operator-requested inspection. It reports
	// but never pages automatically.
	EventManualCheck EventType = "manual_check"

	// EventScrollCommitted fires when a plan document is committed.
	EventScrollCommitted EventType = "scroll_committed"
)

// Event is the typed trigger consumed once per Supervise call. Constructed
// by the caller, immutable afterwards.
type Event struct {
	Type         EventType `json:"event"`
	ScrollPath   string    `json:"scrollPath,omitempty"`
	ChangedFiles []string  `json:"changedFiles,omitempty"`
}

// Validate rejects events the orchestrator cannot dispatch.
func (e Event) Validate() error {
	switch e.Type {
	case EventCycleEnd, EventManualCheck:
		return nil
	case EventScrollCommitted:
		if e.ScrollPath == "" {
			return fmt.Errorf("%s event requires scrollPath", EventScrollCommitted)
		}
		return nil
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
}

// Report is the sole externally observable result of a supervised cycle.
// Never mutated after Supervise returns.
type Report struct {
	ActionsTaken []string      `json:"actionsTaken"`
	IssuesFound  []string      `json:"issuesFound"`
	Paged        bool          `json:"paged"`
	PageResult   *pager.Result `json:"pageResult,omitempty"`
}
