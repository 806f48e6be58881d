package session

import "time"

// State is the lifecycle of the active query's report.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateLoaded
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Query is one submitted query. Immutable after creation; owned by the
// history ledger.
type Query struct {
	ID          string
	Text        string
	SubmittedAt time.Time
}

// Priority classifies a notification for presentation. It carries no
// behavioral weight: no escalation, no expiry.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityNeeded Priority = "needed"
	PriorityMinor  Priority = "minor"
)

// Notification is one entry in the notification ledger. QueryID is a
// back-reference into the history ledger used by Rerun; the ledger never
// owns the query.
type Notification struct {
	ID        string
	Title     string
	Message   string
	Priority  Priority
	IsRead    bool
	Timestamp time.Time
	Source    string
	QueryID   string
}

// ViewMode selects between the two mutually exclusive section views.
type ViewMode int

const (
	// ViewAll shows every section concatenated, with a scroll anchor.
	ViewAll ViewMode = iota
	// ViewIndividual shows exactly one section with prev/next stepping.
	ViewIndividual
)

// ViewState pairs the active mode with the selected section. In ViewAll the
// selection is only a scroll anchor; in ViewIndividual it is the displayed
// section and must reference a section of the current report whenever the
// section list is non-empty.
type ViewState struct {
	Mode              ViewMode
	SelectedSectionID string
}

// StepDirection moves the individual-mode selection through document order.
type StepDirection int

const (
	StepPrevious StepDirection = -1
	StepNext     StepDirection = 1
)
