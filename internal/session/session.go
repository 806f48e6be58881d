// Package session holds the state model behind the IntelScout front end: the
// lifecycle of the active query's report, the view navigator over its
// sections, and the notification and history ledgers.
//
// The Controller is the single mutation entry point. It is written for
// single-threaded, event-driven use: the front end's update loop applies user
// actions and fetch completions serially, so no internal locking exists.
// Asynchronous fetch results are applied through the Resolve methods, which
// carry explicit request identity and silently discard responses that no
// longer correspond to the active query.
package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/csheth/intelscout/internal/report"
)

var (
	// ErrEmptyQuery rejects blank submissions before any service call.
	ErrEmptyQuery = errors.New("query text is empty")
	// ErrUnknownNotification is returned by RerunNotification for ids that
	// are not in the ledger.
	ErrUnknownNotification = errors.New("notification not found")
	// ErrQueryDeleted is returned when a notification's query is no longer
	// in the history ledger.
	ErrQueryDeleted = errors.New("original query no longer in history")
)

// SubmitTicket identifies one submission leg. The token is checked when the
// create-query call resolves, so a submission superseded by another action
// cannot clobber newer state.
type SubmitTicket struct {
	Token uint64
	Text  string
}

// Controller is the composition root owning all session sub-states. All
// reads go through Snapshot, which returns copies.
type Controller struct {
	log *zap.Logger
	now func() time.Time

	state         State
	errMessage    string
	activeQueryID string
	sections      []report.Section

	nav           Navigator
	history       History
	notifications NotificationLedger

	submitSeq  uint64
	submitText string
	// notifyQueryID marks the query whose next successful load appends a
	// completion notification. Only the submit path sets it; re-activating
	// a query from history never notifies.
	notifyQueryID string
}

// New returns an idle controller. A nil logger disables logging.
func New(log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{log: log, now: time.Now}
}

// SubmitQuery validates the text and moves the session to Loading. The caller
// is expected to invoke the service's create-query operation and feed the
// result to ResolveQueryCreated with the returned ticket's token. Blank text
// is rejected with ErrEmptyQuery before any state mutation.
func (c *Controller) SubmitQuery(text string) (SubmitTicket, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return SubmitTicket{}, ErrEmptyQuery
	}
	c.submitSeq++
	c.submitText = trimmed
	c.state = StateLoading
	c.errMessage = ""
	c.activeQueryID = ""
	c.notifyQueryID = ""
	c.replaceReport(nil)
	c.log.Info("query submitted", zap.Uint64("token", c.submitSeq))
	return SubmitTicket{Token: c.submitSeq, Text: trimmed}, nil
}

// ResolveQueryCreated applies the result of the create-query call. Results
// for a superseded submission token are discarded and reported false.
func (c *Controller) ResolveQueryCreated(token uint64, queryID string, err error) bool {
	if token != c.submitSeq {
		c.log.Debug("discarding stale query creation", zap.Uint64("token", token))
		return false
	}
	if err != nil {
		c.fail(err)
		return true
	}
	q := Query{ID: queryID, Text: c.submitText, SubmittedAt: c.now()}
	c.history.Add(q)
	c.activeQueryID = queryID
	c.notifyQueryID = queryID
	c.state = StateLoading
	c.log.Info("query created", zap.String("queryId", queryID))
	return true
}

// SelectQuery re-activates a query from the history ledger. Selecting the
// already-active query is a no-op unless the session is in the Error state,
// where reselecting retries the fetch. Returns false when no fetch should be
// issued.
func (c *Controller) SelectQuery(id string) bool {
	if _, ok := c.history.Get(id); !ok {
		return false
	}
	if id == c.activeQueryID && c.state != StateError {
		return false
	}
	c.submitSeq++ // invalidate any in-flight submission
	c.activeQueryID = id
	c.notifyQueryID = ""
	c.state = StateLoading
	c.errMessage = ""
	c.replaceReport(nil)
	c.log.Info("query activated", zap.String("queryId", id))
	return true
}

// DeleteQuery removes a query from history. Deleting the active query forces
// the session to Idle and clears the report and view state; unknown ids are
// a no-op.
func (c *Controller) DeleteQuery(id string) {
	if !c.history.Remove(id) {
		return
	}
	if id != c.activeQueryID {
		return
	}
	c.activeQueryID = ""
	c.notifyQueryID = ""
	c.state = StateIdle
	c.errMessage = ""
	c.replaceReport(nil)
	c.log.Info("active query deleted", zap.String("queryId", id))
}

// ResolveReport applies a fetched report. The queryID is the identity the
// fetch was issued for; if it no longer matches the active query the result
// is discarded silently and false is returned.
func (c *Controller) ResolveReport(queryID, raw string, err error) bool {
	if queryID == "" || queryID != c.activeQueryID {
		c.log.Debug("discarding stale report", zap.String("queryId", queryID))
		return false
	}
	if err != nil {
		c.fail(err)
		return true
	}
	c.replaceReport(report.Segment(raw))
	c.state = StateLoaded
	c.errMessage = ""
	if c.notifyQueryID == queryID {
		c.notifyQueryID = ""
		c.appendCompletion(queryID, "intel-service", PriorityNeeded)
	}
	c.log.Info("report loaded", zap.String("queryId", queryID), zap.Int("sections", len(c.sections)))
	return true
}

// OpenLocalReport installs a report read from disk, bypassing the service.
// The file behaves like a completed submission: it joins the history ledger
// and appends a completion notification.
func (c *Controller) OpenLocalReport(label, raw string) {
	id := "local-" + uuid.NewString()
	c.history.Add(Query{ID: id, Text: label, SubmittedAt: c.now()})
	c.submitSeq++
	c.activeQueryID = id
	c.notifyQueryID = ""
	c.errMessage = ""
	c.replaceReport(report.Segment(raw))
	c.state = StateLoaded
	c.appendCompletion(id, "local-file", PriorityMinor)
	c.log.Info("local report opened", zap.String("queryId", id))
}

// SelectSection records a section selection: as a scroll anchor when viewAll
// is set, otherwise switching to individual mode on that section.
func (c *Controller) SelectSection(id string, viewAll bool) {
	if viewAll {
		c.nav.SelectInViewAll(id)
	} else {
		c.nav.SelectIndividual(id)
	}
}

// ToggleViewAll flips between the two view modes.
func (c *Controller) ToggleViewAll(on bool) {
	c.nav.ToggleViewAll(on)
}

// StepSection moves the individual-mode selection through document order.
func (c *Controller) StepSection(dir StepDirection) {
	c.nav.Step(dir)
}

// DismissNotification removes a record from the ledger.
func (c *Controller) DismissNotification(id string) {
	c.notifications.Dismiss(id)
}

// MarkAllNotificationsRead flags every notification as read.
func (c *Controller) MarkAllNotificationsRead() {
	c.notifications.MarkAllRead()
}

// RerunNotification resolves the notification's query back-reference and
// submits its text as a brand-new query. The returned ticket follows the same
// contract as SubmitQuery.
func (c *Controller) RerunNotification(id string) (SubmitTicket, error) {
	n, ok := c.notifications.Get(id)
	if !ok {
		return SubmitTicket{}, ErrUnknownNotification
	}
	q, ok := c.history.Get(n.QueryID)
	if !ok {
		return SubmitTicket{}, ErrQueryDeleted
	}
	return c.SubmitQuery(q.Text)
}

// Snapshot is a read-only copy of the whole session state.
type Snapshot struct {
	State         State
	ErrorMessage  string
	ActiveQueryID string
	Sections      []report.Section
	View          ViewState
	Queries       []Query
	Notifications []Notification
	Unread        int
}

// Snapshot returns the committed session state. Slices are copies; mutating
// them never affects the controller.
func (c *Controller) Snapshot() Snapshot {
	return Snapshot{
		State:         c.state,
		ErrorMessage:  c.errMessage,
		ActiveQueryID: c.activeQueryID,
		Sections:      append([]report.Section(nil), c.sections...),
		View:          c.nav.View(),
		Queries:       c.history.Queries(),
		Notifications: c.notifications.Notifications(),
		Unread:        c.notifications.UnreadCount(),
	}
}

func (c *Controller) replaceReport(sections []report.Section) {
	c.sections = sections
	c.nav.Reset(sections)
}

func (c *Controller) fail(err error) {
	c.state = StateError
	c.errMessage = err.Error()
	c.replaceReport(nil)
	c.log.Warn("session error", zap.Error(err))
}

func (c *Controller) appendCompletion(queryID, source string, priority Priority) {
	q, _ := c.history.Get(queryID)
	c.notifications.Append(Notification{
		ID:        uuid.NewString(),
		Title:     "Report ready",
		Message:   fmt.Sprintf("Intelligence report for %q is ready to view.", truncate(q.Text, 60)),
		Priority:  priority,
		Timestamp: c.now(),
		Source:    source,
		QueryID:   queryID,
	})
}

func truncate(value string, max int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return strings.TrimSpace(string(runes[:max-1])) + "…"
}
