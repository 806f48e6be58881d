package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/csheth/intelscout/internal/intel"
	"github.com/csheth/intelscout/internal/session"
)

type fakeService struct {
	createFn func(ctx context.Context, text string) (string, error)
	reportFn func(ctx context.Context, queryID string) (string, error)
	graphFn  func(ctx context.Context, queryID string) (intel.Graph, error)
	gapsFn   func(ctx context.Context, queryID string) (intel.Gaps, error)
}

func (f fakeService) CreateQuery(ctx context.Context, text string) (string, error) {
	if f.createFn != nil {
		return f.createFn(ctx, text)
	}
	return "q-1", nil
}

func (f fakeService) FetchReport(ctx context.Context, queryID string) (string, error) {
	if f.reportFn != nil {
		return f.reportFn(ctx, queryID)
	}
	return "# Summary\nbody\n", nil
}

func (f fakeService) FetchGraph(ctx context.Context, queryID string) (intel.Graph, error) {
	if f.graphFn != nil {
		return f.graphFn(ctx, queryID)
	}
	return intel.Graph{}, nil
}

func (f fakeService) FetchGaps(ctx context.Context, queryID string) (intel.Gaps, error) {
	if f.gapsFn != nil {
		return f.gapsFn(ctx, queryID)
	}
	return intel.Gaps{}, nil
}

const reportFixture = "# Executive Summary\nTop-line findings.\n\n# Key Findings\nDetails.\n\n# Assessment\nOutlook.\n"

func newTestModel(t *testing.T) *model {
	t.Helper()
	m, ok := New(Config{Service: fakeService{}}).(*model)
	if !ok {
		t.Fatal("New did not return the concrete model")
	}
	return m
}

// loadReport walks the model through a full submit/create/fetch round trip.
func loadReport(t *testing.T, m *model, queryID string) {
	t.Helper()
	ticket, err := m.session.SubmitQuery("ransomware activity in healthcare")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	m.stage = stageLoading
	m.Update(queryCreatedMsg{token: ticket.Token, queryID: queryID})
	m.Update(reportResultMsg{queryID: queryID, raw: reportFixture})
	if m.stage != stageDisplay {
		t.Fatalf("expected display stage after report result, got %v", m.stage)
	}
}

func TestSubmitMovesToLoading(t *testing.T) {
	m := newTestModel(t)
	m.queryInput.SetValue("APT activity in the energy sector")

	_, cmd := m.handleKey(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("submit should return a command to start the create call")
	}
	if m.stage != stageLoading {
		t.Fatalf("stage not updated, got %v want %v", m.stage, stageLoading)
	}
	if got := strings.TrimSpace(m.queryInput.Value()); got != "" {
		t.Fatalf("composer should clear after submission, got %q", got)
	}
}

func TestSubmitRejectsBlankQuery(t *testing.T) {
	m := newTestModel(t)
	m.queryInput.SetValue("   ")

	_, cmd := m.handleKey(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Fatalf("blank submit should not start a command, got %T", cmd)
	}
	if m.stage != stageInput {
		t.Fatalf("blank submit should stay on the composer, got %v", m.stage)
	}
	if m.errorMessage == "" {
		t.Fatal("blank submit should surface an error message")
	}
}

func TestQueryCreationFailureReturnsToInput(t *testing.T) {
	m := newTestModel(t)
	ticket, err := m.session.SubmitQuery("some query")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	m.stage = stageLoading

	m.Update(queryCreatedMsg{token: ticket.Token, err: errors.New("service unavailable")})

	if m.stage != stageInput {
		t.Fatalf("creation failure should return to input, got %v", m.stage)
	}
	if snap := m.session.Snapshot(); snap.State != session.StateError {
		t.Fatalf("session state not error, got %v", snap.State)
	}
}

func TestStaleCreationResultIgnored(t *testing.T) {
	m := newTestModel(t)
	stale, err := m.session.SubmitQuery("first query")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if _, err := m.session.SubmitQuery("second query"); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	m.stage = stageLoading

	_, cmd := m.Update(queryCreatedMsg{token: stale.Token, queryID: "q-stale"})
	if cmd != nil {
		t.Fatalf("stale creation should not trigger a fetch, got %T", cmd)
	}
	if snap := m.session.Snapshot(); snap.ActiveQueryID != "" {
		t.Fatalf("stale creation leaked into session: %q", snap.ActiveQueryID)
	}
}

func TestReportResultEntersDisplay(t *testing.T) {
	m := newTestModel(t)
	loadReport(t, m, "q-1")

	snap := m.session.Snapshot()
	if snap.State != session.StateLoaded {
		t.Fatalf("session not loaded, got %v", snap.State)
	}
	if len(snap.Sections) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(snap.Sections))
	}
	if m.tab != tabReport {
		t.Fatalf("display should open on the report tab, got %v", m.tab)
	}
}

func TestStaleReportResultIgnored(t *testing.T) {
	m := newTestModel(t)
	loadReport(t, m, "q-1")

	m.Update(reportResultMsg{queryID: "q-old", raw: "# Other\nbody\n"})

	snap := m.session.Snapshot()
	if snap.Sections[0].Title != "Executive Summary" {
		t.Fatalf("stale report replaced sections: %q", snap.Sections[0].Title)
	}
	if m.stage != stageDisplay {
		t.Fatalf("stale report changed stage: %v", m.stage)
	}
}

func TestNumberKeySelectsSection(t *testing.T) {
	m := newTestModel(t)
	loadReport(t, m, "q-1")

	m.handleDisplayKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'v'}})
	m.handleDisplayKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'2'}})

	snap := m.session.Snapshot()
	if snap.View.Mode != session.ViewIndividual {
		t.Fatalf("v should switch to individual view, got %v", snap.View.Mode)
	}
	if snap.View.SelectedSectionID != "key-findings" {
		t.Fatalf("number key did not select section, got %q", snap.View.SelectedSectionID)
	}
}

func TestBracketKeysStepSections(t *testing.T) {
	m := newTestModel(t)
	loadReport(t, m, "q-1")
	m.handleDisplayKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'v'}})

	m.handleDisplayKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{']'}})
	if got := m.session.Snapshot().View.SelectedSectionID; got != "key-findings" {
		t.Fatalf("] did not advance, got %q", got)
	}
	m.handleDisplayKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'['}})
	if got := m.session.Snapshot().View.SelectedSectionID; got != "executive-summary" {
		t.Fatalf("[ did not step back, got %q", got)
	}
}

func TestTabCycleStartsGraphFetch(t *testing.T) {
	m := newTestModel(t)
	loadReport(t, m, "q-1")

	_, cmd := m.handleDisplayKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'t'}})
	if m.tab != tabGraph {
		t.Fatalf("t should move to the graph tab, got %v", m.tab)
	}
	if cmd == nil {
		t.Fatal("first visit to the graph tab should start a fetch")
	}
	if !m.graphLoading {
		t.Fatal("graph fetch should mark loading state")
	}
}

func TestGraphResultStoredForActiveQuery(t *testing.T) {
	m := newTestModel(t)
	loadReport(t, m, "q-1")
	m.graphLoading = true

	graph := intel.Graph{
		Nodes: []intel.GraphNode{{ID: "a", Label: "Actor A"}},
		Edges: []intel.GraphEdge{{Source: "a", Target: "a", Label: "self"}},
	}
	m.Update(graphResultMsg{queryID: "q-1", graph: graph})

	if m.graphLoading {
		t.Fatal("graph result should clear loading state")
	}
	if len(m.graphs["q-1"].Nodes) != 1 {
		t.Fatalf("graph not stored: %#v", m.graphs["q-1"])
	}
}

func TestStaleGraphResultIgnored(t *testing.T) {
	m := newTestModel(t)
	loadReport(t, m, "q-1")

	m.Update(graphResultMsg{queryID: "q-old", graph: intel.Graph{Nodes: []intel.GraphNode{{ID: "x"}}}})

	if _, ok := m.graphs["q-old"]; ok {
		t.Fatal("stale graph result should be discarded")
	}
}

func TestGapFollowUpSubmitsNewQuery(t *testing.T) {
	m := newTestModel(t)
	loadReport(t, m, "q-1")
	m.tab = tabGaps
	m.gaps["q-1"] = intel.Gaps{FollowUpQueries: []string{"first follow-up", "second follow-up"}}
	m.gapCursor = 1

	_, cmd := m.handleDisplayKey(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("follow-up submission should start the create call")
	}
	if m.stage != stageLoading {
		t.Fatalf("follow-up submission should enter loading, got %v", m.stage)
	}
}

func TestBellRerunSubmitsQuery(t *testing.T) {
	m := newTestModel(t)
	loadReport(t, m, "q-1")
	snap := m.session.Snapshot()
	if len(snap.Notifications) == 0 {
		t.Fatal("expected a completion notification after load")
	}

	m.handleDisplayKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}})
	if !m.bellVisible {
		t.Fatal("n should open the notification overlay")
	}
	_, cmd := m.handleDisplayKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	if cmd == nil {
		t.Fatal("rerun should start a new submission")
	}
	if m.stage != stageLoading {
		t.Fatalf("rerun should enter loading, got %v", m.stage)
	}
	if m.bellVisible {
		t.Fatal("rerun should close the overlay")
	}
}

func TestBellDismissRemovesNotification(t *testing.T) {
	m := newTestModel(t)
	loadReport(t, m, "q-1")

	m.handleDisplayKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}})
	m.handleDisplayKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'d'}})

	if got := len(m.session.Snapshot().Notifications); got != 0 {
		t.Fatalf("dismiss left %d notifications", got)
	}
}

func TestHistorySelectRefetchesReport(t *testing.T) {
	m := newTestModel(t)
	loadReport(t, m, "q-1")
	loadReport(t, m, "q-2")

	m.handleDisplayKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'h'}})
	if !m.historyVisible {
		t.Fatal("h should open the history overlay")
	}
	// Newest first; move to the older entry.
	m.handleDisplayKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	_, cmd := m.handleDisplayKey(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("selecting a history entry should start a report fetch")
	}
	if m.stage != stageLoading {
		t.Fatalf("history selection should enter loading, got %v", m.stage)
	}
	if got := m.session.Snapshot().ActiveQueryID; got != "q-1" {
		t.Fatalf("wrong query activated: %q", got)
	}
}

func TestHistoryDeleteActiveReturnsToInput(t *testing.T) {
	m := newTestModel(t)
	loadReport(t, m, "q-1")

	m.handleDisplayKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'h'}})
	m.handleDisplayKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'x'}})

	if m.stage != stageInput {
		t.Fatalf("deleting the active query should return to input, got %v", m.stage)
	}
	if snap := m.session.Snapshot(); snap.State != session.StateIdle {
		t.Fatalf("session should be idle, got %v", snap.State)
	}
}

func TestLocalReportEntersDisplay(t *testing.T) {
	m := newTestModel(t)

	m.Update(localReportMsg{label: "briefing.md", raw: reportFixture})

	if m.stage != stageDisplay {
		t.Fatalf("local report should enter display, got %v", m.stage)
	}
	snap := m.session.Snapshot()
	if len(snap.Sections) != 3 {
		t.Fatalf("local report not segmented, got %d sections", len(snap.Sections))
	}
	if len(snap.Notifications) != 1 || snap.Notifications[0].Priority != session.PriorityMinor {
		t.Fatalf("local report notification wrong: %#v", snap.Notifications)
	}
}

func TestReportViewRendersSections(t *testing.T) {
	m := newTestModel(t)
	loadReport(t, m, "q-1")

	view := m.viewDisplay()
	if !strings.Contains(view, "Executive Summary") {
		t.Fatalf("report view missing section header:\n%s", view)
	}

	m.handleDisplayKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'v'}})
	view = m.viewDisplay()
	if strings.Contains(view, "Key Findings") {
		t.Fatalf("individual view should show a single section:\n%s", view)
	}
}

func TestTruncateTextKeepsRuneBoundaries(t *testing.T) {
	long := strings.Repeat("разведданные", 10)
	got := truncateText(long, 40)
	if !utf8.ValidString(got) {
		t.Fatalf("truncation split a rune: %q", got)
	}
	if got := truncateText("short", 40); got != "short" {
		t.Fatalf("short strings must pass through, got %q", got)
	}
}

func TestGapsViewMarksCursor(t *testing.T) {
	m := newTestModel(t)
	loadReport(t, m, "q-1")
	m.tab = tabGaps
	m.gaps["q-1"] = intel.Gaps{
		Gaps:            []string{"No attribution evidence."},
		FollowUpQueries: []string{"who is behind the campaign"},
	}
	m.markViewportDirty()

	view := m.viewDisplay()
	if !strings.Contains(view, "No attribution evidence.") {
		t.Fatalf("gaps view missing gap bullet:\n%s", view)
	}
	if !strings.Contains(view, "who is behind the campaign") {
		t.Fatalf("gaps view missing follow-up query:\n%s", view)
	}
}
