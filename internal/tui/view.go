package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/csheth/intelscout/internal/report"
	"github.com/csheth/intelscout/internal/session"
)

func (m *model) View() string {
	switch m.stage {
	case stageInput:
		return m.viewInput()
	case stageLoading:
		return m.viewLoading()
	case stageDisplay:
		return m.viewDisplay()
	default:
		return ""
	}
}

func (m *model) viewInput() string {
	form := strings.Builder{}
	form.WriteString(sectionHeaderStyle.Render("New Intelligence Query"))
	form.WriteRune('\n')
	form.WriteString(m.queryInput.View())
	form.WriteRune('\n')
	form.WriteString(helperStyle.Render("Press Enter to submit."))
	form.WriteRune('\n')
	form.WriteString(helperStyle.Render(m.infoMessage))
	if msg := m.displayError(); msg != "" {
		form.WriteRune('\n')
		form.WriteString(errorStyle.Render(msg))
	}
	return joinNonEmpty([]string{m.heroView(), form.String()})
}

func (m *model) viewLoading() string {
	body := fmt.Sprintf("%s %s", m.spinner.View(), m.infoMessage)
	return joinNonEmpty([]string{m.heroView(), body})
}

func (m *model) viewDisplay() string {
	snap := m.session.Snapshot()
	m.refreshViewportIfDirty(snap)
	parts := []string{m.heroView(), m.statusBarView(snap), m.tabBarView(), m.viewport.View()}
	if msg := m.displayError(); msg != "" {
		parts = append(parts, errorStyle.Render(msg))
	}
	if m.infoMessage != "" {
		parts = append(parts, helperStyle.Render(m.infoMessage))
	}
	switch {
	case m.bellVisible:
		parts = append(parts, m.bellOverlayView(snap))
	case m.historyVisible:
		parts = append(parts, m.historyOverlayView(snap))
	case m.helpVisible:
		parts = append(parts, m.helpView())
	default:
		parts = append(parts, m.keyLegendView())
	}
	return joinNonEmpty(parts)
}

// displayError prefers the session's committed error over transient UI ones.
func (m *model) displayError() string {
	snap := m.session.Snapshot()
	if snap.State == session.StateError && snap.ErrorMessage != "" {
		return snap.ErrorMessage
	}
	return m.errorMessage
}

func (m *model) heroView() string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		titleStyle.Render("INTELSCOUT"),
		taglineStyle.Render(heroTagline),
	)
}

func (m *model) statusBarView(snap session.Snapshot) string {
	stats := []string{fmt.Sprintf("State %s", snap.State)}
	if q := activeQuery(snap); q != nil {
		stats = append(stats, fmt.Sprintf("Query %s", truncateText(q.Text, 40)))
	}
	stats = append(stats, fmt.Sprintf("Sections %d", len(snap.Sections)))
	if snap.View.Mode == session.ViewAll {
		stats = append(stats, "View all")
	} else {
		stats = append(stats, fmt.Sprintf("Section %s", snap.View.SelectedSectionID))
	}
	bar := statusBarStyle.Render(strings.Join(stats, "  •  "))
	if snap.Unread > 0 {
		bar = lipgloss.JoinHorizontal(lipgloss.Top, bar, " ", unreadBadgeStyle.Render(fmt.Sprintf("🔔 %d", snap.Unread)))
	}
	return bar
}

func (m *model) tabBarView() string {
	labels := []string{"Report", "Graph", "Gaps"}
	cells := make([]string, 0, len(labels))
	for i, label := range labels {
		if tab(i) == m.tab {
			cells = append(cells, tabActiveStyle.Render(label))
		} else {
			cells = append(cells, tabInactiveStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}

func (m *model) refreshViewportIfDirty(snap session.Snapshot) {
	if !m.viewportDirty {
		return
	}
	m.viewportDirty = false
	switch m.tab {
	case tabReport:
		view := m.buildReportContent(snap)
		m.sectionAnchors = view.anchors
		m.viewport.SetContent(view.content)
		if m.pendingAnchor != "" {
			if line, ok := view.anchors[m.pendingAnchor]; ok {
				m.viewport.SetYOffset(line)
			}
			m.pendingAnchor = ""
		} else if snap.View.Mode == session.ViewIndividual {
			m.viewport.SetYOffset(0)
		}
	case tabGraph:
		m.viewport.SetContent(m.buildGraphContent(snap))
		m.viewport.SetYOffset(0)
	case tabGaps:
		m.viewport.SetContent(m.buildGapsContent(snap))
	}
}

type displayView struct {
	content string
	anchors map[string]int
}

func (m *model) buildReportContent(snap session.Snapshot) displayView {
	cb := &contentBuilder{}
	anchors := map[string]int{}
	wrap := m.wrapWidth(0)

	if len(snap.Sections) == 0 {
		cb.WriteString(helperStyle.Render("The report came back empty."))
		cb.WriteRune('\n')
		return displayView{content: cb.String(), anchors: anchors}
	}

	if snap.View.Mode == session.ViewIndividual {
		idx := sectionIndex(snap.Sections, snap.View.SelectedSectionID)
		if idx < 0 {
			idx = 0
		}
		sec := snap.Sections[idx]
		cb.WriteString(sectionHeaderStyle.Render(fmt.Sprintf("%d. %s", idx+1, sec.Title)))
		cb.WriteString(helperStyle.Render(fmt.Sprintf("  (%d/%d)", idx+1, len(snap.Sections))))
		cb.WriteRune('\n')
		cb.WriteRune('\n')
		cb.WriteString(wordwrap.String(sec.Content, wrap))
		cb.WriteRune('\n')
		return displayView{content: cb.String(), anchors: anchors}
	}

	for i, sec := range snap.Sections {
		if i > 0 {
			cb.WriteRune('\n')
		}
		anchors[sec.ID] = cb.Line()
		header := fmt.Sprintf("%d. %s", i+1, sec.Title)
		if sec.ID == snap.View.SelectedSectionID {
			header = "» " + header
		}
		cb.WriteString(sectionHeaderStyle.Render(header))
		cb.WriteRune('\n')
		cb.WriteString(wordwrap.String(sec.Content, wrap))
		cb.WriteRune('\n')
	}
	return displayView{content: cb.String(), anchors: anchors}
}

func (m *model) buildGraphContent(snap session.Snapshot) string {
	if m.graphLoading {
		return fmt.Sprintf("%s Fetching entity graph…", m.spinner.View())
	}
	graph, ok := m.graphs[snap.ActiveQueryID]
	if !ok {
		return helperStyle.Render("No graph data for this report.")
	}
	if len(graph.Nodes) == 0 {
		return helperStyle.Render("The entity graph is empty.")
	}

	labels := make(map[string]string, len(graph.Nodes))
	for _, n := range graph.Nodes {
		labels[n.ID] = n.Label
	}
	outgoing := map[string][]string{}
	for _, e := range graph.Edges {
		target := labels[e.Target]
		if target == "" {
			target = e.Target
		}
		row := "   → " + target
		if e.Label != "" {
			row = fmt.Sprintf("   → %s (%s)", target, e.Label)
		}
		outgoing[e.Source] = append(outgoing[e.Source], row)
	}

	cb := &contentBuilder{}
	cb.WriteString(sectionHeaderStyle.Render(fmt.Sprintf("Entity Graph — %d entities, %d relations", len(graph.Nodes), len(graph.Edges))))
	cb.WriteRune('\n')
	for _, n := range graph.Nodes {
		cb.WriteRune('\n')
		cb.WriteString(titleStyle.Render(" " + n.Label))
		cb.WriteRune('\n')
		for _, row := range outgoing[n.ID] {
			cb.WriteString(row)
			cb.WriteRune('\n')
		}
	}
	return cb.String()
}

func (m *model) buildGapsContent(snap session.Snapshot) string {
	if m.gapsLoading {
		return fmt.Sprintf("%s Analyzing intelligence gaps…", m.spinner.View())
	}
	gp, ok := m.gaps[snap.ActiveQueryID]
	if !ok {
		return helperStyle.Render("No gap analysis for this report.")
	}

	cb := &contentBuilder{}
	wrap := m.wrapWidth(4)
	cb.WriteString(sectionHeaderStyle.Render("Intelligence Gaps"))
	cb.WriteRune('\n')
	if len(gp.Gaps) == 0 {
		cb.WriteString(helperStyle.Render("No gaps identified."))
		cb.WriteRune('\n')
	}
	for _, gap := range gp.Gaps {
		cb.WriteString(" • ")
		cb.WriteString(wordwrap.String(gap, wrap))
		cb.WriteRune('\n')
	}
	cb.WriteRune('\n')
	cb.WriteString(sectionHeaderStyle.Render("Suggested Follow-up Queries (Enter to submit)"))
	cb.WriteRune('\n')
	if len(gp.FollowUpQueries) == 0 {
		cb.WriteString(helperStyle.Render("No follow-up queries suggested."))
		cb.WriteRune('\n')
	}
	for i, q := range gp.FollowUpQueries {
		row := fmt.Sprintf("   %s", q)
		if i == m.gapCursor {
			row = cursorRowStyle.Render(fmt.Sprintf(" › %s", q))
		}
		cb.WriteString(row)
		cb.WriteRune('\n')
	}
	return cb.String()
}

func (m *model) bellOverlayView(snap session.Snapshot) string {
	lines := []string{sectionHeaderStyle.Render(fmt.Sprintf("Notifications (%d unread)", snap.Unread))}
	if len(snap.Notifications) == 0 {
		lines = append(lines, helperStyle.Render("Nothing here yet."))
	}
	for i, n := range snap.Notifications {
		marker := "  "
		if !n.IsRead {
			marker = "● "
		}
		row := fmt.Sprintf("%s%s %s — %s", marker, priorityStyle(n.Priority).Render(string(n.Priority)), n.Title, truncateText(n.Message, 48))
		if i == m.bellCursor {
			row = cursorRowStyle.Render(row)
		}
		lines = append(lines, row)
	}
	lines = append(lines, helperStyle.Render("j/k move  d dismiss  r rerun query  a mark all read  esc close"))
	return overlayBoxStyle.Render(strings.Join(lines, "\n"))
}

func (m *model) historyOverlayView(snap session.Snapshot) string {
	lines := []string{sectionHeaderStyle.Render("Query History")}
	if len(snap.Queries) == 0 {
		lines = append(lines, helperStyle.Render("No queries yet."))
	}
	for i, q := range snap.Queries {
		marker := "  "
		if q.ID == snap.ActiveQueryID {
			marker = "» "
		}
		row := fmt.Sprintf("%s%s  %s", marker, q.SubmittedAt.Format("Jan 02 15:04"), truncateText(q.Text, 52))
		if i == m.historyCursor {
			row = cursorRowStyle.Render(row)
		}
		lines = append(lines, row)
	}
	lines = append(lines, helperStyle.Render("j/k move  enter open  x delete  esc close"))
	return overlayBoxStyle.Render(strings.Join(lines, "\n"))
}

type keyHint struct {
	Key         string
	Description string
}

func (m *model) keyLegendView() string {
	hints := []keyHint{
		{"1-9", "Jump to section"},
		{"v", "Toggle full/single view"},
		{"[/]", "Prev/next section"},
		{"t", "Cycle report/graph/gaps"},
		{"n", "Notifications"},
		{"h", "History"},
		{"c", "New query"},
		{"g/G", "Top or bottom"},
		{"?", "Help"},
	}
	var cells []string
	for _, hint := range hints {
		key := keyStyle.Render(hint.Key)
		desc := keyDescStyle.Render(" " + hint.Description)
		cells = append(cells, lipgloss.JoinHorizontal(lipgloss.Top, key, desc), "  ")
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}

func (m *model) helpView() string {
	lines := []string{
		sectionHeaderStyle.Render("Command Palette"),
		helperStyle.Render("• number keys jump to a section; in full view they scroll, in single view they switch."),
		helperStyle.Render("• v flips between the full report and one section; [ and ] step through sections."),
		helperStyle.Render("• t cycles the Report, Graph, and Gaps tabs; on Gaps, j/k pick a follow-up and Enter submits it."),
		helperStyle.Render("• n opens notifications (d dismiss, r rerun, a mark read); h opens history (Enter open, x delete)."),
		helperStyle.Render("• c composes a new query, Esc backs out of overlays, Ctrl+C quits."),
	}
	return helpBoxStyle.Render(strings.Join(lines, "\n"))
}

func priorityStyle(p session.Priority) lipgloss.Style {
	switch p {
	case session.PriorityUrgent:
		return urgentStyle
	case session.PriorityNeeded:
		return neededStyle
	default:
		return minorStyle
	}
}

func activeQuery(snap session.Snapshot) *session.Query {
	for i := range snap.Queries {
		if snap.Queries[i].ID == snap.ActiveQueryID {
			return &snap.Queries[i]
		}
	}
	return nil
}

func sectionIndex(sections []report.Section, id string) int {
	for i := range sections {
		if sections[i].ID == id {
			return i
		}
	}
	return -1
}

func truncateText(value string, max int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return strings.TrimSpace(string(runes[:max-1])) + "…"
}

func joinNonEmpty(parts []string) string {
	filtered := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		filtered = append(filtered, part)
	}
	return strings.Join(filtered, "\n\n")
}

type contentBuilder struct {
	builder strings.Builder
	lines   int
}

func (cb *contentBuilder) WriteString(s string) {
	cb.builder.WriteString(s)
	cb.lines += strings.Count(s, "\n")
}

func (cb *contentBuilder) WriteRune(r rune) {
	cb.builder.WriteRune(r)
	if r == '\n' {
		cb.lines++
	}
}

func (cb *contentBuilder) String() string {
	return cb.builder.String()
}

func (cb *contentBuilder) Line() int {
	return cb.lines
}

func (m *model) wrapWidth(padding int) int {
	width := m.viewport.Width
	if width <= 0 {
		width = 80
	}
	if padding < 0 {
		padding = 0
	}
	available := width - padding
	if available < 20 {
		available = 20
	}
	return available
}
