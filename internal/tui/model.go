package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/csheth/intelscout/internal/intel"
	"github.com/csheth/intelscout/internal/session"
)

// Config wires runtime options into the TUI program.
type Config struct {
	Service Service
	Logger  *zap.Logger
	// ReportFile, when set, is opened from disk at startup instead of waiting
	// for a query submission.
	ReportFile string
}

// New returns a tea.Model ready to be mounted into a Program.
func New(config Config) tea.Model {
	queryInput := textinput.New()
	queryInput.Placeholder = "What do you want to know? e.g. ransomware activity targeting healthcare"
	queryInput.Focus()
	queryInput.CharLimit = 400
	queryInput.Width = 70

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	vp := viewport.New(80, 20)
	vp.MouseWheelEnabled = true

	return &model{
		config:         config,
		stage:          stageInput,
		tab:            tabReport,
		session:        session.New(config.Logger),
		queryInput:     queryInput,
		spinner:        spin,
		viewport:       vp,
		graphs:         map[string]intel.Graph{},
		gaps:           map[string]intel.Gaps{},
		sectionAnchors: map[string]int{},
		viewportDirty:  true,
		infoMessage:    "Type an intelligence question and press Enter.",
	}
}

type stage int

const (
	stageInput stage = iota
	stageLoading
	stageDisplay
)

type tab int

const (
	tabReport tab = iota
	tabGraph
	tabGaps
)

const heroTagline = "Query-driven intelligence reports in your terminal."

const (
	minViewportWidth          = 40
	viewportHorizontalPadding = 4
)

type model struct {
	config Config
	stage  stage
	tab    tab

	session *session.Controller

	queryInput textinput.Model
	spinner    spinner.Model
	viewport   viewport.Model

	graphs       map[string]intel.Graph
	gaps         map[string]intel.Gaps
	graphLoading bool
	gapsLoading  bool
	gapCursor    int

	helpVisible    bool
	bellVisible    bool
	historyVisible bool
	bellCursor     int
	historyCursor  int

	infoMessage  string
	errorMessage string

	viewportDirty  bool
	sectionAnchors map[string]int
	pendingAnchor  string
}

func (m *model) Init() tea.Cmd {
	if m.config.ReportFile != "" {
		return tea.Batch(textinput.Blink, loadLocalReportCmd(m.config.ReportFile))
	}
	return textinput.Blink
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if m.stage == stageLoading || m.graphLoading || m.gapsLoading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			if m.graphLoading || m.gapsLoading {
				m.markViewportDirty()
			}
			return m, cmd
		}
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyEsc:
			return m.handleEsc()
		}
		return m.handleKey(msg)
	case tea.MouseMsg:
		if m.stage == stageDisplay && !m.overlayOpen() {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		return m, nil
	case queryCreatedMsg:
		return m.handleQueryCreated(msg)
	case reportResultMsg:
		return m.handleReportResult(msg)
	case graphResultMsg:
		return m.handleGraphResult(msg)
	case gapsResultMsg:
		return m.handleGapsResult(msg)
	case localReportMsg:
		return m.handleLocalReport(msg)
	case tea.WindowSizeMsg:
		newWidth := msg.Width - viewportHorizontalPadding
		if newWidth < minViewportWidth {
			newWidth = minViewportWidth
		}
		m.viewport.Width = newWidth
		height := msg.Height - 8
		if height < 5 {
			height = 5
		}
		m.viewport.Height = height
		m.markViewportDirty()
		return m, nil
	}
	return m, nil
}

func (m *model) overlayOpen() bool {
	return m.bellVisible || m.historyVisible
}

func (m *model) handleEsc() (tea.Model, tea.Cmd) {
	switch {
	case m.bellVisible:
		m.bellVisible = false
		return m, nil
	case m.historyVisible:
		m.historyVisible = false
		return m, nil
	case m.helpVisible:
		m.helpVisible = false
		return m, nil
	case m.stage == stageInput && m.session.Snapshot().State == session.StateLoaded:
		// Back out of the composer when a report is already on screen.
		m.stage = stageDisplay
		m.queryInput.SetValue("")
		return m, nil
	default:
		return m, tea.Quit
	}
}

func (m *model) handleQueryCreated(msg queryCreatedMsg) (tea.Model, tea.Cmd) {
	if !m.session.ResolveQueryCreated(msg.token, msg.queryID, msg.err) {
		return m, nil
	}
	if m.session.Snapshot().State == session.StateError {
		m.stage = stageInput
		m.infoMessage = "Submission failed. Adjust the query and retry."
		return m, nil
	}
	m.infoMessage = "Query accepted. Generating report…"
	return m, tea.Batch(m.spinner.Tick, fetchReportCmd(m.config.Service, msg.queryID))
}

func (m *model) handleReportResult(msg reportResultMsg) (tea.Model, tea.Cmd) {
	if !m.session.ResolveReport(msg.queryID, msg.raw, msg.err) {
		return m, nil
	}
	snap := m.session.Snapshot()
	if snap.State == session.StateError {
		m.stage = stageInput
		m.infoMessage = "Report fetch failed. Press h to retry from history."
		return m, nil
	}
	m.enterDisplay(snap)
	return m, nil
}

func (m *model) handleGraphResult(msg graphResultMsg) (tea.Model, tea.Cmd) {
	if msg.queryID != m.session.Snapshot().ActiveQueryID {
		return m, nil
	}
	m.graphLoading = false
	if msg.err != nil {
		m.errorMessage = fmt.Sprintf("graph error: %v", msg.err)
		return m, nil
	}
	m.graphs[msg.queryID] = msg.graph
	m.errorMessage = ""
	m.markViewportDirty()
	return m, nil
}

func (m *model) handleGapsResult(msg gapsResultMsg) (tea.Model, tea.Cmd) {
	if msg.queryID != m.session.Snapshot().ActiveQueryID {
		return m, nil
	}
	m.gapsLoading = false
	if msg.err != nil {
		m.errorMessage = fmt.Sprintf("gaps error: %v", msg.err)
		return m, nil
	}
	m.gaps[msg.queryID] = msg.gaps
	m.gapCursor = 0
	m.errorMessage = ""
	m.markViewportDirty()
	return m, nil
}

func (m *model) handleLocalReport(msg localReportMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.errorMessage = msg.err.Error()
		m.infoMessage = "Could not open the report file."
		return m, nil
	}
	m.session.OpenLocalReport(msg.label, msg.raw)
	m.enterDisplay(m.session.Snapshot())
	return m, nil
}

func (m *model) enterDisplay(snap session.Snapshot) {
	m.stage = stageDisplay
	m.tab = tabReport
	m.gapCursor = 0
	m.errorMessage = ""
	m.pendingAnchor = snap.View.SelectedSectionID
	m.infoMessage = fmt.Sprintf("Report loaded with %d section(s). Press ? for keys.", len(snap.Sections))
	m.markViewportDirty()
}

// startSubmission is shared by the composer, notification rerun, and gap
// follow-up paths. The session has already accepted the ticket.
func (m *model) startSubmission(ticket session.SubmitTicket) tea.Cmd {
	m.stage = stageLoading
	m.tab = tabReport
	m.errorMessage = ""
	m.infoMessage = "Submitting query…"
	m.bellVisible = false
	m.historyVisible = false
	return tea.Batch(m.spinner.Tick, createQueryCmd(m.config.Service, ticket.Token, ticket.Text))
}

func (m *model) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.stage {
	case stageInput:
		var cmd tea.Cmd
		m.queryInput, cmd = m.queryInput.Update(key)
		if key.Type == tea.KeyEnter {
			ticket, err := m.session.SubmitQuery(m.queryInput.Value())
			if err != nil {
				m.errorMessage = "Type a question before submitting."
				return m, cmd
			}
			m.queryInput.SetValue("")
			return m, tea.Batch(cmd, m.startSubmission(ticket))
		}
		return m, cmd
	case stageLoading:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(key)
		return m, cmd
	case stageDisplay:
		return m.handleDisplayKey(key)
	default:
		return m, nil
	}
}

func (m *model) handleDisplayKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.bellVisible {
		return m.handleBellKey(key)
	}
	if m.historyVisible {
		return m.handleHistoryKey(key)
	}

	handled := true
	switch key.String() {
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		m.selectSectionByIndex(int(key.String()[0] - '1'))
	case "v":
		m.toggleViewMode()
	case "]":
		m.stepSection(session.StepNext)
	case "[":
		m.stepSection(session.StepPrevious)
	case "t", "tab":
		return m.cycleTab()
	case "n":
		m.bellVisible = true
		m.bellCursor = 0
	case "h":
		m.historyVisible = true
		m.historyCursor = 0
	case "c":
		m.stage = stageInput
		m.queryInput.SetValue("")
		m.queryInput.Focus()
		m.errorMessage = ""
		m.infoMessage = "Compose a new query. Esc returns to the report."
		return m, textinput.Blink
	case "enter":
		return m.submitGapFollowUp()
	case "j", "down":
		if m.tab == tabGaps {
			m.moveGapCursor(1)
		} else {
			handled = false
		}
	case "k", "up":
		if m.tab == tabGaps {
			m.moveGapCursor(-1)
		} else {
			handled = false
		}
	case "g":
		m.viewport.GotoTop()
	case "G":
		m.viewport.GotoBottom()
	case "?":
		m.helpVisible = !m.helpVisible
	default:
		handled = false
	}
	if handled {
		return m, nil
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(key)
	return m, cmd
}

func (m *model) selectSectionByIndex(index int) {
	snap := m.session.Snapshot()
	if index < 0 || index >= len(snap.Sections) {
		m.infoMessage = "No section under that number."
		return
	}
	id := snap.Sections[index].ID
	viewAll := snap.View.Mode == session.ViewAll
	m.session.SelectSection(id, viewAll)
	if viewAll {
		m.pendingAnchor = id
	}
	m.tab = tabReport
	m.markViewportDirty()
}

func (m *model) toggleViewMode() {
	snap := m.session.Snapshot()
	if len(snap.Sections) == 0 {
		m.infoMessage = "No report sections to view."
		return
	}
	toAll := snap.View.Mode == session.ViewIndividual
	m.session.ToggleViewAll(toAll)
	if toAll {
		m.pendingAnchor = m.session.Snapshot().View.SelectedSectionID
		m.infoMessage = "Showing the full report."
	} else {
		m.infoMessage = "Showing one section. Use [ and ] to move."
	}
	m.tab = tabReport
	m.markViewportDirty()
}

func (m *model) stepSection(dir session.StepDirection) {
	snap := m.session.Snapshot()
	if snap.View.Mode != session.ViewIndividual {
		m.infoMessage = "Press v to enter single-section view first."
		return
	}
	m.session.StepSection(dir)
	m.tab = tabReport
	m.markViewportDirty()
}

func (m *model) cycleTab() (tea.Model, tea.Cmd) {
	m.tab = (m.tab + 1) % 3
	m.markViewportDirty()
	snap := m.session.Snapshot()
	if snap.ActiveQueryID == "" {
		return m, nil
	}
	if strings.HasPrefix(snap.ActiveQueryID, "local-") {
		// Local files have no service-side graph or gap analysis.
		return m, nil
	}
	switch m.tab {
	case tabGraph:
		if _, ok := m.graphs[snap.ActiveQueryID]; !ok && !m.graphLoading {
			m.graphLoading = true
			return m, tea.Batch(m.spinner.Tick, fetchGraphCmd(m.config.Service, snap.ActiveQueryID))
		}
	case tabGaps:
		if _, ok := m.gaps[snap.ActiveQueryID]; !ok && !m.gapsLoading {
			m.gapsLoading = true
			return m, tea.Batch(m.spinner.Tick, fetchGapsCmd(m.config.Service, snap.ActiveQueryID))
		}
	}
	return m, nil
}

func (m *model) moveGapCursor(delta int) {
	gp, ok := m.gaps[m.session.Snapshot().ActiveQueryID]
	if !ok || len(gp.FollowUpQueries) == 0 {
		return
	}
	target := m.gapCursor + delta
	if target < 0 {
		target = 0
	}
	if target >= len(gp.FollowUpQueries) {
		target = len(gp.FollowUpQueries) - 1
	}
	m.gapCursor = target
	m.markViewportDirty()
}

func (m *model) submitGapFollowUp() (tea.Model, tea.Cmd) {
	if m.tab != tabGaps {
		return m, nil
	}
	gp, ok := m.gaps[m.session.Snapshot().ActiveQueryID]
	if !ok || m.gapCursor >= len(gp.FollowUpQueries) {
		m.infoMessage = "No follow-up query selected."
		return m, nil
	}
	ticket, err := m.session.SubmitQuery(gp.FollowUpQueries[m.gapCursor])
	if err != nil {
		m.errorMessage = err.Error()
		return m, nil
	}
	return m, m.startSubmission(ticket)
}

func (m *model) handleBellKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	snap := m.session.Snapshot()
	switch key.String() {
	case "n", "esc":
		m.bellVisible = false
	case "j", "down":
		if m.bellCursor < len(snap.Notifications)-1 {
			m.bellCursor++
		}
	case "k", "up":
		if m.bellCursor > 0 {
			m.bellCursor--
		}
	case "d":
		if m.bellCursor < len(snap.Notifications) {
			m.session.DismissNotification(snap.Notifications[m.bellCursor].ID)
			if m.bellCursor > 0 {
				m.bellCursor--
			}
		}
	case "a":
		m.session.MarkAllNotificationsRead()
		m.infoMessage = "All notifications marked read."
	case "r":
		if m.bellCursor >= len(snap.Notifications) {
			return m, nil
		}
		ticket, err := m.session.RerunNotification(snap.Notifications[m.bellCursor].ID)
		if err != nil {
			m.errorMessage = err.Error()
			return m, nil
		}
		return m, m.startSubmission(ticket)
	}
	return m, nil
}

func (m *model) handleHistoryKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	snap := m.session.Snapshot()
	switch key.String() {
	case "h", "esc":
		m.historyVisible = false
	case "j", "down":
		if m.historyCursor < len(snap.Queries)-1 {
			m.historyCursor++
		}
	case "k", "up":
		if m.historyCursor > 0 {
			m.historyCursor--
		}
	case "enter":
		if m.historyCursor >= len(snap.Queries) {
			return m, nil
		}
		q := snap.Queries[m.historyCursor]
		if !m.session.SelectQuery(q.ID) {
			m.historyVisible = false
			m.infoMessage = "Already viewing that report."
			return m, nil
		}
		m.historyVisible = false
		m.stage = stageLoading
		m.tab = tabReport
		m.infoMessage = "Fetching report…"
		return m, tea.Batch(m.spinner.Tick, fetchReportCmd(m.config.Service, q.ID))
	case "x":
		if m.historyCursor >= len(snap.Queries) {
			return m, nil
		}
		q := snap.Queries[m.historyCursor]
		m.session.DeleteQuery(q.ID)
		if m.historyCursor > 0 {
			m.historyCursor--
		}
		after := m.session.Snapshot()
		if after.State == session.StateIdle {
			m.historyVisible = false
			m.stage = stageInput
			m.queryInput.Focus()
			m.infoMessage = "Active report closed. Submit a new query."
			return m, textinput.Blink
		}
		m.markViewportDirty()
	}
	return m, nil
}

func (m *model) markViewportDirty() {
	m.viewportDirty = true
}

var (
	titleStyle         = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	taglineStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
	sectionHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	helperStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	statusBarStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6")).Padding(0, 1)
	tabActiveStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#ffd166")).Padding(0, 1)
	tabInactiveStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Padding(0, 1)
	cursorRowStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6"))
	urgentStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	neededStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	minorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	unreadBadgeStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("9")).Padding(0, 1)
	overlayBoxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#56526e")).Padding(1, 2)
	helpBoxStyle       = lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).BorderForeground(lipgloss.Color("#7f5af0")).Padding(1, 2)
	keyStyle           = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#ffd166")).Padding(0, 1)
	keyDescStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#e0def4"))
)
