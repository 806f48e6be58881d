package tui

import (
	"context"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/csheth/intelscout/internal/intel"
)

// Service is the slice of the query backend the program drives. *intel.Client
// satisfies it; tests substitute fakes.
type Service interface {
	CreateQuery(ctx context.Context, text string) (string, error)
	FetchReport(ctx context.Context, queryID string) (string, error)
	FetchGraph(ctx context.Context, queryID string) (intel.Graph, error)
	FetchGaps(ctx context.Context, queryID string) (intel.Gaps, error)
}

// Report generation can take a while on the service side.
const requestTimeout = 90 * time.Second

type queryCreatedMsg struct {
	token   uint64
	queryID string
	err     error
}

type reportResultMsg struct {
	queryID string
	raw     string
	err     error
}

type graphResultMsg struct {
	queryID string
	graph   intel.Graph
	err     error
}

type gapsResultMsg struct {
	queryID string
	gaps    intel.Gaps
	err     error
}

type localReportMsg struct {
	label string
	raw   string
	err   error
}

func createQueryCmd(svc Service, token uint64, text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		queryID, err := svc.CreateQuery(ctx, text)
		return queryCreatedMsg{token: token, queryID: queryID, err: err}
	}
}

func fetchReportCmd(svc Service, queryID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		raw, err := svc.FetchReport(ctx, queryID)
		return reportResultMsg{queryID: queryID, raw: raw, err: err}
	}
}

func fetchGraphCmd(svc Service, queryID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		graph, err := svc.FetchGraph(ctx, queryID)
		return graphResultMsg{queryID: queryID, graph: graph, err: err}
	}
}

func fetchGapsCmd(svc Service, queryID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		gaps, err := svc.FetchGaps(ctx, queryID)
		return gapsResultMsg{queryID: queryID, gaps: gaps, err: err}
	}
}

func loadLocalReportCmd(path string) tea.Cmd {
	return func() tea.Msg {
		raw, err := intel.LoadLocalReport(path)
		return localReportMsg{label: filepath.Base(path), raw: raw, err: err}
	}
}
