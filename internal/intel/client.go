// Package intel talks to the Query/Report Service: query creation, report
// retrieval, and the derived knowledge-graph and knowledge-gap payloads.
package intel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	memoTTL            = 5 * time.Minute
	memoSweepInterval  = 10 * time.Minute
)

// ServiceError is any transport or backend failure. The session surfaces it
// as an Error state; nothing retries automatically.
type ServiceError struct {
	Op      string
	Status  int
	Message string
}

func (e *ServiceError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (HTTP %d)", e.Op, e.Message, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// Graph is the knowledge graph derived from a report, consumed opaquely by
// presentation.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

type GraphNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type GraphEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
}

// Gaps pairs identified knowledge gaps with suggested follow-up queries. The
// two lists may have unequal lengths; zipping is a presentation concern.
type Gaps struct {
	Gaps            []string `json:"gaps"`
	FollowUpQueries []string `json:"follow_up_queries"`
}

// Config carries the runtime options for a Client.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	CacheDir   string
	Logger     *zap.Logger
}

// Client is the HTTP consumer of the Query/Report Service. Graph and gap
// responses are memoized in-process so tab switches do not refetch; report
// payloads go through a disk cache with conditional revalidation.
type Client struct {
	base    string
	http    *http.Client
	memo    *gocache.Cache
	reports *reportCache
	log     *zap.Logger
}

// New builds a client for the given service endpoint.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("intel: base URL is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	reports, err := newReportCache(cfg.CacheDir, httpClient)
	if err != nil {
		return nil, err
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		base:    base,
		http:    httpClient,
		memo:    gocache.New(memoTTL, memoSweepInterval),
		reports: reports,
		log:     log,
	}, nil
}

// CreateQuery submits free-text to the service and returns the new query id.
func (c *Client) CreateQuery(ctx context.Context, text string) (string, error) {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/query", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &ServiceError{Op: "create query", Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", serviceErrorFromResponse("create query", resp)
	}

	var created struct {
		QueryID string `json:"query_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", &ServiceError{Op: "create query", Message: fmt.Sprintf("malformed response: %v", err)}
	}
	if created.QueryID == "" {
		return "", &ServiceError{Op: "create query", Message: "response missing query_id"}
	}
	c.log.Info("query created", zap.String("queryId", created.QueryID))
	return created.QueryID, nil
}

// FetchReport retrieves the generated report for a query as markdown.
// Markdown responses pass through raw; JSON responses carry pre-structured
// sections which are flattened back to markdown so segmentation stays the
// single source of section identity.
func (c *Client) FetchReport(ctx context.Context, queryID string) (string, error) {
	url := fmt.Sprintf("%s/query/%s/report", c.base, queryID)
	payload, contentType, err := c.reports.Fetch(ctx, queryID, url)
	if err != nil {
		return "", err
	}
	if strings.Contains(contentType, "text/markdown") || strings.Contains(contentType, "text/plain") {
		return string(payload), nil
	}
	return flattenSectionPayload(payload)
}

// FetchGraph retrieves the knowledge graph for a query.
func (c *Client) FetchGraph(ctx context.Context, queryID string) (Graph, error) {
	key := "graph:" + queryID
	if hit, ok := c.memo.Get(key); ok {
		return hit.(Graph), nil
	}
	var graph Graph
	url := fmt.Sprintf("%s/query/%s/graph-data", c.base, queryID)
	if err := c.getJSON(ctx, "fetch graph", url, &graph); err != nil {
		return Graph{}, err
	}
	c.memo.Set(key, graph, gocache.DefaultExpiration)
	return graph, nil
}

// FetchGaps retrieves the knowledge gaps and follow-up queries for a query.
func (c *Client) FetchGaps(ctx context.Context, queryID string) (Gaps, error) {
	key := "gaps:" + queryID
	if hit, ok := c.memo.Get(key); ok {
		return hit.(Gaps), nil
	}
	var gaps Gaps
	url := fmt.Sprintf("%s/query/%s/gaps", c.base, queryID)
	if err := c.getJSON(ctx, "fetch gaps", url, &gaps); err != nil {
		return Gaps{}, err
	}
	c.memo.Set(key, gaps, gocache.DefaultExpiration)
	return gaps, nil
}

func (c *Client) getJSON(ctx context.Context, op, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &ServiceError{Op: op, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return serviceErrorFromResponse(op, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ServiceError{Op: op, Message: fmt.Sprintf("malformed response: %v", err)}
	}
	return nil
}

func serviceErrorFromResponse(op string, resp *http.Response) *ServiceError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	message := strings.TrimSpace(string(body))
	if message == "" {
		message = resp.Status
	}
	return &ServiceError{Op: op, Status: resp.StatusCode, Message: message}
}

type sectionPayload struct {
	Sections []struct {
		ID      string `json:"id"`
		Title   string `json:"title"`
		Content string `json:"content"`
	} `json:"sections"`
}

// flattenSectionPayload rebuilds a markdown document out of a pre-structured
// JSON report so both wire shapes feed the same segmentation path.
func flattenSectionPayload(payload []byte) (string, error) {
	var parsed sectionPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return "", &ServiceError{Op: "fetch report", Message: fmt.Sprintf("malformed response: %v", err)}
	}
	var b strings.Builder
	for _, s := range parsed.Sections {
		title := strings.TrimSpace(s.Title)
		if title == "" {
			title = s.ID
		}
		b.WriteString("## ")
		b.WriteString(title)
		b.WriteByte('\n')
		b.WriteString(s.Content)
		b.WriteString("\n\n")
	}
	return b.String(), nil
}
