package trustopssdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal TrustOps HTTP API client.
type Client struct {
	BaseURL     string
	OrgID       string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, orgID string) *Client {
	return &Client{
		BaseURL: baseURL,
		OrgID:   orgID,
		Timeout: 10 * time.Second,
	}
}

// Issue represents the API issue model (partial).
type Issue struct {
	ID           string   `json:"id"`
	OrgID        string   `json:"org_id"`
	Title        string   `json:"title"`
	Domain       string   `json:"domain,omitempty"`
	Category     string   `json:"category,omitempty"`
	IssueType    string   `json:"issue_type,omitempty"`
	Status       string   `json:"status"`
	DepartmentID *string  `json:"department_id,omitempty"`
	Regulations  []string `json:"regulation_ids,omitempty"`
	Processes    []string `json:"process_ids,omitempty"`
}

// Stakeholder represents an interested party.
type Stakeholder struct {
	ID     string `json:"id"`
	OrgID  string `json:"org_id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Status string `json:"status"`
}

// Risk represents a scored risk entry.
type Risk struct {
	ID         string `json:"id"`
	OrgID      string `json:"org_id"`
	Title      string `json:"title"`
	Likelihood int    `json:"likelihood"`
	Impact     int    `json:"impact"`
	Score      int    `json:"score"`
	Status     string `json:"status"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	OrgID      string         `json:"org_id"`
	EntityID   string         `json:"entity_id"`
	EntityKind string         `json:"entity_kind"`
	Payload    map[string]any `json:"payload"`
}

// DashboardStats mirrors the KPI dashboard payload.
type DashboardStats struct {
	Issues        int            `json:"issues"`
	OpenIssues    int            `json:"open_issues"`
	Stakeholders  int            `json:"stakeholders"`
	Assets        int            `json:"assets"`
	Risks         int            `json:"risks"`
	Audits        int            `json:"audits"`
	IssuesByState map[string]int `json:"issues_by_status"`
	RisksByBand   map[string]int `json:"risks_by_band"`
	AuditsByState map[string]int `json:"audits_by_status"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PaginatedIssues wraps issue list responses with cursors.
type PaginatedIssues struct {
	Items      []Issue `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// PaginatedEvents wraps event list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// CreateIssue creates an issue.
func (c *Client) CreateIssue(ctx context.Context, title, domain, issueType string) (Issue, error) {
	body := map[string]any{
		"title":      title,
		"domain":     domain,
		"issue_type": issueType,
	}
	var resp Issue
	err := c.do(ctx, http.MethodPost, c.apiPath("issues"), body, &resp)
	return resp, err
}

// GetIssue fetches an issue by id.
func (c *Client) GetIssue(ctx context.Context, id string) (Issue, error) {
	var resp Issue
	err := c.do(ctx, http.MethodGet, c.apiPath(fmt.Sprintf("issues/%s", url.PathEscape(id))), nil, &resp)
	return resp, err
}

// Issues returns recent issues.
func (c *Client) Issues(ctx context.Context, limit int) ([]Issue, error) {
	page, err := c.IssuesPage(ctx, limit, "")
	return page.Items, err
}

// IssuesPage returns a paginated issue listing.
func (c *Client) IssuesPage(ctx context.Context, limit int, cursor string) (PaginatedIssues, error) {
	endpoint := c.apiPath("issues")
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	if cursor != "" {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint = fmt.Sprintf("%s%scursor=%s", endpoint, sep, url.QueryEscape(cursor))
	}
	var resp PaginatedIssues
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// ExportIssuesCSV returns the CSV export of all issues.
func (c *Client) ExportIssuesCSV(ctx context.Context) (string, error) {
	b, err := c.doRaw(ctx, http.MethodGet, c.apiPath("issues/export"), nil)
	return string(b), err
}

// CreateStakeholder creates a stakeholder with optional needs.
func (c *Client) CreateStakeholder(ctx context.Context, name, shType string, needs []string) (Stakeholder, error) {
	body := map[string]any{
		"name":  name,
		"type":  shType,
		"needs": needs,
	}
	var resp Stakeholder
	err := c.do(ctx, http.MethodPost, c.apiPath("stakeholders"), body, &resp)
	return resp, err
}

// CreateRisk creates a scored risk.
func (c *Client) CreateRisk(ctx context.Context, title string, likelihood, impact int) (Risk, error) {
	body := map[string]any{
		"title":      title,
		"likelihood": likelihood,
		"impact":     impact,
	}
	var resp Risk
	err := c.do(ctx, http.MethodPost, c.apiPath("risks"), body, &resp)
	return resp, err
}

// Dashboard returns the KPI stats.
func (c *Client) Dashboard(ctx context.Context) (DashboardStats, error) {
	var resp DashboardStats
	err := c.do(ctx, http.MethodGet, c.apiPath("dashboard/stats"), nil, &resp)
	return resp, err
}

// Events returns recent audit trail events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	endpoint := c.apiPath("events")
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	if cursor != "" {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint = fmt.Sprintf("%s%scursor=%s", endpoint, sep, url.QueryEscape(cursor))
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	b, err := c.doRaw(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if out != nil {
		return json.Unmarshal(b, out)
	}
	return nil
}

func (c *Client) doRaw(ctx context.Context, method, endpoint string, body any) ([]byte, error) {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.OrgID != "" {
		req.Header.Set("X-Org-Id", c.OrgID)
	}
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	b, readErr := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if readErr != nil {
		return nil, readErr
	}
	return b, nil
}

func (c *Client) apiPath(p string) string {
	return "api/" + strings.TrimLeft(p, "/")
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
