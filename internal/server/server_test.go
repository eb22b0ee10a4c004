package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"trustops/internal/config"
	"trustops/internal/db"
	"trustops/internal/domain"
	"trustops/internal/engine"
	"trustops/internal/migrate"
)

const testJWTSecret = "test-secret"

type testServer struct {
	URL    string
	OrgID  string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default(""))
	org, err := e.InitOrganization(context.Background(), "Acme Corp", "SaaS", "51-200", "FR", "tester")
	if err != nil {
		t.Fatalf("init organization: %v", err)
	}
	handler, err := New(Config{Engine: e, BasePath: "/api", Auth: AuthConfig{
		JWTSecret:              testJWTSecret,
		AllowLegacyActorHeader: true,
	}})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		OrgID:  org.ID,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func actorHeaders() map[string]string {
	return map[string]string{"X-Actor-Id": "tester"}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func TestAuthRequired(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/api/issues", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v", err)
	}
	if envelope.Error.Code != "unauthorized" {
		t.Fatalf("expected unauthorized code, got %q", envelope.Error.Code)
	}

	// health stays open
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/api/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected health without auth, got %d", res.StatusCode)
	}

	// garbage bearer token rejected
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/api/issues", nil, map[string]string{"Authorization": "Bearer nope"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", res.StatusCode)
	}
}

func TestJWTAuth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "jwt-user",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/api/issues", nil, map[string]string{"Authorization": "Bearer " + signed})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with jwt, got %d: %s", res.StatusCode, string(data))
	}

	// tokens without a subject are refused
	anon := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signedAnon, _ := anon.SignedString([]byte(testJWTSecret))
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/api/issues", nil, map[string]string{"Authorization": "Bearer " + signedAnon})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for subject-less token, got %d", res.StatusCode)
	}
}

func TestIssueCRUD(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/issues", map[string]any{
		"title":  "Retention gap",
		"domain": "Compliance",
	}, actorHeaders())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create issue status %d: %s", res.StatusCode, string(data))
	}
	var created domain.Issue
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal issue: %v", err)
	}
	if created.Status != "open" {
		t.Fatalf("expected default open, got %s", created.Status)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/issues/"+created.ID, nil, actorHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get issue status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPut, srv.URL+"/api/issues/"+created.ID, map[string]any{
		"title":  "Retention gap",
		"status": "in_review",
	}, actorHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("update issue status %d: %s", res.StatusCode, string(data))
	}
	var updated domain.Issue
	_ = json.Unmarshal(data, &updated)
	if updated.Status != "in_review" {
		t.Fatalf("expected in_review, got %s", updated.Status)
	}

	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/api/issues/"+created.ID, nil, actorHeaders())
	if res.StatusCode >= 300 {
		t.Fatalf("delete issue status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/issues/"+created.ID, nil, actorHeaders())
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d: %s", res.StatusCode, string(data))
	}
}

func TestIssueListPagination(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	for _, title := range []string{"one", "two", "three"} {
		res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/issues", map[string]any{"title": title}, actorHeaders())
		if res.StatusCode != http.StatusCreated {
			t.Fatalf("seed issue status %d: %s", res.StatusCode, string(data))
		}
	}
	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/api/issues?limit=2", nil, actorHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list status %d: %s", res.StatusCode, string(data))
	}
	var page IssueListResponse
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatalf("unmarshal page: %v", err)
	}
	if len(page.Items) != 2 || page.NextCursor == "" {
		t.Fatalf("expected 2 items and cursor, got %d %q", len(page.Items), page.NextCursor)
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/issues?limit=2&cursor="+url.QueryEscape(page.NextCursor), nil, actorHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("page 2 status %d: %s", res.StatusCode, string(data))
	}
	var page2 IssueListResponse
	_ = json.Unmarshal(data, &page2)
	if len(page2.Items) != 1 || page2.NextCursor != "" {
		t.Fatalf("expected final page of 1, got %d %q", len(page2.Items), page2.NextCursor)
	}
	seen := map[string]bool{}
	for _, i := range append(page.Items, page2.Items...) {
		if seen[i.ID] {
			t.Fatalf("pages overlap on %s", i.ID)
		}
		seen[i.ID] = true
	}
	if len(seen) != 3 {
		t.Fatalf("expected all 3 issues across pages, got %d", len(seen))
	}
}

func TestEventListPagination(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	for _, title := range []string{"one", "two", "three"} {
		res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/issues", map[string]any{"title": title}, actorHeaders())
		if res.StatusCode != http.StatusCreated {
			t.Fatalf("seed issue status %d: %s", res.StatusCode, string(data))
		}
	}
	collected := map[int64]bool{}
	cursor := ""
	for page := 0; page < 10; page++ {
		res, data := doJSON(t, client, http.MethodGet, srv.URL+"/api/events?type=issue.created&limit=2&cursor="+url.QueryEscape(cursor), nil, actorHeaders())
		if res.StatusCode != http.StatusOK {
			t.Fatalf("events page status %d: %s", res.StatusCode, string(data))
		}
		var resp EventListResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			t.Fatalf("unmarshal events: %v", err)
		}
		for _, ev := range resp.Items {
			if collected[ev.ID] {
				t.Fatalf("event %d returned twice", ev.ID)
			}
			collected[ev.ID] = true
		}
		if resp.NextCursor == "" {
			break
		}
		cursor = resp.NextCursor
	}
	if len(collected) != 3 {
		t.Fatalf("expected 3 issue.created events across pages, got %d", len(collected))
	}
}

func TestRiskValidation(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/risks", map[string]any{
		"title": "Breach", "likelihood": 4, "impact": 5,
	}, actorHeaders())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create risk status %d: %s", res.StatusCode, string(data))
	}
	var rk domain.Risk
	_ = json.Unmarshal(data, &rk)
	if rk.Score != 20 {
		t.Fatalf("expected score 20, got %d", rk.Score)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/risks", map[string]any{
		"title": "Bad", "likelihood": 9, "impact": 1,
	}, actorHeaders())
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for out-of-scale likelihood, got %d: %s", res.StatusCode, string(data))
	}
}

func TestCSVExportImport(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/issues", map[string]any{"title": "Exported"}, actorHeaders())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("seed issue: %d %s", res.StatusCode, string(data))
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/issues/export", nil)
	req.Header.Set("X-Actor-Id", "tester")
	res2, err := client.Do(req)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	body, _ := io.ReadAll(res2.Body)
	res2.Body.Close()
	if res2.StatusCode != http.StatusOK {
		t.Fatalf("export status %d: %s", res2.StatusCode, string(body))
	}
	if ct := res2.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("expected text/csv, got %s", ct)
	}
	if !strings.Contains(string(body), `"Exported"`) {
		t.Fatalf("expected exported row, got %s", string(body))
	}

	csvPayload := "Title,Description\n\"Imported issue\",\"from csv\"\n\"\",\"skipped\"\n"
	req, _ = http.NewRequest(http.MethodPost, srv.URL+"/api/issues/import", strings.NewReader(csvPayload))
	req.Header.Set("Content-Type", "text/csv")
	req.Header.Set("X-Actor-Id", "tester")
	res3, err := client.Do(req)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	body, _ = io.ReadAll(res3.Body)
	res3.Body.Close()
	if res3.StatusCode != http.StatusOK {
		t.Fatalf("import status %d: %s", res3.StatusCode, string(body))
	}
	var result struct {
		Imported int `json:"imported"`
		Skipped  int `json:"skipped"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("unmarshal import result: %v", err)
	}
	if result.Imported != 1 || result.Skipped != 1 {
		t.Fatalf("expected 1 imported 1 skipped, got %+v", result)
	}
}

func TestWizardFlow(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/wizard", map[string]any{"kind": "issue"}, actorHeaders())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("open wizard: %d %s", res.StatusCode, string(data))
	}
	var session struct {
		ID   string `json:"id"`
		Step int    `json:"step"`
	}
	if err := json.Unmarshal(data, &session); err != nil {
		t.Fatalf("unmarshal session: %v", err)
	}
	if session.Step != 1 {
		t.Fatalf("expected step 1, got %d", session.Step)
	}

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/api/wizard/"+session.ID+"/info", map[string]any{
		"title": "From wizard",
	}, actorHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("update info: %d %s", res.StatusCode, string(data))
	}

	for i := 0; i < 4; i++ {
		res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/wizard/"+session.ID+"/next", nil, actorHeaders())
		if res.StatusCode != http.StatusOK {
			t.Fatalf("next: %d %s", res.StatusCode, string(data))
		}
	}
	// one more next signals submit instead of advancing
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/wizard/"+session.ID+"/next", nil, actorHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("final next: %d %s", res.StatusCode, string(data))
	}
	var step struct {
		Submit bool `json:"submit"`
	}
	_ = json.Unmarshal(data, &step)
	if !step.Submit {
		t.Fatalf("expected submit signal, got %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/wizard/"+session.ID+"/submit", nil, actorHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("submit: %d %s", res.StatusCode, string(data))
	}
	var result struct {
		Submitted bool   `json:"submitted"`
		EntityID  string `json:"entity_id"`
	}
	_ = json.Unmarshal(data, &result)
	if !result.Submitted || result.EntityID == "" {
		t.Fatalf("expected submitted entity, got %s", string(data))
	}

	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/api/wizard/"+session.ID, nil, actorHeaders())
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected closed session 404, got %d", res.StatusCode)
	}
}

func TestOptionsEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/api/options/domain", nil, actorHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list options: %d %s", res.StatusCode, string(data))
	}
	var seeded []domain.OptionValue
	if err := json.Unmarshal(data, &seeded); err != nil {
		t.Fatalf("unmarshal options: %v", err)
	}
	if len(seeded) == 0 {
		t.Fatalf("expected seeded domains")
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/options/domain", map[string]any{"value": "Cloud"}, actorHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("add option: %d %s", res.StatusCode, string(data))
	}
	var added struct {
		Value   string `json:"value"`
		Custom  bool   `json:"custom"`
		Created bool   `json:"created"`
	}
	_ = json.Unmarshal(data, &added)
	if !added.Created || !added.Custom {
		t.Fatalf("expected new custom option, got %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/options/domain", map[string]any{"value": "Cloud"}, actorHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("re-add option: %d %s", res.StatusCode, string(data))
	}
	_ = json.Unmarshal(data, &added)
	if added.Created {
		t.Fatalf("expected dedupe, got %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/options/nonsense", nil, actorHeaders())
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown kind, got %d: %s", res.StatusCode, string(data))
	}
}

func TestAPIKeyLifecycle(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/apikeys", map[string]any{"name": "ci"}, actorHeaders())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create key: %d %s", res.StatusCode, string(data))
	}
	var created struct {
		ID  string `json:"id"`
		Key string `json:"key"`
	}
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal key: %v", err)
	}
	if created.Key == "" {
		t.Fatalf("expected raw key returned once")
	}

	// the raw key authenticates via X-Api-Key
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/issues", nil, map[string]string{"X-Api-Key": created.Key})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("api key auth: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/apikeys", nil, actorHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list keys: %d %s", res.StatusCode, string(data))
	}
	if strings.Contains(string(data), created.Key) {
		t.Fatalf("raw key must not be listed")
	}

	res, _ = doJSON(t, client, http.MethodDelete, srv.URL+"/api/apikeys/"+created.ID, nil, actorHeaders())
	if res.StatusCode >= 300 {
		t.Fatalf("revoke key: %d", res.StatusCode)
	}
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/api/issues", nil, map[string]string{"X-Api-Key": created.Key})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected revoked key rejected, got %d", res.StatusCode)
	}
}

func TestDashboardStats(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	if res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/issues", map[string]any{"title": "Open one"}, actorHeaders()); res.StatusCode != http.StatusCreated {
		t.Fatalf("seed issue: %d %s", res.StatusCode, string(data))
	}
	if res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/risks", map[string]any{"title": "R", "likelihood": 5, "impact": 5}, actorHeaders()); res.StatusCode != http.StatusCreated {
		t.Fatalf("seed risk: %d %s", res.StatusCode, string(data))
	}
	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/api/dashboard/stats", nil, actorHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("stats: %d %s", res.StatusCode, string(data))
	}
	var stats engine.DashboardStats
	if err := json.Unmarshal(data, &stats); err != nil {
		t.Fatalf("unmarshal stats: %v", err)
	}
	if stats.Issues != 1 || stats.OpenIssues != 1 {
		t.Fatalf("issue counts: %+v", stats)
	}
	if stats.Risks != 1 || stats.RisksByBand["critical"] != 1 {
		t.Fatalf("risk counts: %+v", stats)
	}
}
