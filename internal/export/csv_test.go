package export_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"trustops/internal/config"
	"trustops/internal/db"
	"trustops/internal/domain"
	"trustops/internal/engine"
	"trustops/internal/export"
	"trustops/internal/migrate"
	"trustops/internal/repo"
)

func strptr(s string) *string { return &s }

func TestIssuesCSVQuoting(t *testing.T) {
	issues := []domain.Issue{
		{Title: "A"},
		{Title: `B, "Inc."`, Description: "multi\nline", Domain: "Compliance", Category: "Policy", IssueType: "Gap", Status: "open", DepartmentID: strptr("d1")},
	}
	got := export.IssuesCSV(issues, func(id string) string {
		if id == "d1" {
			return "IT"
		}
		return ""
	})
	lines := strings.SplitN(got, "\n", 3)
	if lines[0] != export.IssuesCSVHeader {
		t.Fatalf("header mismatch: %s", lines[0])
	}
	if lines[1] != `"A","","","","","",""` {
		t.Fatalf("sparse row mismatch: %s", lines[1])
	}
	want := `"B, ""Inc.""","multi` + "\n" + `line","Compliance","Policy","Gap","open","IT"` + "\n"
	if lines[2] != want {
		t.Fatalf("quoted row mismatch:\n got %q\nwant %q", lines[2], want)
	}
}

func TestIssuesCSVEmpty(t *testing.T) {
	got := export.IssuesCSV(nil, nil)
	if got != export.IssuesCSVHeader+"\n" {
		t.Fatalf("expected header only, got %q", got)
	}
}

func newTestEngine(t *testing.T) (engine.Engine, string) {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default(""))
	eng.Now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	org, err := eng.InitOrganization(context.Background(), "Acme Corp", "", "", "", "tester")
	if err != nil {
		t.Fatalf("init organization: %v", err)
	}
	return eng, org.ID
}

func TestImportIssuesBestEffort(t *testing.T) {
	eng, orgID := newTestEngine(t)
	csvData := strings.Join([]string{
		"Title, Description ,Issue Type",
		`"Retention gap","No schedule","Gap"`,
		`"","skipped: empty title",""`,
		`"Second one","",""`,
	}, "\n")
	res, err := export.ImportIssues(context.Background(), eng, orgID, strings.NewReader(csvData), "tester")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Imported != 2 || res.Skipped != 1 {
		t.Fatalf("expected 2 imported 1 skipped, got %+v", res)
	}
	items, err := eng.Repo.ListIssues(context.Background(), repo.IssueFilters{OrgID: orgID})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 persisted issues, got %d", len(items))
	}
	for _, i := range items {
		if i.Status != "open" {
			t.Fatalf("imported issues default to open, got %s", i.Status)
		}
	}
}

func TestImportIssuesHeaderErrors(t *testing.T) {
	eng, orgID := newTestEngine(t)
	if _, err := export.ImportIssues(context.Background(), eng, orgID, strings.NewReader(""), "tester"); err == nil {
		t.Fatalf("expected missing header error")
	}
	if _, err := export.ImportIssues(context.Background(), eng, orgID, strings.NewReader("Name,Notes\n\"x\",\"y\"\n"), "tester"); err == nil {
		t.Fatalf("expected missing title column error")
	}
}

func TestRoundTrip(t *testing.T) {
	eng, orgID := newTestEngine(t)
	seed := []domain.Issue{
		{Title: "One", Description: "first", Domain: "Governance", Category: "Policy", IssueType: "Gap", Status: "open"},
		{Title: "Two, escaped \"quotes\"", Status: "open"},
	}
	csvOut := export.IssuesCSV(seed, nil)
	res, err := export.ImportIssues(context.Background(), eng, orgID, strings.NewReader(csvOut), "tester")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Imported != 2 || res.Skipped != 0 {
		t.Fatalf("round trip counts: %+v", res)
	}
	items, err := eng.Repo.ListIssues(context.Background(), repo.IssueFilters{OrgID: orgID})
	if err != nil {
		t.Fatal(err)
	}
	titles := map[string]bool{}
	for _, i := range items {
		titles[i.Title] = true
	}
	if !titles["One"] || !titles["Two, escaped \"quotes\""] {
		t.Fatalf("expected titles preserved, got %v", titles)
	}
}
