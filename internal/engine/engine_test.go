package engine_test

import (
	"context"
	"testing"
	"time"

	"trustops/internal/config"
	"trustops/internal/db"
	"trustops/internal/engine"
	"trustops/internal/migrate"
)

type testEnv struct {
	Engine engine.Engine
	OrgID  string
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
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
	cfg := config.Default("")
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	org, err := eng.InitOrganization(ctx, "Acme Corp", "SaaS", "51-200", "FR", "tester")
	if err != nil {
		t.Fatalf("init organization: %v", err)
	}
	return testEnv{Engine: eng, OrgID: org.ID, Ctx: ctx}
}

func TestRiskScoreAndBand(t *testing.T) {
	env := newTestEnv(t)
	rk, err := env.Engine.CreateRisk(env.Ctx, engine.RiskOptions{
		OrgID: env.OrgID, Title: "Data breach", Likelihood: 3, Impact: 4, ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("create risk: %v", err)
	}
	if rk.Score != 12 {
		t.Fatalf("expected score 12, got %d", rk.Score)
	}
	if band := env.Engine.Config.Band(rk.Score); band != "high" {
		t.Fatalf("expected band high, got %s", band)
	}
	if rk.Status != "identified" {
		t.Fatalf("expected default status identified, got %s", rk.Status)
	}
	// out-of-range scores must be rejected
	if _, err := env.Engine.CreateRisk(env.Ctx, engine.RiskOptions{
		OrgID: env.OrgID, Title: "bad", Likelihood: 0, Impact: 4, ActorID: "tester",
	}); err == nil {
		t.Fatalf("expected likelihood range error")
	}
	if _, err := env.Engine.CreateRisk(env.Ctx, engine.RiskOptions{
		OrgID: env.OrgID, Title: "bad", Likelihood: 3, Impact: 6, ActorID: "tester",
	}); err == nil {
		t.Fatalf("expected impact range error")
	}
}

func TestRiskRescoreOnUpdate(t *testing.T) {
	env := newTestEnv(t)
	rk, err := env.Engine.CreateRisk(env.Ctx, engine.RiskOptions{
		OrgID: env.OrgID, Title: "Vendor outage", Likelihood: 2, Impact: 2, ActorID: "tester",
	})
	if err != nil {
		t.Fatal(err)
	}
	updated, err := env.Engine.UpdateRisk(env.Ctx, rk.ID, engine.RiskOptions{
		OrgID: env.OrgID, Title: "Vendor outage", Likelihood: 5, Impact: 5, Status: "assessed", ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("update risk: %v", err)
	}
	if updated.Score != 25 {
		t.Fatalf("expected rescored 25, got %d", updated.Score)
	}
	if band := env.Engine.Config.Band(updated.Score); band != "critical" {
		t.Fatalf("expected band critical, got %s", band)
	}
}

func TestBandThresholds(t *testing.T) {
	env := newTestEnv(t)
	cases := map[int]string{1: "low", 4: "low", 5: "medium", 9: "medium", 10: "high", 16: "high", 17: "critical", 25: "critical"}
	for score, want := range cases {
		if got := env.Engine.Config.Band(score); got != want {
			t.Fatalf("band(%d) = %s, want %s", score, got, want)
		}
	}
}

func TestOptionAddDedupes(t *testing.T) {
	env := newTestEnv(t)
	o, created, err := env.Engine.AddOption(env.Ctx, env.OrgID, "domain", "Cloud Security", "tester")
	if err != nil {
		t.Fatalf("add option: %v", err)
	}
	if !created || !o.Custom {
		t.Fatalf("expected newly created custom option")
	}
	dup, created, err := env.Engine.AddOption(env.Ctx, env.OrgID, "domain", "  Cloud Security ", "tester")
	if err != nil {
		t.Fatalf("re-add option: %v", err)
	}
	if created {
		t.Fatalf("expected dedupe, got new row")
	}
	if dup.ID != o.ID {
		t.Fatalf("expected same option row, got %s vs %s", dup.ID, o.ID)
	}
	if _, _, err := env.Engine.AddOption(env.Ctx, env.OrgID, "color", "Red", "tester"); err == nil {
		t.Fatalf("expected invalid kind error")
	}
	if _, _, err := env.Engine.AddOption(env.Ctx, env.OrgID, "domain", "   ", "tester"); err == nil {
		t.Fatalf("expected empty value error")
	}
}

func TestIssueLinksAndRefChecks(t *testing.T) {
	env := newTestEnv(t)
	it, err := env.Engine.CreateDepartment(env.Ctx, env.OrgID, "IT", "tester")
	if err != nil {
		t.Fatal(err)
	}
	legal, err := env.Engine.CreateDepartment(env.Ctx, env.OrgID, "Legal", "tester")
	if err != nil {
		t.Fatal(err)
	}
	owner, err := env.Engine.CreateUser(env.Ctx, engine.UserCreateOptions{
		OrgID: env.OrgID, DepartmentID: it.ID, Name: "Alice", ActorID: "tester",
	})
	if err != nil {
		t.Fatal(err)
	}
	reg, err := env.Engine.CreateRegulation(env.Ctx, env.OrgID, "GDPR", "EU", "", "tester")
	if err != nil {
		t.Fatal(err)
	}
	proc, err := env.Engine.CreateProcess(env.Ctx, env.OrgID, "Onboarding", owner.ID, "", "tester")
	if err != nil {
		t.Fatal(err)
	}
	issue, err := env.Engine.CreateIssue(env.Ctx, engine.IssueOptions{
		OrgID: env.OrgID, Title: "Retention gap", DepartmentID: it.ID, OwnerID: owner.ID,
		RegulationIDs: []string{reg.ID}, ProcessIDs: []string{proc.ID}, ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("create issue: %v", err)
	}
	if issue.Status != "open" {
		t.Fatalf("expected default status open, got %s", issue.Status)
	}
	if len(issue.RegulationIDs) != 1 || issue.RegulationIDs[0] != reg.ID {
		t.Fatalf("expected regulation link, got %v", issue.RegulationIDs)
	}
	if len(issue.ProcessIDs) != 1 || issue.ProcessIDs[0] != proc.ID {
		t.Fatalf("expected process link, got %v", issue.ProcessIDs)
	}
	// owner and department are independent fields: a mismatch is accepted
	cross, err := env.Engine.CreateIssue(env.Ctx, engine.IssueOptions{
		OrgID: env.OrgID, Title: "Cross-department owner", DepartmentID: legal.ID, OwnerID: owner.ID, ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("cross-department owner must be accepted: %v", err)
	}
	if cross.OwnerID == nil || *cross.OwnerID != owner.ID {
		t.Fatalf("expected owner kept, got %v", cross.OwnerID)
	}
	if _, err := env.Engine.CreateIssue(env.Ctx, engine.IssueOptions{
		OrgID: env.OrgID, Title: "Bad reg", RegulationIDs: []string{"nope"}, ActorID: "tester",
	}); err == nil {
		t.Fatalf("expected missing regulation error")
	}
}

func TestStakeholderNeeds(t *testing.T) {
	env := newTestEnv(t)
	s, err := env.Engine.CreateStakeholder(env.Ctx, engine.StakeholderOptions{
		OrgID: env.OrgID, Name: "Customers", Type: "External",
		Needs: []string{"Uptime", "Data privacy"}, ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("create stakeholder: %v", err)
	}
	needs, err := env.Engine.Repo.ListStakeholderNeeds(env.Ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(needs) != 2 {
		t.Fatalf("expected 2 needs, got %d", len(needs))
	}
	extra, err := env.Engine.AddStakeholderNeed(env.Ctx, s.ID, "Transparency", "tester")
	if err != nil {
		t.Fatalf("add need: %v", err)
	}
	if err := env.Engine.RemoveStakeholderNeed(env.Ctx, s.ID, extra.ID, "tester"); err != nil {
		t.Fatalf("remove need: %v", err)
	}
	if err := env.Engine.RemoveStakeholderNeed(env.Ctx, s.ID, extra.ID, "tester"); err == nil {
		t.Fatalf("expected not found on second remove")
	}
	if _, err := env.Engine.CreateStakeholder(env.Ctx, engine.StakeholderOptions{
		OrgID: env.OrgID, Name: "Bad", Type: "Alien", ActorID: "tester",
	}); err == nil {
		t.Fatalf("expected invalid type error")
	}
}

func TestAuditStatusTimestamps(t *testing.T) {
	env := newTestEnv(t)
	a, err := env.Engine.CreateAudit(env.Ctx, engine.AuditOptions{
		OrgID: env.OrgID, Title: "Annual review", ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("create audit: %v", err)
	}
	if a.Status != "planned" || a.StartedAt != nil {
		t.Fatalf("expected planned audit without start, got %+v", a)
	}
	a, err = env.Engine.UpdateAudit(env.Ctx, a.ID, engine.AuditOptions{
		OrgID: env.OrgID, Title: "Annual review", Status: "in_progress", ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("start audit: %v", err)
	}
	if a.StartedAt == nil {
		t.Fatalf("expected started_at set when leaving planned")
	}
	a, err = env.Engine.UpdateAudit(env.Ctx, a.ID, engine.AuditOptions{
		OrgID: env.OrgID, Title: "Annual review", Status: "closed", ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("close audit: %v", err)
	}
	if a.ClosedAt == nil {
		t.Fatalf("expected closed_at set on close")
	}
	a, err = env.Engine.UpdateAudit(env.Ctx, a.ID, engine.AuditOptions{
		OrgID: env.OrgID, Title: "Annual review", Status: "reporting", ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("reopen audit: %v", err)
	}
	if a.ClosedAt != nil {
		t.Fatalf("expected closed_at cleared on reopen")
	}
}

func TestDashboardAggregates(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.CreateIssue(env.Ctx, engine.IssueOptions{OrgID: env.OrgID, Title: "A", ActorID: "tester"}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CreateIssue(env.Ctx, engine.IssueOptions{OrgID: env.OrgID, Title: "B", Status: "closed", ActorID: "tester"}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CreateRisk(env.Ctx, engine.RiskOptions{OrgID: env.OrgID, Title: "R", Likelihood: 1, Impact: 2, ActorID: "tester"}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CreateAudit(env.Ctx, engine.AuditOptions{OrgID: env.OrgID, Title: "Audit", ActorID: "tester"}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CreateStakeholder(env.Ctx, engine.StakeholderOptions{OrgID: env.OrgID, Name: "S", ActorID: "tester"}); err != nil {
		t.Fatal(err)
	}
	stats, err := env.Engine.Dashboard(env.Ctx, env.OrgID)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if stats.Issues != 2 || stats.OpenIssues != 1 {
		t.Fatalf("issue counts: %+v", stats)
	}
	if stats.Risks != 1 || stats.RisksByBand["low"] != 1 {
		t.Fatalf("risk counts: %+v", stats)
	}
	if stats.Audits != 1 || stats.Stakeholders != 1 {
		t.Fatalf("audit/stakeholder counts: %+v", stats)
	}
}

func TestEventAppendOnChanges(t *testing.T) {
	env := newTestEnv(t)
	issue, err := env.Engine.CreateIssue(env.Ctx, engine.IssueOptions{OrgID: env.OrgID, Title: "Logged", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.DeleteIssue(env.Ctx, issue.ID, "tester"); err != nil {
		t.Fatal(err)
	}
	events, err := env.Engine.Repo.LatestEvents(env.Ctx, 10, env.OrgID, "", "issue", issue.ID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected create+delete events, got %d", len(events))
	}
	if events[0].Type != "issue.deleted" || events[1].Type != "issue.created" {
		t.Fatalf("unexpected event order: %s, %s", events[0].Type, events[1].Type)
	}
}
