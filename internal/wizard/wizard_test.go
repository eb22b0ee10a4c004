package wizard_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"trustops/internal/config"
	"trustops/internal/db"
	"trustops/internal/engine"
	"trustops/internal/migrate"
	"trustops/internal/wizard"
)

type testEnv struct {
	Engine engine.Engine
	Store  *wizard.Store
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
	eng := engine.New(conn, config.Default(""))
	eng.Now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	org, err := eng.InitOrganization(ctx, "Acme Corp", "", "", "", "tester")
	if err != nil {
		t.Fatalf("init organization: %v", err)
	}
	return testEnv{Engine: eng, Store: wizard.NewStore(eng), OrgID: org.ID, Ctx: ctx}
}

func strptr(s string) *string { return &s }

func TestStepBounds(t *testing.T) {
	env := newTestEnv(t)
	s, err := env.Store.Open("issue")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if s.Step != 1 {
		t.Fatalf("expected step 1, got %d", s.Step)
	}
	for want := 2; want <= 5; want++ {
		s, err = env.Store.Next(s.ID)
		if err != nil {
			t.Fatalf("next to %d: %v", want, err)
		}
		if s.Step != want {
			t.Fatalf("expected step %d, got %d", want, s.Step)
		}
	}
	if _, err := env.Store.Next(s.ID); !errors.Is(err, wizard.ErrSubmitStep) {
		t.Fatalf("expected submit signal at final step, got %v", err)
	}
	if s, err = env.Store.Get(s.ID); err != nil || s.Step != 5 {
		t.Fatalf("final-step next must not advance: %v step=%d", err, s.Step)
	}
	if _, err := env.Store.Open("project"); err == nil {
		t.Fatalf("expected invalid kind error")
	}
}

func TestPreviousAtFirstStepDiscards(t *testing.T) {
	env := newTestEnv(t)
	s, _ := env.Store.Open("stakeholder")
	s, _ = env.Store.Next(s.ID)
	s, closed, err := env.Store.Previous(s.ID)
	if err != nil || closed {
		t.Fatalf("previous to step 1: %v closed=%v", err, closed)
	}
	if s.Step != 1 {
		t.Fatalf("expected step 1, got %d", s.Step)
	}
	_, closed, err = env.Store.Previous(s.ID)
	if err != nil || !closed {
		t.Fatalf("expected session discarded, err=%v closed=%v", err, closed)
	}
	if _, err := env.Store.Get(s.ID); !errors.Is(err, wizard.ErrNotFound) {
		t.Fatalf("expected not found after discard, got %v", err)
	}
}

func TestDepartmentChangeClearsOwner(t *testing.T) {
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
	s, _ := env.Store.Open("issue")
	s, err = env.Store.UpdateInfo(s.ID, wizard.InfoUpdate{
		Title: strptr("Gap"), DepartmentID: strptr(it.ID), OwnerID: strptr(owner.ID),
	})
	if err != nil {
		t.Fatalf("update info: %v", err)
	}
	if s.Issue.OwnerID != owner.ID {
		t.Fatalf("expected owner set")
	}
	s, err = env.Store.UpdateInfo(s.ID, wizard.InfoUpdate{DepartmentID: strptr(legal.ID)})
	if err != nil {
		t.Fatalf("change department: %v", err)
	}
	if s.Issue.OwnerID != "" {
		t.Fatalf("expected owner cleared on department change, got %q", s.Issue.OwnerID)
	}
	// same department leaves the owner alone
	s, _ = env.Store.UpdateInfo(s.ID, wizard.InfoUpdate{OwnerID: strptr(owner.ID)})
	s, err = env.Store.UpdateInfo(s.ID, wizard.InfoUpdate{DepartmentID: strptr(legal.ID)})
	if err != nil {
		t.Fatal(err)
	}
	if s.Issue.OwnerID != owner.ID {
		t.Fatalf("expected owner kept when department unchanged")
	}
}

func TestStagedProcessesCommitAndDiscard(t *testing.T) {
	env := newTestEnv(t)
	p1, err := env.Engine.CreateProcess(env.Ctx, env.OrgID, "Onboarding", "", "", "tester")
	if err != nil {
		t.Fatal(err)
	}
	p2, err := env.Engine.CreateProcess(env.Ctx, env.OrgID, "Billing", "", "", "tester")
	if err != nil {
		t.Fatal(err)
	}
	s, _ := env.Store.Open("issue")
	s, err = env.Store.StageProcesses(s.ID, []string{p1.ID, p2.ID})
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	if len(s.Issue.ProcessIDs) != 0 {
		t.Fatalf("staging must not touch the draft")
	}
	s, err = env.Store.DiscardProcesses(s.ID)
	if err != nil || len(s.Staged) != 0 || len(s.Issue.ProcessIDs) != 0 {
		t.Fatalf("discard: %v staged=%v draft=%v", err, s.Staged, s.Issue.ProcessIDs)
	}
	s, _ = env.Store.StageProcesses(s.ID, []string{p1.ID})
	s, err = env.Store.CommitProcesses(s.ID)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if len(s.Issue.ProcessIDs) != 1 || s.Issue.ProcessIDs[0] != p1.ID {
		t.Fatalf("expected committed selection, got %v", s.Issue.ProcessIDs)
	}
	if len(s.Staged) != 0 {
		t.Fatalf("expected staging cleared after commit")
	}
}

func TestRegulationToggle(t *testing.T) {
	env := newTestEnv(t)
	reg, err := env.Engine.CreateRegulation(env.Ctx, env.OrgID, "GDPR", "EU", "", "tester")
	if err != nil {
		t.Fatal(err)
	}
	s, _ := env.Store.Open("issue")
	s, err = env.Store.ToggleRegulation(env.Ctx, s.ID, reg.ID)
	if err != nil {
		t.Fatalf("toggle on: %v", err)
	}
	if len(s.Issue.RegulationIDs) != 1 {
		t.Fatalf("expected regulation added")
	}
	s, err = env.Store.ToggleRegulation(env.Ctx, s.ID, reg.ID)
	if err != nil {
		t.Fatalf("toggle off: %v", err)
	}
	if len(s.Issue.RegulationIDs) != 0 {
		t.Fatalf("expected regulation removed")
	}
	if _, err := env.Store.ToggleRegulation(env.Ctx, s.ID, "missing"); err == nil {
		t.Fatalf("expected unknown regulation error")
	}
}

func TestNeedsOrderAndDuplicates(t *testing.T) {
	env := newTestEnv(t)
	s, _ := env.Store.Open("issue")
	s, err := env.Store.AddNeed(env.Ctx, s.ID, "", "Uptime")
	if err != nil {
		t.Fatalf("add need: %v", err)
	}
	s, err = env.Store.AddNeed(env.Ctx, s.ID, "", "Uptime")
	if err != nil {
		t.Fatalf("duplicate need: %v", err)
	}
	if len(s.Needs) != 2 {
		t.Fatalf("duplicates are kept, got %d", len(s.Needs))
	}
	s, err = env.Store.RemoveNeed(s.ID, 0)
	if err != nil || len(s.Needs) != 1 {
		t.Fatalf("remove: %v needs=%d", err, len(s.Needs))
	}
	if _, err := env.Store.RemoveNeed(s.ID, 5); err == nil {
		t.Fatalf("expected index out of range error")
	}
	if _, err := env.Store.AddNeed(env.Ctx, s.ID, "", "  "); err == nil {
		t.Fatalf("expected empty need error")
	}
}

func TestSubmitEmptyTitleKeepsSession(t *testing.T) {
	env := newTestEnv(t)
	s, _ := env.Store.Open("issue")
	res, err := env.Store.Submit(env.Ctx, s.ID, env.OrgID, "tester")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Submitted {
		t.Fatalf("expected non-submitted result for empty title")
	}
	if res.Reason == "" {
		t.Fatalf("expected a reason")
	}
	if _, err := env.Store.Get(s.ID); err != nil {
		t.Fatalf("session must stay open after refused submit: %v", err)
	}
}

func TestSubmitCreatesIssueAndClosesSession(t *testing.T) {
	env := newTestEnv(t)
	s, _ := env.Store.Open("issue")
	if _, err := env.Store.UpdateInfo(s.ID, wizard.InfoUpdate{Title: strptr("Retention gap")}); err != nil {
		t.Fatal(err)
	}
	res, err := env.Store.Submit(env.Ctx, s.ID, env.OrgID, "tester")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !res.Submitted || res.EntityID == "" {
		t.Fatalf("expected submitted issue, got %+v", res)
	}
	if _, err := env.Engine.Repo.GetIssue(env.Ctx, res.EntityID); err != nil {
		t.Fatalf("issue not persisted: %v", err)
	}
	if _, err := env.Store.Get(s.ID); !errors.Is(err, wizard.ErrNotFound) {
		t.Fatalf("expected session closed after submit, got %v", err)
	}
	if _, err := env.Store.Submit(env.Ctx, s.ID, env.OrgID, "tester"); !errors.Is(err, wizard.ErrNotFound) {
		t.Fatalf("expected not found on resubmit, got %v", err)
	}
}

func TestSubmitStakeholderWithNeeds(t *testing.T) {
	env := newTestEnv(t)
	s, _ := env.Store.Open("stakeholder")
	if _, err := env.Store.UpdateInfo(s.ID, wizard.InfoUpdate{Name: strptr("Customers"), Type: strptr("External")}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Store.AddNeed(env.Ctx, s.ID, "", "Data privacy"); err != nil {
		t.Fatal(err)
	}
	res, err := env.Store.Submit(env.Ctx, s.ID, env.OrgID, "tester")
	if err != nil || !res.Submitted {
		t.Fatalf("submit stakeholder: %v %+v", err, res)
	}
	needs, err := env.Engine.Repo.ListStakeholderNeeds(env.Ctx, res.EntityID)
	if err != nil {
		t.Fatal(err)
	}
	if len(needs) != 1 || needs[0].NeedExpectation != "Data privacy" {
		t.Fatalf("expected persisted need, got %v", needs)
	}
}

func TestOpenForIssueEditsExisting(t *testing.T) {
	env := newTestEnv(t)
	issue, err := env.Engine.CreateIssue(env.Ctx, engine.IssueOptions{
		OrgID: env.OrgID, Title: "Original", Domain: "Compliance", ActorID: "tester",
	})
	if err != nil {
		t.Fatal(err)
	}
	s, err := env.Store.OpenForIssue(env.Ctx, issue.ID)
	if err != nil {
		t.Fatalf("open for issue: %v", err)
	}
	if s.Issue.Title != "Original" || s.IssueID != issue.ID {
		t.Fatalf("expected draft loaded from issue, got %+v", s.Issue)
	}
	if _, err := env.Store.UpdateInfo(s.ID, wizard.InfoUpdate{Title: strptr("Renamed")}); err != nil {
		t.Fatal(err)
	}
	res, err := env.Store.Submit(env.Ctx, s.ID, env.OrgID, "tester")
	if err != nil || !res.Submitted {
		t.Fatalf("submit edit: %v %+v", err, res)
	}
	if res.EntityID != issue.ID {
		t.Fatalf("edit must update in place, got %s", res.EntityID)
	}
	got, err := env.Engine.Repo.GetIssue(env.Ctx, issue.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Renamed" {
		t.Fatalf("expected renamed issue, got %s", got.Title)
	}
}
