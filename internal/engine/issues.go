package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"trustops/internal/domain"
	"trustops/internal/events"
	"trustops/internal/repo"
)

var issueStatuses = map[string]bool{
	"open": true, "in_review": true, "mitigated": true, "closed": true,
}

var stakeholderTypes = map[string]bool{
	"Internal": true, "External": true, "Third Party": true,
}

// IssueOptions are parameters for creating or updating an issue.
type IssueOptions struct {
	OrgID         string
	Title         string
	Description   string
	Domain        string
	Category      string
	IssueType     string
	Status        string
	DueDate       string
	DepartmentID  string
	OwnerID       string
	RegulationIDs []string
	ProcessIDs    []string
	ActorID       string
}

func (e Engine) validateIssueRefs(ctx context.Context, opts IssueOptions) error {
	if opts.DepartmentID != "" {
		if _, err := e.Repo.GetDepartment(ctx, opts.DepartmentID); err != nil {
			return fmt.Errorf("department: %w", err)
		}
	}
	if opts.OwnerID != "" {
		if _, err := e.Repo.GetUser(ctx, opts.OwnerID); err != nil {
			return fmt.Errorf("owner: %w", err)
		}
	}
	for _, regID := range opts.RegulationIDs {
		if _, err := e.Repo.GetRegulation(ctx, regID); err != nil {
			return fmt.Errorf("regulation %s: %w", regID, err)
		}
	}
	for _, procID := range opts.ProcessIDs {
		if _, err := e.Repo.GetProcess(ctx, procID); err != nil {
			return fmt.Errorf("process %s: %w", procID, err)
		}
	}
	return nil
}

func (e Engine) CreateIssue(ctx context.Context, opts IssueOptions) (domain.Issue, error) {
	if strings.TrimSpace(opts.Title) == "" {
		return domain.Issue{}, errors.New("title is required")
	}
	if opts.Status == "" {
		opts.Status = "open"
	}
	if !issueStatuses[opts.Status] {
		return domain.Issue{}, fmt.Errorf("invalid status %q", opts.Status)
	}
	if err := e.validateIssueRefs(ctx, opts); err != nil {
		return domain.Issue{}, err
	}
	now := e.stamp()
	i := domain.Issue{
		ID:           uuid.NewString(),
		OrgID:        opts.OrgID,
		Title:        opts.Title,
		Description:  opts.Description,
		Domain:       opts.Domain,
		Category:     opts.Category,
		IssueType:    opts.IssueType,
		Status:       opts.Status,
		DueDate:      optionalString(opts.DueDate),
		DepartmentID: optionalString(opts.DepartmentID),
		OwnerID:      optionalString(opts.OwnerID),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Issue{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertIssue(ctx, tx, i); err != nil {
		return domain.Issue{}, err
	}
	if err := e.Repo.SetIssueRegulations(ctx, tx, i.ID, opts.RegulationIDs); err != nil {
		return domain.Issue{}, err
	}
	if err := e.Repo.SetIssueProcesses(ctx, tx, i.ID, opts.ProcessIDs); err != nil {
		return domain.Issue{}, err
	}
	if err := e.Events.Append(ctx, tx, "issue.created", i.OrgID, "issue", i.ID, opts.ActorID, events.EventPayload{
		"title":  i.Title,
		"status": i.Status,
	}); err != nil {
		return domain.Issue{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Issue{}, err
	}
	i.RegulationIDs = opts.RegulationIDs
	i.ProcessIDs = opts.ProcessIDs
	return i, nil
}

func (e Engine) UpdateIssue(ctx context.Context, id string, opts IssueOptions) (domain.Issue, error) {
	if strings.TrimSpace(opts.Title) == "" {
		return domain.Issue{}, errors.New("title is required")
	}
	current, err := e.Repo.GetIssue(ctx, id)
	if err != nil {
		return domain.Issue{}, err
	}
	if opts.Status == "" {
		opts.Status = current.Status
	}
	if !issueStatuses[opts.Status] {
		return domain.Issue{}, fmt.Errorf("invalid status %q", opts.Status)
	}
	if err := e.validateIssueRefs(ctx, opts); err != nil {
		return domain.Issue{}, err
	}
	i := current
	i.Title = opts.Title
	i.Description = opts.Description
	i.Domain = opts.Domain
	i.Category = opts.Category
	i.IssueType = opts.IssueType
	i.Status = opts.Status
	i.DueDate = optionalString(opts.DueDate)
	i.DepartmentID = optionalString(opts.DepartmentID)
	i.OwnerID = optionalString(opts.OwnerID)
	i.UpdatedAt = e.stamp()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Issue{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateIssue(ctx, tx, i); err != nil {
		return domain.Issue{}, err
	}
	if err := e.Repo.SetIssueRegulations(ctx, tx, i.ID, opts.RegulationIDs); err != nil {
		return domain.Issue{}, err
	}
	if err := e.Repo.SetIssueProcesses(ctx, tx, i.ID, opts.ProcessIDs); err != nil {
		return domain.Issue{}, err
	}
	if err := e.Events.Append(ctx, tx, "issue.updated", i.OrgID, "issue", i.ID, opts.ActorID, events.EventPayload{
		"title":  i.Title,
		"status": i.Status,
	}); err != nil {
		return domain.Issue{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Issue{}, err
	}
	i.RegulationIDs = opts.RegulationIDs
	i.ProcessIDs = opts.ProcessIDs
	return i, nil
}

func (e Engine) DeleteIssue(ctx context.Context, id, actorID string) error {
	i, err := e.Repo.GetIssue(ctx, id)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM issues WHERE id=?`, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "issue.deleted", i.OrgID, "issue", i.ID, actorID, events.EventPayload{"title": i.Title}); err != nil {
		return err
	}
	return tx.Commit()
}

// StakeholderOptions are parameters for creating a stakeholder.
type StakeholderOptions struct {
	OrgID        string
	Name         string
	Type         string
	Status       string
	DepartmentID string
	Needs        []string
	ActorID      string
}

func (e Engine) CreateStakeholder(ctx context.Context, opts StakeholderOptions) (domain.Stakeholder, error) {
	if strings.TrimSpace(opts.Name) == "" {
		return domain.Stakeholder{}, errors.New("name is required")
	}
	if opts.Type == "" {
		opts.Type = "Internal"
	}
	if !stakeholderTypes[opts.Type] {
		return domain.Stakeholder{}, fmt.Errorf("invalid stakeholder type %q", opts.Type)
	}
	if opts.DepartmentID != "" {
		if _, err := e.Repo.GetDepartment(ctx, opts.DepartmentID); err != nil {
			return domain.Stakeholder{}, fmt.Errorf("department: %w", err)
		}
	}
	s := domain.Stakeholder{
		ID:           uuid.NewString(),
		OrgID:        opts.OrgID,
		Name:         opts.Name,
		Type:         opts.Type,
		Status:       opts.Status,
		DepartmentID: optionalString(opts.DepartmentID),
		CreatedAt:    e.stamp(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Stakeholder{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertStakeholder(ctx, tx, s); err != nil {
		return domain.Stakeholder{}, err
	}
	for _, need := range opts.Needs {
		n := domain.StakeholderNeed{
			ID:              uuid.NewString(),
			StakeholderID:   s.ID,
			NeedExpectation: need,
			CreatedAt:       e.stamp(),
		}
		if err := e.Repo.InsertStakeholderNeed(ctx, tx, n); err != nil {
			return domain.Stakeholder{}, err
		}
	}
	if err := e.Events.Append(ctx, tx, "stakeholder.created", s.OrgID, "stakeholder", s.ID, opts.ActorID, events.EventPayload{
		"name": s.Name,
		"type": s.Type,
	}); err != nil {
		return domain.Stakeholder{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Stakeholder{}, err
	}
	return s, nil
}

func (e Engine) AddStakeholderNeed(ctx context.Context, stakeholderID, need, actorID string) (domain.StakeholderNeed, error) {
	if strings.TrimSpace(need) == "" {
		return domain.StakeholderNeed{}, errors.New("need_expectation is required")
	}
	s, err := e.Repo.GetStakeholder(ctx, stakeholderID)
	if err != nil {
		return domain.StakeholderNeed{}, err
	}
	n := domain.StakeholderNeed{
		ID:              uuid.NewString(),
		StakeholderID:   s.ID,
		NeedExpectation: need,
		CreatedAt:       e.stamp(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.StakeholderNeed{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertStakeholderNeed(ctx, tx, n); err != nil {
		return domain.StakeholderNeed{}, err
	}
	if err := e.Events.Append(ctx, tx, "stakeholder.need.added", s.OrgID, "stakeholder", s.ID, actorID, events.EventPayload{"need": need}); err != nil {
		return domain.StakeholderNeed{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.StakeholderNeed{}, err
	}
	return n, nil
}

func (e Engine) RemoveStakeholderNeed(ctx context.Context, stakeholderID, needID, actorID string) error {
	s, err := e.Repo.GetStakeholder(ctx, stakeholderID)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, `DELETE FROM stakeholder_needs WHERE id=? AND stakeholder_id=?`, needID, stakeholderID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("need %s: %w", needID, repo.ErrNotFound)
	}
	if err := e.Events.Append(ctx, tx, "stakeholder.need.removed", s.OrgID, "stakeholder", s.ID, actorID, events.EventPayload{"need_id": needID}); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) DeleteStakeholder(ctx context.Context, id, actorID string) error {
	s, err := e.Repo.GetStakeholder(ctx, id)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM stakeholders WHERE id=?`, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "stakeholder.deleted", s.OrgID, "stakeholder", s.ID, actorID, events.EventPayload{"name": s.Name}); err != nil {
		return err
	}
	return tx.Commit()
}
