package wizard

import (
	"context"
	"errors"
	"strings"

	"trustops/internal/engine"
	"trustops/internal/repo"
)

// Preview is the final-step read of the draft with ids resolved to
// display names.
type Preview struct {
	Kind            string   `json:"kind"`
	Title           string   `json:"title,omitempty"`
	Name            string   `json:"name,omitempty"`
	Domain          string   `json:"domain,omitempty"`
	Category        string   `json:"category,omitempty"`
	IssueType       string   `json:"issue_type,omitempty"`
	Status          string   `json:"status,omitempty"`
	DepartmentName  string   `json:"department_name,omitempty"`
	OwnerName       string   `json:"owner_name,omitempty"`
	RegulationNames []string `json:"regulation_names,omitempty"`
	ProcessNames    []string `json:"process_names,omitempty"`
	Needs           []string `json:"needs,omitempty"`
}

func (st *Store) Preview(ctx context.Context, id string) (Preview, error) {
	s, err := st.Get(id)
	if err != nil {
		return Preview{}, err
	}
	p := Preview{Kind: s.Kind}
	r := st.engine.Repo
	if s.Kind == "stakeholder" {
		p.Name = s.Stakeholder.Name
		p.Status = s.Stakeholder.Status
		if s.Stakeholder.DepartmentID != "" {
			if d, err := r.GetDepartment(ctx, s.Stakeholder.DepartmentID); err == nil {
				p.DepartmentName = d.Name
			}
		}
	} else {
		p.Title = s.Issue.Title
		p.Domain = s.Issue.Domain
		p.Category = s.Issue.Category
		p.IssueType = s.Issue.IssueType
		p.Status = s.Issue.Status
		if s.Issue.DepartmentID != "" {
			if d, err := r.GetDepartment(ctx, s.Issue.DepartmentID); err == nil {
				p.DepartmentName = d.Name
			}
		}
		if s.Issue.OwnerID != "" {
			if u, err := r.GetUser(ctx, s.Issue.OwnerID); err == nil {
				p.OwnerName = u.Name
			}
		}
		for _, regID := range s.Issue.RegulationIDs {
			if reg, err := r.GetRegulation(ctx, regID); err == nil {
				p.RegulationNames = append(p.RegulationNames, reg.Name)
			}
		}
		for _, procID := range s.Issue.ProcessIDs {
			if proc, err := r.GetProcess(ctx, procID); err == nil {
				p.ProcessNames = append(p.ProcessNames, proc.Name)
			}
		}
	}
	for _, n := range s.Needs {
		label := n.NeedExpectation
		if n.StakeholderID != "" {
			if sh, err := r.GetStakeholder(ctx, n.StakeholderID); err == nil {
				label = sh.Name + ": " + n.NeedExpectation
			}
		}
		p.Needs = append(p.Needs, label)
	}
	return p, nil
}

// SubmitResult reports what happened on final confirm. A draft missing
// its required field is not an error: Submitted is false, Reason says
// why, and the session stays open at its step.
type SubmitResult struct {
	Submitted bool    `json:"submitted"`
	Reason    string  `json:"reason,omitempty"`
	EntityID  string  `json:"entity_id,omitempty"`
	Session   Session `json:"session"`
}

// Submit persists the draft. On success the session closes; on failure
// it stays open with the draft intact so the user can retry. A second
// submit while one is in flight is rejected.
func (st *Store) Submit(ctx context.Context, id, orgID, actorID string) (SubmitResult, error) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	if !ok {
		st.mu.Unlock()
		return SubmitResult{}, ErrNotFound
	}
	if s.submitting {
		st.mu.Unlock()
		return SubmitResult{}, ErrSubmitInFlight
	}
	required := s.Issue.Title
	if s.Kind == "stakeholder" {
		required = s.Stakeholder.Name
	}
	if strings.TrimSpace(required) == "" {
		snap := *s
		st.mu.Unlock()
		return SubmitResult{Submitted: false, Reason: "required field empty", Session: snap}, nil
	}
	s.submitting = true
	snap := *s
	st.mu.Unlock()

	entityID, err := st.persist(ctx, snap, orgID, actorID)

	st.mu.Lock()
	defer st.mu.Unlock()
	cur, ok := st.sessions[id]
	if err != nil {
		if ok {
			cur.submitting = false
			return SubmitResult{Session: *cur}, err
		}
		return SubmitResult{}, err
	}
	delete(st.sessions, id)
	return SubmitResult{Submitted: true, EntityID: entityID, Session: snap}, nil
}

func (st *Store) persist(ctx context.Context, s Session, orgID, actorID string) (string, error) {
	if s.Kind == "stakeholder" {
		var needs []string
		for _, n := range s.Needs {
			needs = append(needs, n.NeedExpectation)
		}
		sh, err := st.engine.CreateStakeholder(ctx, engine.StakeholderOptions{
			OrgID:        orgID,
			Name:         s.Stakeholder.Name,
			Type:         s.Stakeholder.Type,
			Status:       s.Stakeholder.Status,
			DepartmentID: s.Stakeholder.DepartmentID,
			Needs:        needs,
			ActorID:      actorID,
		})
		if err != nil {
			return "", err
		}
		return sh.ID, nil
	}
	opts := engine.IssueOptions{
		OrgID:         orgID,
		Title:         s.Issue.Title,
		Description:   s.Issue.Description,
		Domain:        s.Issue.Domain,
		Category:      s.Issue.Category,
		IssueType:     s.Issue.IssueType,
		Status:        s.Issue.Status,
		DueDate:       s.Issue.DueDate,
		DepartmentID:  s.Issue.DepartmentID,
		OwnerID:       s.Issue.OwnerID,
		RegulationIDs: s.Issue.RegulationIDs,
		ProcessIDs:    s.Issue.ProcessIDs,
		ActorID:       actorID,
	}
	var issueID string
	if s.IssueID != "" {
		i, err := st.engine.UpdateIssue(ctx, s.IssueID, opts)
		if err != nil {
			return "", err
		}
		issueID = i.ID
	} else {
		i, err := st.engine.CreateIssue(ctx, opts)
		if err != nil {
			return "", err
		}
		issueID = i.ID
	}
	for _, n := range s.Needs {
		if n.StakeholderID == "" {
			continue
		}
		if _, err := st.engine.AddStakeholderNeed(ctx, n.StakeholderID, n.NeedExpectation, actorID); err != nil && !errors.Is(err, repo.ErrNotFound) {
			return "", err
		}
	}
	return issueID, nil
}
