package wizard

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"trustops/internal/engine"
)

var (
	// ErrNotFound means the wizard session does not exist or was closed.
	ErrNotFound = errors.New("wizard session not found")
	// ErrSubmitStep is returned by Next at the final step; the caller
	// should submit instead of advancing.
	ErrSubmitStep = errors.New("final step reached, submit instead")
	// ErrSubmitInFlight guards against double submission.
	ErrSubmitInFlight = errors.New("submit already in flight")
)

const (
	firstStep = 1
	lastStep  = 5
)

// IssueDraft is the unsaved issue being assembled across the steps.
type IssueDraft struct {
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Domain        string   `json:"domain"`
	Category      string   `json:"category"`
	IssueType     string   `json:"issue_type"`
	Status        string   `json:"status"`
	DueDate       string   `json:"due_date"`
	DepartmentID  string   `json:"department_id"`
	OwnerID       string   `json:"owner_id"`
	RegulationIDs []string `json:"regulation_ids"`
	ProcessIDs    []string `json:"process_ids"`
}

// StakeholderDraft is the unsaved stakeholder being assembled.
type StakeholderDraft struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Status       string `json:"status"`
	DepartmentID string `json:"department_id"`
}

// Need pairs a stakeholder with a need/expectation. Duplicate pairs are
// allowed and kept in insertion order.
type Need struct {
	StakeholderID   string `json:"stakeholder_id"`
	NeedExpectation string `json:"need_expectation"`
}

// Session is one in-memory wizard run. Drafts are lost when the session
// is discarded or the process restarts.
type Session struct {
	ID          string           `json:"id"`
	Kind        string           `json:"kind" enum:"issue,stakeholder"`
	Step        int              `json:"step" minimum:"1" maximum:"5"`
	IssueID     string           `json:"issue_id,omitempty"`
	Issue       IssueDraft       `json:"issue"`
	Stakeholder StakeholderDraft `json:"stakeholder"`
	Needs       []Need           `json:"needs"`
	Staged      []string         `json:"staged_processes,omitempty"`

	submitting bool
}

// Store holds live wizard sessions behind a mutex and submits finished
// drafts through the engine.
type Store struct {
	mu       sync.Mutex
	engine   engine.Engine
	sessions map[string]*Session
}

func NewStore(e engine.Engine) *Store {
	return &Store{engine: e, sessions: map[string]*Session{}}
}

// Open starts a new session at step 1 with an empty draft.
func (st *Store) Open(kind string) (Session, error) {
	if kind != "issue" && kind != "stakeholder" {
		return Session{}, errors.New("invalid wizard kind")
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	s := &Session{
		ID:   uuid.NewString(),
		Kind: kind,
		Step: firstStep,
	}
	st.sessions[s.ID] = s
	return *s, nil
}

// OpenForIssue starts an edit session with the stored issue loaded into
// the draft.
func (st *Store) OpenForIssue(ctx context.Context, issueID string) (Session, error) {
	i, err := st.engine.Repo.GetIssue(ctx, issueID)
	if err != nil {
		return Session{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	s := &Session{
		ID:      uuid.NewString(),
		Kind:    "issue",
		Step:    firstStep,
		IssueID: i.ID,
		Issue: IssueDraft{
			Title:         i.Title,
			Description:   i.Description,
			Domain:        i.Domain,
			Category:      i.Category,
			IssueType:     i.IssueType,
			Status:        i.Status,
			RegulationIDs: append([]string(nil), i.RegulationIDs...),
			ProcessIDs:    append([]string(nil), i.ProcessIDs...),
		},
	}
	if i.DueDate != nil {
		s.Issue.DueDate = *i.DueDate
	}
	if i.DepartmentID != nil {
		s.Issue.DepartmentID = *i.DepartmentID
	}
	if i.OwnerID != nil {
		s.Issue.OwnerID = *i.OwnerID
	}
	st.sessions[s.ID] = s
	return *s, nil
}

func (st *Store) Get(id string) (Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return *s, nil
}

// Next advances one step. At the final step it refuses and signals that
// the caller should submit.
func (st *Store) Next(id string) (Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	if s.Step == lastStep {
		return *s, ErrSubmitStep
	}
	s.Step++
	return *s, nil
}

// Previous retreats one step. At step 1 the session is discarded along
// with its draft; the second return reports the close.
func (st *Store) Previous(id string) (Session, bool, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if !ok {
		return Session{}, false, ErrNotFound
	}
	if s.Step == firstStep {
		delete(st.sessions, id)
		return Session{}, true, nil
	}
	s.Step--
	return *s, false, nil
}

// InfoUpdate carries step 1 field changes. Nil fields are untouched.
type InfoUpdate struct {
	Title        *string `json:"title,omitempty"`
	Description  *string `json:"description,omitempty"`
	Domain       *string `json:"domain,omitempty"`
	Category     *string `json:"category,omitempty"`
	IssueType    *string `json:"issue_type,omitempty"`
	Status       *string `json:"status,omitempty"`
	DueDate      *string `json:"due_date,omitempty"`
	DepartmentID *string `json:"department_id,omitempty"`
	OwnerID      *string `json:"owner_id,omitempty"`
	Name         *string `json:"name,omitempty"`
	Type         *string `json:"type,omitempty"`
}

// UpdateInfo applies scalar field changes. Changing the department
// clears the chosen owner, since the owner picker filters by department.
func (st *Store) UpdateInfo(id string, u InfoUpdate) (Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	switch s.Kind {
	case "stakeholder":
		set(&s.Stakeholder.Name, u.Name)
		set(&s.Stakeholder.Type, u.Type)
		set(&s.Stakeholder.Status, u.Status)
		if u.DepartmentID != nil {
			s.Stakeholder.DepartmentID = *u.DepartmentID
		}
	default:
		set(&s.Issue.Title, u.Title)
		set(&s.Issue.Description, u.Description)
		set(&s.Issue.Domain, u.Domain)
		set(&s.Issue.Category, u.Category)
		set(&s.Issue.IssueType, u.IssueType)
		set(&s.Issue.Status, u.Status)
		set(&s.Issue.DueDate, u.DueDate)
		if u.DepartmentID != nil && *u.DepartmentID != s.Issue.DepartmentID {
			s.Issue.DepartmentID = *u.DepartmentID
			s.Issue.OwnerID = ""
		}
		set(&s.Issue.OwnerID, u.OwnerID)
	}
	return *s, nil
}

// ToggleRegulation adds the regulation to the draft set, or removes it
// if already present.
func (st *Store) ToggleRegulation(ctx context.Context, id, regulationID string) (Session, error) {
	if _, err := st.engine.Repo.GetRegulation(ctx, regulationID); err != nil {
		return Session{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	for i, rid := range s.Issue.RegulationIDs {
		if rid == regulationID {
			s.Issue.RegulationIDs = append(s.Issue.RegulationIDs[:i], s.Issue.RegulationIDs[i+1:]...)
			return *s, nil
		}
	}
	s.Issue.RegulationIDs = append(s.Issue.RegulationIDs, regulationID)
	return *s, nil
}

// StageProcesses replaces the temporary picker selection. The draft's
// process links are untouched until CommitProcesses.
func (st *Store) StageProcesses(id string, processIDs []string) (Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	s.Staged = append([]string(nil), processIDs...)
	return *s, nil
}

// CommitProcesses copies the staged selection into the draft and clears
// the staging area.
func (st *Store) CommitProcesses(id string) (Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	s.Issue.ProcessIDs = append([]string(nil), s.Staged...)
	s.Staged = nil
	return *s, nil
}

// DiscardProcesses drops the staged selection, leaving the draft as it
// was.
func (st *Store) DiscardProcesses(id string) (Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	s.Staged = nil
	return *s, nil
}

// AddNeed appends a (stakeholder, need) pair. Duplicates are allowed.
func (st *Store) AddNeed(ctx context.Context, id, stakeholderID, need string) (Session, error) {
	if strings.TrimSpace(need) == "" {
		return Session{}, errors.New("need_expectation is required")
	}
	if stakeholderID != "" {
		if _, err := st.engine.Repo.GetStakeholder(ctx, stakeholderID); err != nil {
			return Session{}, err
		}
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	s.Needs = append(s.Needs, Need{StakeholderID: stakeholderID, NeedExpectation: need})
	return *s, nil
}

// RemoveNeed drops the need at the given index; other entries keep
// their order.
func (st *Store) RemoveNeed(id string, index int) (Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	if index < 0 || index >= len(s.Needs) {
		return Session{}, errors.New("invalid need index")
	}
	s.Needs = append(s.Needs[:index], s.Needs[index+1:]...)
	return *s, nil
}
