package repo

import (
	"context"
	"database/sql"
	"strings"

	"trustops/internal/domain"
)

const issueColumns = `id,org_id,title,COALESCE(description,''),COALESCE(domain,''),COALESCE(category,''),COALESCE(issue_type,''),status,due_date,department_id,owner_id,created_at,updated_at`

func scanIssue(scan func(dest ...any) error) (domain.Issue, error) {
	var i domain.Issue
	var dueDate, departmentID, ownerID sql.NullString
	err := scan(&i.ID, &i.OrgID, &i.Title, &i.Description, &i.Domain, &i.Category, &i.IssueType,
		&i.Status, &dueDate, &departmentID, &ownerID, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return i, err
	}
	if dueDate.Valid {
		i.DueDate = &dueDate.String
	}
	if departmentID.Valid {
		i.DepartmentID = &departmentID.String
	}
	if ownerID.Valid {
		i.OwnerID = &ownerID.String
	}
	return i, nil
}

func (r Repo) InsertIssue(ctx context.Context, tx *sql.Tx, i domain.Issue) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO issues(id,org_id,title,description,domain,category,issue_type,status,due_date,department_id,owner_id,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		i.ID, i.OrgID, i.Title, nullable(i.Description), nullable(i.Domain), nullable(i.Category), nullable(i.IssueType),
		i.Status, nullableStringPtr(i.DueDate), nullableStringPtr(i.DepartmentID), nullableStringPtr(i.OwnerID), i.CreatedAt, i.UpdatedAt)
	return err
}

func (r Repo) UpdateIssue(ctx context.Context, tx *sql.Tx, i domain.Issue) error {
	res, err := tx.ExecContext(ctx, `UPDATE issues SET title=?, description=?, domain=?, category=?, issue_type=?, status=?, due_date=?, department_id=?, owner_id=?, updated_at=? WHERE id=?`,
		i.Title, nullable(i.Description), nullable(i.Domain), nullable(i.Category), nullable(i.IssueType),
		i.Status, nullableStringPtr(i.DueDate), nullableStringPtr(i.DepartmentID), nullableStringPtr(i.OwnerID), i.UpdatedAt, i.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetIssue(ctx context.Context, id string) (domain.Issue, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE id=?`, id)
	i, err := scanIssue(row.Scan)
	if err == sql.ErrNoRows {
		return i, ErrNotFound
	}
	if err != nil {
		return i, err
	}
	if i.RegulationIDs, err = r.ListIssueRegulations(ctx, i.ID); err != nil {
		return i, err
	}
	if i.ProcessIDs, err = r.ListIssueProcesses(ctx, i.ID); err != nil {
		return i, err
	}
	return i, nil
}

type IssueFilters struct {
	OrgID           string
	Status          string
	Domain          string
	DepartmentID    string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListIssues(ctx context.Context, f IssueFilters) ([]domain.Issue, error) {
	var clauses []string
	var args []any
	if f.OrgID != "" {
		clauses = append(clauses, "org_id=?")
		args = append(args, f.OrgID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.Domain != "" {
		clauses = append(clauses, "domain=?")
		args = append(args, f.Domain)
	}
	if f.DepartmentID != "" {
		clauses = append(clauses, "department_id=?")
		args = append(args, f.DepartmentID)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + issueColumns + ` FROM issues ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Issue
	for rows.Next() {
		i, err := scanIssue(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, i)
	}
	return res, nil
}

func (r Repo) DeleteIssue(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM issues WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetIssueRegulations replaces the regulation links for an issue.
func (r Repo) SetIssueRegulations(ctx context.Context, tx *sql.Tx, issueID string, regulationIDs []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM issue_regulations WHERE issue_id=?`, issueID); err != nil {
		return err
	}
	for _, regID := range regulationIDs {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO issue_regulations(issue_id, regulation_id) VALUES (?,?)`, issueID, regID); err != nil {
			return err
		}
	}
	return nil
}

// SetIssueProcesses replaces the process links for an issue.
func (r Repo) SetIssueProcesses(ctx context.Context, tx *sql.Tx, issueID string, processIDs []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM issue_processes WHERE issue_id=?`, issueID); err != nil {
		return err
	}
	for _, procID := range processIDs {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO issue_processes(issue_id, process_id) VALUES (?,?)`, issueID, procID); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) ListIssueRegulations(ctx context.Context, issueID string) ([]string, error) {
	return r.listLinkIDs(ctx, `SELECT regulation_id FROM issue_regulations WHERE issue_id=? ORDER BY regulation_id`, issueID)
}

func (r Repo) ListIssueProcesses(ctx context.Context, issueID string) ([]string, error) {
	return r.listLinkIDs(ctx, `SELECT process_id FROM issue_processes WHERE issue_id=? ORDER BY process_id`, issueID)
}

func (r Repo) listLinkIDs(ctx context.Context, query, id string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var linked string
		if err := rows.Scan(&linked); err != nil {
			return nil, err
		}
		ids = append(ids, linked)
	}
	return ids, nil
}

func (r Repo) CountIssuesByStatus(ctx context.Context, orgID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, count(*) FROM issues WHERE org_id=? GROUP BY status`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		res[status] = count
	}
	return res, nil
}
