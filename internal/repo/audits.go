package repo

import (
	"context"
	"database/sql"
	"strings"

	"trustops/internal/domain"
)

const auditColumns = `id,org_id,title,COALESCE(audit_type,''),COALESCE(scope,''),status,lead_id,started_at,closed_at,created_at,updated_at`

func scanAudit(scan func(dest ...any) error) (domain.Audit, error) {
	var a domain.Audit
	var leadID, startedAt, closedAt sql.NullString
	err := scan(&a.ID, &a.OrgID, &a.Title, &a.AuditType, &a.Scope, &a.Status, &leadID, &startedAt, &closedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return a, err
	}
	if leadID.Valid {
		a.LeadID = &leadID.String
	}
	if startedAt.Valid {
		a.StartedAt = &startedAt.String
	}
	if closedAt.Valid {
		a.ClosedAt = &closedAt.String
	}
	return a, nil
}

func (r Repo) InsertAudit(ctx context.Context, tx *sql.Tx, a domain.Audit) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO audits(id,org_id,title,audit_type,scope,status,lead_id,started_at,closed_at,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.OrgID, a.Title, nullable(a.AuditType), nullable(a.Scope), a.Status,
		nullableStringPtr(a.LeadID), nullableStringPtr(a.StartedAt), nullableStringPtr(a.ClosedAt), a.CreatedAt, a.UpdatedAt)
	return err
}

func (r Repo) UpdateAudit(ctx context.Context, tx *sql.Tx, a domain.Audit) error {
	res, err := tx.ExecContext(ctx, `UPDATE audits SET title=?, audit_type=?, scope=?, status=?, lead_id=?, started_at=?, closed_at=?, updated_at=? WHERE id=?`,
		a.Title, nullable(a.AuditType), nullable(a.Scope), a.Status,
		nullableStringPtr(a.LeadID), nullableStringPtr(a.StartedAt), nullableStringPtr(a.ClosedAt), a.UpdatedAt, a.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetAudit(ctx context.Context, id string) (domain.Audit, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+auditColumns+` FROM audits WHERE id=?`, id)
	a, err := scanAudit(row.Scan)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	return a, err
}

func (r Repo) ListAudits(ctx context.Context, orgID, status string) ([]domain.Audit, error) {
	clauses := []string{"org_id=?"}
	args := []any{orgID}
	if status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, status)
	}
	query := `SELECT ` + auditColumns + ` FROM audits WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY created_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Audit
	for rows.Next() {
		a, err := scanAudit(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, nil
}

func (r Repo) DeleteAudit(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM audits WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) CountAuditsByStatus(ctx context.Context, orgID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, count(*) FROM audits WHERE org_id=? GROUP BY status`, orgID)
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
