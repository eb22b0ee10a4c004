package repo

import (
	"context"
	"database/sql"

	"trustops/internal/domain"
)

func (r Repo) InsertStakeholder(ctx context.Context, tx *sql.Tx, s domain.Stakeholder) error {
	_, err := r.exec(ctx, tx, `INSERT INTO stakeholders(id,org_id,name,type,status,department_id,created_at) VALUES (?,?,?,?,?,?,?)`,
		s.ID, s.OrgID, s.Name, s.Type, nullable(s.Status), nullableStringPtr(s.DepartmentID), s.CreatedAt)
	return err
}

func (r Repo) GetStakeholder(ctx context.Context, id string) (domain.Stakeholder, error) {
	var s domain.Stakeholder
	var dept sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,org_id,name,type,COALESCE(status,''),department_id,created_at FROM stakeholders WHERE id=?`, id).
		Scan(&s.ID, &s.OrgID, &s.Name, &s.Type, &s.Status, &dept, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if dept.Valid {
		s.DepartmentID = &dept.String
	}
	return s, err
}

func (r Repo) ListStakeholders(ctx context.Context, orgID, stakeholderType string) ([]domain.Stakeholder, error) {
	query := `SELECT id,org_id,name,type,COALESCE(status,''),department_id,created_at FROM stakeholders WHERE org_id=?`
	args := []any{orgID}
	if stakeholderType != "" {
		query += ` AND type=?`
		args = append(args, stakeholderType)
	}
	query += ` ORDER BY name ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Stakeholder
	for rows.Next() {
		var s domain.Stakeholder
		var dept sql.NullString
		if err := rows.Scan(&s.ID, &s.OrgID, &s.Name, &s.Type, &s.Status, &dept, &s.CreatedAt); err != nil {
			return nil, err
		}
		if dept.Valid {
			s.DepartmentID = &dept.String
		}
		res = append(res, s)
	}
	return res, nil
}

func (r Repo) DeleteStakeholder(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM stakeholders WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertStakeholderNeed(ctx context.Context, tx *sql.Tx, n domain.StakeholderNeed) error {
	_, err := r.exec(ctx, tx, `INSERT INTO stakeholder_needs(id,stakeholder_id,need_expectation,created_at) VALUES (?,?,?,?)`,
		n.ID, n.StakeholderID, n.NeedExpectation, n.CreatedAt)
	return err
}

// ListStakeholderNeeds returns needs in insertion order. Duplicate
// (stakeholder, need) pairs are allowed and preserved.
func (r Repo) ListStakeholderNeeds(ctx context.Context, stakeholderID string) ([]domain.StakeholderNeed, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,stakeholder_id,need_expectation,created_at FROM stakeholder_needs WHERE stakeholder_id=? ORDER BY rowid ASC`, stakeholderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.StakeholderNeed
	for rows.Next() {
		var n domain.StakeholderNeed
		if err := rows.Scan(&n.ID, &n.StakeholderID, &n.NeedExpectation, &n.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, nil
}

func (r Repo) DeleteStakeholderNeed(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM stakeholder_needs WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
