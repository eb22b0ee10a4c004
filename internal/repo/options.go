package repo

import (
	"context"
	"database/sql"

	"trustops/internal/domain"
)

// OptionKinds lists the enumerations users may extend.
var OptionKinds = []string{"domain", "category", "issue_type", "need_expectation"}

func ValidOptionKind(kind string) bool {
	for _, k := range OptionKinds {
		if k == kind {
			return true
		}
	}
	return false
}

func (r Repo) InsertOptionValue(ctx context.Context, tx *sql.Tx, o domain.OptionValue) error {
	custom := 0
	if o.Custom {
		custom = 1
	}
	_, err := r.exec(ctx, tx, `INSERT INTO option_values(id,org_id,kind,value,custom,created_at) VALUES (?,?,?,?,?,?)`,
		o.ID, o.OrgID, o.Kind, o.Value, custom, o.CreatedAt)
	return err
}

// GetOptionValue looks up an option by (org, kind, value).
func (r Repo) GetOptionValue(ctx context.Context, orgID, kind, value string) (domain.OptionValue, error) {
	var o domain.OptionValue
	var custom int
	err := r.DB.QueryRowContext(ctx, `SELECT id,org_id,kind,value,custom,created_at FROM option_values WHERE org_id=? AND kind=? AND value=?`, orgID, kind, value).
		Scan(&o.ID, &o.OrgID, &o.Kind, &o.Value, &custom, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return o, ErrNotFound
	}
	o.Custom = custom != 0
	return o, err
}

// ListOptionValues returns options for a kind, seeded values first then
// custom additions, each group in insertion order.
func (r Repo) ListOptionValues(ctx context.Context, orgID, kind string) ([]domain.OptionValue, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,org_id,kind,value,custom,created_at FROM option_values WHERE org_id=? AND kind=? ORDER BY custom ASC, rowid ASC`, orgID, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.OptionValue
	for rows.Next() {
		var o domain.OptionValue
		var custom int
		if err := rows.Scan(&o.ID, &o.OrgID, &o.Kind, &o.Value, &custom, &o.CreatedAt); err != nil {
			return nil, err
		}
		o.Custom = custom != 0
		res = append(res, o)
	}
	return res, nil
}

func (r Repo) DeleteOptionValue(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM option_values WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
