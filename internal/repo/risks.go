package repo

import (
	"context"
	"database/sql"
	"strings"

	"trustops/internal/domain"
)

// Assets

func (r Repo) InsertAsset(ctx context.Context, tx *sql.Tx, a domain.Asset) error {
	_, err := r.exec(ctx, tx, `INSERT INTO assets(id,org_id,name,asset_type,classification,owner_id,location,status,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.OrgID, a.Name, nullable(a.AssetType), nullable(a.Classification), nullableStringPtr(a.OwnerID),
		nullable(a.Location), nullable(a.Status), a.CreatedAt, a.UpdatedAt)
	return err
}

func (r Repo) UpdateAsset(ctx context.Context, tx *sql.Tx, a domain.Asset) error {
	res, err := r.exec(ctx, tx, `UPDATE assets SET name=?, asset_type=?, classification=?, owner_id=?, location=?, status=?, updated_at=? WHERE id=?`,
		a.Name, nullable(a.AssetType), nullable(a.Classification), nullableStringPtr(a.OwnerID),
		nullable(a.Location), nullable(a.Status), a.UpdatedAt, a.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetAsset(ctx context.Context, id string) (domain.Asset, error) {
	var a domain.Asset
	var owner sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,org_id,name,COALESCE(asset_type,''),COALESCE(classification,''),owner_id,COALESCE(location,''),COALESCE(status,''),created_at,updated_at FROM assets WHERE id=?`, id).
		Scan(&a.ID, &a.OrgID, &a.Name, &a.AssetType, &a.Classification, &owner, &a.Location, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if owner.Valid {
		a.OwnerID = &owner.String
	}
	return a, err
}

func (r Repo) ListAssets(ctx context.Context, orgID string) ([]domain.Asset, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,org_id,name,COALESCE(asset_type,''),COALESCE(classification,''),owner_id,COALESCE(location,''),COALESCE(status,''),created_at,updated_at FROM assets WHERE org_id=? ORDER BY name ASC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Asset
	for rows.Next() {
		var a domain.Asset
		var owner sql.NullString
		if err := rows.Scan(&a.ID, &a.OrgID, &a.Name, &a.AssetType, &a.Classification, &owner, &a.Location, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		if owner.Valid {
			a.OwnerID = &owner.String
		}
		res = append(res, a)
	}
	return res, nil
}

func (r Repo) DeleteAsset(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM assets WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Risk categories and control strengths share one row shape.

func (r Repo) InsertRiskCategory(ctx context.Context, tx *sql.Tx, c domain.RiskCategory) error {
	_, err := r.exec(ctx, tx, `INSERT INTO risk_categories(id,org_id,name,description,created_at) VALUES (?,?,?,?,?)`,
		c.ID, c.OrgID, c.Name, nullable(c.Description), c.CreatedAt)
	return err
}

func (r Repo) GetRiskCategory(ctx context.Context, id string) (domain.RiskCategory, error) {
	var c domain.RiskCategory
	err := r.DB.QueryRowContext(ctx, `SELECT id,org_id,name,COALESCE(description,''),created_at FROM risk_categories WHERE id=?`, id).
		Scan(&c.ID, &c.OrgID, &c.Name, &c.Description, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

func (r Repo) ListRiskCategories(ctx context.Context, orgID string) ([]domain.RiskCategory, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,org_id,name,COALESCE(description,''),created_at FROM risk_categories WHERE org_id=? ORDER BY name ASC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.RiskCategory
	for rows.Next() {
		var c domain.RiskCategory
		if err := rows.Scan(&c.ID, &c.OrgID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, nil
}

func (r Repo) UpdateRiskCategory(ctx context.Context, id, name, description string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE risk_categories SET name=?, description=? WHERE id=?`, name, nullable(description), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteRiskCategory(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM risk_categories WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertControlStrength(ctx context.Context, tx *sql.Tx, c domain.ControlStrength) error {
	_, err := r.exec(ctx, tx, `INSERT INTO control_strengths(id,org_id,name,description,created_at) VALUES (?,?,?,?,?)`,
		c.ID, c.OrgID, c.Name, nullable(c.Description), c.CreatedAt)
	return err
}

func (r Repo) GetControlStrength(ctx context.Context, id string) (domain.ControlStrength, error) {
	var c domain.ControlStrength
	err := r.DB.QueryRowContext(ctx, `SELECT id,org_id,name,COALESCE(description,''),created_at FROM control_strengths WHERE id=?`, id).
		Scan(&c.ID, &c.OrgID, &c.Name, &c.Description, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

func (r Repo) ListControlStrengths(ctx context.Context, orgID string) ([]domain.ControlStrength, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,org_id,name,COALESCE(description,''),created_at FROM control_strengths WHERE org_id=? ORDER BY name ASC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ControlStrength
	for rows.Next() {
		var c domain.ControlStrength
		if err := rows.Scan(&c.ID, &c.OrgID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, nil
}

func (r Repo) UpdateControlStrength(ctx context.Context, id, name, description string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE control_strengths SET name=?, description=? WHERE id=?`, name, nullable(description), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteControlStrength(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM control_strengths WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Risks

const riskColumns = `id,org_id,title,COALESCE(description,''),category_id,asset_id,likelihood,impact,score,control_strength_id,status,owner_id,created_at,updated_at`

func scanRisk(scan func(dest ...any) error) (domain.Risk, error) {
	var rk domain.Risk
	var categoryID, assetID, controlID, ownerID sql.NullString
	err := scan(&rk.ID, &rk.OrgID, &rk.Title, &rk.Description, &categoryID, &assetID,
		&rk.Likelihood, &rk.Impact, &rk.Score, &controlID, &rk.Status, &ownerID, &rk.CreatedAt, &rk.UpdatedAt)
	if err != nil {
		return rk, err
	}
	if categoryID.Valid {
		rk.CategoryID = &categoryID.String
	}
	if assetID.Valid {
		rk.AssetID = &assetID.String
	}
	if controlID.Valid {
		rk.ControlStrengthID = &controlID.String
	}
	if ownerID.Valid {
		rk.OwnerID = &ownerID.String
	}
	return rk, nil
}

func (r Repo) InsertRisk(ctx context.Context, tx *sql.Tx, rk domain.Risk) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO risks(id,org_id,title,description,category_id,asset_id,likelihood,impact,score,control_strength_id,status,owner_id,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rk.ID, rk.OrgID, rk.Title, nullable(rk.Description), nullableStringPtr(rk.CategoryID), nullableStringPtr(rk.AssetID),
		rk.Likelihood, rk.Impact, rk.Score, nullableStringPtr(rk.ControlStrengthID), rk.Status, nullableStringPtr(rk.OwnerID),
		rk.CreatedAt, rk.UpdatedAt)
	return err
}

func (r Repo) UpdateRisk(ctx context.Context, tx *sql.Tx, rk domain.Risk) error {
	res, err := tx.ExecContext(ctx, `UPDATE risks SET title=?, description=?, category_id=?, asset_id=?, likelihood=?, impact=?, score=?, control_strength_id=?, status=?, owner_id=?, updated_at=? WHERE id=?`,
		rk.Title, nullable(rk.Description), nullableStringPtr(rk.CategoryID), nullableStringPtr(rk.AssetID),
		rk.Likelihood, rk.Impact, rk.Score, nullableStringPtr(rk.ControlStrengthID), rk.Status, nullableStringPtr(rk.OwnerID),
		rk.UpdatedAt, rk.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetRisk(ctx context.Context, id string) (domain.Risk, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+riskColumns+` FROM risks WHERE id=?`, id)
	rk, err := scanRisk(row.Scan)
	if err == sql.ErrNoRows {
		return rk, ErrNotFound
	}
	return rk, err
}

type RiskFilters struct {
	OrgID      string
	Status     string
	CategoryID string
	MinScore   int
}

func (r Repo) ListRisks(ctx context.Context, f RiskFilters) ([]domain.Risk, error) {
	clauses := []string{"org_id=?"}
	args := []any{f.OrgID}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.CategoryID != "" {
		clauses = append(clauses, "category_id=?")
		args = append(args, f.CategoryID)
	}
	if f.MinScore > 0 {
		clauses = append(clauses, "score>=?")
		args = append(args, f.MinScore)
	}
	query := `SELECT ` + riskColumns + ` FROM risks WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY score DESC, created_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Risk
	for rows.Next() {
		rk, err := scanRisk(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, rk)
	}
	return res, nil
}

func (r Repo) DeleteRisk(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM risks WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountRisksByScore groups risks by raw score for dashboard bucketing.
func (r Repo) CountRisksByScore(ctx context.Context, orgID string) (map[int]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT score, count(*) FROM risks WHERE org_id=? GROUP BY score`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[int]int{}
	for rows.Next() {
		var score, count int
		if err := rows.Scan(&score, &count); err != nil {
			return nil, err
		}
		res[score] = count
	}
	return res, nil
}
