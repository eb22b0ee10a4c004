package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"trustops/internal/config"
	"trustops/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func (r Repo) exec(ctx context.Context, tx *sql.Tx, query string, args ...any) (sql.Result, error) {
	if tx != nil {
		return tx.ExecContext(ctx, query, args...)
	}
	return r.DB.ExecContext(ctx, query, args...)
}

// Organizations

func (r Repo) InsertOrganization(ctx context.Context, tx *sql.Tx, o domain.Organization) error {
	_, err := r.exec(ctx, tx, `INSERT INTO organizations(id,name,industry,size,country,description,created_at) VALUES (?,?,?,?,?,?,?)`,
		o.ID, o.Name, nullable(o.Industry), nullable(o.Size), nullable(o.Country), nullable(o.Description), o.CreatedAt)
	return err
}

func (r Repo) GetOrganization(ctx context.Context, id string) (domain.Organization, error) {
	var o domain.Organization
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,COALESCE(industry,''),COALESCE(size,''),COALESCE(country,''),COALESCE(description,''),created_at FROM organizations WHERE id=?`, id).
		Scan(&o.ID, &o.Name, &o.Industry, &o.Size, &o.Country, &o.Description, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return o, ErrNotFound
	}
	return o, err
}

func (r Repo) SingleOrganization(ctx context.Context) (domain.Organization, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,COALESCE(industry,''),COALESCE(size,''),COALESCE(country,''),COALESCE(description,''),created_at FROM organizations`)
	if err != nil {
		return domain.Organization{}, err
	}
	defer rows.Close()
	var orgs []domain.Organization
	for rows.Next() {
		var o domain.Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.Industry, &o.Size, &o.Country, &o.Description, &o.CreatedAt); err != nil {
			return domain.Organization{}, err
		}
		orgs = append(orgs, o)
	}
	if len(orgs) == 0 {
		return domain.Organization{}, ErrNotFound
	}
	if len(orgs) > 1 {
		return domain.Organization{}, fmt.Errorf("multiple organizations exist; specify --org")
	}
	return orgs[0], nil
}

func (r Repo) ListOrganizations(ctx context.Context) ([]domain.Organization, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,COALESCE(industry,''),COALESCE(size,''),COALESCE(country,''),COALESCE(description,''),created_at FROM organizations ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Organization
	for rows.Next() {
		var o domain.Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.Industry, &o.Size, &o.Country, &o.Description, &o.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, nil
}

// UpdateOrganization overwrites profile fields; empty strings clear a column.
func (r Repo) UpdateOrganization(ctx context.Context, o domain.Organization) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE organizations SET name=?, industry=?, size=?, country=?, description=? WHERE id=?`,
		o.Name, nullable(o.Industry), nullable(o.Size), nullable(o.Country), nullable(o.Description), o.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Org config

func (r Repo) UpsertOrgConfig(ctx context.Context, orgID string, cfg *config.Config) error {
	return r.upsertOrgConfig(ctx, nil, orgID, cfg)
}

func (r Repo) UpsertOrgConfigTx(ctx context.Context, tx *sql.Tx, orgID string, cfg *config.Config) error {
	return r.upsertOrgConfig(ctx, tx, orgID, cfg)
}

func (r Repo) upsertOrgConfig(ctx context.Context, tx *sql.Tx, orgID string, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config nil")
	}
	cfg.Organization.ID = orgID
	if err := cfg.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = r.exec(ctx, tx, `INSERT INTO org_configs(org_id,config_json,created_at,updated_at) VALUES (?,?,?,?)
ON CONFLICT(org_id) DO UPDATE SET config_json=excluded.config_json, updated_at=excluded.updated_at`, orgID, string(payload), now, now)
	return err
}

func (r Repo) GetOrgConfig(ctx context.Context, orgID string) (*config.Config, error) {
	var payload string
	err := r.DB.QueryRowContext(ctx, `SELECT config_json FROM org_configs WHERE org_id=?`, orgID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var cfg config.Config
	if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
		return nil, err
	}
	if cfg.Organization.ID == "" {
		cfg.Organization.ID = orgID
	}
	return &cfg, cfg.Validate()
}

// Departments

func (r Repo) InsertDepartment(ctx context.Context, tx *sql.Tx, d domain.Department) error {
	_, err := r.exec(ctx, tx, `INSERT INTO departments(id,org_id,name,created_at) VALUES (?,?,?,?)`,
		d.ID, d.OrgID, d.Name, d.CreatedAt)
	return err
}

func (r Repo) GetDepartment(ctx context.Context, id string) (domain.Department, error) {
	var d domain.Department
	err := r.DB.QueryRowContext(ctx, `SELECT id,org_id,name,created_at FROM departments WHERE id=?`, id).
		Scan(&d.ID, &d.OrgID, &d.Name, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	return d, err
}

func (r Repo) ListDepartments(ctx context.Context, orgID string) ([]domain.Department, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,org_id,name,created_at FROM departments WHERE org_id=? ORDER BY name ASC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Department
	for rows.Next() {
		var d domain.Department
		if err := rows.Scan(&d.ID, &d.OrgID, &d.Name, &d.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, nil
}

func (r Repo) UpdateDepartment(ctx context.Context, id, name string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE departments SET name=? WHERE id=?`, name, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteDepartment(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM departments WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Users

func (r Repo) InsertUser(ctx context.Context, tx *sql.Tx, u domain.User) error {
	_, err := r.exec(ctx, tx, `INSERT INTO users(id,org_id,department_id,name,email,role,created_at) VALUES (?,?,?,?,?,?,?)`,
		u.ID, u.OrgID, nullableStringPtr(u.DepartmentID), u.Name, nullable(u.Email), nullable(u.Role), u.CreatedAt)
	return err
}

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	var dept sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,org_id,department_id,name,COALESCE(email,''),COALESCE(role,''),created_at FROM users WHERE id=?`, id).
		Scan(&u.ID, &u.OrgID, &dept, &u.Name, &u.Email, &u.Role, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	if dept.Valid {
		u.DepartmentID = &dept.String
	}
	return u, err
}

func (r Repo) ListUsers(ctx context.Context, orgID, departmentID string) ([]domain.User, error) {
	query := `SELECT id,org_id,department_id,name,COALESCE(email,''),COALESCE(role,''),created_at FROM users WHERE org_id=?`
	args := []any{orgID}
	if departmentID != "" {
		query += ` AND department_id=?`
		args = append(args, departmentID)
	}
	query += ` ORDER BY name ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		var u domain.User
		var dept sql.NullString
		if err := rows.Scan(&u.ID, &u.OrgID, &dept, &u.Name, &u.Email, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		if dept.Valid {
			u.DepartmentID = &dept.String
		}
		res = append(res, u)
	}
	return res, nil
}

func (r Repo) DeleteUser(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM users WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Regulations

func (r Repo) InsertRegulation(ctx context.Context, tx *sql.Tx, reg domain.Regulation) error {
	_, err := r.exec(ctx, tx, `INSERT INTO regulations(id,org_id,name,authority,description,created_at) VALUES (?,?,?,?,?,?)`,
		reg.ID, reg.OrgID, reg.Name, nullable(reg.Authority), nullable(reg.Description), reg.CreatedAt)
	return err
}

func (r Repo) GetRegulation(ctx context.Context, id string) (domain.Regulation, error) {
	var reg domain.Regulation
	err := r.DB.QueryRowContext(ctx, `SELECT id,org_id,name,COALESCE(authority,''),COALESCE(description,''),created_at FROM regulations WHERE id=?`, id).
		Scan(&reg.ID, &reg.OrgID, &reg.Name, &reg.Authority, &reg.Description, &reg.CreatedAt)
	if err == sql.ErrNoRows {
		return reg, ErrNotFound
	}
	return reg, err
}

func (r Repo) ListRegulations(ctx context.Context, orgID string) ([]domain.Regulation, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,org_id,name,COALESCE(authority,''),COALESCE(description,''),created_at FROM regulations WHERE org_id=? ORDER BY name ASC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Regulation
	for rows.Next() {
		var reg domain.Regulation
		if err := rows.Scan(&reg.ID, &reg.OrgID, &reg.Name, &reg.Authority, &reg.Description, &reg.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, reg)
	}
	return res, nil
}

func (r Repo) DeleteRegulation(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM regulations WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Processes

func (r Repo) InsertProcess(ctx context.Context, tx *sql.Tx, p domain.Process) error {
	_, err := r.exec(ctx, tx, `INSERT INTO processes(id,org_id,name,owner_id,description,created_at) VALUES (?,?,?,?,?,?)`,
		p.ID, p.OrgID, p.Name, nullableStringPtr(p.OwnerID), nullable(p.Description), p.CreatedAt)
	return err
}

func (r Repo) GetProcess(ctx context.Context, id string) (domain.Process, error) {
	var p domain.Process
	var owner sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,org_id,name,owner_id,COALESCE(description,''),created_at FROM processes WHERE id=?`, id).
		Scan(&p.ID, &p.OrgID, &p.Name, &owner, &p.Description, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if owner.Valid {
		p.OwnerID = &owner.String
	}
	return p, err
}

func (r Repo) ListProcesses(ctx context.Context, orgID string) ([]domain.Process, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,org_id,name,owner_id,COALESCE(description,''),created_at FROM processes WHERE org_id=? ORDER BY name ASC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Process
	for rows.Next() {
		var p domain.Process
		var owner sql.NullString
		if err := rows.Scan(&p.ID, &p.OrgID, &p.Name, &owner, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		if owner.Valid {
			p.OwnerID = &owner.String
		}
		res = append(res, p)
	}
	return res, nil
}

func (r Repo) DeleteProcess(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM processes WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
