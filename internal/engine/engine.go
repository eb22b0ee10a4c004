package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"trustops/internal/config"
	"trustops/internal/domain"
	"trustops/internal/events"
	"trustops/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// InitOrganization creates the organization, stores its default config and
// seeds the option lists from it.
func (e Engine) InitOrganization(ctx context.Context, name, industry, size, country, actorID string) (domain.Organization, error) {
	if strings.TrimSpace(name) == "" {
		return domain.Organization{}, errors.New("name is required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Organization{}, err
	}
	defer tx.Rollback()

	o := domain.Organization{
		ID:        uuid.NewString(),
		Name:      name,
		Industry:  industry,
		Size:      size,
		Country:   country,
		CreatedAt: e.stamp(),
	}
	if err := e.Repo.InsertOrganization(ctx, tx, o); err != nil {
		return domain.Organization{}, fmt.Errorf("insert organization: %w", err)
	}
	cfg := e.Config
	if cfg == nil {
		cfg = config.Default(o.ID)
	}
	cfg.Organization.ID = o.ID
	if cfg.Organization.Name == "" || cfg.Organization.Name == "Default Organization" {
		cfg.Organization.Name = o.Name
	}
	if err := e.Repo.UpsertOrgConfigTx(ctx, tx, o.ID, cfg); err != nil {
		return domain.Organization{}, fmt.Errorf("insert org config: %w", err)
	}
	if err := e.seedOptionValues(ctx, tx, o.ID, cfg); err != nil {
		return domain.Organization{}, err
	}
	if err := e.Events.Append(ctx, tx, "org.init", o.ID, "organization", o.ID, actorID, events.EventPayload{"name": o.Name}); err != nil {
		return domain.Organization{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Organization{}, err
	}
	return o, nil
}

func (e Engine) seedOptionValues(ctx context.Context, tx *sql.Tx, orgID string, cfg *config.Config) error {
	seed := func(kind string, values []string) error {
		for _, v := range values {
			o := domain.OptionValue{
				ID:        uuid.NewString(),
				OrgID:     orgID,
				Kind:      kind,
				Value:     v,
				Custom:    false,
				CreatedAt: e.stamp(),
			}
			if err := e.Repo.InsertOptionValue(ctx, tx, o); err != nil {
				return fmt.Errorf("seed option %s/%s: %w", kind, v, err)
			}
		}
		return nil
	}
	if err := seed("domain", cfg.Options.Domains); err != nil {
		return err
	}
	if err := seed("category", cfg.Options.Categories); err != nil {
		return err
	}
	if err := seed("issue_type", cfg.Options.IssueTypes); err != nil {
		return err
	}
	return seed("need_expectation", cfg.Options.NeedExpectations)
}

// UpdateOrganization overwrites the organization profile.
func (e Engine) UpdateOrganization(ctx context.Context, o domain.Organization, actorID string) (domain.Organization, error) {
	if strings.TrimSpace(o.Name) == "" {
		return domain.Organization{}, errors.New("name is required")
	}
	current, err := e.Repo.GetOrganization(ctx, o.ID)
	if err != nil {
		return domain.Organization{}, err
	}
	o.CreatedAt = current.CreatedAt
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Organization{}, err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `UPDATE organizations SET name=?, industry=?, size=?, country=?, description=? WHERE id=?`,
		o.Name, nullableStr(o.Industry), nullableStr(o.Size), nullableStr(o.Country), nullableStr(o.Description), o.ID); err != nil {
		return domain.Organization{}, err
	}
	if err := e.Events.Append(ctx, tx, "org.updated", o.ID, "organization", o.ID, actorID, events.EventPayload{"name": o.Name}); err != nil {
		return domain.Organization{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Organization{}, err
	}
	return o, nil
}

func nullableStr(v string) any {
	if v == "" {
		return nil
	}
	return v
}

// ImportOrgConfig validates and stores a new YAML config, then seeds any
// option values it introduces that are not persisted yet.
func (e Engine) ImportOrgConfig(ctx context.Context, orgID string, cfg *config.Config, actorID string) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	cfg.Organization.ID = orgID
	if err := cfg.Validate(); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.UpsertOrgConfigTx(ctx, tx, orgID, cfg); err != nil {
		return err
	}
	sync := func(kind string, values []string) error {
		for _, v := range values {
			if _, err := e.Repo.GetOptionValue(ctx, orgID, kind, v); err == nil {
				continue
			} else if !errors.Is(err, repo.ErrNotFound) {
				return err
			}
			o := domain.OptionValue{ID: uuid.NewString(), OrgID: orgID, Kind: kind, Value: v, CreatedAt: e.stamp()}
			if err := e.Repo.InsertOptionValue(ctx, tx, o); err != nil {
				return err
			}
		}
		return nil
	}
	if err := sync("domain", cfg.Options.Domains); err != nil {
		return err
	}
	if err := sync("category", cfg.Options.Categories); err != nil {
		return err
	}
	if err := sync("issue_type", cfg.Options.IssueTypes); err != nil {
		return err
	}
	if err := sync("need_expectation", cfg.Options.NeedExpectations); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "org.config.imported", orgID, "organization", orgID, actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// Departments

func (e Engine) CreateDepartment(ctx context.Context, orgID, name, actorID string) (domain.Department, error) {
	if strings.TrimSpace(name) == "" {
		return domain.Department{}, errors.New("name is required")
	}
	d := domain.Department{ID: uuid.NewString(), OrgID: orgID, Name: name, CreatedAt: e.stamp()}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Department{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertDepartment(ctx, tx, d); err != nil {
		return domain.Department{}, err
	}
	if err := e.Events.Append(ctx, tx, "department.created", orgID, "department", d.ID, actorID, events.EventPayload{"name": d.Name}); err != nil {
		return domain.Department{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Department{}, err
	}
	return d, nil
}

// Users

type UserCreateOptions struct {
	OrgID        string
	DepartmentID string
	Name         string
	Email        string
	Role         string
	ActorID      string
}

func (e Engine) CreateUser(ctx context.Context, opts UserCreateOptions) (domain.User, error) {
	if strings.TrimSpace(opts.Name) == "" {
		return domain.User{}, errors.New("name is required")
	}
	if opts.DepartmentID != "" {
		if _, err := e.Repo.GetDepartment(ctx, opts.DepartmentID); err != nil {
			return domain.User{}, fmt.Errorf("department: %w", err)
		}
	}
	u := domain.User{
		ID:           uuid.NewString(),
		OrgID:        opts.OrgID,
		DepartmentID: optionalString(opts.DepartmentID),
		Name:         opts.Name,
		Email:        opts.Email,
		Role:         opts.Role,
		CreatedAt:    e.stamp(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertUser(ctx, tx, u); err != nil {
		return domain.User{}, err
	}
	if err := e.Events.Append(ctx, tx, "user.created", opts.OrgID, "user", u.ID, opts.ActorID, events.EventPayload{"name": u.Name}); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// Regulations and processes

func (e Engine) CreateRegulation(ctx context.Context, orgID, name, authority, description, actorID string) (domain.Regulation, error) {
	if strings.TrimSpace(name) == "" {
		return domain.Regulation{}, errors.New("name is required")
	}
	reg := domain.Regulation{
		ID:          uuid.NewString(),
		OrgID:       orgID,
		Name:        name,
		Authority:   authority,
		Description: description,
		CreatedAt:   e.stamp(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Regulation{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertRegulation(ctx, tx, reg); err != nil {
		return domain.Regulation{}, err
	}
	if err := e.Events.Append(ctx, tx, "regulation.created", orgID, "regulation", reg.ID, actorID, events.EventPayload{"name": reg.Name}); err != nil {
		return domain.Regulation{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Regulation{}, err
	}
	return reg, nil
}

func (e Engine) CreateProcess(ctx context.Context, orgID, name, ownerID, description, actorID string) (domain.Process, error) {
	if strings.TrimSpace(name) == "" {
		return domain.Process{}, errors.New("name is required")
	}
	if ownerID != "" {
		if _, err := e.Repo.GetUser(ctx, ownerID); err != nil {
			return domain.Process{}, fmt.Errorf("owner: %w", err)
		}
	}
	p := domain.Process{
		ID:          uuid.NewString(),
		OrgID:       orgID,
		Name:        name,
		OwnerID:     optionalString(ownerID),
		Description: description,
		CreatedAt:   e.stamp(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Process{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertProcess(ctx, tx, p); err != nil {
		return domain.Process{}, err
	}
	if err := e.Events.Append(ctx, tx, "process.created", orgID, "process", p.ID, actorID, events.EventPayload{"name": p.Name}); err != nil {
		return domain.Process{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Process{}, err
	}
	return p, nil
}

// Options

// AddOption records a custom option value. Posting a value that already
// exists for the kind returns the stored row without creating a second one.
func (e Engine) AddOption(ctx context.Context, orgID, kind, value, actorID string) (domain.OptionValue, bool, error) {
	if !repo.ValidOptionKind(kind) {
		return domain.OptionValue{}, false, fmt.Errorf("invalid option kind %q", kind)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return domain.OptionValue{}, false, errors.New("value is required")
	}
	existing, err := e.Repo.GetOptionValue(ctx, orgID, kind, value)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return domain.OptionValue{}, false, err
	}
	o := domain.OptionValue{
		ID:        uuid.NewString(),
		OrgID:     orgID,
		Kind:      kind,
		Value:     value,
		Custom:    true,
		CreatedAt: e.stamp(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.OptionValue{}, false, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertOptionValue(ctx, tx, o); err != nil {
		return domain.OptionValue{}, false, err
	}
	if err := e.Events.Append(ctx, tx, "option.added", orgID, "option_value", o.ID, actorID, events.EventPayload{"kind": kind, "value": value}); err != nil {
		return domain.OptionValue{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return domain.OptionValue{}, false, err
	}
	return o, true, nil
}
