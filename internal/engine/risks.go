package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"trustops/internal/domain"
	"trustops/internal/events"
)

var riskStatuses = map[string]bool{
	"identified": true, "assessed": true, "treated": true, "accepted": true, "closed": true,
}

var auditStatuses = map[string]bool{
	"planned": true, "in_progress": true, "reporting": true, "closed": true,
}

// AssetOptions are parameters for creating or updating an asset.
type AssetOptions struct {
	OrgID          string
	Name           string
	AssetType      string
	Classification string
	OwnerID        string
	Location       string
	Status         string
	ActorID        string
}

func (e Engine) CreateAsset(ctx context.Context, opts AssetOptions) (domain.Asset, error) {
	if strings.TrimSpace(opts.Name) == "" {
		return domain.Asset{}, errors.New("name is required")
	}
	if opts.OwnerID != "" {
		if _, err := e.Repo.GetUser(ctx, opts.OwnerID); err != nil {
			return domain.Asset{}, fmt.Errorf("owner: %w", err)
		}
	}
	now := e.stamp()
	a := domain.Asset{
		ID:             uuid.NewString(),
		OrgID:          opts.OrgID,
		Name:           opts.Name,
		AssetType:      opts.AssetType,
		Classification: opts.Classification,
		OwnerID:        optionalString(opts.OwnerID),
		Location:       opts.Location,
		Status:         opts.Status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Asset{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertAsset(ctx, tx, a); err != nil {
		return domain.Asset{}, err
	}
	if err := e.Events.Append(ctx, tx, "asset.created", a.OrgID, "asset", a.ID, opts.ActorID, events.EventPayload{"name": a.Name}); err != nil {
		return domain.Asset{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Asset{}, err
	}
	return a, nil
}

func (e Engine) UpdateAsset(ctx context.Context, id string, opts AssetOptions) (domain.Asset, error) {
	if strings.TrimSpace(opts.Name) == "" {
		return domain.Asset{}, errors.New("name is required")
	}
	current, err := e.Repo.GetAsset(ctx, id)
	if err != nil {
		return domain.Asset{}, err
	}
	a := current
	a.Name = opts.Name
	a.AssetType = opts.AssetType
	a.Classification = opts.Classification
	a.OwnerID = optionalString(opts.OwnerID)
	a.Location = opts.Location
	a.Status = opts.Status
	a.UpdatedAt = e.stamp()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Asset{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateAsset(ctx, tx, a); err != nil {
		return domain.Asset{}, err
	}
	if err := e.Events.Append(ctx, tx, "asset.updated", a.OrgID, "asset", a.ID, opts.ActorID, events.EventPayload{"name": a.Name}); err != nil {
		return domain.Asset{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Asset{}, err
	}
	return a, nil
}

func (e Engine) DeleteAsset(ctx context.Context, id, actorID string) error {
	a, err := e.Repo.GetAsset(ctx, id)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM assets WHERE id=?`, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "asset.deleted", a.OrgID, "asset", a.ID, actorID, events.EventPayload{"name": a.Name}); err != nil {
		return err
	}
	return tx.Commit()
}

// Reference collections

func (e Engine) CreateRiskCategory(ctx context.Context, orgID, name, description, actorID string) (domain.RiskCategory, error) {
	if strings.TrimSpace(name) == "" {
		return domain.RiskCategory{}, errors.New("name is required")
	}
	c := domain.RiskCategory{ID: uuid.NewString(), OrgID: orgID, Name: name, Description: description, CreatedAt: e.stamp()}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.RiskCategory{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertRiskCategory(ctx, tx, c); err != nil {
		return domain.RiskCategory{}, err
	}
	if err := e.Events.Append(ctx, tx, "risk_category.created", orgID, "risk_category", c.ID, actorID, events.EventPayload{"name": c.Name}); err != nil {
		return domain.RiskCategory{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.RiskCategory{}, err
	}
	return c, nil
}

func (e Engine) CreateControlStrength(ctx context.Context, orgID, name, description, actorID string) (domain.ControlStrength, error) {
	if strings.TrimSpace(name) == "" {
		return domain.ControlStrength{}, errors.New("name is required")
	}
	c := domain.ControlStrength{ID: uuid.NewString(), OrgID: orgID, Name: name, Description: description, CreatedAt: e.stamp()}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ControlStrength{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertControlStrength(ctx, tx, c); err != nil {
		return domain.ControlStrength{}, err
	}
	if err := e.Events.Append(ctx, tx, "control_strength.created", orgID, "control_strength", c.ID, actorID, events.EventPayload{"name": c.Name}); err != nil {
		return domain.ControlStrength{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ControlStrength{}, err
	}
	return c, nil
}

// Risks

// RiskOptions are parameters for creating or updating a risk. Score is
// always computed from likelihood and impact; client values are ignored.
type RiskOptions struct {
	OrgID             string
	Title             string
	Description       string
	CategoryID        string
	AssetID           string
	Likelihood        int
	Impact            int
	ControlStrengthID string
	Status            string
	OwnerID           string
	ActorID           string
}

func (e Engine) validateRisk(ctx context.Context, opts RiskOptions) error {
	if e.Config == nil {
		return errors.New("config not loaded")
	}
	if opts.Likelihood < 1 || opts.Likelihood > e.Config.MaxLikelihood() {
		return fmt.Errorf("invalid likelihood %d, must be 1..%d", opts.Likelihood, e.Config.MaxLikelihood())
	}
	if opts.Impact < 1 || opts.Impact > e.Config.MaxImpact() {
		return fmt.Errorf("invalid impact %d, must be 1..%d", opts.Impact, e.Config.MaxImpact())
	}
	if opts.CategoryID != "" {
		if _, err := e.Repo.GetRiskCategory(ctx, opts.CategoryID); err != nil {
			return fmt.Errorf("risk category: %w", err)
		}
	}
	if opts.AssetID != "" {
		if _, err := e.Repo.GetAsset(ctx, opts.AssetID); err != nil {
			return fmt.Errorf("asset: %w", err)
		}
	}
	if opts.ControlStrengthID != "" {
		if _, err := e.Repo.GetControlStrength(ctx, opts.ControlStrengthID); err != nil {
			return fmt.Errorf("control strength: %w", err)
		}
	}
	if opts.OwnerID != "" {
		if _, err := e.Repo.GetUser(ctx, opts.OwnerID); err != nil {
			return fmt.Errorf("owner: %w", err)
		}
	}
	return nil
}

func (e Engine) CreateRisk(ctx context.Context, opts RiskOptions) (domain.Risk, error) {
	if strings.TrimSpace(opts.Title) == "" {
		return domain.Risk{}, errors.New("title is required")
	}
	if opts.Status == "" {
		opts.Status = "identified"
	}
	if !riskStatuses[opts.Status] {
		return domain.Risk{}, fmt.Errorf("invalid status %q", opts.Status)
	}
	if err := e.validateRisk(ctx, opts); err != nil {
		return domain.Risk{}, err
	}
	now := e.stamp()
	rk := domain.Risk{
		ID:                uuid.NewString(),
		OrgID:             opts.OrgID,
		Title:             opts.Title,
		Description:       opts.Description,
		CategoryID:        optionalString(opts.CategoryID),
		AssetID:           optionalString(opts.AssetID),
		Likelihood:        opts.Likelihood,
		Impact:            opts.Impact,
		Score:             opts.Likelihood * opts.Impact,
		ControlStrengthID: optionalString(opts.ControlStrengthID),
		Status:            opts.Status,
		OwnerID:           optionalString(opts.OwnerID),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Risk{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertRisk(ctx, tx, rk); err != nil {
		return domain.Risk{}, err
	}
	if err := e.Events.Append(ctx, tx, "risk.created", rk.OrgID, "risk", rk.ID, opts.ActorID, events.EventPayload{
		"title": rk.Title,
		"score": rk.Score,
		"band":  e.Config.Band(rk.Score),
	}); err != nil {
		return domain.Risk{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Risk{}, err
	}
	return rk, nil
}

func (e Engine) UpdateRisk(ctx context.Context, id string, opts RiskOptions) (domain.Risk, error) {
	if strings.TrimSpace(opts.Title) == "" {
		return domain.Risk{}, errors.New("title is required")
	}
	current, err := e.Repo.GetRisk(ctx, id)
	if err != nil {
		return domain.Risk{}, err
	}
	if opts.Status == "" {
		opts.Status = current.Status
	}
	if !riskStatuses[opts.Status] {
		return domain.Risk{}, fmt.Errorf("invalid status %q", opts.Status)
	}
	if err := e.validateRisk(ctx, opts); err != nil {
		return domain.Risk{}, err
	}
	rk := current
	rk.Title = opts.Title
	rk.Description = opts.Description
	rk.CategoryID = optionalString(opts.CategoryID)
	rk.AssetID = optionalString(opts.AssetID)
	rk.Likelihood = opts.Likelihood
	rk.Impact = opts.Impact
	rk.Score = opts.Likelihood * opts.Impact
	rk.ControlStrengthID = optionalString(opts.ControlStrengthID)
	rk.Status = opts.Status
	rk.OwnerID = optionalString(opts.OwnerID)
	rk.UpdatedAt = e.stamp()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Risk{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateRisk(ctx, tx, rk); err != nil {
		return domain.Risk{}, err
	}
	if err := e.Events.Append(ctx, tx, "risk.updated", rk.OrgID, "risk", rk.ID, opts.ActorID, events.EventPayload{
		"title": rk.Title,
		"score": rk.Score,
		"band":  e.Config.Band(rk.Score),
	}); err != nil {
		return domain.Risk{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Risk{}, err
	}
	return rk, nil
}

func (e Engine) DeleteRisk(ctx context.Context, id, actorID string) error {
	rk, err := e.Repo.GetRisk(ctx, id)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM risks WHERE id=?`, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "risk.deleted", rk.OrgID, "risk", rk.ID, actorID, events.EventPayload{"title": rk.Title}); err != nil {
		return err
	}
	return tx.Commit()
}

// Audits

// AuditOptions are parameters for creating or updating an audit.
type AuditOptions struct {
	OrgID     string
	Title     string
	AuditType string
	Scope     string
	Status    string
	LeadID    string
	ActorID   string
}

func (e Engine) CreateAudit(ctx context.Context, opts AuditOptions) (domain.Audit, error) {
	if strings.TrimSpace(opts.Title) == "" {
		return domain.Audit{}, errors.New("title is required")
	}
	if opts.Status == "" {
		opts.Status = "planned"
	}
	if !auditStatuses[opts.Status] {
		return domain.Audit{}, fmt.Errorf("invalid status %q", opts.Status)
	}
	if opts.LeadID != "" {
		if _, err := e.Repo.GetUser(ctx, opts.LeadID); err != nil {
			return domain.Audit{}, fmt.Errorf("lead: %w", err)
		}
	}
	now := e.stamp()
	a := domain.Audit{
		ID:        uuid.NewString(),
		OrgID:     opts.OrgID,
		Title:     opts.Title,
		AuditType: opts.AuditType,
		Scope:     opts.Scope,
		Status:    opts.Status,
		LeadID:    optionalString(opts.LeadID),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if a.Status != "planned" {
		a.StartedAt = &now
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Audit{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertAudit(ctx, tx, a); err != nil {
		return domain.Audit{}, err
	}
	if err := e.Events.Append(ctx, tx, "audit.created", a.OrgID, "audit", a.ID, opts.ActorID, events.EventPayload{
		"title":  a.Title,
		"status": a.Status,
	}); err != nil {
		return domain.Audit{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Audit{}, err
	}
	return a, nil
}

func (e Engine) UpdateAudit(ctx context.Context, id string, opts AuditOptions) (domain.Audit, error) {
	if strings.TrimSpace(opts.Title) == "" {
		return domain.Audit{}, errors.New("title is required")
	}
	current, err := e.Repo.GetAudit(ctx, id)
	if err != nil {
		return domain.Audit{}, err
	}
	if opts.Status == "" {
		opts.Status = current.Status
	}
	if !auditStatuses[opts.Status] {
		return domain.Audit{}, fmt.Errorf("invalid status %q", opts.Status)
	}
	if opts.LeadID != "" {
		if _, err := e.Repo.GetUser(ctx, opts.LeadID); err != nil {
			return domain.Audit{}, fmt.Errorf("lead: %w", err)
		}
	}
	now := e.stamp()
	a := current
	a.Title = opts.Title
	a.AuditType = opts.AuditType
	a.Scope = opts.Scope
	a.LeadID = optionalString(opts.LeadID)
	a.UpdatedAt = now
	if opts.Status != current.Status {
		a.Status = opts.Status
		if current.Status == "planned" && opts.Status != "planned" && a.StartedAt == nil {
			a.StartedAt = &now
		}
		if opts.Status == "closed" {
			a.ClosedAt = &now
		} else {
			a.ClosedAt = nil
		}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Audit{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateAudit(ctx, tx, a); err != nil {
		return domain.Audit{}, err
	}
	if err := e.Events.Append(ctx, tx, "audit.updated", a.OrgID, "audit", a.ID, opts.ActorID, events.EventPayload{
		"title":  a.Title,
		"status": a.Status,
	}); err != nil {
		return domain.Audit{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Audit{}, err
	}
	return a, nil
}

func (e Engine) DeleteAudit(ctx context.Context, id, actorID string) error {
	a, err := e.Repo.GetAudit(ctx, id)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM audits WHERE id=?`, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "audit.deleted", a.OrgID, "audit", a.ID, actorID, events.EventPayload{"title": a.Title}); err != nil {
		return err
	}
	return tx.Commit()
}
