package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"trustops/internal/config"
	"trustops/internal/domain"
	"trustops/internal/repo"
)

// ResolveOrgAndConfig picks the active organization and ensures an org +
// config exist in DB, seeding defaults if missing. It prefers overrides,
// then single-org DB. If the org does not exist, it is created on the fly.
func ResolveOrgAndConfig(ctx context.Context, orgOverride string, r repo.Repo) (string, *config.Config, error) {
	orgID := orgOverride
	if orgID == "" {
		if o, err := r.SingleOrganization(ctx); err == nil {
			orgID = o.ID
		} else if errors.Is(err, repo.ErrNotFound) {
			orgID = uuid.NewString()
		} else {
			return "", nil, err
		}
	}
	seedCfg := config.Default(orgID)

	if _, err := r.GetOrganization(ctx, orgID); err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return "", nil, err
		}
		if err := createOrganization(ctx, r, orgID, seedCfg); err != nil {
			return "", nil, err
		}
	}
	cfg, err := r.GetOrgConfig(ctx, orgID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			if err := r.UpsertOrgConfig(ctx, orgID, seedCfg); err != nil {
				return "", nil, fmt.Errorf("seed org config: %w", err)
			}
			cfg = seedCfg
		} else {
			return "", nil, err
		}
	}
	cfg.Organization.ID = orgID
	return orgID, cfg, nil
}

// createOrganization inserts a minimal org footprint plus its seed config
// and option values.
func createOrganization(ctx context.Context, r repo.Repo, orgID string, seedCfg *config.Config) error {
	if seedCfg == nil {
		seedCfg = config.Default(orgID)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	o := domain.Organization{
		ID:        orgID,
		Name:      seedCfg.Organization.Name,
		Industry:  seedCfg.Organization.Industry,
		Size:      seedCfg.Organization.Size,
		Country:   seedCfg.Organization.Country,
		CreatedAt: now,
	}
	if err := r.InsertOrganization(ctx, tx, o); err != nil {
		return fmt.Errorf("insert organization: %w", err)
	}
	if err := r.UpsertOrgConfigTx(ctx, tx, orgID, seedCfg); err != nil {
		return fmt.Errorf("insert org config: %w", err)
	}
	seed := func(kind string, values []string) error {
		for _, v := range values {
			ov := domain.OptionValue{ID: uuid.NewString(), OrgID: orgID, Kind: kind, Value: v, CreatedAt: now}
			if err := r.InsertOptionValue(ctx, tx, ov); err != nil {
				return fmt.Errorf("seed option %s/%s: %w", kind, v, err)
			}
		}
		return nil
	}
	if err := seed("domain", seedCfg.Options.Domains); err != nil {
		return err
	}
	if err := seed("category", seedCfg.Options.Categories); err != nil {
		return err
	}
	if err := seed("issue_type", seedCfg.Options.IssueTypes); err != nil {
		return err
	}
	if err := seed("need_expectation", seedCfg.Options.NeedExpectations); err != nil {
		return err
	}
	return tx.Commit()
}
