package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"trustops/internal/domain"
	"trustops/internal/engine"
	"trustops/internal/repo"
)

// AssetRequest is the create/update payload for an asset.
type AssetRequest struct {
	Name           string `json:"name"`
	AssetType      string `json:"asset_type,omitempty"`
	Classification string `json:"classification,omitempty"`
	OwnerID        string `json:"owner_id,omitempty"`
	Location       string `json:"location,omitempty"`
	Status         string `json:"status,omitempty"`
}

func registerAssets(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-assets",
		Method:      http.MethodGet,
		Path:        "/assets",
		Summary:     "List assets",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Asset `json:"body"`
	}, error) {
		items, err := e.Repo.ListAssets(ctx, activeOrg(ctx, e))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Asset `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-asset",
		Method:        http.MethodPost,
		Path:          "/assets",
		Summary:       "Create asset",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body AssetRequest `json:"body"`
	}) (*struct {
		Body domain.Asset `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.CreateAsset(ctx, engine.AssetOptions{
			OrgID:          activeOrg(ctx, e),
			Name:           input.Body.Name,
			AssetType:      input.Body.AssetType,
			Classification: input.Body.Classification,
			OwnerID:        input.Body.OwnerID,
			Location:       input.Body.Location,
			Status:         input.Body.Status,
			ActorID:        actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Asset `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-asset",
		Method:      http.MethodPut,
		Path:        "/assets/{asset_id}",
		Summary:     "Update asset",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AssetID string       `path:"asset_id"`
		Body    AssetRequest `json:"body"`
	}) (*struct {
		Body domain.Asset `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.UpdateAsset(ctx, input.AssetID, engine.AssetOptions{
			OrgID:          activeOrg(ctx, e),
			Name:           input.Body.Name,
			AssetType:      input.Body.AssetType,
			Classification: input.Body.Classification,
			OwnerID:        input.Body.OwnerID,
			Location:       input.Body.Location,
			Status:         input.Body.Status,
			ActorID:        actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Asset `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-asset",
		Method:      http.MethodDelete,
		Path:        "/assets/{asset_id}",
		Summary:     "Delete asset",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AssetID string `path:"asset_id"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteAsset(ctx, input.AssetID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	registerNamedCollection(api, e, namedCollection{
		plural:   "risk-categories",
		singular: "risk-category",
		list: func(ctx context.Context, orgID string) (any, error) {
			return e.Repo.ListRiskCategories(ctx, orgID)
		},
		create: func(ctx context.Context, orgID, name, description, actorID string) (any, error) {
			return e.CreateRiskCategory(ctx, orgID, name, description, actorID)
		},
		update: e.Repo.UpdateRiskCategory,
		delete: e.Repo.DeleteRiskCategory,
	})

	registerNamedCollection(api, e, namedCollection{
		plural:   "control-strengths",
		singular: "control-strength",
		list: func(ctx context.Context, orgID string) (any, error) {
			return e.Repo.ListControlStrengths(ctx, orgID)
		},
		create: func(ctx context.Context, orgID, name, description, actorID string) (any, error) {
			return e.CreateControlStrength(ctx, orgID, name, description, actorID)
		},
		update: e.Repo.UpdateControlStrength,
		delete: e.Repo.DeleteControlStrength,
	})
}

// namedCollection is the shared CRUD shape for id+name+description
// reference collections.
type namedCollection struct {
	plural   string
	singular string
	list     func(ctx context.Context, orgID string) (any, error)
	create   func(ctx context.Context, orgID, name, description, actorID string) (any, error)
	update   func(ctx context.Context, id, name, description string) error
	delete   func(ctx context.Context, id string) error
}

func registerNamedCollection(api huma.API, e engine.Engine, c namedCollection) {
	huma.Register(api, huma.Operation{
		OperationID: "list-" + c.plural,
		Method:      http.MethodGet,
		Path:        "/" + c.plural,
		Summary:     "List " + c.plural,
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body any `json:"body"`
	}, error) {
		items, err := c.list(ctx, activeOrg(ctx, e))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body any `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-" + c.singular,
		Method:        http.MethodPost,
		Path:          "/" + c.plural,
		Summary:       "Create " + c.singular,
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body struct {
			Name        string `json:"name"`
			Description string `json:"description,omitempty"`
		} `json:"body"`
	}) (*struct {
		Body any `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		item, err := c.create(ctx, activeOrg(ctx, e), input.Body.Name, input.Body.Description, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body any `json:"body"`
		}{Body: item}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-" + c.singular,
		Method:      http.MethodPut,
		Path:        "/" + c.plural + "/{id}",
		Summary:     "Update " + c.singular,
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body struct {
			Name        string `json:"name"`
			Description string `json:"description,omitempty"`
		} `json:"body"`
	}) (*struct{}, error) {
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		if err := c.update(ctx, input.ID, input.Body.Name, input.Body.Description); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-" + c.singular,
		Method:      http.MethodDelete,
		Path:        "/" + c.plural + "/{id}",
		Summary:     "Delete " + c.singular,
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := c.delete(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

// RiskRequest is the create/update payload for a risk. Score is server
// computed.
type RiskRequest struct {
	Title             string `json:"title"`
	Description       string `json:"description,omitempty"`
	CategoryID        string `json:"category_id,omitempty"`
	AssetID           string `json:"asset_id,omitempty"`
	Likelihood        int    `json:"likelihood" minimum:"1"`
	Impact            int    `json:"impact" minimum:"1"`
	ControlStrengthID string `json:"control_strength_id,omitempty"`
	Status            string `json:"status,omitempty" enum:"identified,assessed,treated,accepted,closed,"`
	OwnerID           string `json:"owner_id,omitempty"`
}

func riskOptions(orgID, actorID string, body RiskRequest) engine.RiskOptions {
	return engine.RiskOptions{
		OrgID:             orgID,
		Title:             body.Title,
		Description:       body.Description,
		CategoryID:        body.CategoryID,
		AssetID:           body.AssetID,
		Likelihood:        body.Likelihood,
		Impact:            body.Impact,
		ControlStrengthID: body.ControlStrengthID,
		Status:            body.Status,
		OwnerID:           body.OwnerID,
		ActorID:           actorID,
	}
}

func registerRisks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-risks",
		Method:      http.MethodGet,
		Path:        "/risks",
		Summary:     "List risks",
	}, func(ctx context.Context, input *struct {
		Status     string `query:"status"`
		CategoryID string `query:"category_id"`
		MinScore   int    `query:"min_score"`
	}) (*struct {
		Body []domain.Risk `json:"body"`
	}, error) {
		items, err := e.Repo.ListRisks(ctx, repo.RiskFilters{
			OrgID:      activeOrg(ctx, e),
			Status:     input.Status,
			CategoryID: input.CategoryID,
			MinScore:   input.MinScore,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Risk `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-risk",
		Method:        http.MethodPost,
		Path:          "/risks",
		Summary:       "Create risk",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body RiskRequest `json:"body"`
	}) (*struct {
		Body domain.Risk `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rk, err := e.CreateRisk(ctx, riskOptions(activeOrg(ctx, e), actorID, input.Body))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Risk `json:"body"`
		}{Body: rk}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-risk",
		Method:      http.MethodGet,
		Path:        "/risks/{risk_id}",
		Summary:     "Get risk",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RiskID string `path:"risk_id"`
	}) (*struct {
		Body domain.Risk `json:"body"`
	}, error) {
		rk, err := e.Repo.GetRisk(ctx, input.RiskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Risk `json:"body"`
		}{Body: rk}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-risk",
		Method:      http.MethodPut,
		Path:        "/risks/{risk_id}",
		Summary:     "Update risk",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RiskID string      `path:"risk_id"`
		Body   RiskRequest `json:"body"`
	}) (*struct {
		Body domain.Risk `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rk, err := e.UpdateRisk(ctx, input.RiskID, riskOptions(activeOrg(ctx, e), actorID, input.Body))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Risk `json:"body"`
		}{Body: rk}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-risk",
		Method:      http.MethodDelete,
		Path:        "/risks/{risk_id}",
		Summary:     "Delete risk",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RiskID string `path:"risk_id"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteRisk(ctx, input.RiskID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

// AuditRequest is the create/update payload for an audit.
type AuditRequest struct {
	Title     string `json:"title"`
	AuditType string `json:"audit_type,omitempty"`
	Scope     string `json:"scope,omitempty"`
	Status    string `json:"status,omitempty" enum:"planned,in_progress,reporting,closed,"`
	LeadID    string `json:"lead_id,omitempty"`
}

func registerAudits(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-audits",
		Method:      http.MethodGet,
		Path:        "/audits",
		Summary:     "List audits",
	}, func(ctx context.Context, input *struct {
		Status string `query:"status"`
	}) (*struct {
		Body []domain.Audit `json:"body"`
	}, error) {
		items, err := e.Repo.ListAudits(ctx, activeOrg(ctx, e), input.Status)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Audit `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-audit",
		Method:        http.MethodPost,
		Path:          "/audits",
		Summary:       "Create audit",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body AuditRequest `json:"body"`
	}) (*struct {
		Body domain.Audit `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.CreateAudit(ctx, engine.AuditOptions{
			OrgID:     activeOrg(ctx, e),
			Title:     input.Body.Title,
			AuditType: input.Body.AuditType,
			Scope:     input.Body.Scope,
			Status:    input.Body.Status,
			LeadID:    input.Body.LeadID,
			ActorID:   actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Audit `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-audit",
		Method:      http.MethodPut,
		Path:        "/audits/{audit_id}",
		Summary:     "Update audit",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AuditID string       `path:"audit_id"`
		Body    AuditRequest `json:"body"`
	}) (*struct {
		Body domain.Audit `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.UpdateAudit(ctx, input.AuditID, engine.AuditOptions{
			OrgID:     activeOrg(ctx, e),
			Title:     input.Body.Title,
			AuditType: input.Body.AuditType,
			Scope:     input.Body.Scope,
			Status:    input.Body.Status,
			LeadID:    input.Body.LeadID,
			ActorID:   actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Audit `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-audit",
		Method:      http.MethodDelete,
		Path:        "/audits/{audit_id}",
		Summary:     "Delete audit",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AuditID string `path:"audit_id"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteAudit(ctx, input.AuditID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
