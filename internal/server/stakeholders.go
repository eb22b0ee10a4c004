package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"trustops/internal/domain"
	"trustops/internal/engine"
)

func registerStakeholders(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-stakeholders",
		Method:      http.MethodGet,
		Path:        "/stakeholders",
		Summary:     "List stakeholders",
	}, func(ctx context.Context, input *struct {
		Type string `query:"type"`
	}) (*struct {
		Body []domain.Stakeholder `json:"body"`
	}, error) {
		items, err := e.Repo.ListStakeholders(ctx, activeOrg(ctx, e), input.Type)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Stakeholder `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-stakeholder",
		Method:        http.MethodPost,
		Path:          "/stakeholders",
		Summary:       "Create stakeholder",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body struct {
			Name         string   `json:"name"`
			Type         string   `json:"type,omitempty" enum:"Internal,External,Third Party,"`
			Status       string   `json:"status,omitempty"`
			DepartmentID string   `json:"department_id,omitempty"`
			Needs        []string `json:"needs,omitempty"`
		} `json:"body"`
	}) (*struct {
		Body domain.Stakeholder `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.CreateStakeholder(ctx, engine.StakeholderOptions{
			OrgID:        activeOrg(ctx, e),
			Name:         input.Body.Name,
			Type:         input.Body.Type,
			Status:       input.Body.Status,
			DepartmentID: input.Body.DepartmentID,
			Needs:        input.Body.Needs,
			ActorID:      actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Stakeholder `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-stakeholder",
		Method:      http.MethodGet,
		Path:        "/stakeholders/{stakeholder_id}",
		Summary:     "Get stakeholder",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		StakeholderID string `path:"stakeholder_id"`
	}) (*struct {
		Body domain.Stakeholder `json:"body"`
	}, error) {
		s, err := e.Repo.GetStakeholder(ctx, input.StakeholderID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Stakeholder `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-stakeholder",
		Method:      http.MethodDelete,
		Path:        "/stakeholders/{stakeholder_id}",
		Summary:     "Delete stakeholder",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		StakeholderID string `path:"stakeholder_id"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteStakeholder(ctx, input.StakeholderID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-stakeholder-needs",
		Method:      http.MethodGet,
		Path:        "/stakeholders/{stakeholder_id}/needs",
		Summary:     "List stakeholder needs",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		StakeholderID string `path:"stakeholder_id"`
	}) (*struct {
		Body []domain.StakeholderNeed `json:"body"`
	}, error) {
		if _, err := e.Repo.GetStakeholder(ctx, input.StakeholderID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListStakeholderNeeds(ctx, input.StakeholderID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.StakeholderNeed `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-stakeholder-need",
		Method:        http.MethodPost,
		Path:          "/stakeholders/{stakeholder_id}/needs",
		Summary:       "Add stakeholder need",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		StakeholderID string `path:"stakeholder_id"`
		Body          struct {
			NeedExpectation string `json:"need_expectation"`
		} `json:"body"`
	}) (*struct {
		Body domain.StakeholderNeed `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		n, err := e.AddStakeholderNeed(ctx, input.StakeholderID, input.Body.NeedExpectation, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.StakeholderNeed `json:"body"`
		}{Body: n}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-stakeholder-need",
		Method:      http.MethodDelete,
		Path:        "/stakeholders/{stakeholder_id}/needs/{need_id}",
		Summary:     "Remove stakeholder need",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		StakeholderID string `path:"stakeholder_id"`
		NeedID        string `path:"need_id"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.RemoveStakeholderNeed(ctx, input.StakeholderID, input.NeedID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
