package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"trustops/internal/engine"
	"trustops/internal/wizard"
)

type wizardSessionBody struct {
	Body wizard.Session `json:"body"`
}

func sessionOut(s wizard.Session) *wizardSessionBody {
	return &wizardSessionBody{Body: s}
}

func registerWizard(api huma.API, e engine.Engine, store *wizard.Store) {
	huma.Register(api, huma.Operation{
		OperationID:   "open-wizard",
		Method:        http.MethodPost,
		Path:          "/wizard",
		Summary:       "Open a wizard session",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body struct {
			Kind    string `json:"kind" enum:"issue,stakeholder"`
			IssueID string `json:"issue_id,omitempty"`
		} `json:"body"`
	}) (*wizardSessionBody, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		var (
			s   wizard.Session
			err error
		)
		if input.Body.IssueID != "" {
			s, err = store.OpenForIssue(ctx, input.Body.IssueID)
		} else {
			s, err = store.Open(input.Body.Kind)
		}
		if err != nil {
			return nil, handleError(err)
		}
		return sessionOut(s), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-wizard",
		Method:      http.MethodGet,
		Path:        "/wizard/{session_id}",
		Summary:     "Get wizard session",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SessionID string `path:"session_id"`
	}) (*wizardSessionBody, error) {
		s, err := store.Get(input.SessionID)
		if err != nil {
			return nil, handleError(err)
		}
		return sessionOut(s), nil
	})

	// WizardStepResponse carries the session when it survives the
	// transition; Closed reports a cancel, Submit a final-step Next.
	type WizardStepResponse struct {
		Session *wizard.Session `json:"session,omitempty"`
		Closed  bool            `json:"closed,omitempty"`
		Submit  bool            `json:"submit,omitempty"`
	}

	huma.Register(api, huma.Operation{
		OperationID: "wizard-next",
		Method:      http.MethodPost,
		Path:        "/wizard/{session_id}/next",
		Summary:     "Advance wizard one step",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SessionID string `path:"session_id"`
	}) (*struct {
		Body WizardStepResponse `json:"body"`
	}, error) {
		s, err := store.Next(input.SessionID)
		if err == wizard.ErrSubmitStep {
			return &struct {
				Body WizardStepResponse `json:"body"`
			}{Body: WizardStepResponse{Session: &s, Submit: true}}, nil
		}
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body WizardStepResponse `json:"body"`
		}{Body: WizardStepResponse{Session: &s}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "wizard-previous",
		Method:      http.MethodPost,
		Path:        "/wizard/{session_id}/previous",
		Summary:     "Retreat wizard one step, cancel at step 1",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SessionID string `path:"session_id"`
	}) (*struct {
		Body WizardStepResponse `json:"body"`
	}, error) {
		s, closed, err := store.Previous(input.SessionID)
		if err != nil {
			return nil, handleError(err)
		}
		resp := WizardStepResponse{Closed: closed}
		if !closed {
			resp.Session = &s
		}
		return &struct {
			Body WizardStepResponse `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "wizard-update-info",
		Method:      http.MethodPatch,
		Path:        "/wizard/{session_id}/info",
		Summary:     "Update wizard draft fields",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SessionID string            `path:"session_id"`
		Body      wizard.InfoUpdate `json:"body"`
	}) (*wizardSessionBody, error) {
		s, err := store.UpdateInfo(input.SessionID, input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return sessionOut(s), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "wizard-toggle-regulation",
		Method:      http.MethodPost,
		Path:        "/wizard/{session_id}/regulations/{regulation_id}/toggle",
		Summary:     "Toggle a regulation in the draft",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SessionID    string `path:"session_id"`
		RegulationID string `path:"regulation_id"`
	}) (*wizardSessionBody, error) {
		s, err := store.ToggleRegulation(ctx, input.SessionID, input.RegulationID)
		if err != nil {
			return nil, handleError(err)
		}
		return sessionOut(s), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "wizard-stage-processes",
		Method:      http.MethodPut,
		Path:        "/wizard/{session_id}/processes/staged",
		Summary:     "Stage process selection",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SessionID string `path:"session_id"`
		Body      struct {
			ProcessIDs []string `json:"process_ids"`
		} `json:"body"`
	}) (*wizardSessionBody, error) {
		s, err := store.StageProcesses(input.SessionID, input.Body.ProcessIDs)
		if err != nil {
			return nil, handleError(err)
		}
		return sessionOut(s), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "wizard-commit-processes",
		Method:      http.MethodPost,
		Path:        "/wizard/{session_id}/processes/commit",
		Summary:     "Commit staged processes into the draft",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SessionID string `path:"session_id"`
	}) (*wizardSessionBody, error) {
		s, err := store.CommitProcesses(input.SessionID)
		if err != nil {
			return nil, handleError(err)
		}
		return sessionOut(s), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "wizard-discard-processes",
		Method:      http.MethodPost,
		Path:        "/wizard/{session_id}/processes/discard",
		Summary:     "Discard staged processes",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SessionID string `path:"session_id"`
	}) (*wizardSessionBody, error) {
		s, err := store.DiscardProcesses(input.SessionID)
		if err != nil {
			return nil, handleError(err)
		}
		return sessionOut(s), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "wizard-add-need",
		Method:      http.MethodPost,
		Path:        "/wizard/{session_id}/needs",
		Summary:     "Add a stakeholder need to the draft",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SessionID string `path:"session_id"`
		Body      struct {
			StakeholderID   string `json:"stakeholder_id,omitempty"`
			NeedExpectation string `json:"need_expectation"`
		} `json:"body"`
	}) (*wizardSessionBody, error) {
		s, err := store.AddNeed(ctx, input.SessionID, input.Body.StakeholderID, input.Body.NeedExpectation)
		if err != nil {
			return nil, handleError(err)
		}
		return sessionOut(s), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "wizard-remove-need",
		Method:      http.MethodDelete,
		Path:        "/wizard/{session_id}/needs/{index}",
		Summary:     "Remove a draft need by index",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SessionID string `path:"session_id"`
		Index     int    `path:"index"`
	}) (*wizardSessionBody, error) {
		s, err := store.RemoveNeed(input.SessionID, input.Index)
		if err != nil {
			return nil, handleError(err)
		}
		return sessionOut(s), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "wizard-preview",
		Method:      http.MethodGet,
		Path:        "/wizard/{session_id}/preview",
		Summary:     "Preview the draft with resolved names",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SessionID string `path:"session_id"`
	}) (*struct {
		Body wizard.Preview `json:"body"`
	}, error) {
		p, err := store.Preview(ctx, input.SessionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body wizard.Preview `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "wizard-submit",
		Method:      http.MethodPost,
		Path:        "/wizard/{session_id}/submit",
		Summary:     "Submit the wizard draft",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		SessionID string `path:"session_id"`
	}) (*struct {
		Body wizard.SubmitResult `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := store.Submit(ctx, input.SessionID, activeOrg(ctx, e), actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body wizard.SubmitResult `json:"body"`
		}{Body: res}, nil
	})
}
