package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"trustops/internal/domain"
	"trustops/internal/engine"
	"trustops/internal/export"
	"trustops/internal/repo"
)

// IssueRequest is the create/update payload for an issue.
type IssueRequest struct {
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	Domain        string   `json:"domain,omitempty"`
	Category      string   `json:"category,omitempty"`
	IssueType     string   `json:"issue_type,omitempty"`
	Status        string   `json:"status,omitempty" enum:"open,in_review,mitigated,closed,"`
	DueDate       string   `json:"due_date,omitempty"`
	DepartmentID  string   `json:"department_id,omitempty"`
	OwnerID       string   `json:"owner_id,omitempty"`
	RegulationIDs []string `json:"regulation_ids,omitempty"`
	ProcessIDs    []string `json:"process_ids,omitempty"`
}

// IssueListResponse is a cursor-paginated page of issues.
type IssueListResponse struct {
	Items      []domain.Issue `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

func issueOptions(orgID, actorID string, body IssueRequest) engine.IssueOptions {
	return engine.IssueOptions{
		OrgID:         orgID,
		Title:         body.Title,
		Description:   body.Description,
		Domain:        body.Domain,
		Category:      body.Category,
		IssueType:     body.IssueType,
		Status:        body.Status,
		DueDate:       body.DueDate,
		DepartmentID:  body.DepartmentID,
		OwnerID:       body.OwnerID,
		RegulationIDs: body.RegulationIDs,
		ProcessIDs:    body.ProcessIDs,
		ActorID:       actorID,
	}
}

func registerIssues(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-issues",
		Method:      http.MethodGet,
		Path:        "/issues",
		Summary:     "List issues",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Status       string `query:"status"`
		Domain       string `query:"domain"`
		DepartmentID string `query:"department_id"`
		Limit        int    `query:"limit"`
		Cursor       string `query:"cursor"`
	}) (*struct {
		Body IssueListResponse `json:"body"`
	}, error) {
		cursorCreated, cursorID, err := parseCompositeCursor(input.Cursor)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
		}
		limit := normalizeLimit(input.Limit)
		items, err := e.Repo.ListIssues(ctx, repo.IssueFilters{
			OrgID:           activeOrg(ctx, e),
			Status:          input.Status,
			Domain:          input.Domain,
			DepartmentID:    input.DepartmentID,
			Limit:           limit + 1,
			CursorCreatedAt: cursorCreated,
			CursorID:        cursorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := IssueListResponse{}
		if len(items) > limit {
			items = items[:limit]
			last := items[limit-1]
			resp.NextCursor = composeCursor(last.CreatedAt, last.ID)
		}
		resp.Items = items
		return &struct {
			Body IssueListResponse `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-issue",
		Method:        http.MethodPost,
		Path:          "/issues",
		Summary:       "Create issue",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body IssueRequest `json:"body"`
	}) (*struct {
		Body domain.Issue `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		i, err := e.CreateIssue(ctx, issueOptions(activeOrg(ctx, e), actorID, input.Body))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Issue `json:"body"`
		}{Body: i}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-issue",
		Method:      http.MethodGet,
		Path:        "/issues/{issue_id}",
		Summary:     "Get issue",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		IssueID string `path:"issue_id"`
	}) (*struct {
		Body domain.Issue `json:"body"`
	}, error) {
		i, err := e.Repo.GetIssue(ctx, input.IssueID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Issue `json:"body"`
		}{Body: i}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-issue",
		Method:      http.MethodPut,
		Path:        "/issues/{issue_id}",
		Summary:     "Update issue",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		IssueID string       `path:"issue_id"`
		Body    IssueRequest `json:"body"`
	}) (*struct {
		Body domain.Issue `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		i, err := e.UpdateIssue(ctx, input.IssueID, issueOptions(activeOrg(ctx, e), actorID, input.Body))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Issue `json:"body"`
		}{Body: i}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-issue",
		Method:      http.MethodDelete,
		Path:        "/issues/{issue_id}",
		Summary:     "Delete issue",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		IssueID string `path:"issue_id"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteIssue(ctx, input.IssueID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "export-issues",
		Method:      http.MethodGet,
		Path:        "/issues/export",
		Summary:     "Export issues as CSV",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		ContentType string `header:"Content-Type"`
		Body        []byte
	}, error) {
		orgID := activeOrg(ctx, e)
		items, err := e.Repo.ListIssues(ctx, repo.IssueFilters{OrgID: orgID})
		if err != nil {
			return nil, handleError(err)
		}
		depts, err := e.Repo.ListDepartments(ctx, orgID)
		if err != nil {
			return nil, handleError(err)
		}
		names := map[string]string{}
		for _, d := range depts {
			names[d.ID] = d.Name
		}
		csv := export.IssuesCSV(items, func(id string) string { return names[id] })
		return &struct {
			ContentType string `header:"Content-Type"`
			Body        []byte
		}{ContentType: "text/csv", Body: []byte(csv)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "import-issues",
		Method:      http.MethodPost,
		Path:        "/issues/import",
		Summary:     "Import issues from CSV",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		RawBody []byte `contentType:"text/csv"`
	}) (*struct {
		Body export.ImportResult `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		data := input.RawBody
		if len(data) == 0 {
			data = bodyBytes(ctx)
		}
		if len(strings.TrimSpace(string(data))) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "csv body required", nil)
		}
		res, err := export.ImportIssues(ctx, e, activeOrg(ctx, e), strings.NewReader(string(data)), actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body export.ImportResult `json:"body"`
		}{Body: res}, nil
	})
}
