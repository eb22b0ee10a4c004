package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"trustops/internal/domain"
	"trustops/internal/engine"
)

// Reference data endpoints: departments, users, regulations, processes.
// The wizard only reads these; admins maintain them.
func registerReference(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-departments",
		Method:      http.MethodGet,
		Path:        "/departments",
		Summary:     "List departments",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Department `json:"body"`
	}, error) {
		items, err := e.Repo.ListDepartments(ctx, activeOrg(ctx, e))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Department `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-department",
		Method:        http.MethodPost,
		Path:          "/departments",
		Summary:       "Create department",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body struct {
			Name string `json:"name"`
		} `json:"body"`
	}) (*struct {
		Body domain.Department `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		d, err := e.CreateDepartment(ctx, activeOrg(ctx, e), input.Body.Name, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Department `json:"body"`
		}{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-department",
		Method:      http.MethodPut,
		Path:        "/departments/{department_id}",
		Summary:     "Rename department",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		DepartmentID string `path:"department_id"`
		Body         struct {
			Name string `json:"name"`
		} `json:"body"`
	}) (*struct {
		Body domain.Department `json:"body"`
	}, error) {
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		if err := e.Repo.UpdateDepartment(ctx, input.DepartmentID, input.Body.Name); err != nil {
			return nil, handleError(err)
		}
		d, err := e.Repo.GetDepartment(ctx, input.DepartmentID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Department `json:"body"`
		}{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-department",
		Method:      http.MethodDelete,
		Path:        "/departments/{department_id}",
		Summary:     "Delete department",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		DepartmentID string `path:"department_id"`
	}) (*struct{}, error) {
		if err := e.Repo.DeleteDepartment(ctx, input.DepartmentID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "List users",
	}, func(ctx context.Context, input *struct {
		DepartmentID string `query:"department_id"`
	}) (*struct {
		Body []domain.User `json:"body"`
	}, error) {
		items, err := e.Repo.ListUsers(ctx, activeOrg(ctx, e), input.DepartmentID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.User `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-user",
		Method:        http.MethodPost,
		Path:          "/users",
		Summary:       "Create user",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body struct {
			Name         string `json:"name"`
			Email        string `json:"email,omitempty"`
			Role         string `json:"role,omitempty"`
			DepartmentID string `json:"department_id,omitempty"`
		} `json:"body"`
	}) (*struct {
		Body domain.User `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		u, err := e.CreateUser(ctx, engine.UserCreateOptions{
			OrgID:        activeOrg(ctx, e),
			DepartmentID: input.Body.DepartmentID,
			Name:         input.Body.Name,
			Email:        input.Body.Email,
			Role:         input.Body.Role,
			ActorID:      actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.User `json:"body"`
		}{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-user",
		Method:      http.MethodDelete,
		Path:        "/users/{user_id}",
		Summary:     "Delete user",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		UserID string `path:"user_id"`
	}) (*struct{}, error) {
		if err := e.Repo.DeleteUser(ctx, input.UserID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-regulations",
		Method:      http.MethodGet,
		Path:        "/regulations",
		Summary:     "List regulations",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Regulation `json:"body"`
	}, error) {
		items, err := e.Repo.ListRegulations(ctx, activeOrg(ctx, e))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Regulation `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-regulation",
		Method:        http.MethodPost,
		Path:          "/regulations",
		Summary:       "Create regulation",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body struct {
			Name        string `json:"name"`
			Authority   string `json:"authority,omitempty"`
			Description string `json:"description,omitempty"`
		} `json:"body"`
	}) (*struct {
		Body domain.Regulation `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		reg, err := e.CreateRegulation(ctx, activeOrg(ctx, e), input.Body.Name, input.Body.Authority, input.Body.Description, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Regulation `json:"body"`
		}{Body: reg}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-regulation",
		Method:      http.MethodDelete,
		Path:        "/regulations/{regulation_id}",
		Summary:     "Delete regulation",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RegulationID string `path:"regulation_id"`
	}) (*struct{}, error) {
		if err := e.Repo.DeleteRegulation(ctx, input.RegulationID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-processes",
		Method:      http.MethodGet,
		Path:        "/processes",
		Summary:     "List processes",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Process `json:"body"`
	}, error) {
		items, err := e.Repo.ListProcesses(ctx, activeOrg(ctx, e))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Process `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-process",
		Method:        http.MethodPost,
		Path:          "/processes",
		Summary:       "Create process",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body struct {
			Name        string `json:"name"`
			OwnerID     string `json:"owner_id,omitempty"`
			Description string `json:"description,omitempty"`
		} `json:"body"`
	}) (*struct {
		Body domain.Process `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.CreateProcess(ctx, activeOrg(ctx, e), input.Body.Name, input.Body.OwnerID, input.Body.Description, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Process `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-process",
		Method:      http.MethodDelete,
		Path:        "/processes/{process_id}",
		Summary:     "Delete process",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProcessID string `path:"process_id"`
	}) (*struct{}, error) {
		if err := e.Repo.DeleteProcess(ctx, input.ProcessID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerOptions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-options",
		Method:      http.MethodGet,
		Path:        "/options/{kind}",
		Summary:     "List option values",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Kind string `path:"kind" enum:"domain,category,issue_type,need_expectation"`
	}) (*struct {
		Body []domain.OptionValue `json:"body"`
	}, error) {
		items, err := e.Repo.ListOptionValues(ctx, activeOrg(ctx, e), input.Kind)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.OptionValue `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "add-option",
		Method:      http.MethodPost,
		Path:        "/options/{kind}",
		Summary:     "Add custom option value",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Kind string `path:"kind" enum:"domain,category,issue_type,need_expectation"`
		Body struct {
			Value string `json:"value"`
		} `json:"body"`
	}) (*struct {
		Body struct {
			domain.OptionValue
			Created bool `json:"created"`
		} `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		o, created, err := e.AddOption(ctx, activeOrg(ctx, e), input.Kind, input.Body.Value, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		out := &struct {
			Body struct {
				domain.OptionValue
				Created bool `json:"created"`
			} `json:"body"`
		}{}
		out.Body.OptionValue = o
		out.Body.Created = created
		return out, nil
	})
}
