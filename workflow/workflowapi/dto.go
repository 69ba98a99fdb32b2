package workflowapi

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Abraxas-365/supportflow/workflow"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// SaveWorkflowRequest is the graph body sent by the editor. Graph-level
// rules are checked by the service so that every violation is reported at
// once.
type SaveWorkflowRequest struct {
	Name       string              `json:"name" validate:"max=200"`
	Enabled    bool                `json:"enabled"`
	ExceptCase workflow.ExceptCase `json:"except_case" validate:"omitempty,oneof=sample move ignore"`
	Nodes      []workflow.Node     `json:"nodes" validate:"max=500"`
	Edges      []workflow.Edge     `json:"edges" validate:"max=2000"`
}

func (r SaveWorkflowRequest) toDomain() workflow.Workflow {
	return workflow.Workflow{
		Name:       r.Name,
		Enabled:    r.Enabled,
		ExceptCase: r.ExceptCase,
		Nodes:      r.Nodes,
		Edges:      r.Edges,
	}
}

// SetEnabledRequest toggles a workflow
type SetEnabledRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// SetExceptCaseRequest changes the fallback policy
type SetExceptCaseRequest struct {
	ExceptCase string `json:"except_case" validate:"required,oneof=sample move ignore"`
}

// WorkflowListResponse is the unpaginated list of a tenant's workflows
type WorkflowListResponse struct {
	Workflows []*workflow.Workflow `json:"workflows"`
	Total     int                  `json:"total"`
}

// DeleteNodeResponse reports the cascade of a node deletion
type DeleteNodeResponse struct {
	Workflow *workflow.Workflow `json:"workflow"`
	Removed  []string           `json:"removed"`
}

func validationMessages(err error) []string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []string{err.Error()}
	}

	messages := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		field := strings.ToLower(fe.Field())
		if fe.Param() != "" {
			messages = append(messages, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			messages = append(messages, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return messages
}
