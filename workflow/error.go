package workflow

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/Abraxas-365/craftable/errx"
)

var ErrRegistry = errx.NewRegistry("WORKFLOW")

var (
	CodeWorkflowNotFound  = ErrRegistry.Register("WORKFLOW_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Workflow not found")
	CodeInvalidWorkflow   = ErrRegistry.Register("INVALID_WORKFLOW", errx.TypeValidation, http.StatusBadRequest, "Invalid workflow")
	CodeUploadFailed      = ErrRegistry.Register("UPLOAD_FAILED", errx.TypeExternal, http.StatusBadGateway, "Attachment upload failed")
	CodeInvalidExceptCase = ErrRegistry.Register("INVALID_EXCEPT_CASE", errx.TypeValidation, http.StatusBadRequest, "Invalid except case")
	CodeNodeNotFound      = ErrRegistry.Register("NODE_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Node not found")
	CodeInvalidField      = ErrRegistry.Register("INVALID_FIELD", errx.TypeValidation, http.StatusBadRequest, "Invalid block field")
)

func ErrWorkflowNotFound() *errx.Error {
	return ErrRegistry.New(CodeWorkflowNotFound)
}

func ErrInvalidWorkflow() *errx.Error {
	return ErrRegistry.New(CodeInvalidWorkflow)
}

func ErrUploadFailed() *errx.Error {
	return ErrRegistry.New(CodeUploadFailed)
}

func ErrInvalidExceptCase() *errx.Error {
	return ErrRegistry.New(CodeInvalidExceptCase)
}

func ErrNodeNotFound() *errx.Error {
	return ErrRegistry.New(CodeNodeNotFound)
}

func ErrInvalidField() *errx.Error {
	return ErrRegistry.New(CodeInvalidField)
}

// ValidationError carries every violation found in a graph
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("workflow validation failed: %s", strings.Join(e.Violations, "; "))
}

// ToErrx converts the error into the registered API error
func (e *ValidationError) ToErrx() *errx.Error {
	return ErrInvalidWorkflow().
		WithDetail("violations", e.Violations).
		WithCause(e)
}

// UploadError reports an attachment that could not be stored; the save
// that triggered it is aborted
type UploadError struct {
	NodeID string
	File   string
	Err    error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload of %q (node %s) failed: %v", e.File, e.NodeID, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// ToErrx converts the error into the registered API error
func (e *UploadError) ToErrx() *errx.Error {
	return ErrUploadFailed().
		WithDetail("node_id", e.NodeID).
		WithDetail("file", e.File).
		WithCause(e)
}
