package engine

import (
	"fmt"
	"net/http"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/supportflow/pkg/kernel"
)

var ErrRegistry = errx.NewRegistry("ENGINE")

var (
	// Evaluation errors
	CodeMatchFailed        = ErrRegistry.Register("MATCH_FAILED", errx.TypeValidation, http.StatusUnprocessableEntity, "Block could not be evaluated")
	CodeEvaluationAborted  = ErrRegistry.Register("EVALUATION_ABORTED", errx.TypeInternal, http.StatusInternalServerError, "Evaluation aborted")
	CodeActionFailed       = ErrRegistry.Register("ACTION_EXECUTION_FAILED", errx.TypeExternal, http.StatusBadGateway, "Action execution failed")
	CodeNoExecutor         = ErrRegistry.Register("NO_EXECUTOR", errx.TypeInternal, http.StatusInternalServerError, "No executor for action block")
	CodeInvalidDelay       = ErrRegistry.Register("INVALID_DELAY", errx.TypeValidation, http.StatusBadRequest, "Invalid delay configuration")
	CodeInvalidEvent       = ErrRegistry.Register("INVALID_EVENT", errx.TypeValidation, http.StatusBadRequest, "Invalid event")
	CodeScheduleFailed     = ErrRegistry.Register("SCHEDULE_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Failed to schedule continuation")
	CodeContinuationAbsent = ErrRegistry.Register("CONTINUATION_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Continuation not found")
)

func ErrMatchFailed() *errx.Error {
	return ErrRegistry.New(CodeMatchFailed)
}

func ErrEvaluationAborted() *errx.Error {
	return ErrRegistry.New(CodeEvaluationAborted)
}

func ErrActionFailed() *errx.Error {
	return ErrRegistry.New(CodeActionFailed)
}

func ErrNoExecutor() *errx.Error {
	return ErrRegistry.New(CodeNoExecutor)
}

func ErrInvalidDelay() *errx.Error {
	return ErrRegistry.New(CodeInvalidDelay)
}

func ErrInvalidEvent() *errx.Error {
	return ErrRegistry.New(CodeInvalidEvent)
}

func ErrScheduleFailed() *errx.Error {
	return ErrRegistry.New(CodeScheduleFailed)
}

func ErrContinuationNotFound() *errx.Error {
	return ErrRegistry.New(CodeContinuationAbsent)
}

// ============================================================================
// Typed evaluation errors
// ============================================================================

// MatchError reports a block that could not be evaluated. It is logged and
// the block is treated as non-matching.
type MatchError struct {
	WorkflowID kernel.WorkflowID
	NodeID     string
	BlockKey   string
	Err        error
}

func (e *MatchError) Error() string {
	return fmt.Sprintf("workflow %s node %s block %q: %v", e.WorkflowID, e.NodeID, e.BlockKey, e.Err)
}

func (e *MatchError) Unwrap() error { return e.Err }

func (e *MatchError) ToErrx() *errx.Error {
	return ErrMatchFailed().
		WithDetail("workflow_id", e.WorkflowID.String()).
		WithDetail("node_id", e.NodeID).
		WithDetail("block_key", e.BlockKey).
		WithCause(e.Err)
}

// ActionExecutionError reports a failed action block. Sibling blocks still run.
type ActionExecutionError struct {
	WorkflowID kernel.WorkflowID
	NodeID     string
	BlockKey   string
	Index      int
	Err        error
}

func (e *ActionExecutionError) Error() string {
	return fmt.Sprintf("workflow %s node %s action #%d %q: %v", e.WorkflowID, e.NodeID, e.Index, e.BlockKey, e.Err)
}

func (e *ActionExecutionError) Unwrap() error { return e.Err }

func (e *ActionExecutionError) ToErrx() *errx.Error {
	return ErrActionFailed().
		WithDetail("workflow_id", e.WorkflowID.String()).
		WithDetail("node_id", e.NodeID).
		WithDetail("block_key", e.BlockKey).
		WithDetail("index", e.Index).
		WithCause(e.Err)
}

// EvaluationAborted reports a traversal that hit the depth guard
type EvaluationAborted struct {
	WorkflowID kernel.WorkflowID
	NodeID     string
	Depth      int
}

func (e *EvaluationAborted) Error() string {
	return fmt.Sprintf("workflow %s aborted at node %s: depth %d exceeds limit", e.WorkflowID, e.NodeID, e.Depth)
}

func (e *EvaluationAborted) ToErrx() *errx.Error {
	return ErrEvaluationAborted().
		WithDetail("workflow_id", e.WorkflowID.String()).
		WithDetail("node_id", e.NodeID).
		WithDetail("depth", e.Depth)
}
