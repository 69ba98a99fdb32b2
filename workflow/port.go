package workflow

import (
	"context"
	"io"

	"github.com/Abraxas-365/supportflow/pkg/kernel"
)

// ============================================================================
// Repository Interfaces
// ============================================================================

// WorkflowRepository persistencia de workflows
type WorkflowRepository interface {
	// CRUD básico
	Save(ctx context.Context, wf Workflow) error
	FindByID(ctx context.Context, id kernel.WorkflowID, tenantID kernel.TenantID) (*Workflow, error)
	Delete(ctx context.Context, id kernel.WorkflowID, tenantID kernel.TenantID) error

	// Búsquedas
	FindByTenant(ctx context.Context, tenantID kernel.TenantID) ([]*Workflow, error)
	// FindEnabled returns enabled workflows ordered by creation time
	FindEnabled(ctx context.Context, tenantID kernel.TenantID) ([]*Workflow, error)

	// Single-field updates
	UpdateEnabled(ctx context.Context, id kernel.WorkflowID, tenantID kernel.TenantID, enabled bool) error
	UpdateExceptCase(ctx context.Context, id kernel.WorkflowID, tenantID kernel.TenantID, exceptCase ExceptCase) error
	UpdateStatus(ctx context.Context, id kernel.WorkflowID, status RunStatus) error
}

// ============================================================================
// Storage Interfaces
// ============================================================================

// Attachment is an uploaded file waiting to be stored
type Attachment struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// AttachmentStore guarda los adjuntos de bloques multifile
type AttachmentStore interface {
	// Upload stores the attachment and returns its opaque reference
	Upload(ctx context.Context, tenantID kernel.TenantID, workflowID kernel.WorkflowID, file Attachment) (string, error)
	Delete(ctx context.Context, ref string) error
}
