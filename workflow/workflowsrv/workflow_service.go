package workflowsrv

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/craftable/logx"
	"github.com/Abraxas-365/supportflow/catalog"
	"github.com/Abraxas-365/supportflow/pkg/kernel"
	"github.com/Abraxas-365/supportflow/workflow"
	"github.com/google/uuid"
)

// ContinuationCanceller drops delayed runs of a deleted workflow
type ContinuationCanceller interface {
	CancelWorkflow(ctx context.Context, workflowID kernel.WorkflowID) (int, error)
}

type WorkflowService struct {
	repo      workflow.WorkflowRepository
	store     workflow.AttachmentStore
	catalog   *catalog.Registry
	canceller ContinuationCanceller
	now       func() time.Time
}

func NewWorkflowService(
	repo workflow.WorkflowRepository,
	store workflow.AttachmentStore,
	registry *catalog.Registry,
	canceller ContinuationCanceller,
) *WorkflowService {
	return &WorkflowService{
		repo:      repo,
		store:     store,
		catalog:   registry,
		canceller: canceller,
		now:       time.Now,
	}
}

// ============================================================================
// Save
// ============================================================================

// Save validates the graph, uploads pending attachments and persists the
// workflow. files holds the bytes of pending attachments keyed by file name.
// Nothing is persisted when validation or any upload fails.
func (s *WorkflowService) Save(
	ctx context.Context,
	tenantID kernel.TenantID,
	wf workflow.Workflow,
	files map[string]workflow.Attachment,
) (*workflow.Workflow, error) {
	// The caller's graph shares slices with wf; work on a private copy
	wf = wf.Clone()
	now := s.now()
	wf.TenantID = tenantID

	var previous *workflow.Workflow
	if wf.ID.IsEmpty() {
		wf.ID = kernel.NewWorkflowID(uuid.NewString())
		wf.CreatedAt = now
		wf.Status = ""
	} else {
		existing, err := s.repo.FindByID(ctx, wf.ID, tenantID)
		if err != nil {
			return nil, err
		}
		previous = existing
		wf.CreatedAt = existing.CreatedAt
		wf.Status = existing.Status
	}
	wf.UpdatedAt = now

	if wf.ExceptCase == "" {
		wf.ExceptCase = workflow.ExceptIgnore
	}

	wf.NormalizeBlocks(s.catalog)

	var violations []string
	if err := wf.Validate(s.catalog); err != nil {
		verr, ok := err.(*workflow.ValidationError)
		if !ok {
			return nil, err
		}
		violations = append(violations, verr.Violations...)
	}
	violations = append(violations, missingAttachments(wf, files)...)
	if len(violations) > 0 {
		return nil, (&workflow.ValidationError{Violations: violations}).ToErrx()
	}

	uploaded, err := s.uploadPending(ctx, &wf, files)
	if err != nil {
		s.discard(ctx, uploaded)
		return nil, err
	}

	if err := s.repo.Save(ctx, wf); err != nil {
		s.discard(ctx, uploaded)
		return nil, err
	}

	if previous != nil {
		s.discard(ctx, orphaned(*previous, wf))
	}

	log.Printf("💾 Saved workflow %s (%d nodes, %d edges, %d attachments uploaded)",
		wf.ID, len(wf.Nodes), len(wf.Edges), len(uploaded))

	return &wf, nil
}

// uploadPending uploads every pending attachment in graph order and swaps
// the stored reference into the block. It returns the references uploaded so
// far even on failure.
func (s *WorkflowService) uploadPending(
	ctx context.Context,
	wf *workflow.Workflow,
	files map[string]workflow.Attachment,
) ([]string, error) {
	var uploaded []string

	for i := range wf.Nodes {
		node := &wf.Nodes[i]
		for j := range node.Config.Blocks {
			fields := node.Config.Blocks[j].Settings.Fields
			for k := range fields {
				refs := fields[k].Files
				for l := range refs {
					if !refs[l].Pending() {
						continue
					}

					file := files[refs[l].Name]
					ref, err := s.store.Upload(ctx, wf.TenantID, wf.ID, file)
					if err != nil {
						uerr := &workflow.UploadError{NodeID: node.ID, File: refs[l].Name, Err: err}
						logx.Error("Attachment upload failed, aborting save: %v", uerr)
						return uploaded, uerr.ToErrx()
					}

					uploaded = append(uploaded, ref)
					refs[l].Ref = ref
					if refs[l].ContentType == "" {
						refs[l].ContentType = file.ContentType
					}
					if refs[l].Size == 0 {
						refs[l].Size = file.Size
					}
				}
			}
		}
	}

	return uploaded, nil
}

// discard deletes uploaded objects, best effort
func (s *WorkflowService) discard(ctx context.Context, refs []string) {
	for _, ref := range refs {
		if err := s.store.Delete(ctx, ref); err != nil {
			logx.Error("Failed to delete attachment %s: %v", ref, err)
		}
	}
}

func missingAttachments(wf workflow.Workflow, files map[string]workflow.Attachment) []string {
	var v []string
	for _, n := range wf.Nodes {
		for j, b := range n.Config.Blocks {
			for _, f := range b.Settings.Fields {
				for _, ref := range f.Files {
					if !ref.Pending() {
						continue
					}
					if file, ok := files[ref.Name]; !ok || file.Body == nil {
						v = append(v, fmt.Sprintf("node %q block #%d: attachment %q was not provided", n.ID, j, ref.Name))
					}
				}
			}
		}
	}
	return v
}

// orphaned lists references held by previous that current no longer uses
func orphaned(previous, current workflow.Workflow) []string {
	inUse := make(map[string]bool)
	for _, ref := range attachmentRefs(current) {
		inUse[ref] = true
	}

	var result []string
	for _, ref := range attachmentRefs(previous) {
		if !inUse[ref] {
			result = append(result, ref)
		}
	}
	return result
}

func attachmentRefs(wf workflow.Workflow) []string {
	var refs []string
	for _, n := range wf.Nodes {
		for _, b := range n.Config.Blocks {
			for _, f := range b.Settings.Fields {
				for _, ref := range f.Files {
					if !ref.Pending() {
						refs = append(refs, ref.Ref)
					}
				}
			}
		}
	}
	return refs
}

// ============================================================================
// Queries and partial updates
// ============================================================================

func (s *WorkflowService) Load(ctx context.Context, tenantID kernel.TenantID, id kernel.WorkflowID) (*workflow.Workflow, error) {
	return s.repo.FindByID(ctx, id, tenantID)
}

func (s *WorkflowService) ListByTenant(ctx context.Context, tenantID kernel.TenantID) ([]*workflow.Workflow, error) {
	return s.repo.FindByTenant(ctx, tenantID)
}

// SetEnabled flips the enabled flag without touching the graph body.
// Disabling drops the workflow's pending delayed runs.
func (s *WorkflowService) SetEnabled(ctx context.Context, tenantID kernel.TenantID, id kernel.WorkflowID, enabled bool) error {
	if err := s.repo.UpdateEnabled(ctx, id, tenantID, enabled); err != nil {
		return err
	}
	if !enabled {
		s.cancelDelayed(ctx, id)
	}
	return nil
}

// SetExceptCase changes the fallback policy without touching the graph body
func (s *WorkflowService) SetExceptCase(ctx context.Context, tenantID kernel.TenantID, id kernel.WorkflowID, exceptCase workflow.ExceptCase) error {
	if !exceptCase.IsValid() {
		return workflow.ErrInvalidExceptCase().
			WithDetail("except_case", string(exceptCase)).
			WithDetail("allowed", []string{"sample", "move", "ignore"})
	}
	return s.repo.UpdateExceptCase(ctx, id, tenantID, exceptCase)
}

// Delete hard-deletes a workflow, its pending delayed runs and attachments
func (s *WorkflowService) Delete(ctx context.Context, tenantID kernel.TenantID, id kernel.WorkflowID) error {
	wf, err := s.repo.FindByID(ctx, id, tenantID)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id, tenantID); err != nil {
		return err
	}

	s.cancelDelayed(ctx, id)
	s.discard(ctx, attachmentRefs(*wf))
	return nil
}

func (s *WorkflowService) cancelDelayed(ctx context.Context, id kernel.WorkflowID) {
	if s.canceller == nil {
		return
	}
	if n, err := s.canceller.CancelWorkflow(ctx, id); err != nil {
		logx.Error("Failed to cancel delayed runs of workflow %s: %v", id, err)
	} else if n > 0 {
		log.Printf("🗑️  Cancelled %d delayed runs of workflow %s", n, id)
	}
}

// DeleteNode removes a node with everything reachable only through it
func (s *WorkflowService) DeleteNode(
	ctx context.Context,
	tenantID kernel.TenantID,
	id kernel.WorkflowID,
	nodeID string,
) (*workflow.Workflow, []string, error) {
	wf, err := s.repo.FindByID(ctx, id, tenantID)
	if err != nil {
		return nil, nil, err
	}
	before := *wf
	before.Nodes = append([]workflow.Node(nil), wf.Nodes...)

	removed, err := wf.RemoveNode(nodeID)
	if err != nil {
		return nil, nil, err
	}
	wf.UpdatedAt = s.now()

	if err := s.repo.Save(ctx, *wf); err != nil {
		return nil, nil, errx.Wrap(err, "failed to save workflow after node removal", errx.TypeInternal).
			WithDetail("workflow_id", id.String()).
			WithDetail("node_id", nodeID)
	}

	s.discard(ctx, orphaned(before, *wf))
	return wf, removed, nil
}
