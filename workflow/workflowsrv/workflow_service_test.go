package workflowsrv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/supportflow/catalog"
	"github.com/Abraxas-365/supportflow/pkg/kernel"
	"github.com/Abraxas-365/supportflow/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Fakes
// ============================================================================

type memoryRepo struct {
	items map[kernel.WorkflowID]workflow.Workflow
	saves int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: map[kernel.WorkflowID]workflow.Workflow{}}
}

func (m *memoryRepo) Save(_ context.Context, wf workflow.Workflow) error {
	m.saves++
	m.items[wf.ID] = wf
	return nil
}

func (m *memoryRepo) FindByID(_ context.Context, id kernel.WorkflowID, tenantID kernel.TenantID) (*workflow.Workflow, error) {
	wf, ok := m.items[id]
	if !ok || wf.TenantID != tenantID {
		return nil, workflow.ErrWorkflowNotFound()
	}
	return &wf, nil
}

func (m *memoryRepo) Delete(_ context.Context, id kernel.WorkflowID, _ kernel.TenantID) error {
	delete(m.items, id)
	return nil
}

func (m *memoryRepo) FindByTenant(_ context.Context, tenantID kernel.TenantID) ([]*workflow.Workflow, error) {
	var out []*workflow.Workflow
	for _, wf := range m.items {
		if wf.TenantID == tenantID {
			wf := wf
			out = append(out, &wf)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryRepo) FindEnabled(ctx context.Context, tenantID kernel.TenantID) ([]*workflow.Workflow, error) {
	all, _ := m.FindByTenant(ctx, tenantID)
	var out []*workflow.Workflow
	for _, wf := range all {
		if wf.Enabled {
			out = append(out, wf)
		}
	}
	return out, nil
}

func (m *memoryRepo) UpdateEnabled(_ context.Context, id kernel.WorkflowID, _ kernel.TenantID, enabled bool) error {
	wf, ok := m.items[id]
	if !ok {
		return workflow.ErrWorkflowNotFound()
	}
	wf.Enabled = enabled
	m.items[id] = wf
	return nil
}

func (m *memoryRepo) UpdateExceptCase(_ context.Context, id kernel.WorkflowID, _ kernel.TenantID, ec workflow.ExceptCase) error {
	wf, ok := m.items[id]
	if !ok {
		return workflow.ErrWorkflowNotFound()
	}
	wf.ExceptCase = ec
	m.items[id] = wf
	return nil
}

func (m *memoryRepo) UpdateStatus(_ context.Context, id kernel.WorkflowID, status workflow.RunStatus) error {
	wf := m.items[id]
	wf.Status = status
	m.items[id] = wf
	return nil
}

type memoryStore struct {
	objects  map[string]string
	failOn   string
	uploads  int
	deletion []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string]string{}}
}

func (s *memoryStore) Upload(_ context.Context, tenantID kernel.TenantID, workflowID kernel.WorkflowID, file workflow.Attachment) (string, error) {
	if file.Name == s.failOn {
		return "", errors.New("storage offline")
	}
	s.uploads++
	data, _ := io.ReadAll(file.Body)
	ref := fmt.Sprintf("%s/%s/%d-%s", tenantID, workflowID, s.uploads, file.Name)
	s.objects[ref] = string(data)
	return ref, nil
}

func (s *memoryStore) Delete(_ context.Context, ref string) error {
	s.deletion = append(s.deletion, ref)
	delete(s.objects, ref)
	return nil
}

type recordingCanceller struct {
	cancelled []kernel.WorkflowID
}

func (r *recordingCanceller) CancelWorkflow(_ context.Context, id kernel.WorkflowID) (int, error) {
	r.cancelled = append(r.cancelled, id)
	return 1, nil
}

// ============================================================================
// Fixtures
// ============================================================================

const tenant = kernel.TenantID("tenant-1")

func newService() (*WorkflowService, *memoryRepo, *memoryStore, *recordingCanceller) {
	repo := newMemoryRepo()
	store := newMemoryStore()
	canceller := &recordingCanceller{}
	svc := NewWorkflowService(repo, store, catalog.Default(), canceller)
	svc.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return svc, repo, store, canceller
}

func graphWithFiles(names ...string) workflow.Workflow {
	var refs []workflow.FileRef
	for _, n := range names {
		refs = append(refs, workflow.FileRef{Name: n})
	}

	return workflow.Workflow{
		Name: "Welcome",
		Nodes: []workflow.Node{
			{ID: "t", Kind: catalog.KindTrigger, Config: workflow.NodeConfig{Blocks: []workflow.BlockInstance{
				{Key: catalog.BlockFirstMessage},
			}}},
			{ID: "a", Kind: catalog.KindAction, Config: workflow.NodeConfig{Blocks: []workflow.BlockInstance{
				{Key: catalog.BlockSendMessage, Settings: workflow.BlockSettings{Fields: []workflow.FieldValue{
					{Index: 0, Value: " Welcome! "},
					{Index: 1, Files: refs},
				}}},
			}}},
		},
		Edges: []workflow.Edge{{ID: "e", From: "t", To: "a"}},
	}
}

func attachments(names ...string) map[string]workflow.Attachment {
	out := map[string]workflow.Attachment{}
	for _, n := range names {
		out[n] = workflow.Attachment{Name: n, ContentType: "text/plain", Size: int64(len(n)), Body: strings.NewReader("bytes of " + n)}
	}
	return out
}

// ============================================================================
// Tests
// ============================================================================

func TestSaveUploadsThenSwapsReferences(t *testing.T) {
	svc, repo, store, _ := newService()

	saved, err := svc.Save(context.Background(), tenant, graphWithFiles("a.txt", "b.txt"), attachments("a.txt", "b.txt"))
	require.NoError(t, err)

	assert.False(t, saved.ID.IsEmpty())
	assert.Equal(t, tenant, saved.TenantID)
	assert.Equal(t, workflow.ExceptIgnore, saved.ExceptCase)

	fields := saved.Nodes[1].Config.Blocks[0].Settings.Fields
	assert.Equal(t, "Welcome!", fields[0].Value)
	require.Len(t, fields[1].Files, 2)
	for _, f := range fields[1].Files {
		assert.False(t, f.Pending())
		assert.Equal(t, "text/plain", f.ContentType)
		assert.Contains(t, store.objects, f.Ref)
	}

	stored, ok := repo.items[saved.ID]
	require.True(t, ok)
	assert.Equal(t, *saved, stored)
}

func TestSaveRejectsInvalidGraphWithoutSideEffects(t *testing.T) {
	svc, repo, store, _ := newService()

	wf := graphWithFiles("a.txt")
	wf.Name = ""
	wf.Edges = append(wf.Edges, workflow.Edge{ID: "bad", From: "t", To: "missing"})

	_, err := svc.Save(context.Background(), tenant, wf, attachments("a.txt"))
	require.Error(t, err)
	assert.True(t, errx.IsType(err, errx.TypeValidation))
	assert.Empty(t, repo.items)
	assert.Zero(t, store.uploads)
}

func TestSaveReportsMissingAttachmentBytes(t *testing.T) {
	svc, repo, _, _ := newService()

	_, err := svc.Save(context.Background(), tenant, graphWithFiles("a.txt"), nil)
	require.Error(t, err)
	assert.True(t, errx.IsType(err, errx.TypeValidation))
	assert.Empty(t, repo.items)
}

func TestSaveAbortsWhenAnUploadFails(t *testing.T) {
	svc, repo, store, _ := newService()
	store.failOn = "b.txt"

	_, err := svc.Save(context.Background(), tenant, graphWithFiles("a.txt", "b.txt", "c.txt"), attachments("a.txt", "b.txt", "c.txt"))
	require.Error(t, err)
	assert.True(t, errx.IsType(err, errx.TypeExternal))

	assert.Empty(t, repo.items, "nothing is persisted")
	assert.Equal(t, 1, store.uploads)
	assert.Len(t, store.deletion, 1, "already uploaded objects are discarded")
	assert.Empty(t, store.objects)
}

func TestSaveUpdateKeepsCreationAndDropsOrphans(t *testing.T) {
	svc, repo, store, _ := newService()

	first, err := svc.Save(context.Background(), tenant, graphWithFiles("a.txt"), attachments("a.txt"))
	require.NoError(t, err)
	oldRef := first.Nodes[1].Config.Blocks[0].Settings.Fields[1].Files[0].Ref

	repo.items[first.ID] = func() workflow.Workflow { w := repo.items[first.ID]; w.Status = workflow.StatusSuccess; return w }()

	update := graphWithFiles("b.txt")
	update.ID = first.ID
	svc.now = func() time.Time { return time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC) }

	second, err := svc.Save(context.Background(), tenant, update, attachments("b.txt"))
	require.NoError(t, err)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, workflow.StatusSuccess, second.Status)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
	assert.Contains(t, store.deletion, oldRef)
	assert.Len(t, store.objects, 1)
}

func TestSaveUnknownIDIsNotFound(t *testing.T) {
	svc, _, _, _ := newService()

	wf := graphWithFiles()
	wf.ID = "ghost"
	_, err := svc.Save(context.Background(), tenant, wf, nil)
	require.Error(t, err)
	assert.True(t, errx.IsType(err, errx.TypeNotFound))
}

func TestSetExceptCaseIsEnumValidated(t *testing.T) {
	svc, repo, _, _ := newService()
	saved, err := svc.Save(context.Background(), tenant, graphWithFiles(), nil)
	require.NoError(t, err)

	err = svc.SetExceptCase(context.Background(), tenant, saved.ID, "escalate")
	require.Error(t, err)
	assert.True(t, errx.IsType(err, errx.TypeValidation))
	assert.Equal(t, workflow.ExceptIgnore, repo.items[saved.ID].ExceptCase)

	require.NoError(t, svc.SetExceptCase(context.Background(), tenant, saved.ID, workflow.ExceptMove))
	assert.Equal(t, workflow.ExceptMove, repo.items[saved.ID].ExceptCase)

	savesBefore := repo.saves
	require.NoError(t, svc.SetEnabled(context.Background(), tenant, saved.ID, true))
	assert.True(t, repo.items[saved.ID].Enabled)
	assert.Equal(t, savesBefore, repo.saves, "partial updates never rewrite the graph")
}

func TestDeleteNodeCascades(t *testing.T) {
	svc, repo, _, _ := newService()

	wf := workflow.Workflow{
		ID: "wf", TenantID: tenant, Name: "diamond",
		Nodes: []workflow.Node{{ID: "A"}, {ID: "B"}, {ID: "C"}, {ID: "D"}},
		Edges: []workflow.Edge{
			{ID: "1", From: "A", To: "B"}, {ID: "2", From: "A", To: "C"},
			{ID: "3", From: "B", To: "D"}, {ID: "4", From: "C", To: "D"},
		},
	}
	repo.items[wf.ID] = wf

	updated, removed, err := svc.DeleteNode(context.Background(), tenant, "wf", "B")
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, removed)
	assert.Len(t, updated.Nodes, 3)
	assert.Len(t, repo.items["wf"].Nodes, 3)

	_, _, err = svc.DeleteNode(context.Background(), tenant, "wf", "B")
	assert.True(t, errx.IsType(err, errx.TypeNotFound))
}

func TestDeleteCancelsContinuationsAndAttachments(t *testing.T) {
	svc, repo, store, canceller := newService()
	saved, err := svc.Save(context.Background(), tenant, graphWithFiles("a.txt"), attachments("a.txt"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), tenant, saved.ID))
	assert.Empty(t, repo.items)
	assert.Empty(t, store.objects)
	assert.Equal(t, []kernel.WorkflowID{saved.ID}, canceller.cancelled)

	err = svc.Delete(context.Background(), "other-tenant", saved.ID)
	assert.True(t, errx.IsType(err, errx.TypeNotFound))
}

func TestSaveLeavesCallerGraphUntouched(t *testing.T) {
	svc, _, store, _ := newService()
	store.failOn = "b.txt"

	wf := graphWithFiles("a.txt", "b.txt")
	_, err := svc.Save(context.Background(), tenant, wf, attachments("a.txt", "b.txt"))
	require.Error(t, err)

	fields := wf.Nodes[1].Config.Blocks[0].Settings.Fields
	assert.Equal(t, " Welcome! ", fields[0].Value)
	for _, f := range fields[1].Files {
		assert.True(t, f.Pending(), "aborted uploads never leak into the caller's graph")
		assert.Empty(t, f.ContentType)
	}

	store.failOn = ""
	saved, err := svc.Save(context.Background(), tenant, wf, attachments("a.txt", "b.txt"))
	require.NoError(t, err)
	assert.False(t, saved.Nodes[1].Config.Blocks[0].Settings.Fields[1].Files[0].Pending())
	assert.True(t, wf.Nodes[1].Config.Blocks[0].Settings.Fields[1].Files[0].Pending())
}

func TestDisableCancelsContinuations(t *testing.T) {
	svc, repo, _, canceller := newService()
	saved, err := svc.Save(context.Background(), tenant, graphWithFiles(), nil)
	require.NoError(t, err)

	require.NoError(t, svc.SetEnabled(context.Background(), tenant, saved.ID, true))
	assert.Empty(t, canceller.cancelled, "enabling keeps delayed runs")

	require.NoError(t, svc.SetEnabled(context.Background(), tenant, saved.ID, false))
	assert.False(t, repo.items[saved.ID].Enabled)
	assert.Equal(t, []kernel.WorkflowID{saved.ID}, canceller.cancelled)

	err = svc.SetEnabled(context.Background(), tenant, "ghost", false)
	require.Error(t, err)
	assert.Len(t, canceller.cancelled, 1)
}
