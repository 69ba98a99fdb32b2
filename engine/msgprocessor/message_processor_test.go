package msgprocessor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Abraxas-365/supportflow/catalog"
	"github.com/Abraxas-365/supportflow/conversation"
	"github.com/Abraxas-365/supportflow/engine"
	"github.com/Abraxas-365/supportflow/engine/nodeexec"
	"github.com/Abraxas-365/supportflow/engine/workflowexec"
	"github.com/Abraxas-365/supportflow/pkg/kernel"
	"github.com/Abraxas-365/supportflow/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Fakes
// ============================================================================

type fakeRepo struct {
	workflows []*workflow.Workflow
	statuses  map[kernel.WorkflowID]workflow.RunStatus
	err       error
}

func (r *fakeRepo) Save(context.Context, workflow.Workflow) error { return nil }

func (r *fakeRepo) FindByID(_ context.Context, id kernel.WorkflowID, tenantID kernel.TenantID) (*workflow.Workflow, error) {
	for _, wf := range r.workflows {
		if wf.ID == id && wf.TenantID == tenantID {
			return wf, nil
		}
	}
	return nil, workflow.ErrWorkflowNotFound()
}

func (r *fakeRepo) Delete(context.Context, kernel.WorkflowID, kernel.TenantID) error { return nil }

func (r *fakeRepo) FindByTenant(_ context.Context, _ kernel.TenantID) ([]*workflow.Workflow, error) {
	return r.workflows, r.err
}

func (r *fakeRepo) FindEnabled(_ context.Context, _ kernel.TenantID) ([]*workflow.Workflow, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []*workflow.Workflow
	for _, wf := range r.workflows {
		if wf.Enabled {
			out = append(out, wf)
		}
	}
	return out, nil
}

func (r *fakeRepo) UpdateEnabled(context.Context, kernel.WorkflowID, kernel.TenantID, bool) error {
	return nil
}

func (r *fakeRepo) UpdateExceptCase(context.Context, kernel.WorkflowID, kernel.TenantID, workflow.ExceptCase) error {
	return nil
}

func (r *fakeRepo) UpdateStatus(_ context.Context, id kernel.WorkflowID, status workflow.RunStatus) error {
	r.statuses[id] = status
	return nil
}

type fakeConversations struct {
	conv      *conversation.Conversation
	err       error
	autoReply []bool
}

func (f *fakeConversations) FindByID(context.Context, kernel.TenantID, kernel.ConversationID) (*conversation.Conversation, error) {
	return f.conv, f.err
}

func (f *fakeConversations) SetAIAutoReply(_ context.Context, _ kernel.TenantID, _ kernel.ConversationID, enabled bool) error {
	f.autoReply = append(f.autoReply, enabled)
	return nil
}

type fakeGateway struct {
	texts []string
}

func (g *fakeGateway) Send(_ context.Context, _ kernel.TenantID, _ kernel.ConversationID, text string) error {
	g.texts = append(g.texts, text)
	return nil
}

func (g *fakeGateway) SendMedia(context.Context, kernel.TenantID, kernel.ConversationID, workflow.FileRef) error {
	return nil
}

type fakeScheduler struct{}

func (fakeScheduler) Schedule(context.Context, *engine.Continuation, time.Duration) error { return nil }

// ============================================================================
// Setup
// ============================================================================

const sample = "Thanks for writing! An agent will get back to you soon."

type fixture struct {
	mp    *MessageProcessor
	repo  *fakeRepo
	convs *fakeConversations
	gw    *fakeGateway
}

func newFixture(ec workflow.ExceptCase) *fixture {
	f := &fixture{
		repo: &fakeRepo{
			workflows: []*workflow.Workflow{refundWorkflow(ec)},
			statuses:  map[kernel.WorkflowID]workflow.RunStatus{},
		},
		convs: &fakeConversations{conv: &conversation.Conversation{
			ID:           "conv-1",
			TenantID:     "tenant-1",
			Platform:     "whatsapp",
			MessageCount: 2,
			StartedAt:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		}},
		gw: &fakeGateway{},
	}

	reg := catalog.Default()
	eval := workflowexec.NewEvaluator(
		reg,
		engine.NewMatcher(reg, engine.NewPredicateEvaluator()),
		fakeScheduler{},
		workflowexec.Config{},
		nodeexec.NewSendMessageExecutor(f.gw),
	)
	f.mp = NewMessageProcessor(f.repo, f.convs, eval, f.gw, sample)
	return f
}

func refundWorkflow(ec workflow.ExceptCase) *workflow.Workflow {
	return &workflow.Workflow{
		ID:         "wf-1",
		TenantID:   "tenant-1",
		Name:       "Refunds",
		Enabled:    true,
		ExceptCase: ec,
		Nodes: []workflow.Node{
			{ID: "t", Kind: catalog.KindTrigger, Config: workflow.NodeConfig{Blocks: []workflow.BlockInstance{
				{Key: catalog.BlockIncomingMessage},
			}}},
			{ID: "c", Kind: catalog.KindCondition, Config: workflow.NodeConfig{Blocks: []workflow.BlockInstance{
				{Key: "message_filter.text", Settings: workflow.BlockSettings{Fields: []workflow.FieldValue{
					{SubKey: "text", Operator: catalog.OpContains, Value: "refund"},
				}}},
			}}},
			{ID: "a", Kind: catalog.KindAction, Config: workflow.NodeConfig{Blocks: []workflow.BlockInstance{
				{Key: catalog.BlockSendMessage, Settings: workflow.BlockSettings{Fields: []workflow.FieldValue{
					{Index: 0, Value: "Please contact billing@example.com"},
				}}},
			}}},
		},
		Edges: []workflow.Edge{{ID: "e1", From: "t", To: "c"}, {ID: "e2", From: "c", To: "a"}},
	}
}

func event(text string) engine.Event {
	return engine.Event{TenantID: "tenant-1", ConversationID: "conv-1", Text: text, MessageType: engine.MessageTypeText}
}

// ============================================================================
// Tests
// ============================================================================

func TestProcessEventExecutesMatchingWorkflow(t *testing.T) {
	f := newFixture(workflow.ExceptSample)

	d := f.mp.ProcessEvent(context.Background(), event("I want a refund"))

	assert.Equal(t, engine.OutcomeExecuted, d.Outcome)
	assert.Equal(t, []string{"Please contact billing@example.com"}, f.gw.texts)
	assert.Equal(t, workflow.StatusSuccess, f.repo.statuses["wf-1"])
	assert.Empty(t, f.convs.autoReply)
}

func TestProcessEventExceptCases(t *testing.T) {
	t.Run("sample", func(t *testing.T) {
		f := newFixture(workflow.ExceptSample)
		d := f.mp.ProcessEvent(context.Background(), event("hello"))

		assert.Equal(t, engine.OutcomeSample, d.Outcome)
		assert.Equal(t, sample, d.Reply)
		assert.Equal(t, []string{sample}, f.gw.texts)
		assert.Empty(t, f.repo.statuses)
	})

	t.Run("move", func(t *testing.T) {
		f := newFixture(workflow.ExceptMove)
		d := f.mp.ProcessEvent(context.Background(), event("hello"))

		assert.Equal(t, engine.OutcomeMove, d.Outcome)
		assert.Equal(t, []bool{false}, f.convs.autoReply)
		assert.Empty(t, f.gw.texts)
	})

	t.Run("ignore", func(t *testing.T) {
		f := newFixture(workflow.ExceptIgnore)
		d := f.mp.ProcessEvent(context.Background(), event("hello"))

		assert.Equal(t, engine.OutcomeIgnore, d.Outcome)
		assert.Empty(t, f.gw.texts)
		assert.Empty(t, f.convs.autoReply)
	})
}

func TestProcessEventUsesEventAttributesWhenStoreFails(t *testing.T) {
	f := newFixture(workflow.ExceptIgnore)
	f.convs.err = conversation.ErrConversationNotFound()

	// Without the stored message count this is treated as a first message
	d := f.mp.ProcessEvent(context.Background(), event("refund"))
	assert.Equal(t, engine.OutcomeIgnore, d.Outcome)

	ev := event("refund")
	ev.ConversationMessageCount = 5
	d = f.mp.ProcessEvent(context.Background(), ev)
	assert.Equal(t, engine.OutcomeExecuted, d.Outcome)
}

func TestProcessEventRepositoryFailure(t *testing.T) {
	f := newFixture(workflow.ExceptSample)
	f.repo.err = errors.New("connection refused")

	d := f.mp.ProcessEvent(context.Background(), event("refund"))

	assert.Equal(t, engine.OutcomeNone, d.Outcome)
	assert.Empty(t, f.gw.texts)
}

func TestHandleContinuation(t *testing.T) {
	f := newFixture(workflow.ExceptIgnore)
	c := &engine.Continuation{
		ID:             "cont-1",
		TenantID:       "tenant-1",
		WorkflowID:     "wf-1",
		ConversationID: "conv-1",
		NodeID:         "c",
		Visited:        []string{"t", "c"},
		Event:          event("refund"),
	}

	require.NoError(t, f.mp.HandleContinuation(context.Background(), c))
	assert.Equal(t, []string{"Please contact billing@example.com"}, f.gw.texts)
	assert.Equal(t, workflow.StatusSuccess, f.repo.statuses["wf-1"])

	f.repo.workflows[0].Enabled = false
	require.NoError(t, f.mp.HandleContinuation(context.Background(), c))
	assert.Len(t, f.gw.texts, 1)

	c.WorkflowID = "deleted"
	assert.NoError(t, f.mp.HandleContinuation(context.Background(), c))
}
