package msgprocessor

import (
	"context"
	"log"
	"strings"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/craftable/logx"
	"github.com/Abraxas-365/supportflow/engine"
	"github.com/Abraxas-365/supportflow/engine/workflowexec"
	"github.com/Abraxas-365/supportflow/workflow"
)

// MessageProcessor is the ingestion entry point of the engine. It never
// fails an event: every evaluation problem ends in a decision.
type MessageProcessor struct {
	workflowRepo  workflow.WorkflowRepository
	conversations engine.ConversationStore
	evaluator     *workflowexec.Evaluator
	gateway       engine.MessageGateway
	sampleReply   string
}

func NewMessageProcessor(
	workflowRepo workflow.WorkflowRepository,
	conversations engine.ConversationStore,
	evaluator *workflowexec.Evaluator,
	gateway engine.MessageGateway,
	sampleReply string,
) *MessageProcessor {
	return &MessageProcessor{
		workflowRepo:  workflowRepo,
		conversations: conversations,
		evaluator:     evaluator,
		gateway:       gateway,
		sampleReply:   sampleReply,
	}
}

// ProcessEvent evaluates an inbound message against the tenant's enabled
// workflows and applies the except case when none acted
func (mp *MessageProcessor) ProcessEvent(ctx context.Context, ev engine.Event) engine.Decision {
	log.Printf("🚀 Processing event for conversation %s of tenant %s", ev.ConversationID, ev.TenantID)

	ev = mp.enrich(ctx, ev)

	workflows, err := mp.workflowRepo.FindEnabled(ctx, ev.TenantID)
	if err != nil {
		logx.Error("Failed to load enabled workflows of tenant %s: %v", ev.TenantID, err)
		return engine.Decision{Outcome: engine.OutcomeNone, Runs: []engine.RunResult{}}
	}

	decision := mp.evaluator.Evaluate(ctx, ev, workflows)
	for _, run := range decision.Runs {
		mp.recordStatus(ctx, run)
	}

	switch decision.Outcome {
	case engine.OutcomeSample:
		decision.Reply = mp.sampleReply
		if strings.TrimSpace(mp.sampleReply) == "" {
			logx.Error("Except case sample reached with no sample reply configured")
			break
		}
		if err := mp.gateway.Send(ctx, ev.TenantID, ev.ConversationID, mp.sampleReply); err != nil {
			logx.Error("Failed to send sample reply to conversation %s: %v", ev.ConversationID, err)
		}
	case engine.OutcomeMove:
		if err := mp.conversations.SetAIAutoReply(ctx, ev.TenantID, ev.ConversationID, false); err != nil {
			logx.Error("Failed to hand conversation %s to an agent: %v", ev.ConversationID, err)
		} else {
			log.Printf("🙋 Conversation %s moved to a human agent", ev.ConversationID)
		}
	}

	log.Printf("✅ Event for conversation %s resolved as %s", ev.ConversationID, decision.Outcome)
	return decision
}

// HandleContinuation resumes a delayed run. Deleted or disabled workflows
// are skipped.
func (mp *MessageProcessor) HandleContinuation(ctx context.Context, c *engine.Continuation) error {
	wf, err := mp.workflowRepo.FindByID(ctx, c.WorkflowID, c.TenantID)
	if err != nil {
		if errx.IsType(err, errx.TypeNotFound) {
			log.Printf("⚠️  Workflow %s of continuation %s no longer exists", c.WorkflowID, c.ID)
			return nil
		}
		return err
	}
	if !wf.Enabled {
		log.Printf("⚠️  Workflow %s is disabled, dropping continuation %s", wf.ID, c.ID)
		return nil
	}

	run := mp.evaluator.Resume(ctx, c, wf)
	mp.recordStatus(ctx, run)
	return nil
}

// enrich fills attributes the bridge did not send from the conversation
// store. A store failure leaves the event as received.
func (mp *MessageProcessor) enrich(ctx context.Context, ev engine.Event) engine.Event {
	conv, err := mp.conversations.FindByID(ctx, ev.TenantID, ev.ConversationID)
	if err != nil {
		logx.Error("Failed to read conversation %s: %v", ev.ConversationID, err)
		return ev
	}

	if ev.ConversationMessageCount == 0 {
		ev.ConversationMessageCount = conv.MessageCount
	}
	if ev.ConversationStartedAt.IsZero() {
		ev.ConversationStartedAt = conv.StartedAt
	}
	if ev.Platform == "" {
		ev.Platform = conv.Platform
	}
	if ev.CustomerPhoneNumber == "" {
		ev.CustomerPhoneNumber = conv.CustomerPhoneNumber
	}
	if ev.IntegratedPhoneNumber == "" {
		ev.IntegratedPhoneNumber = conv.IntegratedPhoneNumber
	}
	return ev
}

func (mp *MessageProcessor) recordStatus(ctx context.Context, run engine.RunResult) {
	if run.Status == "" {
		return
	}
	if err := mp.workflowRepo.UpdateStatus(ctx, run.WorkflowID, run.Status); err != nil {
		logx.Error("Failed to record status of workflow %s: %v", run.WorkflowID, err)
	}
}
