package workflowexec

import (
	"context"
	"errors"
	"log"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/craftable/logx"
	"github.com/Abraxas-365/supportflow/catalog"
	"github.com/Abraxas-365/supportflow/engine"
	"github.com/Abraxas-365/supportflow/pkg/kernel"
	"github.com/Abraxas-365/supportflow/workflow"
	"github.com/google/uuid"
)

const (
	DefaultMaxDepth      = 100
	DefaultActionTimeout = 15 * time.Second
)

// Config bounds one evaluation run
type Config struct {
	MaxDepth      int
	ActionTimeout time.Duration
}

// Evaluator runs events through a tenant's enabled workflows
type Evaluator struct {
	registry  *catalog.Registry
	matcher   *engine.Matcher
	scheduler engine.DelayScheduler
	executors map[string]engine.ActionExecutor
	maxDepth  int
	timeout   time.Duration
	now       func() time.Time
}

func NewEvaluator(
	registry *catalog.Registry,
	matcher *engine.Matcher,
	scheduler engine.DelayScheduler,
	cfg Config,
	executors ...engine.ActionExecutor,
) *Evaluator {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = DefaultActionTimeout
	}

	e := &Evaluator{
		registry:  registry,
		matcher:   matcher,
		scheduler: scheduler,
		executors: make(map[string]engine.ActionExecutor),
		maxDepth:  cfg.MaxDepth,
		timeout:   cfg.ActionTimeout,
		now:       time.Now,
	}
	for _, exec := range executors {
		e.RegisterExecutor(exec)
	}
	return e
}

func (e *Evaluator) RegisterExecutor(exec engine.ActionExecutor) {
	e.executors[exec.BlockKey()] = exec
}

// ============================================================================
// Evaluate
// ============================================================================

// Evaluate tries the enabled workflows in creation order. The first one
// that executes an action or schedules a delay wins and later workflows are
// not evaluated. When none acts, the except case of the first enabled
// workflow decides the outcome.
func (e *Evaluator) Evaluate(ctx context.Context, ev engine.Event, workflows []*workflow.Workflow) engine.Decision {
	enabled := make([]*workflow.Workflow, 0, len(workflows))
	for _, wf := range workflows {
		if wf != nil && wf.Enabled {
			enabled = append(enabled, wf)
		}
	}
	slices.SortStableFunc(enabled, func(a, b *workflow.Workflow) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	decision := engine.Decision{Outcome: engine.OutcomeNone, Runs: []engine.RunResult{}}
	if len(enabled) == 0 {
		return decision
	}

	for _, wf := range enabled {
		result := e.run(ctx, ev, wf)
		decision.Runs = append(decision.Runs, result)

		if result.State == engine.StateDone {
			decision.Outcome = engine.OutcomeExecuted
			decision.WorkflowID = wf.ID
			return decision
		}
	}

	first := enabled[0]
	decision.Outcome = outcomeFor(first.ExceptCase)
	decision.WorkflowID = first.ID
	log.Printf("↪️  No workflow acted on conversation %s, applying except case %q of %s",
		ev.ConversationID, first.ExceptCase, first.ID)
	return decision
}

// Resume continues a paused run from the nodes downstream of its delay
// node. Conditions already passed are not evaluated again.
func (e *Evaluator) Resume(ctx context.Context, c *engine.Continuation, wf *workflow.Workflow) engine.RunResult {
	r := e.newRun(wf, c.Event)
	for _, id := range c.Visited {
		r.visited[id] = true
	}
	r.state = engine.StateExecuting

	log.Printf("▶️  Resuming workflow %s after node %s", wf.ID, c.NodeID)
	err := r.walkChildren(ctx, c.NodeID, c.Depth)
	return r.finish(err)
}

func (e *Evaluator) run(ctx context.Context, ev engine.Event, wf *workflow.Workflow) engine.RunResult {
	r := e.newRun(wf, ev)

	var err error
	for _, trigger := range wf.TriggerNodes() {
		if r.visited[trigger.ID] {
			continue
		}
		if err = r.visit(ctx, trigger.ID, 0); err != nil {
			break
		}
	}
	return r.finish(err)
}

// ============================================================================
// Run
// ============================================================================

type run struct {
	*Evaluator
	wf      *workflow.Workflow
	event   engine.Event
	state   engine.RunState
	visited map[string]bool
	result  engine.RunResult
}

func (e *Evaluator) newRun(wf *workflow.Workflow, ev engine.Event) *run {
	return &run{
		Evaluator: e,
		wf:        wf,
		event:     ev,
		state:     engine.StateAwaitingTrigger,
		visited:   make(map[string]bool),
		result:    engine.RunResult{WorkflowID: wf.ID},
	}
}

func (r *run) visit(ctx context.Context, nodeID string, depth int) error {
	if depth > r.maxDepth {
		return &engine.EvaluationAborted{WorkflowID: r.wf.ID, NodeID: nodeID, Depth: depth}
	}
	if r.visited[nodeID] {
		return nil
	}

	node, ok := r.wf.NodeByID(nodeID)
	if !ok {
		return nil
	}
	r.visited[nodeID] = true

	switch node.Kind {
	case catalog.KindTrigger:
		if !r.matcher.MatchNode(r.wf.ID, *node, r.event) {
			return nil
		}
		if r.state == engine.StateAwaitingTrigger {
			r.state = engine.StateMatching
		}
	case catalog.KindCondition:
		if !r.matcher.MatchNode(r.wf.ID, *node, r.event) {
			return nil
		}
	case catalog.KindAction:
		r.state = engine.StateExecuting
		r.execute(ctx, *node)
	case catalog.KindDelay:
		delay, err := r.delayOf(*node)
		if err != nil {
			logx.Error("Delay node %s of workflow %s ignored: %v", node.ID, r.wf.ID, err)
			return nil
		}
		if delay > 0 {
			r.suspend(ctx, *node, delay, depth)
			return nil
		}
	case catalog.KindEnd:
		return nil
	}

	return r.walkChildren(ctx, nodeID, depth)
}

func (r *run) walkChildren(ctx context.Context, nodeID string, depth int) error {
	for _, edge := range r.wf.Outgoing(nodeID) {
		if err := r.visit(ctx, edge.To, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// execute runs the action blocks of a node in order. A failing block is
// recorded and the next one still runs.
func (r *run) execute(ctx context.Context, node workflow.Node) {
	for i, b := range node.Config.Blocks {
		record := engine.ActionRecord{NodeID: node.ID, BlockKey: b.Key, Index: i}

		if err := r.executeBlock(ctx, node, b); err != nil {
			aerr := &engine.ActionExecutionError{
				WorkflowID: r.wf.ID,
				NodeID:     node.ID,
				BlockKey:   b.Key,
				Index:      i,
				Err:        err,
			}
			logx.Error("Action failed: %v", aerr)
			record.Error = err.Error()
		}

		r.result.Actions = append(r.result.Actions, record)
	}
}

func (r *run) executeBlock(ctx context.Context, node workflow.Node, b workflow.BlockInstance) error {
	entry, fields, err := b.Resolve(r.registry)
	if err != nil {
		return err
	}

	exec, ok := r.executors[entry.Key]
	if !ok {
		return engine.ErrNoExecutor().WithDetail("block_key", entry.Key)
	}

	actionCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// Buffered so an executor that outlives the deadline never blocks
	done := make(chan error, 1)
	go func() {
		done <- exec.Execute(actionCtx, engine.ActionInvocation{
			Event:      r.event,
			WorkflowID: r.wf.ID,
			NodeID:     node.ID,
			Entry:      entry,
			Fields:     fields,
		})
	}()

	select {
	case err = <-done:
		if err != nil && errors.Is(actionCtx.Err(), context.DeadlineExceeded) {
			return errx.Wrap(err, "action timed out", errx.TypeExternal).
				WithDetail("timeout", r.timeout.String())
		}
		return err
	case <-actionCtx.Done():
		return errx.Wrap(actionCtx.Err(), "action timed out", errx.TypeExternal).
			WithDetail("timeout", r.timeout.String())
	}
}

func (r *run) suspend(ctx context.Context, node workflow.Node, delay time.Duration, depth int) {
	visited := make([]string, 0, len(r.visited))
	for _, n := range r.wf.Nodes {
		if r.visited[n.ID] {
			visited = append(visited, n.ID)
		}
	}

	now := r.now()
	c := &engine.Continuation{
		ID:             kernel.NewContinuationID(uuid.NewString()),
		TenantID:       r.wf.TenantID,
		WorkflowID:     r.wf.ID,
		ConversationID: r.event.ConversationID,
		NodeID:         node.ID,
		Depth:          depth,
		Visited:        visited,
		Event:          r.event,
		ResumeAt:       now.Add(delay),
		CreatedAt:      now,
	}

	if r.scheduler == nil {
		r.result.Error = "no delay scheduler configured"
		logx.Error("Workflow %s reached delay node %s without a scheduler", r.wf.ID, node.ID)
		return
	}
	if err := r.scheduler.Schedule(ctx, c, delay); err != nil {
		r.result.Error = err.Error()
		logx.Error("Failed to schedule continuation of workflow %s at node %s: %v", r.wf.ID, node.ID, err)
		return
	}

	r.state = engine.StateExecuting
	r.result.Scheduled = append(r.result.Scheduled, c.ID)
}

func (r *run) delayOf(node workflow.Node) (time.Duration, error) {
	var total time.Duration
	for _, b := range node.Config.Blocks {
		entry, fields, err := b.Resolve(r.registry)
		if err != nil {
			return 0, err
		}
		if entry.Key != catalog.BlockDelay {
			return 0, engine.ErrInvalidDelay().WithDetail("block_key", b.Key)
		}

		inv := engine.ActionInvocation{Fields: fields}
		d, err := DelayDuration(inv.Value("amount"), inv.Value("unit"))
		if err != nil {
			return 0, err
		}
		total += d
	}
	return total, nil
}

func (r *run) finish(err error) engine.RunResult {
	var aborted *engine.EvaluationAborted
	switch {
	case errors.As(err, &aborted):
		logx.Error("Evaluation aborted: %v", aborted)
		r.state = engine.StateAborted
		r.result.Error = aborted.Error()
	case r.result.Acted():
		r.state = engine.StateDone
	default:
		r.state = engine.StateExcepted
	}

	r.result.State = r.state
	switch r.state {
	case engine.StateAborted:
		r.result.Status = workflow.StatusFailed
	case engine.StateDone:
		r.result.Status = workflow.StatusSuccess
		if r.result.Error != "" || slices.ContainsFunc(r.result.Actions, engine.ActionRecord.Failed) {
			r.result.Status = workflow.StatusFailed
		}
	}
	return r.result
}

// DelayDuration converts the configured amount and unit of a delay block
func DelayDuration(amount, unit string) (time.Duration, error) {
	n, err := strconv.ParseFloat(amount, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) || n < 0 {
		return 0, engine.ErrInvalidDelay().WithDetail("amount", amount)
	}

	var base time.Duration
	switch unit {
	case catalog.UnitSeconds, "":
		base = time.Second
	case catalog.UnitMinutes:
		base = time.Minute
	case catalog.UnitHours:
		base = time.Hour
	case catalog.UnitDays:
		base = 24 * time.Hour
	default:
		return 0, engine.ErrInvalidDelay().WithDetail("unit", unit)
	}

	if n > float64(math.MaxInt64/int64(base)) {
		return 0, engine.ErrInvalidDelay().
			WithDetail("amount", amount).
			WithDetail("reason", "delay too long")
	}

	return time.Duration(n * float64(base)), nil
}

func outcomeFor(ec workflow.ExceptCase) engine.Outcome {
	switch ec {
	case workflow.ExceptSample:
		return engine.OutcomeSample
	case workflow.ExceptMove:
		return engine.OutcomeMove
	default:
		return engine.OutcomeIgnore
	}
}
