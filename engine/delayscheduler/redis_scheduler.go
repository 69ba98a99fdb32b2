package delayscheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/craftable/logx"
	"github.com/Abraxas-365/supportflow/engine"
	"github.com/Abraxas-365/supportflow/pkg/kernel"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

const (
	delayedContinuationsKey = "supportflow:delayed_continuations" // Sorted set
	continuationPrefix      = "supportflow:continuation:"         // Payload keys
	workflowIndexPrefix     = "supportflow:workflow_continuations:"
	payloadGrace            = 24 * time.Hour
)

var _ engine.DelayScheduler = (*RedisDelayScheduler)(nil)

// Options tune the poller
type Options struct {
	PollSpec  string
	BatchSize int
}

// RedisDelayScheduler keeps paused runs in a sorted set scored by resume
// time. A continuation is claimed by removing it from the set, so it fires
// at most once across every poller sharing the Redis instance.
type RedisDelayScheduler struct {
	redis          *redis.Client
	onContinuation engine.ContinuationHandler
	pollSpec       string
	batchSize      int64
	now            func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

func NewRedisDelayScheduler(redisClient *redis.Client, opts Options) *RedisDelayScheduler {
	if opts.PollSpec == "" {
		opts.PollSpec = "@every 1s"
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	return &RedisDelayScheduler{
		redis:     redisClient,
		pollSpec:  opts.PollSpec,
		batchSize: int64(opts.BatchSize),
		now:       time.Now,
	}
}

// SetHandler registers the function resuming due continuations
func (r *RedisDelayScheduler) SetHandler(handler engine.ContinuationHandler) {
	r.onContinuation = handler
}

// Schedule persists a continuation to resume after delay
func (r *RedisDelayScheduler) Schedule(ctx context.Context, c *engine.Continuation, delay time.Duration) error {
	if c.ID.IsEmpty() {
		c.ID = kernel.NewContinuationID(uuid.NewString())
	}
	now := r.now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.ResumeAt = now.Add(delay)

	data, err := json.Marshal(c)
	if err != nil {
		return errx.Wrap(err, "failed to marshal continuation", errx.TypeInternal)
	}

	pipe := r.redis.TxPipeline()
	pipe.Set(ctx, continuationPrefix+c.ID.String(), data, delay+payloadGrace)
	pipe.SAdd(ctx, workflowIndexPrefix+c.WorkflowID.String(), c.ID.String())
	pipe.ZAdd(ctx, delayedContinuationsKey, &redis.Z{
		Score:  float64(c.ResumeAt.UnixMilli()),
		Member: c.ID.String(),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return engine.ErrScheduleFailed().
			WithDetail("continuation_id", c.ID.String()).
			WithCause(err)
	}

	log.Printf("⏰ Scheduled continuation %s of workflow %s for %v (delay: %v)",
		c.ID, c.WorkflowID, c.ResumeAt.Format(time.RFC3339), delay)
	return nil
}

// ============================================================================
// Worker
// ============================================================================

// Start polls for due continuations on the configured cron spec
func (r *RedisDelayScheduler) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cron != nil {
		log.Println("⚠️  Delay scheduler worker already running")
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(r.pollSpec, func() {
		if _, err := r.ProcessDue(ctx); err != nil {
			logx.Error("Error processing due continuations: %v", err)
		}
	}); err != nil {
		return errx.Wrap(err, "invalid delay poll spec", errx.TypeValidation).
			WithDetail("spec", r.pollSpec)
	}

	log.Printf("🚀 Starting delay scheduler worker (%s)...", r.pollSpec)
	c.Start()
	r.cron = c
	return nil
}

// Stop stops polling and waits for a running poll to finish
func (r *RedisDelayScheduler) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()

	if c == nil {
		return
	}

	log.Println("🛑 Stopping delay scheduler worker...")
	<-c.Stop().Done()
	log.Println("⏹️  Delay scheduler worker stopped")
}

// ProcessDue claims and resumes up to one batch of due continuations and
// returns how many were claimed
func (r *RedisDelayScheduler) ProcessDue(ctx context.Context) (int, error) {
	now := r.now().UnixMilli()

	ids, err := r.redis.ZRangeByScore(ctx, delayedContinuationsKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now, 10),
		Count: r.batchSize,
	}).Result()
	if err != nil {
		return 0, errx.Wrap(err, "failed to fetch due continuations", errx.TypeInternal)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	claimed := 0
	for _, id := range ids {
		removed, err := r.redis.ZRem(ctx, delayedContinuationsKey, id).Result()
		if err != nil || removed == 0 {
			// Another worker claimed it
			continue
		}
		claimed++
		r.resume(ctx, id)
	}

	return claimed, nil
}

func (r *RedisDelayScheduler) resume(ctx context.Context, id string) {
	log.Printf("▶️  Resuming continuation: %s", id)

	c, err := r.load(ctx, id)
	if err != nil {
		logx.Error("Failed to load continuation %s: %v", id, err)
		return
	}
	defer r.forget(ctx, c)

	if r.onContinuation == nil {
		logx.Error("No handler registered for continuation %s", id)
		return
	}
	if err := r.onContinuation(ctx, c); err != nil {
		logx.Error("Failed to resume continuation %s: %v", id, err)
		return
	}

	log.Printf("✅ Completed continuation: %s", id)
}

// ============================================================================
// Queries and cancellation
// ============================================================================

// PendingCount returns the number of continuations waiting to resume
func (r *RedisDelayScheduler) PendingCount(ctx context.Context) (int64, error) {
	n, err := r.redis.ZCard(ctx, delayedContinuationsKey).Result()
	if err != nil {
		return 0, errx.Wrap(err, "failed to count continuations", errx.TypeInternal)
	}
	return n, nil
}

// GetContinuation returns a pending continuation
func (r *RedisDelayScheduler) GetContinuation(ctx context.Context, id kernel.ContinuationID) (*engine.Continuation, error) {
	return r.load(ctx, id.String())
}

// Cancel drops a continuation before it fires
func (r *RedisDelayScheduler) Cancel(ctx context.Context, id kernel.ContinuationID) error {
	if err := r.redis.ZRem(ctx, delayedContinuationsKey, id.String()).Err(); err != nil {
		return errx.Wrap(err, "failed to cancel continuation", errx.TypeInternal)
	}

	c, err := r.load(ctx, id.String())
	if err != nil {
		if errx.IsType(err, errx.TypeNotFound) {
			return nil
		}
		return err
	}
	r.forget(ctx, c)
	return nil
}

// CancelWorkflow drops every pending continuation of a workflow and returns
// how many were still waiting
func (r *RedisDelayScheduler) CancelWorkflow(ctx context.Context, workflowID kernel.WorkflowID) (int, error) {
	indexKey := workflowIndexPrefix + workflowID.String()

	ids, err := r.redis.SMembers(ctx, indexKey).Result()
	if err != nil {
		return 0, errx.Wrap(err, "failed to list workflow continuations", errx.TypeInternal)
	}

	cancelled := 0
	for _, id := range ids {
		removed, err := r.redis.ZRem(ctx, delayedContinuationsKey, id).Result()
		if err != nil {
			return cancelled, errx.Wrap(err, "failed to cancel continuation", errx.TypeInternal).
				WithDetail("continuation_id", id)
		}
		cancelled += int(removed)
		r.redis.Del(ctx, continuationPrefix+id)
	}
	r.redis.Del(ctx, indexKey)

	return cancelled, nil
}

func (r *RedisDelayScheduler) load(ctx context.Context, id string) (*engine.Continuation, error) {
	data, err := r.redis.Get(ctx, continuationPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, engine.ErrContinuationNotFound().WithDetail("continuation_id", id)
	}
	if err != nil {
		return nil, errx.Wrap(err, "failed to read continuation", errx.TypeInternal)
	}

	var c engine.Continuation
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errx.Wrap(err, fmt.Sprintf("corrupt continuation %s", id), errx.TypeInternal)
	}
	return &c, nil
}

func (r *RedisDelayScheduler) forget(ctx context.Context, c *engine.Continuation) {
	r.redis.Del(ctx, continuationPrefix+c.ID.String())
	r.redis.SRem(ctx, workflowIndexPrefix+c.WorkflowID.String(), c.ID.String())
}
