package delayscheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/supportflow/engine"
	"github.com/Abraxas-365/supportflow/pkg/kernel"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newScheduler(t *testing.T) (*RedisDelayScheduler, *redis.Client, *clock) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clk := &clock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := NewRedisDelayScheduler(client, Options{BatchSize: 10})
	s.now = clk.Now
	return s, client, clk
}

func continuation(id string, wf string) *engine.Continuation {
	return &engine.Continuation{
		ID:             kernel.ContinuationID(id),
		TenantID:       "tenant-1",
		WorkflowID:     kernel.WorkflowID(wf),
		ConversationID: "conv-1",
		NodeID:         "delay",
		Visited:        []string{"t", "delay"},
		Event:          engine.Event{TenantID: "tenant-1", ConversationID: "conv-1", Text: "refund", ConversationMessageCount: 2},
	}
}

func TestScheduleAndProcessDue(t *testing.T) {
	ctx := context.Background()
	s, _, clk := newScheduler(t)

	var resumed []*engine.Continuation
	s.SetHandler(func(_ context.Context, c *engine.Continuation) error {
		resumed = append(resumed, c)
		return nil
	})

	require.NoError(t, s.Schedule(ctx, continuation("soon", "wf-1"), time.Minute))
	require.NoError(t, s.Schedule(ctx, continuation("later", "wf-1"), time.Hour))

	pending, err := s.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pending)

	n, err := s.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	clk.Advance(2 * time.Minute)
	n, err = s.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, resumed, 1)
	got := resumed[0]
	assert.Equal(t, kernel.ContinuationID("soon"), got.ID)
	assert.Equal(t, []string{"t", "delay"}, got.Visited)
	assert.Equal(t, "refund", got.Event.Text)
	assert.True(t, got.ResumeAt.Equal(time.Date(2024, 1, 1, 12, 1, 0, 0, time.UTC)))

	// Payload is gone once resumed
	_, err = s.GetContinuation(ctx, "soon")
	assert.True(t, errx.IsType(err, errx.TypeNotFound))

	// A claimed continuation never fires twice
	n, err = s.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, resumed, 1)

	pending, err = s.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)
}

func TestHandlerFailureDoesNotRetry(t *testing.T) {
	ctx := context.Background()
	s, _, clk := newScheduler(t)

	calls := 0
	s.SetHandler(func(context.Context, *engine.Continuation) error {
		calls++
		return errors.New("workflow gone")
	})

	require.NoError(t, s.Schedule(ctx, continuation("c1", "wf-1"), time.Second))
	clk.Advance(time.Minute)

	_, err := s.ProcessDue(ctx)
	require.NoError(t, err)
	_, err = s.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestConcurrentPollersClaimOnce(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	clk := &clock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}

	var fired atomic.Int32
	handler := func(context.Context, *engine.Continuation) error {
		fired.Add(1)
		return nil
	}

	var pollers []*RedisDelayScheduler
	for range 4 {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		p := NewRedisDelayScheduler(client, Options{})
		p.now = clk.Now
		p.SetHandler(handler)
		pollers = append(pollers, p)
	}

	for i := range 20 {
		id := string(rune('a' + i))
		require.NoError(t, pollers[0].Schedule(ctx, continuation(id, "wf-1"), time.Second))
	}
	clk.Advance(time.Minute)

	var wg sync.WaitGroup
	for _, p := range pollers {
		wg.Add(1)
		go func(p *RedisDelayScheduler) {
			defer wg.Done()
			for {
				n, err := p.ProcessDue(ctx)
				if err != nil || n == 0 {
					return
				}
			}
		}(p)
	}
	wg.Wait()

	assert.Equal(t, int32(20), fired.Load())
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	s, _, clk := newScheduler(t)

	fired := 0
	s.SetHandler(func(context.Context, *engine.Continuation) error {
		fired++
		return nil
	})

	require.NoError(t, s.Schedule(ctx, continuation("a", "wf-1"), time.Minute))
	require.NoError(t, s.Schedule(ctx, continuation("b", "wf-1"), time.Minute))
	require.NoError(t, s.Schedule(ctx, continuation("c", "wf-2"), time.Minute))

	require.NoError(t, s.Cancel(ctx, "c"))
	require.NoError(t, s.Cancel(ctx, "missing"))

	n, err := s.CancelWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.CancelWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Zero(t, n)

	pending, err := s.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)

	clk.Advance(time.Hour)
	_, err = s.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, fired)
}

func TestStartPollsOnCron(t *testing.T) {
	ctx := context.Background()
	s, _, clk := newScheduler(t)

	var fired atomic.Int32
	s.SetHandler(func(context.Context, *engine.Continuation) error {
		fired.Add(1)
		return nil
	})
	require.NoError(t, s.Schedule(ctx, continuation("x", "wf-1"), time.Second))
	clk.Advance(time.Minute)

	require.NoError(t, s.Start(ctx))
	defer s.Stop()

	assert.Eventually(t, func() bool { return fired.Load() == 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestStartRejectsBadSpec(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := NewRedisDelayScheduler(client, Options{PollSpec: "every now and then"})
	assert.Error(t, s.Start(context.Background()))
}
