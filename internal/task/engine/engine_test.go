package engine

import (
	"context"
	"errors"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"idlecraft/internal/eventbus"
	logx "idlecraft/pkg/logx"
)

func startEngine(t *testing.T, cfg Config) (*Service, <-chan eventbus.Event) {
	t.Helper()
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(64)
	cfg.Enabled = true
	s := New(cfg, logx.Nop(), bus)
	s.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.Stop(ctx)
		unsub()
	})
	return s, ch
}

func waitEvent(t *testing.T, ch <-chan eventbus.Event, typ string) TaskEvent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-ch:
			if e.Type == typ {
				return e.Data.(TaskEvent)
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", typ)
		}
	}
}

func TestDisabledAndStopped(t *testing.T) {
	t.Parallel()
	s := New(Config{}, logx.Nop(), nil)
	require.ErrorIs(t, s.Enqueue(Task{Name: "save.flush", Run: func(context.Context) error { return nil }}), ErrDisabled)

	s = New(Config{Enabled: true}, logx.Nop(), nil)
	require.ErrorIs(t, s.Enqueue(Task{Name: "save.flush", Run: func(context.Context) error { return nil }}), ErrStopped)
	require.Error(t, s.Enqueue(Task{Name: "", Run: func(context.Context) error { return nil }}))
}

func TestRunsTaskAndRecordsHistory(t *testing.T) {
	t.Parallel()
	s, ch := startEngine(t, Config{Workers: 1})
	var ran atomic.Bool
	require.NoError(t, s.Enqueue(Task{Name: "save.flush", Run: func(ctx context.Context) error {
		ran.Store(true)
		return nil
	}}))
	ev := waitEvent(t, ch, eventbus.TaskFinished)
	require.Equal(t, "save.flush", ev.Name)
	require.Equal(t, 1, ev.Attempts)
	require.True(t, ran.Load())

	require.Eventually(t, func() bool { return len(s.Snapshot().History) == 1 }, time.Second, 5*time.Millisecond)
}

func TestRetriesThenSucceeds(t *testing.T) {
	t.Parallel()
	s, ch := startEngine(t, Config{Workers: 1, RetryMax: 3})
	var calls atomic.Int32
	require.NoError(t, s.Enqueue(Task{
		Name: "save.flush",
		Opt:  TaskOptions{RetryBase: time.Millisecond, RetryMaxDelay: 2 * time.Millisecond},
		Run: func(ctx context.Context) error {
			if calls.Add(1) < 3 {
				return errors.New("database is locked")
			}
			return nil
		},
	}))
	ev := waitEvent(t, ch, eventbus.TaskFinished)
	require.Equal(t, 3, ev.Attempts)
}

func TestNoRetryStopsImmediately(t *testing.T) {
	t.Parallel()
	s, ch := startEngine(t, Config{Workers: 1, RetryMax: 5})
	var calls atomic.Int32
	require.NoError(t, s.Enqueue(Task{Name: "save.flush", Run: func(ctx context.Context) error {
		calls.Add(1)
		return NoRetry(errors.New("invalid slot"))
	}}))
	ev := waitEvent(t, ch, eventbus.TaskFailed)
	require.Equal(t, 1, ev.Attempts)
	require.Equal(t, "invalid slot", ev.Error)
	require.Equal(t, int32(1), calls.Load())
}

func TestPanicBecomesFailure(t *testing.T) {
	t.Parallel()
	s, ch := startEngine(t, Config{Workers: 1})
	require.NoError(t, s.Enqueue(Task{Name: "journal", Opt: TaskOptions{RetryBase: time.Millisecond, RetryMaxDelay: time.Millisecond}, Run: func(ctx context.Context) error {
		panic("boom")
	}}))
	ev := waitEvent(t, ch, eventbus.TaskFailed)
	require.Contains(t, ev.Error, "panic: boom")

	// The worker survives the panic.
	require.NoError(t, s.Enqueue(Task{Name: "journal", Run: func(ctx context.Context) error { return nil }}))
	waitEvent(t, ch, eventbus.TaskFinished)
}

func TestOverlapSkipCollapsesBurst(t *testing.T) {
	t.Parallel()
	s, ch := startEngine(t, Config{Workers: 1})
	release := make(chan struct{})
	run := func(ctx context.Context) error {
		<-release
		return nil
	}
	task := Task{Name: "save.flush", Opt: TaskOptions{Overlap: OverlapSkipIfRunning}, Run: run}

	require.NoError(t, s.Enqueue(task))
	require.ErrorIs(t, s.Enqueue(task), ErrOverlapSkip)
	require.True(t, s.StateFor("", "save.flush").Busy())
	require.Equal(t, uint64(1), s.Snapshot().Skipped)

	close(release)
	waitEvent(t, ch, eventbus.TaskFinished)
	require.Eventually(t, func() bool { return !s.StateFor("", "save.flush").Busy() }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Enqueue(task))
}

func TestQueueFullDrops(t *testing.T) {
	t.Parallel()
	s, _ := startEngine(t, Config{Workers: 1, QueueSize: 1})
	block := make(chan struct{})
	defer close(block)
	started := make(chan struct{})
	require.NoError(t, s.Enqueue(Task{Name: "a", Run: func(ctx context.Context) error {
		close(started)
		<-block
		return nil
	}}))
	<-started
	require.NoError(t, s.Enqueue(Task{Name: "b", Run: func(ctx context.Context) error { return nil }}))
	require.ErrorIs(t, s.Enqueue(Task{Name: "c", Run: func(ctx context.Context) error { return nil }}), ErrQueueFull)
	require.Equal(t, uint64(1), s.Snapshot().DroppedQueueFull)
}

func TestTimeoutAppliesDefault(t *testing.T) {
	t.Parallel()
	s, ch := startEngine(t, Config{Workers: 1, DefaultTimeout: 10 * time.Millisecond})
	require.NoError(t, s.Enqueue(Task{Name: "slow", Opt: TaskOptions{RetryBase: time.Millisecond, RetryMaxDelay: time.Millisecond}, Run: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}))
	ev := waitEvent(t, ch, eventbus.TaskFailed)
	require.Contains(t, ev.Error, "deadline exceeded")
}

func TestBackoffBounds(t *testing.T) {
	t.Parallel()
	opt := TaskOptions{}.withDefaults(Config{RetryMax: 3})
	rng := rand.New(rand.NewSource(1))
	for retry := 1; retry <= 10; retry++ {
		d := backoffDelay(opt, retry, rng)
		require.GreaterOrEqual(t, d, time.Duration(0))
		require.LessOrEqual(t, d, opt.RetryMaxDelay)
	}
	hinted := backoffDelayWithHint(opt, 1, RetryAfter(errors.New("busy"), time.Hour), rng)
	require.LessOrEqual(t, hinted, opt.RetryMaxDelay)
	require.True(t, IsNoRetry(NoRetry(errors.New("x"))))
	require.Nil(t, NoRetry(nil))
}
