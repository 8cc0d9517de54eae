package daemon

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/dochub/internal/config"
)

func TestWorkerGroupWaitsForWorkers(t *testing.T) {
	var g WorkerGroup
	var done atomic.Int32

	for i := 0; i < 3; i++ {
		ok := g.Go(func() {
			time.Sleep(20 * time.Millisecond)
			done.Add(1)
		})
		require.True(t, ok)
	}

	require.NoError(t, g.StopAndWait(context.Background()))
	assert.Equal(t, int32(3), done.Load())
}

func TestWorkerGroupRejectsAfterStop(t *testing.T) {
	var g WorkerGroup
	require.NoError(t, g.StopAndWait(context.Background()))
	assert.False(t, g.Go(func() {}))
	assert.False(t, g.Go(nil))
}

func TestWorkerGroupStopTimeout(t *testing.T) {
	var g WorkerGroup
	release := make(chan struct{})
	g.Go(func() { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.Error(t, g.StopAndWait(ctx))
	close(release)
}

func TestTriggerCoalesces(t *testing.T) {
	d := New(&config.Config{}, nil, nil)
	d.Trigger("one")
	d.Trigger("two")
	d.Trigger("three")

	// Only the first fits the queue; the rest fold into it.
	assert.Equal(t, "one", <-d.triggers)
	select {
	case extra := <-d.triggers:
		t.Fatalf("unexpected queued trigger %q", extra)
	default:
	}
}

func TestDaemonRunsStartupBuildAndStops(t *testing.T) {
	var mu sync.Mutex
	var reasons []string

	cfg := &config.Config{}
	cfg.ApplyDefaults()
	cfg.Daemon.IntervalSeconds = 0
	cfg.Daemon.Watch = false

	ctx, cancel := context.WithCancel(context.Background())
	d := New(cfg, func(context.Context) error {
		mu.Lock()
		reasons = append(reasons, "build")
		mu.Unlock()
		cancel()
		return nil
	}, nil)

	err := d.Start(ctx)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"build"}, reasons)
}

func TestDaemonTriggerDuringBuildQueuesOneRerun(t *testing.T) {
	var builds atomic.Int32

	cfg := &config.Config{}
	cfg.ApplyDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	var d *Daemon
	d = New(cfg, func(context.Context) error {
		n := builds.Add(1)
		if n == 1 {
			// Several triggers while "building": exactly one rerun follows.
			d.Trigger("a")
			d.Trigger("b")
			d.Trigger("c")
			return nil
		}
		cancel()
		return nil
	}, nil)

	require.NoError(t, d.Start(ctx))
	assert.Equal(t, int32(2), builds.Load())
}
