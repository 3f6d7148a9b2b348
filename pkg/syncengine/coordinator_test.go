package syncengine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingRunner struct {
	mu      sync.Mutex
	calls   []Request
	started chan Request
	release chan struct{}
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{
		started: make(chan Request, 8),
		release: make(chan struct{}, 8),
	}
}

func (r *blockingRunner) Sync(_ context.Context, req Request) error {
	r.mu.Lock()
	r.calls = append(r.calls, req)
	r.mu.Unlock()
	r.started <- req
	<-r.release
	return nil
}

func (r *blockingRunner) snapshot() []Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Request, len(r.calls))
	copy(out, r.calls)
	return out
}

func TestCoordinator_QueuesWhileInFlight(t *testing.T) {
	runner := newBlockingRunner()
	c := NewCoordinator(runner, time.Hour, nil)

	done := make(chan error, 1)
	go func() {
		done <- c.RequestSync(context.Background(), Request{Mode: ModeFull, AllowPush: true})
	}()
	<-runner.started

	// Both mid-flight requests merge into one queued pass.
	require.NoError(t, c.RequestSync(context.Background(), Request{Mode: ModePush, AllowPush: true}))
	require.NoError(t, c.RequestSync(context.Background(), Request{Mode: ModePull, AllowPush: true}))

	runner.release <- struct{}{} // finish first pass
	<-runner.started             // queued pass starts
	runner.release <- struct{}{}

	require.NoError(t, <-done)
	calls := runner.snapshot()
	require.Len(t, calls, 2, "mid-flight requests collapse into a single re-run")
	assert.Equal(t, Request{Mode: ModeFull, AllowPush: true}, calls[0])
	assert.Equal(t, Request{Mode: ModeFull, AllowPush: true}, calls[1], "push + pull merge to full")
}

func TestCoordinator_SequentialRunsDoNotQueue(t *testing.T) {
	runner := newBlockingRunner()
	c := NewCoordinator(runner, time.Hour, nil)

	go func() { runner.release <- struct{}{} }()
	require.NoError(t, c.RequestSync(context.Background(), Request{Mode: ModePush, AllowPush: true}))
	go func() { runner.release <- struct{}{} }()
	require.NoError(t, c.RequestSync(context.Background(), Request{Mode: ModePull, AllowPush: true}))

	calls := runner.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, ModePush, calls[0].Mode)
	assert.Equal(t, ModePull, calls[1].Mode)
}

func TestMergeRequests(t *testing.T) {
	tests := []struct {
		name     string
		queued   *Request
		incoming Request
		want     Request
	}{
		{
			name:     "nothing queued",
			incoming: Request{Mode: ModePush, AllowPush: true},
			want:     Request{Mode: ModePush, AllowPush: true},
		},
		{
			name:     "full dominates push",
			queued:   &Request{Mode: ModeFull, AllowPush: true},
			incoming: Request{Mode: ModePush, AllowPush: true},
			want:     Request{Mode: ModeFull, AllowPush: true},
		},
		{
			name:     "push and pull combine to full",
			queued:   &Request{Mode: ModePush, AllowPush: true},
			incoming: Request{Mode: ModePull, AllowPush: true},
			want:     Request{Mode: ModeFull, AllowPush: true},
		},
		{
			name:     "allowPush false dominates",
			queued:   &Request{Mode: ModePull, AllowPush: false},
			incoming: Request{Mode: ModePull, AllowPush: true},
			want:     Request{Mode: ModePull, AllowPush: false},
		},
		{
			name:     "same mode stays",
			queued:   &Request{Mode: ModePull, AllowPush: true},
			incoming: Request{Mode: ModePull, AllowPush: true},
			want:     Request{Mode: ModePull, AllowPush: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mergeRequests(tt.queued, tt.incoming))
		})
	}
}

func TestCoordinator_DebounceCoalescesNotifies(t *testing.T) {
	runner := newBlockingRunner()
	c := NewCoordinator(runner, 20*time.Millisecond, nil)

	for i := 0; i < 5; i++ {
		c.NotifyLocalChange()
	}
	runner.release <- struct{}{}

	select {
	case req := <-runner.started:
		assert.Equal(t, Request{Mode: ModePush, AllowPush: true}, req)
	case <-time.After(time.Second):
		t.Fatal("debounced push never fired")
	}

	// Quiet period with no further notifies: no second pass.
	select {
	case <-runner.started:
		t.Fatal("burst of notifies must coalesce into one push")
	case <-time.After(100 * time.Millisecond):
	}
}
