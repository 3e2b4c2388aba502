package browse

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	applied []string
}

func (r *recorder) apply(q string, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applied = append(r.applied, q)
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.applied...)
}

func waitSettled(t *testing.T, s interface{ Wait(context.Context) error }) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
}

func TestScheduler_CommitsSynchronously(t *testing.T) {
	gate := make(chan struct{})
	rec := &recorder{}
	s := NewScheduler[string](func(ctx context.Context, q string) (string, error) {
		<-gate
		return q, nil
	}, rec.apply, nil, nil)
	defer s.Close()

	s.Input("red")
	assert.Equal(t, "red", s.Committed())
	assert.Equal(t, "", s.Effective())
	assert.True(t, s.Pending())

	close(gate)
	waitSettled(t, s)

	assert.Equal(t, "red", s.Effective())
	assert.False(t, s.Pending())
	assert.Equal(t, []string{"red"}, rec.got())
}

func TestScheduler_LastWriteWins(t *testing.T) {
	started := make(chan string, 4)
	release := make(chan struct{})
	rec := &recorder{}

	s := NewScheduler[string](func(ctx context.Context, q string) (string, error) {
		started <- q
		if q == "a" {
			// Finish the stale compute anyway: its result must still be discarded.
			<-release
		}
		return q, nil
	}, rec.apply, nil, nil)
	defer s.Close()

	s.Input("a")
	require.Equal(t, "a", <-started)

	s.Input("ab")
	assert.Equal(t, "ab", s.Committed())
	assert.True(t, s.Pending())

	close(release)
	waitSettled(t, s)

	assert.Equal(t, "ab", s.Effective())
	assert.Equal(t, []string{"ab"}, rec.got())
}

func TestScheduler_SupersedeCancelsRunningCompute(t *testing.T) {
	cancelled := make(chan struct{})
	started := make(chan struct{}, 4)
	rec := &recorder{}

	s := NewScheduler[string](func(ctx context.Context, q string) (string, error) {
		started <- struct{}{}
		if q == "slow" {
			<-ctx.Done()
			close(cancelled)
			return "", ctx.Err()
		}
		return q, nil
	}, rec.apply, nil, nil)
	defer s.Close()

	s.Input("slow")
	<-started
	s.Input("fast")

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("stale compute was not cancelled")
	}
	waitSettled(t, s)
	assert.Equal(t, []string{"fast"}, rec.got())
}

func TestScheduler_PendingStaysTrueAcrossSupersedes(t *testing.T) {
	release := make(chan struct{})
	s := NewScheduler[string](func(ctx context.Context, q string) (string, error) {
		select {
		case <-release:
			return q, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}, func(string, string) {}, nil, nil)
	defer s.Close()

	for _, q := range []string{"a", "ab", "abc", "abcd"} {
		s.Input(q)
		assert.True(t, s.Pending())
	}

	close(release)
	waitSettled(t, s)
	assert.False(t, s.Pending())
	assert.Equal(t, "abcd", s.Effective())
}

func TestScheduler_BurstAppliesOnlyLatest(t *testing.T) {
	rec := &recorder{}
	s := NewScheduler[string](func(ctx context.Context, q string) (string, error) {
		return q, nil
	}, rec.apply, nil, nil)
	defer s.Close()

	for _, q := range []string{"r", "re", "red"} {
		s.Input(q)
	}
	waitSettled(t, s)

	got := rec.got()
	require.NotEmpty(t, got)
	assert.Equal(t, "red", got[len(got)-1])
	assert.Equal(t, "red", s.Effective())
}

func TestScheduler_RefreshRecomputesCommitted(t *testing.T) {
	rec := &recorder{}
	s := NewScheduler[string](func(ctx context.Context, q string) (string, error) {
		return q, nil
	}, rec.apply, nil, nil)
	defer s.Close()

	s.Input("red")
	waitSettled(t, s)
	s.Refresh()
	waitSettled(t, s)

	assert.Equal(t, []string{"red", "red"}, rec.got())
}

func TestScheduler_NotifiesOnChange(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	s := NewScheduler[string](func(ctx context.Context, q string) (string, error) {
		return q, nil
	}, func(string, string) {}, func() {
		mu.Lock()
		calls++
		mu.Unlock()
	}, nil)
	defer s.Close()

	s.Input("x")
	waitSettled(t, s)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestScheduler_WaitWithoutWork(t *testing.T) {
	s := NewScheduler[int](func(ctx context.Context, q string) (int, error) { return 0, nil },
		func(string, int) {}, nil, nil)
	defer s.Close()

	assert.NoError(t, s.Wait(context.Background()))
	assert.False(t, s.Pending())
}

func TestScheduler_CloseClearsPending(t *testing.T) {
	started := make(chan struct{}, 2)
	s := NewScheduler[string](func(ctx context.Context, q string) (string, error) {
		started <- struct{}{}
		<-ctx.Done()
		return "", ctx.Err()
	}, func(string, string) {}, nil, nil)

	s.Input("stuck")
	<-started
	s.Input("queued")
	require.True(t, s.Pending())

	s.Close()
	assert.False(t, s.Pending())
	assert.NoError(t, s.Wait(context.Background()))

	s.Input("after close")
	assert.False(t, s.Pending())
	assert.Equal(t, "after close", s.Committed())
}
