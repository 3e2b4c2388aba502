package browse

import (
	"context"
	"sync"
)

type ComputeFunc[T any] func(ctx context.Context, query string) (T, error)

type ApplyFunc[T any] func(query string, v T)

type task struct {
	seq   uint64
	query string
	ctx   context.Context
}

// Scheduler separates the committed query, which changes synchronously on
// every input, from the effective query, which follows on a deferred lane.
// The lane holds at most one task: a newer input replaces a task that has not
// started and cancels one that is computing. A result is applied only if no
// newer input arrived while it was computed.
type Scheduler[T any] struct {
	compute  ComputeFunc[T]
	apply    ApplyFunc[T]
	onChange func()
	metrics  *Metrics

	base      context.Context
	stop      context.CancelFunc
	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	mu        sync.Mutex
	committed string
	effective string
	seq       uint64
	next      *task
	cancel    context.CancelFunc
	settled   chan struct{}
}

func NewScheduler[T any](compute ComputeFunc[T], apply ApplyFunc[T], onChange func(), metrics *Metrics) *Scheduler[T] {
	base, stop := context.WithCancel(context.Background())
	s := &Scheduler[T]{
		compute:  compute,
		apply:    apply,
		onChange: onChange,
		metrics:  metrics,
		base:     base,
		stop:     stop,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

// Input commits text immediately and schedules the deferred recompute.
func (s *Scheduler[T]) Input(text string) {
	s.mu.Lock()
	s.committed = text
	s.schedule(text)
	s.mu.Unlock()

	s.signal()
}

// Refresh schedules a recompute of the committed query, e.g. after the
// underlying data changed.
func (s *Scheduler[T]) Refresh() {
	s.mu.Lock()
	s.schedule(s.committed)
	s.mu.Unlock()

	s.signal()
}

// schedule must be called with s.mu held.
func (s *Scheduler[T]) schedule(query string) {
	if s.base.Err() != nil {
		return
	}

	s.seq++
	if s.cancel != nil {
		s.cancel()
		s.metrics.superseded()
	}
	ctx, cancel := context.WithCancel(s.base)
	s.cancel = cancel
	s.next = &task{seq: s.seq, query: query, ctx: ctx}

	if s.settled == nil {
		s.settled = make(chan struct{})
	}

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler[T]) run() {
	defer close(s.done)

	for {
		select {
		case <-s.base.Done():
			return
		case <-s.wake:
		}

		s.mu.Lock()
		t := s.next
		s.next = nil
		s.mu.Unlock()

		if t == nil {
			continue
		}
		s.runTask(t)
	}
}

func (s *Scheduler[T]) runTask(t *task) {
	v, err := s.compute(t.ctx, t.query)

	s.mu.Lock()
	if t.seq != s.seq {
		s.mu.Unlock()
		return
	}

	if err == nil {
		s.effective = t.query
		s.apply(t.query, v)
		s.metrics.applied()
	}
	s.cancel()
	s.cancel = nil
	close(s.settled)
	s.settled = nil
	s.mu.Unlock()

	s.signal()
}

func (s *Scheduler[T]) signal() {
	if s.onChange != nil {
		s.onChange()
	}
}

func (s *Scheduler[T]) Committed() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committed
}

func (s *Scheduler[T]) Effective() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.effective
}

// Pending is true from the first scheduled recompute until the latest one
// has been applied, across any number of supersedes in between.
func (s *Scheduler[T]) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settled != nil
}

// Wait blocks until nothing is pending or ctx is done.
func (s *Scheduler[T]) Wait(ctx context.Context) error {
	s.mu.Lock()
	ch := s.settled
	s.mu.Unlock()

	if ch == nil {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return context.Canceled
	}
}

// Close stops the deferred lane. Pending work is discarded and waiters are
// released.
func (s *Scheduler[T]) Close() {
	s.closeOnce.Do(func() {
		s.stop()
		<-s.done

		s.mu.Lock()
		defer s.mu.Unlock()
		s.next = nil
		if s.cancel != nil {
			s.cancel()
			s.cancel = nil
		}
		if s.settled != nil {
			close(s.settled)
			s.settled = nil
		}
	})
}
