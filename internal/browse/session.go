package browse

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Dataset is the joined record collection built from one published snapshot.
type Dataset struct {
	Version uint64
	Records []JoinedRecord
}

// View is one applied FilteredView. Superseded views are dropped, never merged.
type View struct {
	DatasetVersion uint64
	Query          string
	Records        []JoinedRecord
}

type SeenFunc func(id int) bool

type State struct {
	ID             string `json:"session_id"`
	Committed      string `json:"committed_query"`
	Effective      string `json:"effective_query"`
	Pending        bool   `json:"pending"`
	Available      bool   `json:"available"`
	DatasetVersion uint64 `json:"dataset_version"`
	Matches        int    `json:"matches"`
	Total          int    `json:"total"`
	Liked          []int  `json:"liked"`
	Renderer       string `json:"renderer"`
}

type Session struct {
	ID string

	seen     SeenFunc
	metrics  *Metrics
	sched    *Scheduler[*View]
	renderer *Renderer

	dataset atomic.Pointer[Dataset]
	view    atomic.Pointer[View]
	liked   atomic.Pointer[LikedSet]

	mu       sync.Mutex
	lastSeen time.Time
	nextSub  int
	subs     map[int]chan struct{}
	closed   bool
}

func newSession(id string, ds *Dataset, seen SeenFunc, rowHeight, overscan int, metrics *Metrics) *Session {
	s := &Session{
		ID:       id,
		seen:     seen,
		metrics:  metrics,
		renderer: NewRenderer(rowHeight, overscan, metrics),
		lastSeen: time.Now(),
		subs:     make(map[int]chan struct{}),
	}

	empty := NewLikedSet()
	s.liked.Store(&empty)

	if ds != nil {
		s.dataset.Store(ds)
		s.view.Store(&View{DatasetVersion: ds.Version, Records: ds.Records})
	}

	s.sched = NewScheduler[*View](s.compute, s.apply, s.notify, metrics)
	return s
}

// compute runs on the deferred lane. It reuses the current view when neither
// the dataset nor the normalized query changed.
func (s *Session) compute(ctx context.Context, query string) (*View, error) {
	ds := s.dataset.Load()
	if ds == nil {
		return &View{Query: query}, nil
	}

	if cur := s.view.Load(); cur != nil &&
		cur.DatasetVersion == ds.Version &&
		NormalizeQuery(cur.Query) == NormalizeQuery(query) {
		return &View{DatasetVersion: ds.Version, Query: query, Records: cur.Records}, nil
	}

	start := time.Now()
	recs, err := FilterContext(ctx, ds.Records, query)
	if err != nil {
		return nil, err
	}
	s.metrics.observeFilter(start)

	return &View{DatasetVersion: ds.Version, Query: query, Records: recs}, nil
}

func (s *Session) apply(_ string, v *View) {
	s.view.Store(v)
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Input is the keystroke entry point: the committed query changes now,
// the filtered view follows on the deferred lane.
func (s *Session) Input(text string) {
	s.touch()
	s.sched.Input(text)
}

// Toggle flips the liked state of a product and reports the new state.
func (s *Session) Toggle(id int) (bool, error) {
	s.touch()
	if s.seen != nil && !s.seen(id) {
		return false, ErrUnknownProduct
	}

	for {
		old := s.liked.Load()
		next := old.Toggle(id)
		if s.liked.CompareAndSwap(old, &next) {
			s.notify()
			return next.Has(id), nil
		}
	}
}

func (s *Session) Liked() LikedSet {
	return *s.liked.Load()
}

func (s *Session) Resize(height int) {
	s.touch()
	s.renderer.Resize(height)
	s.notify()
}

func (s *Session) Scroll(top int) {
	s.touch()
	s.renderer.Scroll(top)
	s.notify()
}

// SetDataset swaps in a new dataset and re-filters for the committed query.
func (s *Session) SetDataset(ds *Dataset) {
	s.dataset.Store(ds)
	s.sched.Refresh()
}

func (s *Session) Frame() Frame {
	if s.dataset.Load() == nil {
		return Frame{
			Status:    FrameUnavailable,
			RowHeight: s.renderer.RowHeight(),
			Last:      -1,
			Rows:      []Row{},
		}
	}

	var recs []JoinedRecord
	if v := s.view.Load(); v != nil {
		recs = v.Records
	}
	return s.renderer.Render(recs, s.Liked())
}

func (s *Session) State() State {
	st := State{
		ID:        s.ID,
		Committed: s.sched.Committed(),
		Effective: s.sched.Effective(),
		Pending:   s.sched.Pending(),
		Liked:     s.Liked().IDs(),
		Renderer:  s.renderer.State().String(),
	}
	if ds := s.dataset.Load(); ds != nil {
		st.Available = true
		st.DatasetVersion = ds.Version
		st.Total = len(ds.Records)
	}
	if v := s.view.Load(); v != nil {
		st.Matches = len(v.Records)
	}
	return st
}

func (s *Session) Pending() bool { return s.sched.Pending() }

// Wait blocks until the latest input has been applied.
func (s *Session) Wait(ctx context.Context) error {
	return s.sched.Wait(ctx)
}

// Subscribe returns a channel that receives a tick whenever the session's
// state or frame may have changed. Ticks coalesce; readers pull State and
// Frame themselves.
func (s *Session) Subscribe() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan struct{}, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

func (s *Session) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Close unmounts the renderer and stops the deferred lane.
func (s *Session) Close() {
	s.sched.Close()
	s.renderer.Unmount()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}
