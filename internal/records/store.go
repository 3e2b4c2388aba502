package records

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// Published is an immutable snapshot as handed out by the Store.
// ProductsRev and UsersRev only move when the respective collection changed,
// so consumers can key derived structures on them.
type Published struct {
	Version     uint64
	ProductsRev uint64
	UsersRev    uint64
	Snapshot    Snapshot
	LoadedAt    time.Time
}

type Store struct {
	src Source
	log *zap.Logger

	mu      sync.RWMutex
	cur     *Published
	status  Status
	lastErr error
	seen    map[int]struct{}
	subs    []func(*Published)

	sf singleflight.Group
}

func NewStore(src Source, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		src:    src,
		log:    log,
		status: StatusLoading,
		seen:   make(map[int]struct{}),
	}
}

// Refresh fetches a new snapshot. Concurrent callers share one fetch.
// On failure the previously published snapshot stays current.
func (s *Store) Refresh(ctx context.Context) (*Published, error) {
	v, err, _ := s.sf.Do("refresh", func() (any, error) {
		return s.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Published), nil
}

func (s *Store) refresh(ctx context.Context) (*Published, error) {
	start := time.Now()
	snap, err := s.src.Fetch(ctx)
	if err != nil {
		s.mu.Lock()
		s.lastErr = err
		if s.cur == nil {
			s.status = StatusFailed
		}
		s.mu.Unlock()

		s.log.Warn("records refresh failed", zap.Error(err))
		return nil, err
	}

	p, changed := s.publish(snap)
	s.log.Info("records refreshed",
		zap.Uint64("version", p.Version),
		zap.Int("products", len(snap.Products)),
		zap.Int("users", len(snap.Users)),
		zap.Bool("changed", changed),
		zap.Duration("duration", time.Since(start)),
	)

	if changed {
		s.notify(p)
	}
	return p, nil
}

func (s *Store) publish(snap Snapshot) (*Published, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status = StatusReady
	s.lastErr = nil

	next := &Published{Snapshot: snap, LoadedAt: time.Now().UTC()}
	if s.cur == nil {
		next.Version, next.ProductsRev, next.UsersRev = 1, 1, 1
	} else {
		prev := s.cur
		next.Version = prev.Version
		next.ProductsRev = prev.ProductsRev
		next.UsersRev = prev.UsersRev

		productsChanged := !slices.EqualFunc(prev.Snapshot.Products, snap.Products, productEqual)
		usersChanged := !slices.Equal(prev.Snapshot.Users, snap.Users)
		if !productsChanged && !usersChanged {
			return prev, false
		}
		next.Version++
		if productsChanged {
			next.ProductsRev++
		}
		if usersChanged {
			next.UsersRev++
		}
	}

	for _, p := range snap.Products {
		s.seen[p.ID] = struct{}{}
	}
	s.cur = next
	return next, true
}

func (s *Store) notify(p *Published) {
	s.mu.RLock()
	subs := slices.Clone(s.subs)
	s.mu.RUnlock()

	for _, fn := range subs {
		fn(p)
	}
}

// Current returns the latest snapshot, or false while nothing was loaded.
func (s *Store) Current() (*Published, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur, s.cur != nil
}

func (s *Store) Status() (Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status, s.lastErr
}

// Seen reports whether a product id was part of any published snapshot.
func (s *Store) Seen(id int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[id]
	return ok
}

// Subscribe registers fn to be called after every snapshot change.
func (s *Store) Subscribe(fn func(*Published)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

func (s *Store) Ping(ctx context.Context) error {
	if _, ok := s.Current(); !ok {
		return ErrNotLoaded
	}
	return ctx.Err()
}

// Run refreshes every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_, _ = s.Refresh(ctx)
		}
	}
}

func productEqual(a, b Product) bool {
	return a.ID == b.ID &&
		a.Title == b.Title &&
		a.Category == b.Category &&
		a.Price == b.Price &&
		a.Description == b.Description &&
		slices.Equal(a.Images, b.Images)
}
