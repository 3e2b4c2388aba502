package browse

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"CatalogLens/internal/records"
)

var ErrSessionNotFound = errors.New("session not found")

type Options struct {
	JoinKey   JoinKey
	RowHeight int
	Overscan  int
	IdleTTL   time.Duration
	Log       *zap.Logger
	Metrics   *Metrics
}

// Manager owns the live sessions and the dataset they share. The join index
// is rebuilt only when the user collection changed.
type Manager struct {
	store *records.Store
	opts  Options
	log   *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session

	dsMu        sync.Mutex
	ds          *Dataset
	index       JoinIndex
	usersRev    uint64
	productsRev uint64
}

func NewManager(store *records.Store, opts Options) *Manager {
	if opts.JoinKey == nil {
		opts.JoinKey = ByProductID
	}
	if opts.RowHeight <= 0 {
		opts.RowHeight = DefaultRowHeight
	}
	if opts.Overscan < 0 {
		opts.Overscan = DefaultOverscan
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}

	m := &Manager{
		store:    store,
		opts:     opts,
		log:      log,
		sessions: make(map[string]*Session),
	}

	store.Subscribe(m.onPublish)
	if p, ok := store.Current(); ok {
		m.rebuild(p)
	}
	return m
}

func (m *Manager) onPublish(p *records.Published) {
	ds := m.rebuild(p)

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		s.SetDataset(ds)
	}
}

func (m *Manager) rebuild(p *records.Published) *Dataset {
	m.dsMu.Lock()
	defer m.dsMu.Unlock()

	if m.ds != nil && m.usersRev == p.UsersRev && m.productsRev == p.ProductsRev {
		return m.ds
	}

	if m.ds == nil || m.usersRev != p.UsersRev {
		m.index = BuildJoinIndex(p.Snapshot.Users)
		m.usersRev = p.UsersRev
		m.log.Info("join index rebuilt", zap.Int("users", m.index.Len()), zap.Uint64("users_rev", p.UsersRev))
	}
	m.productsRev = p.ProductsRev

	m.ds = &Dataset{
		Version: p.Version,
		Records: Join(p.Snapshot.Products, m.index, m.opts.JoinKey),
	}
	return m.ds
}

// Dataset returns the current joined dataset, nil while records are unavailable.
func (m *Manager) Dataset() *Dataset {
	m.dsMu.Lock()
	defer m.dsMu.Unlock()
	return m.ds
}

// Create registers a new session on the current dataset. The dataset is read
// under m.mu so a concurrent publish either lands before the read or finds the
// session registered.
func (m *Manager) Create() *Session {
	m.mu.Lock()
	s := newSession(uuid.NewString(), m.Dataset(), m.store.Seen, m.opts.RowHeight, m.opts.Overscan, m.opts.Metrics)
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.opts.Metrics.sessionsDelta(1)
	return s
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch()
	return s, nil
}

func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return false
	}
	s.Close()
	m.opts.Metrics.sessionsDelta(-1)
	return true
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Evict closes sessions idle since before cutoff and returns how many.
func (m *Manager) Evict(cutoff time.Time) int {
	m.mu.RLock()
	var stale []string
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	n := 0
	for _, id := range stale {
		if m.Remove(id) {
			n++
		}
	}
	return n
}

// Run evicts idle sessions until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	if m.opts.IdleTTL <= 0 {
		return
	}

	t := time.NewTicker(m.opts.IdleTTL / 2)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := m.Evict(now.Add(-m.opts.IdleTTL)); n > 0 {
				m.log.Info("idle sessions evicted", zap.Int("count", n))
			}
		}
	}
}

// Close removes every session.
func (m *Manager) Close() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		m.Remove(id)
	}
}
