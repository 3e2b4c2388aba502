package records

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultCacheKey = "cataloglens:records:snapshot"

// CachedSource is a read-through Redis cache in front of another Source.
// Redis failures never fail a fetch; they only cost a trip upstream.
type CachedSource struct {
	Next Source
	RDB  *redis.Client
	Key  string
	TTL  time.Duration
	Log  *zap.Logger
}

func NewCachedSource(next Source, rdb *redis.Client, ttl time.Duration, log *zap.Logger) *CachedSource {
	return &CachedSource{
		Next: next,
		RDB:  rdb,
		Key:  DefaultCacheKey,
		TTL:  ttl,
		Log:  log,
	}
}

func (s *CachedSource) Fetch(ctx context.Context) (Snapshot, error) {
	if snap, ok := s.load(ctx); ok {
		return snap, nil
	}

	snap, err := s.Next.Fetch(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	s.store(ctx, snap)
	return snap, nil
}

// Invalidate drops the cached snapshot so the next Fetch goes upstream.
func (s *CachedSource) Invalidate(ctx context.Context) error {
	return s.RDB.Del(ctx, s.Key).Err()
}

func (s *CachedSource) load(ctx context.Context) (Snapshot, bool) {
	raw, err := s.RDB.Get(ctx, s.Key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, false
	}
	if err != nil {
		s.warn("cache get failed", err)
		return Snapshot{}, false
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		s.warn("cache decode failed", err)
		return Snapshot{}, false
	}
	return snap, true
}

func (s *CachedSource) store(ctx context.Context, snap Snapshot) {
	raw, err := json.Marshal(snap)
	if err != nil {
		s.warn("cache encode failed", err)
		return
	}
	if err := s.RDB.Set(ctx, s.Key, raw, s.TTL).Err(); err != nil {
		s.warn("cache set failed", err)
	}
}

func (s *CachedSource) warn(msg string, err error) {
	if s.Log != nil {
		s.Log.Warn(msg, zap.String("key", s.Key), zap.Error(err))
	}
}
