// Package querycache caches list and filter results on the caller side of a
// store.EntityRepository. Every successful write through the wrapped
// repository invalidates all cached results of its collection.
package querycache

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ozonelife/clinic/internal/platform/store"
)

// Cache stores encoded query results grouped by collection. Each collection
// has a generation that Invalidate advances; a Set made under an older
// generation is never served, so a read that raced a write cannot put stale
// results back.
type Cache interface {
	Generation(ctx context.Context, collection string) (int64, error)
	Get(ctx context.Context, collection string, gen int64, key string) ([]byte, bool, error)
	Set(ctx context.Context, collection string, gen int64, key string, value []byte) error
	Invalidate(ctx context.Context, collection string) error
}

// ---------------------------------------------------------------------------
// In-memory implementation
// ---------------------------------------------------------------------------

type memBucket struct {
	gen     int64
	entries map[string][]byte
}

// Memory is a process-local Cache.
type Memory struct {
	mu      sync.RWMutex
	buckets map[string]*memBucket
}

func NewMemory() *Memory {
	return &Memory{buckets: make(map[string]*memBucket)}
}

func (m *Memory) Generation(_ context.Context, collection string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if b, ok := m.buckets[collection]; ok {
		return b.gen, nil
	}
	return 0, nil
}

func (m *Memory) Get(_ context.Context, collection string, gen int64, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.buckets[collection]
	if !ok || b.gen != gen {
		return nil, false, nil
	}
	v, ok := b.entries[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, collection string, gen int64, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[collection]
	if !ok {
		b = &memBucket{entries: make(map[string][]byte)}
		m.buckets[collection] = b
	}
	if b.gen != gen {
		return nil
	}
	b.entries[key] = value
	return nil
}

func (m *Memory) Invalidate(_ context.Context, collection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[collection]
	if !ok {
		b = &memBucket{}
		m.buckets[collection] = b
	}
	b.gen++
	b.entries = make(map[string][]byte)
	return nil
}

// Len returns the number of cached entries for collection.
func (m *Memory) Len(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if b, ok := m.buckets[collection]; ok {
		return len(b.entries)
	}
	return 0
}

// ---------------------------------------------------------------------------
// Repository decorator
// ---------------------------------------------------------------------------

type cachedRepository struct {
	next   store.EntityRepository
	cache  Cache
	logger zerolog.Logger
}

// Wrap returns a repository that answers reads from cache when possible.
func Wrap(next store.EntityRepository, cache Cache, logger zerolog.Logger) store.EntityRepository {
	return &cachedRepository{next: next, cache: cache, logger: logger}
}

func (r *cachedRepository) Schema() store.Schema { return r.next.Schema() }

func (r *cachedRepository) collection() string { return r.next.Schema().Collection }

func (r *cachedRepository) List(ctx context.Context, orderBy string, limit int) ([]store.Record, error) {
	return r.read(ctx, nil, orderBy, limit, func() ([]store.Record, error) {
		return r.next.List(ctx, orderBy, limit)
	})
}

func (r *cachedRepository) Filter(ctx context.Context, criteria store.Record, orderBy string, limit int) ([]store.Record, error) {
	return r.read(ctx, criteria, orderBy, limit, func() ([]store.Record, error) {
		return r.next.Filter(ctx, criteria, orderBy, limit)
	})
}

func (r *cachedRepository) read(ctx context.Context, criteria store.Record, orderBy string, limit int, load func() ([]store.Record, error)) ([]store.Record, error) {
	coll := r.collection()
	key, err := Key(r.next.Schema(), criteria, orderBy, limit)
	if err != nil {
		// invalid queries are reported by the repository itself
		return load()
	}
	gen, err := r.cache.Generation(ctx, coll)
	if err != nil {
		r.logger.Warn().Err(err).Str("collection", coll).Msg("query cache read failed")
		return load()
	}
	if raw, ok, err := r.cache.Get(ctx, coll, gen, key); err != nil {
		r.logger.Warn().Err(err).Str("collection", coll).Msg("query cache read failed")
	} else if ok {
		if recs, err := r.decode(raw); err == nil {
			return recs, nil
		}
	}

	recs, err := load()
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(recs); err == nil {
		if err := r.cache.Set(ctx, coll, gen, key, raw); err != nil {
			r.logger.Warn().Err(err).Str("collection", coll).Msg("query cache write failed")
		}
	}
	return recs, nil
}

func (r *cachedRepository) decode(raw []byte) ([]store.Record, error) {
	var recs []store.Record
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, err
	}
	schema := r.next.Schema()
	for i, rec := range recs {
		loaded, err := schema.Load(rec)
		if err != nil {
			return nil, err
		}
		recs[i] = loaded
	}
	return recs, nil
}

func (r *cachedRepository) Create(ctx context.Context, fields store.Record) (store.Record, error) {
	rec, err := r.next.Create(ctx, fields)
	if err != nil {
		return nil, err
	}
	r.invalidate(ctx)
	return rec, nil
}

func (r *cachedRepository) Update(ctx context.Context, id string, fields store.Record) (store.Record, error) {
	rec, err := r.next.Update(ctx, id, fields)
	if err != nil {
		return nil, err
	}
	r.invalidate(ctx)
	return rec, nil
}

func (r *cachedRepository) Delete(ctx context.Context, id string) error {
	if err := r.next.Delete(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx)
	return nil
}

func (r *cachedRepository) invalidate(ctx context.Context) {
	if err := r.cache.Invalidate(ctx, r.collection()); err != nil {
		r.logger.Error().Err(err).Str("collection", r.collection()).Msg("query cache invalidation failed")
	}
}

// Key renders a deterministic cache key for a list/filter call. Criteria are
// coerced to their field kinds first, so equivalent queries share a key.
func Key(schema store.Schema, criteria store.Record, orderBy string, limit int) (string, error) {
	q, err := store.PrepareQuery(schema, criteria, orderBy, limit)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(q)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
