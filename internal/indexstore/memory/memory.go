// Package memory implements indexstore.Store entirely in process
// memory, for tests that exercise the Scanner without a real Redis
// instance.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/marmos91/ditto-upload/internal/indexstore"
)

type entry struct {
	value   string
	expires time.Time
}

// Store is an in-memory indexstore.Store. TTLs are checked lazily on
// Get, matching Redis's behavior closely enough for tests that don't
// depend on active expiry.
type Store struct {
	mu     sync.Mutex
	values map[string]entry
	sets   map[string]map[string]struct{}
}

// New creates an empty in-memory index store.
func New() *Store {
	return &Store{
		values: make(map[string]entry),
		sets:   make(map[string]map[string]struct{}),
	}
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := entry{value: value}
	if ttl > 0 {
		e.expires = time.Now().Add(ttl)
	}
	s.values[key] = e
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.values[key]
	if !ok {
		return "", false, nil
	}
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		delete(s.values, key)
		return "", false, nil
	}
	return e.value, true, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

func (s *Store) SetAdd(ctx context.Context, key string, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.sets[key]
	if !ok {
		set = make(map[string]struct{})
		s.sets[key] = set
	}
	for _, m := range members {
		set[m] = struct{}{}
	}
	return nil
}

func (s *Store) SetRemove(ctx context.Context, key string, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.sets[key]
	if !ok {
		return nil
	}
	for _, m := range members {
		delete(set, m)
	}
	if len(set) == 0 {
		delete(s.sets, key)
	}
	return nil
}

func (s *Store) SetMembers(ctx context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.sets[key]
	if !ok {
		return nil, nil
	}
	out := make([]string, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	return out, nil
}

// memoryPipeliner buffers queued operations and applies them in order
// inside Pipeline, since there is no remote round trip to batch.
type memoryPipeliner struct {
	ops []func(*Store)
}

func (p *memoryPipeliner) Set(key, value string, ttl time.Duration) {
	p.ops = append(p.ops, func(s *Store) { _ = s.Set(context.Background(), key, value, ttl) })
}

func (p *memoryPipeliner) Delete(key string) {
	p.ops = append(p.ops, func(s *Store) { _ = s.Delete(context.Background(), key) })
}

func (p *memoryPipeliner) SetAdd(key string, members ...string) {
	p.ops = append(p.ops, func(s *Store) { _ = s.SetAdd(context.Background(), key, members...) })
}

func (p *memoryPipeliner) SetRemove(key string, members ...string) {
	p.ops = append(p.ops, func(s *Store) { _ = s.SetRemove(context.Background(), key, members...) })
}

func (s *Store) Pipeline(ctx context.Context, fn func(indexstore.Pipeliner) error) error {
	p := &memoryPipeliner{}
	if err := fn(p); err != nil {
		return err
	}
	for _, op := range p.ops {
		op(s)
	}
	return nil
}

var _ indexstore.Store = (*Store)(nil)
