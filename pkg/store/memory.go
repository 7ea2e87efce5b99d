package store

import (
	"context"
	"sort"
	"sync"

	"github.com/castellan-labs/disburse/pkg/schedule"
)

// MemoryStore implements ObligationStore in memory.
// Thread-safe via RWMutex; reads copy values out so callers never share
// pointers with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	obligations map[uint64]schedule.Obligation
	counter     uint64
	cfg         *Config
}

var _ ObligationStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		obligations: make(map[uint64]schedule.Obligation),
	}
}

func (s *MemoryStore) AllocateID(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counter++
	return s.counter, nil
}

func (s *MemoryStore) Put(ctx context.Context, ob schedule.Obligation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.obligations[ob.ID] = ob
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id uint64) (schedule.Obligation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ob, ok := s.obligations[id]
	if !ok {
		return schedule.Obligation{}, ErrNotFound
	}
	return ob, nil
}

func (s *MemoryStore) Scan(ctx context.Context) ([]schedule.Obligation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]schedule.Obligation, 0, len(s.obligations))
	for _, ob := range s.obligations {
		out = append(out, ob)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetConfig(ctx context.Context) (Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cfg == nil {
		return Config{}, ErrNotInitialized
	}
	return *s.cfg, nil
}

func (s *MemoryStore) SetConfig(ctx context.Context, cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	val := cfg
	s.cfg = &val
	return nil
}
