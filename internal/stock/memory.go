package stock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps records in process. Used when no database is configured
// and in tests.
type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]Record
	order []string

	Now   func() time.Time
	NewID func() string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:  map[string]Record{},
		Now:   func() time.Time { return time.Now().UTC() },
		NewID: uuid.NewString,
	}
}

func (s *MemoryStore) Get(_ context.Context, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return r, nil
}

func (s *MemoryStore) List(_ context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(), nil
}

func (s *MemoryStore) listLocked() []Record {
	out := make([]Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

func (s *MemoryStore) Create(_ context.Context, f Fields) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := f.Apply(Record{ID: s.NewID()}, s.Now())
	s.insertLocked(r)
	return r, nil
}

func (s *MemoryStore) insertLocked(r Record) {
	s.byID[r.ID] = r
	s.order = append(s.order, r.ID)
}

func (s *MemoryStore) Update(_ context.Context, id string, f Fields) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.byID[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	next := f.Apply(cur, s.Now())
	s.byID[id] = next
	return next, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return ErrNotFound
	}
	delete(s.byID, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// ApplyArrivals books the whole batch or nothing.
func (s *MemoryStore) ApplyArrivals(_ context.Context, arrivals []Arrival) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.Now()
	staged := map[string]Record{}
	var out []Record
	for _, a := range arrivals {
		cur, ok := staged[a.ItemID]
		if !ok {
			if cur, ok = s.byID[a.ItemID]; !ok {
				continue
			}
		}
		next, err := ApplyArrival(cur, a.Quantity, now)
		if err != nil {
			return nil, err
		}
		staged[a.ItemID] = next
		out = append(out, next)
	}
	for id, r := range staged {
		s.byID[id] = r
	}
	return out, nil
}

func (s *MemoryStore) Import(_ context.Context, rows []Fields) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	planner := NewImportPlanner(s.listLocked(), s.Now(), s.NewID)
	for _, row := range rows {
		op := planner.Resolve(row)
		if op.Create {
			s.insertLocked(op.Record)
			continue
		}
		s.byID[op.Record.ID] = op.Record
	}
	return len(rows), nil
}
