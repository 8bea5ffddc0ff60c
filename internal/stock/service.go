package stock

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Notifier receives every committed mutation. originID names the relay
// channel that caused it, so that channel can be skipped.
type Notifier interface {
	Notify(ctx context.Context, ev Event, originID string)
}

type NotifierFunc func(ctx context.Context, ev Event, originID string)

func (f NotifierFunc) Notify(ctx context.Context, ev Event, originID string) { f(ctx, ev, originID) }

// Notifiers fans one notification out to several sinks, in order.
type Notifiers []Notifier

func (ns Notifiers) Notify(ctx context.Context, ev Event, originID string) {
	for _, n := range ns {
		if n != nil {
			n.Notify(ctx, ev, originID)
		}
	}
}

// Service writes to the store first and only then notifies. Each mutation
// holds mu across both steps, so broadcasts go out in commit order.
type Service struct {
	Store    Store
	Notifier Notifier
	Now      func() time.Time

	mu sync.Mutex
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) notify(ctx context.Context, ev Event, origin string) {
	if s.Notifier != nil {
		s.Notifier.Notify(ctx, ev, origin)
	}
}

func (s *Service) List(ctx context.Context) ([]Record, error) { return s.Store.List(ctx) }

func (s *Service) Get(ctx context.Context, id string) (Record, error) { return s.Store.Get(ctx, id) }

func (s *Service) Create(ctx context.Context, f Fields, origin string) (Record, error) {
	if !f.Valid() {
		return Record{}, fmt.Errorf("%w: quantities must be within 0..%d", ErrValidation, MaxQuantity)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.Store.Create(ctx, f)
	if err != nil {
		return Record{}, err
	}
	s.notify(ctx, RecordCreated(r, s.now()), origin)
	return r, nil
}

func (s *Service) Update(ctx context.Context, id string, f Fields, origin string) (Record, error) {
	if !f.Valid() {
		return Record{}, fmt.Errorf("%w: quantities must be within 0..%d", ErrValidation, MaxQuantity)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.Store.Update(ctx, id, f)
	if err != nil {
		return Record{}, err
	}
	s.notify(ctx, RecordUpdated(r, s.now()), origin)
	return r, nil
}

func (s *Service) Delete(ctx context.Context, id string, origin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.Store.Delete(ctx, id); err != nil {
		return err
	}
	s.notify(ctx, RecordDeleted(id, s.now()), origin)
	return nil
}

// ApplyArrivals books a receiving batch and broadcasts it as one event.
// A batch that matched nothing changes nothing and is not broadcast.
func (s *Service) ApplyArrivals(ctx context.Context, arrivals []Arrival, origin string) ([]Record, error) {
	for _, a := range arrivals {
		if !validQuantity(a.Quantity) {
			return nil, fmt.Errorf("%w: arrival quantity for %s out of range", ErrValidation, a.ItemID)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	updated, err := s.Store.ApplyArrivals(ctx, arrivals)
	if err != nil {
		return nil, err
	}
	if len(updated) > 0 {
		s.notify(ctx, ArrivalApplied(updated, s.now()), origin)
	}
	return updated, nil
}

// Import upserts rows and tells peers to re-fetch instead of shipping the diff.
func (s *Service) Import(ctx context.Context, rows []Fields, origin string) (int, error) {
	for i, row := range rows {
		if !row.Valid() {
			return 0, fmt.Errorf("%w: row %d has quantities outside 0..%d", ErrValidation, i+1, MaxQuantity)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.Store.Import(ctx, rows)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.notify(ctx, ImportApplied(n, s.now()), origin)
	}
	return n, nil
}

func (s *Service) OrderList(ctx context.Context) ([]SupplierOrder, error) {
	rs, err := s.Store.List(ctx)
	if err != nil {
		return nil, err
	}
	return BuildOrderList(rs), nil
}

// Snapshot is the full-resync event for a freshly connected client.
func (s *Service) Snapshot(ctx context.Context) (Event, error) {
	rs, err := s.Store.List(ctx)
	if err != nil {
		return Event{}, err
	}
	return FullResync(rs, s.now()), nil
}
