package stock

import "context"

// Store is the authoritative record table. Every method returns after the
// write is durable for readers, so a notification sent afterwards never
// points peers at stale data.
type Store interface {
	Get(ctx context.Context, id string) (Record, error)
	List(ctx context.Context) ([]Record, error)
	Create(ctx context.Context, f Fields) (Record, error)
	Update(ctx context.Context, id string, f Fields) (Record, error)
	Delete(ctx context.Context, id string) error
	// ApplyArrivals skips unknown ids and returns only the records it changed.
	ApplyArrivals(ctx context.Context, arrivals []Arrival) ([]Record, error)
	// Import upserts by case-insensitive reference and returns rows processed.
	Import(ctx context.Context, rows []Fields) (int, error)
}
