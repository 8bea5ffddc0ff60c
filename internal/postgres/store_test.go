package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/ariefcatur/go-realtime-stock/internal/stock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	ctx := context.Background()
	pool, err := Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, EnsureSchema(ctx, pool))
	_, err = pool.Exec(ctx, `TRUNCATE stock_records`)
	require.NoError(t, err)

	s := NewStore(pool)
	n := 0
	s.NewID = func() string { n++; return fmt.Sprintf("id-%d", n) }
	return s
}

func TestStoreCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r, err := s.Create(ctx, stock.Fields{Reference: "GLV", Name: "Gloves", CurrentStock: 4})
	require.NoError(t, err)
	assert.Equal(t, stock.DefaultUnit, r.Unit)

	got, err := s.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Gloves", got.Name)

	_, err = s.Update(ctx, r.ID, stock.Fields{Reference: "GLV", Name: "Gloves L", CurrentStock: 6})
	require.NoError(t, err)
	got, _ = s.Get(ctx, r.ID)
	assert.Equal(t, 6, got.CurrentStock)

	require.NoError(t, s.Delete(ctx, r.ID))
	_, err = s.Get(ctx, r.ID)
	assert.ErrorIs(t, err, stock.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, r.ID), stock.ErrNotFound)
	_, err = s.Update(ctx, r.ID, stock.Fields{Reference: "GLV", Name: "x"})
	assert.ErrorIs(t, err, stock.ErrNotFound)
}

func TestStoreApplyArrivals(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r, err := s.Create(ctx, stock.Fields{Reference: "MSK", Name: "Masks", CurrentStock: 10, PendingArrival: 5})
	require.NoError(t, err)

	updated, err := s.ApplyArrivals(ctx, []stock.Arrival{{ItemID: r.ID, Quantity: 8}, {ItemID: "ghost", Quantity: 1}})
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, 18, updated[0].CurrentStock)
	assert.Equal(t, 0, updated[0].PendingArrival)
}

func TestStoreImport(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r, err := s.Create(ctx, stock.Fields{Reference: "Gauze", Name: "Gauze", CurrentStock: 1, Supplier: "MedCo"})
	require.NoError(t, err)

	n, err := s.Import(ctx, []stock.Fields{
		{Reference: "GAUZE", Name: "Gauze pads", CurrentStock: 30},
		{Reference: "tape", Name: "Tape", CurrentStock: 2},
		{Reference: "TAPE", Name: "Tape", CurrentStock: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, r.ID, all[0].ID)
	assert.Equal(t, "Gauze", all[0].Reference)
	assert.Equal(t, "MedCo", all[0].Supplier)
	assert.Equal(t, 30, all[0].CurrentStock)
	assert.Equal(t, 3, all[1].CurrentStock)
}

func TestStoreApplyArrivalsOverflowRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a, err := s.Create(ctx, stock.Fields{Reference: "A", Name: "A", CurrentStock: 5})
	require.NoError(t, err)
	b, err := s.Create(ctx, stock.Fields{Reference: "B", Name: "B", CurrentStock: 1})
	require.NoError(t, err)

	_, err = s.ApplyArrivals(ctx, []stock.Arrival{{ItemID: b.ID, Quantity: 3}, {ItemID: a.ID, Quantity: stock.MaxQuantity}})
	require.ErrorIs(t, err, stock.ErrValidation)

	got, _ := s.Get(ctx, a.ID)
	assert.Equal(t, 5, got.CurrentStock)
	got, _ = s.Get(ctx, b.ID)
	assert.Equal(t, 1, got.CurrentStock)
}
