package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/go-realtime-stock/internal/stock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the Postgres-backed stock.Store.
type Store struct {
	DB *pgxpool.Pool

	Now   func() time.Time
	NewID func() string
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{
		DB:    db,
		Now:   func() time.Time { return time.Now().UTC() },
		NewID: uuid.NewString,
	}
}

const selectCols = `id, reference, name, current_stock, pending_arrival, threshold, unit, location, supplier, last_updated`

func scanRecord(row pgx.Row) (stock.Record, error) {
	var r stock.Record
	err := row.Scan(&r.ID, &r.Reference, &r.Name, &r.CurrentStock, &r.PendingArrival,
		&r.Threshold, &r.Unit, &r.Location, &r.Supplier, &r.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return stock.Record{}, stock.ErrNotFound
	}
	return r, err
}

func (s *Store) Get(ctx context.Context, id string) (stock.Record, error) {
	return scanRecord(s.DB.QueryRow(ctx, `SELECT `+selectCols+` FROM stock_records WHERE id=$1`, id))
}

func (s *Store) List(ctx context.Context) ([]stock.Record, error) {
	return listRecords(ctx, s.DB, `SELECT `+selectCols+` FROM stock_records ORDER BY created_seq`)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listRecords(ctx context.Context, q querier, sql string) ([]stock.Record, error) {
	rows, err := q.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []stock.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func insert(ctx context.Context, tx pgx.Tx, r stock.Record) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO stock_records(id, reference, name, current_stock, pending_arrival, threshold, unit, location, supplier, last_updated)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		r.ID, r.Reference, r.Name, r.CurrentStock, r.PendingArrival, r.Threshold, r.Unit, r.Location, r.Supplier, r.LastUpdated)
	return err
}

func update(ctx context.Context, tx pgx.Tx, r stock.Record) error {
	ct, err := tx.Exec(ctx, `
		UPDATE stock_records
		SET reference=$2, name=$3, current_stock=$4, pending_arrival=$5, threshold=$6,
		    unit=$7, location=$8, supplier=$9, last_updated=$10
		WHERE id=$1`,
		r.ID, r.Reference, r.Name, r.CurrentStock, r.PendingArrival, r.Threshold, r.Unit, r.Location, r.Supplier, r.LastUpdated)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return stock.ErrNotFound
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) Create(ctx context.Context, f stock.Fields) (stock.Record, error) {
	r := f.Apply(stock.Record{ID: s.NewID()}, s.Now())
	err := s.inTx(ctx, func(tx pgx.Tx) error { return insert(ctx, tx, r) })
	if err != nil {
		return stock.Record{}, err
	}
	return r, nil
}

func (s *Store) Update(ctx context.Context, id string, f stock.Fields) (stock.Record, error) {
	var out stock.Record
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		cur, err := scanRecord(tx.QueryRow(ctx, `SELECT `+selectCols+` FROM stock_records WHERE id=$1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		out = f.Apply(cur, s.Now())
		return update(ctx, tx, out)
	})
	if err != nil {
		return stock.Record{}, err
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	ct, err := s.DB.Exec(ctx, `DELETE FROM stock_records WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return stock.ErrNotFound
	}
	return nil
}

// ApplyArrivals locks each row (FOR UPDATE), books the arrival and commits
// the whole batch together. Unknown ids are skipped.
func (s *Store) ApplyArrivals(ctx context.Context, arrivals []stock.Arrival) ([]stock.Record, error) {
	var out []stock.Record
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		now := s.Now()
		for _, a := range arrivals {
			cur, err := scanRecord(tx.QueryRow(ctx, `SELECT `+selectCols+` FROM stock_records WHERE id=$1 FOR UPDATE`, a.ItemID))
			if errors.Is(err, stock.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			next, err := stock.ApplyArrival(cur, a.Quantity, now)
			if err != nil {
				return err
			}
			if err := update(ctx, tx, next); err != nil {
				return err
			}
			out = append(out, next)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Import reads the table once inside the transaction to build the
// reference index, then upserts row by row.
func (s *Store) Import(ctx context.Context, rows []stock.Fields) (int, error) {
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `LOCK TABLE stock_records IN SHARE ROW EXCLUSIVE MODE`); err != nil {
			return err
		}
		existing, err := listRecords(ctx, tx, `SELECT `+selectCols+` FROM stock_records ORDER BY created_seq`)
		if err != nil {
			return err
		}
		planner := stock.NewImportPlanner(existing, s.Now(), s.NewID)
		for _, row := range rows {
			op := planner.Resolve(row)
			if op.Create {
				err = insert(ctx, tx, op.Record)
			} else {
				err = update(ctx, tx, op.Record)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}
