package stock

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// ApplyArrival books qty received against r. Pending never goes below zero.
// A quantity out of range, or one that would push stock past MaxQuantity,
// is an ErrValidation and leaves r untouched.
func ApplyArrival(r Record, qty int, now time.Time) (Record, error) {
	if !validQuantity(qty) {
		return r, fmt.Errorf("%w: arrival quantity %d for %s out of range", ErrValidation, qty, r.ID)
	}
	if r.CurrentStock > MaxQuantity-qty {
		return r, fmt.Errorf("%w: arrival of %d would overflow stock of %s", ErrValidation, qty, r.ID)
	}
	r.CurrentStock += qty
	r.PendingArrival -= qty
	if r.PendingArrival < 0 {
		r.PendingArrival = 0
	}
	r.LastUpdated = now
	return r, nil
}

// NormalizeReference is the key used for case-insensitive reference matching.
func NormalizeReference(ref string) string {
	return cases.Fold().String(strings.TrimSpace(ref))
}

// ImportOp is the resolved action for one import row.
type ImportOp struct {
	Record Record
	Create bool
}

// ImportPlanner resolves import rows against the existing record set.
// The reference index is built once per batch; rows creating a new reference
// are added to it so a repeated reference later in the batch updates that record.
type ImportPlanner struct {
	byRef map[string]Record
	now   time.Time
	newID func() string
}

func NewImportPlanner(existing []Record, now time.Time, newID func() string) *ImportPlanner {
	p := &ImportPlanner{
		byRef: make(map[string]Record, len(existing)),
		now:   now,
		newID: newID,
	}
	for _, r := range existing {
		key := NormalizeReference(r.Reference)
		if _, dup := p.byRef[key]; dup {
			// references are not unique outside imports; first one wins
			continue
		}
		p.byRef[key] = r
	}
	return p
}

// Resolve upserts one row into the plan and returns the resulting record.
func (p *ImportPlanner) Resolve(row Fields) ImportOp {
	key := NormalizeReference(row.Reference)
	if cur, ok := p.byRef[key]; ok {
		next := row.Apply(cur, p.now)
		// the stored spelling of the reference and a known supplier survive re-imports
		next.Reference = cur.Reference
		if row.Supplier == "" {
			next.Supplier = cur.Supplier
		}
		p.byRef[key] = next
		return ImportOp{Record: next}
	}
	next := row.Apply(Record{ID: p.newID()}, p.now)
	p.byRef[key] = next
	return ImportOp{Record: next, Create: true}
}
