package stock

import (
	"math"
	"time"
)

const DefaultUnit = "units"

// MaxQuantity is the largest stock, pending or threshold value a record can
// hold; it matches the 32-bit integer columns of the Postgres store.
const MaxQuantity = math.MaxInt32

// Record is one stock line shared by every connected client.
type Record struct {
	ID             string    `json:"id"`
	Reference      string    `json:"reference"`
	Name           string    `json:"name"`
	CurrentStock   int       `json:"current_stock"`
	PendingArrival int       `json:"pending_arrival"`
	Threshold      int       `json:"threshold"`
	Unit           string    `json:"unit"`
	Location       string    `json:"location,omitempty"`
	Supplier       string    `json:"supplier,omitempty"`
	LastUpdated    time.Time `json:"last_updated"`
}

// Fields is the editable part of a Record, shared by create, update and import rows.
type Fields struct {
	Reference      string `json:"reference" validate:"required,max=64"`
	Name           string `json:"name" validate:"required,max=200"`
	CurrentStock   int    `json:"current_stock" validate:"gte=0,lte=2147483647"`
	PendingArrival int    `json:"pending_arrival" validate:"gte=0,lte=2147483647"`
	Threshold      int    `json:"threshold" validate:"gte=0,lte=2147483647"`
	Unit           string `json:"unit" validate:"max=32"`
	Location       string `json:"location" validate:"max=200"`
	Supplier       string `json:"supplier" validate:"max=200"`
}

// Arrival is one received line of an incoming shipment.
type Arrival struct {
	ItemID   string `json:"item_id" validate:"required"`
	Quantity int    `json:"quantity" validate:"gte=0,lte=2147483647"`
}

// Apply overwrites the editable fields of r and stamps the mutation time.
func (f Fields) Apply(r Record, now time.Time) Record {
	r.Reference = f.Reference
	r.Name = f.Name
	r.CurrentStock = f.CurrentStock
	r.PendingArrival = f.PendingArrival
	r.Threshold = f.Threshold
	r.Unit = f.Unit
	if r.Unit == "" {
		r.Unit = DefaultUnit
	}
	r.Location = f.Location
	r.Supplier = f.Supplier
	r.LastUpdated = now
	return r
}

// Valid reports whether every quantity of f is within 0..MaxQuantity.
func (f Fields) Valid() bool {
	return validQuantity(f.CurrentStock) && validQuantity(f.PendingArrival) && validQuantity(f.Threshold)
}

func validQuantity(n int) bool { return n >= 0 && n <= MaxQuantity }
