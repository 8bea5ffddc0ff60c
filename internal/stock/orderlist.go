package stock

import "sort"

const UnassignedSupplier = "unassigned"

type OrderLine struct {
	ID        string `json:"id"`
	Reference string `json:"reference"`
	Name      string `json:"name"`
	Unit      string `json:"unit"`
	Missing   int    `json:"missing"`
}

type SupplierOrder struct {
	Supplier string      `json:"supplier"`
	Total    int         `json:"total"`
	Lines    []OrderLine `json:"lines"`
}

// BuildOrderList groups everything below threshold by supplier,
// biggest total first.
func BuildOrderList(records []Record) []SupplierOrder {
	groups := map[string]*SupplierOrder{}
	for _, r := range records {
		missing := r.MissingQuantity()
		if missing == 0 {
			continue
		}
		supplier := r.Supplier
		if supplier == "" {
			supplier = UnassignedSupplier
		}
		g, ok := groups[supplier]
		if !ok {
			g = &SupplierOrder{Supplier: supplier}
			groups[supplier] = g
		}
		g.Total += missing
		g.Lines = append(g.Lines, OrderLine{
			ID: r.ID, Reference: r.Reference, Name: r.Name, Unit: r.Unit, Missing: missing,
		})
	}

	out := make([]SupplierOrder, 0, len(groups))
	for _, g := range groups {
		sort.SliceStable(g.Lines, func(i, j int) bool { return g.Lines[i].Missing > g.Lines[j].Missing })
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Supplier < out[j].Supplier
	})
	return out
}
