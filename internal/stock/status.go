package stock

type Status string

const (
	StatusCritical Status = "critical"
	StatusLow      Status = "low"
	StatusAdequate Status = "adequate"
	StatusHigh     Status = "high"
)

// Available is stock on hand plus stock on its way.
func (r Record) Available() int {
	return r.CurrentStock + r.PendingArrival
}

// Status derives the reorder status from available vs threshold.
// The 1.5x band is compared as 2*available <= 3*threshold to stay in integers.
func (r Record) Status() Status {
	available := r.Available()
	switch {
	case available <= 0:
		return StatusCritical
	case available < r.Threshold:
		return StatusLow
	case 2*available <= 3*r.Threshold:
		return StatusAdequate
	default:
		return StatusHigh
	}
}

// MissingQuantity is what has to be reordered to get back to threshold.
func (r Record) MissingQuantity() int {
	if m := r.Threshold - r.Available(); m > 0 {
		return m
	}
	return 0
}
