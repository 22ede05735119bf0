package date

import "fmt"

// Range represents a closed range of dates.
type Range struct{ From, To Date }

// NewRange returns the well known period containing d.
func NewRange(d Date, period Period) Range {
	return Range{From: d.StartOf(period), To: d.EndOf(period)}
}

// Contains return true date is included in the range (boundaries included).
// A zero boundary is open.
func (r Range) Contains(d Date) bool {
	if !r.From.IsZero() && d.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && d.After(r.To) {
		return false
	}
	return true
}

// Validate checks that the range is not inverted.
func (r Range) Validate() error {
	if !r.From.IsZero() && !r.To.IsZero() && r.To.Before(r.From) {
		return fmt.Errorf("invalid range: end %s is before start %s", r.To, r.From)
	}
	return nil
}

func (r Range) String() string { return fmt.Sprintf("%s..%s", r.From, r.To) }
