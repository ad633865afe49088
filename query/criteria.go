package query

import "time"

// Criteria carries the optional user-facing search criteria. A nil field
// contributes no filter.
type Criteria struct {
	Date      *time.Time
	StartDate *time.Time
	EndDate   *time.Time

	DistanceMin *float64
	DistanceMax *float64
	VelocityMin *float64
	VelocityMax *float64
	DiameterMin *float64
	DiameterMax *float64

	Hazardous *bool
}

// Empty reports whether no criterion is set.
func (c Criteria) Empty() bool {
	return len(c.Filters()) == 0
}

// Filters builds one independent filter per supplied criterion. The catalog
// combines them with logical AND, so their order does not matter.
func (c Criteria) Filters() []Filter {
	var out []Filter
	if c.Date != nil {
		out = append(out, DateFilter(OpEqual, *c.Date))
	}
	if c.StartDate != nil {
		out = append(out, DateFilter(OpGreaterEqual, *c.StartDate))
	}
	if c.EndDate != nil {
		out = append(out, DateFilter(OpLessEqual, *c.EndDate))
	}
	if c.DistanceMin != nil {
		out = append(out, DistanceFilter(OpGreaterEqual, *c.DistanceMin))
	}
	if c.DistanceMax != nil {
		out = append(out, DistanceFilter(OpLessEqual, *c.DistanceMax))
	}
	if c.VelocityMin != nil {
		out = append(out, VelocityFilter(OpGreaterEqual, *c.VelocityMin))
	}
	if c.VelocityMax != nil {
		out = append(out, VelocityFilter(OpLessEqual, *c.VelocityMax))
	}
	if c.DiameterMin != nil {
		out = append(out, DiameterFilter(OpGreaterEqual, *c.DiameterMin))
	}
	if c.DiameterMax != nil {
		out = append(out, DiameterFilter(OpLessEqual, *c.DiameterMax))
	}
	if c.Hazardous != nil {
		out = append(out, HazardousFilter(OpEqual, *c.Hazardous))
	}
	return out
}

// CreateFilters is shorthand for c.Filters().
func CreateFilters(c Criteria) []Filter {
	return c.Filters()
}
