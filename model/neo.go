package model

import (
	"fmt"
	"math"
)

// NearEarthObject is a small body whose orbit brings it close to Earth.
// Designation is the primary key; Name is optional (empty when absent).
type NearEarthObject struct {
	Designation string
	Name        string
	Diameter    float64 // kilometres; NaN when unknown
	Hazardous   bool

	// populated once by Link during catalog construction
	approaches []*CloseApproach
}

// NewNearEarthObject builds an object with an unknown diameter.
func NewNearEarthObject(designation, name string, hazardous bool) *NearEarthObject {
	return &NearEarthObject{
		Designation: designation,
		Name:        name,
		Diameter:    math.NaN(),
		Hazardous:   hazardous,
	}
}

// Approaches returns the linked close approaches in feed order.
func (n *NearEarthObject) Approaches() []*CloseApproach {
	return n.approaches
}

// HasDiameter reports whether the diameter is known.
func (n *NearEarthObject) HasDiameter() bool {
	return !math.IsNaN(n.Diameter)
}

// FullName combines the designation and, when present, the name.
func (n *NearEarthObject) FullName() string {
	if n.Name != "" {
		return fmt.Sprintf("%s (%s)", n.Designation, n.Name)
	}
	return n.Designation
}

func (n *NearEarthObject) String() string {
	return fmt.Sprintf("Near-Earth Object: %s, Diameter: %s km, Hazardous: %t",
		n.FullName(), FormatDiameter(n.Diameter), n.Hazardous)
}

// FormatDiameter renders a diameter with three decimals, or "nan" when unknown.
func FormatDiameter(d float64) string {
	if math.IsNaN(d) {
		return "nan"
	}
	return fmt.Sprintf("%.3f", d)
}
