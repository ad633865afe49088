package model

import (
	"fmt"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	satellite "github.com/joshuaferrara/go-satellite"
)

// ErrAlreadyLinked is returned when an approach is linked a second time.
var ErrAlreadyLinked = errors.New("close approach already linked")

// Resolver resolves the designation handle held by a linked approach.
type Resolver interface {
	LookupByDesignation(designation string) *NearEarthObject
}

// CloseApproach is a single recorded pass of an NEO near Earth.
//
// The owning object is referenced by designation rather than by pointer so
// approaches stay constructible and testable before a catalog exists. The
// reference is set once by Link and never reassigned.
type CloseApproach struct {
	// Designation is the raw designation from the source feed. It is only
	// used to resolve linkage.
	Designation string
	Time        time.Time // UTC, minute precision
	Distance    float64   // astronomical units
	Velocity    float64   // km/s relative to Earth

	neo    string
	linked bool
}

// NewCloseApproach parses the feed timestamp and builds an unlinked approach.
func NewCloseApproach(designation, timestamp string, distance, velocity float64) (*CloseApproach, error) {
	t, err := ParseTimestamp(timestamp)
	if err != nil {
		return nil, errors.Wrapf(err, "approach of %q", designation)
	}
	return &CloseApproach{
		Designation: designation,
		Time:        t,
		Distance:    distance,
		Velocity:    velocity,
	}, nil
}

// Link attaches a to neo: the approach is appended to the object's sequence
// and the approach records the object's designation as its owner.
func Link(neo *NearEarthObject, a *CloseApproach) error {
	if neo == nil || a == nil {
		return errors.AssertionFailedf("link: nil object or approach")
	}
	if a.linked {
		return errors.Wrapf(ErrAlreadyLinked, "approach of %q at %s already owned by %q",
			a.Designation, a.TimeString(), a.neo)
	}
	a.neo = neo.Designation
	a.linked = true
	neo.approaches = append(neo.approaches, a)
	return nil
}

// Linked reports whether the approach has an owning object.
func (a *CloseApproach) Linked() bool {
	return a.linked
}

// NEODesignation returns the handle of the owning object, if linked.
func (a *CloseApproach) NEODesignation() (string, bool) {
	return a.neo, a.linked
}

// NEO resolves the owning object through r. It returns nil when the approach
// is unlinked or r does not know the handle.
func (a *CloseApproach) NEO(r Resolver) *NearEarthObject {
	if !a.linked || r == nil {
		return nil
	}
	return r.LookupByDesignation(a.neo)
}

// TimeString formats the approach time for display.
func (a *CloseApproach) TimeString() string {
	return FormatTimestamp(a.Time)
}

// JulianDate returns the approach time as a Julian date.
func (a *CloseApproach) JulianDate() float64 {
	t := a.Time.UTC()
	year, month, day := t.Date()
	hour, min, sec := t.Clock()
	return satellite.JDay(year, int(month), day, hour, min, sec)
}

// Describe renders "<time> - NEO <fullname>" using r to find the owner. An
// unlinked approach falls back to its raw designation.
func (a *CloseApproach) Describe(r Resolver) string {
	if neo := a.NEO(r); neo != nil {
		return fmt.Sprintf("%s - NEO %s", a.TimeString(), neo.FullName())
	}
	return fmt.Sprintf("%s - NEO %s", a.TimeString(), a.Designation)
}

func (a *CloseApproach) String() string {
	return fmt.Sprintf("Close Approach: NEO %s, Time: %s, Distance: %s AU, Velocity: %s km/s",
		a.Designation, a.TimeString(), formatFloat(a.Distance), formatFloat(a.Velocity))
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
