// Package query holds the predicate filters applied to close approaches and
// the helpers that shape a query's result stream.
package query

import (
	"fmt"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/signalsfoundry/neo-catalog/model"
)

var (
	// ErrUnsupportedCriterion is returned when a filter kind has no accessor.
	ErrUnsupportedCriterion = errors.New("unsupported filter criterion")
	// ErrUnlinkedReference is returned when a filter or serializer needs the
	// owning object of an approach that was never linked.
	ErrUnlinkedReference = errors.New("close approach has no linked object")
)

// Kind names the attribute a filter tests.
type Kind int

const (
	KindDate Kind = iota + 1
	KindDistance
	KindVelocity
	KindDiameter
	KindHazardous
)

func (k Kind) String() string {
	switch k {
	case KindDate:
		return "DateFilter"
	case KindDistance:
		return "DistanceFilter"
	case KindVelocity:
		return "VelocityFilter"
	case KindDiameter:
		return "DiameterFilter"
	case KindHazardous:
		return "HazardousFilter"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Operator is the comparison applied between the extracted attribute and the
// reference value.
type Operator int

const (
	OpEqual Operator = iota + 1
	OpGreaterEqual
	OpLessEqual
)

func (op Operator) String() string {
	switch op {
	case OpEqual:
		return "eq"
	case OpGreaterEqual:
		return "ge"
	case OpLessEqual:
		return "le"
	default:
		return fmt.Sprintf("Operator(%d)", int(op))
	}
}

// Filter tests one attribute of a close approach, or of its linked object,
// against a reference value. Filters are pure and safe to share.
type Filter struct {
	Kind Kind
	Op   Operator

	num  float64
	date time.Time
	flag bool
}

// DateFilter compares the calendar date of the approach; the time of day is ignored.
func DateFilter(op Operator, date time.Time) Filter {
	return Filter{Kind: KindDate, Op: op, date: model.DateOf(date)}
}

// DistanceFilter compares the approach distance in AU.
func DistanceFilter(op Operator, au float64) Filter {
	return Filter{Kind: KindDistance, Op: op, num: au}
}

// VelocityFilter compares the relative velocity in km/s.
func VelocityFilter(op Operator, kms float64) Filter {
	return Filter{Kind: KindVelocity, Op: op, num: kms}
}

// DiameterFilter compares the linked object's diameter in km.
func DiameterFilter(op Operator, km float64) Filter {
	return Filter{Kind: KindDiameter, Op: op, num: km}
}

// HazardousFilter compares the linked object's hazardous flag.
func HazardousFilter(op Operator, hazardous bool) Filter {
	return Filter{Kind: KindHazardous, Op: op, flag: hazardous}
}

// NeedsOwner reports whether the filter reads the linked object rather than
// the approach itself.
func (f Filter) NeedsOwner() bool {
	return f.Kind == KindDiameter || f.Kind == KindHazardous
}

// Validate rejects filters whose kind or operator Match cannot evaluate.
func (f Filter) Validate() error {
	switch f.Kind {
	case KindDate, KindDistance, KindVelocity, KindDiameter, KindHazardous:
	default:
		return errors.WithHint(
			errors.Wrapf(ErrUnsupportedCriterion, "%s", f.Kind),
			"supported kinds are date, distance, velocity, diameter and hazardous")
	}
	switch f.Op {
	case OpEqual, OpGreaterEqual, OpLessEqual:
		return nil
	}
	return unknownOperator(f.Op)
}

// Prepare validates every filter and returns a copy ordered so that
// owner-dependent filters run first. Evaluated in that order, an approach
// without a resolvable owner fails the same way whatever order the caller
// supplied the filters in.
func Prepare(filters []Filter) ([]Filter, error) {
	out := make([]Filter, 0, len(filters))
	for _, f := range filters {
		if err := f.Validate(); err != nil {
			return nil, err
		}
		if f.NeedsOwner() {
			out = append(out, f)
		}
	}
	for _, f := range filters {
		if !f.NeedsOwner() {
			out = append(out, f)
		}
	}
	return out, nil
}

// Match reports whether a satisfies the filter. Objects are resolved through
// r for the diameter and hazardous kinds.
func (f Filter) Match(a *model.CloseApproach, r model.Resolver) (bool, error) {
	switch f.Kind {
	case KindDate:
		return compareOrdered(f.Op, model.DateOf(a.Time).Compare(f.date))
	case KindDistance:
		return compareFloat(f.Op, a.Distance, f.num)
	case KindVelocity:
		return compareFloat(f.Op, a.Velocity, f.num)
	case KindDiameter:
		neo, err := owner(a, r)
		if err != nil {
			return false, err
		}
		return compareFloat(f.Op, neo.Diameter, f.num)
	case KindHazardous:
		neo, err := owner(a, r)
		if err != nil {
			return false, err
		}
		return compareBool(f.Op, neo.Hazardous, f.flag)
	default:
		return false, errors.WithHint(
			errors.Wrapf(ErrUnsupportedCriterion, "%s", f.Kind),
			"supported kinds are date, distance, velocity, diameter and hazardous")
	}
}

func (f Filter) String() string {
	var v string
	switch f.Kind {
	case KindDate:
		v = f.date.Format(time.DateOnly)
	case KindHazardous:
		v = strconv.FormatBool(f.flag)
	default:
		v = strconv.FormatFloat(f.num, 'f', -1, 64)
	}
	return fmt.Sprintf("%s(op=%s, value=%s)", f.Kind, f.Op, v)
}

// owner resolves the linked object of a, distinguishing an unlinked approach
// from one whose handle no longer resolves.
func owner(a *model.CloseApproach, r model.Resolver) (*model.NearEarthObject, error) {
	d, ok := a.NEODesignation()
	if !ok {
		return nil, errors.Wrapf(ErrUnlinkedReference, "approach of %q at %s", a.Designation, a.TimeString())
	}
	neo := a.NEO(r)
	if neo == nil {
		return nil, errors.Wrapf(ErrUnlinkedReference, "designation %q not resolvable", d)
	}
	return neo, nil
}

// compareFloat uses the native operators so NaN never satisfies any of them.
func compareFloat(op Operator, got, want float64) (bool, error) {
	switch op {
	case OpEqual:
		return got == want, nil
	case OpGreaterEqual:
		return got >= want, nil
	case OpLessEqual:
		return got <= want, nil
	}
	return false, unknownOperator(op)
}

func compareOrdered(op Operator, c int) (bool, error) {
	switch op {
	case OpEqual:
		return c == 0, nil
	case OpGreaterEqual:
		return c >= 0, nil
	case OpLessEqual:
		return c <= 0, nil
	}
	return false, unknownOperator(op)
}

// false orders before true.
func compareBool(op Operator, got, want bool) (bool, error) {
	switch op {
	case OpEqual:
		return got == want, nil
	case OpGreaterEqual:
		return got || !want, nil
	case OpLessEqual:
		return !got || want, nil
	}
	return false, unknownOperator(op)
}

func unknownOperator(op Operator) error {
	return errors.Wrapf(ErrUnsupportedCriterion, "operator %s", op)
}
