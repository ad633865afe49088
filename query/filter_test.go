package query

import (
	"math"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/neo-catalog/model"
)

type resolver map[string]*model.NearEarthObject

func (r resolver) LookupByDesignation(d string) *model.NearEarthObject { return r[d] }

func fixture(t *testing.T) (*model.CloseApproach, *model.CloseApproach, resolver) {
	t.Helper()
	eros := &model.NearEarthObject{Designation: "433", Name: "Eros", Diameter: 16.84}
	anon := model.NewNearEarthObject("2021 AB", "", true)

	erosPass, err := model.NewCloseApproach("433", "2020-01-01 18:30", 0.15, 5.2)
	require.NoError(t, err)
	anonPass, err := model.NewCloseApproach("2021 AB", "2019-06-01 00:00", 0.02, 12.0)
	require.NoError(t, err)
	require.NoError(t, model.Link(eros, erosPass))
	require.NoError(t, model.Link(anon, anonPass))
	return erosPass, anonPass, resolver{"433": eros, "2021 AB": anon}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestFilterMatch(t *testing.T) {
	erosPass, anonPass, r := fixture(t)

	tests := []struct {
		name   string
		filter Filter
		ca     *model.CloseApproach
		want   bool
	}{
		{"date eq ignores clock", DateFilter(OpEqual, date(2020, 1, 1)), erosPass, true},
		{"date eq other day", DateFilter(OpEqual, date(2020, 1, 2)), erosPass, false},
		{"date ge same day", DateFilter(OpGreaterEqual, date(2020, 1, 1)), erosPass, true},
		{"date le before", DateFilter(OpLessEqual, date(2019, 12, 31)), erosPass, false},
		{"date reference clock stripped", DateFilter(OpEqual, time.Date(2020, 1, 1, 23, 0, 0, 0, time.UTC)), erosPass, true},
		{"distance le", DistanceFilter(OpLessEqual, 0.05), anonPass, true},
		{"distance le excludes", DistanceFilter(OpLessEqual, 0.05), erosPass, false},
		{"distance ge boundary", DistanceFilter(OpGreaterEqual, 0.15), erosPass, true},
		{"velocity ge", VelocityFilter(OpGreaterEqual, 10), anonPass, true},
		{"velocity le", VelocityFilter(OpLessEqual, 10), anonPass, false},
		{"diameter ge", DiameterFilter(OpGreaterEqual, 10), erosPass, true},
		{"diameter le", DiameterFilter(OpLessEqual, 10), erosPass, false},
		{"nan diameter never ge", DiameterFilter(OpGreaterEqual, 0), anonPass, false},
		{"nan diameter never le", DiameterFilter(OpLessEqual, math.Inf(1)), anonPass, false},
		{"nan diameter never eq", DiameterFilter(OpEqual, math.NaN()), anonPass, false},
		{"hazardous eq true", HazardousFilter(OpEqual, true), anonPass, true},
		{"hazardous eq false", HazardousFilter(OpEqual, false), anonPass, false},
		{"hazardous ge false", HazardousFilter(OpGreaterEqual, false), erosPass, true},
		{"hazardous le false", HazardousFilter(OpLessEqual, false), anonPass, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.filter.Match(tc.ca, r)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFilterUnsupportedKind(t *testing.T) {
	erosPass, _, r := fixture(t)

	_, err := Filter{Kind: Kind(42), Op: OpEqual}.Match(erosPass, r)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedCriterion))
	assert.NotEmpty(t, errors.GetAllHints(err))

	_, err = Filter{}.Match(erosPass, r)
	assert.True(t, errors.Is(err, ErrUnsupportedCriterion))

	_, err = Filter{Kind: KindDistance, Op: Operator(9)}.Match(erosPass, r)
	assert.True(t, errors.Is(err, ErrUnsupportedCriterion))
}

func TestFilterUnlinkedReference(t *testing.T) {
	orphan, err := model.NewCloseApproach("missing", "2020-01-01 00:00", 0.1, 1)
	require.NoError(t, err)

	for _, f := range []Filter{DiameterFilter(OpGreaterEqual, 1), HazardousFilter(OpEqual, false)} {
		_, err := f.Match(orphan, resolver{})
		require.Error(t, err, f.String())
		assert.True(t, errors.Is(err, ErrUnlinkedReference))
	}

	// Approach-only kinds never need the owner.
	ok, err := DistanceFilter(OpLessEqual, 1).Match(orphan, nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFilterDanglingHandle(t *testing.T) {
	erosPass, _, _ := fixture(t)
	_, err := DiameterFilter(OpGreaterEqual, 1).Match(erosPass, resolver{})
	assert.True(t, errors.Is(err, ErrUnlinkedReference))
}

func TestFilterString(t *testing.T) {
	assert.Equal(t, "DistanceFilter(op=le, value=0.05)", DistanceFilter(OpLessEqual, 0.05).String())
	assert.Equal(t, "DateFilter(op=eq, value=2020-01-01)", DateFilter(OpEqual, date(2020, 1, 1)).String())
	assert.Equal(t, "HazardousFilter(op=eq, value=true)", HazardousFilter(OpEqual, true).String())
}

func TestCriteriaFilters(t *testing.T) {
	d := date(2020, 1, 1)
	minDist, maxVel := 0.1, 20.0
	haz := false

	assert.Empty(t, Criteria{}.Filters())
	assert.True(t, Criteria{}.Empty())

	got := CreateFilters(Criteria{StartDate: &d, DistanceMin: &minDist, VelocityMax: &maxVel, Hazardous: &haz})
	assert.Equal(t, []Filter{
		DateFilter(OpGreaterEqual, d),
		DistanceFilter(OpGreaterEqual, minDist),
		VelocityFilter(OpLessEqual, maxVel),
		HazardousFilter(OpEqual, false),
	}, got)

	all := Criteria{
		Date: &d, StartDate: &d, EndDate: &d,
		DistanceMin: &minDist, DistanceMax: &minDist,
		VelocityMin: &maxVel, VelocityMax: &maxVel,
		DiameterMin: &minDist, DiameterMax: &minDist,
		Hazardous: &haz,
	}
	kinds := map[Kind]int{}
	for _, f := range all.Filters() {
		kinds[f.Kind]++
	}
	assert.Equal(t, map[Kind]int{
		KindDate: 3, KindDistance: 2, KindVelocity: 2, KindDiameter: 2, KindHazardous: 1,
	}, kinds)
}

func TestPrepareOrdersOwnerFiltersFirst(t *testing.T) {
	dist := DistanceFilter(OpLessEqual, 0.1)
	diam := DiameterFilter(OpGreaterEqual, 1)
	day := DateFilter(OpEqual, date(2020, 1, 1))
	haz := HazardousFilter(OpEqual, true)

	in := []Filter{dist, diam, day, haz}
	got, err := Prepare(in)
	require.NoError(t, err)
	assert.Equal(t, []Filter{diam, haz, dist, day}, got)
	assert.Equal(t, []Filter{dist, diam, day, haz}, in, "input is left untouched")

	got, err = Prepare(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPrepareRejectsInvalidFilters(t *testing.T) {
	for _, f := range []Filter{
		{},
		{Kind: Kind(42), Op: OpEqual},
		{Kind: KindVelocity, Op: Operator(9)},
	} {
		_, err := Prepare([]Filter{DistanceFilter(OpLessEqual, 1), f})
		require.Error(t, err, f.String())
		assert.True(t, errors.Is(err, ErrUnsupportedCriterion), f.String())
	}
	assert.NoError(t, HazardousFilter(OpLessEqual, false).Validate())
}
