package query

import (
	"iter"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

// counting yields 0..n-1 and records how many values were produced.
func counting(n int, produced *int) iter.Seq[int] {
	return func(yield func(int) bool) {
		for i := 0; i < n; i++ {
			*produced++
			if !yield(i) {
				return
			}
		}
	}
}

func TestLimitCapsAndShortCircuits(t *testing.T) {
	produced := 0
	got := slices.Collect(Limit(counting(100, &produced), 3))
	assert.Equal(t, []int{0, 1, 2}, got)
	assert.Equal(t, 3, produced, "upstream must not be drained past the cap")
}

func TestLimitLargerThanInput(t *testing.T) {
	produced := 0
	got := slices.Collect(Limit(counting(2, &produced), 5))
	assert.Equal(t, []int{0, 1}, got)
}

// A zero cap means "no cap", not "no results".
func TestLimitZeroAndNegativeAreUnlimited(t *testing.T) {
	for _, n := range []int{0, -1, -100} {
		produced := 0
		got := slices.Collect(Limit(counting(4, &produced), n))
		assert.Equal(t, []int{0, 1, 2, 3}, got, "n=%d", n)
	}
}

func TestLimitHonoursEarlyBreak(t *testing.T) {
	produced := 0
	for v := range Limit(counting(10, &produced), 5) {
		if v == 1 {
			break
		}
	}
	assert.Equal(t, 2, produced)
}
