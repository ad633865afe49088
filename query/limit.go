package query

import "iter"

// Query bundles a filter set with an optional result cap.
type Query struct {
	Filters []Filter
	// Limit caps the number of results. Zero and negative values mean no
	// cap; there is no way to ask for zero results.
	Limit int
}

// Limit caps seq at n items. When n <= 0 seq is returned unchanged, so
// Limit(seq, 0) is unlimited rather than empty. For n > 0 iteration stops
// pulling from seq as soon as n items have been yielded.
func Limit[T any](seq iter.Seq[T], n int) iter.Seq[T] {
	if n <= 0 {
		return seq
	}
	return func(yield func(T) bool) {
		taken := 0
		for v := range seq {
			if !yield(v) {
				return
			}
			taken++
			if taken >= n {
				return
			}
		}
	}
}

