// Package kb holds the in-memory NEO catalog: the record sets, their
// indexes, the approach linkage and the query pipeline.
package kb

import (
	"context"
	"iter"
	"slices"
	"sync/atomic"
	"time"

	"github.com/signalsfoundry/neo-catalog/internal/logging"
	"github.com/signalsfoundry/neo-catalog/model"
	"github.com/signalsfoundry/neo-catalog/query"
)

// CatalogMetricsRecorder receives catalog sizes and query outcomes.
type CatalogMetricsRecorder interface {
	SetCatalogCounts(neos, approaches, unlinked int)
	ObserveQuery(outcome string, matched int, elapsed time.Duration)
}

// Query outcomes reported to the metrics recorder.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Stats summarises what a catalog holds.
type Stats struct {
	NEOs       int
	Named      int
	Approaches int
	Linked     int
	Unlinked   int
}

// Catalog owns the NEOs and close approaches supplied at construction. The
// indexes and linkage are built once by NewCatalog; nothing mutates
// afterwards, so a Catalog is safe for concurrent readers.
type Catalog struct {
	neos       []*model.NearEarthObject
	approaches []*model.CloseApproach

	byDesignation map[string]*model.NearEarthObject
	byName        map[string]*model.NearEarthObject

	unlinked []*model.CloseApproach

	log     logging.Logger
	metrics CatalogMetricsRecorder
}

// Option customises catalog construction.
type Option func(*Catalog)

// WithLogger attaches a logger for construction diagnostics.
func WithLogger(l logging.Logger) Option {
	return func(c *Catalog) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m CatalogMetricsRecorder) Option {
	return func(c *Catalog) {
		c.metrics = m
	}
}

// NewCatalog indexes neos and links every approach to its owner. Approaches
// whose designation matches no object are kept but stay unlinked.
func NewCatalog(neos []*model.NearEarthObject, approaches []*model.CloseApproach, opts ...Option) *Catalog {
	c := &Catalog{
		neos:          neos,
		approaches:    approaches,
		byDesignation: make(map[string]*model.NearEarthObject, len(neos)),
		byName:        make(map[string]*model.NearEarthObject),
		log:           logging.Noop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.index()
	c.link()

	if c.metrics != nil {
		c.metrics.SetCatalogCounts(len(c.neos), len(c.approaches), len(c.unlinked))
	}
	return c
}

func (c *Catalog) index() {
	ctx := context.Background()
	for _, neo := range c.neos {
		if _, dup := c.byDesignation[neo.Designation]; dup {
			c.log.Warn(ctx, "duplicate designation; keeping the later record",
				logging.String("designation", neo.Designation))
		}
		c.byDesignation[neo.Designation] = neo
		if neo.Name != "" {
			c.byName[neo.Name] = neo
		}
	}
}

func (c *Catalog) link() {
	ctx := context.Background()
	for _, ca := range c.approaches {
		neo, ok := c.byDesignation[ca.Designation]
		if !ok {
			c.unlinked = append(c.unlinked, ca)
			continue
		}
		if err := model.Link(neo, ca); err != nil {
			// An approach handed to two catalogs keeps its first owner.
			c.log.Warn(ctx, "approach already linked", logging.String("error", err.Error()))
			c.unlinked = append(c.unlinked, ca)
		}
	}
	if n := len(c.unlinked); n > 0 {
		c.log.Warn(ctx, "close approaches without a matching NEO",
			logging.Int("unlinked", n),
			logging.Int("approaches", len(c.approaches)),
		)
	}
	c.log.Debug(ctx, "catalog linked",
		logging.Int("neos", len(c.neos)),
		logging.Int("approaches", len(c.approaches)),
	)
}

// LookupByDesignation returns the NEO with the given primary designation, or
// nil if there is none.
func (c *Catalog) LookupByDesignation(designation string) *model.NearEarthObject {
	return c.byDesignation[designation]
}

// LookupByName returns the NEO with exactly the given name, or nil. Unnamed
// objects are never returned.
func (c *Catalog) LookupByName(name string) *model.NearEarthObject {
	if name == "" {
		return nil
	}
	return c.byName[name]
}

// NEOs returns every object in construction order.
func (c *Catalog) NEOs() []*model.NearEarthObject {
	return slices.Clone(c.neos)
}

// Approaches returns every approach, linked or not, in construction order.
func (c *Catalog) Approaches() []*model.CloseApproach {
	return slices.Clone(c.approaches)
}

// Unlinked returns the approaches that could not be linked.
func (c *Catalog) Unlinked() []*model.CloseApproach {
	return slices.Clone(c.unlinked)
}

// Stats summarises the catalog contents.
func (c *Catalog) Stats() Stats {
	return Stats{
		NEOs:       len(c.neos),
		Named:      len(c.byName),
		Approaches: len(c.approaches),
		Linked:     len(c.approaches) - len(c.unlinked),
		Unlinked:   len(c.unlinked),
	}
}

// Query selects the approaches satisfying every filter (an empty set matches
// all of them) and orders them by ascending time, keeping feed order on
// ties. Filter errors abort the query before anything is yielded.
//
// The returned sequence is single-pass: ranging over it a second time yields
// nothing, including from another goroutine. Call Query again for a fresh
// pass.
func (c *Catalog) Query(filters ...query.Filter) (iter.Seq[*model.CloseApproach], error) {
	start := time.Now()

	matched, err := c.filter(filters)
	if err != nil {
		c.observe(OutcomeError, 0, start)
		return nil, err
	}
	slices.SortStableFunc(matched, func(a, b *model.CloseApproach) int {
		return a.Time.Compare(b.Time)
	})

	c.observe(OutcomeOK, len(matched), start)
	return once(matched), nil
}

// Search runs q's filters through Query and caps the stream at q.Limit.
func (c *Catalog) Search(q query.Query) (iter.Seq[*model.CloseApproach], error) {
	seq, err := c.Query(q.Filters...)
	if err != nil {
		return nil, err
	}
	return query.Limit(seq, q.Limit), nil
}

// filter always returns a fresh slice so sorting never disturbs feed order.
// Once any filter needs the owning object, every unlinked approach fails the
// query, independent of how the other filters would have judged it.
func (c *Catalog) filter(filters []query.Filter) ([]*model.CloseApproach, error) {
	filters, err := query.Prepare(filters)
	if err != nil {
		return nil, err
	}
	out := make([]*model.CloseApproach, 0, len(c.approaches))
next:
	for _, ca := range c.approaches {
		for _, f := range filters {
			ok, err := f.Match(ca, c)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue next
			}
		}
		out = append(out, ca)
	}
	return out, nil
}

func (c *Catalog) observe(outcome string, matched int, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.ObserveQuery(outcome, matched, time.Since(start))
}

// once yields items on the first range only. Concurrent ranges are safe:
// exactly one of them sees the items.
func once(items []*model.CloseApproach) iter.Seq[*model.CloseApproach] {
	var consumed atomic.Bool
	return func(yield func(*model.CloseApproach) bool) {
		if !consumed.CompareAndSwap(false, true) {
			return
		}
		for _, ca := range items {
			if !yield(ca) {
				return
			}
		}
	}
}
