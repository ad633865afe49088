package main

import (
	"fmt"
	"io"
	"iter"
	"math"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/signalsfoundry/neo-catalog/internal/logging"
	"github.com/signalsfoundry/neo-catalog/internal/write"
	"github.com/signalsfoundry/neo-catalog/model"
	"github.com/signalsfoundry/neo-catalog/query"
)

const defaultLimit = 10

func (a *app) queryCmd() *cobra.Command {
	var (
		limit   int
		outfile string
	)
	cmd := &cobra.Command{
		Use:   "query",
		Short: "List close approaches matching the given criteria, in time order",
		Long: `query lists close approaches matching every supplied criterion, earliest first.

Dates use YYYY-MM-DD. Distances are in astronomical units, velocities in
km/s and diameters in km. A limit of 0 lists every match.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			criteria, err := criteriaFromFlags(cmd.Flags())
			if err != nil {
				return err
			}
			c, err := a.loadCatalog(cmd.Context())
			if err != nil {
				return err
			}

			seq, err := c.Search(query.Query{Filters: criteria.Filters(), Limit: limit})
			if err != nil {
				return err
			}

			if outfile != "" {
				if err := write.WriteFile(outfile, seq, c); err != nil {
					return err
				}
				a.log.Info(cmd.Context(), "wrote query results", logging.String("path", outfile))
				return nil
			}
			return renderTable(cmd.OutOrStdout(), seq, c)
		},
	}

	f := cmd.Flags()
	f.StringP("date", "d", "", "only approaches on this date")
	f.StringP("start-date", "s", "", "only approaches on or after this date")
	f.StringP("end-date", "e", "", "only approaches on or before this date")
	f.Float64("min-distance", 0, "minimum approach distance (au)")
	f.Float64("max-distance", 0, "maximum approach distance (au)")
	f.Float64("min-velocity", 0, "minimum relative velocity (km/s)")
	f.Float64("max-velocity", 0, "maximum relative velocity (km/s)")
	f.Float64("min-diameter", 0, "minimum NEO diameter (km)")
	f.Float64("max-diameter", 0, "maximum NEO diameter (km)")
	f.Bool("hazardous", false, "only potentially hazardous NEOs")
	f.Bool("not-hazardous", false, "only NEOs that are not potentially hazardous")
	f.IntVarP(&limit, "limit", "l", defaultLimit, "maximum number of results; 0 for all")
	f.StringVarP(&outfile, "outfile", "o", "", "write results to a .csv, .json, .yaml or .yml file")
	cmd.MarkFlagsMutuallyExclusive("hazardous", "not-hazardous")
	return cmd
}

// criteriaFromFlags sets a criterion for every flag given explicitly, so a
// zero value such as --min-distance 0 still counts.
func criteriaFromFlags(f *pflag.FlagSet) (query.Criteria, error) {
	var c query.Criteria
	var err error

	dates := []struct {
		flag string
		dst  **time.Time
	}{
		{"date", &c.Date},
		{"start-date", &c.StartDate},
		{"end-date", &c.EndDate},
	}
	for _, d := range dates {
		if *d.dst, err = dateFlag(f, d.flag); err != nil {
			return query.Criteria{}, err
		}
	}

	floats := []struct {
		flag string
		dst  **float64
	}{
		{"min-distance", &c.DistanceMin},
		{"max-distance", &c.DistanceMax},
		{"min-velocity", &c.VelocityMin},
		{"max-velocity", &c.VelocityMax},
		{"min-diameter", &c.DiameterMin},
		{"max-diameter", &c.DiameterMax},
	}
	for _, fl := range floats {
		if !f.Changed(fl.flag) {
			continue
		}
		v, err := f.GetFloat64(fl.flag)
		if err != nil {
			return query.Criteria{}, err
		}
		*fl.dst = &v
	}

	switch {
	case f.Changed("hazardous"):
		v, _ := f.GetBool("hazardous")
		c.Hazardous = &v
	case f.Changed("not-hazardous"):
		v, _ := f.GetBool("not-hazardous")
		v = !v
		c.Hazardous = &v
	}
	return c, nil
}

func dateFlag(f *pflag.FlagSet, name string) (*time.Time, error) {
	if !f.Changed(name) {
		return nil, nil
	}
	raw, err := f.GetString(name)
	if err != nil {
		return nil, err
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		return nil, errors.WithHint(errors.Wrapf(err, "--%s", name), "dates use the form YYYY-MM-DD")
	}
	return &d, nil
}

func renderTable(w io.Writer, seq iter.Seq[*model.CloseApproach], r model.Resolver) error {
	data := pterm.TableData{{
		"Time (UTC)", "Designation", "Name", "Distance (au)", "Velocity (km/s)", "Diameter (km)", "Hazardous",
	}}
	for ca := range seq {
		row, err := write.NewRow(ca, r)
		if err != nil {
			return err
		}
		data = append(data, []string{
			row.DatetimeUTC,
			row.NEO.Designation,
			row.NEO.NameOrEmpty(),
			strconv.FormatFloat(row.DistanceAU, 'f', 4, 64),
			strconv.FormatFloat(row.VelocityKmS, 'f', 2, 64),
			formatDiameter(row.NEO.Diameter()),
			strconv.FormatBool(row.NEO.PotentiallyHazardous),
		})
	}
	if len(data) == 1 {
		_, err := fmt.Fprintln(w, "No matching close approaches.")
		return err
	}
	return pterm.DefaultTable.
		WithHasHeader().
		WithBoxed().
		WithWriter(w).
		WithData(data).
		Render()
}

func formatDiameter(d float64) string {
	if math.IsNaN(d) {
		return "unknown"
	}
	return strconv.FormatFloat(d, 'f', 3, 64)
}
