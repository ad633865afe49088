// Package write serializes query results to CSV, JSON and YAML, and reads
// the CSV and JSON forms back.
package write

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"iter"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/neo-catalog/model"
	"github.com/signalsfoundry/neo-catalog/query"
)

// ErrUnknownFormat is returned by WriteFile for unsupported extensions.
var ErrUnknownFormat = errors.New("unknown output format")

// CSVHeader is the column order of the CSV form.
var CSVHeader = []string{
	"datetime_utc", "distance_au", "velocity_km_s",
	"designation", "name", "diameter_km", "potentially_hazardous",
}

// NEORow is the object half of a serialized approach. Name and DiameterKm
// are nil when absent or unknown.
type NEORow struct {
	Designation          string   `json:"designation" yaml:"designation"`
	Name                 *string  `json:"name" yaml:"name"`
	DiameterKm           *float64 `json:"diameter_km" yaml:"diameter_km"`
	PotentiallyHazardous bool     `json:"potentially_hazardous" yaml:"potentially_hazardous"`
}

// Row is one serialized close approach.
type Row struct {
	DatetimeUTC string  `json:"datetime_utc" yaml:"datetime_utc"`
	DistanceAU  float64 `json:"distance_au" yaml:"distance_au"`
	VelocityKmS float64 `json:"velocity_km_s" yaml:"velocity_km_s"`
	NEO         NEORow  `json:"neo" yaml:"neo"`
}

// NewRow flattens a linked approach and its owner. Unlinked approaches
// cannot be serialized.
func NewRow(a *model.CloseApproach, r model.Resolver) (Row, error) {
	neo := a.NEO(r)
	if neo == nil {
		return Row{}, errors.Wrapf(query.ErrUnlinkedReference, "serialize approach of %q at %s",
			a.Designation, a.TimeString())
	}
	row := Row{
		DatetimeUTC: a.TimeString(),
		DistanceAU:  a.Distance,
		VelocityKmS: a.Velocity,
		NEO: NEORow{
			Designation:          neo.Designation,
			PotentiallyHazardous: neo.Hazardous,
		},
	}
	if neo.Name != "" {
		name := neo.Name
		row.NEO.Name = &name
	}
	if neo.HasDiameter() {
		d := neo.Diameter
		row.NEO.DiameterKm = &d
	}
	return row, nil
}

// Diameter returns the diameter, NaN when unknown.
func (n NEORow) Diameter() float64 {
	if n.DiameterKm == nil {
		return math.NaN()
	}
	return *n.DiameterKm
}

// NameOrEmpty returns the name, or "" when absent.
func (n NEORow) NameOrEmpty() string {
	if n.Name == nil {
		return ""
	}
	return *n.Name
}

// Rows converts every approach of seq.
func Rows(seq iter.Seq[*model.CloseApproach], r model.Resolver) ([]Row, error) {
	rows := []Row{}
	for a := range seq {
		row, err := NewRow(a, r)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteCSV writes a header and one line per approach. A missing name is
// written empty and an unknown diameter as "nan".
func WriteCSV(w io.Writer, seq iter.Seq[*model.CloseApproach], r model.Resolver) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return errors.Wrap(err, "write CSV header")
	}
	for a := range seq {
		row, err := NewRow(a, r)
		if err != nil {
			return err
		}
		rec := []string{
			row.DatetimeUTC,
			formatFloat(row.DistanceAU),
			formatFloat(row.VelocityKmS),
			row.NEO.Designation,
			row.NEO.NameOrEmpty(),
			formatFloat(row.NEO.Diameter()),
			strconv.FormatBool(row.NEO.PotentiallyHazardous),
		}
		if err := cw.Write(rec); err != nil {
			return errors.Wrap(err, "write CSV row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush CSV")
}

// WriteJSON writes an indented array of rows.
func WriteJSON(w io.Writer, seq iter.Seq[*model.CloseApproach], r model.Resolver) error {
	rows, err := Rows(seq, r)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(rows), "encode JSON")
}

// WriteYAML writes a YAML sequence of rows.
func WriteYAML(w io.Writer, seq iter.Seq[*model.CloseApproach], r model.Resolver) error {
	rows, err := Rows(seq, r)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rows); err != nil {
		return errors.Wrap(err, "encode YAML")
	}
	return errors.Wrap(enc.Close(), "close YAML encoder")
}

// WriteFile writes seq to path in the format named by its extension:
// .csv, .json, .yaml or .yml. The file only appears, or is replaced, once
// every row has been written.
func WriteFile(path string, seq iter.Seq[*model.CloseApproach], r model.Resolver) error {
	var write func(io.Writer, iter.Seq[*model.CloseApproach], model.Resolver) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		write = WriteCSV
	case ".json":
		write = WriteJSON
	case ".yaml", ".yml":
		write = WriteYAML
	default:
		return errors.WithHint(errors.Wrapf(ErrUnknownFormat, "%q", path),
			"use a .csv, .json, .yaml or .yml output file")
	}

	// Write beside the target and rename on success, so a failed write
	// leaves any existing file untouched.
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	f, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return errors.Wrapf(err, "create temporary file for %q", path)
	}
	tmp := f.Name()
	defer func() {
		if tmp != "" {
			_ = os.Remove(tmp)
		}
	}()

	if err := write(f, seq, r); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Chmod(0o644); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "chmod %q", tmp)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "close %q", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "rename %q to %q", tmp, path)
	}
	tmp = ""
	return nil
}

// ReadJSON parses the output of WriteJSON.
func ReadJSON(rd io.Reader) ([]Row, error) {
	var rows []Row
	if err := json.NewDecoder(rd).Decode(&rows); err != nil {
		return nil, errors.Wrap(err, "decode JSON rows")
	}
	return rows, nil
}

// ReadCSV parses the output of WriteCSV.
func ReadCSV(rd io.Reader) ([]Row, error) {
	recs, err := csv.NewReader(rd).ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "read CSV rows")
	}
	if len(recs) == 0 {
		return nil, errors.New("CSV has no header")
	}

	rows := make([]Row, 0, len(recs)-1)
	for i, rec := range recs[1:] {
		if len(rec) != len(CSVHeader) {
			return nil, errors.Newf("CSV row %d has %d fields, want %d", i+1, len(rec), len(CSVHeader))
		}
		dist, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "CSV row %d distance", i+1)
		}
		vel, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "CSV row %d velocity", i+1)
		}
		haz, err := strconv.ParseBool(rec[6])
		if err != nil {
			return nil, errors.Wrapf(err, "CSV row %d hazardous flag", i+1)
		}
		row := Row{
			DatetimeUTC: rec[0],
			DistanceAU:  dist,
			VelocityKmS: vel,
			NEO: NEORow{
				Designation:          rec[3],
				PotentiallyHazardous: haz,
			},
		}
		if rec[4] != "" {
			name := rec[4]
			row.NEO.Name = &name
		}
		if d, err := strconv.ParseFloat(rec[5], 64); err == nil && !math.IsNaN(d) {
			row.NEO.DiameterKm = &d
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func formatFloat(f float64) string {
	if math.IsNaN(f) {
		return "nan"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
