// Package extract loads NEO and close-approach records from the files
// published by JPL: the small-body database CSV export and the
// close-approach data (CAD) API JSON.
package extract

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/signalsfoundry/neo-catalog/model"
)

// ErrMalformedFeed is returned when a file cannot be read as the expected
// format at all. Individual malformed fields never produce it.
var ErrMalformedFeed = errors.New("malformed feed")

// Report summarises one load.
type Report struct {
	Rows int
	// Defaulted counts numeric fields replaced by their sentinel (NaN for
	// diameter, 0 for distance and velocity).
	Defaulted int
	// Skipped counts rows dropped because they had no usable identity or
	// timestamp.
	Skipped int
}

// LoadNEOsFile opens path and calls LoadNEOs.
func LoadNEOsFile(path string) ([]*model.NearEarthObject, Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Report{}, errors.Wrapf(err, "open NEO file %q", path)
	}
	defer f.Close()
	return LoadNEOs(f)
}

// LoadNEOs reads a CSV with a header row. The columns pdes, name, diameter
// and pha are located by name; others are ignored.
func LoadNEOs(r io.Reader) ([]*model.NearEarthObject, Report, error) {
	var rep Report

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, rep, errors.Wrap(errors.Mark(err, ErrMalformedFeed), "read NEO header")
	}
	cols := columnIndex(header)
	pdes, ok := cols["pdes"]
	if !ok {
		return nil, rep, errors.Wrap(ErrMalformedFeed, "NEO header has no pdes column")
	}
	name, hasName := cols["name"]
	diameter, hasDiameter := cols["diameter"]
	pha, hasPHA := cols["pha"]

	var out []*model.NearEarthObject
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, rep, errors.Wrapf(errors.Mark(err, ErrMalformedFeed), "read NEO row %d", rep.Rows+1)
		}
		rep.Rows++

		des := strings.TrimSpace(field(rec, pdes))
		if des == "" {
			rep.Skipped++
			continue
		}

		neo := &model.NearEarthObject{
			Designation: des,
			Diameter:    math.NaN(),
		}
		if hasName {
			neo.Name = strings.TrimSpace(field(rec, name))
		}
		if hasDiameter {
			if raw := strings.TrimSpace(field(rec, diameter)); raw != "" {
				if d, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsInf(d, 0) && !math.IsNaN(d) {
					neo.Diameter = d
				} else {
					rep.Defaulted++
				}
			}
		}
		if hasPHA {
			neo.Hazardous = strings.EqualFold(strings.TrimSpace(field(rec, pha)), "Y")
		}
		out = append(out, neo)
	}
	return out, rep, nil
}

// cadPayload is the subset of the CAD API response we read. Values arrive
// as strings, but numbers and nulls are tolerated.
type cadPayload struct {
	Fields []string            `json:"fields"`
	Data   [][]json.RawMessage `json:"data"`
}

// Positions used when the payload carries no fields list.
const (
	cadDes  = 0
	cadCD   = 3
	cadDist = 4
	cadVRel = 7
)

// LoadApproachesFile opens path and calls LoadApproaches.
func LoadApproachesFile(path string) ([]*model.CloseApproach, Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Report{}, errors.Wrapf(err, "open close-approach file %q", path)
	}
	defer f.Close()
	return LoadApproaches(f)
}

// LoadApproaches reads a CAD JSON document. Unparsable or non-finite
// distances and velocities default to zero; rows with an unusable timestamp are skipped.
func LoadApproaches(r io.Reader) ([]*model.CloseApproach, Report, error) {
	var rep Report

	var payload cadPayload
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, rep, errors.Wrap(errors.Mark(err, ErrMalformedFeed), "decode close-approach JSON")
	}

	des, cd, dist, vrel := cadDes, cadCD, cadDist, cadVRel
	if len(payload.Fields) > 0 {
		cols := columnIndex(payload.Fields)
		var missing []string
		lookup := func(name string, dst *int) {
			if i, ok := cols[name]; ok {
				*dst = i
			} else {
				missing = append(missing, name)
			}
		}
		lookup("des", &des)
		lookup("cd", &cd)
		lookup("dist", &dist)
		lookup("v_rel", &vrel)
		if len(missing) > 0 {
			return nil, rep, errors.Wrapf(ErrMalformedFeed, "close-approach fields missing %v", missing)
		}
	}

	out := make([]*model.CloseApproach, 0, len(payload.Data))
	for _, row := range payload.Data {
		rep.Rows++

		designation := strings.TrimSpace(rawString(row, des))
		t, err := model.ParseTimestamp(rawString(row, cd))
		if designation == "" || err != nil {
			rep.Skipped++
			continue
		}

		ca := &model.CloseApproach{
			Designation: designation,
			Time:        t,
			Distance:    parseOrZero(rawString(row, dist), &rep),
			Velocity:    parseOrZero(rawString(row, vrel), &rep),
		}
		out = append(out, ca)
	}
	return out, rep, nil
}

func parseOrZero(s string, rep *Report) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		rep.Defaulted++
		return 0
	}
	return f
}

func columnIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return cols
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}

// rawString renders a JSON scalar as text: strings are unquoted, null is
// empty and numbers keep their literal form.
func rawString(row []json.RawMessage, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	raw := bytes.TrimSpace(row[i])
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	}
	return string(raw)
}
