package write

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/neo-catalog/kb"
	"github.com/signalsfoundry/neo-catalog/model"
	"github.com/signalsfoundry/neo-catalog/query"
)

func testCatalog(t *testing.T) *kb.Catalog {
	t.Helper()
	neos := []*model.NearEarthObject{
		{Designation: "2021 AB", Diameter: math.NaN()},
		{Designation: "433", Name: "Eros", Diameter: 16.84},
	}
	var approaches []*model.CloseApproach
	for _, in := range []struct {
		des, ts   string
		dist, vel float64
	}{
		{"433", "2020-01-01 00:00", 0.15, 5.2},
		{"2021 AB", "2019-06-01 13:45", 0.0234567891, 12.0},
	} {
		ca, err := model.NewCloseApproach(in.des, in.ts, in.dist, in.vel)
		require.NoError(t, err)
		approaches = append(approaches, ca)
	}
	return kb.NewCatalog(neos, approaches)
}

func results(t *testing.T, c *kb.Catalog) []*model.CloseApproach {
	t.Helper()
	seq, err := c.Query()
	require.NoError(t, err)
	return slices.Collect(seq)
}

func assertRoundTrip(t *testing.T, c *kb.Catalog, want []*model.CloseApproach, got []Row) {
	t.Helper()
	require.Len(t, got, len(want))
	for i, ca := range want {
		neo := ca.NEO(c)
		row := got[i]
		assert.Equal(t, ca.TimeString(), row.DatetimeUTC)
		assert.Equal(t, ca.Distance, row.DistanceAU)
		assert.Equal(t, ca.Velocity, row.VelocityKmS)
		assert.Equal(t, neo.Designation, row.NEO.Designation)
		assert.Equal(t, neo.Name, row.NEO.NameOrEmpty())
		assert.Equal(t, neo.Hazardous, row.NEO.PotentiallyHazardous)
		if neo.HasDiameter() {
			assert.Equal(t, neo.Diameter, row.NEO.Diameter())
		} else {
			assert.True(t, math.IsNaN(row.NEO.Diameter()))
		}

		ts, err := model.ParseTimestamp(row.DatetimeUTC)
		require.NoError(t, err)
		assert.True(t, ts.Equal(ca.Time))
	}
}

func TestJSONRoundTrip(t *testing.T) {
	c := testCatalog(t)
	want := results(t, c)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, slices.Values(want), c))
	assert.Contains(t, buf.String(), `"diameter_km": null`)
	assert.Contains(t, buf.String(), `"name": null`)

	got, err := ReadJSON(&buf)
	require.NoError(t, err)
	assertRoundTrip(t, c, want, got)
}

func TestCSVRoundTrip(t *testing.T) {
	c := testCatalog(t)
	want := results(t, c)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, slices.Values(want), c))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(CSVHeader, ","), lines[0])
	assert.Equal(t, "2019-06-01 13:45,0.0234567891,12,2021 AB,,nan,false", lines[1])

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	assertRoundTrip(t, c, want, got)
}

func TestYAML(t *testing.T) {
	c := testCatalog(t)
	want := results(t, c)

	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, slices.Values(want), c))

	var got []Row
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assertRoundTrip(t, c, want, got)
}

func TestEmptyResultsWriteEmptyArray(t *testing.T) {
	c := testCatalog(t)
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, slices.Values([]*model.CloseApproach(nil)), c))
	assert.Equal(t, "[]\n", buf.String())
}

func TestUnlinkedApproachIsRejected(t *testing.T) {
	c := testCatalog(t)
	orphan, err := model.NewCloseApproach("ghost", "2020-01-01 00:00", 1, 1)
	require.NoError(t, err)

	for name, w := range map[string]func() error{
		"csv":  func() error { return WriteCSV(&bytes.Buffer{}, slices.Values([]*model.CloseApproach{orphan}), c) },
		"json": func() error { return WriteJSON(&bytes.Buffer{}, slices.Values([]*model.CloseApproach{orphan}), c) },
		"yaml": func() error { return WriteYAML(&bytes.Buffer{}, slices.Values([]*model.CloseApproach{orphan}), c) },
	} {
		err := w()
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, query.ErrUnlinkedReference), name)
	}
}

func TestWriteFilePicksFormat(t *testing.T) {
	c := testCatalog(t)
	dir := t.TempDir()

	for _, name := range []string{"out.csv", "out.json", "out.yml"} {
		path := filepath.Join(dir, name)
		seq, err := c.Query()
		require.NoError(t, err)
		require.NoError(t, WriteFile(path, seq, c))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "2021 AB", name)
	}

	seq, err := c.Query()
	require.NoError(t, err)
	err = WriteFile(filepath.Join(dir, "out.txt"), seq, c)
	assert.True(t, errors.Is(err, ErrUnknownFormat))
}

func TestWriteFileFailureKeepsExistingFile(t *testing.T) {
	c := testCatalog(t)
	orphan, err := model.NewCloseApproach("ghost", "2020-01-01 00:00", 1, 1)
	require.NoError(t, err)
	linked := results(t, c)

	dir := t.TempDir()
	for _, name := range []string{"out.csv", "out.json", "out.yaml"} {
		path := filepath.Join(dir, name)

		err := WriteFile(path, slices.Values(append(slices.Clone(linked), orphan)), c)
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, query.ErrUnlinkedReference), name)
		_, statErr := os.Stat(path)
		assert.True(t, os.IsNotExist(statErr), "%s must not be created on failure", name)

		require.NoError(t, os.WriteFile(path, []byte("previous results"), 0o600))
		err = WriteFile(path, slices.Values([]*model.CloseApproach{linked[0], orphan}), c)
		require.Error(t, err, name)
		data, readErr := os.ReadFile(path)
		require.NoError(t, readErr)
		assert.Equal(t, "previous results", string(data), name)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3, "no temporary files are left behind")
}
