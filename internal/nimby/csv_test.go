package nimby

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStationsFromReader(t *testing.T) {
	data := "\ufeffstation_id,name,lon,lat\n" +
		"s1,Central,13.0,52.0\n" +
		"s2,\"Market, North\",13.1,52.1\n" +
		"s3,No Lat,13.2,\n" +
		"s4,Bad Lon,east,52.3\n" +
		",Nameless,13.4,52.4\n"

	stations, err := parseStationsFromReader(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, stations, 2)

	assert.Equal(t, "s1", stations[0].Key)
	assert.Equal(t, "Central", stations[0].Name)
	assert.Equal(t, 52.0, stations[0].Lat)
	assert.Equal(t, 13.0, stations[0].Lon)
	assert.Equal(t, "Market, North", stations[1].Name)
}

func TestParseLinesFromReader(t *testing.T) {
	data := "line_id,name,code,color\n" +
		"L1,Ring,U1,#ff0000\n" +
		"L2,Shuttle,,\n" +
		",Orphan,X,\n"

	lines, err := parseLinesFromReader(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, lines, 2)

	require.NotNil(t, lines[0].Color)
	assert.Equal(t, "#ff0000", *lines[0].Color)
	assert.Nil(t, lines[1].Color)
	assert.Equal(t, "", lines[1].Code)
}

func TestParseLineStopsFromReader(t *testing.T) {
	data := "line_id,stop_index,station_id,arrival_s,departure_s,leg_distance_m\n" +
		"L1,0,s1,,0,\n" +
		"L1,1,s2,120,150,950.5\n" +
		"L1,two,s3,,,\n" +
		"L1,3,,,,\n"

	stops, err := parseLineStopsFromReader(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, stops, 2)

	assert.Nil(t, stops[0].ArrivalS)
	require.NotNil(t, stops[0].DepartureS)
	assert.Equal(t, 0, *stops[0].DepartureS)
	require.NotNil(t, stops[1].LegDistanceM)
	assert.Equal(t, 950.5, *stops[1].LegDistanceM)
}

func TestParseEmptyFile(t *testing.T) {
	_, err := parseStationsFromReader(strings.NewReader(""))
	assert.Error(t, err)
}

func writeCSVExport(t *testing.T, dir string, withLines bool) {
	t.Helper()

	files := map[string]string{
		StationsFile: "station_id,name,lon,lat\ns1,Central,13.0,52.0\ns2,Market,13.0,52.01\n",
		LineStopsFile: "line_id,stop_index,station_id\n" +
			"L1,1,s2\n" +
			"L1,0,s1\n",
	}
	if withLines {
		files[LinesFile] = "line_id,name,code,color\nL1,Ring,U1,\n"
	}

	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
}

func TestLoadCSVDir(t *testing.T) {
	dir := t.TempDir()
	writeCSVExport(t, dir, true)

	snap, err := LoadCSVDir(dir, true)
	require.NoError(t, err)

	assert.Len(t, snap.Stations, 2)
	assert.Len(t, snap.Lines, 1)

	stops := snap.StopsByLine["L1"]
	require.Len(t, stops, 2)
	assert.Equal(t, "s1", stops[0].StationKey)
	assert.Equal(t, "s2", stops[1].StationKey)
}

func TestLoadCSVDirMissingRequiredFile(t *testing.T) {
	dir := t.TempDir()
	writeCSVExport(t, dir, false)

	_, err := LoadCSVDir(dir, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)

	snap, err := LoadCSVDir(dir, false)
	require.NoError(t, err)
	assert.Nil(t, snap.Lines)
}

func TestLoadCSVZip(t *testing.T) {
	src := t.TempDir()
	writeCSVExport(t, src, true)

	zipPath := filepath.Join(t.TempDir(), "export.zip")
	out, err := os.Create(zipPath)
	require.NoError(t, err)

	zw := zip.NewWriter(out)
	for _, name := range []string{StationsFile, LinesFile, LineStopsFile} {
		data, err := os.ReadFile(filepath.Join(src, name))
		require.NoError(t, err)
		w, err := zw.Create("export/" + name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, out.Close())

	snap, err := LoadCSVZip(zipPath, true)
	require.NoError(t, err)
	assert.Len(t, snap.Stations, 2)
	assert.Len(t, snap.StopsByLine["L1"], 2)
}
