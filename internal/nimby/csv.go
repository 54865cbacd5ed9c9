package nimby

import (
	"archive/zip"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/passbi/passbi_topology/internal/logger"
	"github.com/passbi/passbi_topology/internal/models"
)

// CSV file names of a table-per-file export
const (
	StationsFile  = "stations.csv"
	LinesFile     = "lines.csv"
	LineStopsFile = "line_stops.csv"
)

// LoadCSVZip extracts a zipped CSV export and loads it
func LoadCSVZip(zipPath string, extended bool) (models.Snapshot, error) {
	tempDir, err := os.MkdirTemp("", "nimby-*")
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	if err := extractZip(zipPath, tempDir); err != nil {
		return models.Snapshot{}, fmt.Errorf("failed to extract zip: %w", err)
	}

	return LoadCSVDir(tempDir, extended)
}

// LoadCSVDir loads an export stored as one CSV file per table.
// Malformed rows are skipped with a warning; a missing required file is an error.
func LoadCSVDir(dir string, extended bool) (models.Snapshot, error) {
	var snap models.Snapshot

	stations, err := ParseStations(filepath.Join(dir, StationsFile))
	if err != nil {
		return snap, fmt.Errorf("failed to parse stations (required): %w", err)
	}
	snap.Stations = stations
	logger.Info("Parsed stations", "count", len(stations))

	if extended {
		lines, err := ParseLines(filepath.Join(dir, LinesFile))
		if err != nil {
			return snap, fmt.Errorf("failed to parse lines (required): %w", err)
		}
		snap.Lines = lines
		logger.Info("Parsed lines", "count", len(lines))
	}

	stops, err := ParseLineStops(filepath.Join(dir, LineStopsFile))
	if err != nil {
		return snap, fmt.Errorf("failed to parse line_stops (required): %w", err)
	}
	snap.StopsByLine = GroupStops(stops)
	logger.Info("Parsed line stops", "count", len(stops))

	return snap, nil
}

// ParseStations parses stations.csv
func ParseStations(filePath string) ([]models.StationRow, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return parseStationsFromReader(file)
}

func parseStationsFromReader(reader io.Reader) ([]models.StationRow, error) {
	csvReader := newReader(reader)

	header, err := csvReader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	colMap := makeColumnMap(header)
	var stations []models.StationRow

	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Warn("Skipping malformed station row", "err", err)
			continue
		}

		stationID := getField(record, colMap, "station_id")
		latStr := getField(record, colMap, "lat")
		lonStr := getField(record, colMap, "lon")

		if stationID == "" || latStr == "" || lonStr == "" {
			logger.Warn("Skipping station with missing required fields", "station_id", stationID)
			continue
		}

		lat, err := strconv.ParseFloat(latStr, 64)
		if err != nil {
			logger.Warn("Invalid latitude", "station_id", stationID, "err", err)
			continue
		}

		lon, err := strconv.ParseFloat(lonStr, 64)
		if err != nil {
			logger.Warn("Invalid longitude", "station_id", stationID, "err", err)
			continue
		}

		stations = append(stations, models.StationRow{
			Key:  stationID,
			Name: getField(record, colMap, "name"),
			Lat:  lat,
			Lon:  lon,
		})
	}

	return stations, nil
}

// ParseLines parses lines.csv. An empty color cell means no color.
func ParseLines(filePath string) ([]models.LineRow, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return parseLinesFromReader(file)
}

func parseLinesFromReader(reader io.Reader) ([]models.LineRow, error) {
	csvReader := newReader(reader)

	header, err := csvReader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	colMap := makeColumnMap(header)
	lines := make([]models.LineRow, 0)

	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Warn("Skipping malformed line row", "err", err)
			continue
		}

		lineID := getField(record, colMap, "line_id")
		if lineID == "" {
			logger.Warn("Skipping line without line_id")
			continue
		}

		line := models.LineRow{
			Key:  lineID,
			Name: getField(record, colMap, "name"),
			Code: getField(record, colMap, "code"),
		}
		if color := getField(record, colMap, "color"); color != "" {
			line.Color = &color
		}

		lines = append(lines, line)
	}

	return lines, nil
}

// ParseLineStops parses line_stops.csv
func ParseLineStops(filePath string) ([]models.StopRow, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return parseLineStopsFromReader(file)
}

func parseLineStopsFromReader(reader io.Reader) ([]models.StopRow, error) {
	csvReader := newReader(reader)

	header, err := csvReader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	colMap := makeColumnMap(header)
	var stops []models.StopRow

	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Warn("Skipping malformed line_stop row", "err", err)
			continue
		}

		lineID := getField(record, colMap, "line_id")
		stationID := getField(record, colMap, "station_id")
		indexStr := getField(record, colMap, "stop_index")

		if lineID == "" || stationID == "" || indexStr == "" {
			continue
		}

		index, err := strconv.Atoi(indexStr)
		if err != nil {
			logger.Warn("Invalid stop_index", "line_id", lineID, "err", err)
			continue
		}

		stops = append(stops, models.StopRow{
			LineKey:      lineID,
			Index:        index,
			StationKey:   stationID,
			ArrivalS:     optionalInt(getField(record, colMap, "arrival_s")),
			DepartureS:   optionalInt(getField(record, colMap, "departure_s")),
			LegDistanceM: optionalFloat(getField(record, colMap, "leg_distance_m")),
		})
	}

	return stops, nil
}

// Helper functions

func newReader(reader io.Reader) *csv.Reader {
	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1
	return csvReader
}

func makeColumnMap(header []string) map[string]int {
	colMap := make(map[string]int)
	for i, col := range header {
		// strip a UTF-8 BOM left by spreadsheet exports
		colMap[strings.TrimPrefix(strings.TrimSpace(col), "\ufeff")] = i
	}
	return colMap
}

func getField(record []string, colMap map[string]int, fieldName string) string {
	if idx, ok := colMap[fieldName]; ok && idx < len(record) {
		return strings.TrimSpace(record[idx])
	}
	return ""
}

func optionalInt(s string) *int {
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &v
}

func optionalFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func extractZip(zipPath, destDir string) error {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return err
	}
	defer reader.Close()

	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return err
		}

		destPath := filepath.Join(destDir, filepath.Base(file.Name))
		outFile, err := os.Create(destPath)
		if err != nil {
			rc.Close()
			return err
		}

		_, err = io.Copy(outFile, rc)
		rc.Close()
		outFile.Close()

		if err != nil {
			return err
		}
	}

	return nil
}
