package extract

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// StopRow is one record of stops.txt.
type StopRow struct {
	StopID      string
	Name        string
	Lat         float64
	Lon         float64
	HasPosition bool
}

// StopTimeRow is one record of stop_times.txt, with times kept as written.
type StopTimeRow struct {
	TripID        string
	StopID        string
	StopSequence  int
	ArrivalTime   string
	DepartureTime string
}

// Tables holds the two tables the graph is built from.
type Tables struct {
	Stops     []StopRow
	StopTimes []StopTimeRow
}

func makeIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		idx[strings.TrimSpace(h)] = i
	}
	return idx
}

func getField(record []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func requireColumns(idx map[string]int, file string, names ...string) error {
	for _, n := range names {
		if _, ok := idx[n]; !ok {
			return fmt.Errorf("%s: missing column %q", file, n)
		}
	}
	return nil
}

func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	return cr
}

// ReadStopsCSV reads a stops.txt table. Rows with unparsable coordinates are
// kept without a position.
func ReadStopsCSV(r io.Reader) ([]StopRow, error) {
	cr := newCSVReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("stops.txt header: %w", err)
	}
	idx := makeIndex(header)
	if err := requireColumns(idx, "stops.txt", "stop_id", "stop_name"); err != nil {
		return nil, err
	}

	var rows []StopRow
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("stops.txt: %w", err)
		}

		row := StopRow{
			StopID: getField(record, idx, "stop_id"),
			Name:   getField(record, idx, "stop_name"),
		}
		if row.StopID == "" {
			continue
		}
		lat, latErr := strconv.ParseFloat(getField(record, idx, "stop_lat"), 64)
		lon, lonErr := strconv.ParseFloat(getField(record, idx, "stop_lon"), 64)
		if latErr == nil && lonErr == nil {
			row.Lat, row.Lon, row.HasPosition = lat, lon, true
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ReadStopTimesCSV reads a stop_times.txt table. A row whose stop_sequence is
// not an integer fails the whole read, since trip order cannot be recovered.
func ReadStopTimesCSV(r io.Reader) ([]StopTimeRow, error) {
	cr := newCSVReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("stop_times.txt header: %w", err)
	}
	idx := makeIndex(header)
	if err := requireColumns(idx, "stop_times.txt",
		"trip_id", "stop_id", "stop_sequence", "arrival_time", "departure_time"); err != nil {
		return nil, err
	}

	var rows []StopTimeRow
	line := 1
	for {
		record, err := cr.Read()
		line++
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("stop_times.txt: %w", err)
		}

		seq, err := strconv.Atoi(getField(record, idx, "stop_sequence"))
		if err != nil {
			return nil, fmt.Errorf("stop_times.txt line %d: bad stop_sequence: %w", line, err)
		}
		rows = append(rows, StopTimeRow{
			TripID:        getField(record, idx, "trip_id"),
			StopID:        getField(record, idx, "stop_id"),
			StopSequence:  seq,
			ArrivalTime:   getField(record, idx, "arrival_time"),
			DepartureTime: getField(record, idx, "departure_time"),
		})
	}
	return rows, nil
}

// LoadDir reads stops.txt and stop_times.txt from an extracted feed directory.
func LoadDir(dir string) (Tables, error) {
	var t Tables

	stops, err := os.Open(filepath.Join(dir, "stops.txt"))
	if err != nil {
		return t, err
	}
	defer stops.Close()
	if t.Stops, err = ReadStopsCSV(stops); err != nil {
		return t, err
	}

	stopTimes, err := os.Open(filepath.Join(dir, "stop_times.txt"))
	if err != nil {
		return t, err
	}
	defer stopTimes.Close()
	if t.StopTimes, err = ReadStopTimesCSV(stopTimes); err != nil {
		return t, err
	}
	return t, nil
}
