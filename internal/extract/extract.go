// Package extract turns the stop table and the stop-sequence table of one
// agency into the raw material of the schedule graph: per-trip visits and
// downstream edges with travel times.
package extract

import (
	"fmt"
	"log/slog"
	"sort"

	"heatmap.tricitytransit.org/internal/graph"
	"heatmap.tricitytransit.org/internal/gtfstime"
	"heatmap.tricitytransit.org/internal/logging"
)

// Trip is one trip's stop_times records ordered by stop_sequence.
type Trip struct {
	ID   string
	Rows []StopTimeRow
}

// TripIndex groups stop_times records by trip, built in one pass.
type TripIndex struct {
	order []string
	trips map[string]*Trip
}

// IndexTrips groups rows by trip id. Trips keep the order in which they first
// appear; rows within a trip are stably sorted by stop_sequence.
func IndexTrips(rows []StopTimeRow) *TripIndex {
	idx := &TripIndex{trips: make(map[string]*Trip)}
	for _, r := range rows {
		t, ok := idx.trips[r.TripID]
		if !ok {
			t = &Trip{ID: r.TripID}
			idx.trips[r.TripID] = t
			idx.order = append(idx.order, r.TripID)
		}
		t.Rows = append(t.Rows, r)
	}
	for _, t := range idx.trips {
		sort.SliceStable(t.Rows, func(i, j int) bool {
			return t.Rows[i].StopSequence < t.Rows[j].StopSequence
		})
	}
	return idx
}

// Len returns the number of trips.
func (idx *TripIndex) Len() int { return len(idx.order) }

// Trips returns the trips in first-seen order.
func (idx *TripIndex) Trips() []*Trip {
	out := make([]*Trip, 0, len(idx.order))
	for _, id := range idx.order {
		out = append(out, idx.trips[id])
	}
	return out
}

// Trip looks a trip up by id.
func (idx *TripIndex) Trip(id string) (*Trip, bool) {
	t, ok := idx.trips[id]
	return t, ok
}

// Warning is a data-quality problem that caused a record to be skipped.
type Warning struct {
	TripID   string
	StopID   string
	Sequence int
	Reason   string
}

func (w Warning) String() string {
	return fmt.Sprintf("trip %s stop %s seq %d: %s", w.TripID, w.StopID, w.Sequence, w.Reason)
}

// IntegrityError reports an arrival earlier than its departure that midnight
// fixing could not explain.
type IntegrityError struct {
	TripID    string
	From      string
	To        string
	Departure gtfstime.Time
	Arrival   gtfstime.Time
	Err       error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("trip %s from %s to %s: %v", e.TripID, e.From, e.To, e.Err)
}

func (e *IntegrityError) Unwrap() error { return e.Err }

// Options tune an extraction.
type Options struct {
	// Strict aborts the extraction on the first IntegrityError.
	Strict bool
	// StopKeyPrefix namespaces the stop keys of this agency.
	StopKeyPrefix string
}

// Result is everything one extraction produced.
type Result struct {
	Stops     []graph.StopInfo
	Visits    []graph.Visit
	Edges     []graph.Edge
	Warnings  []Warning
	Integrity []*IntegrityError
	Trips     int
}

// Apply feeds the result into b, stops first.
func (r *Result) Apply(b *graph.Builder) {
	for _, s := range r.Stops {
		b.AddStop(s)
	}
	for _, v := range r.Visits {
		b.AddVisit(v)
	}
	for _, e := range r.Edges {
		b.AddEdge(e)
	}
}

// Extractor produces visits and edges for one agency.
type Extractor struct {
	strategy TripRunStrategy
	opts     Options
	logger   *slog.Logger
}

// New returns an extractor using strategy to derive trip runs.
func New(strategy TripRunStrategy, opts Options, logger *slog.Logger) *Extractor {
	if strategy == nil {
		strategy = WholeTripID{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		strategy: strategy,
		opts:     opts,
		logger:   logger.With(slog.String("component", "edge_extractor")),
	}
}

func (e *Extractor) key(stopID string) string {
	return e.opts.StopKeyPrefix + stopID
}

type timedRow struct {
	StopTimeRow
	key       string
	arrival   gtfstime.Time
	departure gtfstime.Time
}

// Extract walks every trip and emits, for each position, a visit and an edge to
// every later position of the same trip.
func (e *Extractor) Extract(t Tables) (*Result, error) {
	res := &Result{Stops: make([]graph.StopInfo, 0, len(t.Stops))}

	known := make(map[string]bool, len(t.Stops))
	for _, s := range t.Stops {
		known[s.StopID] = true
		res.Stops = append(res.Stops, graph.StopInfo{
			Key:         e.key(s.StopID),
			ID:          s.StopID,
			Name:        s.Name,
			Coordinate:  graph.Coordinate{Lat: s.Lat, Lon: s.Lon},
			HasPosition: s.HasPosition,
		})
	}

	idx := IndexTrips(t.StopTimes)
	res.Trips = idx.Len()

	for _, trip := range idx.Trips() {
		rows := e.timedRows(trip, known, res)
		if err := e.emit(trip.ID, rows, res); err != nil {
			return nil, err
		}
	}

	if len(res.Warnings) > 0 {
		logging.LogWarning(e.logger, "skipped stop_times records",
			slog.Int("count", len(res.Warnings)),
			slog.String("first", res.Warnings[0].String()))
	}
	if len(res.Integrity) > 0 {
		logging.LogWarning(e.logger, "dropped edges with negative travel time",
			slog.Int("count", len(res.Integrity)),
			slog.String("first", res.Integrity[0].Error()))
	}
	logging.LogOperation(e.logger, "trips_extracted",
		slog.Int("trips", res.Trips),
		slog.Int("visits", len(res.Visits)),
		slog.Int("edges", len(res.Edges)),
		slog.String("trip_run_strategy", e.strategy.Name()))

	return res, nil
}

// timedRows parses the timestamps of a trip, dropping records that reference
// unknown stops or carry unreadable times.
func (e *Extractor) timedRows(trip *Trip, known map[string]bool, res *Result) []timedRow {
	out := make([]timedRow, 0, len(trip.Rows))
	for _, r := range trip.Rows {
		warn := func(reason string) {
			res.Warnings = append(res.Warnings, Warning{
				TripID: r.TripID, StopID: r.StopID, Sequence: r.StopSequence, Reason: reason,
			})
		}

		if !known[r.StopID] {
			warn("unknown stop")
			continue
		}

		arrRaw, depRaw := r.ArrivalTime, r.DepartureTime
		if depRaw == "" {
			depRaw = arrRaw
		}
		if arrRaw == "" {
			arrRaw = depRaw
		}
		dep, err := gtfstime.Parse(depRaw)
		if err != nil {
			warn(err.Error())
			continue
		}
		arr, err := gtfstime.Parse(arrRaw)
		if err != nil {
			warn(err.Error())
			continue
		}

		out = append(out, timedRow{StopTimeRow: r, key: e.key(r.StopID), arrival: arr, departure: dep})
	}
	return out
}

func (e *Extractor) emit(tripID string, rows []timedRow, res *Result) error {
	run := e.strategy.Run(tripID)

	for i, from := range rows {
		visit := graph.Visit{
			Stop:      from.key,
			Run:       run,
			TripID:    tripID,
			Sequence:  from.StopSequence,
			Departure: from.departure,
		}
		res.Visits = append(res.Visits, visit)

		for _, to := range rows[i+1:] {
			if to.StopSequence <= from.StopSequence {
				continue
			}
			if to.TripID != tripID || e.strategy.Run(to.TripID) != run {
				return fmt.Errorf("trip %s: record of trip %s grouped into it", tripID, to.TripID)
			}

			arrival := gtfstime.FixMidnight(from.departure, to.arrival)
			minutes, err := gtfstime.Duration(from.departure, arrival)
			if err != nil {
				ie := &IntegrityError{
					TripID:    tripID,
					From:      from.StopID,
					To:        to.StopID,
					Departure: from.departure,
					Arrival:   to.arrival,
					Err:       err,
				}
				if e.opts.Strict {
					return ie
				}
				res.Integrity = append(res.Integrity, ie)
				continue
			}

			res.Edges = append(res.Edges, graph.Edge{
				Visit:         visit,
				Destination:   to.key,
				TravelMinutes: minutes,
			})
		}
	}
	return nil
}
