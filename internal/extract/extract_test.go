package extract

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heatmap.tricitytransit.org/internal/graph"
	"heatmap.tricitytransit.org/internal/gtfstime"
)

func loadFixture(t *testing.T) Tables {
	t.Helper()
	tables, err := LoadDir("testdata/feed")
	require.NoError(t, err)
	return tables
}

func TestLoadDir(t *testing.T) {
	tables := loadFixture(t)

	assert.Len(t, tables.Stops, 7)
	assert.Len(t, tables.StopTimes, 14)

	assert.Equal(t, StopRow{StopID: "A", Name: "Alpha", Lat: 54.3520, Lon: 18.6466, HasPosition: true}, tables.Stops[0])
	assert.False(t, tables.Stops[5].HasPosition, "stop without coordinates")
}

func TestReadStopTimesCSVMissingColumn(t *testing.T) {
	_, err := ReadStopTimesCSV(strings.NewReader("trip_id,stop_id\n1,A\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stop_sequence")
}

func TestReadStopTimesCSVBadSequence(t *testing.T) {
	in := "trip_id,arrival_time,departure_time,stop_id,stop_sequence\n1,08:00:00,08:00:00,A,first\n"
	_, err := ReadStopTimesCSV(strings.NewReader(in))
	assert.Error(t, err)
}

func TestReadStopsCSVStripsBOM(t *testing.T) {
	rows, err := ReadStopsCSV(strings.NewReader("\ufeffstop_id,stop_name\n10,Dworzec\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "10", rows[0].StopID)
}

func TestIndexTrips(t *testing.T) {
	idx := IndexTrips(loadFixture(t).StopTimes)

	assert.Equal(t, 5, idx.Len())
	trip, ok := idx.Trip("1_R1_a")
	require.True(t, ok)

	var stops []string
	for _, r := range trip.Rows {
		stops = append(stops, r.StopID)
	}
	assert.Equal(t, []string{"A", "B", "C"}, stops)
	assert.Equal(t, "1_R1_a", idx.Trips()[0].ID)
}

func TestTripRunStrategies(t *testing.T) {
	tests := []struct {
		name     string
		strategy TripRunStrategy
		tripID   string
		expected string
	}{
		{name: "ZTM field", strategy: FieldRun{Separator: "_", Index: 1}, tripID: "6_7014283_RA_241205", expected: "7014283"},
		{name: "Missing field falls back", strategy: FieldRun{Separator: "_", Index: 1}, tripID: "12345", expected: "12345"},
		{name: "Empty field falls back", strategy: FieldRun{Separator: "_", Index: 1}, tripID: "6__x", expected: "6__x"},
		{name: "Whole id", strategy: WholeTripID{}, tripID: "6_7014283", expected: "6_7014283"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.strategy.Run(tt.tripID))
		})
	}
}

func TestNewTripRunStrategy(t *testing.T) {
	s, err := NewTripRunStrategy("field", "_", 1)
	require.NoError(t, err)
	assert.Equal(t, FieldRun{Separator: "_", Index: 1}, s)

	s, err = NewTripRunStrategy("", "", 0)
	require.NoError(t, err)
	assert.Equal(t, WholeTripID{}, s)

	_, err = NewTripRunStrategy("field", "", 1)
	assert.Error(t, err)

	_, err = NewTripRunStrategy("vehicle", "_", 1)
	assert.Error(t, err)
}

func TestExtract(t *testing.T) {
	ex := New(FieldRun{Separator: "_", Index: 1}, Options{}, nil)
	res, err := ex.Extract(loadFixture(t))
	require.NoError(t, err)

	assert.Equal(t, 5, res.Trips)
	assert.Len(t, res.Visits, 12)
	assert.Len(t, res.Edges, 8)

	require.Len(t, res.Warnings, 2)
	assert.Equal(t, "GHOST", res.Warnings[0].StopID)
	assert.Equal(t, "B", res.Warnings[1].StopID)

	require.Len(t, res.Integrity, 1)
	assert.Equal(t, "1_BAD_1", res.Integrity[0].TripID)
	assert.ErrorIs(t, res.Integrity[0], gtfstime.ErrNegativeDuration)

	for _, e := range res.Edges {
		assert.GreaterOrEqual(t, e.TravelMinutes, 0)
	}
}

func TestExtractMidnightCrossing(t *testing.T) {
	ex := New(FieldRun{Separator: "_", Index: 1}, Options{}, nil)
	res, err := ex.Extract(loadFixture(t))
	require.NoError(t, err)

	var found bool
	for _, e := range res.Edges {
		if e.Stop == "X" && e.Destination == "Y" {
			found = true
			assert.Equal(t, 20, e.TravelMinutes)
			assert.Equal(t, "N", e.Run)
		}
	}
	assert.True(t, found)
}

func TestExtractStrictAborts(t *testing.T) {
	ex := New(FieldRun{Separator: "_", Index: 1}, Options{Strict: true}, nil)
	_, err := ex.Extract(loadFixture(t))
	require.Error(t, err)

	var ie *IntegrityError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "P", ie.From)
	assert.Equal(t, "Q", ie.To)
	assert.ErrorIs(t, err, gtfstime.ErrNegativeDuration)
}

func TestExtractStopKeyPrefix(t *testing.T) {
	ex := New(WholeTripID{}, Options{StopKeyPrefix: "skm:"}, nil)
	res, err := ex.Extract(Tables{
		Stops: []StopRow{{StopID: "1", Name: "Gdynia Główna"}, {StopID: "2", Name: "Sopot"}},
		StopTimes: []StopTimeRow{
			{TripID: "T", StopID: "1", StopSequence: 1, ArrivalTime: "10:00:00", DepartureTime: "10:00:00"},
			{TripID: "T", StopID: "2", StopSequence: 2, ArrivalTime: "10:12:00", DepartureTime: "10:13:00"},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Edges, 1)
	assert.Equal(t, "skm:1", res.Edges[0].Stop)
	assert.Equal(t, "skm:2", res.Edges[0].Destination)
	assert.Equal(t, 12, res.Edges[0].TravelMinutes)
	assert.Equal(t, "T", res.Edges[0].Run)
}

func TestResultApply(t *testing.T) {
	ex := New(FieldRun{Separator: "_", Index: 1}, Options{}, nil)
	res, err := ex.Extract(loadFixture(t))
	require.NoError(t, err)

	b := graph.NewBuilder()
	res.Apply(b)
	g := b.Build()

	a, ok := g.Stop("A")
	require.True(t, ok)
	assert.Equal(t, "Alpha", a.Name)
	assert.Equal(t, map[string]int{"B": 10, "C": 20}, a.Connections["R1"].ToStations)
	assert.Equal(t, map[string]int{"C": 15}, a.Connections["R2"].ToStations)
	require.Len(t, a.Connections["R1"].Departures, 2)
	assert.Equal(t, "08:30:00", a.Connections["R1"].Departures[1].String())

	_, ghost := g.Stop("GHOST")
	assert.False(t, ghost)
}
