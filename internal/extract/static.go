package extract

import (
	"time"

	"github.com/OneBusAway/go-gtfs"

	"heatmap.tricitytransit.org/internal/gtfstime"
)

// FromStatic converts a parsed GTFS feed into the extractor's tables. Stop times
// are re-encoded as HH:MM:SS so both input paths share one parser.
func FromStatic(data *gtfs.Static) Tables {
	var t Tables
	if data == nil {
		return t
	}

	t.Stops = make([]StopRow, 0, len(data.Stops))
	for _, s := range data.Stops {
		row := StopRow{StopID: s.Id, Name: s.Name}
		if s.Latitude != nil && s.Longitude != nil {
			row.Lat, row.Lon, row.HasPosition = *s.Latitude, *s.Longitude, true
		}
		t.Stops = append(t.Stops, row)
	}

	for _, trip := range data.Trips {
		for _, st := range trip.StopTimes {
			if st.Stop == nil {
				continue
			}
			t.StopTimes = append(t.StopTimes, StopTimeRow{
				TripID:        trip.ID,
				StopID:        st.Stop.Id,
				StopSequence:  int(st.StopSequence),
				ArrivalTime:   formatDuration(st.ArrivalTime),
				DepartureTime: formatDuration(st.DepartureTime),
			})
		}
	}
	return t
}

func formatDuration(d time.Duration) string {
	return gtfstime.Time(d / time.Second).String()
}
