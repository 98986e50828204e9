package models

// HeatmapPoint is one coordinate sample of a station with its travel time in
// minutes from the start station.
type HeatmapPoint struct {
	Key        string  `json:"key"`
	Name       string  `json:"name"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	TravelTime int     `json:"travel_time"`
}

type HeatmapEntry struct {
	StartStation HeatmapPoint   `json:"start_station"`
	Departure    string         `json:"departure"`
	Stations     []HeatmapPoint `json:"stations"`
	Reached      int            `json:"reached"`
	Unreached    int            `json:"unreached"`
}
