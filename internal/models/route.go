package models

type RouteHop struct {
	StopKey       string   `json:"stopKey"`
	Name          string   `json:"name"`
	Run           string   `json:"run,omitempty"`
	Departure     string   `json:"departure,omitempty"`
	Arrival       string   `json:"arrival"`
	TravelMinutes int      `json:"travelMinutes"`
	Lat           *float64 `json:"lat,omitempty"`
	Lon           *float64 `json:"lon,omitempty"`
}

// RouteEntry is one path between two stations. Polyline encodes the positions
// of the hops that have one.
type RouteEntry struct {
	From         string     `json:"from"`
	To           string     `json:"to"`
	Departure    string     `json:"departure"`
	Arrival      string     `json:"arrival"`
	TotalMinutes int        `json:"totalMinutes"`
	Transfers    int        `json:"transfers"`
	Hops         []RouteHop `json:"hops"`
	Polyline     string     `json:"polyline"`
}
