package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"heatmap.tricitytransit.org/internal/gtfstime"
)

// wireStop is the serialized shape consumed by the heat-map renderer and the
// route display: {stop_id, stop_name, lat, lon, connections}. The list fields are
// additive and only written for merged stops.
type wireStop struct {
	StopID      flexibleID                `json:"stop_id"`
	StopName    string                    `json:"stop_name"`
	Lat         *float64                  `json:"lat"`
	Lon         *float64                  `json:"lon"`
	StopIDs     []string                  `json:"stop_ids,omitempty"`
	Latitudes   []float64                 `json:"latitudes,omitempty"`
	Longitudes  []float64                 `json:"longitudes,omitempty"`
	Connections map[string]wireConnection `json:"connections"`
}

type wireConnection struct {
	DepartureTimes []string       `json:"departure_times"`
	ToStations     map[string]int `json:"to_stations"`
}

// flexibleID accepts numeric stop ids as written by older exports.
type flexibleID string

func (id *flexibleID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("stop_id must be a string or number: %w", err)
	}
	*id = flexibleID(n.String())
	return nil
}

func toWire(s *Stop) wireStop {
	w := wireStop{
		StopName:    s.Name,
		Connections: make(map[string]wireConnection, len(s.Connections)),
	}
	if len(s.IDs) > 0 {
		w.StopID = flexibleID(s.IDs[0])
	}
	if pos, ok := s.Position(); ok {
		lat, lon := pos.Lat, pos.Lon
		w.Lat, w.Lon = &lat, &lon
	}
	if len(s.IDs) > 1 || len(s.Coordinates) > 1 {
		w.StopIDs = append([]string(nil), s.IDs...)
		for _, c := range s.Coordinates {
			w.Latitudes = append(w.Latitudes, c.Lat)
			w.Longitudes = append(w.Longitudes, c.Lon)
		}
	}
	for run, c := range s.Connections {
		wc := wireConnection{
			DepartureTimes: make([]string, 0, len(c.Departures)),
			ToStations:     make(map[string]int, len(c.ToStations)),
		}
		for _, d := range c.Departures {
			wc.DepartureTimes = append(wc.DepartureTimes, d.String())
		}
		for dest, m := range c.ToStations {
			wc.ToStations[dest] = m
		}
		w.Connections[run] = wc
	}
	return w
}

func fromWire(key string, w wireStop) (StopRecord, error) {
	r := StopRecord{
		Key:         key,
		Name:        w.StopName,
		Connections: make(map[string]ConnectionRecord, len(w.Connections)),
	}

	switch {
	case len(w.StopIDs) > 0:
		r.IDs = append(r.IDs, w.StopIDs...)
	case w.StopID != "":
		r.IDs = []string{string(w.StopID)}
	}

	switch {
	case len(w.Latitudes) > 0:
		if len(w.Latitudes) != len(w.Longitudes) {
			return r, fmt.Errorf("stop %q: %d latitudes but %d longitudes", key, len(w.Latitudes), len(w.Longitudes))
		}
		for i := range w.Latitudes {
			r.Coordinates = append(r.Coordinates, Coordinate{Lat: w.Latitudes[i], Lon: w.Longitudes[i]})
		}
	case w.Lat != nil && w.Lon != nil:
		r.Coordinates = []Coordinate{{Lat: *w.Lat, Lon: *w.Lon}}
	}

	for run, wc := range w.Connections {
		cr := ConnectionRecord{ToStations: wc.ToStations}
		for _, raw := range wc.DepartureTimes {
			d, err := gtfstime.Normalize(raw)
			if err != nil {
				return r, fmt.Errorf("stop %q run %q: %w", key, run, err)
			}
			cr.Departures = append(cr.Departures, d)
		}
		r.Connections[run] = cr
	}
	return r, nil
}

// MarshalJSON writes the graph as an object keyed by stop key, in graph order.
func (g *Graph) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range g.Stops() {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(s.Key))
		buf.WriteByte(':')
		b, err := json.Marshal(toWire(s))
		if err != nil {
			return nil, fmt.Errorf("encode stop %q: %w", s.Key, err)
		}
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the wire format back, keeping the document's key order.
func (g *Graph) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("schedule graph must be a JSON object")
	}

	var records []StopRecord
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}
		var w wireStop
		if err := dec.Decode(&w); err != nil {
			return fmt.Errorf("decode stop %q: %w", key, err)
		}
		r, err := fromWire(key, w)
		if err != nil {
			return err
		}
		records = append(records, r)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	built, err := FromRecords(records)
	if err != nil {
		return err
	}
	*g = *built
	return nil
}
