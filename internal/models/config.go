package models

type GitProperties struct {
	GitBuildTime      string `json:"git.build.time"`
	GitBuildVersion   string `json:"git.build.version"`
	GitCommitId       string `json:"git.commit.id"`
	GitCommitIdAbbrev string `json:"git.commit.id.abbrev"`
	GitDirty          string `json:"git.dirty"`
}

// ServiceArea is the box around every positioned stop.
type ServiceArea struct {
	MinLat    float64 `json:"minLat"`
	MinLon    float64 `json:"minLon"`
	MaxLat    float64 `json:"maxLat"`
	MaxLon    float64 `json:"maxLon"`
	CenterLat float64 `json:"centerLat"`
	CenterLon float64 `json:"centerLon"`
}

// GraphInfo describes the graph being served.
type GraphInfo struct {
	BuiltAt     int64        `json:"builtAt"`
	Origin      string       `json:"origin"`
	Healthy     bool         `json:"healthy"`
	Agencies    []string     `json:"agencies"`
	Stops       int          `json:"stops"`
	Connections int          `json:"connections"`
	Departures  int          `json:"departures"`
	Edges       int          `json:"edges"`
	Area        *ServiceArea `json:"area,omitempty"`
}

type ConfigModel struct {
	GitProperties GitProperties `json:"gitProperties"`
	Graph         GraphInfo     `json:"graph"`
	Id            string        `json:"id"`
	Name          string        `json:"name"`
	TimeZone      string        `json:"timeZone"`
}
