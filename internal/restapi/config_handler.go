package restapi

import (
	"net/http"

	"heatmap.tricitytransit.org/internal/buildinfo"
	"heatmap.tricitytransit.org/internal/models"
)

func (api *RestAPI) configHandler(w http.ResponseWriter, r *http.Request) {
	commit := buildinfo.Commit()
	shortHash := "unknown"
	if len(commit) >= 7 {
		shortHash = commit[:7]
	}

	agencies := make([]string, 0, len(api.GraphConfig.Agencies))
	for _, a := range api.GraphConfig.Agencies {
		agencies = append(agencies, a.ID)
	}

	info := models.GraphInfo{Agencies: agencies}
	if snap := api.snapshot(); snap != nil {
		st := snap.Graph.Stats()
		info.BuiltAt = snap.BuiltAt.UnixMilli()
		info.Origin = snap.Origin
		info.Healthy = api.GraphManager.IsHealthy()
		info.Stops = st.Stops
		info.Connections = st.Connections
		info.Departures = st.Departures
		info.Edges = st.Edges
		if b, ok := snap.Index.Bounds(); ok {
			lat, lon := b.Center()
			info.Area = &models.ServiceArea{
				MinLat: b.MinLat, MinLon: b.MinLon,
				MaxLat: b.MaxLat, MaxLon: b.MaxLon,
				CenterLat: lat, CenterLon: lon,
			}
		}
	}

	configEntry := models.ConfigModel{
		GitProperties: models.GitProperties{
			GitBuildTime:      buildinfo.BuildTime,
			GitBuildVersion:   buildinfo.Version,
			GitCommitId:       commit,
			GitCommitIdAbbrev: shortHash,
			GitDirty:          buildinfo.Dirty,
		},
		Graph:    info,
		Id:       "tricity-heatmap",
		Name:     "Tricity Transit Heat Map",
		TimeZone: api.ServiceLocation().String(),
	}

	api.sendResponse(w, r, models.NewEntryResponse(configEntry, api.Clock))
}
