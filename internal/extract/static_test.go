package extract

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/OneBusAway/go-gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildFeedZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestFromStatic(t *testing.T) {
	data := buildFeedZip(t, map[string]string{
		"agency.txt": "agency_id,agency_name,agency_url,agency_timezone\n" +
			"1,ZTM Gdańsk,https://ztm.gda.pl,Europe/Warsaw\n",
		"routes.txt": "route_id,agency_id,route_short_name,route_long_name,route_type\n" +
			"130,1,130,Dworzec - Jasień,3\n",
		"calendar.txt": "service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date\n" +
			"WD,1,1,1,1,1,0,0,20250101,20251231\n",
		"trips.txt": "route_id,service_id,trip_id\n" +
			"130,WD,1_130_a\n",
		"stops.txt": "stop_id,stop_name,stop_lat,stop_lon\n" +
			"100,Dworzec Główny,54.3556,18.6453\n" +
			"101,Brama Wyżynna,54.3500,18.6440\n",
		"stop_times.txt": "trip_id,arrival_time,departure_time,stop_id,stop_sequence\n" +
			"1_130_a,24:55:00,24:55:00,100,1\n" +
			"1_130_a,25:02:00,25:02:00,101,2\n",
	})

	static, err := gtfs.ParseStatic(data, gtfs.ParseStaticOptions{})
	require.NoError(t, err)

	tables := FromStatic(static)
	require.Len(t, tables.Stops, 2)
	require.Len(t, tables.StopTimes, 2)

	byID := map[string]StopTimeRow{}
	for _, r := range tables.StopTimes {
		byID[r.StopID] = r
	}
	assert.Equal(t, "24:55:00", byID["100"].DepartureTime)
	assert.Equal(t, "25:02:00", byID["101"].ArrivalTime)

	res, err := New(FieldRun{Separator: "_", Index: 1}, Options{}, nil).Extract(tables)
	require.NoError(t, err)
	require.Len(t, res.Edges, 1)
	assert.Equal(t, 7, res.Edges[0].TravelMinutes)
	assert.Equal(t, "130", res.Edges[0].Run)
}

func TestFromStaticNil(t *testing.T) {
	assert.Empty(t, FromStatic(nil).Stops)
}
