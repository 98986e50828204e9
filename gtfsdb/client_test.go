package gtfsdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heatmap.tricitytransit.org/internal/appconf"
	"heatmap.tricitytransit.org/internal/graph"
	"heatmap.tricitytransit.org/internal/gtfstime"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient(NewConfig(":memory:", appconf.Test, false))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func sampleGraph(t *testing.T) *graph.Graph {
	t.Helper()
	b := graph.NewBuilder()
	b.AddStop(graph.StopInfo{Key: "ztm:100", ID: "100", Name: "Brama Wyżynna", Coordinate: graph.Coordinate{Lat: 54.35, Lon: 18.64}, HasPosition: true})
	b.AddStop(graph.StopInfo{Key: "ztm:200", ID: "200", Name: "Hucisko"})
	add := func(stop, run, trip, dep, dest string, minutes int) {
		b.AddEdge(graph.Edge{
			Visit:         graph.Visit{Stop: stop, Run: run, TripID: trip, Departure: gtfstime.MustParse(dep)},
			Destination:   dest,
			TravelMinutes: minutes,
		})
	}
	add("ztm:100", "R8", "1_R8_a", "06:00:00", "ztm:200", 3)
	add("ztm:100", "R8", "1_R8_b", "06:20:00", "ztm:200", 3)
	add("ztm:100", "R8", "1_R8_a", "06:00:00", "ztm:300", 9)
	add("ztm:200", "R8", "1_R8_a", "06:03:00", "ztm:300", 6)
	return b.Build()
}

func TestCreateDBRejectsFileInTestEnv(t *testing.T) {
	_, err := NewClient(NewConfig("/tmp/graph.db", appconf.Test, false))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "in-memory")
}

func TestLoadGraphEmptyStore(t *testing.T) {
	client := newTestClient(t)
	_, err := client.LoadGraph(context.Background())
	assert.ErrorIs(t, err, ErrNoGraph)
}

func TestSaveAndLoadGraph(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	g := sampleGraph(t)

	written, err := client.SaveGraph(ctx, g, "ztm.zip")
	require.NoError(t, err)
	assert.True(t, written)

	loaded, err := client.LoadGraph(ctx)
	require.NoError(t, err)
	assert.Equal(t, g.Keys(), loaded.Keys())
	assert.Equal(t, g.Stats(), loaded.Stats())
	assert.Equal(t, g.Records(), loaded.Records())

	key, ok := loaded.ResolveID("100")
	require.True(t, ok)
	assert.Equal(t, "ztm:100", key)

	meta, err := client.ImportMetadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ztm.zip", meta.FileSource)
	assert.Equal(t, 3, meta.StopCount)
	assert.Len(t, meta.FileHash, 64)
}

func TestSaveGraphSkipsUnchanged(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	g := sampleGraph(t)

	_, err := client.SaveGraph(ctx, g, "ztm.zip")
	require.NoError(t, err)

	written, err := client.SaveGraph(ctx, g, "ztm.zip")
	require.NoError(t, err)
	assert.False(t, written)

	written, err = client.SaveGraph(ctx, g, "mirror.zip")
	require.NoError(t, err)
	assert.True(t, written)
}

func TestSaveGraphReplacesPrevious(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	_, err := client.SaveGraph(ctx, sampleGraph(t), "ztm.zip")
	require.NoError(t, err)

	b := graph.NewBuilder()
	b.AddVisit(graph.Visit{Stop: "skm:1", Run: "S1", TripID: "S1_a", Departure: gtfstime.MustParse("05:00:00")})
	small := b.Build()
	_, err = client.SaveGraph(ctx, small, "skm.zip")
	require.NoError(t, err)

	loaded, err := client.LoadGraph(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"skm:1"}, loaded.Keys())

	counts, err := client.TableCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts["stops"])
	assert.Equal(t, 1, counts["connections"])
	assert.Equal(t, 0, counts["to_stations"])
}
