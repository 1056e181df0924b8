package routing

import (
	"testing"

	"github.com/citylink/citylink_core/internal/graph"
	"github.com/citylink/citylink_core/internal/models"
	"github.com/stretchr/testify/assert"
)

func wp(lat, lng float64) models.Waypoint {
	return models.Waypoint{Lat: lat, Lng: lng}
}

// lineGraph builds a single chain of waypoints with 10-minute segments
func lineGraph(t *testing.T, waypoints ...models.Waypoint) *graph.RouteGraph {
	t.Helper()
	segs := make([]models.SegmentMetric, len(waypoints)-1)
	for i := range segs {
		segs[i] = models.SegmentMetric{DistanceKm: 1.5, DurationMin: 10}
	}
	g, err := graph.Build(waypoints, segs)
	assert.NoError(t, err)
	return g
}

// diamondGraph builds two alternatives between the same endpoints plus a
// slow direct edge:
//
//	A -> B -> D  (20 min)
//	A -> C -> D  (30 min)
//	A ------> D  (40 min)
func diamondGraph(t *testing.T) (g *graph.RouteGraph, source, dest int64) {
	t.Helper()
	a := wp(23.2599, 77.4126)
	b := wp(23.2650, 77.4080)
	c := wp(23.2620, 77.4200)
	d := wp(23.2759, 77.4011)

	g = graph.New()
	assert.NoError(t, g.AddPath(
		[]models.Waypoint{a, b, d},
		[]models.SegmentMetric{{DistanceKm: 2, DurationMin: 10}, {DistanceKm: 2, DurationMin: 10}},
	))
	assert.NoError(t, g.AddPath(
		[]models.Waypoint{a, c, d},
		[]models.SegmentMetric{{DistanceKm: 3, DurationMin: 15}, {DistanceKm: 3, DurationMin: 15}},
	))
	assert.NoError(t, g.AddPath(
		[]models.Waypoint{a, d},
		[]models.SegmentMetric{{DistanceKm: 5, DurationMin: 40}},
	))

	source, _ = g.NodeID(a.Lat, a.Lng)
	dest, _ = g.NodeID(d.Lat, d.Lng)
	return g, source, dest
}

func TestShortestPath(t *testing.T) {
	t.Run("Sums segment durations along a chain", func(t *testing.T) {
		g := lineGraph(t,
			wp(23.2599, 77.4126),
			wp(23.2650, 77.4080),
			wp(23.2759, 77.4011),
		)
		source, _ := g.NodeID(23.2599, 77.4126)
		dest, _ := g.NodeID(23.2759, 77.4011)

		path, err := ShortestPath(g, source, dest)
		assert.NoError(t, err)
		assert.Len(t, path.Nodes, 3)
		assert.Equal(t, 20.0, path.DurationMin)
		assert.Equal(t, 3.0, path.DistanceKm)
	})

	t.Run("Prefers faster duration over fewer hops", func(t *testing.T) {
		g, source, dest := diamondGraph(t)

		path, err := ShortestPath(g, source, dest)
		assert.NoError(t, err)
		assert.Equal(t, 20.0, path.DurationMin)
		assert.Len(t, path.Nodes, 3)
	})

	t.Run("Unknown source node fails", func(t *testing.T) {
		g, _, dest := diamondGraph(t)
		_, err := ShortestPath(g, 9999, dest)
		assert.ErrorIs(t, err, ErrNoPath)
	})

	t.Run("Unreachable destination fails", func(t *testing.T) {
		g := graph.New()
		g.AddPath(
			[]models.Waypoint{wp(23.20, 77.40), wp(23.21, 77.41)},
			[]models.SegmentMetric{{DistanceKm: 1, DurationMin: 5}},
		)
		g.AddPath(
			[]models.Waypoint{wp(23.30, 77.50), wp(23.31, 77.51)},
			[]models.SegmentMetric{{DistanceKm: 1, DurationMin: 5}},
		)

		source, _ := g.NodeID(23.20, 77.40)
		dest, _ := g.NodeID(23.31, 77.51)

		_, err := ShortestPath(g, source, dest)
		assert.ErrorIs(t, err, ErrNoPath)
	})
}

func TestKShortestPaths(t *testing.T) {
	t.Run("Rejects k below 1", func(t *testing.T) {
		g, source, dest := diamondGraph(t)
		_, err := KShortestPaths(g, source, dest, 0)
		assert.Error(t, err)
	})

	t.Run("Returns distinct paths in duration order", func(t *testing.T) {
		g, source, dest := diamondGraph(t)

		paths, err := KShortestPaths(g, source, dest, 3)
		assert.NoError(t, err)
		assert.Len(t, paths, 3)

		assert.Equal(t, 20.0, paths[0].DurationMin)
		assert.Equal(t, 30.0, paths[1].DurationMin)
		assert.Equal(t, 40.0, paths[2].DurationMin)

		for i, p := range paths {
			assert.Equal(t, i+1, p.Rank)
		}

		keys := map[string]bool{}
		for _, p := range paths {
			keys[pathKey(p.Nodes)] = true
		}
		assert.Len(t, keys, 3)
	})

	t.Run("Every path starts and ends at the query endpoints", func(t *testing.T) {
		g, source, dest := diamondGraph(t)

		paths, err := KShortestPaths(g, source, dest, 3)
		assert.NoError(t, err)
		for _, p := range paths {
			assert.Equal(t, source, p.Nodes[0].ID)
			assert.Equal(t, dest, p.Nodes[len(p.Nodes)-1].ID)
		}
	})

	t.Run("Fewer alternatives than k is not an error", func(t *testing.T) {
		g := lineGraph(t, wp(23.2599, 77.4126), wp(23.2759, 77.4011))
		source, _ := g.NodeID(23.2599, 77.4126)
		dest, _ := g.NodeID(23.2759, 77.4011)

		paths, err := KShortestPaths(g, source, dest, 5)
		assert.NoError(t, err)
		assert.Len(t, paths, 1)
	})

	t.Run("No path at all propagates ErrNoPath", func(t *testing.T) {
		g := graph.New()
		g.AddPath(
			[]models.Waypoint{wp(23.20, 77.40), wp(23.21, 77.41)},
			[]models.SegmentMetric{{DistanceKm: 1, DurationMin: 5}},
		)
		source, _ := g.NodeID(23.21, 77.41)
		dest, _ := g.NodeID(23.20, 77.40)

		// Edges are directed; the reverse ride does not exist
		_, err := KShortestPaths(g, source, dest, 3)
		assert.ErrorIs(t, err, ErrNoPath)
	})
}
