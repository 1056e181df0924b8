package graph

import (
	"errors"
	"fmt"
	"math"

	"github.com/citylink/citylink_core/internal/models"
)

// ErrInvalidInput is returned when waypoints or segment metrics cannot
// form a usable graph
var ErrInvalidInput = errors.New("invalid graph input")

// coordScale buckets coordinates to 6 decimal places (~0.11m), so the
// same physical point reached by different candidate polylines resolves
// to the same node
const coordScale = 1e6

// bucketKey identifies a node by its rounded coordinates
type bucketKey struct {
	lat int64
	lng int64
}

// edgeKey identifies a directed edge by its endpoints
type edgeKey struct {
	from int64
	to   int64
}

// RouteGraph is a directed weighted graph built from route polylines.
// It is a fresh value per build call and is never mutated after the
// caller hands it to the path finder.
type RouteGraph struct {
	nodes   map[int64]models.Node
	adj     map[int64][]models.Edge
	buckets map[bucketKey]int64
	edges   map[edgeKey]bool
	nextID  int64
}

// New creates an empty route graph
func New() *RouteGraph {
	return &RouteGraph{
		nodes:   make(map[int64]models.Node),
		adj:     make(map[int64][]models.Edge),
		buckets: make(map[bucketKey]int64),
		edges:   make(map[edgeKey]bool),
		nextID:  1,
	}
}

// Build constructs a graph from one candidate polyline. Each consecutive
// waypoint pair becomes one directed edge weighted by the supplied
// per-segment distance and duration.
func Build(waypoints []models.Waypoint, segments []models.SegmentMetric) (*RouteGraph, error) {
	g := New()
	if err := g.AddPath(waypoints, segments); err != nil {
		return nil, err
	}
	return g, nil
}

// AddPath merges another candidate polyline into the graph. Nodes that
// coincide within the coordinate bucket are unified, and edges are
// deduplicated by (from, to) identity so re-used partial segments cannot
// introduce cycles or parallel duplicates.
func (g *RouteGraph) AddPath(waypoints []models.Waypoint, segments []models.SegmentMetric) error {
	if len(waypoints) < 2 {
		return fmt.Errorf("%w: need at least 2 waypoints, got %d", ErrInvalidInput, len(waypoints))
	}
	if len(segments) != len(waypoints)-1 {
		return fmt.Errorf("%w: %d waypoints require %d segment metrics, got %d",
			ErrInvalidInput, len(waypoints), len(waypoints)-1, len(segments))
	}

	for i, seg := range segments {
		if seg.DistanceKm < 0 || seg.DurationMin < 0 {
			return fmt.Errorf("%w: segment %d has negative metrics (distance=%.3f, duration=%.3f)",
				ErrInvalidInput, i, seg.DistanceKm, seg.DurationMin)
		}
	}

	for i := 0; i < len(waypoints)-1; i++ {
		from := g.internNode(waypoints[i].Lat, waypoints[i].Lng)
		to := g.internNode(waypoints[i+1].Lat, waypoints[i+1].Lng)

		// Coincident consecutive waypoints collapse into one node
		if from == to {
			continue
		}

		key := edgeKey{from: from, to: to}
		if g.edges[key] {
			continue
		}
		g.edges[key] = true

		g.adj[from] = append(g.adj[from], models.Edge{
			FromNodeID:  from,
			ToNodeID:    to,
			DistanceKm:  segments[i].DistanceKm,
			DurationMin: segments[i].DurationMin,
		})
	}

	return nil
}

// internNode returns the node ID for the coordinate bucket, creating a
// new node on first sight
func (g *RouteGraph) internNode(lat, lng float64) int64 {
	key := bucketKey{
		lat: int64(math.Round(lat * coordScale)),
		lng: int64(math.Round(lng * coordScale)),
	}

	if id, ok := g.buckets[key]; ok {
		return id
	}

	id := g.nextID
	g.nextID++
	g.buckets[key] = id
	g.nodes[id] = models.Node{ID: id, Lat: lat, Lng: lng}
	return id
}

// NodeID resolves coordinates to a node ID via the coordinate bucket
func (g *RouteGraph) NodeID(lat, lng float64) (int64, bool) {
	key := bucketKey{
		lat: int64(math.Round(lat * coordScale)),
		lng: int64(math.Round(lng * coordScale)),
	}
	id, ok := g.buckets[key]
	return id, ok
}

// Node returns a node by ID
func (g *RouteGraph) Node(id int64) (models.Node, bool) {
	node, ok := g.nodes[id]
	return node, ok
}

// Edges returns the outgoing edges of a node
func (g *RouteGraph) Edges(id int64) []models.Edge {
	return g.adj[id]
}

// NodeCount returns the number of nodes in the graph
func (g *RouteGraph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of directed edges in the graph
func (g *RouteGraph) EdgeCount() int {
	return len(g.edges)
}
