package routing

import (
	"container/heap"
	"errors"
	"fmt"

	"github.com/citylink/citylink_core/internal/graph"
	"github.com/citylink/citylink_core/internal/models"
)

// ErrNoPath is returned when the destination is unreachable from the source
var ErrNoPath = errors.New("no path exists")

// edgeKey identifies a directed edge for ban sets during deviation search
type edgeKey struct {
	from int64
	to   int64
}

// ShortestPath finds the minimum-duration path from source to dest.
// Duration is the routing weight; the candidate's distance is the sum of
// the chosen edges' distances and is carried for reporting only — the
// shortest-duration path is not necessarily the shortest-distance one.
func ShortestPath(g *graph.RouteGraph, source, dest int64) (*models.RouteCandidate, error) {
	return shortestPathFiltered(g, source, dest, nil, nil)
}

// shortestPathFiltered runs Dijkstra while skipping banned nodes and
// edges. Yen's deviation search uses the ban sets; plain shortest-path
// calls pass nil.
func shortestPathFiltered(g *graph.RouteGraph, source, dest int64, bannedNodes map[int64]bool, bannedEdges map[edgeKey]bool) (*models.RouteCandidate, error) {
	if _, ok := g.Node(source); !ok {
		return nil, fmt.Errorf("%w: source node %d not in graph", ErrNoPath, source)
	}
	if _, ok := g.Node(dest); !ok {
		return nil, fmt.Errorf("%w: destination node %d not in graph", ErrNoPath, dest)
	}

	dist := map[int64]float64{source: 0}
	prev := map[int64]int64{}
	visited := map[int64]bool{}

	pq := &queue{}
	heap.Init(pq)
	heap.Push(pq, &queueItem{nodeID: source, durationMin: 0})

	for pq.Len() > 0 {
		current := heap.Pop(pq).(*queueItem)
		if visited[current.nodeID] {
			continue
		}
		visited[current.nodeID] = true

		if current.nodeID == dest {
			return buildCandidate(g, source, dest, prev, current.durationMin)
		}

		for _, edge := range g.Edges(current.nodeID) {
			if bannedNodes[edge.ToNodeID] || visited[edge.ToNodeID] {
				continue
			}
			if bannedEdges[edgeKey{from: edge.FromNodeID, to: edge.ToNodeID}] {
				continue
			}

			tentative := current.durationMin + edge.DurationMin
			if best, seen := dist[edge.ToNodeID]; seen && tentative >= best {
				continue
			}
			dist[edge.ToNodeID] = tentative
			prev[edge.ToNodeID] = current.nodeID
			heap.Push(pq, &queueItem{nodeID: edge.ToNodeID, durationMin: tentative})
		}
	}

	return nil, fmt.Errorf("%w: between nodes %d and %d", ErrNoPath, source, dest)
}

// buildCandidate reconstructs the node sequence from the predecessor map
// and sums the traversed edges' distances
func buildCandidate(g *graph.RouteGraph, source, dest int64, prev map[int64]int64, durationMin float64) (*models.RouteCandidate, error) {
	var reversed []int64
	for at := dest; ; {
		reversed = append(reversed, at)
		if at == source {
			break
		}
		p, ok := prev[at]
		if !ok {
			return nil, fmt.Errorf("%w: broken predecessor chain at node %d", ErrNoPath, at)
		}
		at = p
	}

	nodes := make([]models.Node, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		node, _ := g.Node(reversed[i])
		nodes = append(nodes, node)
	}

	var distanceKm float64
	for i := 0; i < len(nodes)-1; i++ {
		edge, ok := edgeBetween(g, nodes[i].ID, nodes[i+1].ID)
		if !ok {
			return nil, fmt.Errorf("%w: missing edge %d->%d", ErrNoPath, nodes[i].ID, nodes[i+1].ID)
		}
		distanceKm += edge.DistanceKm
	}

	return &models.RouteCandidate{
		Rank:        1,
		Nodes:       nodes,
		DistanceKm:  distanceKm,
		DurationMin: durationMin,
	}, nil
}

// edgeBetween finds the directed edge from one node to another
func edgeBetween(g *graph.RouteGraph, from, to int64) (models.Edge, bool) {
	for _, edge := range g.Edges(from) {
		if edge.ToNodeID == to {
			return edge, true
		}
	}
	return models.Edge{}, false
}

// queueItem is one entry of the Dijkstra open set
type queueItem struct {
	nodeID      int64
	durationMin float64
	index       int // for heap
}

// queue implements heap.Interface ordered by cumulative duration
type queue []*queueItem

func (q queue) Len() int { return len(q) }

func (q queue) Less(i, j int) bool {
	return q[i].durationMin < q[j].durationMin
}

func (q queue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *queue) Push(x interface{}) {
	item := x.(*queueItem)
	item.index = len(*q)
	*q = append(*q, item)
}

func (q *queue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*q = old[0 : n-1]
	return item
}
