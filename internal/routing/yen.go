package routing

import (
	"container/heap"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/citylink/citylink_core/internal/graph"
	"github.com/citylink/citylink_core/internal/models"
)

// KShortestPaths finds up to k loopless paths from source to dest using
// Yen's algorithm, ordered best-first by duration. Ties break toward the
// path with fewer nodes, then the one discovered first. Every returned
// path is a distinct node sequence. Fewer than k paths is not an error:
// the graph simply has no further deviations.
func KShortestPaths(g *graph.RouteGraph, source, dest int64, k int) ([]models.RouteCandidate, error) {
	if k < 1 {
		return nil, fmt.Errorf("k must be at least 1, got %d", k)
	}

	best, err := ShortestPath(g, source, dest)
	if err != nil {
		return nil, err
	}

	accepted := []models.RouteCandidate{*best}
	seen := map[string]bool{pathKey(best.Nodes): true}

	pending := &deviationHeap{}
	heap.Init(pending)
	discoverySeq := 0

	for len(accepted) < k {
		prev := accepted[len(accepted)-1]

		// Deviate from every edge of the last accepted path: ban the
		// edge (and edges other accepted paths take out of the same
		// prefix), ban the prefix nodes, and re-run shortest path from
		// the spur node.
		for i := 0; i < len(prev.Nodes)-1; i++ {
			spur := prev.Nodes[i]
			rootNodes := prev.Nodes[:i+1]

			bannedEdges := make(map[edgeKey]bool)
			for _, p := range accepted {
				if sharesPrefix(p.Nodes, rootNodes) && len(p.Nodes) > i+1 {
					bannedEdges[edgeKey{from: p.Nodes[i].ID, to: p.Nodes[i+1].ID}] = true
				}
			}

			bannedNodes := make(map[int64]bool)
			for _, n := range rootNodes[:len(rootNodes)-1] {
				bannedNodes[n.ID] = true
			}

			spurPath, err := shortestPathFiltered(g, spur.ID, dest, bannedNodes, bannedEdges)
			if err != nil {
				if errors.Is(err, ErrNoPath) {
					continue
				}
				return nil, err
			}

			rootDur, rootDist, ok := prefixMetrics(g, rootNodes)
			if !ok {
				continue
			}

			total := make([]models.Node, 0, len(rootNodes)+len(spurPath.Nodes)-1)
			total = append(total, rootNodes...)
			total = append(total, spurPath.Nodes[1:]...)

			key := pathKey(total)
			if seen[key] {
				continue
			}
			seen[key] = true

			discoverySeq++
			heap.Push(pending, &deviation{
				nodes:       total,
				durationMin: rootDur + spurPath.DurationMin,
				distanceKm:  rootDist + spurPath.DistanceKm,
				seq:         discoverySeq,
			})
		}

		if pending.Len() == 0 {
			break
		}

		next := heap.Pop(pending).(*deviation)
		accepted = append(accepted, models.RouteCandidate{
			Nodes:       next.nodes,
			DistanceKm:  next.distanceKm,
			DurationMin: next.durationMin,
		})
	}

	for i := range accepted {
		accepted[i].Rank = i + 1
	}

	return accepted, nil
}

// sharesPrefix reports whether path starts with the given root node
// sequence
func sharesPrefix(path, root []models.Node) bool {
	if len(path) < len(root) {
		return false
	}
	for i := range root {
		if path[i].ID != root[i].ID {
			return false
		}
	}
	return true
}

// prefixMetrics sums duration and distance along a node prefix
func prefixMetrics(g *graph.RouteGraph, nodes []models.Node) (durationMin, distanceKm float64, ok bool) {
	for i := 0; i < len(nodes)-1; i++ {
		edge, found := edgeBetween(g, nodes[i].ID, nodes[i+1].ID)
		if !found {
			return 0, 0, false
		}
		durationMin += edge.DurationMin
		distanceKm += edge.DistanceKm
	}
	return durationMin, distanceKm, true
}

// pathKey serializes a node sequence for duplicate detection
func pathKey(nodes []models.Node) string {
	var b strings.Builder
	for i, n := range nodes {
		if i > 0 {
			b.WriteByte('>')
		}
		b.WriteString(strconv.FormatInt(n.ID, 10))
	}
	return b.String()
}

// deviation is one partial candidate of Yen's search: a complete
// root+spur path awaiting acceptance, kept separate from the Dijkstra
// internals
type deviation struct {
	nodes       []models.Node
	durationMin float64
	distanceKm  float64
	seq         int
	index       int // for heap
}

// deviationHeap orders candidates by total duration, then fewer nodes,
// then discovery order
type deviationHeap []*deviation

func (h deviationHeap) Len() int { return len(h) }

func (h deviationHeap) Less(i, j int) bool {
	if h[i].durationMin != h[j].durationMin {
		return h[i].durationMin < h[j].durationMin
	}
	if len(h[i].nodes) != len(h[j].nodes) {
		return len(h[i].nodes) < len(h[j].nodes)
	}
	return h[i].seq < h[j].seq
}

func (h deviationHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *deviationHeap) Push(x interface{}) {
	d := x.(*deviation)
	d.index = len(*h)
	*h = append(*h, d)
}

func (h *deviationHeap) Pop() interface{} {
	old := *h
	n := len(old)
	d := old[n-1]
	old[n-1] = nil
	d.index = -1
	*h = old[0 : n-1]
	return d
}
