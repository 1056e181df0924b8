package schedule

import (
	"fmt"
	"math"

	"github.com/citylink/citylink_core/internal/models"
)

// DeriveStops places intermediate stops along a committed candidate's
// waypoints: roughly evenly spaced by waypoint index, each carrying its
// cumulative distance from the start and a time estimate proportional to
// that distance (uniform travel speed along the route). The final
// waypoint always becomes the terminal stop. Stop names are positional
// placeholders; the surrounding system renames them via geocoding.
func DeriveStops(waypoints []models.Waypoint, totalDurationMin int, numStops int) []models.IntermediateStop {
	if len(waypoints) < 2 || numStops < 1 {
		return nil
	}

	total := routeDistanceKm(waypoints)

	interval := len(waypoints) / (numStops + 1)
	if interval < 1 {
		interval = 1
	}

	var stops []models.IntermediateStop
	cumulative := 0.0

	// The last waypoint is excluded here; it is always appended below as
	// the terminal stop, exactly once
	for i := 0; i < len(waypoints)-1 && len(stops) < numStops; i += interval {
		if i > 0 {
			prev := i - interval
			if prev < 0 {
				prev = 0
			}
			cumulative += segmentDistanceKm(waypoints, prev, i)
		}

		eta := 0
		if total > 0 {
			eta = int(math.Round(cumulative / total * float64(totalDurationMin)))
		}

		wp := waypoints[i]
		stops = append(stops, models.IntermediateStop{
			Name:                      fmt.Sprintf("Stop at %.4f, %.4f", wp.Lat, wp.Lng),
			Lat:                       wp.Lat,
			Lng:                       wp.Lng,
			Sequence:                  len(stops),
			DistanceFromStartKm:       round2(cumulative),
			EstimatedTimeFromStartMin: eta,
			AvgDwellTimeSec:           defaultDwellSec,
		})
	}

	last := waypoints[len(waypoints)-1]
	stops = append(stops, models.IntermediateStop{
		Name:                      fmt.Sprintf("Stop at %.4f, %.4f", last.Lat, last.Lng),
		Lat:                       last.Lat,
		Lng:                       last.Lng,
		Sequence:                  len(stops),
		DistanceFromStartKm:       round2(total),
		EstimatedTimeFromStartMin: totalDurationMin,
		AvgDwellTimeSec:           defaultDwellSec,
	})

	return stops
}

// routeDistanceKm sums haversine distance over the whole polyline
func routeDistanceKm(waypoints []models.Waypoint) float64 {
	total := 0.0
	for i := 1; i < len(waypoints); i++ {
		total += haversineKm(waypoints[i-1].Lat, waypoints[i-1].Lng, waypoints[i].Lat, waypoints[i].Lng)
	}
	return total
}

// segmentDistanceKm sums haversine distance between two waypoint indices
func segmentDistanceKm(waypoints []models.Waypoint, from, to int) float64 {
	total := 0.0
	for i := from; i < to && i+1 < len(waypoints); i++ {
		total += haversineKm(waypoints[i].Lat, waypoints[i].Lng, waypoints[i+1].Lat, waypoints[i+1].Lng)
	}
	return total
}

// haversineKm calculates the distance between two coordinates in km
func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadiusKm = 6371

	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
