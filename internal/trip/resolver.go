package trip

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/citylink/citylink_core/internal/fare"
	"github.com/citylink/citylink_core/internal/models"
)

const (
	// defaultMaxWalkKm is the walking threshold: how far a passenger
	// will walk to reach or leave a stop
	defaultMaxWalkKm = 0.5

	// maxOptions caps how many itineraries a search returns
	maxOptions = 5
)

// Resolver assembles direct and single-transfer itineraries over the
// deployed route set. It holds only static configuration and is safe to
// share across requests.
type Resolver struct {
	FareConfig  models.FareConfig
	PeakWindows []fare.PeakWindow
	MaxWalkKm   float64
}

// NewResolver creates a resolver with the default walking threshold
func NewResolver(cfg models.FareConfig, windows []fare.PeakWindow) *Resolver {
	return &Resolver{
		FareConfig:  cfg,
		PeakWindows: windows,
		MaxWalkKm:   defaultMaxWalkKm,
	}
}

// FindConnections returns ranked travel options from the passenger's
// position to the destination. Options are ordered by total fare, direct
// rides ahead of transfers on equal fare. Routes with no stop inside the
// walking threshold on either end are excluded entirely rather than
// returned as zero-quality results.
//
// schedules maps routeID to that route's lead-bus timetable and is used
// to attach departure times and a wait estimate; routes without an
// active schedule still appear, just without timing detail.
func (r *Resolver) FindConnections(current, dest models.GeoPoint, routes []models.Route, schedules map[string]models.ScheduleEntry, now time.Time) ([]models.ItineraryOption, error) {
	isPeak := fare.IsPeakHour(now, r.PeakWindows)

	var options []models.ItineraryOption

	direct, err := r.directOptions(current, dest, routes, isPeak)
	if err != nil {
		return nil, err
	}
	options = append(options, direct...)

	transfers, err := r.transferOptions(current, dest, routes, isPeak)
	if err != nil {
		return nil, err
	}
	options = append(options, transfers...)

	sort.SliceStable(options, func(i, j int) bool {
		if options[i].TotalFareINR != options[j].TotalFareINR {
			return options[i].TotalFareINR < options[j].TotalFareINR
		}
		return options[i].TotalLegs < options[j].TotalLegs
	})

	if len(options) > maxOptions {
		options = options[:maxOptions]
	}

	for i := range options {
		for j := range options[i].Legs {
			r.attachSchedule(&options[i].Legs[j], schedules, now)
		}
	}

	return options, nil
}

// directOptions finds single-route rides covering both endpoints within
// the walking threshold
func (r *Resolver) directOptions(current, dest models.GeoPoint, routes []models.Route, isPeak bool) ([]models.ItineraryOption, error) {
	var options []models.ItineraryOption

	for _, route := range routes {
		if len(route.Waypoints) < 2 {
			continue
		}

		boardIdx, boardWalk, ok := nearestWaypoint(route.Waypoints, current)
		if !ok || boardWalk > r.MaxWalkKm {
			continue
		}
		alightIdx, alightWalk, ok := nearestWaypoint(route.Waypoints, dest)
		if !ok || alightWalk > r.MaxWalkKm {
			continue
		}
		// Boarding must precede alighting in travel direction
		if boardIdx >= alightIdx {
			continue
		}

		legKm := waypointSpanKm(route.Waypoints, boardIdx, alightIdx)
		legFare, err := fare.Calculate(legKm, isPeak, r.FareConfig)
		if err != nil {
			return nil, fmt.Errorf("fare for route %s: %w", route.RouteID, err)
		}

		board := route.Waypoints[boardIdx]
		alight := route.Waypoints[alightIdx]

		options = append(options, models.ItineraryOption{
			Type:            "direct",
			TotalLegs:       1,
			TotalTransfers:  0,
			TotalDistanceKm: round2(legKm),
			TotalFareINR:    legFare,
			Legs: []models.ItineraryLeg{{
				RouteID:        route.RouteID,
				RouteName:      route.Name,
				BoardingPoint:  transferPoint(board.Lat, board.Lng, boardWalk),
				AlightingPoint: transferPoint(alight.Lat, alight.Lng, alightWalk),
				DistanceKm:     round2(legKm),
				FareINR:        legFare,
			}},
		})
	}

	return options, nil
}

// transferOptions finds two-leg rides chained through a transfer point
// where the routes pass within the walking threshold of each other.
// This design deliberately stops at a single transfer.
func (r *Resolver) transferOptions(current, dest models.GeoPoint, routes []models.Route, isPeak bool) ([]models.ItineraryOption, error) {
	var options []models.ItineraryOption

	for i, first := range routes {
		if len(first.Waypoints) < 2 {
			continue
		}

		boardIdx, boardWalk, ok := nearestWaypoint(first.Waypoints, current)
		if !ok || boardWalk > r.MaxWalkKm {
			continue
		}

		for j, second := range routes {
			if i == j || len(second.Waypoints) < 2 {
				continue
			}

			xfer, ok := findTransferPoint(first.Waypoints, second.Waypoints, r.MaxWalkKm)
			if !ok || boardIdx >= xfer.firstIdx {
				continue
			}

			alightIdx, alightWalk, ok := nearestWaypoint(second.Waypoints, dest)
			if !ok || alightWalk > r.MaxWalkKm || xfer.secondIdx >= alightIdx {
				continue
			}

			leg1Km := waypointSpanKm(first.Waypoints, boardIdx, xfer.firstIdx)
			leg2Km := waypointSpanKm(second.Waypoints, xfer.secondIdx, alightIdx)

			leg1Fare, err := fare.Calculate(leg1Km, isPeak, r.FareConfig)
			if err != nil {
				return nil, fmt.Errorf("fare for route %s: %w", first.RouteID, err)
			}
			leg2Fare, err := fare.Calculate(leg2Km, isPeak, r.FareConfig)
			if err != nil {
				return nil, fmt.Errorf("fare for route %s: %w", second.RouteID, err)
			}

			board := first.Waypoints[boardIdx]
			alight := second.Waypoints[alightIdx]

			options = append(options, models.ItineraryOption{
				Type:            "transfer",
				TotalLegs:       2,
				TotalTransfers:  1,
				TotalDistanceKm: round2(leg1Km + leg2Km),
				TotalFareINR:    round2(leg1Fare + leg2Fare),
				Legs: []models.ItineraryLeg{
					{
						RouteID:        first.RouteID,
						RouteName:      first.Name,
						BoardingPoint:  transferPoint(board.Lat, board.Lng, boardWalk),
						AlightingPoint: transferPoint(xfer.lat, xfer.lng, 0),
						DistanceKm:     round2(leg1Km),
						FareINR:        leg1Fare,
					},
					{
						RouteID:        second.RouteID,
						RouteName:      second.Name,
						BoardingPoint:  transferPoint(xfer.lat, xfer.lng, xfer.walkKm),
						AlightingPoint: transferPoint(alight.Lat, alight.Lng, alightWalk),
						DistanceKm:     round2(leg2Km),
						FareINR:        leg2Fare,
					},
				},
			})
		}
	}

	return options, nil
}

// attachSchedule enriches a leg with the route's departure times and an
// estimated wait until the next departure
func (r *Resolver) attachSchedule(leg *models.ItineraryLeg, schedules map[string]models.ScheduleEntry, now time.Time) {
	entry, ok := schedules[leg.RouteID]
	if !ok {
		return
	}

	leg.DepartureTimes = entry.DepartureTimes

	if len(entry.DepartureTimes) >= 2 {
		first, err1 := clockMinutes(entry.DepartureTimes[0])
		second, err2 := clockMinutes(entry.DepartureTimes[1])
		if err1 == nil && err2 == nil && second > first {
			leg.FrequencyMin = second - first
		}
	}

	// WaitMin stays nil when the day's last departure is already gone
	nowMin := now.Hour()*60 + now.Minute()
	for _, dep := range entry.DepartureTimes {
		depMin, err := clockMinutes(dep)
		if err != nil {
			continue
		}
		if depMin >= nowMin {
			wait := depMin - nowMin
			leg.WaitMin = &wait
			break
		}
	}
}

// clockMinutes parses "HH:MM" into minutes since midnight
func clockMinutes(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, err
	}
	return h*60 + m, nil
}

// transferCrossing is where two routes pass close enough to walk between
type transferCrossing struct {
	lat, lng  float64
	firstIdx  int
	secondIdx int
	walkKm    float64
}

// findTransferPoint locates the first waypoint pair of the two routes
// within walking distance; the midpoint serves as the transfer location
func findTransferPoint(first, second []models.Waypoint, maxWalkKm float64) (transferCrossing, bool) {
	for i, wp1 := range first {
		for j, wp2 := range second {
			d := haversineKm(wp1.Lat, wp1.Lng, wp2.Lat, wp2.Lng)
			if d <= maxWalkKm {
				return transferCrossing{
					lat:       (wp1.Lat + wp2.Lat) / 2,
					lng:       (wp1.Lng + wp2.Lng) / 2,
					firstIdx:  i,
					secondIdx: j,
					walkKm:    d,
				}, true
			}
		}
	}
	return transferCrossing{}, false
}

// nearestWaypoint finds the route waypoint closest to a point
func nearestWaypoint(waypoints []models.Waypoint, p models.GeoPoint) (idx int, distKm float64, ok bool) {
	if len(waypoints) == 0 {
		return 0, 0, false
	}

	bestIdx := 0
	bestDist := math.Inf(1)
	for i, wp := range waypoints {
		d := haversineKm(wp.Lat, wp.Lng, p.Lat, p.Lng)
		if d < bestDist {
			bestDist = d
			bestIdx = i
		}
	}
	return bestIdx, bestDist, true
}

// waypointSpanKm sums segment distances between two waypoint indices
func waypointSpanKm(waypoints []models.Waypoint, from, to int) float64 {
	total := 0.0
	for i := from; i < to && i+1 < len(waypoints); i++ {
		total += haversineKm(waypoints[i].Lat, waypoints[i].Lng, waypoints[i+1].Lat, waypoints[i+1].Lng)
	}
	return total
}

func transferPoint(lat, lng, walkKm float64) models.TransferPoint {
	return models.TransferPoint{
		Name:           fmt.Sprintf("%.4f, %.4f", lat, lng),
		Lat:            lat,
		Lng:            lng,
		WalkDistanceKm: round2(walkKm),
	}
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
