package schedule

import (
	"errors"
	"fmt"
	"math"

	"github.com/citylink/citylink_core/internal/models"
)

const (
	minBuses        = 1
	maxBuses        = 20
	minFrequencyMin = 5
	maxFrequencyMin = 60

	turnaroundBufferMin = 10
	defaultDwellSec     = 120
)

// ErrInvalidParams is returned for deployment parameters outside the
// allowed ranges
var ErrInvalidParams = errors.New("invalid deployment parameters")

// Plan is the immutable result of one schedule generation call
type Plan struct {
	RouteID      string                 `json:"route_id"`
	RoundTripMin int                    `json:"round_trip_min"`
	PeakHour     bool                   `json:"peak_hour"`
	Window       models.OperatingWindow `json:"operating_window"`
	Entries      []models.ScheduleEntry `json:"entries"`
}

// Generate produces the per-bus departure timetable for a route.
//
// Buses are phase-shifted across the frequency interval: bus n first
// departs (n-1)*floor(frequencyMin/numBuses) minutes after the window
// opens, then every frequencyMin until the window closes. Identical
// inputs always produce identical plans — there is no randomness and no
// wall-clock dependency beyond the configured window.
func Generate(route models.Route, numBuses, frequencyMin int, peakHour bool, window models.OperatingWindow) (*Plan, error) {
	if numBuses < minBuses || numBuses > maxBuses {
		return nil, fmt.Errorf("%w: numBuses must be in [%d,%d], got %d",
			ErrInvalidParams, minBuses, maxBuses, numBuses)
	}
	if frequencyMin < minFrequencyMin || frequencyMin > maxFrequencyMin {
		return nil, fmt.Errorf("%w: frequencyMin must be in [%d,%d], got %d",
			ErrInvalidParams, minFrequencyMin, maxFrequencyMin, frequencyMin)
	}
	if route.EstimatedDurationMin <= 0 {
		return nil, fmt.Errorf("%w: route %s has no estimated duration",
			ErrInvalidParams, route.RouteID)
	}

	windowStart, err := parseClock(window.Start)
	if err != nil {
		return nil, fmt.Errorf("%w: bad window start %q", ErrInvalidParams, window.Start)
	}
	windowEnd, err := parseClock(window.End)
	if err != nil {
		return nil, fmt.Errorf("%w: bad window end %q", ErrInvalidParams, window.End)
	}
	if windowEnd <= windowStart {
		return nil, fmt.Errorf("%w: window end %s not after start %s",
			ErrInvalidParams, window.End, window.Start)
	}

	phaseMin := frequencyMin / numBuses

	entries := make([]models.ScheduleEntry, 0, numBuses)
	for seq := 1; seq <= numBuses; seq++ {
		offset := (seq - 1) * phaseMin
		first := windowStart + offset

		var departures []string
		for t := first; t <= windowEnd; t += frequencyMin {
			departures = append(departures, formatClock(t))
		}

		entries = append(entries, models.ScheduleEntry{
			Deployment: models.BusDeployment{
				BusInstanceID:      fmt.Sprintf("%s-B%d", route.RouteID, seq),
				RouteID:            route.RouteID,
				DeploymentSequence: seq,
				DepartureOffsetMin: offset,
			},
			DepartureTimes: departures,
			StopTimings:    stopTimings(route, first),
			TotalTrips:     len(departures),
		})
	}

	return &Plan{
		RouteID:      route.RouteID,
		RoundTripMin: route.EstimatedDurationMin*2 + turnaroundBufferMin,
		PeakHour:     peakHour,
		Window:       window,
		Entries:      entries,
	}, nil
}

// stopTimings computes arrival/departure at every intermediate stop for
// one bus departure. Arrival interpolates the stop's offset from the
// route start assuming uniform travel speed; departure adds the stop's
// dwell time. Dwell resolves at whole-minute granularity since the
// timetable is HH:MM.
func stopTimings(route models.Route, departMin int) []models.StopTiming {
	timings := make([]models.StopTiming, 0, len(route.IntermediateStops))
	for _, stop := range route.IntermediateStops {
		arrival := departMin + stopETA(route, stop)

		dwellSec := stop.AvgDwellTimeSec
		if dwellSec <= 0 {
			dwellSec = defaultDwellSec
		}
		departure := arrival + dwellSec/60

		timings = append(timings, models.StopTiming{
			StopName:      stop.Name,
			StopLat:       stop.Lat,
			StopLng:       stop.Lng,
			ArrivalTime:   formatClock(arrival),
			DepartureTime: formatClock(departure),
		})
	}
	return timings
}

// stopETA returns the stop's minutes from route start, interpolating
// from its distance fraction when an explicit estimate is absent
func stopETA(route models.Route, stop models.IntermediateStop) int {
	if stop.EstimatedTimeFromStartMin > 0 {
		return stop.EstimatedTimeFromStartMin
	}
	if route.TotalDistanceKm <= 0 {
		return 0
	}
	fraction := stop.DistanceFromStartKm / route.TotalDistanceKm
	return int(math.Round(fraction * float64(route.EstimatedDurationMin)))
}

// parseClock converts "HH:MM" to minutes since midnight
func parseClock(s string) (int, error) {
	var hours, minutes int
	if _, err := fmt.Sscanf(s, "%d:%d", &hours, &minutes); err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return hours*60 + minutes, nil
}

// formatClock converts minutes since midnight to "HH:MM", wrapping past
// midnight for late arrivals
func formatClock(minutes int) string {
	minutes %= 24 * 60
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
