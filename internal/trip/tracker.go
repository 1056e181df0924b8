package trip

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/citylink/citylink_core/internal/fare"
	"github.com/citylink/citylink_core/internal/models"
	"github.com/google/uuid"
)

var (
	// ErrTripActive is returned when a passenger starts a trip while
	// one is already in progress
	ErrTripActive = errors.New("trip already active")

	// ErrNoActiveTrip is returned when switching or completing with no
	// trip in progress
	ErrNoActiveTrip = errors.New("no active trip")
)

// RouteLookup resolves a route ID to its committed geometry. The tracker
// uses it to measure leg distances along the route rather than as the
// crow flies.
type RouteLookup func(routeID string) (models.Route, bool)

// Tracker drives the per-passenger trip state machine. Each passenger
// has their own slot with its own mutex, so a passenger's start/switch/
// complete calls serialize against each other while different passengers
// proceed in parallel.
type Tracker struct {
	mu    sync.Mutex
	slots map[string]*slot

	routes      RouteLookup
	fareConfig  models.FareConfig
	peakWindows []fare.PeakWindow
}

type slot struct {
	mu   sync.Mutex
	trip *models.Trip
}

// NewTracker creates a trip tracker
func NewTracker(routes RouteLookup, cfg models.FareConfig, windows []fare.PeakWindow) *Tracker {
	return &Tracker{
		slots:       make(map[string]*slot),
		routes:      routes,
		fareConfig:  cfg,
		peakWindows: windows,
	}
}

// StartTrip opens a new trip for the passenger. Fails with ErrTripActive
// if one is already in progress.
func (t *Tracker) StartTrip(passengerID, routeID, busNumber string, boarding models.GeoPoint, now time.Time) (models.Trip, error) {
	s := t.slot(passengerID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.trip != nil {
		return models.Trip{}, fmt.Errorf("%w: passenger %s is on trip %s",
			ErrTripActive, passengerID, s.trip.TripID)
	}

	s.trip = &models.Trip{
		TripID:           uuid.NewString(),
		PassengerID:      passengerID,
		CurrentRouteID:   routeID,
		CurrentBusNumber: busNumber,
		CurrentBoarding:  boarding,
		BoardedAt:        now,
		StartedAt:        now,
	}

	return copyTrip(s.trip), nil
}

// SwitchRoute closes the current leg at the new boarding point — adding
// its fare to the running total — and opens a new leg on the new route.
// Fails with ErrNoActiveTrip if the passenger has no trip in progress.
func (t *Tracker) SwitchRoute(passengerID, newRouteID, newBusNumber string, boarding models.GeoPoint, now time.Time) (models.Trip, error) {
	s := t.slot(passengerID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.trip == nil {
		return models.Trip{}, fmt.Errorf("%w: passenger %s", ErrNoActiveTrip, passengerID)
	}

	if err := t.closeLeg(s.trip, boarding, now); err != nil {
		return models.Trip{}, err
	}

	s.trip.CurrentRouteID = newRouteID
	s.trip.CurrentBusNumber = newBusNumber
	s.trip.CurrentBoarding = boarding
	s.trip.BoardedAt = now

	return copyTrip(s.trip), nil
}

// CompleteTrip closes the final leg at the alighting point, finalizes
// the total fare, and discards the active trip. The returned Trip is the
// finalized record for persistence as travel history.
func (t *Tracker) CompleteTrip(passengerID string, alighting models.GeoPoint, now time.Time) (models.Trip, error) {
	s := t.slot(passengerID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.trip == nil {
		return models.Trip{}, fmt.Errorf("%w: passenger %s", ErrNoActiveTrip, passengerID)
	}

	if err := t.closeLeg(s.trip, alighting, now); err != nil {
		return models.Trip{}, err
	}

	completed := *s.trip
	completed.CompletedAt = &now
	completed.CurrentRouteID = ""
	completed.CurrentBusNumber = ""
	s.trip = nil

	return copyTrip(&completed), nil
}

// ActiveTrip returns a snapshot of the passenger's in-progress trip
func (t *Tracker) ActiveTrip(passengerID string) (models.Trip, bool) {
	s := t.slot(passengerID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.trip == nil {
		return models.Trip{}, false
	}
	return copyTrip(s.trip), true
}

// closeLeg records the current leg ending at the given point and adds
// its fare to the running total. Caller holds the slot lock.
func (t *Tracker) closeLeg(trip *models.Trip, alighting models.GeoPoint, now time.Time) error {
	distKm := t.legDistanceKm(trip.CurrentRouteID, trip.CurrentBoarding, alighting)

	isPeak := fare.IsPeakHour(now, t.peakWindows)
	legFare, err := fare.Calculate(distKm, isPeak, t.fareConfig)
	if err != nil {
		return fmt.Errorf("leg fare on route %s: %w", trip.CurrentRouteID, err)
	}

	trip.Legs = append(trip.Legs, models.TripLeg{
		RouteID:        trip.CurrentRouteID,
		BusNumber:      trip.CurrentBusNumber,
		BoardingPoint:  trip.CurrentBoarding,
		AlightingPoint: alighting,
		DistanceKm:     round2(distKm),
		FareINR:        legFare,
		BoardedAt:      trip.BoardedAt,
		AlightedAt:     now,
	})
	trip.TotalFareINR = round2(trip.TotalFareINR + legFare)

	return nil
}

// legDistanceKm measures the ride along the route's waypoints between
// the nearest boarding and alighting positions, falling back to direct
// haversine when the geometry is unavailable or inverted
func (t *Tracker) legDistanceKm(routeID string, boarding, alighting models.GeoPoint) float64 {
	if t.routes != nil {
		if route, ok := t.routes(routeID); ok && len(route.Waypoints) >= 2 {
			from, _, _ := nearestWaypoint(route.Waypoints, boarding)
			to, _, _ := nearestWaypoint(route.Waypoints, alighting)
			if from < to {
				return waypointSpanKm(route.Waypoints, from, to)
			}
		}
	}
	return haversineKm(boarding.Lat, boarding.Lng, alighting.Lat, alighting.Lng)
}

// slot returns the passenger's slot, creating it on first use
func (t *Tracker) slot(passengerID string) *slot {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.slots[passengerID]
	if !ok {
		s = &slot{}
		t.slots[passengerID] = s
	}
	return s
}

// copyTrip snapshots a trip so callers never share the tracked legs
// slice
func copyTrip(trip *models.Trip) models.Trip {
	out := *trip
	out.Legs = append([]models.TripLeg(nil), trip.Legs...)
	return out
}
