package trip

import (
	"testing"
	"time"

	"github.com/citylink/citylink_core/internal/fare"
	"github.com/citylink/citylink_core/internal/models"
	"github.com/stretchr/testify/assert"
)

func offPeak() time.Time {
	return time.Date(2026, 8, 31, 14, 0, 0, 0, time.UTC)
}

func peak() time.Time {
	return time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
}

func newTestTracker(lookup RouteLookup) *Tracker {
	return NewTracker(lookup, fare.DefaultConfig(), fare.DefaultPeakWindows())
}

func TestTrackerStateMachine(t *testing.T) {
	pointA := models.GeoPoint{Lat: 23.2000, Lng: 77.4000}
	pointB := models.GeoPoint{Lat: 23.2000, Lng: 77.4100}
	pointC := models.GeoPoint{Lat: 23.2000, Lng: 77.4200}

	t.Run("Start opens a trip", func(t *testing.T) {
		tr := newTestTracker(nil)

		started, err := tr.StartTrip("p1", "R1", "MP-01-1001", pointA, offPeak())
		assert.NoError(t, err)
		assert.NotEmpty(t, started.TripID)
		assert.Equal(t, "R1", started.CurrentRouteID)
		assert.Empty(t, started.Legs)
		assert.Equal(t, 0.0, started.TotalFareINR)

		active, ok := tr.ActiveTrip("p1")
		assert.True(t, ok)
		assert.Equal(t, started.TripID, active.TripID)
	})

	t.Run("Second start fails while active", func(t *testing.T) {
		tr := newTestTracker(nil)
		_, err := tr.StartTrip("p1", "R1", "MP-01-1001", pointA, offPeak())
		assert.NoError(t, err)

		_, err = tr.StartTrip("p1", "R2", "MP-01-1002", pointB, offPeak())
		assert.ErrorIs(t, err, ErrTripActive)
	})

	t.Run("Switch and complete without a trip fail", func(t *testing.T) {
		tr := newTestTracker(nil)

		_, err := tr.SwitchRoute("p1", "R2", "MP-01-1002", pointB, offPeak())
		assert.ErrorIs(t, err, ErrNoActiveTrip)

		_, err = tr.CompleteTrip("p1", pointC, offPeak())
		assert.ErrorIs(t, err, ErrNoActiveTrip)
	})

	t.Run("Passengers are independent", func(t *testing.T) {
		tr := newTestTracker(nil)
		_, err := tr.StartTrip("p1", "R1", "MP-01-1001", pointA, offPeak())
		assert.NoError(t, err)

		_, err = tr.StartTrip("p2", "R1", "MP-01-1001", pointA, offPeak())
		assert.NoError(t, err)

		_, ok := tr.ActiveTrip("p1")
		assert.True(t, ok)
		_, ok = tr.ActiveTrip("p2")
		assert.True(t, ok)
	})

	t.Run("Switch closes the leg and accumulates fare", func(t *testing.T) {
		tr := newTestTracker(nil)
		now := offPeak()

		_, err := tr.StartTrip("p1", "R1", "MP-01-1001", pointA, now)
		assert.NoError(t, err)

		switched, err := tr.SwitchRoute("p1", "R2", "MP-01-1002", pointB, now.Add(10*time.Minute))
		assert.NoError(t, err)
		assert.Len(t, switched.Legs, 1)
		assert.Equal(t, "R1", switched.Legs[0].RouteID)
		assert.Equal(t, 10.0, switched.Legs[0].FareINR) // ~1 km, first slab
		assert.Equal(t, "R2", switched.CurrentRouteID)
		assert.Equal(t, 10.0, switched.TotalFareINR)
	})

	t.Run("Complete finalizes and clears the trip", func(t *testing.T) {
		tr := newTestTracker(nil)
		now := offPeak()

		started, err := tr.StartTrip("p1", "R1", "MP-01-1001", pointA, now)
		assert.NoError(t, err)

		_, err = tr.SwitchRoute("p1", "R2", "MP-01-1002", pointB, now.Add(10*time.Minute))
		assert.NoError(t, err)

		completed, err := tr.CompleteTrip("p1", pointC, now.Add(25*time.Minute))
		assert.NoError(t, err)
		assert.Equal(t, started.TripID, completed.TripID)
		assert.Len(t, completed.Legs, 2)
		assert.Equal(t, 20.0, completed.TotalFareINR)
		assert.NotNil(t, completed.CompletedAt)
		assert.Empty(t, completed.CurrentRouteID)

		_, ok := tr.ActiveTrip("p1")
		assert.False(t, ok)

		// A new trip can start once the previous one completed
		_, err = tr.StartTrip("p1", "R1", "MP-01-1001", pointA, now.Add(time.Hour))
		assert.NoError(t, err)
	})

	t.Run("Peak boarding multiplies the leg fare", func(t *testing.T) {
		tr := newTestTracker(nil)

		_, err := tr.StartTrip("p1", "R1", "MP-01-1001", pointA, peak())
		assert.NoError(t, err)

		completed, err := tr.CompleteTrip("p1", pointB, peak().Add(10*time.Minute))
		assert.NoError(t, err)
		assert.Equal(t, 12.0, completed.TotalFareINR)
	})
}

func TestTrackerRouteDistance(t *testing.T) {
	// The route detours far north between its endpoints, so the ride is
	// much longer than the straight line between boarding and alighting
	detour := models.Route{
		RouteID: "R1",
		Waypoints: []models.Waypoint{
			{Index: 0, Lat: 23.2000, Lng: 77.4000},
			{Index: 1, Lat: 23.2500, Lng: 77.4100},
			{Index: 2, Lat: 23.2000, Lng: 77.4200},
		},
	}
	lookup := func(routeID string) (models.Route, bool) {
		if routeID == detour.RouteID {
			return detour, true
		}
		return models.Route{}, false
	}

	boarding := models.GeoPoint{Lat: 23.2000, Lng: 77.4000}
	alighting := models.GeoPoint{Lat: 23.2000, Lng: 77.4200}

	t.Run("Leg distance follows the route geometry", func(t *testing.T) {
		tr := newTestTracker(lookup)

		_, err := tr.StartTrip("p1", "R1", "MP-01-1001", boarding, offPeak())
		assert.NoError(t, err)

		completed, err := tr.CompleteTrip("p1", alighting, offPeak().Add(30*time.Minute))
		assert.NoError(t, err)
		assert.Len(t, completed.Legs, 1)
		assert.Greater(t, completed.Legs[0].DistanceKm, 10.0)
		assert.Equal(t, 25.0, completed.Legs[0].FareINR) // 10-20 km slab
	})

	t.Run("Unknown route falls back to straight-line distance", func(t *testing.T) {
		tr := newTestTracker(lookup)

		_, err := tr.StartTrip("p1", "R9", "MP-01-1001", boarding, offPeak())
		assert.NoError(t, err)

		completed, err := tr.CompleteTrip("p1", alighting, offPeak().Add(30*time.Minute))
		assert.NoError(t, err)
		assert.Less(t, completed.Legs[0].DistanceKm, 3.0)
		assert.Equal(t, 10.0, completed.Legs[0].FareINR)
	})
}

func TestTrackerSnapshotIsolation(t *testing.T) {
	tr := newTestTracker(nil)
	now := offPeak()

	_, err := tr.StartTrip("p1", "R1", "MP-01-1001", models.GeoPoint{Lat: 23.2, Lng: 77.4}, now)
	assert.NoError(t, err)

	switched, err := tr.SwitchRoute("p1", "R2", "MP-01-1002", models.GeoPoint{Lat: 23.2, Lng: 77.41}, now.Add(5*time.Minute))
	assert.NoError(t, err)

	// Mutating the returned snapshot must not affect the tracked trip
	switched.Legs[0].FareINR = 999

	active, ok := tr.ActiveTrip("p1")
	assert.True(t, ok)
	assert.Equal(t, 10.0, active.Legs[0].FareINR)
}
