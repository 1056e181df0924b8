package schedule

import (
	"testing"

	"github.com/citylink/citylink_core/internal/models"
	"github.com/stretchr/testify/assert"
)

func testRoute() models.Route {
	return models.Route{
		RouteID:              "RT-1",
		Name:                 "MP Nagar - BHEL",
		TotalDistanceKm:      10,
		EstimatedDurationMin: 30,
		Waypoints: []models.Waypoint{
			{Index: 0, Lat: 23.2599, Lng: 77.4126},
			{Index: 1, Lat: 23.2650, Lng: 77.4080},
			{Index: 2, Lat: 23.2759, Lng: 77.4011},
		},
		IntermediateStops: []models.IntermediateStop{
			{Name: "MP Nagar", Sequence: 0, DistanceFromStartKm: 0, EstimatedTimeFromStartMin: 0, AvgDwellTimeSec: 120},
			{Name: "New Market", Sequence: 1, DistanceFromStartKm: 5, AvgDwellTimeSec: 120},
			{Name: "BHEL", Sequence: 2, DistanceFromStartKm: 10, EstimatedTimeFromStartMin: 30, AvgDwellTimeSec: 60},
		},
	}
}

func window(start, end string) models.OperatingWindow {
	return models.OperatingWindow{Start: start, End: end}
}

func TestGenerate(t *testing.T) {
	t.Run("Buses are phase-shifted across the frequency", func(t *testing.T) {
		plan, err := Generate(testRoute(), 3, 9, false, window("06:00", "22:00"))
		assert.NoError(t, err)
		assert.Len(t, plan.Entries, 3)

		assert.Equal(t, 0, plan.Entries[0].Deployment.DepartureOffsetMin)
		assert.Equal(t, 3, plan.Entries[1].Deployment.DepartureOffsetMin)
		assert.Equal(t, 6, plan.Entries[2].Deployment.DepartureOffsetMin)

		assert.Equal(t, "06:00", plan.Entries[0].DepartureTimes[0])
		assert.Equal(t, "06:03", plan.Entries[1].DepartureTimes[0])
		assert.Equal(t, "06:06", plan.Entries[2].DepartureTimes[0])
	})

	t.Run("Departures repeat every frequency interval", func(t *testing.T) {
		plan, err := Generate(testRoute(), 2, 15, false, window("06:00", "08:00"))
		assert.NoError(t, err)

		assert.Equal(t, []string{"06:00", "06:15", "06:30", "06:45", "07:00", "07:15", "07:30", "07:45", "08:00"},
			plan.Entries[0].DepartureTimes)
		assert.Equal(t, plan.Entries[0].TotalTrips, len(plan.Entries[0].DepartureTimes))
	})

	t.Run("Bus instance IDs follow the route", func(t *testing.T) {
		plan, err := Generate(testRoute(), 2, 10, false, window("06:00", "10:00"))
		assert.NoError(t, err)
		assert.Equal(t, "RT-1-B1", plan.Entries[0].Deployment.BusInstanceID)
		assert.Equal(t, "RT-1-B2", plan.Entries[1].Deployment.BusInstanceID)
		assert.Equal(t, 1, plan.Entries[0].Deployment.DeploymentSequence)
		assert.Equal(t, 2, plan.Entries[1].Deployment.DeploymentSequence)
	})

	t.Run("Round trip adds the turnaround buffer", func(t *testing.T) {
		plan, err := Generate(testRoute(), 1, 30, false, window("06:00", "10:00"))
		assert.NoError(t, err)
		assert.Equal(t, 70, plan.RoundTripMin)
	})

	t.Run("Stop timings add dwell to arrival", func(t *testing.T) {
		plan, err := Generate(testRoute(), 1, 30, false, window("06:00", "10:00"))
		assert.NoError(t, err)

		timings := plan.Entries[0].StopTimings
		assert.Len(t, timings, 3)

		assert.Equal(t, "06:00", timings[0].ArrivalTime)
		assert.Equal(t, "06:02", timings[0].DepartureTime)

		// Second stop has no explicit estimate: interpolated from its
		// distance fraction (5 of 10 km over 30 min)
		assert.Equal(t, "06:15", timings[1].ArrivalTime)
		assert.Equal(t, "06:17", timings[1].DepartureTime)

		assert.Equal(t, "06:30", timings[2].ArrivalTime)
		assert.Equal(t, "06:31", timings[2].DepartureTime)
	})

	t.Run("Trip count follows the window remaining after the offset", func(t *testing.T) {
		// A short window leaves later buses room for fewer trips
		plan, err := Generate(testRoute(), 3, 9, false, window("06:00", "06:10"))
		assert.NoError(t, err)

		for i, entry := range plan.Entries {
			offset := entry.Deployment.DepartureOffsetMin
			assert.Equal(t, 3*i, offset)

			want := (10-offset)/9 + 1
			assert.Equal(t, want, entry.TotalTrips)
			assert.Len(t, entry.DepartureTimes, want)
		}

		assert.Equal(t, []string{"06:00", "06:09"}, plan.Entries[0].DepartureTimes)
		assert.Equal(t, []string{"06:03"}, plan.Entries[1].DepartureTimes)
		assert.Equal(t, []string{"06:06"}, plan.Entries[2].DepartureTimes)
	})

	t.Run("Identical inputs produce identical plans", func(t *testing.T) {
		a, err := Generate(testRoute(), 4, 12, true, window("06:00", "22:00"))
		assert.NoError(t, err)
		b, err := Generate(testRoute(), 4, 12, true, window("06:00", "22:00"))
		assert.NoError(t, err)
		assert.Equal(t, a, b)
	})
}

func TestGenerateValidation(t *testing.T) {
	valid := window("06:00", "22:00")

	cases := []struct {
		name         string
		numBuses     int
		frequencyMin int
		window       models.OperatingWindow
	}{
		{"Zero buses", 0, 10, valid},
		{"Too many buses", 21, 10, valid},
		{"Frequency too low", 3, 4, valid},
		{"Frequency too high", 3, 61, valid},
		{"Window end before start", 3, 10, window("22:00", "06:00")},
		{"Malformed window", 3, 10, window("6am", "22:00")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Generate(testRoute(), tc.numBuses, tc.frequencyMin, false, tc.window)
			assert.ErrorIs(t, err, ErrInvalidParams)
		})
	}

	t.Run("Route without duration", func(t *testing.T) {
		route := testRoute()
		route.EstimatedDurationMin = 0
		_, err := Generate(route, 3, 10, false, valid)
		assert.ErrorIs(t, err, ErrInvalidParams)
	})
}

func TestBuildMatrix(t *testing.T) {
	plan, err := Generate(testRoute(), 3, 9, false, window("06:00", "22:00"))
	assert.NoError(t, err)

	m := BuildMatrix(plan)

	assert.Equal(t, "RT-1", m.RouteID)
	assert.Equal(t, []string{"MP Nagar", "New Market", "BHEL"}, m.StopNames)
	assert.Equal(t, []string{"RT-1-B1", "RT-1-B2", "RT-1-B3"}, m.BusInstanceIDs)

	assert.Len(t, m.Cells, 3)
	for _, row := range m.Cells {
		assert.Len(t, row, 3)
	}

	assert.Equal(t, "06:00", m.Cells[0][0].Arrival)
	assert.Equal(t, "06:03", m.Cells[0][1].Arrival)
	assert.Equal(t, "06:06", m.Cells[0][2].Arrival)
}

func TestDeriveStops(t *testing.T) {
	waypoints := []models.Waypoint{
		{Index: 0, Lat: 23.2000, Lng: 77.4000},
		{Index: 1, Lat: 23.2050, Lng: 77.4050},
		{Index: 2, Lat: 23.2100, Lng: 77.4100},
		{Index: 3, Lat: 23.2150, Lng: 77.4150},
		{Index: 4, Lat: 23.2200, Lng: 77.4200},
	}

	t.Run("Terminal stop always present", func(t *testing.T) {
		stops := DeriveStops(waypoints, 20, 2)
		assert.Len(t, stops, 3)

		last := stops[len(stops)-1]
		assert.Equal(t, waypoints[4].Lat, last.Lat)
		assert.Equal(t, waypoints[4].Lng, last.Lng)
		assert.Equal(t, 20, last.EstimatedTimeFromStartMin)
	})

	t.Run("Distances and sequence increase along the route", func(t *testing.T) {
		stops := DeriveStops(waypoints, 20, 3)
		for i := 1; i < len(stops); i++ {
			assert.GreaterOrEqual(t, stops[i].DistanceFromStartKm, stops[i-1].DistanceFromStartKm)
			assert.Equal(t, i, stops[i].Sequence)
		}
		assert.Equal(t, 0.0, stops[0].DistanceFromStartKm)
	})

	t.Run("More stops requested than waypoints", func(t *testing.T) {
		stops := DeriveStops(waypoints[:3], 20, 10)
		assert.Len(t, stops, 3)

		// The terminal waypoint must appear exactly once, as the last stop
		for i := 0; i < len(stops)-1; i++ {
			assert.False(t, stops[i].Lat == waypoints[2].Lat && stops[i].Lng == waypoints[2].Lng)
		}
		last := stops[len(stops)-1]
		assert.Equal(t, waypoints[2].Lat, last.Lat)
		assert.Equal(t, waypoints[2].Lng, last.Lng)
		assert.Equal(t, len(stops)-1, last.Sequence)
	})

	t.Run("Degenerate input yields nothing", func(t *testing.T) {
		assert.Nil(t, DeriveStops(waypoints[:1], 20, 3))
		assert.Nil(t, DeriveStops(waypoints, 20, 0))
	})
}
