package models

import "time"

// GeoPoint is a latitude/longitude pair
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Waypoint is one point of a route polyline, ordered by Index
type Waypoint struct {
	Index int     `json:"index"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
}

// SegmentMetric carries the maps provider's measured distance and duration
// for one polyline segment (consecutive waypoint pair). These reflect road
// geometry, not great-circle distance.
type SegmentMetric struct {
	DistanceKm  float64 `json:"distance_km"`
	DurationMin float64 `json:"duration_min"`
}

// Node is one vertex of a route graph. Identity is coordinate-bucketed:
// waypoints that coincide within the bucketing tolerance share a node.
type Node struct {
	ID  int64   `json:"id"`
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Edge is a directed road segment between two graph nodes, weighted by
// both distance and duration. Duration is the routing weight; distance is
// carried for reporting and fares only.
type Edge struct {
	FromNodeID  int64   `json:"from_node_id"`
	ToNodeID    int64   `json:"to_node_id"`
	DistanceKm  float64 `json:"distance_km"`
	DurationMin float64 `json:"duration_min"`
}

// RouteCandidate is one ranked path from source to destination, produced
// by the path finder and consumed by AI re-ranking and route persistence.
type RouteCandidate struct {
	Rank        int     `json:"rank"`
	Nodes       []Node  `json:"nodes"`
	DistanceKm  float64 `json:"distance_km"`
	DurationMin float64 `json:"duration_min"`
}

// IntermediateStop is a named stop along a committed route, with its
// cumulative position from the route start.
type IntermediateStop struct {
	Name                      string  `json:"name"`
	Lat                       float64 `json:"lat"`
	Lng                       float64 `json:"lng"`
	Sequence                  int     `json:"sequence"`
	DistanceFromStartKm       float64 `json:"distance_from_start_km"`
	EstimatedTimeFromStartMin int     `json:"estimated_time_from_start_min"`
	AvgDwellTimeSec           int     `json:"avg_dwell_time_sec"`
}

// Route is a committed (persisted) bus route. Read-only to this core.
type Route struct {
	RouteID              string             `json:"route_id"`
	Name                 string             `json:"name"`
	Waypoints            []Waypoint         `json:"waypoints"`
	IntermediateStops    []IntermediateStop `json:"intermediate_stops"`
	TotalDistanceKm      float64            `json:"total_distance_km"`
	EstimatedDurationMin int                `json:"estimated_duration_min"`
	Status               string             `json:"status"`
}

// BusDeployment assigns one bus instance to a route. DeploymentSequence is
// 1-based assignment order; DepartureOffsetMin staggers first departures
// across the frequency interval.
type BusDeployment struct {
	BusInstanceID      string `json:"bus_instance_id"`
	RouteID            string `json:"route_id"`
	DeploymentSequence int    `json:"deployment_sequence"`
	DepartureOffsetMin int    `json:"departure_offset_min"`
}

// StopTiming is one stop's arrival/departure pair for one bus departure
type StopTiming struct {
	StopName      string  `json:"stop_name"`
	StopLat       float64 `json:"stop_lat"`
	StopLng       float64 `json:"stop_lng"`
	ArrivalTime   string  `json:"arrival_time"`
	DepartureTime string  `json:"departure_time"`
}

// ScheduleEntry is the full service-day timetable for one deployed bus
type ScheduleEntry struct {
	Deployment     BusDeployment `json:"deployment"`
	DepartureTimes []string      `json:"departure_times"`
	StopTimings    []StopTiming  `json:"stop_timings"`
	TotalTrips     int           `json:"total_trips"`
}

// OperatingWindow bounds a service day with HH:MM wall-clock times
type OperatingWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// FareSlab maps distances up to UpToKm (inclusive) to a base fare. The
// last slab of a config is open-ended.
type FareSlab struct {
	UpToKm      float64 `json:"up_to_km"`
	BaseFareINR float64 `json:"base_fare_inr"`
}

// FareConfig is the static fare table: ascending slabs plus the peak
// multiplier. Looked up, never mutated by this core.
type FareConfig struct {
	Slabs          []FareSlab `json:"slabs"`
	PeakMultiplier float64    `json:"peak_multiplier"`
}

// TripLeg is one completed ride within a trip: a single route between a
// boarding and an alighting point.
type TripLeg struct {
	RouteID        string    `json:"route_id"`
	BusNumber      string    `json:"bus_number"`
	BoardingPoint  GeoPoint  `json:"boarding_point"`
	AlightingPoint GeoPoint  `json:"alighting_point"`
	DistanceKm     float64   `json:"distance_km"`
	FareINR        float64   `json:"fare_inr"`
	BoardedAt      time.Time `json:"boarded_at"`
	AlightedAt     time.Time `json:"alighted_at"`
}

// Trip is a passenger's in-progress or completed journey. At most one
// active Trip exists per passenger.
type Trip struct {
	TripID           string     `json:"trip_id"`
	PassengerID      string     `json:"passenger_id"`
	CurrentRouteID   string     `json:"current_route_id"`
	CurrentBusNumber string     `json:"current_bus_number"`
	CurrentBoarding  GeoPoint   `json:"current_boarding"`
	BoardedAt        time.Time  `json:"boarded_at"`
	Legs             []TripLeg  `json:"legs"`
	TotalFareINR     float64    `json:"total_fare_inr"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// TransferPoint is a boarding or alighting location of an itinerary leg,
// with the walk required to reach it.
type TransferPoint struct {
	Name           string  `json:"name"`
	Lat            float64 `json:"lat"`
	Lng            float64 `json:"lng"`
	WalkDistanceKm float64 `json:"walk_distance_km"`
}

// ItineraryLeg is one ride of a proposed itinerary. WaitMin is nil when
// no timetable is attached or no departure remains today; zero means the
// next bus departs now.
type ItineraryLeg struct {
	RouteID        string        `json:"route_id"`
	RouteName      string        `json:"route_name"`
	BoardingPoint  TransferPoint `json:"boarding_point"`
	AlightingPoint TransferPoint `json:"alighting_point"`
	DistanceKm     float64       `json:"distance_km"`
	FareINR        float64       `json:"fare_inr"`
	DepartureTimes []string      `json:"departure_times,omitempty"`
	FrequencyMin   int           `json:"frequency_min,omitempty"`
	WaitMin        *int          `json:"wait_min,omitempty"`
}

// ItineraryOption is one end-to-end travel option: direct (one leg) or
// transfer (two legs).
type ItineraryOption struct {
	Type            string         `json:"type"`
	TotalLegs       int            `json:"total_legs"`
	TotalTransfers  int            `json:"total_transfers"`
	TotalDistanceKm float64        `json:"total_distance_km"`
	TotalFareINR    float64        `json:"total_fare_inr"`
	Legs            []ItineraryLeg `json:"legs"`
}
