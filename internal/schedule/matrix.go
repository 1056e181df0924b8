package schedule

// MatrixCell is one arrival/departure pair of the schedule matrix
type MatrixCell struct {
	Arrival   string `json:"arrival"`
	Departure string `json:"departure"`
}

// Matrix is the stop × bus timing grid for one route: rows are stops,
// columns are deployed bus instances. Built once per generation call and
// never mutated.
type Matrix struct {
	RouteID        string         `json:"route_id"`
	StopNames      []string       `json:"stop_names"`
	BusInstanceIDs []string       `json:"bus_instance_ids"`
	Cells          [][]MatrixCell `json:"cells"`
}

// BuildMatrix assembles the schedule matrix from a generated plan. Each
// cell holds the bus's first-departure timing at that stop.
func BuildMatrix(plan *Plan) Matrix {
	m := Matrix{RouteID: plan.RouteID}
	if len(plan.Entries) == 0 {
		return m
	}

	for _, t := range plan.Entries[0].StopTimings {
		m.StopNames = append(m.StopNames, t.StopName)
	}
	for _, entry := range plan.Entries {
		m.BusInstanceIDs = append(m.BusInstanceIDs, entry.Deployment.BusInstanceID)
	}

	m.Cells = make([][]MatrixCell, len(m.StopNames))
	for row := range m.Cells {
		cells := make([]MatrixCell, len(plan.Entries))
		for col, entry := range plan.Entries {
			if row < len(entry.StopTimings) {
				cells[col] = MatrixCell{
					Arrival:   entry.StopTimings[row].ArrivalTime,
					Departure: entry.StopTimings[row].DepartureTime,
				}
			}
		}
		m.Cells[row] = cells
	}

	return m
}
