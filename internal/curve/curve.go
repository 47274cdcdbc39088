package curve

import (
	"sort"

	"github.com/flightyield/seatcast/internal/models"
)

// FlightKey identifies one flight instance across datasets.
type FlightKey struct {
	Route         string
	DepartureDate string // 2006-01-02
}

func KeyFor(p models.CurvePoint) FlightKey {
	return FlightKey{Route: p.Route, DepartureDate: p.DepartureDate.Format("2006-01-02")}
}

// GroupFlights splits long-format points into per-flight series, preserving
// the order flights first appear in the input.
func GroupFlights(points []models.CurvePoint) [][]models.CurvePoint {
	groups := map[FlightKey][]models.CurvePoint{}
	var order []FlightKey
	for _, p := range points {
		k := KeyFor(p)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], p)
	}
	out := make([][]models.CurvePoint, 0, len(order))
	for _, k := range order {
		out = append(out, groups[k])
	}
	return out
}

// sortCalendar orders one flight's points earliest snapshot first, which
// means descending offset.
func sortCalendar(points []models.CurvePoint) {
	sort.Slice(points, func(i, j int) bool {
		return points[i].Offset > points[j].Offset
	})
}

// sortByOffset orders one flight's points by ascending offset.
func sortByOffset(points []models.CurvePoint) {
	sort.Slice(points, func(i, j int) bool {
		return points[i].Offset < points[j].Offset
	})
}
