package curve

import (
	"database/sql"
	"sort"

	"github.com/flightyield/seatcast/internal/models"
)

// DefaultMinFlights is the smallest group size the aggregator keeps.
const DefaultMinFlights = 2

type meanAcc struct {
	n   int
	sum float64
}

func (a *meanAcc) add(v float64) {
	a.n++
	a.sum += v
}

func (a *meanAcc) mean() sql.NullFloat64 {
	if a.n == 0 {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: a.sum / float64(a.n), Valid: true}
}

type groupAcc struct {
	seats    meanAcc
	pickup   meanAcc
	rate     meanAcc
	accel    meanAcc
	load     meanAcc
	leadLoad meanAcc
}

// Aggregate computes mean statistics for every (route, offset) group of the
// cleaned historical dataset, weekend-segmented when byWeekend is set.
// Groups backed by fewer than minFlights seat observations are dropped.
// Pickup for one flight at offset k is its seats at departure minus its
// seats at k; flights without an offset-0 reading contribute no pickup.
func Aggregate(points []models.CurvePoint, byWeekend bool, minFlights int) []models.SummaryRow {
	if minFlights < 1 {
		minFlights = 1
	}

	departureSeats := map[FlightKey]float64{}
	for _, p := range points {
		if p.Offset == 0 && p.Seats.Valid {
			departureSeats[KeyFor(p)] = float64(p.Seats.Int64)
		}
	}

	groups := map[trendKey]*groupAcc{}
	for _, p := range points {
		k := trendKey{route: p.Route, offset: p.Offset}
		if byWeekend {
			k.weekend = p.Weekend
		}
		g := groups[k]
		if g == nil {
			g = &groupAcc{}
			groups[k] = g
		}

		if p.Seats.Valid {
			g.seats.add(float64(p.Seats.Int64))
			if dep, ok := departureSeats[KeyFor(p)]; ok {
				g.pickup.add(dep - float64(p.Seats.Int64))
			}
		}
		if p.BookingRate.Valid {
			g.rate.add(p.BookingRate.Float64)
		}
		if p.Acceleration.Valid {
			g.accel.add(p.Acceleration.Float64)
		}
		if p.LoadFactor.Valid {
			g.load.add(p.LoadFactor.Float64)
		}
		if p.LeadLoadFactor.Valid {
			g.leadLoad.add(p.LeadLoadFactor.Float64)
		}
	}

	rows := make([]models.SummaryRow, 0, len(groups))
	for k, g := range groups {
		if g.seats.n < minFlights {
			continue
		}
		row := models.SummaryRow{
			Route:             k.route,
			Offset:            k.offset,
			Flights:           g.seats.n,
			AvgSeats:          g.seats.mean(),
			AvgPickup:         g.pickup.mean(),
			AvgBookingRate:    g.rate.mean(),
			AvgAcceleration:   g.accel.mean(),
			AvgLoadFactor:     g.load.mean(),
			AvgLeadLoadFactor: g.leadLoad.mean(),
		}
		if byWeekend {
			row.Weekend = sql.NullBool{Bool: k.weekend, Valid: true}
		}
		rows = append(rows, row)
	}

	sortSummaries(rows)
	return rows
}

func sortSummaries(rows []models.SummaryRow) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Route != rows[j].Route {
			return rows[i].Route < rows[j].Route
		}
		if rows[i].Offset != rows[j].Offset {
			return rows[i].Offset > rows[j].Offset
		}
		return !rows[i].Weekend.Bool && rows[j].Weekend.Bool
	})
}
