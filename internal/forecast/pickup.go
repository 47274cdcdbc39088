package forecast

import (
	"time"

	"github.com/flightyield/seatcast/internal/models"
)

// PickupBaseline projects the traditional pickup forecast: a straight ramp
// from the current seats at the cutoff offset to current plus the segment's
// historical average pickup at departure, spread evenly over the remaining
// days. Values are left unrounded; a flight at 150 seats with a 15-seat
// average pickup over 10 days reads 157.5 five days out and exactly 165 on
// departure day.
func PickupBaseline(departure time.Time, cutoffOffset int, currentSeats, avgPickup float64) []models.ForecastPoint {
	if cutoffOffset <= 0 {
		return nil
	}
	points := make([]models.ForecastPoint, 0, cutoffOffset)
	for offset := cutoffOffset - 1; offset >= 0; offset-- {
		elapsed := float64(cutoffOffset-offset) / float64(cutoffOffset)
		points = append(points, models.ForecastPoint{
			Series: models.SeriesPickup,
			Date:   departure.AddDate(0, 0, -offset),
			Offset: offset,
			Value:  currentSeats + avgPickup*elapsed,
		})
	}
	return points
}
