package forecast

import (
	"testing"
	"time"

	"github.com/flightyield/seatcast/internal/models"
)

func TestPickupBaseline_LinearRamp(t *testing.T) {
	departure := time.Date(2025, time.September, 30, 0, 0, 0, 0, time.UTC)
	points := PickupBaseline(departure, 10, 150, 15)
	if len(points) != 10 {
		t.Fatalf("len(points) = %d, want 10", len(points))
	}

	byOffset := map[int]models.ForecastPoint{}
	for _, p := range points {
		if p.Series != models.SeriesPickup {
			t.Fatalf("Series = %q, want %q", p.Series, models.SeriesPickup)
		}
		byOffset[p.Offset] = p
	}

	// The ramp stays unrounded: halfway through a 15-seat pickup reads 157.5.
	inDelta(t, "seats 9 days out", byOffset[9].Value, 151.5, 1e-9)
	inDelta(t, "seats 5 days out", byOffset[5].Value, 157.5, 1e-9)
	inDelta(t, "seats on departure day", byOffset[0].Value, 165, 1e-9)

	if got := byOffset[0].Date; !got.Equal(departure) {
		t.Errorf("departure-day point dated %v, want %v", got, departure)
	}
	if want := departure.AddDate(0, 0, -9); !byOffset[9].Date.Equal(want) {
		t.Errorf("first point dated %v, want %v", byOffset[9].Date, want)
	}
}

func TestPickupBaseline_NoHorizon(t *testing.T) {
	departure := time.Date(2025, time.September, 30, 0, 0, 0, 0, time.UTC)
	if got := PickupBaseline(departure, 0, 150, 15); got != nil {
		t.Errorf("PickupBaseline(cutoff 0) = %v, want nil", got)
	}
}
