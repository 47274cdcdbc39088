package curve

import (
	"database/sql"
	"reflect"
	"testing"
	"time"

	"github.com/flightyield/seatcast/internal/models"
)

var testDeparture = time.Date(2025, 8, 30, 0, 0, 0, 0, time.UTC)

func seatsVal(n int64) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: true}
}

func mkPoint(offset int, seats sql.NullInt64) models.CurvePoint {
	return models.CurvePoint{
		Route:         "SYD-MEL",
		DepartureDate: testDeparture,
		Offset:        offset,
		Seats:         seats,
	}
}

// linearSeries builds a contiguous series from maxOffset down to minOffset
// with seats growing by step per day toward departure.
func linearSeries(maxOffset, minOffset int, start, step int64) []models.CurvePoint {
	var points []models.CurvePoint
	for off := maxOffset; off >= minOffset; off-- {
		seats := start + step*int64(maxOffset-off)
		points = append(points, mkPoint(off, seatsVal(seats)))
	}
	return points
}

func TestFillGaps(t *testing.T) {
	points := []models.CurvePoint{
		mkPoint(5, seatsVal(100)),
		mkPoint(3, seatsVal(110)),
		mkPoint(1, seatsVal(130)),
	}

	got := FillGaps(points)

	if len(got) != 5 {
		t.Fatalf("len = %d, want 5 (offsets 5..1)", len(got))
	}
	for i, p := range got {
		wantOffset := 5 - i
		if p.Offset != wantOffset {
			t.Errorf("got[%d].Offset = %d, want %d", i, p.Offset, wantOffset)
		}
		if p.Route != "SYD-MEL" || !p.DepartureDate.Equal(testDeparture) {
			t.Errorf("got[%d] lost flight identity: %+v", i, p)
		}
	}
	if got[1].Seats.Valid {
		t.Errorf("introduced offset 4 seats = %v, want null", got[1].Seats)
	}
	if got[3].Seats.Valid {
		t.Errorf("introduced offset 2 seats = %v, want null", got[3].Seats)
	}
}

func TestFillGaps_Empty(t *testing.T) {
	if got := FillGaps(nil); got != nil {
		t.Errorf("FillGaps(nil) = %v, want nil", got)
	}
}

func TestCleanHistorical_Idempotent(t *testing.T) {
	points := linearSeries(10, 0, 100, 5)

	once := CleanHistorical(points)
	twice := CleanHistorical(clonePoints(once))

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("second clean changed already-clean data:\nonce:  %+v\ntwice: %+v", once, twice)
	}
	for _, p := range once {
		if p.Outlier || p.Imputed {
			t.Errorf("clean input gained flags at offset %d: outlier=%v imputed=%v", p.Offset, p.Outlier, p.Imputed)
		}
	}
}

func TestCleanHistorical_ContiguousOffsets(t *testing.T) {
	points := []models.CurvePoint{
		mkPoint(20, seatsVal(50)),
		mkPoint(17, seatsVal(62)),
		mkPoint(12, seatsVal(85)),
		mkPoint(3, seatsVal(130)),
		mkPoint(0, seatsVal(148)),
	}

	got := CleanHistorical(points)

	if len(got) != 21 {
		t.Fatalf("len = %d, want 21 (offsets 20..0)", len(got))
	}
	for i, p := range got {
		if want := 20 - i; p.Offset != want {
			t.Errorf("got[%d].Offset = %d, want %d", i, p.Offset, want)
		}
	}
}

func TestCleanHistorical_ClampsNegativeSeats(t *testing.T) {
	points := []models.CurvePoint{
		mkPoint(2, seatsVal(-3)),
		mkPoint(1, seatsVal(10)),
		mkPoint(0, seatsVal(25)),
	}

	got := CleanHistorical(points)

	for _, p := range got {
		if p.Seats.Valid && p.Seats.Int64 < 0 {
			t.Errorf("offset %d seats = %d, want >= 0", p.Offset, p.Seats.Int64)
		}
	}
	if got[len(got)-3].Seats.Int64 != 0 {
		t.Errorf("offset 2 seats = %d, want clamped to 0", got[len(got)-3].Seats.Int64)
	}
}

func TestScreenOutliers_FlagsEarlySpike(t *testing.T) {
	points := linearSeries(60, 40, 20, 2)
	// Corrupt offset 50 (more than 30 days out) with an implausible jump.
	for i := range points {
		if points[i].Offset == 50 {
			points[i].Seats = seatsVal(200)
		}
	}

	got := ScreenOutliers(points)

	var spike models.CurvePoint
	for _, p := range got {
		if p.Offset == 50 {
			spike = p
		}
	}
	if !spike.Outlier {
		t.Fatal("offset 50 spike not flagged as outlier")
	}
	if spike.Seats.Valid {
		t.Errorf("flagged spike seats = %v, want missing", spike.Seats)
	}

	for _, p := range got {
		if p.Offset != 50 && p.Outlier {
			t.Errorf("offset %d wrongly flagged", p.Offset)
		}
	}
}

func TestScreenOutliers_SparesLateSurge(t *testing.T) {
	points := linearSeries(40, 20, 20, 2)
	// The same implausible jump, but within 30 days of departure.
	for i := range points {
		if points[i].Offset == 25 {
			points[i].Seats = seatsVal(200)
		}
	}

	got := ScreenOutliers(points)

	for _, p := range got {
		if p.Offset == 25 {
			if p.Outlier {
				t.Error("late surge flagged as outlier; points at offset <= 30 are not screened")
			}
			if !p.Seats.Valid || p.Seats.Int64 != 200 {
				t.Errorf("late surge seats = %v, want 200 kept", p.Seats)
			}
		}
	}
}

func TestCleanHistorical_ImputesGap(t *testing.T) {
	points := linearSeries(20, 0, 50, 5)
	// Knock out offsets 10 and 9; linear truth is 100 and 105.
	var input []models.CurvePoint
	for _, p := range points {
		if p.Offset == 10 || p.Offset == 9 {
			p.Seats = sql.NullInt64{}
		}
		input = append(input, p)
	}

	got := CleanHistorical(input)

	want := map[int]int64{10: 100, 9: 105}
	for _, p := range got {
		expected, ok := want[p.Offset]
		if !ok {
			continue
		}
		if !p.Imputed {
			t.Errorf("offset %d not marked imputed", p.Offset)
		}
		if !p.Seats.Valid {
			t.Fatalf("offset %d seats still missing", p.Offset)
		}
		if diff := p.Seats.Int64 - expected; diff < -2 || diff > 2 {
			t.Errorf("offset %d imputed %d, want within 2 of %d", p.Offset, p.Seats.Int64, expected)
		}
	}
}

func TestCleanForecast_MidpointFill(t *testing.T) {
	points := []models.CurvePoint{
		mkPoint(4, seatsVal(100)),
		mkPoint(3, sql.NullInt64{}),
		mkPoint(2, sql.NullInt64{}),
		mkPoint(1, seatsVal(130)),
		mkPoint(0, seatsVal(150)),
	}

	got := CleanForecast(points)

	for _, p := range got {
		switch p.Offset {
		case 3, 2:
			if !p.Seats.Valid || p.Seats.Int64 != 115 {
				t.Errorf("offset %d seats = %v, want midpoint 115", p.Offset, p.Seats)
			}
			if !p.Imputed {
				t.Errorf("offset %d not marked imputed", p.Offset)
			}
		}
	}
}

func clonePoints(points []models.CurvePoint) []models.CurvePoint {
	out := make([]models.CurvePoint, len(points))
	copy(out, points)
	return out
}
