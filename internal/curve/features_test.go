package curve

import (
	"database/sql"
	"math"
	"testing"

	"github.com/flightyield/seatcast/internal/models"
)

func TestDeriveFeatures(t *testing.T) {
	points := []models.CurvePoint{
		mkPoint(3, seatsVal(100)),
		mkPoint(2, seatsVal(110)),
		mkPoint(1, seatsVal(125)),
		mkPoint(0, seatsVal(150)),
	}
	capacity := sql.NullInt64{Int64: 200, Valid: true}

	got := DeriveFeatures(points, capacity)

	byOffset := map[int]models.CurvePoint{}
	for _, p := range got {
		byOffset[p.Offset] = p
	}

	checkFloat := func(name string, offset int, v sql.NullFloat64, want float64) {
		t.Helper()
		if !v.Valid {
			t.Errorf("offset %d %s missing, want %v", offset, name, want)
			return
		}
		if math.Abs(v.Float64-want) > 1e-9 {
			t.Errorf("offset %d %s = %v, want %v", offset, name, v.Float64, want)
		}
	}
	checkMissing := func(name string, offset int, v sql.NullFloat64) {
		t.Helper()
		if v.Valid {
			t.Errorf("offset %d %s = %v, want missing", offset, name, v.Float64)
		}
	}

	// Rate of sale per day: seats(k) - seats(k+1).
	checkFloat("booking rate", 0, byOffset[0].BookingRate, 25)
	checkFloat("booking rate", 1, byOffset[1].BookingRate, 15)
	checkFloat("booking rate", 2, byOffset[2].BookingRate, 10)
	checkMissing("booking rate", 3, byOffset[3].BookingRate)

	checkFloat("acceleration", 0, byOffset[0].Acceleration, 10)
	checkFloat("acceleration", 1, byOffset[1].Acceleration, 5)
	checkMissing("acceleration", 2, byOffset[2].Acceleration)

	checkFloat("load factor", 0, byOffset[0].LoadFactor, 0.75)
	checkFloat("load factor", 3, byOffset[3].LoadFactor, 0.5)

	// Lead load factor looks one offset closer to departure.
	checkMissing("lead load factor", 0, byOffset[0].LeadLoadFactor)
	checkFloat("lead load factor", 1, byOffset[1].LeadLoadFactor, 0.75)
	checkFloat("lead load factor", 2, byOffset[2].LeadLoadFactor, 0.625)
	checkFloat("lead load factor", 3, byOffset[3].LeadLoadFactor, 0.55)
}

func TestDeriveFeatures_LoadFactorClamped(t *testing.T) {
	points := []models.CurvePoint{
		mkPoint(1, seatsVal(210)),
		mkPoint(0, seatsVal(230)),
	}
	capacity := sql.NullInt64{Int64: 200, Valid: true}

	got := DeriveFeatures(points, capacity)

	for _, p := range got {
		if !p.LoadFactor.Valid {
			t.Fatalf("offset %d load factor missing", p.Offset)
		}
		if p.LoadFactor.Float64 < 0 || p.LoadFactor.Float64 > 1 {
			t.Errorf("offset %d load factor = %v, want within [0,1]", p.Offset, p.LoadFactor.Float64)
		}
		if p.LoadFactor.Float64 != 1 {
			t.Errorf("offset %d load factor = %v, want clamped to 1", p.Offset, p.LoadFactor.Float64)
		}
	}
}

func TestDeriveFeatures_CapacityMissing(t *testing.T) {
	tests := []struct {
		name     string
		capacity sql.NullInt64
	}{
		{"missing capacity", sql.NullInt64{}},
		{"zero capacity", sql.NullInt64{Int64: 0, Valid: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points := []models.CurvePoint{
				mkPoint(1, seatsVal(100)),
				mkPoint(0, seatsVal(120)),
			}
			got := DeriveFeatures(points, tt.capacity)
			for _, p := range got {
				if p.LoadFactor.Valid {
					t.Errorf("offset %d load factor = %v, want missing", p.Offset, p.LoadFactor.Float64)
				}
				if p.LeadLoadFactor.Valid {
					t.Errorf("offset %d lead load factor = %v, want missing", p.Offset, p.LeadLoadFactor.Float64)
				}
				if !p.BookingRate.Valid && p.Offset == 0 {
					t.Error("booking rate should not depend on capacity")
				}
			}
		})
	}
}

func TestTrendLookup_SegmentedPreferred(t *testing.T) {
	rows := []models.SummaryRow{
		{Route: "SYD-MEL", Offset: 1, Weekend: sql.NullBool{Bool: false, Valid: true},
			AvgPickup: sql.NullFloat64{Float64: 12, Valid: true}},
		{Route: "SYD-MEL", Offset: 1,
			AvgPickup: sql.NullFloat64{Float64: 99, Valid: true}},
		{Route: "SYD-MEL", Offset: 2,
			AvgPickup: sql.NullFloat64{Float64: 30, Valid: true}},
	}
	lookup := NewTrendLookup(rows)

	if pickup, ok := lookup.AvgPickup("SYD-MEL", 1, false); !ok || pickup != 12 {
		t.Errorf("AvgPickup(offset 1) = %v, %v; want segmented 12", pickup, ok)
	}
	if pickup, ok := lookup.AvgPickup("SYD-MEL", 2, false); !ok || pickup != 30 {
		t.Errorf("AvgPickup(offset 2) = %v, %v; want pooled fallback 30", pickup, ok)
	}
	if _, ok := lookup.AvgPickup("SYD-MEL", 3, false); ok {
		t.Error("AvgPickup(offset 3) should have no match")
	}
	if _, ok := lookup.AvgPickup("MEL-PER", 1, false); ok {
		t.Error("AvgPickup(unknown route) should have no match")
	}
}

func TestJoinAvgPickup(t *testing.T) {
	rows := []models.SummaryRow{
		{Route: "SYD-MEL", Offset: 1, AvgPickup: sql.NullFloat64{Float64: 18, Valid: true}},
	}
	lookup := NewTrendLookup(rows)

	points := []models.CurvePoint{
		mkPoint(1, seatsVal(100)),
		mkPoint(0, seatsVal(120)),
	}
	JoinAvgPickup(points, lookup)

	for _, p := range points {
		switch p.Offset {
		case 1:
			if !p.AvgPickup.Valid || p.AvgPickup.Float64 != 18 {
				t.Errorf("offset 1 avg pickup = %v, want 18", p.AvgPickup)
			}
		case 0:
			if p.AvgPickup.Valid {
				t.Errorf("offset 0 avg pickup = %v, want missing", p.AvgPickup)
			}
		}
	}
}
