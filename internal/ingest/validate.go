package ingest

import (
	"encoding/json"

	"github.com/flightyield/seatcast/internal/models"
)

const (
	FlagCapacityMissing     = "capacity_missing"
	FlagCapacityNotPositive = "capacity_not_positive"
	FlagSeatsNegative       = "seats_negative"
	FlagSeatsOverCapacity   = "seats_over_capacity"
	FlagNoObservations      = "no_observations"
)

// ValidateFlight returns quality flags for a flight and its raw curve
// points. Flags mark rows worth inspecting; they never block loading.
func ValidateFlight(f models.Flight, points []models.CurvePoint) []string {
	var flags []string

	if !f.Capacity.Valid {
		flags = append(flags, FlagCapacityMissing)
	} else if f.Capacity.Int64 <= 0 {
		flags = append(flags, FlagCapacityNotPositive)
	}

	observed := 0
	negative := false
	overCapacity := false
	for _, p := range points {
		if !p.Seats.Valid {
			continue
		}
		observed++
		if p.Seats.Int64 < 0 {
			negative = true
		}
		if f.Capacity.Valid && f.Capacity.Int64 > 0 && p.Seats.Int64 > f.Capacity.Int64 {
			overCapacity = true
		}
	}

	if negative {
		flags = append(flags, FlagSeatsNegative)
	}
	if overCapacity {
		flags = append(flags, FlagSeatsOverCapacity)
	}
	if observed == 0 {
		flags = append(flags, FlagNoObservations)
	}

	return flags
}

func QualityFlagsToJSON(flags []string) string {
	if len(flags) == 0 {
		return ""
	}
	b, _ := json.Marshal(flags)
	return string(b)
}
