package chart

import (
	"bytes"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/flightyield/seatcast/internal/models"
)

func testCardRun() *models.ForecastRun {
	departure := time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC)
	run := &models.ForecastRun{
		Route:         "SYD-MEL",
		DepartureDate: departure,
		Capacity:      180,
		DaysAhead:     7,
		Facts:         models.NarrativeFacts{CurrentSeats: 120},
	}
	for off := 21; off >= 8; off-- {
		run.Series = append(run.Series, models.ForecastPoint{
			Series: models.SeriesActual,
			Date:   departure.AddDate(0, 0, -off),
			Offset: off,
			Value:  float64(60 + (21-off)*5),
		})
	}
	for off := 7; off >= 0; off-- {
		v := float64(130 + (7-off)*4)
		low, high := v-8, v+8
		run.Series = append(run.Series, models.ForecastPoint{
			Series:   models.SeriesLogisticReg,
			Date:     departure.AddDate(0, 0, -off),
			Offset:   off,
			Value:    v,
			ConfLow:  &low,
			ConfHigh: &high,
		})
	}
	return run
}

func countColor(t *testing.T, data []byte, want color.RGBA) int {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode card: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != CardWidth || bounds.Dy() != CardHeight {
		t.Fatalf("card size = %dx%d, want %dx%d", bounds.Dx(), bounds.Dy(), CardWidth, CardHeight)
	}

	count := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			if uint8(r>>8) == want.R && uint8(g>>8) == want.G && uint8(b>>8) == want.B {
				count++
			}
		}
	}
	return count
}

func TestRenderDrawsBothSeries(t *testing.T) {
	data, err := Render(testCardRun())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	if countColor(t, data, colorActual) == 0 {
		t.Error("no booked-curve pixels on card")
	}
	if countColor(t, data, colorForecast) == 0 {
		t.Error("no forecast pixels on card")
	}
	if countColor(t, data, colorHeadline) == 0 {
		t.Error("no headline text pixels on card")
	}
}

func TestRenderActualOnlyRun(t *testing.T) {
	run := testCardRun()
	var actualOnly []models.ForecastPoint
	for _, p := range run.Series {
		if p.Series == models.SeriesActual {
			actualOnly = append(actualOnly, p)
		}
	}
	run.Series = actualOnly

	data, err := Render(run)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if countColor(t, data, colorActual) == 0 {
		t.Error("no booked-curve pixels on actual-only card")
	}
}

func TestRenderRejectsEmptyRun(t *testing.T) {
	run := &models.ForecastRun{
		Route:         "SYD-MEL",
		DepartureDate: time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC),
		Capacity:      180,
	}
	if _, err := Render(run); err == nil {
		t.Fatal("Render accepted a run with no series")
	}
}

func TestCacheRoundTrip(t *testing.T) {
	c, err := NewCache()
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}

	if _, ok := c.Get("2025-09-30__SYD-MEL"); ok {
		t.Fatal("Get hit on empty cache")
	}
	c.Put("2025-09-30__SYD-MEL", []byte{1, 2, 3})
	data, ok := c.Get("2025-09-30__SYD-MEL")
	if !ok {
		t.Fatal("Get missed after Put")
	}
	if len(data) != 3 {
		t.Errorf("len(data) = %d, want 3", len(data))
	}
}
