package insight

import (
	"fmt"
	"strings"

	"github.com/flightyield/seatcast/internal/models"
)

// systemInstruction pins the narrative register: factual, flowing prose
// with no bullet lists, and a concrete momentum call-out.
const systemInstruction = "You are a revenue analyst for an airline. " +
	"Write a short strategic narrative about the booking outlook for one flight, " +
	"grounded strictly in the facts provided. Use flowing prose with no bullet points or headings. " +
	"Name the calendar date on which booking momentum is expected to pick up, " +
	"compare the forecast against the historical trend for this segment, " +
	"and close with one actionable recommendation."

// BuildPrompt renders a run's facts into a deterministic plain-text
// payload. Identical facts always produce identical prompts.
func BuildPrompt(facts models.NarrativeFacts) string {
	var b strings.Builder

	dayType := "weekday"
	if facts.Weekend {
		dayType = "weekend"
	}
	fmt.Fprintf(&b, "Flight %s departing %s (%s departure), capacity %d seats.\n",
		facts.Route, facts.DepartureDate, dayType, facts.Capacity)
	fmt.Fprintf(&b, "Seats sold to date: %.0f.\n", facts.CurrentSeats)

	if len(facts.Actuals) > 0 {
		b.WriteString("\nObserved bookings:\n")
		for _, p := range facts.Actuals {
			fmt.Fprintf(&b, "%s: %.0f seats\n", p.Date, p.Seats)
		}
	}
	if len(facts.Forecast) > 0 {
		b.WriteString("\nForecast bookings:\n")
		for _, p := range facts.Forecast {
			fmt.Fprintf(&b, "%s: %.1f seats\n", p.Date, p.Seats)
		}
	}
	if len(facts.Trend) > 0 {
		b.WriteString("\nHistorical trend for this segment:\n")
		for _, tr := range facts.Trend {
			fmt.Fprintf(&b, "%d days out: avg pickup %.1f seats, avg daily booking rate %.1f\n",
				tr.DaysOut, tr.AvgPickup, tr.AvgBookingRate)
		}
	}
	return b.String()
}
