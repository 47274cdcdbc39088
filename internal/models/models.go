package models

import (
	"database/sql"
	"fmt"
	"time"
)

const (
	DatasetHistorical = "historical"
	DatasetForecast   = "forecast"
)

// Series names used in forecast run output. ACTUAL and Traditional Pickup
// are display literals and never change.
const (
	SeriesActual      = "ACTUAL"
	SeriesARIMA       = "ARIMA"
	SeriesLogistic    = "Logistic"
	SeriesLogisticReg = "Logistic + Regressors"
	SeriesPickup      = "Traditional Pickup"
)

type Flight struct {
	Route         string
	DepartureDate time.Time
	Dataset       string // "historical" or "forecast"
	Capacity      sql.NullInt64
	Weekend       bool
	QualityFlags  string // JSON array of validation flags, empty when clean
	CreatedAt     time.Time
}

func (f Flight) RunKey() string {
	return RunKey(f.Route, f.DepartureDate)
}

// RunKey formats the canonical "{departure_date}__{route}" storage key.
func RunKey(route string, departureDate time.Time) string {
	return fmt.Sprintf("%s__%s", departureDate.Format("2006-01-02"), route)
}

type CurvePoint struct {
	Route          string
	DepartureDate  time.Time
	Offset         int // days before departure, 0 = departure day
	Seats          sql.NullInt64
	Weekend        bool
	Outlier        bool
	Imputed        bool
	BookingRate    sql.NullFloat64
	Acceleration   sql.NullFloat64
	LoadFactor     sql.NullFloat64
	LeadLoadFactor sql.NullFloat64
	AvgPickup      sql.NullFloat64
}

// Date returns the calendar day the snapshot was taken.
func (p CurvePoint) Date() time.Time {
	return p.DepartureDate.AddDate(0, 0, -p.Offset)
}

type SummaryRow struct {
	Route             string
	Offset            int
	Weekend           sql.NullBool // null = pooled across the whole route
	Flights           int
	AvgSeats          sql.NullFloat64
	AvgPickup         sql.NullFloat64
	AvgBookingRate    sql.NullFloat64
	AvgAcceleration   sql.NullFloat64
	AvgLoadFactor     sql.NullFloat64
	AvgLeadLoadFactor sql.NullFloat64
}

type ForecastPoint struct {
	Series   string    `json:"series"`
	Date     time.Time `json:"date"`
	Offset   int       `json:"offset"`
	Value    float64   `json:"value"`
	ConfLow  *float64  `json:"conf_low,omitempty"`
	ConfHigh *float64  `json:"conf_high,omitempty"`
}

type AccuracyRow struct {
	Model  string   `json:"model"`
	MAE    float64  `json:"mae"`
	MAPE   float64  `json:"mape"`
	MASE   float64  `json:"mase"`
	SMAPE  float64  `json:"smape"`
	RMSE   float64  `json:"rmse"`
	R2     *float64 `json:"r2"`
	Points int      `json:"points"`
}

type FactPoint struct {
	Date  string  `json:"date"`
	Seats float64 `json:"seats"`
}

type TrendFact struct {
	DaysOut        int     `json:"days_out"`
	AvgPickup      float64 `json:"avg_pickup"`
	AvgBookingRate float64 `json:"avg_booking_rate"`
}

// NarrativeFacts is the deterministic context assembled for the insight
// prompt. Building it never calls any external service.
type NarrativeFacts struct {
	Route         string      `json:"route"`
	DepartureDate string      `json:"departure_date"`
	Capacity      int64       `json:"capacity"`
	Weekend       bool        `json:"weekend"`
	CurrentSeats  float64     `json:"current_seats"`
	Actuals       []FactPoint `json:"actuals"`
	Forecast      []FactPoint `json:"forecast"`
	Trend         []TrendFact `json:"trend,omitempty"`
}

// ForecastRun is the durable result of one forecast job. Only completed
// runs are persisted; a failed job leaves no run behind.
type ForecastRun struct {
	Route         string          `json:"route"`
	DepartureDate time.Time       `json:"departure_date"`
	GeneratedAt   time.Time       `json:"generated_at"`
	Capacity      int64           `json:"capacity"`
	DaysAhead     int             `json:"days_ahead"`
	Accuracy      []AccuracyRow   `json:"accuracy"`
	Series        []ForecastPoint `json:"series"`
	Facts         NarrativeFacts  `json:"facts"`
}

func (r *ForecastRun) Key() string {
	return RunKey(r.Route, r.DepartureDate)
}
