package forecast

import (
	"errors"
	"time"
)

// ErrInsufficientData marks flights whose partial curve cannot support the
// requested resampling or model fit.
var ErrInsufficientData = errors.New("insufficient data")

// TrainPoint is one observed day of a flight's booking curve on the
// calendar axis, with the regressors used by the augmented model.
type TrainPoint struct {
	Date           time.Time
	Offset         int
	Seats          float64
	BookingRate    float64
	LeadLoadFactor float64
}

// FuturePoint is one forward day to predict. Regressor values for future
// days are approximated from historical segment means, since they are not
// observable yet.
type FuturePoint struct {
	Date           time.Time
	Offset         int
	BookingRate    float64
	LeadLoadFactor float64
}

// Model fits one family of booking-curve forecasters. Implementations hold
// configuration only and may be shared across concurrent split workers.
type Model interface {
	Name() string
	Fit(train []TrainPoint) (FittedModel, error)
}

// FittedModel projects point forecasts for future days.
type FittedModel interface {
	Predict(future []FuturePoint) []float64
}
