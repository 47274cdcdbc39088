package forecast

import "fmt"

const (
	// DefaultAssessWindow is the assessment window first attempted when
	// building rolling-origin splits.
	DefaultAssessWindow = 30
	// MinAssessWindow is the degradation floor; below this the flight is
	// not backtestable.
	MinAssessWindow = 5

	initialTrainFraction = 0.8
)

// Split is one rolling-origin fold. Every training point precedes every
// assessment point in time.
type Split struct {
	ID     int
	Train  []TrainPoint
	Assess []TrainPoint
}

// RollingOrigin builds sliding forward-chaining splits over a series
// already ordered by date. The training window holds about 80% of the
// series and slides forward one day per split; each split is assessed on
// the window that follows it. When no split fits, the assessment window
// degrades one day at a time down to MinAssessWindow before giving up with
// ErrInsufficientData.
func RollingOrigin(series []TrainPoint, assessWindow int) ([]Split, error) {
	if assessWindow <= 0 {
		assessWindow = DefaultAssessWindow
	}
	n := len(series)
	initial := int(initialTrainFraction * float64(n))
	if initial < 2 {
		initial = 2
	}

	for w := assessWindow; w >= MinAssessWindow; w-- {
		if initial+w > n {
			continue
		}
		var splits []Split
		for start := 0; start+initial+w <= n; start++ {
			splits = append(splits, Split{
				ID:     len(splits) + 1,
				Train:  series[start : start+initial],
				Assess: series[start+initial : start+initial+w],
			})
		}
		if len(splits) > 0 {
			return splits, nil
		}
	}
	return nil, fmt.Errorf("%w: %d points cannot support an assessment window between %d and %d",
		ErrInsufficientData, n, MinAssessWindow, assessWindow)
}
