package curve

import (
	"database/sql"
	"fmt"
	"math"

	"github.com/flightyield/seatcast/internal/models"
)

type vec2 [2]float64

type mat2 [2][2]float64

func (m mat2) mul(o mat2) mat2 {
	return mat2{
		{m[0][0]*o[0][0] + m[0][1]*o[1][0], m[0][0]*o[0][1] + m[0][1]*o[1][1]},
		{m[1][0]*o[0][0] + m[1][1]*o[1][0], m[1][0]*o[0][1] + m[1][1]*o[1][1]},
	}
}

func (m mat2) mulVec(v vec2) vec2 {
	return vec2{
		m[0][0]*v[0] + m[0][1]*v[1],
		m[1][0]*v[0] + m[1][1]*v[1],
	}
}

func (m mat2) transpose() mat2 {
	return mat2{{m[0][0], m[1][0]}, {m[0][1], m[1][1]}}
}

func (m mat2) add(o mat2) mat2 {
	return mat2{
		{m[0][0] + o[0][0], m[0][1] + o[0][1]},
		{m[1][0] + o[1][0], m[1][1] + o[1][1]},
	}
}

func (m mat2) inverse() (mat2, bool) {
	det := m[0][0]*m[1][1] - m[0][1]*m[1][0]
	if math.Abs(det) < 1e-12 {
		return mat2{}, false
	}
	return mat2{
		{m[1][1] / det, -m[0][1] / det},
		{-m[1][0] / det, m[0][0] / det},
	}, true
}

// Smoother imputes missing values in a trended count series with a local
// level + trend state-space model: a Kalman forward pass that tolerates
// missing observations, then a Rauch-Tung-Striebel backward pass. Zero
// variance fields are scaled from the data at run time.
type Smoother struct {
	LevelVar float64 // process noise on the level
	TrendVar float64 // process noise on the trend
	ObsVar   float64 // observation noise
}

func NewSmoother() *Smoother {
	return &Smoother{}
}

// Smooth returns the smoothed level at every index. present marks observed
// values; at least two are required.
func (s *Smoother) Smooth(values []float64, present []bool) ([]float64, error) {
	n := len(values)
	if len(present) != n {
		return nil, fmt.Errorf("smooth: %d values but %d presence flags", n, len(present))
	}

	firstIdx, lastIdx := -1, -1
	observed := 0
	for i, ok := range present {
		if !ok {
			continue
		}
		observed++
		if firstIdx < 0 {
			firstIdx = i
		}
		lastIdx = i
	}
	if observed < 2 {
		return nil, fmt.Errorf("smooth: need at least 2 observed values, have %d", observed)
	}

	base := s.baseVariance(values, present)
	obsVar := s.ObsVar
	if obsVar == 0 {
		obsVar = base
	}
	levelVar := s.LevelVar
	if levelVar == 0 {
		levelVar = 0.1 * base
	}
	trendVar := s.TrendVar
	if trendVar == 0 {
		trendVar = 0.01 * base
	}

	transition := mat2{{1, 1}, {0, 1}}
	processNoise := mat2{{levelVar, 0}, {0, trendVar}}

	slope := (values[lastIdx] - values[firstIdx]) / float64(lastIdx-firstIdx)
	state := vec2{values[firstIdx], slope}
	diffuse := 1e6 * math.Max(base, 1)
	cov := mat2{{diffuse, 0}, {0, diffuse}}

	statePred := make([]vec2, n)
	covPred := make([]mat2, n)
	stateFilt := make([]vec2, n)
	covFilt := make([]mat2, n)

	for t := 0; t < n; t++ {
		if t == 0 {
			statePred[t] = state
			covPred[t] = cov
		} else {
			statePred[t] = transition.mulVec(stateFilt[t-1])
			covPred[t] = transition.mul(covFilt[t-1]).mul(transition.transpose()).add(processNoise)
		}

		if present[t] {
			innovVar := covPred[t][0][0] + obsVar
			gain := vec2{covPred[t][0][0] / innovVar, covPred[t][1][0] / innovVar}
			innov := values[t] - statePred[t][0]
			stateFilt[t] = vec2{statePred[t][0] + gain[0]*innov, statePred[t][1] + gain[1]*innov}
			resid := mat2{{1 - gain[0], 0}, {-gain[1], 1}}
			covFilt[t] = resid.mul(covPred[t])
		} else {
			stateFilt[t] = statePred[t]
			covFilt[t] = covPred[t]
		}
	}

	smoothed := make([]vec2, n)
	smoothed[n-1] = stateFilt[n-1]
	for t := n - 2; t >= 0; t-- {
		inv, ok := covPred[t+1].inverse()
		if !ok {
			smoothed[t] = stateFilt[t]
			continue
		}
		gain := covFilt[t].mul(transition.transpose()).mul(inv)
		diff := vec2{smoothed[t+1][0] - statePred[t+1][0], smoothed[t+1][1] - statePred[t+1][1]}
		adj := gain.mulVec(diff)
		smoothed[t] = vec2{stateFilt[t][0] + adj[0], stateFilt[t][1] + adj[1]}
	}

	levels := make([]float64, n)
	for t := range smoothed {
		levels[t] = smoothed[t][0]
	}
	return levels, nil
}

// baseVariance scales the noise terms from the per-step changes between
// consecutive observed values.
func (s *Smoother) baseVariance(values []float64, present []bool) float64 {
	var diffs []float64
	prev := -1
	for i, ok := range present {
		if !ok {
			continue
		}
		if prev >= 0 {
			diffs = append(diffs, (values[i]-values[prev])/float64(i-prev))
		}
		prev = i
	}
	if len(diffs) < 2 {
		return 1
	}
	var mean float64
	for _, d := range diffs {
		mean += d
	}
	mean /= float64(len(diffs))
	var ss float64
	for _, d := range diffs {
		ss += (d - mean) * (d - mean)
	}
	v := ss / float64(len(diffs)-1)
	if v == 0 {
		return 1
	}
	return v
}

// InterpolateMidpoints fills missing seats with the midpoint of the nearest
// observed neighbors, extending flat past the edges. Neighbors are points
// observed in the input, never values imputed in the same pass. The lighter
// alternative to the smoother for partial to-forecast curves.
func InterpolateMidpoints(points []models.CurvePoint) []models.CurvePoint {
	sortCalendar(points)

	observed := make([]bool, len(points))
	for i, p := range points {
		observed[i] = p.Seats.Valid
	}

	for i := range points {
		if observed[i] {
			continue
		}
		prev, next := -1, -1
		for j := i - 1; j >= 0; j-- {
			if observed[j] {
				prev = j
				break
			}
		}
		for j := i + 1; j < len(points); j++ {
			if observed[j] {
				next = j
				break
			}
		}

		var seats int64
		switch {
		case prev >= 0 && next >= 0:
			seats = int64(math.Round(float64(points[prev].Seats.Int64+points[next].Seats.Int64) / 2))
		case prev >= 0:
			seats = points[prev].Seats.Int64
		case next >= 0:
			seats = points[next].Seats.Int64
		default:
			continue
		}
		points[i].Seats = sql.NullInt64{Int64: seats, Valid: true}
		points[i].Imputed = true
	}
	return points
}
