package forecast

import (
	"fmt"
	"math"
	"time"

	"github.com/flightyield/seatcast/internal/models"
)

const (
	arimaMaxP   = 3
	arimaMaxQ   = 3
	arimaMaxD   = 2
	arimaMinObs = 5
)

// ARIMA is an automatic ARIMA(p,d,q) on seats-sold against calendar date.
// Differencing is chosen by variance reduction, then a stepwise search over
// (p,q) scored by AICc. AR coefficients come from the Yule-Walker equations
// solved with Levinson-Durbin recursion, MA coefficients from the AR
// residual autocorrelations. Regressors are ignored.
type ARIMA struct{}

func (ARIMA) Name() string { return models.SeriesARIMA }

func (ARIMA) Fit(train []TrainPoint) (FittedModel, error) {
	if len(train) < arimaMinObs {
		return nil, fmt.Errorf("arima: %w: have %d points, need %d", ErrInsufficientData, len(train), arimaMinObs)
	}

	series := make([]float64, len(train))
	for i, p := range train {
		series[i] = p.Seats
	}

	d, tails, diffed := chooseDifferencing(series)
	if len(diffed) < arimaMinObs-d {
		return nil, fmt.Errorf("arima: %w: series too short after differencing %d times", ErrInsufficientData, d)
	}

	best, err := stepwiseSearch(diffed)
	if err != nil {
		return nil, fmt.Errorf("arima: %w", err)
	}

	return &fittedARIMA{
		mean:      best.mean,
		ar:        best.ar,
		ma:        best.ma,
		centered:  best.centered,
		residuals: best.residuals,
		tails:     tails,
		lastDate:  train[len(train)-1].Date,
	}, nil
}

// chooseDifferencing applies successive differences while the sample
// variance keeps shrinking, up to arimaMaxD. It returns the order, the last
// value of each intermediate level for re-integration, and the working
// series.
func chooseDifferencing(series []float64) (int, []float64, []float64) {
	current := series
	var tails []float64
	for d := 0; d < arimaMaxD; d++ {
		if len(current) < 3 {
			break
		}
		next := difference(current)
		if sampleVariance(next) >= sampleVariance(current) {
			break
		}
		tails = append(tails, current[len(current)-1])
		current = next
	}
	return len(tails), tails, current
}

func difference(series []float64) []float64 {
	out := make([]float64, len(series)-1)
	for i := 1; i < len(series); i++ {
		out[i-1] = series[i] - series[i-1]
	}
	return out
}

func sampleVariance(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	var mean float64
	for _, v := range x {
		mean += v
	}
	mean /= float64(len(x))
	var ss float64
	for _, v := range x {
		ss += (v - mean) * (v - mean)
	}
	return ss / float64(len(x)-1)
}

type arimaCandidate struct {
	p, q      int
	mean      float64
	ar        []float64
	ma        []float64
	centered  []float64
	residuals []float64
	aicc      float64
}

// stepwiseSearch walks the (p,q) neighborhood from a handful of seed orders
// toward lower AICc, Hyndman-Khandakar style. The (0,0) mean-only model
// always fits, so the search cannot come back empty.
func stepwiseSearch(diffed []float64) (*arimaCandidate, error) {
	seeds := [][2]int{{0, 0}, {1, 0}, {0, 1}, {1, 1}, {2, 2}}

	tried := map[[2]int]bool{}
	var best *arimaCandidate
	consider := func(p, q int) {
		if p < 0 || q < 0 || p > arimaMaxP || q > arimaMaxQ || tried[[2]int{p, q}] {
			return
		}
		tried[[2]int{p, q}] = true
		cand, err := fitCandidate(diffed, p, q)
		if err != nil {
			return
		}
		if best == nil || cand.aicc < best.aicc {
			best = cand
		}
	}

	for _, s := range seeds {
		consider(s[0], s[1])
	}
	for {
		if best == nil {
			return nil, fmt.Errorf("no ARIMA candidate fit")
		}
		prev := best
		consider(best.p+1, best.q)
		consider(best.p-1, best.q)
		consider(best.p, best.q+1)
		consider(best.p, best.q-1)
		consider(best.p+1, best.q+1)
		consider(best.p-1, best.q-1)
		if best == prev {
			return best, nil
		}
	}
}

func fitCandidate(diffed []float64, p, q int) (*arimaCandidate, error) {
	n := len(diffed)
	if n <= p+q+2 {
		return nil, fmt.Errorf("order (%d,%d) too rich for %d points", p, q, n)
	}

	var mean float64
	for _, v := range diffed {
		mean += v
	}
	mean /= float64(n)
	centered := make([]float64, n)
	for i, v := range diffed {
		centered[i] = v - mean
	}

	var ar []float64
	if p > 0 {
		acf, ok := autocorrelations(centered, p)
		if !ok {
			return nil, fmt.Errorf("degenerate series at order (%d,%d)", p, q)
		}
		var err error
		ar, err = levinsonDurbin(acf, p)
		if err != nil {
			return nil, err
		}
	}

	ma := fitMA(centered, ar, q)
	residuals := computeResiduals(centered, ar, ma)

	start := p
	if q > start {
		start = q
	}
	var ss float64
	effective := 0
	for t := start; t < n; t++ {
		ss += residuals[t] * residuals[t]
		effective++
	}
	if effective == 0 {
		return nil, fmt.Errorf("no usable residuals at order (%d,%d)", p, q)
	}
	sigma2 := ss / float64(effective)
	if sigma2 < 1e-10 {
		sigma2 = 1e-10
	}

	k := float64(p + q + 1)
	nEff := float64(effective)
	aic := nEff*math.Log(sigma2) + 2*k
	denom := nEff - k - 1
	if denom <= 0 {
		return nil, fmt.Errorf("order (%d,%d) leaves no AICc degrees of freedom", p, q)
	}
	aicc := aic + 2*k*(k+1)/denom

	return &arimaCandidate{
		p: p, q: q,
		mean:      mean,
		ar:        ar,
		ma:        ma,
		centered:  centered,
		residuals: residuals,
		aicc:      aicc,
	}, nil
}

// autocorrelations returns the normalized autocorrelation function at lags
// 1..maxLag. ok is false when the series has no variance.
func autocorrelations(centered []float64, maxLag int) ([]float64, bool) {
	n := len(centered)
	var c0 float64
	for _, v := range centered {
		c0 += v * v
	}
	if c0 < 1e-12 {
		return nil, false
	}
	acf := make([]float64, maxLag+1)
	acf[0] = 1
	for lag := 1; lag <= maxLag; lag++ {
		var c float64
		for t := lag; t < n; t++ {
			c += centered[t] * centered[t-lag]
		}
		acf[lag] = c / c0
	}
	return acf, true
}

// levinsonDurbin solves the Yule-Walker equations for AR(p) coefficients.
func levinsonDurbin(acf []float64, p int) ([]float64, error) {
	phi := make([]float64, p+1)
	prev := make([]float64, p+1)
	e := 1.0

	phi[1] = acf[1]
	e *= 1 - phi[1]*phi[1]
	for k := 2; k <= p; k++ {
		if e <= 1e-12 {
			return nil, fmt.Errorf("levinson-durbin: prediction error vanished at order %d", k)
		}
		copy(prev, phi)
		acc := acf[k]
		for j := 1; j < k; j++ {
			acc -= prev[j] * acf[k-j]
		}
		reflect := acc / e
		phi[k] = reflect
		for j := 1; j < k; j++ {
			phi[j] = prev[j] - reflect*prev[k-j]
		}
		e *= 1 - reflect*reflect
	}
	return phi[1:], nil
}

// fitMA estimates MA coefficients from the autocorrelations of the AR
// residuals, clamped away from the unit circle.
func fitMA(centered, ar []float64, q int) []float64 {
	if q == 0 {
		return nil
	}
	arResid := make([]float64, len(centered))
	for t := range centered {
		pred := 0.0
		for i, coeff := range ar {
			if t-i-1 >= 0 {
				pred += coeff * centered[t-i-1]
			}
		}
		arResid[t] = centered[t] - pred
	}

	acf, ok := autocorrelations(arResid, q)
	if !ok {
		return make([]float64, q)
	}
	ma := make([]float64, q)
	for j := 1; j <= q; j++ {
		coeff := acf[j]
		if coeff > 0.95 {
			coeff = 0.95
		}
		if coeff < -0.95 {
			coeff = -0.95
		}
		ma[j-1] = coeff
	}
	return ma
}

// computeResiduals runs the innovation recursion over the centered series.
func computeResiduals(centered, ar, ma []float64) []float64 {
	residuals := make([]float64, len(centered))
	for t := range centered {
		pred := 0.0
		for i, coeff := range ar {
			if t-i-1 >= 0 {
				pred += coeff * centered[t-i-1]
			}
		}
		for j, coeff := range ma {
			if t-j-1 >= 0 {
				pred += coeff * residuals[t-j-1]
			}
		}
		residuals[t] = centered[t] - pred
	}
	return residuals
}

type fittedARIMA struct {
	mean      float64
	ar        []float64
	ma        []float64
	centered  []float64
	residuals []float64
	tails     []float64
	lastDate  time.Time
}

func (f *fittedARIMA) Predict(future []FuturePoint) []float64 {
	maxH := 0
	horizons := make([]int, len(future))
	for i, fp := range future {
		h := int(math.Round(fp.Date.Sub(f.lastDate).Hours() / 24))
		if h < 1 {
			h = 1
		}
		horizons[i] = h
		if h > maxH {
			maxH = h
		}
	}
	if maxH == 0 {
		return make([]float64, len(future))
	}

	extended := append([]float64(nil), f.centered...)
	resid := append([]float64(nil), f.residuals...)
	diffs := make([]float64, maxH)
	for h := 0; h < maxH; h++ {
		t := len(extended)
		pred := 0.0
		for i, coeff := range f.ar {
			if t-i-1 >= 0 {
				pred += coeff * extended[t-i-1]
			}
		}
		for j, coeff := range f.ma {
			if t-j-1 >= 0 {
				pred += coeff * resid[t-j-1]
			}
		}
		extended = append(extended, pred)
		resid = append(resid, 0)
		diffs[h] = pred + f.mean
	}

	path := integrate(diffs, f.tails)
	out := make([]float64, len(future))
	for i, h := range horizons {
		out[i] = path[h-1]
	}
	return out
}

// integrate undoes the differencing, innermost level first.
func integrate(forecasts []float64, tails []float64) []float64 {
	out := forecasts
	for k := len(tails) - 1; k >= 0; k-- {
		prev := tails[k]
		integrated := make([]float64, len(out))
		for i, v := range out {
			prev += v
			integrated[i] = prev
		}
		out = integrated
	}
	return out
}
