package analysis

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

var (
	ErrInvalidLoop = errors.New("analysis: invalid loop parameters")
	ErrNoCrossover = errors.New("analysis: loop gain never crosses unity")
)

// Loop describes the continuous open loop of the lead compensator in series
// with the mass-damper.
type Loop struct {
	Kl   float64
	TauP float64
	TauZ float64
	M    float64
	K    float64
}

type Margins struct {
	GainCrossover  float64 `json:"gain_crossover"`
	PhaseMargin    float64 `json:"phase_margin_deg"`
	PhaseCrossover float64 `json:"phase_crossover"`
	GainMargin     float64 `json:"gain_margin_db"`
	DelayMargin    float64 `json:"delay_margin"`
}

const (
	searchLow    = 1e-4
	searchHigh   = 1e4
	searchPoints = 2000
	bisectIters  = 100
)

// Magnitude is |L(jw)|.
func (l Loop) Magnitude(w float64) float64 {
	num := l.Kl * math.Hypot(1, l.TauZ*w)
	den := math.Hypot(1, l.TauP*w) * w * math.Hypot(l.K, l.M*w)
	return num / den
}

// Phase is arg L(jw) in radians, unwrapped.
func (l Loop) Phase(w float64) float64 {
	return math.Atan(l.TauZ*w) - math.Atan(l.TauP*w) - math.Pi/2 - math.Atan2(l.M*w, l.K)
}

func (l Loop) validate() error {
	for _, v := range []float64{l.Kl, l.TauP, l.TauZ, l.M, l.K} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value", ErrInvalidLoop)
		}
	}
	if l.Kl <= 0 {
		return fmt.Errorf("%w: kl must be positive, got %g", ErrInvalidLoop, l.Kl)
	}
	if l.M <= 0 {
		return fmt.Errorf("%w: mass must be positive, got %g", ErrInvalidLoop, l.M)
	}
	if l.TauP < 0 || l.TauZ < 0 || l.K < 0 {
		return fmt.Errorf("%w: time constants and damping must be non-negative", ErrInvalidLoop)
	}
	return nil
}

// ComputeMargins scans a log-spaced frequency grid for the first gain and
// phase crossovers and refines each by bisection. With no phase crossover
// the gain margin is +Inf and PhaseCrossover is NaN.
func ComputeMargins(l Loop) (Margins, error) {
	if err := l.validate(); err != nil {
		return Margins{}, err
	}

	grid := floats.LogSpan(make([]float64, searchPoints), searchLow, searchHigh)

	wc, ok := firstRoot(grid, func(w float64) float64 { return math.Log(l.Magnitude(w)) })
	if !ok {
		return Margins{}, ErrNoCrossover
	}

	pm := math.Pi + l.Phase(wc)
	m := Margins{
		GainCrossover:  wc,
		PhaseMargin:    pm * 180 / math.Pi,
		DelayMargin:    pm / wc,
		PhaseCrossover: math.NaN(),
		GainMargin:     math.Inf(1),
	}

	if wpc, ok := firstRoot(grid, func(w float64) float64 { return l.Phase(w) + math.Pi }); ok {
		m.PhaseCrossover = wpc
		m.GainMargin = -20 * math.Log10(l.Magnitude(wpc))
	}

	return m, nil
}

func firstRoot(grid []float64, f func(float64) float64) (float64, bool) {
	prev := f(grid[0])
	for i := 1; i < len(grid); i++ {
		cur := f(grid[i])
		if prev == 0 {
			return grid[i-1], true
		}
		if math.Signbit(prev) != math.Signbit(cur) {
			return bisect(f, grid[i-1], grid[i], prev), true
		}
		prev = cur
	}
	return 0, false
}

func bisect(f func(float64) float64, lo, hi, flo float64) float64 {
	for i := 0; i < bisectIters; i++ {
		mid := (lo + hi) / 2
		fm := f(mid)
		if fm == 0 {
			return mid
		}
		if math.Signbit(fm) == math.Signbit(flo) {
			lo, flo = mid, fm
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}
