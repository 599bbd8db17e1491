package analysis

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/leadsim/internal/sim"
	"gonum.org/v1/gonum/floats"
)

var (
	ErrTooShort = errors.New("analysis: need at least two records")
	ErrBadBand  = errors.New("analysis: settling band must be finite and non-negative")
)

// StepInfo summarizes a step response. Times are in seconds of simulated
// time, Overshoot in percent of the final value.
type StepInfo struct {
	RiseTime         float64 `json:"rise_time"`
	PeakTime         float64 `json:"peak_time"`
	Peak             float64 `json:"peak"`
	Overshoot        float64 `json:"overshoot"`
	SettlingTime     float64 `json:"settling_time"`
	Final            float64 `json:"final"`
	SteadyStateError float64 `json:"steady_state_error"`
}

// StepResponse measures the position trace of recs. The last position is
// taken as the final value; band is the relative settling tolerance (0.02
// for the usual 2 % criterion).
func StepResponse(recs []sim.Record, band float64) (StepInfo, error) {
	if len(recs) < 2 {
		return StepInfo{}, ErrTooShort
	}
	if band < 0 || math.IsNaN(band) || math.IsInf(band, 0) {
		return StepInfo{}, fmt.Errorf("%w: got %g", ErrBadBand, band)
	}

	times := make([]float64, len(recs))
	pos := make([]float64, len(recs))
	for i, r := range recs {
		times[i] = float64(r.Time)
		pos[i] = float64(r.Position)
	}

	last := recs[len(recs)-1]
	final := pos[len(pos)-1]
	start := pos[0]

	info := StepInfo{
		Final:            final,
		SteadyStateError: float64(last.Setpoint) - final,
	}

	peakIdx := floats.MaxIdx(pos)
	if final < start {
		peakIdx = floats.MinIdx(pos)
	}
	info.Peak = pos[peakIdx]
	info.PeakTime = times[peakIdx]
	if final != 0 {
		info.Overshoot = math.Max(0, (info.Peak-final)/final*100)
	}

	span := final - start
	t10 := crossing(times, pos, start+0.1*span, span > 0)
	t90 := crossing(times, pos, start+0.9*span, span > 0)
	info.RiseTime = t90 - t10

	info.SettlingTime = settling(times, pos, final, band*math.Abs(final))

	return info, nil
}

// crossing returns the first time pos reaches level, interpolating between
// samples. NaN if it never does.
func crossing(times, pos []float64, level float64, rising bool) float64 {
	reached := func(v float64) bool {
		if rising {
			return v >= level
		}
		return v <= level
	}
	for i := range pos {
		if !reached(pos[i]) {
			continue
		}
		if i == 0 {
			return times[0]
		}
		frac := (level - pos[i-1]) / (pos[i] - pos[i-1])
		return times[i-1] + frac*(times[i]-times[i-1])
	}
	return math.NaN()
}

// settling returns the first time after which pos stays within tol of
// final.
func settling(times, pos []float64, final, tol float64) float64 {
	for i := len(pos) - 1; i >= 0; i-- {
		if math.Abs(pos[i]-final) > tol {
			return times[i+1]
		}
	}
	return times[0]
}
