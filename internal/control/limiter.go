package control

import (
	"fmt"
	"math"
)

// OutputLimiter clamps a command to [Min, Max] and then bounds its change
// against the previous limited output to MaxRate*T per step.
type OutputLimiter struct {
	Max     float32
	Min     float32
	MaxRate float32
	T       float32
	prev    float32
}

func NewOutputLimiter(max, min, maxRate, t float32) (*OutputLimiter, error) {
	l := &OutputLimiter{Max: max, Min: min, MaxRate: maxRate, T: t}
	if err := l.validate(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *OutputLimiter) validate() error {
	if err := checkFinite(param{"max", l.Max}, param{"min", l.Min}, param{"max_rate", l.MaxRate}, param{"T", l.T}); err != nil {
		return err
	}
	if l.Min > l.Max {
		return fmt.Errorf("%w: min %g exceeds max %g", ErrInvalidParams, l.Min, l.Max)
	}
	if l.MaxRate < 0 {
		return fmt.Errorf("%w: max_rate must be non-negative, got %g", ErrInvalidParams, l.MaxRate)
	}
	if l.T <= 0 {
		return fmt.Errorf("%w: T must be positive, got %g", ErrInvalidParams, l.T)
	}
	return nil
}

// Apply saturates cmd, then rate-limits the saturated value. The order
// matters near both limits and must not be merged into a single clamp.
func (l *OutputLimiter) Apply(cmd float32) float32 {
	sat := cmd
	if sat > l.Max {
		sat = l.Max
	} else if sat < l.Min {
		sat = l.Min
	}

	step := float32(l.MaxRate * l.T)
	if sat > l.prev+step {
		sat = l.prev + step
	} else if sat < l.prev-step {
		sat = l.prev - step
	}

	l.prev = sat
	return sat
}

// Last returns the most recent limited output.
func (l *OutputLimiter) Last() float32 { return l.prev }

type param struct {
	name  string
	value float32
}

func checkFinite(params ...param) error {
	for _, p := range params {
		f := float64(p.value)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidParams, p.name)
		}
	}
	return nil
}
