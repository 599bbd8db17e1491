package metrics

import (
	"math"

	"github.com/san-kum/leadsim/internal/sim"
)

// IAE integrates |setpoint - position| over simulated time with a
// rectangle rule at the tick period.
type IAE struct {
	name string
	dt   float64
	sum  float64
}

func NewIAE(dt float64) *IAE {
	return &IAE{
		name: "iae",
		dt:   dt,
	}
}

func (m *IAE) Name() string { return m.name }

func (m *IAE) Observe(rec sim.Record) {
	m.sum += math.Abs(float64(rec.Setpoint-rec.Position)) * m.dt
}

func (m *IAE) Value() float64 { return m.sum }

func (m *IAE) Reset() { m.sum = 0 }
