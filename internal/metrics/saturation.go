package metrics

import "github.com/san-kum/leadsim/internal/sim"

// Saturation is the fraction of ticks whose command sat on an output bound.
type Saturation struct {
	name     string
	min, max float32
	hits     int
	samples  int
}

func NewSaturation(min, max float32) *Saturation {
	return &Saturation{
		name: "saturation",
		min:  min,
		max:  max,
	}
}

func (s *Saturation) Name() string { return s.name }

func (s *Saturation) Observe(rec sim.Record) {
	s.samples++
	if rec.Command >= s.max || rec.Command <= s.min {
		s.hits++
	}
}

func (s *Saturation) Value() float64 {
	if s.samples == 0 {
		return 0
	}
	return float64(s.hits) / float64(s.samples)
}

func (s *Saturation) Reset() {
	s.hits = 0
	s.samples = 0
}
