package control

import "fmt"

// LeadParams are the fixed parameters of a LeadCompensator.
type LeadParams struct {
	Kl      float32 // gain
	TauP    float32 // pole time constant
	TauZ    float32 // zero time constant
	T       float32 // time step
	Max     float32
	Min     float32
	MaxRate float32 // max output rate, units/s
}

// LeadCompensator is the backward-difference form of
// kl*(1+tau_z*s)/(1+tau_p*s) followed by an OutputLimiter.
type LeadCompensator struct {
	Kl   float32
	TauP float32
	TauZ float32
	T    float32

	errorPrev   float32
	commandPrev float32
	out         OutputLimiter
}

func NewLeadCompensator(p LeadParams) (*LeadCompensator, error) {
	if err := checkFinite(param{"kl", p.Kl}, param{"tau_p", p.TauP}, param{"tau_z", p.TauZ}); err != nil {
		return nil, err
	}
	if p.T+p.TauP == 0 {
		return nil, fmt.Errorf("%w: T + tau_p must be non-zero (T=%g, tau_p=%g)", ErrInvalidParams, p.T, p.TauP)
	}
	out, err := NewOutputLimiter(p.Max, p.Min, p.MaxRate, p.T)
	if err != nil {
		return nil, err
	}
	return &LeadCompensator{
		Kl:   p.Kl,
		TauP: p.TauP,
		TauZ: p.TauZ,
		T:    p.T,
		out:  *out,
	}, nil
}

// Step advances the filter by one sample and returns the saturated,
// rate-limited command.
func (c *LeadCompensator) Step(measurement, setpoint float32) float32 {
	e := setpoint - measurement

	// Products are rounded to float32 before each addition so they are
	// never fused into an FMA.
	prop := float32(c.T * e)
	lead := float32(c.TauZ * (e - c.errorPrev))
	hold := float32(c.TauP * c.commandPrev)
	command := (float32(c.Kl*(prop+lead)) + hold) / (c.T + c.TauP)

	// The recursion keeps the unsaturated command.
	c.errorPrev = e
	c.commandPrev = command

	return c.out.Apply(command)
}

// Last returns the command produced by the most recent Step.
func (c *LeadCompensator) Last() float32 { return c.out.Last() }

// GetParams returns the filter parameters for reporting.
func (c *LeadCompensator) GetParams() map[string]float64 {
	return map[string]float64{
		"kl":    float64(c.Kl),
		"tau_p": float64(c.TauP),
		"tau_z": float64(c.TauZ),
	}
}
