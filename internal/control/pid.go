package control

// PIDParams are the fixed parameters of a PID controller.
type PIDParams struct {
	Kp      float32
	Ki      float32
	Kd      float32
	T       float32
	Max     float32
	Min     float32
	MaxRate float32
}

// PID is a fixed-step PID controller with the same output stage as the
// lead compensator. The derivative acts on the error; the first sample
// uses a zero previous error.
type PID struct {
	Kp       float32
	Ki       float32
	Kd       float32
	T        float32
	integral float32
	prevErr  float32
	out      OutputLimiter
}

func NewPID(p PIDParams) (*PID, error) {
	if err := checkFinite(param{"kp", p.Kp}, param{"ki", p.Ki}, param{"kd", p.Kd}); err != nil {
		return nil, err
	}
	out, err := NewOutputLimiter(p.Max, p.Min, p.MaxRate, p.T)
	if err != nil {
		return nil, err
	}
	return &PID{
		Kp:  p.Kp,
		Ki:  p.Ki,
		Kd:  p.Kd,
		T:   p.T,
		out: *out,
	}, nil
}

func (p *PID) Step(measurement, setpoint float32) float32 {
	err := setpoint - measurement

	p.integral += float32(err * p.T)
	derivative := (err - p.prevErr) / p.T
	p.prevErr = err

	u := float32(p.Kp*err) + float32(p.Ki*p.integral) + float32(p.Kd*derivative)
	return p.out.Apply(u)
}

// Last returns the command produced by the most recent Step.
func (p *PID) Last() float32 { return p.out.Last() }

// GetParams returns the gains for reporting.
func (p *PID) GetParams() map[string]float64 {
	return map[string]float64{
		"kp": float64(p.Kp),
		"ki": float64(p.Ki),
		"kd": float64(p.Kd),
	}
}
