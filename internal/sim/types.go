package sim

// Record is one tick of a closed-loop run.
type Record struct {
	Time     float32
	Command  float32
	Position float32
	Setpoint float32
}

// Controller maps a measurement and setpoint to an actuator command.
type Controller interface {
	Step(measurement, setpoint float32) float32
}

// Plant integrates one time step under a commanded force and an external
// disturbance, returning the new position.
type Plant interface {
	Step(force, disturbance float32) float32
	Position() float32
}

// Sink receives records in tick order.
type Sink interface {
	Write(rec Record) error
}

type Metric interface {
	Name() string
	Observe(rec Record)
	Value() float64
	Reset()
}

// Disturbance is a step disturbance force applied from Start onwards.
type Disturbance struct {
	Force float32
	Start float64
}

func (d Disturbance) At(t float64) float32 {
	if t < d.Start {
		return 0
	}
	return d.Force
}

type Config struct {
	Dt          float64
	Steps       int
	Setpoint    float32
	Disturbance Disturbance
}

type Result struct {
	Steps   int
	Final   Record
	Metrics map[string]float64
}
