package sim

import (
	"context"
	"fmt"
	"math"
)

// Driver couples a controller and a plant in a unity-feedback loop. It owns
// both for the lifetime of a run and is not safe for concurrent use.
type Driver struct {
	controller Controller
	plant      Plant
	metrics    []Metric
	done       bool
}

func New(controller Controller, plant Plant) (*Driver, error) {
	if controller == nil || plant == nil {
		return nil, ErrNilComponent
	}
	return &Driver{
		controller: controller,
		plant:      plant,
		metrics:    make([]Metric, 0),
	}, nil
}

func (d *Driver) AddMetric(m Metric) { d.metrics = append(d.metrics, m) }

// Done reports whether Run has started ticking.
func (d *Driver) Done() bool { return d.done }

// Run executes exactly cfg.Steps ticks, writing one record per tick to sink.
// The first tick measures the plant's initial position. A sink error or a
// cancelled ctx ends the run early with a *SimulationError. A driver runs
// once; later calls return ErrAlreadyRun, even after an aborted run.
func (d *Driver) Run(ctx context.Context, cfg Config, sink Sink) (*Result, error) {
	if d.done {
		return nil, ErrAlreadyRun
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	d.done = true

	result := &Result{Metrics: make(map[string]float64)}

	for _, m := range d.metrics {
		m.Reset()
	}

	var t float32
	position := d.plant.Position()

	for i := 0; i < cfg.Steps; i++ {
		select {
		case <-ctx.Done():
			return result, &SimulationError{Step: i, Time: t, Wrapped: ctx.Err()}
		default:
		}

		command := d.controller.Step(position, cfg.Setpoint)
		position = d.plant.Step(command, cfg.Disturbance.At(float64(t)))

		rec := Record{Time: t, Command: command, Position: position, Setpoint: cfg.Setpoint}
		if err := sink.Write(rec); err != nil {
			return result, &SimulationError{Step: i, Time: t, Wrapped: err}
		}
		for _, m := range d.metrics {
			m.Observe(rec)
		}

		result.Steps++
		result.Final = rec

		// Time is kept in single precision but advanced in double,
		// matching the reference trace.
		t = float32(float64(t) + cfg.Dt)
	}

	for _, m := range d.metrics {
		result.Metrics[m.Name()] = m.Value()
	}

	return result, nil
}

func validateConfig(cfg Config) error {
	if cfg.Dt <= 0 || math.IsNaN(cfg.Dt) || math.IsInf(cfg.Dt, 0) {
		return fmt.Errorf("%w: dt must be positive, got %f", ErrInvalidConfig, cfg.Dt)
	}
	if cfg.Steps <= 0 {
		return fmt.Errorf("%w: steps must be positive, got %d", ErrInvalidConfig, cfg.Steps)
	}
	if sp := float64(cfg.Setpoint); math.IsNaN(sp) || math.IsInf(sp, 0) {
		return fmt.Errorf("%w: setpoint must be finite", ErrInvalidConfig)
	}
	return nil
}
