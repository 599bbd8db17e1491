package experiment

import (
	"context"

	"github.com/san-kum/leadsim/internal/config"
	"github.com/san-kum/leadsim/internal/plant"
	"github.com/san-kum/leadsim/internal/sim"
	"github.com/san-kum/leadsim/internal/tracefile"
)

// Experiment is one configured closed loop, ready to run once. Later runs
// return sim.ErrAlreadyRun.
type Experiment struct {
	cfg        *config.Config
	controller sim.Controller
	plant      *plant.MassDamper
	driver     *sim.Driver
}

// New validates cfg and builds the controller, plant and driver it names.
// cfg is copied; later changes to it do not affect the experiment.
func New(cfg *config.Config) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.Clone()

	reg := NewRegistry()
	ctrl, err := reg.GetController(cfg)
	if err != nil {
		return nil, err
	}
	md, err := reg.GetPlant(cfg)
	if err != nil {
		return nil, err
	}
	driver, err := sim.New(ctrl, md)
	if err != nil {
		return nil, err
	}
	for _, m := range reg.DefaultMetrics(cfg) {
		driver.AddMetric(m)
	}

	return &Experiment{
		cfg:        cfg,
		controller: ctrl,
		plant:      md,
		driver:     driver,
	}, nil
}

func (e *Experiment) Config() *config.Config { return e.cfg }

func (e *Experiment) Run(ctx context.Context, sink sim.Sink) (*sim.Result, error) {
	return e.driver.Run(ctx, e.cfg.SimConfig(), sink)
}

// RunFile writes the trace to path, truncating it, and tees every record to
// the extra sinks ahead of the file, so an aborted run leaves exactly the
// completed ticks in the trace. The file is flushed and closed on every path.
func (e *Experiment) RunFile(ctx context.Context, path string, extra ...sim.Sink) (res *sim.Result, err error) {
	if e.driver.Done() {
		return nil, sim.ErrAlreadyRun
	}
	w, err := tracefile.Create(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	sinks := append(append([]sim.Sink{}, extra...), w)
	return e.Run(ctx, sim.Tee(sinks...))
}
