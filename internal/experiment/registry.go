package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/leadsim/internal/config"
	"github.com/san-kum/leadsim/internal/control"
	"github.com/san-kum/leadsim/internal/metrics"
	"github.com/san-kum/leadsim/internal/plant"
	"github.com/san-kum/leadsim/internal/sim"
)

// StabilityBound is the position magnitude beyond which a tick counts as
// unstable.
const StabilityBound = 10.0

type Registry struct {
	controllers map[string]func(*config.Config) (sim.Controller, error)
}

func NewRegistry() *Registry {
	r := &Registry{
		controllers: make(map[string]func(*config.Config) (sim.Controller, error)),
	}

	r.controllers["lead"] = func(cfg *config.Config) (sim.Controller, error) {
		return control.NewLeadCompensator(cfg.LeadParams())
	}
	r.controllers["pid"] = func(cfg *config.Config) (sim.Controller, error) {
		return control.NewPID(cfg.PIDParams())
	}

	return r
}

func (r *Registry) GetController(cfg *config.Config) (sim.Controller, error) {
	fn, ok := r.controllers[cfg.Controller]
	if !ok {
		return nil, fmt.Errorf("unknown controller: %s", cfg.Controller)
	}
	return fn(cfg)
}

func (r *Registry) GetPlant(cfg *config.Config) (*plant.MassDamper, error) {
	return plant.NewMassDamper(cfg.PlantParams())
}

func (r *Registry) ListControllers() []string {
	names := make([]string, 0, len(r.controllers))
	for name := range r.controllers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) DefaultMetrics(cfg *config.Config) []sim.Metric {
	return []sim.Metric{
		metrics.NewControlEffort(),
		metrics.NewIAE(cfg.Simulation.Dt),
		metrics.NewStability(StabilityBound),
		metrics.NewSaturation(float32(cfg.Compensator.Min), float32(cfg.Compensator.Max)),
	}
}
