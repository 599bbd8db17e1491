package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/san-kum/leadsim/internal/control"
	"github.com/san-kum/leadsim/internal/plant"
	"github.com/san-kum/leadsim/internal/sim"
	"gopkg.in/yaml.v3"
)

const (
	DefaultKl       = 0.4
	DefaultTauP     = 1.0
	DefaultTauZ     = 18.0
	DefaultLimit    = 10.0
	DefaultMaxRate  = 100.0
	DefaultDt       = 0.1
	DefaultSteps    = 200
	DefaultSetpoint = 1.0
	DefaultOutput   = "data.txt"
)

var ErrInvalid = errors.New("config: invalid value")

type Config struct {
	Controller  string            `yaml:"controller" json:"controller"`
	Compensator CompensatorConfig `yaml:"compensator" json:"compensator"`
	PID         PIDConfig         `yaml:"pid" json:"pid"`
	Plant       PlantConfig       `yaml:"plant" json:"plant"`
	Simulation  SimulationConfig  `yaml:"simulation" json:"simulation"`
	Output      string            `yaml:"output" json:"output"`
}

// CompensatorConfig holds the lead filter and the output stage. The output
// limits also apply when the PID controller is selected.
type CompensatorConfig struct {
	Kl      float64 `yaml:"kl" json:"kl"`
	TauP    float64 `yaml:"tau_p" json:"tau_p"`
	TauZ    float64 `yaml:"tau_z" json:"tau_z"`
	Max     float64 `yaml:"max" json:"max"`
	Min     float64 `yaml:"min" json:"min"`
	MaxRate float64 `yaml:"max_rate" json:"max_rate"`
}

type PIDConfig struct {
	Kp float64 `yaml:"kp" json:"kp"`
	Ki float64 `yaml:"ki" json:"ki"`
	Kd float64 `yaml:"kd" json:"kd"`
}

type PlantConfig struct {
	Mass    float64 `yaml:"mass" json:"mass"`
	Damping float64 `yaml:"damping" json:"damping"`
	FMax    float64 `yaml:"f_max" json:"f_max"`
	FMin    float64 `yaml:"f_min" json:"f_min"`
}

type SimulationConfig struct {
	Dt          float64           `yaml:"dt" json:"dt"`
	Steps       int               `yaml:"steps" json:"steps"`
	Setpoint    float64           `yaml:"setpoint" json:"setpoint"`
	Disturbance DisturbanceConfig `yaml:"disturbance" json:"disturbance"`
}

type DisturbanceConfig struct {
	Force float64 `yaml:"force" json:"force"`
	Start float64 `yaml:"start" json:"start"`
}

// DefaultConfig returns the reference loop: lead compensator on a 10 kg
// mass-damper, 200 ticks of 0.1 s toward a unit setpoint.
func DefaultConfig() *Config {
	return &Config{
		Controller: "lead",
		Compensator: CompensatorConfig{
			Kl:      DefaultKl,
			TauP:    DefaultTauP,
			TauZ:    DefaultTauZ,
			Max:     DefaultLimit,
			Min:     -DefaultLimit,
			MaxRate: DefaultMaxRate,
		},
		PID: PIDConfig{Kp: 4, Ki: 0.2, Kd: 6},
		Plant: PlantConfig{
			Mass:    plant.DefaultMass,
			Damping: plant.DefaultDamping,
			FMax:    plant.DefaultForce,
			FMin:    -plant.DefaultForce,
		},
		Simulation: SimulationConfig{
			Dt:       DefaultDt,
			Steps:    DefaultSteps,
			Setpoint: DefaultSetpoint,
		},
		Output: DefaultOutput,
	}
}

// Load reads a YAML file over the defaults, so partial files are valid.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate reports every parameter that would make a component
// ill-defined. Components validate again on construction.
func (c *Config) Validate() error {
	var errs []error
	bad := func(field, format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf("%w: %s: %s", ErrInvalid, field, fmt.Sprintf(format, args...)))
	}

	for field, v := range c.numericFields() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			bad(field, "must be finite")
		}
	}

	switch c.Controller {
	case "lead", "pid":
	default:
		bad("controller", "unknown controller %q (want lead or pid)", c.Controller)
	}

	comp := c.Compensator
	if c.Simulation.Dt+comp.TauP == 0 {
		bad("compensator.tau_p", "dt + tau_p must be non-zero")
	}
	if comp.Min > comp.Max {
		bad("compensator.min", "%g exceeds max %g", comp.Min, comp.Max)
	}
	if comp.MaxRate < 0 {
		bad("compensator.max_rate", "must be non-negative, got %g", comp.MaxRate)
	}

	if c.Plant.Mass == 0 {
		bad("plant.mass", "must be non-zero")
	}
	if c.Plant.FMin > c.Plant.FMax {
		bad("plant.f_min", "%g exceeds f_max %g", c.Plant.FMin, c.Plant.FMax)
	}

	if c.Simulation.Dt <= 0 {
		bad("simulation.dt", "must be positive, got %g", c.Simulation.Dt)
	}
	if c.Simulation.Steps <= 0 {
		bad("simulation.steps", "must be positive, got %d", c.Simulation.Steps)
	}

	// Map iteration order is random; keep messages stable.
	sort.Slice(errs, func(i, j int) bool { return errs[i].Error() < errs[j].Error() })
	return errors.Join(errs...)
}

func (c *Config) numericFields() map[string]float64 {
	return map[string]float64{
		"compensator.kl":               c.Compensator.Kl,
		"compensator.tau_p":            c.Compensator.TauP,
		"compensator.tau_z":            c.Compensator.TauZ,
		"compensator.max":              c.Compensator.Max,
		"compensator.min":              c.Compensator.Min,
		"compensator.max_rate":         c.Compensator.MaxRate,
		"pid.kp":                       c.PID.Kp,
		"pid.ki":                       c.PID.Ki,
		"pid.kd":                       c.PID.Kd,
		"plant.mass":                   c.Plant.Mass,
		"plant.damping":                c.Plant.Damping,
		"plant.f_max":                  c.Plant.FMax,
		"plant.f_min":                  c.Plant.FMin,
		"simulation.dt":                c.Simulation.Dt,
		"simulation.setpoint":          c.Simulation.Setpoint,
		"simulation.disturbance.force": c.Simulation.Disturbance.Force,
		"simulation.disturbance.start": c.Simulation.Disturbance.Start,
	}
}

// Set assigns a named tunable, as used by sweeps and CLI overrides.
func (c *Config) Set(name string, value float64) error {
	switch name {
	case "kl":
		c.Compensator.Kl = value
	case "tau_p":
		c.Compensator.TauP = value
	case "tau_z":
		c.Compensator.TauZ = value
	case "max":
		c.Compensator.Max = value
	case "min":
		c.Compensator.Min = value
	case "max_rate":
		c.Compensator.MaxRate = value
	case "kp":
		c.PID.Kp = value
	case "ki":
		c.PID.Ki = value
	case "kd":
		c.PID.Kd = value
	case "mass":
		c.Plant.Mass = value
	case "damping":
		c.Plant.Damping = value
	case "f_max":
		c.Plant.FMax = value
	case "f_min":
		c.Plant.FMin = value
	case "dt":
		c.Simulation.Dt = value
	case "steps":
		c.Simulation.Steps = int(value)
	case "setpoint":
		c.Simulation.Setpoint = value
	case "disturbance":
		c.Simulation.Disturbance.Force = value
	default:
		return fmt.Errorf("config: unknown parameter %q", name)
	}
	return nil
}

// Clone returns an independent copy.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

func (c *Config) Duration() float64 {
	return c.Simulation.Dt * float64(c.Simulation.Steps)
}

func (c *Config) LeadParams() control.LeadParams {
	comp := c.Compensator
	return control.LeadParams{
		Kl:      float32(comp.Kl),
		TauP:    float32(comp.TauP),
		TauZ:    float32(comp.TauZ),
		T:       float32(c.Simulation.Dt),
		Max:     float32(comp.Max),
		Min:     float32(comp.Min),
		MaxRate: float32(comp.MaxRate),
	}
}

func (c *Config) PIDParams() control.PIDParams {
	comp := c.Compensator
	return control.PIDParams{
		Kp:      float32(c.PID.Kp),
		Ki:      float32(c.PID.Ki),
		Kd:      float32(c.PID.Kd),
		T:       float32(c.Simulation.Dt),
		Max:     float32(comp.Max),
		Min:     float32(comp.Min),
		MaxRate: float32(comp.MaxRate),
	}
}

func (c *Config) PlantParams() plant.Params {
	return plant.Params{
		M:    float32(c.Plant.Mass),
		K:    float32(c.Plant.Damping),
		FMax: float32(c.Plant.FMax),
		FMin: float32(c.Plant.FMin),
		T:    float32(c.Simulation.Dt),
	}
}

func (c *Config) SimConfig() sim.Config {
	return sim.Config{
		Dt:       c.Simulation.Dt,
		Steps:    c.Simulation.Steps,
		Setpoint: float32(c.Simulation.Setpoint),
		Disturbance: sim.Disturbance{
			Force: float32(c.Simulation.Disturbance.Force),
			Start: c.Simulation.Disturbance.Start,
		},
	}
}
