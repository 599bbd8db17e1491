package config

import "sort"

// Presets build named variations of the reference loop. Each call returns a
// fresh Config.
var Presets = map[string]func() *Config{
	"reference": DefaultConfig,
	"tight_rate": func() *Config {
		cfg := DefaultConfig()
		cfg.Compensator.MaxRate = 20
		return cfg
	},
	"heavy": func() *Config {
		cfg := DefaultConfig()
		cfg.Plant.Mass = 40
		cfg.Simulation.Steps = 400
		return cfg
	},
	"disturbed": func() *Config {
		cfg := DefaultConfig()
		cfg.Simulation.Steps = 400
		cfg.Simulation.Disturbance = DisturbanceConfig{Force: 2, Start: 20}
		return cfg
	},
	"pid": func() *Config {
		cfg := DefaultConfig()
		cfg.Controller = "pid"
		return cfg
	},
}

func GetPreset(name string) *Config {
	fn, ok := Presets[name]
	if !ok {
		return nil
	}
	return fn()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
