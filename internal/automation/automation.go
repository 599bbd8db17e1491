// Package automation runs scripted batches of closed-loop experiments
// described in YAML.
package automation

import (
	"context"
	"fmt"
	"os"

	"github.com/san-kum/leadsim/internal/analysis"
	"github.com/san-kum/leadsim/internal/config"
	"github.com/san-kum/leadsim/internal/experiment"
	"github.com/san-kum/leadsim/internal/monitoring"
	"github.com/san-kum/leadsim/internal/sim"
	"gopkg.in/yaml.v3"
)

// Scenario is a named sequence of runs.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep starts from a preset (reference when empty) and overrides
// named parameters. Output, when set, receives the trace file.
type ScenarioStep struct {
	Name   string             `yaml:"name"`
	Preset string             `yaml:"preset"`
	Params map[string]float64 `yaml:"params"`
	Output string             `yaml:"output"`
}

type StepResult struct {
	Name     string
	Config   *config.Config
	Result   *sim.Result
	Response analysis.StepInfo
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("automation: parse %s: %w", path, err)
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("automation: %s: scenario has no steps", path)
	}

	return &scenario, nil
}

// Config builds the configuration of one step.
func (s ScenarioStep) Config() (*config.Config, error) {
	preset := s.Preset
	if preset == "" {
		preset = "reference"
	}
	cfg := config.GetPreset(preset)
	if cfg == nil {
		return nil, fmt.Errorf("unknown preset: %s", preset)
	}
	for name, v := range s.Params {
		if err := cfg.Set(name, v); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// RunScenario executes every step in order and stops at the first failure,
// returning the results completed so far.
func RunScenario(ctx context.Context, scenario *Scenario) ([]StepResult, error) {
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		name := step.Name
		if name == "" {
			name = fmt.Sprintf("step%d", i+1)
		}
		monitoring.Logf("automation: running step %d/%d: %s", i+1, len(scenario.Steps), name)

		cfg, err := step.Config()
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}

		exp, err := experiment.New(cfg)
		if err != nil {
			return results, fmt.Errorf("step %d setup: %w", i+1, err)
		}

		rec := sim.NewRecorder(cfg.Simulation.Steps)
		var result *sim.Result
		if step.Output != "" {
			result, err = exp.RunFile(ctx, step.Output, rec)
		} else {
			result, err = exp.Run(ctx, rec)
		}
		if err != nil {
			return results, fmt.Errorf("step %d run: %w", i+1, err)
		}

		info, err := analysis.StepResponse(rec.Records, 0.02)
		if err != nil {
			return results, fmt.Errorf("step %d analysis: %w", i+1, err)
		}

		results = append(results, StepResult{
			Name:     name,
			Config:   cfg,
			Result:   result,
			Response: info,
		})
	}

	return results, nil
}
