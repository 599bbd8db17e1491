// Package storage keeps saved runs under a base directory, one
// subdirectory per run holding metadata.json and the trace file.
package storage

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/san-kum/leadsim/internal/analysis"
	"github.com/san-kum/leadsim/internal/config"
	"github.com/san-kum/leadsim/internal/monitoring"
	"github.com/san-kum/leadsim/internal/sim"
	"github.com/san-kum/leadsim/internal/tracefile"
)

const (
	DefaultDir   = "runs"
	metadataFile = "metadata.json"
	traceFile    = "data.txt"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID         string             `json:"id"`
	Controller string             `json:"controller"`
	Timestamp  time.Time          `json:"timestamp"`
	Steps      int                `json:"steps"`
	Config     *config.Config     `json:"config"`
	Metrics    map[string]float64 `json:"metrics"`
	Step       *analysis.StepInfo `json:"step_response,omitempty"`
}

// Save writes a run and returns its ID. Non-finite metrics and step figures
// cannot be represented in JSON and are left out.
func (s *Store) Save(cfg *config.Config, result *sim.Result, step *analysis.StepInfo, recs []sim.Record) (string, error) {
	runID := fmt.Sprintf("%s_%s", cfg.Controller, uuid.NewString()[:8])
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:         runID,
		Controller: cfg.Controller,
		Timestamp:  time.Now(),
		Steps:      result.Steps,
		Config:     cfg,
		Metrics:    make(map[string]float64, len(result.Metrics)),
	}
	for name, v := range result.Metrics {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			monitoring.Logf("storage: %s: dropping non-finite metric %s", runID, name)
			continue
		}
		meta.Metrics[name] = v
	}
	if step != nil {
		if finiteStep(*step) {
			meta.Step = step
		} else {
			monitoring.Logf("storage: %s: dropping non-finite step response", runID)
		}
	}

	if err := writeMetadata(filepath.Join(runDir, metadataFile), &meta); err != nil {
		return "", err
	}
	if err := writeTrace(filepath.Join(runDir, traceFile), recs); err != nil {
		return "", err
	}

	return runID, nil
}

func writeMetadata(path string, meta *RunMetadata) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return err
	}
	return f.Close()
}

func writeTrace(path string, recs []sim.Record) error {
	w, err := tracefile.Create(path)
	if err != nil {
		return err
	}
	for _, r := range recs {
		if err := w.Write(r); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

func finiteStep(s analysis.StepInfo) bool {
	for _, v := range []float64{s.RiseTime, s.PeakTime, s.Peak, s.Overshoot, s.SettlingTime, s.Final, s.SteadyStateError} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// List returns every readable run, oldest first. Unreadable runs are
// logged and skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			monitoring.Logf("storage: skipping %s: %v", entry.Name(), err)
			continue
		}

		runs = append(runs, *meta)
	}

	sort.SliceStable(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("storage: %s: %w", runID, err)
	}

	return &meta, nil
}

func (s *Store) LoadRecords(runID string) ([]sim.Record, error) {
	return tracefile.ReadFile(s.TracePath(runID))
}

func (s *Store) TracePath(runID string) string {
	return filepath.Join(s.baseDir, runID, traceFile)
}
