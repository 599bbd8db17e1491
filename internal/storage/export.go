package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/leadsim/internal/sim"
)

type ExportData struct {
	RunMetadata
	Times     []float32 `json:"times"`
	Commands  []float32 `json:"commands"`
	Positions []float32 `json:"positions"`
	Setpoints []float32 `json:"setpoints"`
}

func NewExportData(meta RunMetadata, recs []sim.Record) ExportData {
	data := ExportData{
		RunMetadata: meta,
		Times:       make([]float32, len(recs)),
		Commands:    make([]float32, len(recs)),
		Positions:   make([]float32, len(recs)),
		Setpoints:   make([]float32, len(recs)),
	}
	for i, r := range recs {
		data.Times[i] = r.Time
		data.Commands[i] = r.Command
		data.Positions[i] = r.Position
		data.Setpoints[i] = r.Setpoint
	}
	return data
}

// ExportJSON writes a saved run, metadata and trace columns, as indented
// JSON.
func (s *Store) ExportJSON(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	recs, err := s.LoadRecords(runID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewExportData(*meta, recs))
}

func (s *Store) ExportJSONFile(path, runID string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := s.ExportJSON(f, runID); err != nil {
		return err
	}
	return f.Close()
}
