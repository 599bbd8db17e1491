// Package tracefile reads and writes the plain-text run trace: one line per
// tick with time, command, position and setpoint as space separated %f
// fields, no header.
package tracefile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/san-kum/leadsim/internal/sim"
)

const DefaultPath = "data.txt"

// Writer is a sim.Sink backed by a buffered writer.
type Writer struct {
	w      *bufio.Writer
	closer io.Closer
}

// Create truncates or creates path for writing.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("tracefile: cannot open %s: %w", path, err)
	}
	return &Writer{w: bufio.NewWriter(f), closer: f}, nil
}

// NewWriter wraps w. Close flushes but does not close w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

func (tw *Writer) Write(rec sim.Record) error {
	_, err := fmt.Fprintf(tw.w, "%f %f %f %f\n",
		float64(rec.Time), float64(rec.Command), float64(rec.Position), float64(rec.Setpoint))
	return err
}

// Close flushes buffered records and releases the file, if any.
func (tw *Writer) Close() error {
	err := tw.w.Flush()
	if tw.closer != nil {
		if cerr := tw.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Read parses every record in r. Blank lines are skipped.
func Read(r io.Reader) ([]sim.Record, error) {
	records := make([]sim.Record, 0)
	scanner := bufio.NewScanner(r)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		fields := strings.Fields(text)
		if len(fields) != 4 {
			return nil, fmt.Errorf("tracefile: line %d: expected 4 fields, got %d", line, len(fields))
		}

		var vals [4]float32
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 32)
			if err != nil {
				return nil, fmt.Errorf("tracefile: line %d: %w", line, err)
			}
			vals[i] = float32(v)
		}

		records = append(records, sim.Record{Time: vals[0], Command: vals[1], Position: vals[2], Setpoint: vals[3]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("tracefile: %w", err)
	}

	return records, nil
}

func ReadFile(path string) ([]sim.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("tracefile: cannot open %s: %w", path, err)
	}
	defer f.Close()

	return Read(f)
}
