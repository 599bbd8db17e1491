package export

import (
	"errors"
	"fmt"
	"image/color"
	"path/filepath"
	"strings"

	"github.com/san-kum/leadsim/internal/sim"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var ErrNoRecords = errors.New("export: nothing to plot")

var (
	positionColor = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	setpointColor = color.RGBA{R: 0x7f, G: 0x7f, B: 0x7f, A: 0xff}
	commandColor  = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}
)

const (
	plotWidth  = 10 * vg.Inch
	plotHeight = 5 * vg.Inch
)

// SavePlot writes the position response and setpoint to path. The format
// follows the extension: .png, .svg, .pdf or .jpg.
func SavePlot(path, title string, recs []sim.Record) error {
	p, err := newPlot(title, "Position", recs)
	if err != nil {
		return err
	}
	if err := addLine(p, "position", recs, positionColor, func(r sim.Record) float32 { return r.Position }); err != nil {
		return err
	}
	if err := addLine(p, "setpoint", recs, setpointColor, func(r sim.Record) float32 { return r.Setpoint }); err != nil {
		return err
	}
	return save(p, path)
}

// SaveCommandPlot writes the actuator command to path.
func SaveCommandPlot(path, title string, recs []sim.Record) error {
	p, err := newPlot(title, "Command (N)", recs)
	if err != nil {
		return err
	}
	if err := addLine(p, "command", recs, commandColor, func(r sim.Record) float32 { return r.Command }); err != nil {
		return err
	}
	return save(p, path)
}

// CommandPath derives the command plot's file name from the response
// plot's: out.png becomes out_command.png.
func CommandPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_command" + ext
}

func newPlot(title, ylabel string, recs []sim.Record) (*plot.Plot, error) {
	if len(recs) < 2 {
		return nil, ErrNoRecords
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = ylabel
	p.Add(plotter.NewGrid())

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

func addLine(p *plot.Plot, name string, recs []sim.Record, c color.Color, field func(sim.Record) float32) error {
	pts := make(plotter.XYs, len(recs))
	for i, r := range recs {
		pts[i] = plotter.XY{X: float64(r.Time), Y: float64(field(r))}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("export: %s: %w", name, err)
	}
	line.Color = c
	line.Width = vg.Points(1.5)
	p.Add(line)
	p.Legend.Add(name, line)
	return nil
}

func save(p *plot.Plot, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".svg", ".pdf", ".jpg", ".jpeg":
	default:
		return fmt.Errorf("export: unsupported image format %q", filepath.Ext(path))
	}
	if err := p.Save(plotWidth, plotHeight, path); err != nil {
		return fmt.Errorf("export: save %s: %w", path, err)
	}
	return nil
}
