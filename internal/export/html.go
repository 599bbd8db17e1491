package export

import (
	"io"
	"math"
	"os"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/san-kum/leadsim/internal/sim"
)

// RenderHTML writes a page with the position response and the command
// trace as two interactive line charts.
func RenderHTML(w io.Writer, title string, recs []sim.Record) error {
	if len(recs) < 2 {
		return ErrNoRecords
	}

	times := axisLabels(recs)
	position := make([]opts.LineData, len(recs))
	setpoint := make([]opts.LineData, len(recs))
	command := make([]opts.LineData, len(recs))
	for i, r := range recs {
		position[i] = opts.LineData{Value: r.Position}
		setpoint[i] = opts.LineData{Value: r.Setpoint}
		command[i] = opts.LineData{Value: r.Command}
	}

	response := newLineChart(title, "Position", "position response")
	response.SetXAxis(times).
		AddSeries("position", position).
		AddSeries("setpoint", setpoint)

	effort := newLineChart(title, "Command (N)", "actuator command")
	effort.SetXAxis(times).
		AddSeries("command", command)

	page := components.NewPage()
	page.PageTitle = title
	page.AddCharts(response, effort)
	return page.Render(w)
}

// axisLabels formats record times with enough decimals to tell adjacent
// ticks apart.
func axisLabels(recs []sim.Record) []string {
	prec := 1
	if step := float64(recs[1].Time) - float64(recs[0].Time); step > 0 {
		prec = int(math.Ceil(-math.Log10(step)))
		prec = max(1, min(prec, 6))
	}

	labels := make([]string, len(recs))
	for i, r := range recs {
		labels[i] = strconv.FormatFloat(float64(r.Time), 'f', prec, 64)
	}
	return labels
}

func WriteHTMLFile(path, title string, recs []sim.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := RenderHTML(f, title, recs); err != nil {
		return err
	}
	return f.Close()
}

func newLineChart(title, yname, subtitle string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: yname}),
	)
	return line
}
