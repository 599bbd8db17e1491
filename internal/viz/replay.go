package viz

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/leadsim/internal/sim"
)

const (
	canvasWidth  = 60
	canvasHeight = 6
	graphWidth   = 60
	graphHeight  = 8
	maxStride    = 64
)

type TickMsg time.Time

// Model replays a fixed record sequence. The cursor is the index of the
// newest record on screen.
type Model struct {
	title     string
	records   []sim.Record
	metrics   map[string]float64
	cursor    int
	stride    int
	frameRate int
	running   bool
	showHelp  bool
	theme     int
	canvas    *Canvas
	lo, hi    float64
}

// NewModel replays recs at frameRate frames per second, one record per
// frame at normal speed.
func NewModel(title string, recs []sim.Record, metrics map[string]float64, frameRate int) Model {
	if frameRate <= 0 {
		frameRate = 30
	}
	lo, hi := positionSpan(recs)
	return Model{
		title:     title,
		records:   recs,
		metrics:   metrics,
		stride:    1,
		frameRate: frameRate,
		running:   len(recs) > 1,
		canvas:    NewCanvas(canvasWidth, canvasHeight),
		lo:        lo,
		hi:        hi,
	}
}

// SetTheme selects a theme by name.
func (m Model) SetTheme(name string) Model {
	m.theme = ThemeIndex(name)
	return m
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(m.frameRate), func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

// Update handles keys and advances the replay on each tick.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "r":
			m.cursor = 0
			m.running = true
		case "[":
			m.seek(-m.frameRate)
		case "]":
			m.seek(m.frameRate)
		case "+", "=":
			if m.stride < maxStride {
				m.stride *= 2
			}
		case "-", "_":
			if m.stride > 1 {
				m.stride /= 2
			}
		case "t":
			m.theme = (m.theme + 1) % len(Themes)
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		if m.running {
			m.seek(m.stride)
			if m.cursor >= len(m.records)-1 {
				m.running = false
			}
		}
		return m, m.tick()
	}
	return m, nil
}

func (m *Model) seek(delta int) {
	m.cursor += delta
	if m.cursor > len(m.records)-1 {
		m.cursor = len(m.records) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// Cursor is the index of the newest record shown.
func (m Model) Cursor() int { return m.cursor }

func (m Model) Running() bool { return m.running }

// View renders the rail, the charts and the readouts.
func (m Model) View() string {
	st := newStyles(Themes[m.theme])
	var s strings.Builder

	s.WriteString(st.header.Render(strings.ToUpper(m.title)) + "\n")
	if len(m.records) == 0 {
		s.WriteString(st.warn.Render("no records") + "\n")
		return s.String()
	}

	cur := m.records[m.cursor]
	status := "PLAYING"
	switch {
	case m.cursor >= len(m.records)-1:
		status = "DONE"
	case !m.running:
		status = "PAUSED"
	}
	s.WriteString(fmt.Sprintf("%s  x%d\n\n", status, m.stride))

	m.drawRail(cur)
	s.WriteString(st.canvas.Render(m.canvas.String()) + "\n")

	shown := m.records[:m.cursor+1]
	if len(shown) > 1 {
		pos := make([]float64, len(shown))
		ref := make([]float64, len(shown))
		cmd := make([]float64, len(shown))
		for i, r := range shown {
			pos[i] = float64(r.Position)
			ref[i] = float64(r.Setpoint)
			cmd[i] = float64(r.Command)
		}
		chart := asciigraph.PlotMany([][]float64{ref, pos},
			asciigraph.Height(graphHeight), asciigraph.Width(graphWidth), asciigraph.Caption("position vs setpoint"))
		s.WriteString(st.graph.Render(chart) + "\n")
		chart = asciigraph.Plot(cmd,
			asciigraph.Height(graphHeight/2), asciigraph.Width(graphWidth), asciigraph.Caption("command (N)"))
		s.WriteString(st.graph.Render(chart) + "\n")
	}

	row := func(label, value string) {
		s.WriteString(st.label.Render(label) + st.value.Render(value) + "\n")
	}
	row("Time", fmt.Sprintf("%.2f s", cur.Time))
	row("Command", fmt.Sprintf("%+.4f N", cur.Command))
	row("Position", fmt.Sprintf("%.4f", cur.Position))
	row("Error", fmt.Sprintf("%+.4f", cur.Setpoint-cur.Position))

	if m.cursor >= len(m.records)-1 && len(m.metrics) > 0 {
		s.WriteString("\n")
		names := make([]string, 0, len(m.metrics))
		for name := range m.metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			row(name, fmt.Sprintf("%.4f", m.metrics[name]))
		}
	}

	if m.showHelp {
		s.WriteString(st.help.Render("space pause  r restart  [ ] seek  + - speed  t theme  q quit") + "\n")
	} else {
		s.WriteString(st.help.Render("? help") + "\n")
	}

	return lipgloss.NewStyle().Padding(1, 2).Render(s.String())
}

// drawRail draws the wall, the spring, the mass at its position and the
// setpoint as a dashed marker.
func (m *Model) drawRail(cur sim.Record) {
	c := m.canvas
	c.Clear()

	w, h := c.Width*2, c.Height*4
	railY := h - 2
	massH := h / 2

	c.VLine(0, 0, h-1)
	c.HLine(0, w-1, railY+1)

	x := m.project(float64(cur.Position), w)
	sp := m.project(float64(cur.Setpoint), w)
	c.Dashed(sp, 0, railY)

	massW := 6
	left := x - massW/2
	c.Zigzag(1, left-1, railY-massH/2, 1)
	c.Fill(left, railY-massH, left+massW, railY)
}

// project maps a position onto the dot columns, leaving room for the wall
// and the mass.
func (m *Model) project(v float64, w int) int {
	margin := 8
	span := m.hi - m.lo
	if span <= 0 {
		span = 1
	}
	return margin + int(math.Round((v-m.lo)/span*float64(w-2*margin)))
}

func positionSpan(recs []sim.Record) (float64, float64) {
	lo, hi := 0.0, 0.0
	for _, r := range recs {
		lo = math.Min(lo, math.Min(float64(r.Position), float64(r.Setpoint)))
		hi = math.Max(hi, math.Max(float64(r.Position), float64(r.Setpoint)))
	}
	pad := (hi - lo) * 0.05
	return lo - pad, hi + pad
}

// Run replays recs full screen until the user quits.
func Run(title string, recs []sim.Record, metrics map[string]float64, frameRate int, theme string) error {
	p := tea.NewProgram(NewModel(title, recs, metrics, frameRate).SetTheme(theme), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
