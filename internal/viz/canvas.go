package viz

import "strings"

const brailleBlank = 0x2800

// Braille cell dot bits, indexed [row][col] within a 2x4 cell.
var dotBits = [4][2]rune{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

// Canvas is a grid of Braille cells addressed in dots: Width*2 by Height*4.
type Canvas struct {
	Width, Height int
	cells         [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{Width: w, Height: h, cells: make([][]rune, h)}
	for i := range c.cells {
		c.cells[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

func (c *Canvas) Clear() {
	for _, row := range c.cells {
		for j := range row {
			row[j] = brailleBlank
		}
	}
}

// Set lights the dot at (x, y). Dots outside the canvas are ignored.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 || x >= c.Width*2 || y >= c.Height*4 {
		return
	}
	c.cells[y/4][x/2] |= dotBits[y%4][x%2]
}

func (c *Canvas) HLine(x0, x1, y int) {
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	for x := x0; x <= x1; x++ {
		c.Set(x, y)
	}
}

func (c *Canvas) VLine(x, y0, y1 int) {
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	for y := y0; y <= y1; y++ {
		c.Set(x, y)
	}
}

// Dashed draws every other dot of a vertical line.
func (c *Canvas) Dashed(x, y0, y1 int) {
	for y := y0; y <= y1; y += 2 {
		c.Set(x, y)
	}
}

func (c *Canvas) Fill(x0, y0, x1, y1 int) {
	for y := y0; y <= y1; y++ {
		c.HLine(x0, x1, y)
	}
}

// Zigzag draws a spring between x0 and x1 centred on y.
func (c *Canvas) Zigzag(x0, x1, y, amp int) {
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	up := true
	for x := x0; x <= x1; x++ {
		if (x-x0)%3 == 0 {
			up = !up
		}
		if up {
			c.Set(x, y-amp)
		} else {
			c.Set(x, y+amp)
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.cells {
		b.WriteString(string(row))
		b.WriteByte('\n')
	}
	return b.String()
}

// Dot reports whether the dot at (x, y) is lit.
func (c *Canvas) Dot(x, y int) bool {
	if x < 0 || y < 0 || x >= c.Width*2 || y >= c.Height*4 {
		return false
	}
	return c.cells[y/4][x/2]&dotBits[y%4][x%2] != 0
}
