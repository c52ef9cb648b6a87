// Package chart draws small line plots for the terminal.
package chart

import (
	"math"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
)

type Point struct {
	Label string
	Value float64
}

type Options struct {
	Width  int
	Height int
	Min    float64
	Max    float64
}

const (
	defaultWidth  = 60
	defaultHeight = 10
	marker        = '●'
	trail         = '·'
)

func (o Options) normalized() Options {
	if o.Width <= 0 {
		o.Width = defaultWidth
	}
	if o.Height < 2 {
		o.Height = defaultHeight
	}
	if o.Max <= o.Min {
		o.Max = o.Min + 1
	}
	return o
}

// Line plots values left to right with the y axis fixed to [Min, Max].
// Values outside the range are clamped. An empty series yields "".
func Line(points []Point, opts Options) string {
	if len(points) == 0 {
		return ""
	}
	o := opts.normalized()

	top, mid, bottom := formatTick(o.Max), formatTick((o.Max+o.Min)/2), formatTick(o.Min)
	tickW := max(runewidth.StringWidth(top), runewidth.StringWidth(mid), runewidth.StringWidth(bottom))
	plotW := max(o.Width-tickW-2, len(points))

	grid := make([][]rune, o.Height)
	for r := range grid {
		grid[r] = []rune(strings.Repeat(" ", plotW))
	}

	xs := make([]int, len(points))
	ys := make([]int, len(points))
	for i, p := range points {
		xs[i] = column(i, len(points), plotW)
		ys[i] = row(p.Value, o)
	}
	for i := 1; i < len(points); i++ {
		x0, x1 := xs[i-1], xs[i]
		for x := x0 + 1; x < x1; x++ {
			f := float64(x-x0) / float64(x1-x0)
			y := int(math.Round(float64(ys[i-1]) + f*float64(ys[i]-ys[i-1])))
			grid[y][x] = trail
		}
	}
	for i := range points {
		grid[ys[i]][xs[i]] = marker
	}

	var b strings.Builder
	midRow := (o.Height - 1) / 2
	for r, line := range grid {
		tick := ""
		axis := "│"
		switch r {
		case 0:
			tick, axis = top, "┤"
		case midRow:
			tick, axis = mid, "┤"
		case o.Height - 1:
			tick, axis = bottom, "┤"
		}
		b.WriteString(runewidth.FillLeft(tick, tickW))
		b.WriteString(" " + axis)
		b.WriteString(strings.TrimRight(string(line), " "))
		b.WriteByte('\n')
	}
	pad := strings.Repeat(" ", tickW+1)
	b.WriteString(pad + "└" + strings.Repeat("─", plotW) + "\n")
	b.WriteString(pad + " " + labels(points, xs, plotW) + "\n")
	return b.String()
}

func column(i, n, width int) int {
	if n == 1 {
		return 0
	}
	return i * (width - 1) / (n - 1)
}

func row(v float64, o Options) int {
	v = math.Max(o.Min, math.Min(o.Max, v))
	frac := (o.Max - v) / (o.Max - o.Min)
	return int(math.Round(frac * float64(o.Height-1)))
}

// labels places x-axis labels under their points, skipping any that would
// collide with the previous one. The last label wins over its neighbour.
func labels(points []Point, xs []int, width int) string {
	line := []rune(strings.Repeat(" ", width+16))
	next := 0
	place := func(i int) bool {
		label := []rune(points[i].Label)
		x := xs[i]
		if x < next || x+len(label) > len(line) {
			return false
		}
		copy(line[x:], label)
		next = x + len(label) + 1
		return true
	}
	last := len(points) - 1
	lastX := xs[last]
	for i := 0; i < last; i++ {
		if xs[i]+len([]rune(points[i].Label)) >= lastX {
			break
		}
		place(i)
	}
	place(last)
	return strings.TrimRight(string(line), " ")
}

func formatTick(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
