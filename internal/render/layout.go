// Package render lays out dashboard canvases from a server listing and its
// player-count history, producing PNG artifacts for the publisher.
package render

import (
	"math"
	"time"

	"github.com/gartsh/serverboard/internal/models"
)

// Artifact is one rendered image ready to publish.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
}

// Graph describes a sparkline plotting area: pixel rectangle, time window,
// and value range [0, Max].
type Graph struct {
	Start time.Time
	End   time.Time

	X      float64
	Y      float64
	Width  float64
	Height float64

	Max int
}

// PlotX maps a sample timestamp onto the horizontal axis. The window start
// maps to X, the window end to X+Width.
func (g Graph) PlotX(ts time.Time) float64 {
	span := g.End.Sub(g.Start)
	if span <= 0 {
		return g.X
	}

	frac := float64(ts.Sub(g.Start)) / float64(span)
	return g.X + frac*g.Width
}

// PlotY maps a player count onto the vertical axis. Zero maps to the graph
// bottom, Max to the top. Max is clamped to at least 1 so an empty server
// with maxPlayers == 0 never divides by zero.
func (g Graph) PlotY(players int) float64 {
	max := g.Max
	if max < 1 {
		max = 1
	}

	return g.Y + g.Height - float64(players)/float64(max)*g.Height
}

// Ratio returns players/max clamped to [0, 1], with the same zero guard as
// PlotY. Used for the fill bars.
func Ratio(players, max int) float64 {
	if max < 1 {
		return 0
	}

	r := float64(players) / float64(max)
	return math.Min(math.Max(r, 0), 1)
}

const (
	// labelCollisionPx is the horizontal distance under which a neighboring
	// plotted point forces a value label further away from the line.
	labelCollisionPx = 2

	labelOffsetBase   = 12
	labelOffsetPushed = 22
)

// LabelOffset returns the vertical distance between the plotted point at
// index i and its value label. When the previous or next plotted point lies
// within labelCollisionPx horizontally, the label is pushed further from the
// line so adjacent annotations do not overlap.
func LabelOffset(xs []float64, i int) float64 {
	if i > 0 && math.Abs(xs[i]-xs[i-1]) < labelCollisionPx {
		return labelOffsetPushed
	}
	if i+1 < len(xs) && math.Abs(xs[i+1]-xs[i]) < labelCollisionPx {
		return labelOffsetPushed
	}

	return labelOffsetBase
}

// Extremes returns the indices of the minimum and maximum samples, ignoring
// the first skip samples so cold-start artifacts are not flagged. Ties keep
// the earliest occurrence. Returns (-1, -1) when no samples remain.
func Extremes(samples []models.Sample, skip int) (minIdx, maxIdx int) {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(samples) {
		return -1, -1
	}

	minIdx, maxIdx = skip, skip
	for i := skip + 1; i < len(samples); i++ {
		if samples[i].PlayerCount < samples[minIdx].PlayerCount {
			minIdx = i
		}
		if samples[i].PlayerCount > samples[maxIdx].PlayerCount {
			maxIdx = i
		}
	}

	return minIdx, maxIdx
}

// hslColor converts hue [0, 360), saturation and lightness [0, 1] into RGB
// components [0, 1]. Version tags are colored on the hue wheel.
func hslColor(h, s, l float64) (r, g, b float64) {
	c := (1 - math.Abs(2*l-1)) * s
	hp := math.Mod(h, 360) / 60
	x := c * (1 - math.Abs(math.Mod(hp, 2)-1))

	switch {
	case hp < 1:
		r, g, b = c, x, 0
	case hp < 2:
		r, g, b = x, c, 0
	case hp < 3:
		r, g, b = 0, c, x
	case hp < 4:
		r, g, b = 0, x, c
	case hp < 5:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}

	m := l - c/2
	return r + m, g + m, b + m
}
