package render

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fogleman/gg"
	"github.com/gartsh/serverboard/internal/history"
	"github.com/gartsh/serverboard/internal/models"
	"github.com/gartsh/serverboard/internal/tracked"
	"github.com/rs/zerolog/log"
)

// Per-entity card geometry.
const (
	cardWidth   = 800
	cardHeight  = 320
	cardPadding = 20

	// Every labelEvery-th sample gets its value annotated on the sparkline.
	labelEvery = 10

	// extremesSkip samples at the front of the window are ignored when
	// flagging the minimum and maximum, so cold-start readings do not win.
	extremesSkip = 3

	maxMarkerColor = "#ff5252"
	minMarkerColor = "#40c4ff"
)

// EntityRenderer draws one card per tracked server.
type EntityRenderer struct {
	faces *FaceSet
}

// NewEntity creates a per-entity renderer.
func NewEntity(faces *FaceSet) *EntityRenderer {
	return &EntityRenderer{faces: faces}
}

// Render draws the card for one tracked entity: icon, name, player ratio
// with fill bar, and a large annotated sparkline of the entity's history.
func (e *EntityRenderer) Render(ent tracked.Entity, rec models.ServerRecord, samples []models.Sample, now time.Time) (*Artifact, error) {
	dc := gg.NewContext(cardWidth, cardHeight)

	dc.SetHexColor("#111111")
	dc.Clear()

	p := float64(cardPadding)
	nameX := p

	if ent.Icon != "" {
		if icon, err := gg.LoadImage(ent.Icon); err != nil {
			log.Debug().Err(err).Str("icon", ent.Icon).Msg("Entity icon not loadable")
		} else {
			dc.DrawImage(icon, cardPadding, cardPadding)
			nameX = p + float64(icon.Bounds().Dx()) + p
		}
	}

	name := ent.Name
	if name == "" {
		name = rec.Name
	}
	dc.SetHexColor("#ffffff")
	dc.SetFontFace(e.faces.Name)
	dc.DrawString(name, nameX, p+35)

	// Ratio and fill bar, right-aligned like the grid cells
	count := fmt.Sprintf("%d/%d", rec.Players, rec.MaxPlayers)
	textWidth, _ := dc.MeasureString(count)
	dc.DrawString(count, cardWidth-p-textWidth, p+35)

	barX := cardWidth - p - textWidth - 10
	barY := p + 45
	barWidth := textWidth + 10

	dc.SetLineWidth(3)
	dc.DrawRectangle(barX, barY, barWidth, 16)
	dc.Stroke()
	dc.DrawRectangle(barX, barY, barWidth*Ratio(rec.Players, rec.MaxPlayers), 16)
	dc.Fill()

	graph := Graph{
		X:      2 * p,
		Y:      110,
		Width:  cardWidth - 4*p,
		Height: 160,
		Start:  now.Add(-history.Window),
		End:    now,
		Max:    rec.MaxPlayers,
	}

	xs := make([]float64, len(samples))
	ys := make([]float64, len(samples))
	for i, smp := range samples {
		xs[i] = graph.PlotX(smp.Time())
		ys[i] = graph.PlotY(smp.PlayerCount)
	}

	lineColor := ent.Color
	if lineColor == "" {
		lineColor = "#ffffff"
	}

	dc.SetHexColor(lineColor)
	dc.SetLineWidth(2)
	for i := range xs {
		if i == 0 {
			dc.MoveTo(xs[i], ys[i])
		} else {
			dc.LineTo(xs[i], ys[i])
		}
	}
	dc.Stroke()

	// Value annotations on every labelEvery-th sample
	dc.SetFontFace(e.faces.Small)
	for i := range samples {
		if i%labelEvery != 0 {
			continue
		}
		dy := LabelOffset(xs, i)
		dc.DrawStringAnchored(strconv.Itoa(samples[i].PlayerCount), xs[i], ys[i]-dy, 0.5, 0)
	}

	// Window extremes, each with a distinct marker
	minIdx, maxIdx := Extremes(samples, extremesSkip)
	if maxIdx >= 0 {
		e.drawMarker(dc, xs[maxIdx], ys[maxIdx], samples[maxIdx].PlayerCount, maxMarkerColor)
	}
	if minIdx >= 0 && minIdx != maxIdx {
		e.drawMarker(dc, xs[minIdx], ys[minIdx], samples[minIdx].PlayerCount, minMarkerColor)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode entity canvas: %w", err)
	}

	return &Artifact{
		Name:        "server-" + strings.ReplaceAll(ent.Key, ":", "-") + ".png",
		ContentType: "image/png",
		Data:        buf.Bytes(),
	}, nil
}

func (e *EntityRenderer) drawMarker(dc *gg.Context, x, y float64, value int, color string) {
	dc.SetHexColor(color)
	dc.DrawCircle(x, y, 4)
	dc.Fill()
	dc.SetFontFace(e.faces.Small)
	dc.DrawStringAnchored(strconv.Itoa(value), x+8, y+4, 0, 0)
}
