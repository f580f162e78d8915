package render

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fogleman/gg"
	"github.com/gartsh/serverboard/internal/history"
	"github.com/gartsh/serverboard/internal/models"
)

// Grid geometry. One fixed-size cell per server, three per row, a banner on
// top and a footer strip for the render timestamp.
const (
	gridColumns = 3
	cellWidth   = 550
	cellHeight  = 200
	cellPadding = 10

	bannerHeight = 100
	footerHeight = 50
)

// GridRenderer lays out the whole listing on a single composite canvas.
type GridRenderer struct {
	faces *FaceSet
	title string
}

// NewGrid creates a grid renderer with the given banner title.
func NewGrid(faces *FaceSet, title string) *GridRenderer {
	return &GridRenderer{faces: faces, title: title}
}

// Render draws one cell per record in listing order. series resolves the
// sample history for a server key; a key with no history draws an empty
// sparkline. An empty listing still renders a banner-only canvas stating
// that no servers are online.
func (g *GridRenderer) Render(records []models.ServerRecord, series func(key string) []models.Sample, now time.Time) (*Artifact, error) {
	rows := (len(records) + gridColumns - 1) / gridColumns
	width := gridColumns * cellWidth
	height := bannerHeight + rows*cellHeight + footerHeight

	dc := gg.NewContext(width, height)

	dc.SetHexColor("#111111")
	dc.Clear()

	// Banner
	banner := g.title
	if len(records) == 0 {
		banner = "No servers online"
	}
	dc.SetHexColor("#ffffff")
	dc.SetFontFace(g.faces.Title)
	dc.DrawStringAnchored(banner, float64(width)/2, 70, 0.5, 0)

	for i, rec := range records {
		g.drawCell(dc, rec, series(rec.Key()), i, now)
	}

	// Footer timestamp
	dc.SetHexColor("#ffffff")
	dc.SetFontFace(g.faces.Footer)
	dc.DrawString("Last updated at "+now.UTC().Format("15:04 MST"), cellPadding, float64(height)-2*cellPadding)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode grid canvas: %w", err)
	}

	return &Artifact{
		Name:        "serverlist.png",
		ContentType: "image/png",
		Data:        buf.Bytes(),
	}, nil
}

func (g *GridRenderer) drawCell(dc *gg.Context, rec models.ServerRecord, samples []models.Sample, i int, now time.Time) {
	x := float64(i%gridColumns) * cellWidth
	y := float64(bannerHeight) + float64(i/gridColumns)*cellHeight
	p := float64(cellPadding)

	// Cell border
	dc.SetHexColor("#ffffff")
	dc.SetLineWidth(5)
	dc.DrawRectangle(x+p, y+p, cellWidth-2*p, cellHeight-2*p)
	dc.Stroke()

	// Name, left-aligned
	dc.SetFontFace(g.faces.Name)
	dc.DrawString(rec.Name, x+2*p, y+2*p+30)

	// "players/max", right-aligned, with a proportional fill bar below
	count := fmt.Sprintf("%d/%d", rec.Players, rec.MaxPlayers)
	textWidth, _ := dc.MeasureString(count)
	dc.DrawString(count, x+cellWidth-2*p-textWidth, y+2*p+30)

	barX := x + cellWidth - 2*p - textWidth - 10
	barY := y + 2*p + 40
	barWidth := textWidth + 10

	dc.DrawRectangle(barX, barY, barWidth, 20)
	dc.Stroke()
	dc.DrawRectangle(barX, barY, barWidth*Ratio(rec.Players, rec.MaxPlayers), 20)
	dc.Fill()

	// Version tag, hue picked by hashing the version number
	tag := fmt.Sprintf("%d%s", rec.Version, rec.Build)
	hue := float64(xxhash.Sum64String(strconv.Itoa(rec.Version)) % 360)
	dc.SetRGB(hslColor(hue, 1, 0.5))
	dc.SetFontFace(g.faces.Tag)
	dc.DrawString(tag, x+2*p, y+2*p+60)

	dc.SetHexColor("#ffffff")
	dc.DrawString(fmt.Sprintf("%dms", rec.Latency), x+2*p+50, y+2*p+60)
	if rec.CountryCode != "" {
		dc.DrawString(rec.CountryCode, x+2*p+130, y+2*p+60)
	}

	// Rule between header and sparkline
	dc.DrawLine(x+2*p, y+2*p+80, x+cellWidth-2*p, y+2*p+80)
	dc.Stroke()

	graph := Graph{
		X:      x + 2*p,
		Y:      y + 2*p + 90,
		Width:  cellWidth - 4*p,
		Height: 70,
		Start:  now.Add(-history.Window),
		End:    now,
		Max:    rec.MaxPlayers,
	}

	dc.SetLineWidth(2)
	for j, smp := range samples {
		px := graph.PlotX(smp.Time())
		py := graph.PlotY(smp.PlayerCount)
		if j == 0 {
			dc.MoveTo(px, py)
		} else {
			dc.LineTo(px, py)
		}
	}
	dc.Stroke()
}
