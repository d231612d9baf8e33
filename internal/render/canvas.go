// Package render draws race snapshots into images with gg.
package render

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"log"
	"math"
	"sync"
	"time"

	"github.com/fogleman/gg"

	"roach-race/internal/config"
	"roach-race/internal/game"
	"roach-race/internal/race"
)

const (
	racerRadius    = 14.0
	trailDotRadius = 3.0
	labelOffset    = 30.0 // speed label sits this far above the racer
	lineHeight     = 22.0
)

var (
	backgroundColor = color.RGBA{245, 240, 228, 255}
	trackColor      = color.RGBA{0, 0, 0, 255}
	textColor       = color.RGBA{0, 0, 0, 255}
	cupColor        = color.RGBA{139, 94, 60, 255}
	cupStainColor   = color.RGBA{92, 64, 51, 255}
	panelColor      = color.RGBA{255, 255, 255, 220}

	// One colour per racer, cycled by ID
	racerPalette = []color.RGBA{
		{120, 66, 18, 255},
		{178, 34, 34, 255},
		{46, 139, 87, 255},
		{65, 105, 225, 255},
		{218, 165, 32, 255},
		{106, 90, 205, 255},
	}
)

// Canvas renders snapshots of one race geometry
type Canvas struct {
	mu         sync.Mutex // font faces are not safe for concurrent use
	cfg        config.VideoConfig
	raceCfg    config.RaceConfig
	faces      faces
	background image.Image
}

// NewCanvas loads fonts and the optional background image
func NewCanvas(cfg config.VideoConfig, raceCfg config.RaceConfig) (*Canvas, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid canvas size %dx%d", cfg.Width, cfg.Height)
	}

	f, err := loadFaces(cfg.FontPath)
	if err != nil {
		return nil, err
	}

	c := &Canvas{cfg: cfg, raceCfg: raceCfg, faces: f}
	if cfg.BackgroundPath != "" {
		img, err := gg.LoadImage(cfg.BackgroundPath)
		if err != nil {
			log.Printf("⚠️ Background %s not loaded, using plain fill: %v", cfg.BackgroundPath, err)
		} else {
			c.background = img
		}
	}
	return c, nil
}

// DrawSnapshot renders one frame. A finished race gets the results screen on top.
func (c *Canvas) DrawSnapshot(snap *game.RaceSnapshot) image.Image {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	dc := gg.NewContext(c.cfg.Width, c.cfg.Height)

	c.drawBackground(dc)
	track := snap.Track
	if track.Radius == 0 {
		track = race.Track{
			Center: race.Point{X: c.raceCfg.CenterX, Y: c.raceCfg.CenterY},
			Radius: c.raceCfg.BaseRadius,
		}
	}
	c.drawTrack(dc, track)
	c.drawCup(dc, track.Center.X+track.Radius, track.Center.Y)

	for i := range snap.Racers {
		if !snap.Racers[i].Finished {
			c.drawTrail(dc, &snap.Racers[i])
		}
	}
	for i := range snap.Racers {
		if !snap.Racers[i].Finished {
			c.drawRacer(dc, &snap.Racers[i])
		}
	}
	c.drawHUD(dc, snap)

	if snap.State == race.Finished {
		c.drawResults(dc, snap.Ranking)
	}

	renderDuration.Observe(time.Since(start).Seconds())
	return dc.Image()
}

// EncodePNG writes the rendered snapshot as PNG
func (c *Canvas) EncodePNG(w io.Writer, snap *game.RaceSnapshot) error {
	dc := gg.NewContextForImage(c.DrawSnapshot(snap))
	return dc.EncodePNG(w)
}

// SavePNG renders the snapshot into a PNG file
func (c *Canvas) SavePNG(path string, snap *game.RaceSnapshot) error {
	return gg.SavePNG(path, c.DrawSnapshot(snap))
}

func (c *Canvas) drawBackground(dc *gg.Context) {
	w, h := float64(c.cfg.Width), float64(c.cfg.Height)

	if c.background != nil {
		b := c.background.Bounds()
		dc.Push()
		dc.Scale(w/float64(b.Dx()), h/float64(b.Dy()))
		dc.DrawImage(c.background, 0, 0)
		dc.Pop()
		return
	}

	dc.SetColor(backgroundColor)
	dc.DrawRectangle(0, 0, w, h)
	dc.Fill()
}

func (c *Canvas) drawTrack(dc *gg.Context, t race.Track) {
	dc.SetColor(trackColor)
	dc.SetLineWidth(1)
	dc.DrawCircle(t.Center.X, t.Center.Y, t.Radius)
	dc.Stroke()
}

// drawCup marks the finish line: a dirty mug on the track's rightmost point
func (c *Canvas) drawCup(dc *gg.Context, x, y float64) {
	dc.SetColor(cupColor)
	dc.SetLineWidth(4)
	dc.DrawArc(x+18, y, 10, -math.Pi/2, math.Pi/2)
	dc.Stroke()

	dc.DrawRoundedRectangle(x-18, y-22, 36, 44, 5)
	dc.Fill()

	dc.SetColor(cupStainColor)
	dc.DrawEllipse(x, y-22, 18, 5)
	dc.Fill()
}

func racerColor(id int) color.RGBA {
	if id < 1 {
		id = 1
	}
	return racerPalette[(id-1)%len(racerPalette)]
}

func (c *Canvas) drawTrail(dc *gg.Context, r *game.RacerSnapshot) {
	col := racerColor(r.ID)
	col.A = 150
	dc.SetColor(col)
	for _, p := range r.Trail {
		dc.DrawCircle(p.X, p.Y, trailDotRadius)
		dc.Fill()
	}
}

func (c *Canvas) drawRacer(dc *gg.Context, r *game.RacerSnapshot) {
	// Shadow
	dc.SetColor(color.RGBA{0, 0, 0, 60})
	dc.DrawEllipse(r.X, r.Y+4, racerRadius, racerRadius*0.6)
	dc.Fill()

	// Body, oriented along the direction of travel
	dc.Push()
	dc.RotateAbout(r.Angle+math.Pi/2, r.X, r.Y)
	dc.SetColor(racerColor(r.ID))
	dc.DrawEllipse(r.X, r.Y, racerRadius*0.7, racerRadius)
	dc.Fill()
	dc.SetColor(color.RGBA{30, 20, 10, 255})
	dc.SetLineWidth(1.5)
	dc.DrawLine(r.X-3, r.Y-racerRadius, r.X-8, r.Y-racerRadius-8)
	dc.DrawLine(r.X+3, r.Y-racerRadius, r.X+8, r.Y-racerRadius-8)
	dc.Stroke()
	dc.Pop()

	dc.SetFontFace(c.faces.small)
	dc.SetColor(textColor)
	dc.DrawStringAnchored(fmt.Sprintf("Speed: %.2f", r.Speed), r.X, r.Y-labelOffset, 0.5, 0.5)
}

func (c *Canvas) drawHUD(dc *gg.Context, snap *game.RaceSnapshot) {
	dc.SetFontFace(c.faces.small)
	dc.SetColor(textColor)
	dc.DrawString(fmt.Sprintf("Tick %d", snap.Tick), 12, 22)
	dc.DrawString(fmt.Sprintf("On track: %d/%d", snap.ActiveCount, len(snap.Racers)), 12, 22+lineHeight)
	dc.DrawString(fmt.Sprintf("Laps to win: %d", snap.LapTarget), 12, 22+2*lineHeight)
}

// drawResults overlays the final ranking and the leader highlight
func (c *Canvas) drawResults(dc *gg.Context, ranking []race.RankEntry) {
	w, h := float64(c.cfg.Width), float64(c.cfg.Height)
	cx := w / 2

	dc.SetColor(panelColor)
	dc.DrawRoundedRectangle(w*0.06, h*0.2, w*0.88, h*0.5, 12)
	dc.Fill()

	dc.SetColor(textColor)
	dc.SetFontFace(c.faces.large)
	dc.DrawStringAnchored("Race results", cx, h*0.25, 0.5, 0.5)

	dc.SetFontFace(c.faces.small)
	y := h*0.25 + 2*lineHeight
	for _, e := range ranking {
		dc.DrawStringAnchored(race.FormatResult(e), cx, y, 0.5, 0.5)
		y += lineHeight
	}

	if len(ranking) == 0 {
		return
	}
	leader := ranking[0]

	dc.SetFontFace(c.faces.large)
	dc.DrawStringAnchored(fmt.Sprintf("Race leader: %s", leader.Name), cx, h*0.5, 0.5, 0.5)

	dc.SetColor(racerColor(leader.RacerID))
	dc.DrawCircle(cx, h*0.5625, racerRadius*1.5)
	dc.Fill()

	dc.SetColor(textColor)
	dc.SetFontFace(c.faces.medium)
	dc.DrawStringAnchored(race.FormatResult(leader), cx, h*0.625, 0.5, 0.5)
}
