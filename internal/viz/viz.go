// Package viz renders a PNG snapshot of a mix plan's timeline: one
// colored bar per scheduled snippet spanning [ScheduledStart,
// ScheduledEnd], with a tick at its transition timestamp. Supplemental
// feature per spec.md's out-of-core-scope note naming "visualization
// canvases" as a real collaborator of the core.
//
// Grounded on original_source/soundsride/mix_plan.py's MixPlanViz
// (viz_mix_plan/add_scheduled_snippet), reimplemented with stdlib
// image/png instead of the Python original's plotly figure — no pack
// example repo does 2D drawing or charting, so a full library import
// for a timeline-with-rectangles would be disproportionate (see
// DESIGN.md).
package viz

import (
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/soundsride/soundsrided/internal/mixplan"
)

// palette mirrors MixPlanViz's fixed color cycle, one color per
// scheduled snippet in plan order.
var palette = []color.RGBA{
	{0, 128, 0, 255},     // green
	{0, 0, 255, 255},     // blue
	{200, 200, 0, 255},   // yellow
	{255, 0, 255, 255},   // magenta
	{0, 200, 200, 255},   // cyan
	{139, 69, 19, 255},   // brown
	{128, 0, 128, 255},   // purple
}

// Options controls the rendered image's pixel dimensions and the
// time-to-pixel scale.
type Options struct {
	Width       int
	Height      int
	MSPerPixel  int64 // timeline milliseconds per horizontal pixel
}

// DefaultOptions is a reasonable snapshot size for session logs.
func DefaultOptions() Options {
	return Options{Width: 1600, Height: 300, MSPerPixel: 50}
}

// Render draws plan's timeline to a PNG and writes it to w.
func Render(plan *mixplan.Plan, opts Options, w io.Writer) error {
	if opts.Width <= 0 {
		opts.Width = 1600
	}
	if opts.Height <= 0 {
		opts.Height = 300
	}
	if opts.MSPerPixel <= 0 {
		opts.MSPerPixel = 50
	}

	img := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	fillRect(img, 0, 0, opts.Width, opts.Height, color.RGBA{255, 255, 255, 255})

	laneHeight := opts.Height / maxInt(len(plan.Snippets), 1)

	for i, s := range plan.Snippets {
		c := palette[i%len(palette)]
		lane := i % maxInt(opts.Height/laneHeight, 1)
		y0 := lane * laneHeight
		y1 := y0 + laneHeight - 2
		if y1 <= y0 {
			y1 = y0 + 1
		}

		x0 := msToPixel(s.ScheduledStart(), opts.MSPerPixel, opts.Width)
		x1 := msToPixel(s.ScheduledEnd(), opts.MSPerPixel, opts.Width)
		fillRect(img, x0, y0, x1, y1, c)

		// Transition tick: a thin dark vertical mark.
		tickX := msToPixel(s.ScheduledTransitionMS, opts.MSPerPixel, opts.Width)
		fillRect(img, tickX, y0, tickX+1, y1, color.RGBA{0, 0, 0, 255})
	}

	return png.Encode(w, img)
}

func msToPixel(ms int64, msPerPixel int64, width int) int {
	x := int(ms / msPerPixel)
	if x < 0 {
		return 0
	}
	if x >= width {
		return width - 1
	}
	return x
}

func fillRect(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	bounds := img.Bounds()
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	for y := y0; y < y1 && y < bounds.Max.Y; y++ {
		for x := x0; x < x1 && x < bounds.Max.X; x++ {
			if x < 0 || y < 0 {
				continue
			}
			img.SetRGBA(x, y, c)
		}
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
