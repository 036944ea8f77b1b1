// Package imageproc provides the pixel operations of the pipeline: compositing, effects and text rasterization.
package imageproc

import (
	"fmt"
	"image"
	"math"

	"github.com/UnendingLoop/WatermarkManager/internal/model"
	"github.com/UnendingLoop/WatermarkManager/internal/pixbuf"
)

type BlendMode int

const (
	SourceOver BlendMode = iota
)

func (m BlendMode) String() string {
	switch m {
	case SourceOver:
		return "source-over"
	default:
		return fmt.Sprintf("BlendMode(%d)", int(m))
	}
}

// Непрозрачность накладываемого слоя: текст кладем полностью, картинку - наполовину
const (
	TextOpacity  = 1.0
	ImageOpacity = 0.5
)

// CenterOffset returns the offset that centers overlay on base.
// Uses floor division, so an overlay larger than base gets negative offsets.
func CenterOffset(base, overlay image.Rectangle) image.Point {
	return image.Pt(
		floorDiv(base.Dx()-overlay.Dx(), 2),
		floorDiv(base.Dy()-overlay.Dy(), 2),
	)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Composite blends overlay onto base at offset and returns base, which is modified in place.
// Overlay pixels falling outside base are clipped.
func Composite(base, overlay *pixbuf.Buffer, offset image.Point, mode BlendMode, opacity float64) (*pixbuf.Buffer, error) {
	if base == nil || overlay == nil {
		return base, fmt.Errorf("composite: nil buffer provided")
	}
	if mode != SourceOver {
		return base, fmt.Errorf("composite %v: %w", mode, model.ErrUnsupportedBlend)
	}
	opacity = math.Min(math.Max(opacity, 0), 1)
	if opacity == 0 {
		return base, nil
	}

	// пересечение сдвинутого оверлея с основой - только его и обходим
	paste := overlay.Bounds().Add(offset)
	inter := paste.Intersect(base.Bounds())
	if inter.Empty() {
		return base, nil
	}

	dst := base.Image()
	src := overlay.Image()
	for y := inter.Min.Y; y < inter.Max.Y; y++ {
		di := dst.PixOffset(inter.Min.X, y)
		si := src.PixOffset(inter.Min.X-offset.X, y-offset.Y)
		for x := inter.Min.X; x < inter.Max.X; x++ {
			sourceOver(dst.Pix[di:di+4:di+4], src.Pix[si:si+4:si+4], opacity)
			di += 4
			si += 4
		}
	}

	return base, nil
}

// sourceOver blends s over d in non-premultiplied space.
// For an opaque d this is exactly s*sa + d*(1-sa).
func sourceOver(d, s []uint8, opacity float64) {
	sa := float64(s[3]) / 255 * opacity
	if sa == 0 {
		return
	}
	da := float64(d[3]) / 255
	outA := sa + da*(1-sa)
	wd := da * (1 - sa)

	for c := 0; c < 3; c++ {
		v := (float64(s[c])*sa + float64(d[c])*wd) / outA
		d[c] = clampUint8(v)
	}
	d[3] = clampUint8(outA * 255)
}

func clampUint8(v float64) uint8 {
	v = math.Round(v)
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	default:
		return uint8(v)
	}
}
