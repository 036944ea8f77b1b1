package imageproc

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"
	"sync"

	"github.com/UnendingLoop/WatermarkManager/internal/model"
	"github.com/UnendingLoop/WatermarkManager/internal/pixbuf"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

type HAlign int

const (
	AlignLeft HAlign = iota
	AlignCenter
	AlignRight
)

type VAlign int

const (
	AlignTop VAlign = iota
	AlignMiddle
	AlignBottom
)

// Единственный шрифт на всю систему: Go Regular, 32px, черный
const (
	FontSize = 32
	FontDPI  = 72
	fontName = "goregular"
)

// TextRasterizer renders text with the fixed face into a transparent layer.
// The face is not safe for concurrent use, so Render serializes on mu.
type TextRasterizer struct {
	mu   sync.Mutex
	face font.Face
	ink  color.Color
}

func NewTextRasterizer() (*TextRasterizer, error) {
	parsed, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, model.NewPipelineError(model.ErrRaster, fontName, err)
	}

	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    FontSize,
		DPI:     FontDPI,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, model.NewPipelineError(model.ErrRaster, fontName, err)
	}

	return &TextRasterizer{face: face, ink: color.Black}, nil
}

func (r *TextRasterizer) Close() error {
	return r.face.Close()
}

// Render lays text out inside a boxW x boxH layer. Lines break on '\n' and
// words wrap at boxW; anything still overflowing the box is clipped.
// Empty text yields a fully transparent layer.
func (r *TextRasterizer) Render(text string, boxW, boxH int, alignX HAlign, alignY VAlign) (*pixbuf.Buffer, error) {
	if boxW <= 0 || boxH <= 0 {
		return nil, model.NewPipelineError(model.ErrRaster, text, fmt.Errorf("invalid box %dx%d", boxW, boxH))
	}

	layer := pixbuf.New(boxW, boxH)
	if text == "" {
		return layer, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.face == nil {
		return nil, model.NewPipelineError(model.ErrRaster, text, errors.New("font face is not loaded"))
	}

	drawer := &font.Drawer{
		Dst:  layer.Image(),
		Src:  image.NewUniform(r.ink),
		Face: r.face,
	}

	lines := wrapLines(drawer, text, boxW)
	metrics := r.face.Metrics()
	lineH := metrics.Height.Ceil()
	ascent := metrics.Ascent.Ceil()

	top := verticalAnchor(alignY, boxH, lineH*len(lines))
	for i, line := range lines {
		if line == "" {
			continue
		}
		x := horizontalAnchor(alignX, boxW, drawer.MeasureString(line).Ceil())
		drawer.Dot = fixed.P(x, top+i*lineH+ascent)
		drawer.DrawString(line)
	}

	return layer, nil
}

func horizontalAnchor(a HAlign, boxW, lineW int) int {
	switch a {
	case AlignCenter:
		return floorDiv(boxW-lineW, 2)
	case AlignRight:
		return boxW - lineW
	default:
		return 0
	}
}

func verticalAnchor(a VAlign, boxH, blockH int) int {
	switch a {
	case AlignMiddle:
		return floorDiv(boxH-blockH, 2)
	case AlignBottom:
		return boxH - blockH
	default:
		return 0
	}
}

// wrapLines splits text into paragraphs and greedily packs words into lines no wider than maxW.
// A single word wider than maxW keeps its own line.
func wrapLines(d *font.Drawer, text string, maxW int) []string {
	limit := fixed.I(maxW)
	var lines []string

	for _, paragraph := range strings.Split(text, "\n") {
		words := strings.Fields(paragraph)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}

		cur := words[0]
		for _, w := range words[1:] {
			candidate := cur + " " + w
			if d.MeasureString(candidate) <= limit {
				cur = candidate
				continue
			}
			lines = append(lines, cur)
			cur = w
		}
		lines = append(lines, cur)
	}

	return lines
}
