package imageproc

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/UnendingLoop/WatermarkManager/internal/model"
	"github.com/UnendingLoop/WatermarkManager/internal/pixbuf"
	"github.com/disintegration/imaging"
)

// Effect is a set of effect flags. Selecting an effect twice is the same as selecting it once.
type Effect uint8

const (
	EffectBrightness Effect = 1 << iota
	EffectContrast
	EffectGreyscale
	EffectInvert

	NoEffects Effect = 0
)

const (
	BrightnessChange = 0.2
	ContrastChange   = 0.3
)

var effectNames = map[Effect]string{
	EffectBrightness: "brightness",
	EffectContrast:   "contrast",
	EffectGreyscale:  "greyscale",
	EffectInvert:     "invert",
}

// Filter is a single per-pixel transform of the pipeline.
type Filter interface {
	Effect() Effect
	Apply(img image.Image) *image.NRGBA
}

// pipeline is the canonical order. Selection order never changes it.
var pipeline = []Filter{
	brightness{change: BrightnessChange},
	newContrast(ContrastChange),
	greyscale{},
	invert{},
}

// ApplyEffects runs the selected filters over buf in place, in canonical order.
func ApplyEffects(buf *pixbuf.Buffer, selected Effect) *pixbuf.Buffer {
	if buf == nil || selected == NoEffects {
		return buf
	}
	for _, f := range pipeline {
		if !selected.Has(f.Effect()) {
			continue
		}
		// фильтры попиксельные, смена размера - баг фильтра
		if !buf.Replace(f.Apply(buf.Image())) {
			panic(fmt.Sprintf("imageproc: %s filter changed the image size", effectNames[f.Effect()]))
		}
	}
	return buf
}

func (e Effect) Has(flag Effect) bool { return e&flag != 0 }

// Names lists the selected effects in canonical order.
func (e Effect) Names() []string {
	names := make([]string, 0, len(pipeline))
	for _, f := range pipeline {
		if e.Has(f.Effect()) {
			names = append(names, effectNames[f.Effect()])
		}
	}
	return names
}

func (e Effect) String() string {
	if e == NoEffects {
		return "none"
	}
	return strings.Join(e.Names(), ",")
}

func ParseEffect(s string) (Effect, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for e, n := range effectNames {
		if n == name {
			return e, nil
		}
	}
	// "grayscale" is accepted as an alias
	if name == "grayscale" {
		return EffectGreyscale, nil
	}
	return NoEffects, fmt.Errorf("%q: %w", s, model.ErrUnknownEffect)
}

// ParseEffects accepts names one per item or comma separated; blank items are ignored.
func ParseEffects(items []string) (Effect, error) {
	var set Effect
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			e, err := ParseEffect(part)
			if err != nil {
				return NoEffects, err
			}
			set |= e
		}
	}
	return set, nil
}

//-------------------- filters

// brightness shifts every color channel by change*255.
type brightness struct{ change float64 }

func (brightness) Effect() Effect { return EffectBrightness }

func (f brightness) Apply(img image.Image) *image.NRGBA {
	return imaging.AdjustBrightness(img, f.change*100)
}

// contrast scales channels around the midpoint: c' = (c-127.5)*(1+change) + 127.5.
// imaging.AdjustContrast uses 1/(2-v) for positive values, so the table is built here.
type contrast struct {
	change float64
	lut    [256]uint8
}

func newContrast(change float64) contrast {
	f := contrast{change: change}
	for i := range f.lut {
		f.lut[i] = clampUint8((float64(i)-127.5)*(1+change) + 127.5)
	}
	return f
}

func (contrast) Effect() Effect { return EffectContrast }

func (f contrast) Apply(img image.Image) *image.NRGBA {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{R: f.lut[c.R], G: f.lut[c.G], B: f.lut[c.B], A: c.A}
	})
}

// greyscale uses the Rec. 601 luma weights; alpha is kept.
type greyscale struct{}

func (greyscale) Effect() Effect { return EffectGreyscale }

func (greyscale) Apply(img image.Image) *image.NRGBA { return imaging.Grayscale(img) }

// invert maps every color channel to 255-c; alpha is kept.
type invert struct{}

func (invert) Effect() Effect { return EffectInvert }

func (invert) Apply(img image.Image) *image.NRGBA { return imaging.Invert(img) }
