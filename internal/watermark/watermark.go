// Package watermark sequences one watermarking operation: decode the base image,
// prepare a text or image mark, composite it, apply effects and encode the result.
package watermark

import (
	"context"
	"fmt"
	"image"
	"path/filepath"

	"github.com/UnendingLoop/WatermarkManager/internal/imageproc"
	"github.com/UnendingLoop/WatermarkManager/internal/model"
	"github.com/UnendingLoop/WatermarkManager/internal/mwlogger"
	"github.com/UnendingLoop/WatermarkManager/internal/pixbuf"
)

// OutputQuality is the encode quality of every result.
const OutputQuality = 100

// Codec - контракт для чтения/записи картинок
type Codec interface {
	Decode(path string) (*pixbuf.Buffer, error)
	Encode(buf *pixbuf.Buffer, path string, quality int) error
}

// TextRenderer - контракт для растеризации текста водяного знака
type TextRenderer interface {
	Render(text string, boxW, boxH int, alignX imageproc.HAlign, alignY imageproc.VAlign) (*pixbuf.Buffer, error)
}

type Options struct {
	InputImage     string
	WatermarkType  model.WatermarkType
	WatermarkText  string
	WatermarkImage string
	Effects        imageproc.Effect
	// OutputDir defaults to the current working directory.
	OutputDir string
}

type Orchestrator struct {
	codec Codec
	text  TextRenderer
}

func New(codec Codec, text TextRenderer) *Orchestrator {
	return &Orchestrator{codec: codec, text: text}
}

// Run performs one operation and returns the path of the written file.
// Nothing is written unless every stage before encoding succeeded.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (string, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	if !model.WatermarkTypeMap[opts.WatermarkType] {
		return "", fmt.Errorf("watermark type %q: %w", opts.WatermarkType, model.ErrIncorrectWMType)
	}

	outPath := OutputPath(opts.OutputDir, opts.InputImage)
	state := Idle
	transition := func(next State) {
		logger.Debug().Str("input", opts.InputImage).Str("from", state.String()).Str("to", next.String()).Msg("watermark stage")
		state = next
	}
	advance := func(next State) error {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("watermarking aborted in state %s: %w", state, err)
		}
		transition(next)
		return nil
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	// Idle -> BaseLoaded
	base, err := o.codec.Decode(opts.InputImage)
	if err != nil {
		return "", fmt.Errorf("load base image: %w", err)
	}
	if err := advance(BaseLoaded); err != nil {
		return "", err
	}

	// BaseLoaded -> WatermarkPrepared
	layer, offset, opacity, err := o.prepare(base, opts)
	if err != nil {
		return "", fmt.Errorf("prepare %s watermark: %w", opts.WatermarkType, err)
	}
	if err := advance(WatermarkPrepared); err != nil {
		return "", err
	}

	// WatermarkPrepared -> Composited
	if _, err := imageproc.Composite(base, layer, offset, imageproc.SourceOver, opacity); err != nil {
		return "", fmt.Errorf("composite watermark: %w", err)
	}
	if err := advance(Composited); err != nil {
		return "", err
	}

	// Composited -> EffectsApplied, только если эффекты выбраны
	if opts.Effects != imageproc.NoEffects {
		imageproc.ApplyEffects(base, opts.Effects)
		if err := advance(EffectsApplied); err != nil {
			return "", err
		}
	}

	// -> Encoded
	if err := o.codec.Encode(base, outPath, OutputQuality); err != nil {
		return "", fmt.Errorf("save result: %w", err)
	}
	transition(Encoded)
	transition(Idle)
	logger.Info().Str("input", opts.InputImage).Str("output", outPath).Str("effects", opts.Effects.String()).Msg("watermark applied")

	return outPath, nil
}

// prepare returns the watermark layer with its placement and opacity policy.
func (o *Orchestrator) prepare(base *pixbuf.Buffer, opts Options) (*pixbuf.Buffer, image.Point, float64, error) {
	switch opts.WatermarkType {
	case model.WMText:
		// слой текста во всю основу - смещение нулевое, клиппинг не нужен
		layer, err := o.text.Render(opts.WatermarkText, base.Width(), base.Height(), imageproc.AlignCenter, imageproc.AlignMiddle)
		if err != nil {
			return nil, image.Point{}, 0, err
		}
		return layer, image.Point{}, imageproc.TextOpacity, nil
	default:
		layer, err := o.codec.Decode(opts.WatermarkImage)
		if err != nil {
			return nil, image.Point{}, 0, err
		}
		return layer, imageproc.CenterOffset(base.Bounds(), layer.Bounds()), imageproc.ImageOpacity, nil
	}
}

// OutputPath places OutputName(input) into dir ("." when empty).
func OutputPath(dir, input string) string {
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, OutputName(input))
}
