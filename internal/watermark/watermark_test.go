package watermark

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/UnendingLoop/WatermarkManager/internal/codec"
	"github.com/UnendingLoop/WatermarkManager/internal/imageproc"
	"github.com/UnendingLoop/WatermarkManager/internal/model"
	"github.com/UnendingLoop/WatermarkManager/internal/pixbuf"
	"github.com/disintegration/imaging"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func writeSolid(t *testing.T, fs afero.Fs, path string, w, h int, c color.NRGBA) {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	format, err := imaging.FormatFromFilename(path)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, format))
	require.NoError(t, afero.WriteFile(fs, path, buf.Bytes(), 0o644))
}

func newOrchestrator(t *testing.T, fs afero.Fs) *Orchestrator {
	t.Helper()

	r, err := imageproc.NewTextRasterizer()
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	return New(codec.New(fs), r)
}

func TestRun_TextWatermarkThenInvert(t *testing.T) {
	fs := afero.NewMemMapFs()
	red := color.NRGBA{R: 255, A: 255}
	writeSolid(t, fs, "/img/red.png", 10, 10, red)

	o := newOrchestrator(t, fs)
	out, err := o.Run(context.Background(), Options{
		InputImage:    "/img/red.png",
		WatermarkType: model.WMText,
		WatermarkText: "A",
		Effects:       imageproc.EffectInvert,
		OutputDir:     "/out",
	})
	require.NoError(t, err)
	require.Equal(t, "/out/red-with-watermark.png", out)

	mask, err := o.text.Render("A", 10, 10, imageproc.AlignCenter, imageproc.AlignMiddle)
	require.NoError(t, err)

	res, err := codec.New(fs).Decode(out)
	require.NoError(t, err)
	require.Equal(t, 10, res.Width())
	require.Equal(t, 10, res.Height())

	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			got := res.RGBAAt(x, y)
			require.Equal(t, uint8(255), got.A, "(%d,%d)", x, y)
			if mask.RGBAAt(x, y).A == 0 {
				require.Equal(t, color.NRGBA{R: 0, G: 255, B: 255, A: 255}, got, "(%d,%d)", x, y)
			}
		}
	}
}

func TestRun_ImageWatermarkCentered(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeSolid(t, fs, "/img/base.png", 20, 10, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	writeSolid(t, fs, "/img/logo.png", 4, 2, color.NRGBA{A: 255})

	out, err := newOrchestrator(t, fs).Run(context.Background(), Options{
		InputImage:     "/img/base.png",
		WatermarkType:  model.WMImage,
		WatermarkImage: "/img/logo.png",
		OutputDir:      "/",
	})
	require.NoError(t, err)

	res, err := codec.New(fs).Decode(out)
	require.NoError(t, err)

	grey := color.NRGBA{R: 128, G: 128, B: 128, A: 255}
	white := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	for y := 0; y < 10; y++ {
		for x := 0; x < 20; x++ {
			want := white
			if x >= 8 && x < 12 && y >= 4 && y < 6 {
				want = grey
			}
			require.Equal(t, want, res.RGBAAt(x, y), "(%d,%d)", x, y)
		}
	}
}

func TestRun_MissingWatermarkFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeSolid(t, fs, "/img/base.png", 8, 8, color.NRGBA{G: 255, A: 255})

	_, err := newOrchestrator(t, fs).Run(context.Background(), Options{
		InputImage:     "/img/base.png",
		WatermarkType:  model.WMImage,
		WatermarkImage: "/img/missing.png",
		OutputDir:      "/out",
	})
	require.ErrorIs(t, err, model.ErrDecode)

	exists, err := afero.Exists(fs, "/out/base-with-watermark.png")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestRun_MissingWatermarkKeepsExistingOutput(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeSolid(t, fs, "/img/base.png", 8, 8, color.NRGBA{G: 255, A: 255})
	require.NoError(t, afero.WriteFile(fs, "/out/base-with-watermark.png", []byte("previous"), 0o644))

	_, err := newOrchestrator(t, fs).Run(context.Background(), Options{
		InputImage:     "/img/base.png",
		WatermarkType:  model.WMImage,
		WatermarkImage: "/img/missing.png",
		OutputDir:      "/out",
	})
	require.ErrorIs(t, err, model.ErrDecode)

	data, err := afero.ReadFile(fs, "/out/base-with-watermark.png")
	require.NoError(t, err)
	require.Equal(t, []byte("previous"), data)
}

// MOCKS

type mockCodec struct {
	decodeFn func(path string) (*pixbuf.Buffer, error)
	encodeFn func(buf *pixbuf.Buffer, path string, quality int) error
}

func (m *mockCodec) Decode(path string) (*pixbuf.Buffer, error) { return m.decodeFn(path) }

func (m *mockCodec) Encode(buf *pixbuf.Buffer, path string, quality int) error {
	return m.encodeFn(buf, path, quality)
}

type mockText struct {
	renderFn func(text string, w, h int) (*pixbuf.Buffer, error)
}

func (m *mockText) Render(text string, w, h int, _ imageproc.HAlign, _ imageproc.VAlign) (*pixbuf.Buffer, error) {
	return m.renderFn(text, w, h)
}

func TestRun_Failures(t *testing.T) {
	decodeErr := model.NewPipelineError(model.ErrDecode, "x", errors.New("corrupt"))
	rasterErr := model.NewPipelineError(model.ErrRaster, "x", errors.New("no glyphs"))
	encodeErr := model.NewPipelineError(model.ErrEncode, "x", errors.New("disk full"))

	okDecode := func(string) (*pixbuf.Buffer, error) { return pixbuf.New(4, 4), nil }
	okRender := func(_ string, w, h int) (*pixbuf.Buffer, error) { return pixbuf.New(w, h), nil }

	tests := []struct {
		name       string
		opts       Options
		decodeFn   func(string) (*pixbuf.Buffer, error)
		renderFn   func(string, int, int) (*pixbuf.Buffer, error)
		encodeErr  error
		wantErr    error
		wantEncode bool
	}{
		{
			name:     "base decode fails",
			opts:     Options{InputImage: "a.png", WatermarkType: model.WMText, WatermarkText: "x"},
			decodeFn: func(string) (*pixbuf.Buffer, error) { return nil, decodeErr },
			renderFn: okRender,
			wantErr:  model.ErrDecode,
		},
		{
			name:     "text raster fails",
			opts:     Options{InputImage: "a.png", WatermarkType: model.WMText, WatermarkText: "x"},
			decodeFn: okDecode,
			renderFn: func(string, int, int) (*pixbuf.Buffer, error) { return nil, rasterErr },
			wantErr:  model.ErrRaster,
		},
		{
			name:     "unknown watermark type",
			opts:     Options{InputImage: "a.png", WatermarkType: "sticker"},
			decodeFn: okDecode,
			renderFn: okRender,
			wantErr:  model.ErrIncorrectWMType,
		},
		{
			name:       "encode fails",
			opts:       Options{InputImage: "a.png", WatermarkType: model.WMText, WatermarkText: "x"},
			decodeFn:   okDecode,
			renderFn:   okRender,
			encodeErr:  encodeErr,
			wantErr:    model.ErrEncode,
			wantEncode: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := false
			c := &mockCodec{
				decodeFn: tt.decodeFn,
				encodeFn: func(*pixbuf.Buffer, string, int) error {
					encoded = true
					return tt.encodeErr
				},
			}

			_, err := New(c, &mockText{renderFn: tt.renderFn}).Run(context.Background(), tt.opts)
			require.ErrorIs(t, err, tt.wantErr)
			require.Equal(t, tt.wantEncode, encoded)
		})
	}
}

func TestRun_EncodesAtMaxQualityIntoWorkingDir(t *testing.T) {
	var gotPath string
	var gotQuality int
	c := &mockCodec{
		decodeFn: func(string) (*pixbuf.Buffer, error) { return pixbuf.New(3, 3), nil },
		encodeFn: func(_ *pixbuf.Buffer, path string, quality int) error {
			gotPath, gotQuality = path, quality
			return nil
		},
	}
	text := &mockText{renderFn: func(_ string, w, h int) (*pixbuf.Buffer, error) { return pixbuf.New(w, h), nil }}

	out, err := New(c, text).Run(context.Background(), Options{
		InputImage:    "img/photo.jpg",
		WatermarkType: model.WMText,
		WatermarkText: "hello",
	})
	require.NoError(t, err)
	require.Equal(t, "photo-with-watermark.jpg", out)
	require.Equal(t, "photo-with-watermark.jpg", gotPath)
	require.Equal(t, OutputQuality, gotQuality)
}

func TestRun_CancelledContextWritesNothing(t *testing.T) {
	encoded := false
	c := &mockCodec{
		decodeFn: func(string) (*pixbuf.Buffer, error) { return pixbuf.New(3, 3), nil },
		encodeFn: func(*pixbuf.Buffer, string, int) error {
			encoded = true
			return nil
		},
	}
	text := &mockText{renderFn: func(_ string, w, h int) (*pixbuf.Buffer, error) { return pixbuf.New(w, h), nil }}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(c, text).Run(ctx, Options{InputImage: "a.png", WatermarkType: model.WMText, WatermarkText: "x"})
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, encoded)
}
