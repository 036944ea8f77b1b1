package imageproc

import (
	"image"
	"image/color"
	"testing"

	"github.com/UnendingLoop/WatermarkManager/internal/model"
	"github.com/UnendingLoop/WatermarkManager/internal/pixbuf"
	"github.com/stretchr/testify/require"
)

func filled(w, h int, c color.NRGBA) *pixbuf.Buffer {
	b := pixbuf.New(w, h)
	b.Fill(c)
	return b
}

// patterned returns a buffer with varied colors and alpha values, including fully transparent pixels.
func patterned(w, h int) *pixbuf.Buffer {
	b := pixbuf.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			b.SetRGBA(x, y, color.NRGBA{
				R: uint8(x * 37),
				G: uint8(y * 53),
				B: uint8((x + y) * 11),
				A: uint8((x*y*29 + 7*x) % 256),
			})
		}
	}
	return b
}

func TestCenterOffset(t *testing.T) {
	tests := []struct {
		name    string
		base    image.Rectangle
		overlay image.Rectangle
		want    image.Point
	}{
		{name: "regular", base: image.Rect(0, 0, 800, 600), overlay: image.Rect(0, 0, 200, 100), want: image.Pt(300, 250)},
		{name: "same size", base: image.Rect(0, 0, 50, 40), overlay: image.Rect(0, 0, 50, 40), want: image.Pt(0, 0)},
		{name: "odd difference", base: image.Rect(0, 0, 11, 11), overlay: image.Rect(0, 0, 4, 4), want: image.Pt(3, 3)},
		{name: "overlay larger", base: image.Rect(0, 0, 10, 10), overlay: image.Rect(0, 0, 13, 14), want: image.Pt(-2, -2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, CenterOffset(tt.base, tt.overlay))
		})
	}
}

func TestComposite_TransparentOverlayIsNoop(t *testing.T) {
	offsets := []image.Point{{0, 0}, {2, 3}, {-4, -1}, {7, 7}}

	for _, off := range offsets {
		base := patterned(8, 8)
		want := base.Clone()

		_, err := Composite(base, pixbuf.New(5, 5), off, SourceOver, 1)
		require.NoError(t, err)
		require.Equal(t, want.Pix(), base.Pix(), "offset %v", off)
	}
}

func TestComposite_OpaqueOverlayReplaces(t *testing.T) {
	red := color.NRGBA{R: 255, A: 255}
	blue := color.NRGBA{B: 255, A: 255}

	base := filled(6, 6, red)
	res, err := Composite(base, filled(2, 3, blue), image.Pt(1, 2), SourceOver, 1)
	require.NoError(t, err)
	require.Same(t, base, res)

	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			inside := x >= 1 && x < 3 && y >= 2 && y < 5
			if inside {
				require.Equal(t, blue, base.RGBAAt(x, y), "(%d,%d)", x, y)
			} else {
				require.Equal(t, red, base.RGBAAt(x, y), "(%d,%d)", x, y)
			}
		}
	}
}

func TestComposite_OpaqueOverlayOverTranslucentBase(t *testing.T) {
	base := patterned(4, 4)
	overlay := filled(4, 4, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	_, err := Composite(base, overlay, image.Pt(0, 0), SourceOver, 1)
	require.NoError(t, err)
	require.Equal(t, overlay.Pix(), base.Pix())
}

func TestComposite_Clipping(t *testing.T) {
	white := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	green := color.NRGBA{G: 255, A: 255}

	tests := []struct {
		name    string
		offset  image.Point
		covered func(x, y int) bool
	}{
		{
			name:    "negative offset",
			offset:  image.Pt(-2, -2),
			covered: func(x, y int) bool { return x < 2 && y < 2 },
		},
		{
			name:    "past the right edge",
			offset:  image.Pt(2, 0),
			covered: func(x, y int) bool { return x >= 2 },
		},
		{
			name:    "completely outside",
			offset:  image.Pt(10, 10),
			covered: func(x, y int) bool { return false },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := filled(3, 3, white)
			_, err := Composite(base, filled(4, 4, green), tt.offset, SourceOver, 1)
			require.NoError(t, err)

			for y := 0; y < 3; y++ {
				for x := 0; x < 3; x++ {
					want := white
					if tt.covered(x, y) {
						want = green
					}
					require.Equal(t, want, base.RGBAAt(x, y), "(%d,%d)", x, y)
				}
			}
		})
	}
}

func TestComposite_Opacity(t *testing.T) {
	tests := []struct {
		name    string
		opacity float64
		want    color.NRGBA
	}{
		{name: "half", opacity: ImageOpacity, want: color.NRGBA{R: 128, G: 128, B: 128, A: 255}},
		{name: "full", opacity: TextOpacity, want: color.NRGBA{A: 255}},
		{name: "zero", opacity: 0, want: color.NRGBA{R: 255, G: 255, B: 255, A: 255}},
		{name: "clamped above one", opacity: 3, want: color.NRGBA{A: 255}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := filled(1, 1, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
			_, err := Composite(base, filled(1, 1, color.NRGBA{A: 255}), image.Pt(0, 0), SourceOver, tt.opacity)
			require.NoError(t, err)
			require.Equal(t, tt.want, base.RGBAAt(0, 0))
		})
	}
}

func TestComposite_AlphaAccumulates(t *testing.T) {
	base := filled(1, 1, color.NRGBA{})
	overlay := filled(1, 1, color.NRGBA{R: 200, G: 100, B: 50, A: 255})

	_, err := Composite(base, overlay, image.Pt(0, 0), SourceOver, 0.5)
	require.NoError(t, err)
	require.Equal(t, color.NRGBA{R: 200, G: 100, B: 50, A: 128}, base.RGBAAt(0, 0))
}

func TestComposite_Errors(t *testing.T) {
	_, err := Composite(filled(2, 2, color.NRGBA{}), filled(1, 1, color.NRGBA{}), image.Pt(0, 0), BlendMode(42), 1)
	require.ErrorIs(t, err, model.ErrUnsupportedBlend)

	_, err = Composite(nil, filled(1, 1, color.NRGBA{}), image.Pt(0, 0), SourceOver, 1)
	require.Error(t, err)

	_, err = Composite(filled(1, 1, color.NRGBA{}), nil, image.Pt(0, 0), SourceOver, 1)
	require.Error(t, err)
}
