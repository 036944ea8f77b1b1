package imageproc

import (
	"image"
	"testing"

	"github.com/UnendingLoop/WatermarkManager/internal/model"
	"github.com/UnendingLoop/WatermarkManager/internal/pixbuf"
	"github.com/stretchr/testify/require"
)

func newRasterizer(t *testing.T) *TextRasterizer {
	t.Helper()

	r, err := NewTextRasterizer()
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	return r
}

// coverage returns the bounding box of pixels with non-zero alpha.
func coverage(b *pixbuf.Buffer) image.Rectangle {
	var box image.Rectangle
	for y := 0; y < b.Height(); y++ {
		for x := 0; x < b.Width(); x++ {
			if b.RGBAAt(x, y).A == 0 {
				continue
			}
			box = box.Union(image.Rect(x, y, x+1, y+1))
		}
	}
	return box
}

func TestRender_EmptyText(t *testing.T) {
	r := newRasterizer(t)

	b, err := r.Render("", 30, 20, AlignCenter, AlignMiddle)
	require.NoError(t, err)
	require.Equal(t, 30, b.Width())
	require.Equal(t, 20, b.Height())
	require.True(t, coverage(b).Empty())
}

func TestRender_InvalidBox(t *testing.T) {
	r := newRasterizer(t)

	_, err := r.Render("text", 0, 10, AlignLeft, AlignTop)
	require.ErrorIs(t, err, model.ErrRaster)

	_, err = r.Render("text", 10, -1, AlignLeft, AlignTop)
	require.ErrorIs(t, err, model.ErrRaster)
}

func TestRender_BlackInkOnly(t *testing.T) {
	r := newRasterizer(t)

	b, err := r.Render("A", 100, 60, AlignCenter, AlignMiddle)
	require.NoError(t, err)
	require.False(t, coverage(b).Empty())

	for y := 0; y < b.Height(); y++ {
		for x := 0; x < b.Width(); x++ {
			c := b.RGBAAt(x, y)
			if c.A == 0 {
				continue
			}
			require.Zero(t, c.R)
			require.Zero(t, c.G)
			require.Zero(t, c.B)
		}
	}
}

func TestRender_CenteredMiddle(t *testing.T) {
	r := newRasterizer(t)

	b, err := r.Render("HH", 200, 120, AlignCenter, AlignMiddle)
	require.NoError(t, err)

	box := coverage(b)
	left := box.Min.X
	right := b.Width() - box.Max.X
	require.InDelta(t, left, right, 6)

	top := box.Min.Y
	bottom := b.Height() - box.Max.Y
	require.InDelta(t, top, bottom, 16)
}

func TestRender_Alignment(t *testing.T) {
	r := newRasterizer(t)

	tests := []struct {
		name  string
		ax    HAlign
		ay    VAlign
		check func(t *testing.T, box image.Rectangle)
	}{
		{
			name: "left top",
			ax:   AlignLeft,
			ay:   AlignTop,
			check: func(t *testing.T, box image.Rectangle) {
				require.Less(t, box.Min.X, 8)
				require.Less(t, box.Min.Y, 16)
			},
		},
		{
			name: "right bottom",
			ax:   AlignRight,
			ay:   AlignBottom,
			check: func(t *testing.T, box image.Rectangle) {
				require.Greater(t, box.Max.X, 300-8)
				require.Greater(t, box.Max.Y, 200-20)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := r.Render("Mark", 300, 200, tt.ax, tt.ay)
			require.NoError(t, err)
			tt.check(t, coverage(b))
		})
	}
}

func TestRender_WrapsWords(t *testing.T) {
	r := newRasterizer(t)

	wide, err := r.Render("aaa bbb", 400, 200, AlignLeft, AlignTop)
	require.NoError(t, err)
	narrow, err := r.Render("aaa bbb", 80, 200, AlignLeft, AlignTop)
	require.NoError(t, err)
	newline, err := r.Render("aaa\nbbb", 400, 200, AlignLeft, AlignTop)
	require.NoError(t, err)

	require.Greater(t, coverage(narrow).Dy(), coverage(wide).Dy()+20)
	require.Equal(t, coverage(newline).Dy(), coverage(narrow).Dy())
}

func TestRender_OverflowIsClipped(t *testing.T) {
	r := newRasterizer(t)

	b, err := r.Render("a watermark much wider than its box", 12, 8, AlignCenter, AlignMiddle)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 12, 8), b.Bounds())
}
