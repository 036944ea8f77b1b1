// Package pixbuf provides the in-memory decoded image shared by all pipeline stages
package pixbuf

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Buffer is a row-major 8-bit non-premultiplied RGBA image anchored at (0,0).
// len(Pix) is always 4*width*height.
type Buffer struct {
	img *image.NRGBA
}

// New returns a fully transparent buffer of the given size. Negative sizes are treated as zero.
func New(w, h int) *Buffer {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return &Buffer{img: image.NewNRGBA(image.Rect(0, 0, w, h))}
}

// FromImage copies img into a new buffer.
func FromImage(img image.Image) *Buffer {
	return &Buffer{img: imaging.Clone(img)}
}

func (b *Buffer) Width() int  { return b.img.Rect.Dx() }
func (b *Buffer) Height() int { return b.img.Rect.Dy() }

func (b *Buffer) Bounds() image.Rectangle { return b.img.Rect }

// Image exposes the backing image. Writes through it mutate the buffer.
func (b *Buffer) Image() *image.NRGBA { return b.img }

// Pix returns the raw channel data, 4 bytes per pixel.
func (b *Buffer) Pix() []uint8 { return b.img.Pix }

func (b *Buffer) RGBAAt(x, y int) color.NRGBA { return b.img.NRGBAAt(x, y) }

func (b *Buffer) SetRGBA(x, y int, c color.NRGBA) { b.img.SetNRGBA(x, y, c) }

// Fill paints every pixel with c.
func (b *Buffer) Fill(c color.NRGBA) {
	p := b.img.Pix
	for i := 0; i+3 < len(p); i += 4 {
		p[i+0] = c.R
		p[i+1] = c.G
		p[i+2] = c.B
		p[i+3] = c.A
	}
}

func (b *Buffer) Clone() *Buffer {
	return &Buffer{img: imaging.Clone(b.img)}
}

// Replace copies the pixels of img into the buffer in place.
// img must have the same dimensions; imaging results always do.
func (b *Buffer) Replace(img *image.NRGBA) bool {
	if img == nil || img.Rect.Dx() != b.Width() || img.Rect.Dy() != b.Height() {
		return false
	}
	if img.Stride == b.img.Stride && img.Rect.Min == (image.Point{}) {
		copy(b.img.Pix, img.Pix)
		return true
	}
	w := b.Width() * 4
	for y := 0; y < b.Height(); y++ {
		src := img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y)
		copy(b.img.Pix[y*b.img.Stride:y*b.img.Stride+w], img.Pix[src:src+w])
	}
	return true
}
