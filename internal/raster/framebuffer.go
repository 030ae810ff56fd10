// Package raster holds the arena-backed frame buffer, the pixel render
// loop and the raster output encoders.
package raster

import (
	"bufio"
	"fmt"
	"image"
	"io"

	"crt-renderer/internal/arena"
	"crt-renderer/internal/scene"
)

// Pixel is one 8-bit RGB sample.
type Pixel struct {
	R, G, B uint8
}

// FrameBuffer is a flat, row-major pixel array of fixed size width×height,
// reserved once from the arena before rendering begins.
type FrameBuffer struct {
	width  int
	height int
	pix    arena.Buffer[Pixel]
	data   []Pixel
}

// NewFrameBuffer reserves a zeroed width×height pixel array.
func NewFrameBuffer(a *arena.Arena, width, height int) (*FrameBuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("raster: invalid dimensions %dx%d", width, height)
	}
	pix, err := arena.NewBufferLen[Pixel](a, width*height)
	if err != nil {
		return nil, fmt.Errorf("raster: frame buffer %dx%d: %w", width, height, err)
	}
	return &FrameBuffer{width: width, height: height, pix: pix, data: pix.Slice()}, nil
}

func (fb *FrameBuffer) Width() int  { return fb.width }
func (fb *FrameBuffer) Height() int { return fb.height }

// Set writes the pixel at (x, y); coordinates outside the raster fail
// with the buffer's ErrIndexOutOfRange.
func (fb *FrameBuffer) Set(x, y int, p Pixel) error {
	if x < 0 || x >= fb.width {
		return fmt.Errorf("raster: x %d of %d: %w", x, fb.width, arena.ErrIndexOutOfRange)
	}
	return fb.pix.Set(y*fb.width+x, p)
}

// At reads the pixel at (x, y).
func (fb *FrameBuffer) At(x, y int) (Pixel, error) {
	if x < 0 || x >= fb.width {
		return Pixel{}, fmt.Errorf("raster: x %d of %d: %w", x, fb.width, arena.ErrIndexOutOfRange)
	}
	return fb.pix.Get(y*fb.width + x)
}

// Pix returns the row-major pixel slice. The buffer never grows, so the
// slice stays valid for the frame buffer's lifetime.
func (fb *FrameBuffer) Pix() []Pixel { return fb.data }

// ToPixel clamps a shaded color into an 8-bit pixel.
func ToPixel(c scene.Color) Pixel {
	return Pixel{R: clamp8(c.R), G: clamp8(c.G), B: clamp8(c.B)}
}

func clamp8(v float64) uint8 {
	v = v*255.0 + 0.5
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// NRGBA copies the frame buffer into an opaque NRGBA image for the
// encoders and the downsampler.
func (fb *FrameBuffer) NRGBA() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, fb.width, fb.height))
	for y := 0; y < fb.height; y++ {
		row := fb.data[y*fb.width : (y+1)*fb.width]
		for x, p := range row {
			i := img.PixOffset(x, y)
			img.Pix[i] = p.R
			img.Pix[i+1] = p.G
			img.Pix[i+2] = p.B
			img.Pix[i+3] = 0xFF
		}
	}
	return img
}

// EncodePPM writes a plain-text P3 pixel map, one image row per text line.
func EncodePPM(w io.Writer, img *image.NRGBA) error {
	bw := bufio.NewWriter(w)
	b := img.Bounds()
	if _, err := fmt.Fprintf(bw, "P3\n%d %d\n255\n", b.Dx(), b.Dy()); err != nil {
		return err
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			i := img.PixOffset(x, y)
			sep := " "
			if x == b.Max.X-1 {
				sep = "\n"
			}
			if _, err := fmt.Fprintf(bw, "%3d %3d %3d%s",
				img.Pix[i], img.Pix[i+1], img.Pix[i+2], sep); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}
