package postprocess

import (
	"image"
	"image/color"
	"testing"
)

func fill(img *image.NRGBA, c color.NRGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
}

func TestDownsampleDimensions(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 8, 6))
	dst := Downsample(src, 4, 3)
	if b := dst.Bounds(); b.Dx() != 4 || b.Dy() != 3 {
		t.Errorf("bounds = %v, want 4x3", b)
	}
}

func TestDownsamplePassthrough(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	if dst := Downsample(src, 4, 3); dst != src {
		t.Error("same-size input should pass through unchanged")
	}
}

func TestDownsampleUniformColor(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	want := color.NRGBA{R: 200, G: 100, B: 50, A: 255}
	fill(src, want)

	dst := Downsample(src, 2, 2)
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			if got := dst.NRGBAAt(x, y); got != want {
				t.Errorf("pixel (%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
}
