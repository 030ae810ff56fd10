// Package postprocess reduces a supersampled render to its output size.
package postprocess

import (
	"image"

	"golang.org/x/image/draw"
)

// Downsample scales a rendered frame down to width×height with CatmullRom
// filtering. The input is opaque, so no alpha premultiplication is needed.
// Frames already at the target size pass through untouched.
func Downsample(img *image.NRGBA, width, height int) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img
	}
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
