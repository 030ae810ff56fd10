package raster

import (
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/HugoSmits86/nativewebp"
	"github.com/ftrvxmtrx/tga"
)

// Encode writes the image to w in the named format: ppm, png, webp or tga.
func Encode(w io.Writer, format string, img *image.NRGBA) error {
	switch format {
	case "ppm":
		return EncodePPM(w, img)
	case "png":
		return png.Encode(w, img)
	case "webp":
		return nativewebp.Encode(w, img, nil)
	case "tga":
		return tga.Encode(w, img)
	}
	return fmt.Errorf("raster: unknown output format %q", format)
}
