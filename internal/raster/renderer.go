package raster

import (
	"crt-renderer/internal/scene"
	"crt-renderer/internal/trace"
)

// Render fills the frame buffer by casting one ray through the center of
// every pixel, top row first. Single-threaded; the tracer does not
// allocate, so the arena is untouched during the loop.
func Render(m *scene.Model, fb *FrameBuffer, maxDepth int) {
	w, h := fb.Width(), fb.Height()
	cam := trace.NewCamera(m.Camera, float64(w)/float64(h))
	tr := trace.New(m, maxDepth)
	pix := fb.Pix()

	fw, fh := float64(w), float64(h)
	for y := 0; y < h; y++ {
		sy := -(2*(float64(y)+0.5) - fh) / fh
		row := pix[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			sx := (2*(float64(x)+0.5) - fw) / fw
			c := tr.Trace(cam.Cast(sx, sy), 0)
			row[x] = ToPixel(c)
		}
	}
}
