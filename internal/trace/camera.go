package trace

import (
	"math"

	"crt-renderer/internal/mathutil"
	"crt-renderer/internal/scene"
)

// Camera maps screen coordinates to primary rays through a focal plane at
// distance Focus along the gaze direction.
type Camera struct {
	pos    mathutil.Vec3
	center mathutil.Vec3
	dx, dy mathutil.Vec3
}

// NewCamera derives the focal-plane basis from the parsed camera values.
// When the scene gives a field of view instead of explicit plane
// dimensions, the plane size follows from it and the output aspect ratio.
func NewCamera(cfg scene.Camera, aspect float64) Camera {
	gaze := mathutil.RayFromTo(cfg.Pos, cfg.LookAt)
	center := gaze.At(cfg.Focus)
	right := gaze.Dir.Cross(cfg.Up).Normalize()
	up := right.Cross(gaze.Dir).Normalize()

	w, h := cfg.Width, cfg.Height
	if cfg.FOV > 0 {
		h = 2 * cfg.Focus * math.Tan(cfg.FOV*math.Pi/360)
		w = h * aspect
	}
	return Camera{
		pos:    cfg.Pos,
		center: center,
		dx:     right.Scale(w / 2),
		dy:     up.Scale(h / 2),
	}
}

// Cast returns the ray through screen position (sx, sy), each in [-1, 1]
// with x growing right and y growing up.
func (c Camera) Cast(sx, sy float64) mathutil.Ray {
	to := c.center.Add(c.dx.Scale(sx)).Add(c.dy.Scale(sy))
	return mathutil.RayFromTo(c.pos, to)
}
