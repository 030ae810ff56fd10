package scene

// Color is a linear RGB triple. Components are non-negative and may exceed
// 1.0 during shading; clamping happens only at raster conversion.
type Color struct {
	R, G, B float64
}

func (c Color) Add(d Color) Color {
	return Color{c.R + d.R, c.G + d.G, c.B + d.B}
}

// Mul is the component-wise product, used to filter light through a
// surface color.
func (c Color) Mul(d Color) Color {
	return Color{c.R * d.R, c.G * d.G, c.B * d.B}
}

func (c Color) Scale(s float64) Color {
	return Color{c.R * s, c.G * s, c.B * s}
}
