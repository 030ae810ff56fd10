package mathutil

// Ray is a half-line with a unit direction. Directions are normalized at
// construction so intersection code can treat the parameter t as distance.
type Ray struct {
	Origin Vec3
	Dir    Vec3
}

// NewRay builds a ray from an origin and an arbitrary-length direction.
func NewRay(origin, dir Vec3) Ray {
	return Ray{Origin: origin, Dir: dir.Normalize()}
}

// RayFromTo builds a ray from one point toward another.
func RayFromTo(from, to Vec3) Ray {
	return NewRay(from, to.Sub(from))
}

// At returns the point at parametric distance t along the ray.
func (r Ray) At(t float64) Vec3 {
	return r.Origin.Add(r.Dir.Scale(t))
}
