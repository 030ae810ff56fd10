// Package trace implements the recursive ray-scene shading engine. A
// Tracer is a pure function of the immutable scene model: no method here
// allocates, so rendering cannot exhaust the arena after parsing is done.
package trace

import (
	"math"

	"crt-renderer/internal/mathutil"
	"crt-renderer/internal/scene"
)

const (
	// tEps rejects intersections at the ray origin itself.
	tEps = 1e-9
	// surfaceOffset pushes secondary ray origins off the surface to avoid
	// shadow acne.
	surfaceOffset = 1e-4
)

// hitRecord is the ephemeral result of an intersection search. It only
// ever lives on the stack.
type hitRecord struct {
	t   float64
	n   mathutil.Vec3
	mat int32
}

// Tracer holds flat views of the scene buffers, taken once after the
// model stops changing.
type Tracer struct {
	background scene.Color
	prims      []scene.Primitive
	mats       []scene.Material
	lights     []scene.Light
	meshes     []scene.Mesh
	verts      []mathutil.Vec3
	norms      []mathutil.Vec3
	faces      []scene.Face
	nodes      []scene.BVHNode
	maxDepth   int
}

// New prepares a tracer for a fully parsed model. maxDepth bounds the
// reflection/refraction recursion.
func New(m *scene.Model, maxDepth int) *Tracer {
	return &Tracer{
		background: m.Background,
		prims:      m.Primitives.Slice(),
		mats:       m.Materials.Slice(),
		lights:     m.Lights.Slice(),
		meshes:     m.Meshes.Slice(),
		verts:      m.Verts.Slice(),
		norms:      m.Normals.Slice(),
		faces:      m.Faces.Slice(),
		nodes:      m.Nodes.Slice(),
		maxDepth:   maxDepth,
	}
}

// Trace returns the color seen along r. depth counts bounces taken so
// far; callers start at zero.
func (t *Tracer) Trace(r mathutil.Ray, depth int) scene.Color {
	h, ok := t.intersect(r, math.Inf(1))
	if !ok {
		return t.background
	}
	mat := t.mats[h.mat]

	// Shading normal faces the incoming ray.
	front := r.Dir.Dot(h.n) < 0
	sn := h.n
	if !front {
		sn = h.n.Neg()
	}
	p := r.At(h.t)
	pOut := p.Add(sn.Scale(surfaceOffset))

	// Ambient base plus per-light Lambertian terms, each gated by a hard
	// shadow ray: an occluded light contributes exactly nothing.
	col := mat.Color
	for _, l := range t.lights {
		lr := mathutil.RayFromTo(pOut, l.Pos)
		distSq := l.Pos.Sub(pOut).LenSquared()
		if sh, hit := t.intersect(lr, math.Inf(1)); hit && sh.t*sh.t < distSq {
			continue
		}
		k := lr.Dir.Dot(sn)
		if k <= 0 {
			continue
		}
		col = col.Add(mat.Color.Mul(l.Color).Scale(k * mat.Diffuse))
	}

	if depth >= t.maxDepth {
		return col
	}

	if mat.Reflect > 0 {
		rc := t.Trace(mathutil.NewRay(pOut, reflect(r.Dir, sn)), depth+1)
		col = col.Scale(1 - mat.Reflect).Add(rc.Scale(mat.Reflect))
	}
	if mat.Transmit > 0 {
		ratio := mat.IOR
		if front {
			ratio = 1 / mat.IOR
		}
		var tc scene.Color
		if rd, refracted := refract(r.Dir, sn, ratio); refracted {
			pIn := p.Sub(sn.Scale(surfaceOffset))
			tc = t.Trace(mathutil.NewRay(pIn, rd), depth+1)
		} else {
			// Total internal reflection: the transmitted energy bounces
			// back instead.
			tc = t.Trace(mathutil.NewRay(pOut, reflect(r.Dir, sn)), depth+1)
		}
		col = col.Scale(1 - mat.Transmit).Add(tc.Scale(mat.Transmit))
	}
	return col
}

// intersect scans every primitive and keeps the nearest hit with
// tEps < t < maxT.
func (t *Tracer) intersect(r mathutil.Ray, maxT float64) (hitRecord, bool) {
	best := hitRecord{t: maxT}
	found := false
	for i := range t.prims {
		p := &t.prims[i]
		var (
			ht float64
			n  mathutil.Vec3
			ok bool
		)
		switch p.Kind {
		case scene.KindSphere:
			ht, n, ok = sphereHit(p.A, p.Radius, r, best.t)
		case scene.KindPlane:
			ht, n, ok = planeHit(p.A, p.B, r, best.t)
		case scene.KindTriangle:
			ht, n, ok = triangleHit(p.A, p.B, p.C, p.NA, p.NB, p.NC, r, best.t)
		case scene.KindMesh:
			ht, n, ok = t.meshHit(&t.meshes[p.Mesh], r, best.t)
		}
		if ok {
			best = hitRecord{t: ht, n: n, mat: p.Material}
			found = true
		}
	}
	if found {
		best.n = best.n.Normalize()
	}
	return best, found
}

func sphereHit(center mathutil.Vec3, radius float64, r mathutil.Ray, maxT float64) (float64, mathutil.Vec3, bool) {
	o := r.Origin.Sub(center)
	k := r.Dir.Dot(o)
	c := o.Dot(o) - radius*radius

	disc := k*k - c
	if disc < 0 {
		return 0, mathutil.Vec3{}, false
	}
	sq := math.Sqrt(disc)
	t := -k - sq
	if t <= tEps {
		t = -k + sq
		if t <= tEps {
			return 0, mathutil.Vec3{}, false
		}
	}
	if t >= maxT {
		return 0, mathutil.Vec3{}, false
	}
	return t, r.At(t).Sub(center), true
}

func planeHit(point, normal mathutil.Vec3, r mathutil.Ray, maxT float64) (float64, mathutil.Vec3, bool) {
	o := r.Origin.Sub(point)
	t := -o.Dot(normal) / r.Dir.Dot(normal)
	if !(t > tEps && t < maxT) {
		return 0, mathutil.Vec3{}, false
	}
	return t, normal, true
}

// triangleHit solves a + alpha*ab + beta*ac = origin + t*dir and
// interpolates the vertex normals barycentrically.
func triangleHit(a, b, c, na, nb, nc mathutil.Vec3, r mathutil.Ray, maxT float64) (float64, mathutil.Vec3, bool) {
	ab := b.Sub(a)
	ac := c.Sub(a)
	n := ab.Cross(ac)

	t := a.Sub(r.Origin).Dot(n) / r.Dir.Dot(n)
	if !(t > tEps && t < maxT) {
		return 0, mathutil.Vec3{}, false
	}
	point := r.At(t).Sub(a)

	ortAC := ac.Cross(n)
	ortAB := ab.Cross(n)
	alpha := point.Dot(ortAC) / ab.Dot(ortAC)
	beta := point.Dot(ortAB) / ac.Dot(ortAB)
	gamma := 1 - alpha - beta
	if !(alpha > 0 && alpha < 1 && beta > 0 && beta < 1 && gamma > 0 && gamma < 1) {
		return 0, mathutil.Vec3{}, false
	}
	sn := na.Scale(gamma).Add(nb.Scale(alpha)).Add(nc.Scale(beta))
	return t, sn, true
}

// meshHit walks the mesh's BVH with a fixed-size stack; the tree is
// median-balanced so its depth is far below the stack bound.
func (t *Tracer) meshHit(m *scene.Mesh, r mathutil.Ray, maxT float64) (float64, mathutil.Vec3, bool) {
	if m.Root < 0 {
		return 0, mathutil.Vec3{}, false
	}
	inv := mathutil.Vec3{1 / r.Dir[0], 1 / r.Dir[1], 1 / r.Dir[2]}

	var stack [64]int32
	stack[0] = m.Root
	sp := 1

	best := maxT
	var bn mathutil.Vec3
	found := false
	for sp > 0 {
		sp--
		node := &t.nodes[stack[sp]]
		if !slabHit(node, r, inv, best) {
			continue
		}
		if node.Face >= 0 {
			f := t.faces[node.Face]
			ht, n, ok := triangleHit(
				t.verts[f.V[0]], t.verts[f.V[1]], t.verts[f.V[2]],
				t.norms[f.N[0]], t.norms[f.N[1]], t.norms[f.N[2]],
				r, best)
			if ok {
				best, bn, found = ht, n, true
			}
			continue
		}
		stack[sp] = node.Left
		stack[sp+1] = node.Right
		sp += 2
	}
	if !found {
		return 0, mathutil.Vec3{}, false
	}
	return best, bn, true
}

func slabHit(n *scene.BVHNode, r mathutil.Ray, inv mathutil.Vec3, maxT float64) bool {
	t0, t1 := tEps, maxT
	for a := 0; a < 3; a++ {
		lo := (n.Lo[a] - r.Origin[a]) * inv[a]
		hi := (n.Hi[a] - r.Origin[a]) * inv[a]
		if lo > hi {
			lo, hi = hi, lo
		}
		if lo > t0 {
			t0 = lo
		}
		if hi < t1 {
			t1 = hi
		}
		if t1 < t0 {
			return false
		}
	}
	return true
}

func reflect(v, n mathutil.Vec3) mathutil.Vec3 {
	return v.Sub(n.Scale(2 * v.Dot(n)))
}

// refract applies Snell's law; the second return is false under total
// internal reflection.
func refract(v, n mathutil.Vec3, ratio float64) (mathutil.Vec3, bool) {
	cos := math.Min(v.Neg().Dot(n), 1)
	sin := math.Sqrt(1 - cos*cos)
	if ratio*sin > 1 {
		return mathutil.Vec3{}, false
	}
	perp := v.Add(n.Scale(cos)).Scale(ratio)
	par := n.Scale(-math.Sqrt(math.Abs(1 - perp.LenSquared())))
	return perp.Add(par), true
}
