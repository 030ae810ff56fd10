package trace

import (
	"math"
	"testing"

	"crt-renderer/internal/arena"
	"crt-renderer/internal/mathutil"
	"crt-renderer/internal/scene"
)

func parseScene(t *testing.T, input string) *scene.Model {
	t.Helper()
	m, err := scene.Parse(arena.New(make([]byte, 1<<20)), input)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return m
}

func colorNear(a, b scene.Color, tol float64) bool {
	return math.Abs(a.R-b.R) < tol && math.Abs(a.G-b.G) < tol && math.Abs(a.B-b.B) < tol
}

func TestSphereHitDistance(t *testing.T) {
	// A ray aimed at a sphere of radius r from distance d along its axis
	// hits at t = d - r.
	cases := []struct{ d, r float64 }{
		{10, 1},
		{5, 2},
		{100, 0.5},
	}
	for _, c := range cases {
		ray := mathutil.NewRay(mathutil.Vec3{0, 0, c.d}, mathutil.Vec3{0, 0, -1})
		ht, n, ok := sphereHit(mathutil.Vec3{}, c.r, ray, math.Inf(1))
		if !ok {
			t.Fatalf("d=%v r=%v: no hit", c.d, c.r)
		}
		if math.Abs(ht-(c.d-c.r)) > 1e-9 {
			t.Errorf("d=%v r=%v: t = %v, want %v", c.d, c.r, ht, c.d-c.r)
		}
		if n.Normalize()[2] < 0.999 {
			t.Errorf("d=%v r=%v: normal %v does not face the ray", c.d, c.r, n)
		}
	}
}

func TestSphereMiss(t *testing.T) {
	ray := mathutil.NewRay(mathutil.Vec3{0, 5, 10}, mathutil.Vec3{0, 0, -1})
	if _, _, ok := sphereHit(mathutil.Vec3{}, 1, ray, math.Inf(1)); ok {
		t.Error("ray passing beside the sphere reported a hit")
	}
}

func TestSphereBehindRay(t *testing.T) {
	ray := mathutil.NewRay(mathutil.Vec3{0, 0, -10}, mathutil.Vec3{0, 0, -1})
	if _, _, ok := sphereHit(mathutil.Vec3{}, 1, ray, math.Inf(1)); ok {
		t.Error("sphere behind the ray origin reported a hit")
	}
}

func TestPlaneHit(t *testing.T) {
	ray := mathutil.NewRay(mathutil.Vec3{0, 3, 0}, mathutil.Vec3{0, -1, 0})
	ht, n, ok := planeHit(mathutil.Vec3{}, mathutil.Vec3{0, 1, 0}, ray, math.Inf(1))
	if !ok || math.Abs(ht-3) > 1e-9 {
		t.Fatalf("plane hit t = %v, ok = %v, want 3", ht, ok)
	}
	if n != (mathutil.Vec3{0, 1, 0}) {
		t.Errorf("plane normal = %v", n)
	}
}

func TestTriangleHitBarycentric(t *testing.T) {
	a := mathutil.Vec3{0, 0, 0}
	b := mathutil.Vec3{2, 0, 0}
	c := mathutil.Vec3{0, 2, 0}
	n := mathutil.Vec3{0, 0, 1}

	inside := mathutil.NewRay(mathutil.Vec3{0.5, 0.5, 5}, mathutil.Vec3{0, 0, -1})
	ht, _, ok := triangleHit(a, b, c, n, n, n, inside, math.Inf(1))
	if !ok || math.Abs(ht-5) > 1e-9 {
		t.Errorf("inside hit t = %v, ok = %v, want 5", ht, ok)
	}

	outside := mathutil.NewRay(mathutil.Vec3{1.5, 1.5, 5}, mathutil.Vec3{0, 0, -1})
	if _, _, ok := triangleHit(a, b, c, n, n, n, outside, math.Inf(1)); ok {
		t.Error("ray outside the triangle reported a hit")
	}
}

func TestRefract(t *testing.T) {
	n := mathutil.Vec3{0, 1, 0}
	down := mathutil.Vec3{0, -1, 0}

	// Normal incidence passes straight through for any ratio.
	if d, ok := refract(down, n, 1.0/1.5); !ok || math.Abs(d[1]+1) > 1e-9 {
		t.Errorf("normal incidence refract = %v, ok = %v", d, ok)
	}

	// Grazing exit from a dense medium reflects internally.
	grazing := mathutil.Vec3{0.99, -0.14, 0}.Normalize()
	if _, ok := refract(grazing, n, 1.5); ok {
		t.Error("expected total internal reflection at grazing incidence")
	}
}

func TestTraceMissReturnsBackground(t *testing.T) {
	m := parseScene(t, `background #336699
material m { color #ffffff }
sphere { pos 0,0,-100 radius 1 material m }`)
	tr := New(m, 4)
	c := tr.Trace(mathutil.NewRay(mathutil.Vec3{}, mathutil.Vec3{0, 1, 0}), 0)
	if !colorNear(c, m.Background, 1e-12) {
		t.Errorf("miss color = %v, want background %v", c, m.Background)
	}
}

func TestHardShadowContributesNothing(t *testing.T) {
	// A small sphere sits exactly between the light and the plane point
	// under test. The lit scene differs; the shadowed point matches an
	// identical scene with no light at all.
	occluded := `
material white { color #ffffff diffuse 1 }
material dark  { color #101010 diffuse 1 }
plane  { pos 0,0,0 normal 0,1,0 material white }
sphere { pos 0,5,0 radius 1 material dark }
light  { pos 0,10,0 color #ffffff }
`
	unlit := `
material white { color #ffffff diffuse 1 }
material dark  { color #101010 diffuse 1 }
plane  { pos 0,0,0 normal 0,1,0 material white }
sphere { pos 0,5,0 radius 1 material dark }
`
	down := mathutil.NewRay(mathutil.Vec3{0, 3, 0}, mathutil.Vec3{0, -1, 0})

	shadowed := New(parseScene(t, occluded), 4).Trace(down, 0)
	ambient := New(parseScene(t, unlit), 4).Trace(down, 0)
	if shadowed != ambient {
		t.Errorf("shadowed point %v != ambient-only %v; light leaked through occluder",
			shadowed, ambient)
	}

	// Sanity: away from the shadow the light does contribute.
	aside := mathutil.NewRay(mathutil.Vec3{4, 3, 0}, mathutil.Vec3{0, -1, 0})
	lit := New(parseScene(t, occluded), 4).Trace(aside, 0)
	unlitAside := New(parseScene(t, unlit), 4).Trace(aside, 0)
	if lit == unlitAside {
		t.Error("unshadowed point shows no light contribution")
	}
}

func TestRecursionDepthBound(t *testing.T) {
	// Two mirrors facing each other: deeper recursion blends in more of
	// the opposing color, and no depth loops forever.
	mirrors := `
background #000000
material red  { color #660000 reflect 0.5 }
material blue { color #000066 reflect 0.5 }
sphere { pos 0,0,-10 radius 3 material red }
sphere { pos 0,0,10  radius 3 material blue }
`
	m := parseScene(t, mirrors)
	ray := mathutil.NewRay(mathutil.Vec3{0, 0, 0}, mathutil.Vec3{0, 0, -1})

	c2 := New(m, 2).Trace(ray, 0)
	c3 := New(m, 3).Trace(ray, 0)
	if c2 == c3 {
		t.Error("raising MaxDepth from 2 to 3 did not change the result")
	}

	c10a := New(m, 10).Trace(ray, 0)
	c10b := New(m, 10).Trace(ray, 0)
	if c10a != c10b {
		t.Error("tracing is not deterministic")
	}
}

func TestTransparentSphereShowsBackground(t *testing.T) {
	// A fully transmissive sphere with ior 1 is invisible: rays continue
	// to the background (two bounces, entry and exit).
	m := parseScene(t, `
background #4080c0
material glass { color #000000 transmit 1 ior 1 }
sphere { pos 0,0,-5 radius 1 material glass }
`)
	tr := New(m, 4)
	c := tr.Trace(mathutil.NewRay(mathutil.Vec3{}, mathutil.Vec3{0, 0, -1}), 0)
	if !colorNear(c, m.Background, 1e-9) {
		t.Errorf("through-glass color = %v, want background %v", c, m.Background)
	}
}

func TestMeshMatchesTriangles(t *testing.T) {
	// The same two-triangle square, once as a mesh (BVH path) and once
	// as plain triangle primitives (linear scan), must shade rays
	// identically.
	meshScene := `
background #202020
light { pos 0,0,5 color #ffffff }
material m { color #c08040 diffuse 0.9 }
mesh { material m data {
  v -1,-1,0  v 1,-1,0  v 1,1,0  v -1,1,0
  vn 0,0,1
  f 1/1 2/1 3/1
  f 1/1 3/1 4/1
} }
`
	triScene := `
background #202020
light { pos 0,0,5 color #ffffff }
material m { color #c08040 diffuse 0.9 }
triangle { a -1,-1,0 b 1,-1,0 c 1,1,0 material m }
triangle { a -1,-1,0 b 1,1,0 c -1,1,0 material m }
`
	meshTr := New(parseScene(t, meshScene), 4)
	triTr := New(parseScene(t, triScene), 4)

	for i := 0; i < 9; i++ {
		for j := 0; j < 9; j++ {
			x := -1.2 + 0.3*float64(i)
			y := -1.2 + 0.3*float64(j)
			ray := mathutil.NewRay(mathutil.Vec3{x, y, 5}, mathutil.Vec3{0, 0, -1})
			cm := meshTr.Trace(ray, 0)
			ct := triTr.Trace(ray, 0)
			if !colorNear(cm, ct, 1e-9) {
				t.Fatalf("ray (%v,%v): mesh %v != triangles %v", x, y, cm, ct)
			}
		}
	}
}
