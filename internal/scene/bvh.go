package scene

import (
	"sort"

	"crt-renderer/internal/arena"
	"crt-renderer/internal/mathutil"
)

// bvhPad fattens leaf boxes so axis-aligned flat triangles keep a
// non-degenerate slab.
const bvhPad = 1e-9

// buildBVH constructs a bounding volume hierarchy for every mesh in the
// model, after parsing and before any rendering. Scratch storage comes
// from the arena and is abandoned when the build finishes.
func buildBVH(a *arena.Arena, m *Model) error {
	meshes := m.Meshes.Slice()
	for i := range meshes {
		if err := buildMeshBVH(a, m, &meshes[i]); err != nil {
			return err
		}
	}
	return nil
}

func buildMeshBVH(a *arena.Arena, m *Model, mesh *Mesh) error {
	n := int(mesh.FaceCount)
	if n == 0 {
		mesh.Root = -1
		return nil
	}

	orderBuf, err := arena.NewBufferLen[int32](a, n)
	if err != nil {
		return err
	}
	centBuf, err := arena.NewBufferLen[mathutil.Vec3](a, n)
	if err != nil {
		return err
	}

	b := &bvhBuilder{
		m:     m,
		verts: m.Verts.Slice(),
		faces: m.Faces.Slice(),
		order: orderBuf.Slice(),
		cent:  centBuf.Slice(),
	}
	for i := 0; i < n; i++ {
		abs := mesh.FaceStart + int32(i)
		b.order[i] = abs
		f := b.faces[abs]
		c := b.verts[f.V[0]].Add(b.verts[f.V[1]]).Add(b.verts[f.V[2]]).Scale(1.0 / 3.0)
		b.cent[i] = c
	}
	b.centBase = mesh.FaceStart

	root, err := b.build(0, n)
	if err != nil {
		return err
	}
	mesh.Root = root
	return nil
}

type bvhBuilder struct {
	m        *Model
	verts    []mathutil.Vec3
	faces    []Face
	order    []int32
	cent     []mathutil.Vec3
	centBase int32
}

func (b *bvhBuilder) centroid(abs int32) mathutil.Vec3 {
	return b.cent[abs-b.centBase]
}

// build emits nodes for order[lo:hi] bottom-up and returns the subtree
// root's absolute node index.
func (b *bvhBuilder) build(lo, hi int) (int32, error) {
	if hi-lo == 1 {
		node := b.leaf(b.order[lo])
		return b.push(node)
	}

	// Split at the median along the widest centroid axis.
	clo, chi := b.centroid(b.order[lo]), b.centroid(b.order[lo])
	for _, abs := range b.order[lo+1 : hi] {
		c := b.centroid(abs)
		clo, chi = clo.Min(c), chi.Max(c)
	}
	ext := chi.Sub(clo)
	axis := 0
	if ext[1] > ext[axis] {
		axis = 1
	}
	if ext[2] > ext[axis] {
		axis = 2
	}
	part := b.order[lo:hi]
	sort.Slice(part, func(i, j int) bool {
		return b.centroid(part[i])[axis] < b.centroid(part[j])[axis]
	})
	mid := (lo + hi) / 2

	left, err := b.build(lo, mid)
	if err != nil {
		return 0, err
	}
	right, err := b.build(mid, hi)
	if err != nil {
		return 0, err
	}

	ln, err := b.m.Nodes.Get(int(left))
	if err != nil {
		return 0, err
	}
	rn, err := b.m.Nodes.Get(int(right))
	if err != nil {
		return 0, err
	}
	return b.push(BVHNode{
		Lo:    ln.Lo.Min(rn.Lo),
		Hi:    ln.Hi.Max(rn.Hi),
		Left:  left,
		Right: right,
		Face:  -1,
	})
}

func (b *bvhBuilder) leaf(abs int32) BVHNode {
	f := b.faces[abs]
	lo := b.verts[f.V[0]].Min(b.verts[f.V[1]]).Min(b.verts[f.V[2]])
	hi := b.verts[f.V[0]].Max(b.verts[f.V[1]]).Max(b.verts[f.V[2]])
	pad := mathutil.Vec3{bvhPad, bvhPad, bvhPad}
	return BVHNode{Lo: lo.Sub(pad), Hi: hi.Add(pad), Left: -1, Right: -1, Face: abs}
}

func (b *bvhBuilder) push(n BVHNode) (int32, error) {
	idx := int32(b.m.Nodes.Len())
	if err := b.m.Nodes.Push(n); err != nil {
		return 0, err
	}
	return idx, nil
}
