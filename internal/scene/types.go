// Package scene holds the parsed, immutable scene representation and the
// parser that builds it. Every structure lives in the caller's arena and
// all cross-references are integer indices, never pointers, so buffers may
// relocate while growing without dangling anything.
package scene

import (
	"crt-renderer/internal/arena"
	"crt-renderer/internal/mathutil"
)

// Camera holds the raw camera directive values. The focal-plane basis is
// derived at render time from these.
type Camera struct {
	Pos    mathutil.Vec3
	LookAt mathutil.Vec3
	Up     mathutil.Vec3
	Focus  float64
	// FOV is the vertical field of view in degrees. When zero, Width and
	// Height give the focal plane size in world units instead.
	FOV    float64
	Width  float64
	Height float64
}

// Light is a point light.
type Light struct {
	Pos   mathutil.Vec3
	Color Color
}

// Material describes a surface. Reflect and Transmit are blend
// coefficients in [0,1]; IOR is the refractive index used when Transmit
// is non-zero.
type Material struct {
	Color    Color
	Diffuse  float64
	Reflect  float64
	Transmit float64
	IOR      float64
}

// Kind tags the primitive variants. The set is closed; intersection code
// switches exhaustively over it.
type Kind uint8

const (
	KindSphere Kind = iota
	KindPlane
	KindTriangle
	KindMesh
)

// Primitive is the tagged variant over all geometry kinds. Field use by kind:
//
//	sphere:   A center, Radius
//	plane:    A point, B unit normal
//	triangle: A B C vertices, NA NB NC vertex normals
//	mesh:     Mesh indexes Model.Meshes
//
// Material is an index into Model.Materials, assigned during reference
// resolution at the end of the parse.
type Primitive struct {
	Kind       Kind
	Material   int32
	Mesh       int32
	Radius     float64
	A, B, C    mathutil.Vec3
	NA, NB, NC mathutil.Vec3
}

// Mesh describes a run of shared vertex/normal/face storage. Face indices
// stored in Model.Faces are absolute, so the start fields only matter for
// bounds accounting.
type Mesh struct {
	VertStart, VertCount int32
	NormStart, NormCount int32
	FaceStart, FaceCount int32
	// Root is the mesh's BVH root in Model.Nodes, -1 when the mesh has no
	// faces.
	Root int32
}

// Face is one mesh triangle: absolute vertex and normal indices.
type Face struct {
	V [3]int32
	N [3]int32
}

// BVHNode is one node of a mesh bounding volume hierarchy, stored flat in
// Model.Nodes. Face >= 0 marks a leaf; interior nodes reference children
// by absolute node index.
type BVHNode struct {
	Lo, Hi      mathutil.Vec3
	Left, Right int32
	Face        int32
}

// Model is the fully parsed scene. It is built once by Parse and read-only
// afterwards; sharing it across readers is safe.
type Model struct {
	Background Color
	Camera     Camera

	Primitives arena.Buffer[Primitive]
	Materials  arena.Buffer[Material]
	Lights     arena.Buffer[Light]

	Meshes  arena.Buffer[Mesh]
	Verts   arena.Buffer[mathutil.Vec3]
	Normals arena.Buffer[mathutil.Vec3]
	Faces   arena.Buffer[Face]
	Nodes   arena.Buffer[BVHNode]
}
