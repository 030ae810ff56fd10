package scene

import (
	"fmt"
	"strconv"
	"strings"

	"crt-renderer/internal/arena"
	"crt-renderer/internal/mathutil"
)

// ParseError reports a malformed or semantically invalid scene description.
type ParseError struct {
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("scene: line %d: %s", e.Line, e.Reason)
}

// nameSpan locates a token inside the input text, so parser bookkeeping
// stays pointer-free and arena-storable.
type nameSpan struct {
	Off, Len int32
}

// matRef is one unresolved material reference. Name.Len == 0 means the
// reference was a bare numeric index, kept verbatim in Index.
type matRef struct {
	Prim  int32
	Name  nameSpan
	Index int32
	Line  int32
}

type parser struct {
	a     *arena.Arena
	input string
	model *Model

	pos  int
	line int

	// one-token lookahead
	peeked  string
	peekOff int
	peekLn  int
	hasPeek bool

	// line and input offset of the token most recently returned by next
	tokLine int
	tokOff  int

	matNames arena.Buffer[nameSpan]
	pending  arena.Buffer[matRef]
}

// Parse consumes the scene description text and builds a Model inside the
// arena. It fails with *ParseError on bad input and with the arena's
// ErrOutOfMemory when the region is exhausted.
func Parse(a *arena.Arena, input string) (*Model, error) {
	p := &parser{a: a, input: input, line: 1, model: &Model{}}

	var err error
	if p.matNames, err = arena.NewBuffer[nameSpan](a, 4); err != nil {
		return nil, err
	}
	if p.pending, err = arena.NewBuffer[matRef](a, 4); err != nil {
		return nil, err
	}
	for _, init := range []func() error{
		func() (e error) { p.model.Primitives, e = arena.NewBuffer[Primitive](a, 4); return },
		func() (e error) { p.model.Materials, e = arena.NewBuffer[Material](a, 4); return },
		func() (e error) { p.model.Lights, e = arena.NewBuffer[Light](a, 2); return },
		func() (e error) { p.model.Meshes, e = arena.NewBuffer[Mesh](a, 1); return },
		func() (e error) { p.model.Verts, e = arena.NewBuffer[mathutil.Vec3](a, 8); return },
		func() (e error) { p.model.Normals, e = arena.NewBuffer[mathutil.Vec3](a, 8); return },
		func() (e error) { p.model.Faces, e = arena.NewBuffer[Face](a, 8); return },
		func() (e error) { p.model.Nodes, e = arena.NewBuffer[BVHNode](a, 0); return },
	} {
		if err := init(); err != nil {
			return nil, err
		}
	}

	if err := p.scene(); err != nil {
		return nil, err
	}
	if err := p.resolveMaterials(); err != nil {
		return nil, err
	}
	p.defaultCamera()
	if err := buildBVH(a, p.model); err != nil {
		return nil, err
	}
	return p.model, nil
}

func (p *parser) scene() error {
	for {
		if _, ok := p.peek(); !ok {
			return nil
		}
		w, err := p.next()
		if err != nil {
			return err
		}
		switch w {
		case "background":
			c, err := p.color()
			if err != nil {
				return err
			}
			p.model.Background = c
		case "camera":
			err = p.camera()
		case "light":
			err = p.light()
		case "material":
			err = p.material()
		case "sphere":
			err = p.sphere()
		case "plane":
			err = p.plane()
		case "triangle":
			err = p.triangle()
		case "mesh":
			err = p.mesh()
		default:
			return &ParseError{p.tokLine, fmt.Sprintf("unknown directive %q", w)}
		}
		if err != nil {
			return err
		}
	}
}

func (p *parser) camera() error {
	if err := p.expect("{"); err != nil {
		return err
	}
	cam := &p.model.Camera
	for !p.at("}") {
		key, err := p.next()
		if err != nil {
			return err
		}
		switch key {
		case "pos":
			cam.Pos, err = p.vector()
		case "look_at":
			cam.LookAt, err = p.vector()
		case "up":
			cam.Up, err = p.vector()
		case "focus":
			cam.Focus, err = p.scalar()
		case "fov":
			cam.FOV, err = p.scalar()
		case "dim":
			cam.Width, cam.Height, err = p.dim()
		default:
			return &ParseError{p.tokLine, fmt.Sprintf("unknown camera key %q", key)}
		}
		if err != nil {
			return err
		}
	}
	return p.expect("}")
}

func (p *parser) light() error {
	if err := p.expect("{"); err != nil {
		return err
	}
	var l Light
	for !p.at("}") {
		key, err := p.next()
		if err != nil {
			return err
		}
		switch key {
		case "pos":
			l.Pos, err = p.vector()
		case "color":
			l.Color, err = p.color()
		default:
			return &ParseError{p.tokLine, fmt.Sprintf("unknown light key %q", key)}
		}
		if err != nil {
			return err
		}
	}
	if err := p.expect("}"); err != nil {
		return err
	}
	return p.model.Lights.Push(l)
}

func (p *parser) material() error {
	name, err := p.next()
	if err != nil {
		return err
	}
	if name == "{" {
		return &ParseError{p.tokLine, "material needs a name before its block"}
	}
	span := nameSpan{Off: int32(p.tokOff), Len: int32(len(name))}
	if err := p.expect("{"); err != nil {
		return err
	}
	m := Material{IOR: 1}
	for !p.at("}") {
		key, err := p.next()
		if err != nil {
			return err
		}
		switch key {
		case "color":
			m.Color, err = p.color()
		case "diffuse":
			m.Diffuse, err = p.scalar()
		case "reflect":
			m.Reflect, err = p.scalar()
		case "transmit":
			m.Transmit, err = p.scalar()
		case "ior":
			m.IOR, err = p.scalar()
		default:
			return &ParseError{p.tokLine, fmt.Sprintf("unknown material key %q", key)}
		}
		if err != nil {
			return err
		}
	}
	if err := p.expect("}"); err != nil {
		return err
	}
	if err := p.matNames.Push(span); err != nil {
		return err
	}
	return p.model.Materials.Push(m)
}

func (p *parser) sphere() error {
	line := p.tokLine
	prim := Primitive{Kind: KindSphere, Material: -1, Mesh: -1}
	idx := int32(p.model.Primitives.Len())
	hasMat := false
	if err := p.expect("{"); err != nil {
		return err
	}
	for !p.at("}") {
		key, err := p.next()
		if err != nil {
			return err
		}
		switch key {
		case "pos":
			prim.A, err = p.vector()
		case "radius":
			prim.Radius, err = p.scalar()
		case "material":
			err = p.materialRef(idx)
			hasMat = true
		default:
			return &ParseError{p.tokLine, fmt.Sprintf("unknown sphere key %q", key)}
		}
		if err != nil {
			return err
		}
	}
	if err := p.expect("}"); err != nil {
		return err
	}
	if !hasMat {
		return &ParseError{line, "sphere has no material"}
	}
	return p.model.Primitives.Push(prim)
}

func (p *parser) plane() error {
	line := p.tokLine
	prim := Primitive{Kind: KindPlane, Material: -1, Mesh: -1, B: mathutil.Vec3{0, 0, 1}}
	idx := int32(p.model.Primitives.Len())
	hasMat := false
	if err := p.expect("{"); err != nil {
		return err
	}
	for !p.at("}") {
		key, err := p.next()
		if err != nil {
			return err
		}
		switch key {
		case "pos":
			prim.A, err = p.vector()
		case "normal":
			prim.B, err = p.vector()
		case "material":
			err = p.materialRef(idx)
			hasMat = true
		default:
			return &ParseError{p.tokLine, fmt.Sprintf("unknown plane key %q", key)}
		}
		if err != nil {
			return err
		}
	}
	if err := p.expect("}"); err != nil {
		return err
	}
	if !hasMat {
		return &ParseError{line, "plane has no material"}
	}
	prim.B = prim.B.Normalize()
	return p.model.Primitives.Push(prim)
}

func (p *parser) triangle() error {
	line := p.tokLine
	prim := Primitive{Kind: KindTriangle, Material: -1, Mesh: -1}
	idx := int32(p.model.Primitives.Len())
	hasMat := false
	hasNormals := false
	if err := p.expect("{"); err != nil {
		return err
	}
	for !p.at("}") {
		key, err := p.next()
		if err != nil {
			return err
		}
		switch key {
		case "a":
			prim.A, err = p.vector()
		case "b":
			prim.B, err = p.vector()
		case "c":
			prim.C, err = p.vector()
		case "na":
			prim.NA, err = p.vector()
			hasNormals = true
		case "nb":
			prim.NB, err = p.vector()
			hasNormals = true
		case "nc":
			prim.NC, err = p.vector()
			hasNormals = true
		case "material":
			err = p.materialRef(idx)
			hasMat = true
		default:
			return &ParseError{p.tokLine, fmt.Sprintf("unknown triangle key %q", key)}
		}
		if err != nil {
			return err
		}
	}
	if err := p.expect("}"); err != nil {
		return err
	}
	if !hasMat {
		return &ParseError{line, "triangle has no material"}
	}
	if !hasNormals {
		n := prim.B.Sub(prim.A).Cross(prim.C.Sub(prim.A)).Normalize()
		prim.NA, prim.NB, prim.NC = n, n, n
	}
	return p.model.Primitives.Push(prim)
}

func (p *parser) mesh() error {
	line := p.tokLine
	prim := Primitive{Kind: KindMesh, Material: -1}
	idx := int32(p.model.Primitives.Len())
	hasMat := false
	mesh := Mesh{Root: -1}
	hasData := false
	if err := p.expect("{"); err != nil {
		return err
	}
	for !p.at("}") {
		key, err := p.next()
		if err != nil {
			return err
		}
		switch key {
		case "material":
			err = p.materialRef(idx)
			hasMat = true
		case "data":
			if hasData {
				return &ParseError{p.tokLine, "mesh has more than one data block"}
			}
			err = p.meshData(&mesh)
			hasData = true
		default:
			return &ParseError{p.tokLine, fmt.Sprintf("unknown mesh key %q", key)}
		}
		if err != nil {
			return err
		}
	}
	if err := p.expect("}"); err != nil {
		return err
	}
	if !hasMat {
		return &ParseError{line, "mesh has no material"}
	}
	prim.Mesh = int32(p.model.Meshes.Len())
	if err := p.model.Meshes.Push(mesh); err != nil {
		return err
	}
	return p.model.Primitives.Push(prim)
}

// meshData parses a data block of v/vn/f entries. Counts are pre-scanned
// so face indices may reference vertices declared later in the block.
func (p *parser) meshData(mesh *Mesh) error {
	if err := p.expect("{"); err != nil {
		return err
	}
	nV, nN := p.countMeshData()
	mesh.VertStart = int32(p.model.Verts.Len())
	mesh.NormStart = int32(p.model.Normals.Len())
	mesh.FaceStart = int32(p.model.Faces.Len())
	for !p.at("}") {
		key, err := p.next()
		if err != nil {
			return err
		}
		switch key {
		case "v":
			v, err := p.vector()
			if err != nil {
				return err
			}
			if err := p.model.Verts.Push(v); err != nil {
				return err
			}
			mesh.VertCount++
		case "vn":
			n, err := p.vector()
			if err != nil {
				return err
			}
			if err := p.model.Normals.Push(n.Normalize()); err != nil {
				return err
			}
			mesh.NormCount++
		case "f":
			if err := p.face(mesh, nV, nN); err != nil {
				return err
			}
			mesh.FaceCount++
		default:
			return &ParseError{p.tokLine, fmt.Sprintf("unknown mesh data key %q", key)}
		}
	}
	return p.expect("}")
}

// countMeshData counts v/vn tokens ahead of the cursor, up to the closing
// brace, without consuming anything.
func (p *parser) countMeshData() (nV, nN int32) {
	pos, line := p.pos, p.line
	peeked, peekOff, peekLn, hasPeek := p.peeked, p.peekOff, p.peekLn, p.hasPeek
	for {
		w, err := p.next()
		if err != nil || w == "}" {
			break
		}
		switch w {
		case "v":
			nV++
		case "vn":
			nN++
		}
	}
	p.pos, p.line = pos, line
	p.peeked, p.peekOff, p.peekLn, p.hasPeek = peeked, peekOff, peekLn, hasPeek
	return nV, nN
}

// face parses three 1-based "v/n" corner references and stores them as
// absolute indices.
func (p *parser) face(mesh *Mesh, nV, nN int32) error {
	var f Face
	for i := 0; i < 3; i++ {
		tok, err := p.next()
		if err != nil {
			return err
		}
		parts := strings.Split(tok, "/")
		if len(parts) != 2 {
			return &ParseError{p.tokLine, fmt.Sprintf("invalid face corner %q, expected v/n", tok)}
		}
		vi, err1 := strconv.Atoi(parts[0])
		ni, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil {
			return &ParseError{p.tokLine, fmt.Sprintf("invalid face index in %q", tok)}
		}
		if vi < 1 || int32(vi) > nV || ni < 1 || int32(ni) > nN {
			return &ParseError{p.tokLine, fmt.Sprintf("face index %q out of bounds", tok)}
		}
		f.V[i] = mesh.VertStart + int32(vi) - 1
		f.N[i] = mesh.NormStart + int32(ni) - 1
	}
	return p.model.Faces.Push(f)
}

// materialRef records one material reference for the post-pass. A bare
// non-negative integer is an index into the material array; anything else
// is a declared material name. Forward references are legal.
func (p *parser) materialRef(prim int32) error {
	tok, err := p.next()
	if err != nil {
		return err
	}
	ref := matRef{Prim: prim, Line: int32(p.tokLine)}
	if i, convErr := strconv.Atoi(tok); convErr == nil {
		if i < 0 {
			return &ParseError{p.tokLine, fmt.Sprintf("negative material index %d", i)}
		}
		ref.Index = int32(i)
	} else {
		ref.Name = nameSpan{Off: int32(p.tokOff), Len: int32(len(tok))}
	}
	return p.pending.Push(ref)
}

// resolveMaterials runs once after the whole text is consumed, so
// references may point at materials declared later in the file. The first
// invalid reference fails the parse.
func (p *parser) resolveMaterials() error {
	names := p.matNames.Slice()
	prims := p.model.Primitives.Slice()
	nMats := int32(p.model.Materials.Len())
	for _, ref := range p.pending.Slice() {
		idx := ref.Index
		if ref.Name.Len > 0 {
			name := p.input[ref.Name.Off : ref.Name.Off+ref.Name.Len]
			idx = -1
			for i, span := range names {
				if p.input[span.Off:span.Off+span.Len] == name {
					idx = int32(i)
					break
				}
			}
			if idx < 0 {
				return &ParseError{int(ref.Line), fmt.Sprintf("unknown material %q", name)}
			}
		} else if idx >= nMats {
			return &ParseError{int(ref.Line),
				fmt.Sprintf("material index %d out of range, scene has %d materials", idx, nMats)}
		}
		prims[ref.Prim].Material = idx
	}
	return nil
}

// defaultCamera fills in degenerate camera values so rendering never
// divides by zero.
func (p *parser) defaultCamera() {
	cam := &p.model.Camera
	if cam.Up.LenSquared() == 0 {
		cam.Up = mathutil.Vec3{0, 1, 0}
	}
	if cam.LookAt == cam.Pos {
		cam.LookAt = cam.Pos.Add(mathutil.Vec3{0, 0, -1})
	}
	if cam.Focus <= 0 {
		cam.Focus = 1
	}
	if cam.FOV == 0 && (cam.Width <= 0 || cam.Height <= 0) {
		cam.FOV = 60
	}
}

// --- token scanning ---

func (p *parser) scan() (tok string, off, line int, ok bool) {
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c == '\n' {
			p.line++
		}
		if c != ' ' && c != '\t' && c != '\r' && c != '\n' {
			break
		}
		p.pos++
	}
	if p.pos >= len(p.input) {
		return "", 0, p.line, false
	}
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c == ' ' || c == '\t' || c == '\r' || c == '\n' {
			break
		}
		p.pos++
	}
	return p.input[start:p.pos], start, p.line, true
}

func (p *parser) next() (string, error) {
	if p.hasPeek {
		p.hasPeek = false
		p.tokLine = p.peekLn
		p.tokOff = p.peekOff
		return p.peeked, nil
	}
	tok, off, line, ok := p.scan()
	if !ok {
		return "", &ParseError{line, "unexpected end of file"}
	}
	p.tokLine = line
	p.tokOff = off
	return tok, nil
}

func (p *parser) peek() (string, bool) {
	if !p.hasPeek {
		tok, off, line, ok := p.scan()
		if !ok {
			return "", false
		}
		p.peeked, p.peekOff, p.peekLn, p.hasPeek = tok, off, line, true
	}
	return p.peeked, true
}

func (p *parser) at(tok string) bool {
	w, ok := p.peek()
	return ok && w == tok
}

func (p *parser) expect(tok string) error {
	w, err := p.next()
	if err != nil {
		return err
	}
	if w != tok {
		return &ParseError{p.tokLine, fmt.Sprintf("expected %q, found %q", tok, w)}
	}
	return nil
}

// --- value parsing ---

func (p *parser) scalar() (float64, error) {
	tok, err := p.next()
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, &ParseError{p.tokLine, fmt.Sprintf("invalid number %q", tok)}
	}
	return f, nil
}

// vector parses a comma-separated "x,y,z" token.
func (p *parser) vector() (mathutil.Vec3, error) {
	tok, err := p.next()
	if err != nil {
		return mathutil.Vec3{}, err
	}
	parts := strings.Split(tok, ",")
	if len(parts) != 3 {
		return mathutil.Vec3{}, &ParseError{p.tokLine,
			fmt.Sprintf("invalid vector %q, expected three comma-separated coordinates", tok)}
	}
	var v mathutil.Vec3
	for i, s := range parts {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return mathutil.Vec3{}, &ParseError{p.tokLine, fmt.Sprintf("invalid vector %q", tok)}
		}
		v[i] = f
	}
	return v, nil
}

// color parses a "#rrggbb" token into linear [0,1] components.
func (p *parser) color() (Color, error) {
	tok, err := p.next()
	if err != nil {
		return Color{}, err
	}
	if len(tok) != 7 || tok[0] != '#' {
		return Color{}, &ParseError{p.tokLine, fmt.Sprintf("invalid color %q, expected #rrggbb", tok)}
	}
	var ch [3]float64
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseUint(tok[1+2*i:3+2*i], 16, 8)
		if err != nil {
			return Color{}, &ParseError{p.tokLine, fmt.Sprintf("invalid color %q", tok)}
		}
		ch[i] = float64(v) / 255.0
	}
	return Color{ch[0], ch[1], ch[2]}, nil
}

// dim parses a "WxH" token.
func (p *parser) dim() (w, h float64, err error) {
	tok, err := p.next()
	if err != nil {
		return 0, 0, err
	}
	parts := strings.Split(tok, "x")
	if len(parts) != 2 {
		return 0, 0, &ParseError{p.tokLine, fmt.Sprintf("invalid dimensions %q, expected WxH", tok)}
	}
	w, err1 := strconv.ParseFloat(parts[0], 64)
	h, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil {
		return 0, 0, &ParseError{p.tokLine, fmt.Sprintf("invalid dimensions %q", tok)}
	}
	return w, h, nil
}
