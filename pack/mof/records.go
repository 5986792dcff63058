package mof

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/mof_browser/utils"
)

const (
	PARTCEL_HEADER_SIZE  = 0x10
	HILITE_SIZE          = 0xc
	COLLPRIM_SIZE        = 0x24
	MATRIX_SIZE          = 0x20
	MATRIX_PADDING_SIZE  = 4
	ANIM_TARGET_SIZE     = 8
	ANIM_ENTRY_SIZE      = 4
	FLIPBOOK_ACTION_SIZE = 4
)

// PartCel is one animation frame of part geometry.
type PartCel struct {
	Vertices    []SVector
	Normals     []SVector
	BoundingBox *BoundingBox
}

type HiliteAttach uint8

const (
	HILITE_ATTACH_PART HiliteAttach = iota
	HILITE_ATTACH_VERTEX
	HILITE_ATTACH_POLYGON
)

func (ha HiliteAttach) String() string {
	switch ha {
	case HILITE_ATTACH_PART:
		return "part"
	case HILITE_ATTACH_VERTEX:
		return "vertex"
	case HILITE_ATTACH_POLYGON:
		return "polygon"
	default:
		return "unknown"
	}
}

// Hilite is an attachment point. Vertex is used for vertex attachments,
// Polygon for polygon attachments.
type Hilite struct {
	Type    uint8
	Attach  HiliteAttach
	Vertex  uint16
	Polygon *Polygon

	polygonIndex uint16
}

func (h *Hilite) read(bs *utils.BufStack) error {
	h.Type = bs.ReadU8()
	h.Attach = HiliteAttach(bs.ReadU8())
	index := bs.ReadLU16()
	if r1, r2 := bs.ReadLU32(), bs.ReadLU32(); r1 != 0 || r2 != 0 {
		return errors.Errorf("Hilite runtime fields are not empty: 0x%x 0x%x", r1, r2)
	}
	switch h.Attach {
	case HILITE_ATTACH_PART:
		if index != 0 {
			return errors.Errorf("Part hilite has index %d", index)
		}
	case HILITE_ATTACH_VERTEX:
		h.Vertex = index
	case HILITE_ATTACH_POLYGON:
		h.polygonIndex = index
	default:
		return errors.Errorf("Unknown hilite attach type %d", h.Attach)
	}
	return nil
}

func (h *Hilite) write(bw *utils.BufWriter, part *ModelPart) error {
	var index uint16
	switch h.Attach {
	case HILITE_ATTACH_PART:
	case HILITE_ATTACH_VERTEX:
		index = h.Vertex
	case HILITE_ATTACH_POLYGON:
		pi := part.PolygonIndex(h.Polygon)
		if pi < 0 {
			return errors.Errorf("Hilite polygon %v is not part of the part", h.Polygon)
		}
		index = uint16(pi)
	default:
		return errors.Errorf("Unknown hilite attach type %d", h.Attach)
	}
	bw.WriteU8(h.Type)
	bw.WriteU8(uint8(h.Attach))
	bw.WriteLU16(index)
	bw.WriteLU32(0)
	bw.WriteLU32(0)
	return nil
}

const (
	COLLPRIM_CUBOID = iota
	COLLPRIM_CYLINDER_X
	COLLPRIM_CYLINDER_Y
	COLLPRIM_CYLINDER_Z
	COLLPRIM_SPHERE
)

const COLLPRIM_FLAG_LAST_IN_LIST = 0x8000

type CollPrim struct {
	Type    uint16
	Flags   uint16
	Offset  SVector
	Radius2 uint32
	XLen    uint16
	YLen    uint16
	ZLen    uint16
	User    uint16
	Matrix  *CollPrimMatrix

	matrixPtr uint32
}

// read returns true for the last primitive of the chain
func (cp *CollPrim) read(bs *utils.BufStack) (bool, error) {
	cp.Type = bs.ReadLU16()
	if cp.Type > COLLPRIM_SPHERE {
		return false, errors.Errorf("Unknown collision primitive type %d", cp.Type)
	}
	flags := bs.ReadLU16()
	cp.Flags = flags &^ COLLPRIM_FLAG_LAST_IN_LIST
	if r1, r2 := bs.ReadLU32(), bs.ReadLU32(); r1 != 0 || r2 != 0 {
		return false, errors.Errorf("Collision primitive runtime fields are not empty: 0x%x 0x%x", r1, r2)
	}
	cp.Offset = cp.Offset.read(bs)
	if cp.Offset.Pad != 0 {
		return false, errors.Errorf("Collision primitive offset pad is 0x%x", cp.Offset.Pad)
	}
	cp.Radius2 = bs.ReadLU32()
	cp.XLen = bs.ReadLU16()
	cp.YLen = bs.ReadLU16()
	cp.ZLen = bs.ReadLU16()
	cp.User = bs.ReadLU16()
	cp.matrixPtr = bs.ReadLU32()
	return flags&COLLPRIM_FLAG_LAST_IN_LIST != 0, nil
}

// write returns position of matrix pointer placeholder
func (cp *CollPrim) write(bw *utils.BufWriter, last bool) int {
	flags := cp.Flags &^ COLLPRIM_FLAG_LAST_IN_LIST
	if last {
		flags |= COLLPRIM_FLAG_LAST_IN_LIST
	}
	bw.WriteLU16(cp.Type)
	bw.WriteLU16(flags)
	bw.WriteLU32(0)
	bw.WriteLU32(0)
	offset := cp.Offset
	offset.Pad = 0
	offset.write(bw)
	bw.WriteLU32(cp.Radius2)
	bw.WriteLU16(cp.XLen)
	bw.WriteLU16(cp.YLen)
	bw.WriteLU16(cp.ZLen)
	bw.WriteLU16(cp.User)
	return bw.Placeholder()
}

// CollPrimMatrix is a 4.12 fixed point rotation with integer translation.
type CollPrimMatrix struct {
	M [3][3]int16
	T [3]int32
}

func (m *CollPrimMatrix) Mat4() mgl32.Mat4 {
	r := mgl32.Translate3D(float32(m.T[0]), float32(m.T[1]), float32(m.T[2]))
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			r.Set(row, col, float32(m.M[row][col])/FIXED_ONE)
		}
	}
	return r
}

func (m *CollPrimMatrix) read(bs *utils.BufStack) error {
	for row := range m.M {
		for col := range m.M[row] {
			m.M[row][col] = bs.ReadLI16()
		}
	}
	if pad := bs.ReadLU16(); pad != 0 {
		return errors.Errorf("Matrix pad is 0x%x", pad)
	}
	for i := range m.T {
		m.T[i] = bs.ReadLI32()
	}
	return nil
}

func (m *CollPrimMatrix) write(bw *utils.BufWriter) {
	for row := range m.M {
		for col := range m.M[row] {
			bw.WriteLI16(m.M[row][col])
		}
	}
	bw.WriteLU16(0)
	for _, t := range m.T {
		bw.WriteLI32(t)
	}
}

type TextureAnimationEntry struct {
	TextureId uint16
	Duration  uint16
}

// TextureAnimation is a looping sequence of textures.
type TextureAnimation struct {
	Entries []TextureAnimationEntry
}

func (ta *TextureAnimation) Duration() int {
	total := 0
	for _, e := range ta.Entries {
		total += int(e.Duration)
	}
	return total
}

// TextureAt returns the texture shown on the given frame.
func (ta *TextureAnimation) TextureAt(frame int) uint16 {
	total := ta.Duration()
	if total == 0 {
		if len(ta.Entries) == 0 {
			return 0
		}
		return ta.Entries[0].TextureId
	}
	frame %= total
	for _, e := range ta.Entries {
		if frame < int(e.Duration) {
			return e.TextureId
		}
		frame -= int(e.Duration)
	}
	return ta.Entries[len(ta.Entries)-1].TextureId
}

func (ta *TextureAnimation) read(bs *utils.BufStack, end int) error {
	count := int(bs.ReadLU32())
	if bs.Pos()+count*ANIM_ENTRY_SIZE > end {
		return errors.Errorf("Texture animation of %d entries at 0x%x crosses section end 0x%x", count, bs.Pos()-4, end)
	}
	ta.Entries = make([]TextureAnimationEntry, count)
	for i := range ta.Entries {
		ta.Entries[i].TextureId = bs.ReadLU16()
		ta.Entries[i].Duration = bs.ReadLU16()
	}
	return nil
}

func (ta *TextureAnimation) size() int {
	return 4 + len(ta.Entries)*ANIM_ENTRY_SIZE
}

func (ta *TextureAnimation) write(bw *utils.BufWriter) {
	bw.WriteLU32(uint32(len(ta.Entries)))
	for _, e := range ta.Entries {
		bw.WriteLU16(e.TextureId)
		bw.WriteLU16(e.Duration)
	}
}

type TextureAnimationTarget struct {
	Polygon   *Polygon
	Animation *TextureAnimation
}

type FlipbookAction struct {
	CelCount uint16
	CelStart uint16
}

// Flipbook selects which part cels are shown for each action.
type Flipbook struct {
	Flags   uint16
	Actions []FlipbookAction
}

func (fb *Flipbook) read(bs *utils.BufStack, celCount int) error {
	fb.Flags = bs.ReadLU16()
	fb.Actions = make([]FlipbookAction, bs.ReadLU16())
	for i := range fb.Actions {
		a := &fb.Actions[i]
		a.CelCount = bs.ReadLU16()
		a.CelStart = bs.ReadLU16()
		if int(a.CelStart)+int(a.CelCount) > celCount {
			return errors.Errorf("Flipbook action %d cels [%d:+%d] out of %d cels", i, a.CelStart, a.CelCount, celCount)
		}
	}
	return nil
}

func (fb *Flipbook) write(bw *utils.BufWriter) {
	bw.WriteLU16(fb.Flags)
	bw.WriteLU16(uint16(len(fb.Actions)))
	for _, a := range fb.Actions {
		bw.WriteLU16(a.CelCount)
		bw.WriteLU16(a.CelStart)
	}
}
