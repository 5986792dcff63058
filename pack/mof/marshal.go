package mof

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/mogaika/mof_browser/utils"
)

// body sections in file order, matches partHeader.bodyPointers
const (
	SECTION_CELS = iota
	SECTION_HILITES
	SECTION_COLLPRIMS
	SECTION_MATRICES
	SECTION_TEXANIMS
	SECTION_FLIPBOOK
	SECTION_PRIMITIVES
	SECTION_COUNT
)

var sectionHeaderOffsets = [SECTION_COUNT]int{
	SECTION_CELS:       headerCelPtrOffset,
	SECTION_HILITES:    headerHilitePtrOffset,
	SECTION_COLLPRIMS:  headerCollPrimPtrOffset,
	SECTION_MATRICES:   headerMatrixPtrOffset,
	SECTION_TEXANIMS:   headerTexAnimPtrOffset,
	SECTION_FLIPBOOK:   headerFlipbookPtrOffset,
	SECTION_PRIMITIVES: headerPrimitivePtrOffset,
}

func SectionName(section int) string {
	return bodySectionNames[section]
}

// SectionSpan is the byte range a body section occupies in the encoded file.
type SectionSpan struct {
	Present    bool
	Start, End int
}

type PartLayout [SECTION_COUNT]SectionSpan

type marshaler struct {
	bw       *utils.BufWriter
	opts     *Options
	elements *utils.ElementBuffer

	// [part][cel] offsets of vertex and normal runs
	vertexPtrs [][]uint32
	normalPtrs [][]uint32
	// bounding boxes already written in this save, by value
	bboxes map[BoundingBox]uint32

	layouts      []PartLayout
	placeholders []PartLayout
}

func newMarshaler(opts *Options) *marshaler {
	return &marshaler{
		bw:       utils.NewBufWriter(),
		opts:     opts,
		elements: utils.NewElementBuffer(SVECTOR_SIZE),
		bboxes:   make(map[BoundingBox]uint32),
	}
}

// Marshal encodes the model. Incomplete models are laid out so that every
// section borrowed from the counterpart occupies the same span it does in
// the encoded counterpart.
func (m *StaticModel) Marshal(opts *Options) ([]byte, error) {
	opts = opts.withDefaults()
	if err := m.validate(opts.Caps); err != nil {
		return nil, errors.Wrapf(err, "Failed to encode static model")
	}

	ms := newMarshaler(opts)
	if m.incomplete {
		if len(m.Parts) != len(m.counterpart.Parts) {
			return nil, errors.Errorf("Incomplete model has %d parts, counterpart has %d", len(m.Parts), len(m.counterpart.Parts))
		}
		if err := m.counterpart.validate(opts.Caps); err != nil {
			return nil, errors.Wrapf(err, "Invalid counterpart")
		}
		dry := newMarshaler(&Options{Caps: opts.Caps})
		if _, err := dry.marshal(m.counterpart); err != nil {
			return nil, errors.Wrapf(err, "Failed to lay out counterpart")
		}
		ms.placeholders = dry.layouts
	}
	m.warnUnresolvedTextures(opts)

	b, err := ms.marshal(m)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to encode static model")
	}
	return b, nil
}

// Layout returns the spans of every part body section as Marshal would
// place them.
func (m *StaticModel) Layout(opts *Options) ([]PartLayout, error) {
	opts = opts.withDefaults()
	if m.incomplete {
		return nil, errors.Errorf("Layout of incomplete model is the layout of its counterpart")
	}
	if err := m.validate(opts.Caps); err != nil {
		return nil, err
	}
	ms := newMarshaler(&Options{Caps: opts.Caps})
	if _, err := ms.marshal(m); err != nil {
		return nil, err
	}
	return ms.layouts, nil
}

func (ms *marshaler) header(p *ModelPart) partHeader {
	src := p
	if !p.OwnsShared() {
		src = p.counterpart
	}
	return partHeader{
		Flags:          src.Flags(),
		CelCount:       uint16(len(p.Shared.Cels)),
		VertexCount:    uint16(p.Shared.VertexCount()),
		NormalCount:    uint16(p.Shared.NormalCount()),
		PrimitiveCount: uint16(p.PolygonCount()),
		HiliteCount:    uint16(len(p.Shared.Hilites)),
	}
}

func (ms *marshaler) marshal(m *StaticModel) ([]byte, error) {
	bw := ms.bw
	ms.layouts = make([]PartLayout, len(m.Parts))

	bw.WriteLU32(uint32(len(m.Parts)))
	headerPos := make([]int, len(m.Parts))
	for i, p := range m.Parts {
		h := ms.header(p)
		if m.incomplete && i == 0 {
			h.Runtime = INCOMPLETE_MAGIC
		}
		headerPos[i] = h.write(bw)
	}
	bw.WriteLU32(m.Checksum)

	for i, p := range m.Parts {
		var err error
		if m.incomplete {
			ms.writePlaceholders(i, headerPos[i])
		} else {
			err = ms.writePart(m, i, headerPos[i])
		}
		if err == nil {
			ms.writePrimitives(p, i, headerPos[i])
		}
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to write part %d", i)
		}
	}
	return bw.Bytes(), nil
}

func (ms *marshaler) begin(part, section, headerPos int) {
	ms.bw.Align(4)
	pos := ms.bw.Pos()
	ms.bw.PatchLU32(headerPos+sectionHeaderOffsets[section], uint32(pos))
	ms.layouts[part][section] = SectionSpan{Present: true, Start: pos}
}

func (ms *marshaler) end(part, section int) {
	span := &ms.layouts[part][section]
	span.End = ms.bw.Pos()
	ms.opts.Log.Printf(" - part %d %s [0x%x:0x%x]", part, bodySectionNames[section], span.Start, span.End)
}

func (ms *marshaler) writePlaceholders(part, headerPos int) {
	for section, span := range ms.placeholders[part] {
		if !span.Present || section == SECTION_PRIMITIVES {
			continue
		}
		ms.begin(part, section, headerPos)
		ms.bw.WriteZeros(span.End - span.Start)
		ms.end(part, section)
	}
}

// writeElements places the vertex and normal runs of every cel of every
// part inside the first part cel section: part 0 vertices, part 0
// normals, then the vertices of the remaining parts followed by their
// normals.
func (ms *marshaler) writeElements(m *StaticModel) {
	ms.vertexPtrs = make([][]uint32, len(m.Parts))
	ms.normalPtrs = make([][]uint32, len(m.Parts))
	for i, p := range m.Parts {
		ms.vertexPtrs[i] = make([]uint32, len(p.Shared.Cels))
		ms.normalPtrs[i] = make([]uint32, len(p.Shared.Cels))
	}

	vertices := func(i int) {
		for ci, cel := range m.Parts[i].Shared.Cels {
			ms.vertexPtrs[i][ci] = ms.elements.Write(ms.bw, marshalSVectors(cel.Vertices))
		}
	}
	normals := func(i int) {
		for ci, cel := range m.Parts[i].Shared.Cels {
			ms.normalPtrs[i][ci] = ms.elements.Write(ms.bw, marshalSVectors(cel.Normals))
		}
	}

	if len(m.Parts) == 0 {
		return
	}
	vertices(0)
	normals(0)
	for i := 1; i < len(m.Parts); i++ {
		vertices(i)
	}
	for i := 1; i < len(m.Parts); i++ {
		normals(i)
	}
}

func (ms *marshaler) writePart(m *StaticModel, part, headerPos int) error {
	bw := ms.bw
	p := m.Parts[part]
	shared := p.Shared

	ms.begin(part, SECTION_CELS, headerPos)
	celPos := make([]int, len(shared.Cels))
	for i := range shared.Cels {
		celPos[i] = bw.Pos()
		bw.WriteZeros(PARTCEL_HEADER_SIZE)
	}
	if part == 0 {
		ms.writeElements(m)
	}
	for i, cel := range shared.Cels {
		bw.PatchLU32(celPos[i], ms.vertexPtrs[part][i])
		bw.PatchLU32(celPos[i]+4, ms.normalPtrs[part][i])
		if cel.BoundingBox == nil {
			continue
		}
		off, ok := ms.bboxes[*cel.BoundingBox]
		if !ok {
			bw.Align(4)
			off = uint32(bw.Pos())
			cel.BoundingBox.write(bw)
			ms.bboxes[*cel.BoundingBox] = off
		}
		bw.PatchLU32(celPos[i]+8, off)
	}
	ms.end(part, SECTION_CELS)

	if len(shared.Hilites) != 0 {
		ms.begin(part, SECTION_HILITES, headerPos)
		for i, h := range shared.Hilites {
			if err := h.write(bw, p); err != nil {
				return errors.Wrapf(err, "Hilite %d", i)
			}
		}
		ms.end(part, SECTION_HILITES)
	}

	matrixPtrPos := make([]int, len(shared.CollPrims))
	if len(shared.CollPrims) != 0 {
		ms.begin(part, SECTION_COLLPRIMS, headerPos)
		for i, cp := range shared.CollPrims {
			matrixPtrPos[i] = cp.write(bw, i == len(shared.CollPrims)-1)
		}
		ms.end(part, SECTION_COLLPRIMS)
	}

	if len(shared.Matrices) != 0 || shared.MatrixPadding {
		ms.begin(part, SECTION_MATRICES, headerPos)
		start := bw.Pos()
		for _, mat := range shared.Matrices {
			mat.write(bw)
		}
		if shared.MatrixPadding {
			bw.WriteZeros(MATRIX_PADDING_SIZE)
		}
		ms.end(part, SECTION_MATRICES)

		for i, cp := range shared.CollPrims {
			if cp.Matrix == nil {
				continue
			}
			mi := shared.matrixIndex(cp.Matrix)
			if mi < 0 {
				return errors.Errorf("Collision primitive %d matrix is not part of the part", i)
			}
			bw.PatchLU32(matrixPtrPos[i], uint32(start+mi*MATRIX_SIZE))
		}
	}

	if p.hasTextureAnimationSection() {
		ms.begin(part, SECTION_TEXANIMS, headerPos)
		bw.WriteLU32(uint32(len(p.targets)))
		targetPos := make([]int, len(p.targets))
		for i, t := range p.targets {
			bw.WriteLU16(uint16(p.PolygonIndex(t.Polygon)))
			bw.WriteLU16(uint16(t.Polygon.kind))
			targetPos[i] = bw.Placeholder()
		}
		animPos := make([]int, len(p.animations))
		for i, anim := range p.animations {
			animPos[i] = bw.Pos()
			anim.write(bw)
		}
		for i, t := range p.targets {
			ai := p.animationIndex(t.Animation)
			if ai < 0 {
				return errors.Errorf("Texture animation target %d animation is not registered", i)
			}
			bw.PatchLU32(targetPos[i], uint32(animPos[ai]))
		}
		ms.end(part, SECTION_TEXANIMS)
	}

	if shared.Flipbook != nil {
		ms.begin(part, SECTION_FLIPBOOK, headerPos)
		shared.Flipbook.write(bw)
		ms.end(part, SECTION_FLIPBOOK)
	}
	return nil
}

func (ms *marshaler) writePrimitives(p *ModelPart, part, headerPos int) {
	ms.begin(part, SECTION_PRIMITIVES, headerPos)
	for _, b := range p.blocks {
		if len(b.polygons) != 0 {
			b.write(ms.bw, ms.opts.Caps)
		}
	}
	ms.end(part, SECTION_PRIMITIVES)
}

func (ps *PartShared) matrixIndex(mat *CollPrimMatrix) int {
	for i, m := range ps.Matrices {
		if m == mat {
			return i
		}
	}
	return -1
}

func (p *ModelPart) animationIndex(anim *TextureAnimation) int {
	for i, a := range p.animations {
		if a == anim {
			return i
		}
	}
	return -1
}

const maxU16 = 0xffff

func (m *StaticModel) validate(caps Capabilities) error {
	for i, p := range m.Parts {
		var err error
		if p.OwnsShared() {
			err = p.validateShared(caps)
		} else if p.Shared != p.counterpart.Shared {
			err = errors.Errorf("Part shared data is detached from counterpart")
		} else if len(p.animations) != 0 {
			err = errors.Errorf("Incomplete part cannot carry texture animations")
		}
		if err == nil {
			err = p.validatePrimitives()
		}
		if err != nil {
			return errors.Wrapf(err, "Invalid part %d", i)
		}
	}
	return nil
}

func (p *ModelPart) validateShared(caps Capabilities) error {
	shared := p.Shared
	if len(shared.Cels) == 0 {
		return errors.Errorf("Part has no part cels")
	}
	if len(shared.Cels) > maxU16 || len(shared.Hilites) > maxU16 {
		return errors.Errorf("Too many part cels (%d) or hilites (%d)", len(shared.Cels), len(shared.Hilites))
	}
	vertexCount, normalCount := shared.VertexCount(), shared.NormalCount()
	if vertexCount > maxU16 || normalCount > maxU16 {
		return errors.Errorf("Too many vertices (%d) or normals (%d)", vertexCount, normalCount)
	}
	for i, cel := range shared.Cels {
		if cel == nil {
			return errors.Errorf("Part cel %d is nil", i)
		}
		if len(cel.Vertices) != vertexCount || len(cel.Normals) != normalCount {
			return errors.Errorf("Part cel %d has %d vertices and %d normals, part has %d and %d",
				i, len(cel.Vertices), len(cel.Normals), vertexCount, normalCount)
		}
	}

	for i, h := range shared.Hilites {
		switch h.Attach {
		case HILITE_ATTACH_PART:
		case HILITE_ATTACH_VERTEX:
			if int(h.Vertex) >= vertexCount {
				return errors.Errorf("Hilite %d vertex %d out of %d vertices", i, h.Vertex, vertexCount)
			}
		case HILITE_ATTACH_POLYGON:
			if p.PolygonIndex(h.Polygon) < 0 {
				return errors.Errorf("Hilite %d polygon is not part of the part", i)
			}
		default:
			return errors.Errorf("Hilite %d has unknown attach type %d", i, h.Attach)
		}
	}

	for i, cp := range shared.CollPrims {
		if cp.Type > COLLPRIM_SPHERE {
			return errors.Errorf("Collision primitive %d has unknown type %d", i, cp.Type)
		}
		if cp.Matrix != nil && shared.matrixIndex(cp.Matrix) < 0 {
			return errors.Errorf("Collision primitive %d matrix is not part of the part", i)
		}
	}
	if shared.MatrixPadding && !caps.TolerateMatrixPadding() {
		return errors.Errorf("Matrix section padding is not supported by this build")
	}

	if fb := shared.Flipbook; fb != nil {
		if len(fb.Actions) > maxU16 {
			return errors.Errorf("Too many flipbook actions (%d)", len(fb.Actions))
		}
		for i, a := range fb.Actions {
			if int(a.CelStart)+int(a.CelCount) > len(shared.Cels) {
				return errors.Errorf("Flipbook action %d cels [%d:+%d] out of %d cels", i, a.CelStart, a.CelCount, len(shared.Cels))
			}
		}
	}

	for i, t := range p.targets {
		if p.PolygonIndex(t.Polygon) < 0 {
			return errors.Errorf("Texture animation target %d polygon is not part of the part", i)
		}
		if p.animationIndex(t.Animation) < 0 {
			return errors.Errorf("Texture animation target %d animation is not registered", i)
		}
	}
	return nil
}

func (p *ModelPart) validatePrimitives() error {
	if count := p.PolygonCount(); count > maxU16 {
		return errors.Errorf("Too many polygons (%d)", count)
	}
	vertexCount, normalCount := p.Shared.VertexCount(), p.Shared.NormalCount()
	for bi, b := range p.blocks {
		for pi, poly := range b.polygons {
			err := poly.validate()
			if err == nil {
				err = poly.checkIndices(vertexCount, normalCount)
			}
			if err != nil {
				return errors.Wrapf(err, "Block %d polygon %d", bi, pi)
			}
		}
	}
	return nil
}

// warnUnresolvedTextures reports texture ids that the texture table cannot
// resolve. Missing textures do not prevent encoding.
func (m *StaticModel) warnUnresolvedTextures(opts *Options) {
	if opts.Textures == nil {
		return
	}
	for i, p := range m.Parts {
		missing := make(map[uint16]struct{})
		check := func(id uint16) {
			if _, ok := opts.Textures.ResolveTexture(id); !ok {
				missing[id] = struct{}{}
			}
		}
		for _, poly := range p.OrderedPolygons() {
			if poly.kind.Textured() {
				check(poly.TextureId)
			}
		}
		for _, anim := range p.animations {
			for _, e := range anim.Entries {
				check(e.TextureId)
			}
		}
		if len(missing) == 0 {
			continue
		}
		ids := make([]int, 0, len(missing))
		for id := range missing {
			ids = append(ids, int(id))
		}
		sort.Ints(ids)
		opts.warnf("part %d references unresolved textures %v", i, ids)
	}
}
