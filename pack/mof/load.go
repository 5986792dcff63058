package mof

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/mogaika/mof_browser/utils"
)

type pendingTarget struct {
	polygonIndex uint16
	kind         PolygonKind
	animation    *TextureAnimation
}

type loader struct {
	bs       *utils.BufStack
	opts     *Options
	elements *utils.ElementBuffer
	bboxes   map[uint32]*BoundingBox
	targets  []pendingTarget

	// first byte after the part headers and checksum
	bodyStart uint32
}

// NewFromData decodes a static model. Incomplete models require
// opts.Counterpart.
func NewFromData(b []byte, opts *Options) (m *StaticModel, err error) {
	opts = opts.withDefaults()
	ld := &loader{
		bs:       utils.NewBufStack("mof", b),
		opts:     opts,
		elements: utils.NewElementBuffer(SVECTOR_SIZE),
		bboxes:   make(map[uint32]*BoundingBox),
	}

	defer func() {
		if r := recover(); r != nil {
			oe, ok := r.(*utils.OverrunError)
			if !ok {
				panic(r)
			}
			m = nil
			err = errors.Wrapf(oe, "Failed to decode static model")
		}
	}()

	if m, err = ld.load(); err != nil {
		return nil, errors.Wrapf(err, "Failed to decode static model")
	}
	opts.Log.Printf("%s", ld.bs.StringTree())
	return m, nil
}

func (ld *loader) load() (*StaticModel, error) {
	bs := ld.bs
	partCount := int(bs.ReadLU32())
	if uint64(partCount)*PART_HEADER_SIZE+4 > uint64(bs.Remaining()) {
		return nil, errors.Errorf("Part count %d does not fit into %d bytes", partCount, bs.Remaining())
	}

	var m *StaticModel
	incomplete := partCount != 0 && bs.LU32(INCOMPLETE_PROBE_OFFSET) == INCOMPLETE_MAGIC
	if incomplete {
		cp := ld.opts.Counterpart
		if cp == nil {
			return nil, errors.Errorf("Model is incomplete but no counterpart was supplied")
		}
		if len(cp.Parts) != partCount {
			return nil, errors.Errorf("Incomplete model has %d parts, counterpart has %d", partCount, len(cp.Parts))
		}
		var err error
		if m, err = NewIncompleteStaticModel(cp); err != nil {
			return nil, err
		}
	} else {
		m = NewStaticModel()
		for i := 0; i < partCount; i++ {
			m.AddPart()
		}
	}
	ld.opts.Log.Printf("parts: %d incomplete: %v", partCount, incomplete)

	headers := make([]partHeader, partCount)
	for i := range headers {
		h := &headers[i]
		start := bs.Pos()
		h.read(bs)
		bs.MarkSection("header", fmt.Sprintf("part %d", i), start, bs.Pos())

		expectedRuntime := uint32(0)
		if incomplete && i == 0 {
			expectedRuntime = INCOMPLETE_MAGIC
		}
		if h.Runtime != expectedRuntime {
			return nil, errors.Errorf("Part %d runtime slot is 0x%x, expected 0x%x", i, h.Runtime, expectedRuntime)
		}
		ld.opts.Log.Printf(" - part %d header %+v", i, *h)
	}
	m.Checksum = bs.ReadLU32()
	ld.bodyStart = uint32(bs.Pos())

	for i, p := range m.Parts {
		if err := ld.loadPart(p, &headers[i], i); err != nil {
			return nil, errors.Wrapf(err, "Failed to load part %d", i)
		}
	}
	return m, nil
}

func (ld *loader) mark(kind string, partIndex int, start int) {
	ld.bs.MarkSection(kind, fmt.Sprintf("part %d", partIndex), start, ld.bs.Pos())
}

func (ld *loader) loadPart(p *ModelPart, h *partHeader, index int) error {
	if h.Flags&^PART_FLAGS_MASK != 0 {
		return errors.Errorf("Unknown part flags 0x%x", h.Flags)
	}
	if err := h.checkBodyPointers(ld.bodyStart); err != nil {
		return err
	}
	if h.CelCount == 0 && (h.VertexCount != 0 || h.NormalCount != 0) {
		return errors.Errorf("Part without cels declares %d vertices and %d normals", h.VertexCount, h.NormalCount)
	}
	if (h.HiliteCount == 0) != (h.HilitePtr == 0) {
		return errors.Errorf("Hilite count %d does not match hilite pointer 0x%x", h.HiliteCount, h.HilitePtr)
	}

	ld.targets = nil
	if p.OwnsShared() {
		if err := ld.loadCels(p, h, index); err != nil {
			return errors.Wrapf(err, "Failed to load part cels")
		}
		if err := ld.loadHilites(p, h, index); err != nil {
			return errors.Wrapf(err, "Failed to load hilites")
		}
		if err := ld.loadCollPrims(p, h, index); err != nil {
			return errors.Wrapf(err, "Failed to load collision primitives")
		}
		if err := ld.loadMatrices(p, h, index); err != nil {
			return errors.Wrapf(err, "Failed to load collision matrices")
		}
		if err := ld.loadTextureAnimations(p, h, index); err != nil {
			return errors.Wrapf(err, "Failed to load texture animations")
		}
		if err := ld.loadFlipbook(p, h, index); err != nil {
			return errors.Wrapf(err, "Failed to load flipbook")
		}
	} else {
		if err := ld.checkAliased(p, h); err != nil {
			return errors.Wrapf(err, "Failed to verify counterpart sections")
		}
	}

	if err := ld.loadPrimitives(p, h, index); err != nil {
		return errors.Wrapf(err, "Failed to load primitives")
	}
	if err := ld.resolvePolygonReferences(p); err != nil {
		return err
	}

	expectedFlags := p.Flags()
	if !p.OwnsShared() {
		expectedFlags = p.counterpart.Flags()
	}
	if h.Flags != expectedFlags {
		return errors.Errorf("Stored part flags 0x%x differ from computed 0x%x", h.Flags, expectedFlags)
	}
	return nil
}

func (ld *loader) readSVectors(ptr uint32, count int) ([]SVector, error) {
	if count != 0 && ptr == 0 {
		return nil, errors.Errorf("Null pointer to %d vectors", count)
	}
	return unmarshalSVectors(ld.elements.Read(ld.bs, ptr, count)), nil
}

func (ld *loader) loadCels(p *ModelPart, h *partHeader, index int) error {
	bs := ld.bs
	end, err := h.sectionEnd(h.CelPtr)
	if err != nil {
		return err
	}
	if h.CelPtr+uint32(h.CelCount)*PARTCEL_HEADER_SIZE > end {
		return errors.Errorf("%d part cel headers at 0x%x cross section end 0x%x", h.CelCount, h.CelPtr, end)
	}

	bs.Seek(int(h.CelPtr))
	p.Shared.Cels = make([]*PartCel, h.CelCount)
	for i := range p.Shared.Cels {
		vertexPtr := bs.ReadLU32()
		normalPtr := bs.ReadLU32()
		bboxPtr := bs.ReadLU32()
		if reserved := bs.ReadLU32(); reserved != 0 {
			return errors.Errorf("Part cel %d reserved field is 0x%x", i, reserved)
		}

		cel := &PartCel{}
		if cel.Vertices, err = ld.readSVectors(vertexPtr, int(h.VertexCount)); err != nil {
			return errors.Wrapf(err, "Part cel %d vertices", i)
		}
		if cel.Normals, err = ld.readSVectors(normalPtr, int(h.NormalCount)); err != nil {
			return errors.Wrapf(err, "Part cel %d normals", i)
		}

		if bboxPtr != 0 {
			if bb, ok := ld.bboxes[bboxPtr]; ok {
				cel.BoundingBox = bb
			} else {
				pos := bs.Pos()
				bs.Seek(int(bboxPtr))
				bb := &BoundingBox{}
				bb.read(bs)
				bs.MarkSection("bbox", fmt.Sprintf("part %d cel %d", index, i), int(bboxPtr), bs.Pos())
				bs.Seek(pos)
				ld.bboxes[bboxPtr] = bb
				cel.BoundingBox = bb
			}
		}
		p.Shared.Cels[i] = cel
	}
	ld.mark("part cels", index, int(h.CelPtr))
	return nil
}

func (ld *loader) loadHilites(p *ModelPart, h *partHeader, index int) error {
	if h.HiliteCount == 0 {
		return nil
	}
	end, err := h.sectionEnd(h.HilitePtr)
	if err != nil {
		return err
	}
	if h.HilitePtr+uint32(h.HiliteCount)*HILITE_SIZE > end {
		return errors.Errorf("%d hilites at 0x%x cross section end 0x%x", h.HiliteCount, h.HilitePtr, end)
	}

	ld.bs.Seek(int(h.HilitePtr))
	p.Shared.Hilites = make([]*Hilite, h.HiliteCount)
	for i := range p.Shared.Hilites {
		hl := &Hilite{}
		if err := hl.read(ld.bs); err != nil {
			return errors.Wrapf(err, "Hilite %d", i)
		}
		if hl.Attach == HILITE_ATTACH_VERTEX && int(hl.Vertex) >= int(h.VertexCount) {
			return errors.Errorf("Hilite %d vertex %d out of %d vertices", i, hl.Vertex, h.VertexCount)
		}
		p.Shared.Hilites[i] = hl
	}
	ld.mark("hilites", index, int(h.HilitePtr))
	return nil
}

func (ld *loader) loadCollPrims(p *ModelPart, h *partHeader, index int) error {
	if h.CollPrimPtr == 0 {
		return nil
	}
	end, err := h.sectionEnd(h.CollPrimPtr)
	if err != nil {
		return err
	}

	ld.bs.Seek(int(h.CollPrimPtr))
	for {
		if ld.bs.Pos()+COLLPRIM_SIZE > int(end) {
			return errors.Errorf("Collision primitive chain reaches section end 0x%x without last-in-list flag", end)
		}
		cp := &CollPrim{}
		last, err := cp.read(ld.bs)
		if err != nil {
			return errors.Wrapf(err, "Collision primitive %d", len(p.Shared.CollPrims))
		}
		p.Shared.CollPrims = append(p.Shared.CollPrims, cp)
		if last {
			break
		}
	}
	ld.mark("collprims", index, int(h.CollPrimPtr))
	return nil
}

func (ld *loader) loadMatrices(p *ModelPart, h *partHeader, index int) error {
	if h.MatrixPtr == 0 {
		for i, cp := range p.Shared.CollPrims {
			if cp.matrixPtr != 0 {
				return errors.Errorf("Collision primitive %d references matrix 0x%x but part has no matrices", i, cp.matrixPtr)
			}
		}
		return nil
	}

	end, err := h.sectionEnd(h.MatrixPtr)
	if err != nil {
		return err
	}
	length := int(end - h.MatrixPtr)
	switch rem := length % MATRIX_SIZE; {
	case rem == 0:
	case rem == MATRIX_PADDING_SIZE && ld.opts.Caps.TolerateMatrixPadding():
		p.Shared.MatrixPadding = true
	default:
		return errors.Errorf("Matrix section length %d is not a multiple of %d", length, MATRIX_SIZE)
	}

	ld.bs.Seek(int(h.MatrixPtr))
	p.Shared.Matrices = make([]*CollPrimMatrix, length/MATRIX_SIZE)
	for i := range p.Shared.Matrices {
		m := &CollPrimMatrix{}
		if err := m.read(ld.bs); err != nil {
			return errors.Wrapf(err, "Matrix %d", i)
		}
		p.Shared.Matrices[i] = m
	}
	if p.Shared.MatrixPadding {
		if pad := ld.bs.ReadLU32(); pad != 0 {
			return errors.Errorf("Matrix section padding is 0x%x", pad)
		}
	}
	ld.mark("matrices", index, int(h.MatrixPtr))

	for i, cp := range p.Shared.CollPrims {
		if cp.matrixPtr == 0 {
			continue
		}
		off := int64(cp.matrixPtr) - int64(h.MatrixPtr)
		if off < 0 || off%MATRIX_SIZE != 0 || off/MATRIX_SIZE >= int64(len(p.Shared.Matrices)) {
			return errors.Errorf("Collision primitive %d matrix pointer 0x%x is not a matrix", i, cp.matrixPtr)
		}
		cp.Matrix = p.Shared.Matrices[off/MATRIX_SIZE]
	}
	return nil
}

func (ld *loader) loadTextureAnimations(p *ModelPart, h *partHeader, index int) error {
	if h.TexAnimPtr == 0 {
		return nil
	}
	bs := ld.bs
	end, err := h.sectionEnd(h.TexAnimPtr)
	if err != nil {
		return err
	}

	bs.Seek(int(h.TexAnimPtr))
	count := bs.ReadLU32()
	if uint64(h.TexAnimPtr)+4+uint64(count)*ANIM_TARGET_SIZE > uint64(end) {
		return errors.Errorf("%d texture animation targets cross section end 0x%x", count, end)
	}

	type rawTarget struct {
		polygonIndex uint16
		kind         PolygonKind
		animationPtr uint32
	}
	raw := make([]rawTarget, count)
	for i := range raw {
		raw[i].polygonIndex = bs.ReadLU16()
		raw[i].kind = PolygonKind(bs.ReadLU16())
		raw[i].animationPtr = bs.ReadLU32()
		if !raw[i].kind.Valid() {
			return errors.Errorf("Texture animation target %d has unknown polygon kind %d", i, raw[i].kind)
		}
	}

	byOffset := make(map[uint32]*TextureAnimation)
	for bs.Pos() < int(end) {
		if int(end)-bs.Pos() < 4 {
			return errors.Errorf("Texture animation section has %d trailing bytes", int(end)-bs.Pos())
		}
		offset := uint32(bs.Pos())
		anim := &TextureAnimation{}
		if err := anim.read(bs, int(end)); err != nil {
			return err
		}
		byOffset[offset] = anim
		p.animations = append(p.animations, anim)
	}

	for i, rt := range raw {
		anim, ok := byOffset[rt.animationPtr]
		if !ok {
			return errors.Errorf("Texture animation target %d points to 0x%x which is not an animation", i, rt.animationPtr)
		}
		ld.targets = append(ld.targets, pendingTarget{polygonIndex: rt.polygonIndex, kind: rt.kind, animation: anim})
	}
	ld.mark("texture animations", index, int(h.TexAnimPtr))
	return nil
}

func (ld *loader) loadFlipbook(p *ModelPart, h *partHeader, index int) error {
	if h.FlipbookPtr == 0 {
		return nil
	}
	end, err := h.sectionEnd(h.FlipbookPtr)
	if err != nil {
		return err
	}
	ld.bs.Seek(int(h.FlipbookPtr))
	fb := &Flipbook{}
	if err := fb.read(ld.bs, len(p.Shared.Cels)); err != nil {
		return err
	}
	if ld.bs.Pos() > int(end) {
		return errors.Errorf("Flipbook crosses section end 0x%x", end)
	}
	p.Shared.Flipbook = fb
	ld.mark("flipbook", index, int(h.FlipbookPtr))
	return nil
}

// checkAliased verifies that the sections an incomplete part skips are
// placed where the counterpart data would be.
func (ld *loader) checkAliased(p *ModelPart, h *partHeader) error {
	cp := p.counterpart
	shared := cp.Shared
	if int(h.CelCount) != len(shared.Cels) ||
		int(h.VertexCount) != shared.VertexCount() ||
		int(h.NormalCount) != shared.NormalCount() ||
		int(h.HiliteCount) != len(shared.Hilites) {
		return errors.Errorf("Header counts (cels %d, vertices %d, normals %d, hilites %d) differ from counterpart (%d, %d, %d, %d)",
			h.CelCount, h.VertexCount, h.NormalCount, h.HiliteCount,
			len(shared.Cels), shared.VertexCount(), shared.NormalCount(), len(shared.Hilites))
	}

	for _, check := range []struct {
		name    string
		ptr     uint32
		present bool
	}{
		{"collision primitives", h.CollPrimPtr, len(shared.CollPrims) != 0},
		{"collision matrices", h.MatrixPtr, len(shared.Matrices) != 0 || shared.MatrixPadding},
		{"texture animations", h.TexAnimPtr, cp.hasTextureAnimationSection()},
		{"flipbook", h.FlipbookPtr, shared.Flipbook != nil},
	} {
		if (check.ptr != 0) != check.present {
			return errors.Errorf("Section %s pointer 0x%x does not match counterpart", check.name, check.ptr)
		}
	}

	if len(cp.animations) != 0 {
		ld.opts.warnf("part %d: counterpart texture animations are not carried over to the incomplete model", p.Index())
	}
	return nil
}

func (ld *loader) loadPrimitives(p *ModelPart, h *partHeader, index int) error {
	bs := ld.bs
	bs.Seek(int(h.PrimitivePtr))
	vertexCount := p.Shared.VertexCount()
	normalCount := p.Shared.NormalCount()

	for remaining := int(h.PrimitiveCount); remaining > 0; {
		blockPos := bs.Pos()
		kind := PolygonKind(bs.ReadLU16())
		if !kind.Valid() {
			return errors.Errorf("Unknown polygon kind %d at 0x%x", kind, blockPos)
		}
		count := int(bs.ReadLU16())
		if count == 0 || count > remaining {
			return errors.Errorf("Polygon block at 0x%x has %d polygons, %d remaining", blockPos, count, remaining)
		}

		b := NewPolygonBlock(kind)
		if err := b.read(bs, count, ld.opts.Caps); err != nil {
			return errors.Wrapf(err, "Block at 0x%x", blockPos)
		}
		for _, poly := range b.polygons {
			if err := poly.checkIndices(vertexCount, normalCount); err != nil {
				return errors.Wrapf(err, "Block at 0x%x", blockPos)
			}
		}
		p.AddPolygonBlock(b)
		remaining -= count
	}
	ld.mark("primitives", index, int(h.PrimitivePtr))
	return nil
}

func (ld *loader) resolvePolygonReferences(p *ModelPart) error {
	ordered := p.OrderedPolygons()

	if p.OwnsShared() {
		for i, hl := range p.Shared.Hilites {
			if hl.Attach != HILITE_ATTACH_POLYGON {
				continue
			}
			if int(hl.polygonIndex) >= len(ordered) {
				return errors.Errorf("Hilite %d polygon %d out of %d polygons", i, hl.polygonIndex, len(ordered))
			}
			hl.Polygon = ordered[hl.polygonIndex]
		}
	}

	for i, pt := range ld.targets {
		if int(pt.polygonIndex) >= len(ordered) {
			return errors.Errorf("Texture animation target %d polygon %d out of %d polygons", i, pt.polygonIndex, len(ordered))
		}
		poly := ordered[pt.polygonIndex]
		if poly.kind != pt.kind {
			return errors.Errorf("Texture animation target %d expects %v polygon, found %v", i, pt.kind, poly.kind)
		}
		if _, t := p.targetOf(poly); t != nil {
			return errors.Errorf("Polygon %d has more than one texture animation target", pt.polygonIndex)
		}
		p.targets = append(p.targets, &TextureAnimationTarget{Polygon: poly, Animation: pt.animation})
	}
	ld.targets = nil
	return nil
}
