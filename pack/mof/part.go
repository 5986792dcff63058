package mof

import (
	"github.com/pkg/errors"
)

const (
	PART_FLAG_ANIMATED_POLYS = 0x1

	PART_FLAGS_MASK = PART_FLAG_ANIMATED_POLYS
)

// PartShared is the per-part data an incomplete model borrows from its
// complete counterpart. Two parts holding the same *PartShared see each
// other's modifications.
type PartShared struct {
	Cels          []*PartCel
	Hilites       []*Hilite
	CollPrims     []*CollPrim
	Matrices      []*CollPrimMatrix
	MatrixPadding bool
	Flipbook      *Flipbook
}

func (ps *PartShared) VertexCount() int {
	if len(ps.Cels) == 0 {
		return 0
	}
	return len(ps.Cels[0].Vertices)
}

func (ps *PartShared) NormalCount() int {
	if len(ps.Cels) == 0 {
		return 0
	}
	return len(ps.Cels[0].Normals)
}

type ModelPart struct {
	Shared *PartShared

	model       *StaticModel
	counterpart *ModelPart

	blocks       []*PolygonBlock
	blocksByKind map[PolygonKind][]*PolygonBlock

	animations []*TextureAnimation
	targets    []*TextureAnimationTarget

	ordered    []*Polygon
	orderDirty bool
}

func newModelPart(model *StaticModel, shared *PartShared) *ModelPart {
	return &ModelPart{
		Shared:       shared,
		model:        model,
		blocksByKind: make(map[PolygonKind][]*PolygonBlock),
	}
}

func (p *ModelPart) Model() *StaticModel {
	return p.model
}

// Index is the position of the part inside its model, -1 if detached.
func (p *ModelPart) Index() int {
	if p.model == nil {
		return -1
	}
	for i, mp := range p.model.Parts {
		if mp == p {
			return i
		}
	}
	return -1
}

// Counterpart is the complete part the shared data is borrowed from, nil
// when the part owns its data.
func (p *ModelPart) Counterpart() *ModelPart {
	return p.counterpart
}

func (p *ModelPart) OwnsShared() bool {
	return p.counterpart == nil
}

func (p *ModelPart) AddPartCel(vertices, normals []SVector) (*PartCel, error) {
	if len(p.Shared.Cels) != 0 {
		if len(vertices) != p.Shared.VertexCount() || len(normals) != p.Shared.NormalCount() {
			return nil, errors.Errorf("Part cel with %d vertices and %d normals does not match part (%d, %d)",
				len(vertices), len(normals), p.Shared.VertexCount(), p.Shared.NormalCount())
		}
	}
	cel := &PartCel{Vertices: vertices, Normals: normals}
	p.Shared.Cels = append(p.Shared.Cels, cel)
	return cel, nil
}

func (p *ModelPart) Blocks() []*PolygonBlock {
	return p.blocks
}

func (p *ModelPart) BlocksOfKind(kind PolygonKind) []*PolygonBlock {
	return p.blocksByKind[kind]
}

func (p *ModelPart) AddPolygonBlock(b *PolygonBlock) bool {
	if b.part != nil {
		return false
	}
	b.part = p
	p.blocks = append(p.blocks, b)
	p.blocksByKind[b.kind] = append(p.blocksByKind[b.kind], b)

	if !p.orderDirty {
		for _, poly := range b.polygons {
			poly.index = len(p.ordered)
			p.ordered = append(p.ordered, poly)
		}
	}
	return true
}

func (p *ModelPart) RemovePolygonBlock(b *PolygonBlock) bool {
	if b.part != p {
		return false
	}
	for i, pb := range p.blocks {
		if pb == b {
			p.blocks = append(p.blocks[:i], p.blocks[i+1:]...)
			break
		}
	}
	kindBlocks := p.blocksByKind[b.kind]
	for i, kb := range kindBlocks {
		if kb == b {
			kindBlocks = append(kindBlocks[:i], kindBlocks[i+1:]...)
			break
		}
	}
	if len(kindBlocks) == 0 {
		delete(p.blocksByKind, b.kind)
	} else {
		p.blocksByKind[b.kind] = kindBlocks
	}

	b.part = nil
	p.MarkDirty()
	p.dropReferences(func(poly *Polygon) bool { return poly.block == b })
	return true
}

// dropReferences removes texture animation targets and owned hilites that
// point at matching polygons.
func (p *ModelPart) dropReferences(match func(*Polygon) bool) {
	targets := p.targets[:0]
	for _, t := range p.targets {
		if !match(t.Polygon) {
			targets = append(targets, t)
		}
	}
	for i := len(targets); i < len(p.targets); i++ {
		p.targets[i] = nil
	}
	p.targets = targets

	if !p.OwnsShared() {
		return
	}
	hilites := p.Shared.Hilites[:0]
	for _, h := range p.Shared.Hilites {
		if h.Attach == HILITE_ATTACH_POLYGON && match(h.Polygon) {
			continue
		}
		hilites = append(hilites, h)
	}
	for i := len(hilites); i < len(p.Shared.Hilites); i++ {
		p.Shared.Hilites[i] = nil
	}
	p.Shared.Hilites = hilites
}

func (p *ModelPart) MarkDirty() {
	p.orderDirty = true
}

// OrderedPolygons lists every polygon of the part: blocks in list order,
// polygons in block order. The position in this list is the polygon index
// stored by hilites and texture animation targets.
func (p *ModelPart) OrderedPolygons() []*Polygon {
	if p.orderDirty {
		p.ordered = p.ordered[:0]
		for _, b := range p.blocks {
			for _, poly := range b.polygons {
				poly.index = len(p.ordered)
				p.ordered = append(p.ordered, poly)
			}
		}
		p.orderDirty = false
	}
	return p.ordered
}

// PolygonIndex returns -1 for polygons that are not part of this part.
func (p *ModelPart) PolygonIndex(poly *Polygon) int {
	if poly == nil {
		return -1
	}
	ordered := p.OrderedPolygons()
	if poly.index >= 0 && poly.index < len(ordered) && ordered[poly.index] == poly {
		return poly.index
	}
	return -1
}

func (p *ModelPart) PolygonCount() int {
	return len(p.OrderedPolygons())
}

func (p *ModelPart) TextureAnimations() []*TextureAnimation {
	return p.animations
}

func (p *ModelPart) TextureAnimationTargets() []*TextureAnimationTarget {
	return p.targets
}

func (p *ModelPart) hasTextureAnimationSection() bool {
	return len(p.animations) != 0
}

func (p *ModelPart) hasAnimation(anim *TextureAnimation) bool {
	for _, a := range p.animations {
		if a == anim {
			return true
		}
	}
	return false
}

func (p *ModelPart) AddTextureAnimation(anim *TextureAnimation) bool {
	if anim == nil || p.hasAnimation(anim) {
		return false
	}
	p.animations = append(p.animations, anim)
	return true
}

// RemoveTextureAnimation unregisters the animation and every target using it.
func (p *ModelPart) RemoveTextureAnimation(anim *TextureAnimation) bool {
	for i, a := range p.animations {
		if a == anim {
			p.animations = append(p.animations[:i], p.animations[i+1:]...)
			targets := p.targets[:0]
			for _, t := range p.targets {
				if t.Animation != anim {
					targets = append(targets, t)
				}
			}
			p.targets = targets
			return true
		}
	}
	return false
}

func (p *ModelPart) targetOf(poly *Polygon) (int, *TextureAnimationTarget) {
	for i, t := range p.targets {
		if t.Polygon == poly {
			return i, t
		}
	}
	return -1, nil
}

func (p *ModelPart) TextureAnimation(poly *Polygon) *TextureAnimation {
	if _, t := p.targetOf(poly); t != nil {
		return t.Animation
	}
	return nil
}

// SetTextureAnimation binds the polygon to anim, replacing the previous
// binding. A nil anim removes the binding.
func (p *ModelPart) SetTextureAnimation(poly *Polygon, anim *TextureAnimation) error {
	if poly.block == nil || poly.block.part != p {
		return errors.Errorf("Polygon %v does not belong to part %d", poly, p.Index())
	}

	i, t := p.targetOf(poly)
	if anim == nil {
		if t != nil {
			p.targets = append(p.targets[:i], p.targets[i+1:]...)
		}
		return nil
	}

	p.AddTextureAnimation(anim)
	if t == nil {
		p.targets = append(p.targets, &TextureAnimationTarget{Polygon: poly, Animation: anim})
	} else if t.Animation != anim {
		t.Animation = anim
	}
	return nil
}

// Flags derives the header flag word from the part content.
func (p *ModelPart) Flags() uint16 {
	var flags uint16
	if len(p.targets) != 0 {
		flags |= PART_FLAG_ANIMATED_POLYS
	}
	return flags
}
