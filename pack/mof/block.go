package mof

import (
	"github.com/pkg/errors"

	"github.com/mogaika/mof_browser/utils"
)

var ErrKindMismatch = errors.New("polygon kind does not match block kind")

// PolygonBlock is a run of polygons sharing one kind.
type PolygonBlock struct {
	kind     PolygonKind
	polygons []*Polygon
	part     *ModelPart
}

func NewPolygonBlock(kind PolygonKind) *PolygonBlock {
	if !kind.Valid() {
		panic(errors.Errorf("Invalid polygon kind %d", kind))
	}
	return &PolygonBlock{kind: kind}
}

func (b *PolygonBlock) Kind() PolygonKind {
	return b.kind
}

// Polygons must not be modified by caller.
func (b *PolygonBlock) Polygons() []*Polygon {
	return b.polygons
}

func (b *PolygonBlock) Part() *ModelPart {
	return b.part
}

func (b *PolygonBlock) AddPolygon(p *Polygon) error {
	if p.kind != b.kind {
		return errors.Wrapf(ErrKindMismatch, "Failed to add %v polygon to %v block", p.kind, b.kind)
	}
	if p.block != nil {
		return errors.Errorf("Polygon %v already belongs to a block", p)
	}
	p.block = b
	b.polygons = append(b.polygons, p)
	if b.part != nil {
		b.part.MarkDirty()
	}
	return nil
}

// NewPolygon creates a polygon of the block kind and appends it.
func (b *PolygonBlock) NewPolygon() *Polygon {
	p := NewPolygon(b.kind)
	if err := b.AddPolygon(p); err != nil {
		panic(err)
	}
	return p
}

func (b *PolygonBlock) RemovePolygon(p *Polygon) bool {
	if p.block != b {
		return false
	}
	for i, bp := range b.polygons {
		if bp == p {
			b.polygons = append(b.polygons[:i], b.polygons[i+1:]...)
			break
		}
	}
	p.block = nil
	if b.part != nil {
		b.part.MarkDirty()
		b.part.dropReferences(func(rp *Polygon) bool { return rp == p })
	}
	return true
}

func (b *PolygonBlock) read(bs *utils.BufStack, count int, caps Capabilities) error {
	b.polygons = make([]*Polygon, 0, count)
	for i := 0; i < count; i++ {
		p := NewPolygon(b.kind)
		if err := p.read(bs, caps); err != nil {
			return errors.Wrapf(err, "Failed to read %v polygon %d", b.kind, i)
		}
		p.block = b
		b.polygons = append(b.polygons, p)
	}
	return nil
}

func (b *PolygonBlock) write(bw *utils.BufWriter, caps Capabilities) {
	bw.WriteLU16(uint16(b.kind))
	bw.WriteLU16(uint16(len(b.polygons)))
	for _, p := range b.polygons {
		p.write(bw, caps)
	}
}
