package mof

import (
	"fmt"
	"log"

	"github.com/pkg/errors"

	"github.com/mogaika/mof_browser/utils"
)

const (
	PART_HEADER_SIZE = 0x2c

	// offset of the first part header runtime slot, reused as a marker
	// by incomplete models
	INCOMPLETE_PROBE_OFFSET = 0x1c
	INCOMPLETE_MAGIC        = 0x40
)

// Capabilities are the per-title layout quirks of the model format.
type Capabilities interface {
	TolerateMatrixPadding() bool
	PolygonFlagsFirst() bool
}

type latestCapabilities struct{}

func (latestCapabilities) TolerateMatrixPadding() bool { return false }
func (latestCapabilities) PolygonFlagsFirst() bool     { return false }

var DefaultCapabilities Capabilities = latestCapabilities{}

type Options struct {
	Caps Capabilities
	// complete model that an incomplete model borrows from
	Counterpart *StaticModel
	// checked on save, nil disables the check
	Textures TextureResolver
	Log      *utils.Logger
}

func (o *Options) withDefaults() *Options {
	r := Options{}
	if o != nil {
		r = *o
	}
	if r.Caps == nil {
		r.Caps = DefaultCapabilities
	}
	return &r
}

func (o *Options) warnf(format string, a ...interface{}) {
	if o.Log != nil {
		o.Log.Printf("warning: "+format, a...)
	} else {
		log.Printf("[mof] "+format, a...)
	}
}

type StaticModel struct {
	Parts []*ModelPart
	// meaning unknown, kept as is
	Checksum uint32

	incomplete  bool
	counterpart *StaticModel
}

func NewStaticModel() *StaticModel {
	return &StaticModel{}
}

// NewIncompleteStaticModel creates a model whose parts borrow everything
// but geometry from the counterpart parts.
func NewIncompleteStaticModel(counterpart *StaticModel) (*StaticModel, error) {
	if counterpart == nil || counterpart.incomplete {
		return nil, errors.Errorf("Incomplete model requires a complete counterpart")
	}
	m := &StaticModel{incomplete: true, counterpart: counterpart, Checksum: counterpart.Checksum}
	for _, cp := range counterpart.Parts {
		p := newModelPart(m, cp.Shared)
		p.counterpart = cp
		m.Parts = append(m.Parts, p)
	}
	return m, nil
}

func (m *StaticModel) AddPart() *ModelPart {
	if m.incomplete {
		panic("parts of incomplete model are defined by its counterpart")
	}
	p := newModelPart(m, &PartShared{})
	m.Parts = append(m.Parts, p)
	return p
}

func (m *StaticModel) IsIncomplete() bool {
	return m.incomplete
}

func (m *StaticModel) Counterpart() *StaticModel {
	return m.counterpart
}

func (m *StaticModel) HasAnimatedTextures() bool {
	for _, p := range m.Parts {
		if p.Flags()&PART_FLAG_ANIMATED_POLYS != 0 {
			return true
		}
	}
	return false
}

func (m *StaticModel) HasCollision() bool {
	for _, p := range m.Parts {
		if len(p.Shared.CollPrims) != 0 {
			return true
		}
	}
	return false
}

func (m *StaticModel) HasFlipbook() bool {
	for _, p := range m.Parts {
		if p.Shared.Flipbook != nil {
			return true
		}
	}
	return false
}

func (m *StaticModel) String() string {
	return fmt.Sprintf("StaticModel(parts:%d incomplete:%v checksum:0x%.8x)", len(m.Parts), m.incomplete, m.Checksum)
}

// InferSectionEnd returns the smallest candidate strictly greater than
// start. Sections without a stored length end where the next one begins.
func InferSectionEnd(start uint32, candidates []uint32) (uint32, error) {
	found := false
	var end uint32
	for _, c := range candidates {
		if c > start && (!found || c < end) {
			end = c
			found = true
		}
	}
	if !found {
		return 0, errors.Errorf("Failed to infer end of section at 0x%x: no following section", start)
	}
	return end, nil
}

type partHeader struct {
	Flags          uint16
	CelCount       uint16
	VertexCount    uint16
	NormalCount    uint16
	PrimitiveCount uint16
	HiliteCount    uint16

	CelPtr       uint32
	PrimitivePtr uint32
	HilitePtr    uint32
	Runtime      uint32
	CollPrimPtr  uint32
	MatrixPtr    uint32
	TexAnimPtr   uint32
	FlipbookPtr  uint32
}

const (
	headerCelPtrOffset       = 0xc
	headerPrimitivePtrOffset = 0x10
	headerHilitePtrOffset    = 0x14
	headerRuntimeOffset      = 0x18
	headerCollPrimPtrOffset  = 0x1c
	headerMatrixPtrOffset    = 0x20
	headerTexAnimPtrOffset   = 0x24
	headerFlipbookPtrOffset  = 0x28
)

func (h *partHeader) read(bs *utils.BufStack) {
	h.Flags = bs.ReadLU16()
	h.CelCount = bs.ReadLU16()
	h.VertexCount = bs.ReadLU16()
	h.NormalCount = bs.ReadLU16()
	h.PrimitiveCount = bs.ReadLU16()
	h.HiliteCount = bs.ReadLU16()
	h.CelPtr = bs.ReadLU32()
	h.PrimitivePtr = bs.ReadLU32()
	h.HilitePtr = bs.ReadLU32()
	h.Runtime = bs.ReadLU32()
	h.CollPrimPtr = bs.ReadLU32()
	h.MatrixPtr = bs.ReadLU32()
	h.TexAnimPtr = bs.ReadLU32()
	h.FlipbookPtr = bs.ReadLU32()
}

// write emits counts and flags, pointers are patched later
func (h *partHeader) write(bw *utils.BufWriter) int {
	pos := bw.Pos()
	bw.WriteLU16(h.Flags)
	bw.WriteLU16(h.CelCount)
	bw.WriteLU16(h.VertexCount)
	bw.WriteLU16(h.NormalCount)
	bw.WriteLU16(h.PrimitiveCount)
	bw.WriteLU16(h.HiliteCount)
	bw.WriteLU32(h.CelPtr)
	bw.WriteLU32(h.PrimitivePtr)
	bw.WriteLU32(h.HilitePtr)
	bw.WriteLU32(h.Runtime)
	bw.WriteLU32(h.CollPrimPtr)
	bw.WriteLU32(h.MatrixPtr)
	bw.WriteLU32(h.TexAnimPtr)
	bw.WriteLU32(h.FlipbookPtr)
	return pos
}

// bodyPointers lists section pointers in body order
func (h *partHeader) bodyPointers() []uint32 {
	return []uint32{h.CelPtr, h.HilitePtr, h.CollPrimPtr, h.MatrixPtr, h.TexAnimPtr, h.FlipbookPtr, h.PrimitivePtr}
}

var bodySectionNames = []string{"part cels", "hilites", "collprims", "matrices", "texture animations", "flipbook", "primitives"}

// checkBodyPointers accepts sections in any order, each one ends at the
// next pointer above it
func (h *partHeader) checkBodyPointers(bodyStart uint32) error {
	if h.CelPtr == 0 {
		return errors.Errorf("Part has no part cel section")
	}
	if h.PrimitivePtr == 0 {
		return errors.Errorf("Part has no primitive section")
	}
	ptrs := h.bodyPointers()
	for i, ptr := range ptrs {
		if ptr == 0 {
			continue
		}
		if ptr < bodyStart {
			return errors.Errorf("Section %s at 0x%x is inside the model header (body starts at 0x%x)",
				bodySectionNames[i], ptr, bodyStart)
		}
		for j := 0; j < i; j++ {
			if ptrs[j] == ptr {
				return errors.Errorf("Sections %s and %s share offset 0x%x",
					bodySectionNames[j], bodySectionNames[i], ptr)
			}
		}
	}
	return nil
}

func (h *partHeader) sectionEnd(start uint32) (uint32, error) {
	return InferSectionEnd(start, h.bodyPointers())
}
