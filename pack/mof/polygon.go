package mof

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/mogaika/mof_browser/utils"
)

type PolygonKind uint16

const (
	KIND_F3 PolygonKind = iota
	KIND_F4
	KIND_FT3
	KIND_FT4
	KIND_G3
	KIND_G4
	KIND_GT3
	KIND_GT4
	KIND_E3
	KIND_E4
	KIND_LF2
	KIND_LF3
	KIND_HLF3
	KIND_HLF4
	KIND_GE3
	KIND_GE4
)

type kindInfo struct {
	name       string
	vertices   int
	envNormals int
	normals    int
	textured   bool
}

var kindInfos = [...]kindInfo{
	KIND_F3:   {"F3", 3, 0, 1, false},
	KIND_F4:   {"F4", 4, 0, 1, false},
	KIND_FT3:  {"FT3", 3, 0, 1, true},
	KIND_FT4:  {"FT4", 4, 0, 1, true},
	KIND_G3:   {"G3", 3, 0, 3, false},
	KIND_G4:   {"G4", 4, 0, 4, false},
	KIND_GT3:  {"GT3", 3, 0, 3, true},
	KIND_GT4:  {"GT4", 4, 0, 4, true},
	KIND_E3:   {"E3", 3, 3, 1, true},
	KIND_E4:   {"E4", 4, 4, 1, true},
	KIND_LF2:  {"LF2", 2, 0, 0, false},
	KIND_LF3:  {"LF3", 3, 0, 0, false},
	KIND_HLF3: {"HLF3", 3, 0, 0, false},
	KIND_HLF4: {"HLF4", 4, 0, 0, false},
	KIND_GE3:  {"GE3", 3, 3, 3, true},
	KIND_GE4:  {"GE4", 4, 4, 4, true},
}

func (k PolygonKind) Valid() bool {
	return int(k) < len(kindInfos)
}

func (k PolygonKind) info() kindInfo {
	if !k.Valid() {
		panic(fmt.Sprintf("invalid polygon kind %d", k))
	}
	return kindInfos[k]
}

func (k PolygonKind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("KIND_%d", uint16(k))
	}
	return kindInfos[k].name
}

func (k PolygonKind) VertexCount() int    { return k.info().vertices }
func (k PolygonKind) EnvNormalCount() int { return k.info().envNormals }
func (k PolygonKind) NormalCount() int    { return k.info().normals }
func (k PolygonKind) Textured() bool      { return k.info().textured }

type UV struct {
	U, V uint8
}

type Color struct {
	R, G, B, Code uint8
}

type Polygon struct {
	kind PolygonKind

	Vertices   []uint16
	EnvNormals []uint16
	Normals    []uint16
	UVs        []UV
	Flags      uint16
	TextureId  uint16
	Color      Color

	block *PolygonBlock
	index int
}

func NewPolygon(kind PolygonKind) *Polygon {
	info := kind.info()
	p := &Polygon{
		kind:       kind,
		Vertices:   make([]uint16, info.vertices),
		EnvNormals: make([]uint16, info.envNormals),
		Normals:    make([]uint16, info.normals),
		index:      -1,
	}
	if info.textured {
		p.UVs = make([]UV, info.vertices)
	}
	return p
}

func (p *Polygon) Kind() PolygonKind {
	return p.kind
}

func (p *Polygon) Block() *PolygonBlock {
	return p.block
}

func (p *Polygon) String() string {
	return fmt.Sprintf("%v%v", p.kind, p.Vertices)
}

// storedOrder maps file slot to logical slot. Quads keep their last two
// entries swapped on disk.
func storedOrder(n int) []int {
	if n == 4 {
		return []int{0, 1, 3, 2}
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}

func (p *Polygon) validate() error {
	info := p.kind.info()
	if len(p.Vertices) != info.vertices {
		return errors.Errorf("Invalid %v vertex index count %d", p.kind, len(p.Vertices))
	}
	if len(p.EnvNormals) != info.envNormals {
		return errors.Errorf("Invalid %v environment normal index count %d", p.kind, len(p.EnvNormals))
	}
	if len(p.Normals) != info.normals {
		return errors.Errorf("Invalid %v normal index count %d", p.kind, len(p.Normals))
	}
	if info.textured && len(p.UVs) != info.vertices {
		return errors.Errorf("Invalid %v uv count %d", p.kind, len(p.UVs))
	}
	if !info.textured && len(p.UVs) != 0 {
		return errors.Errorf("Untextured %v polygon has %d uvs", p.kind, len(p.UVs))
	}
	return nil
}

func (p *Polygon) checkIndices(vertexCount, normalCount int) error {
	for _, v := range p.Vertices {
		if int(v) >= vertexCount {
			return errors.Errorf("%v vertex index %d out of %d vertices", p.kind, v, vertexCount)
		}
	}
	for _, n := range p.EnvNormals {
		if int(n) >= normalCount {
			return errors.Errorf("%v environment normal index %d out of %d normals", p.kind, n, normalCount)
		}
	}
	for _, n := range p.Normals {
		if int(n) >= normalCount {
			return errors.Errorf("%v normal index %d out of %d normals", p.kind, n, normalCount)
		}
	}
	return nil
}

func readIndices(bs *utils.BufStack, dst []uint16, swapQuad bool) {
	if swapQuad {
		for _, i := range storedOrder(len(dst)) {
			dst[i] = bs.ReadLU16()
		}
	} else {
		for i := range dst {
			dst[i] = bs.ReadLU16()
		}
	}
}

func writeIndices(bw *utils.BufWriter, src []uint16, swapQuad bool) {
	if swapQuad {
		for _, i := range storedOrder(len(src)) {
			bw.WriteLU16(src[i])
		}
	} else {
		for _, v := range src {
			bw.WriteLU16(v)
		}
	}
}

func (p *Polygon) readFlags(bs *utils.BufStack) error {
	p.Flags = bs.ReadLU16()
	if zero := bs.ReadLU16(); zero != 0 {
		return errors.Errorf("Polygon flags padding is 0x%x, expected 0", zero)
	}
	return nil
}

func (p *Polygon) readTexture(bs *utils.BufStack, flagsFirst bool) error {
	if p.kind != KIND_FT4 && !flagsFirst {
		if err := p.readFlags(bs); err != nil {
			return err
		}
	}

	order := storedOrder(len(p.UVs))
	readUV := func(slot int) {
		uv := &p.UVs[order[slot]]
		uv.U = bs.ReadU8()
		uv.V = bs.ReadU8()
	}

	readUV(0)
	if clut := bs.ReadLU16(); clut != 0 {
		return errors.Errorf("Polygon clut is 0x%x, expected 0", clut)
	}
	readUV(1)
	p.TextureId = bs.ReadLU16()
	for slot := 2; slot < len(p.UVs); slot++ {
		readUV(slot)
	}

	if p.kind == KIND_FT4 && !flagsFirst {
		if err := p.readFlags(bs); err != nil {
			return err
		}
	}
	return nil
}

func (p *Polygon) writeTexture(bw *utils.BufWriter, flagsFirst bool) {
	if p.kind != KIND_FT4 && !flagsFirst {
		bw.WriteLU16(p.Flags)
		bw.WriteLU16(0)
	}

	order := storedOrder(len(p.UVs))
	writeUV := func(slot int) {
		uv := p.UVs[order[slot]]
		bw.WriteU8(uv.U)
		bw.WriteU8(uv.V)
	}

	writeUV(0)
	bw.WriteLU16(0)
	writeUV(1)
	bw.WriteLU16(p.TextureId)
	for slot := 2; slot < len(p.UVs); slot++ {
		writeUV(slot)
	}

	if p.kind == KIND_FT4 && !flagsFirst {
		bw.WriteLU16(p.Flags)
		bw.WriteLU16(0)
	}
}

func (p *Polygon) read(bs *utils.BufStack, caps Capabilities) error {
	textured := p.kind.Textured()
	flagsFirst := textured && caps.PolygonFlagsFirst()

	if flagsFirst {
		if err := p.readFlags(bs); err != nil {
			return err
		}
	}
	readIndices(bs, p.Vertices, true)
	readIndices(bs, p.EnvNormals, false)
	readIndices(bs, p.Normals, false)
	if textured {
		if err := p.readTexture(bs, flagsFirst); err != nil {
			return err
		}
	}
	bs.Align(4)
	p.Color.R = bs.ReadU8()
	p.Color.G = bs.ReadU8()
	p.Color.B = bs.ReadU8()
	p.Color.Code = bs.ReadU8()
	return nil
}

func (p *Polygon) write(bw *utils.BufWriter, caps Capabilities) {
	textured := p.kind.Textured()
	flagsFirst := textured && caps.PolygonFlagsFirst()

	if flagsFirst {
		bw.WriteLU16(p.Flags)
		bw.WriteLU16(0)
	}
	writeIndices(bw, p.Vertices, true)
	writeIndices(bw, p.EnvNormals, false)
	writeIndices(bw, p.Normals, false)
	if textured {
		p.writeTexture(bw, flagsFirst)
	}
	bw.Align(4)
	bw.WriteU8(p.Color.R)
	bw.WriteU8(p.Color.G)
	bw.WriteU8(p.Color.B)
	bw.WriteU8(p.Color.Code)
}
