package mof

import (
	"bytes"
	"encoding/binary"
	"reflect"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/mogaika/mof_browser/utils"
)

type testCaps struct {
	padding    bool
	flagsFirst bool
}

func (c testCaps) TolerateMatrixPadding() bool { return c.padding }
func (c testCaps) PolygonFlagsFirst() bool     { return c.flagsFirst }

var sampleVertices = []SVector{
	{X: 0, Y: 0, Z: 0},
	{X: 100, Y: 0, Z: 0},
	{X: 100, Y: 100, Z: 0},
	{X: 0, Y: 100, Z: 0},
	{X: 0, Y: 0, Z: 100},
}

var sampleNormals = []SVector{
	{X: 0, Y: 0, Z: FIXED_ONE},
	{X: 0, Y: FIXED_ONE, Z: 0},
	{X: FIXED_ONE, Y: 0, Z: 0},
	{X: 0, Y: 0, Z: -FIXED_ONE},
}

func shifted(vs []SVector, dz int16) []SVector {
	r := make([]SVector, len(vs))
	for i, v := range vs {
		v.Z += dz
		r[i] = v
	}
	return r
}

// sampleModel builds a two part model that uses every section.
func sampleModel(t *testing.T) *StaticModel {
	t.Helper()
	m := NewStaticModel()
	m.Checksum = 0xdeadbeef

	p := m.AddPart()
	cel0, err := p.AddPartCel(sampleVertices, sampleNormals)
	if err != nil {
		t.Fatal(err)
	}
	cel0.BoundingBox = CalculateBoundingBox(sampleVertices)
	cel1, err := p.AddPartCel(shifted(sampleVertices, 10), sampleNormals)
	if err != nil {
		t.Fatal(err)
	}
	cel1.BoundingBox = CalculateBoundingBox(sampleVertices)

	f3 := NewPolygonBlock(KIND_F3)
	tri := f3.NewPolygon()
	tri.Vertices = []uint16{0, 1, 2}
	tri.Normals = []uint16{0}
	tri.Color = Color{R: 255, Code: 0x20}
	p.AddPolygonBlock(f3)

	ft4 := NewPolygonBlock(KIND_FT4)
	q := ft4.NewPolygon()
	q.Vertices = []uint16{0, 1, 2, 3}
	q.Normals = []uint16{1}
	q.UVs = []UV{{0, 0}, {63, 0}, {63, 63}, {0, 63}}
	q.Flags = 0x2
	q.TextureId = 5
	q.Color = Color{R: 128, G: 128, B: 128, Code: 0x2c}
	p.AddPolygonBlock(ft4)

	gt3 := NewPolygonBlock(KIND_GT3)
	g := gt3.NewPolygon()
	g.Vertices = []uint16{2, 3, 4}
	g.Normals = []uint16{1, 2, 3}
	g.UVs = []UV{{1, 2}, {3, 4}, {5, 6}}
	g.TextureId = 7
	g.Color = Color{G: 200, Code: 0x34}
	p.AddPolygonBlock(gt3)

	p.Shared.Hilites = []*Hilite{
		{Type: 1, Attach: HILITE_ATTACH_POLYGON, Polygon: q},
		{Type: 2, Attach: HILITE_ATTACH_VERTEX, Vertex: 4},
		{Type: 3, Attach: HILITE_ATTACH_PART},
	}

	mat := &CollPrimMatrix{
		M: [3][3]int16{{FIXED_ONE, 0, 0}, {0, FIXED_ONE, 0}, {0, 0, FIXED_ONE}},
		T: [3]int32{1, -2, 3},
	}
	p.Shared.Matrices = []*CollPrimMatrix{mat}
	p.Shared.CollPrims = []*CollPrim{
		{Type: COLLPRIM_CUBOID, Offset: SVector{X: 1, Y: 2, Z: 3}, XLen: 10, YLen: 20, ZLen: 30},
		{Type: COLLPRIM_SPHERE, Flags: 0x4, Radius2: 400, User: 9, Matrix: mat},
	}

	anim := &TextureAnimation{Entries: []TextureAnimationEntry{{TextureId: 5, Duration: 10}, {TextureId: 6, Duration: 10}}}
	if err := p.SetTextureAnimation(q, anim); err != nil {
		t.Fatal(err)
	}
	p.Shared.Flipbook = &Flipbook{Flags: 1, Actions: []FlipbookAction{{CelCount: 2, CelStart: 0}}}

	p1 := m.AddPart()
	if _, err := p1.AddPartCel(sampleVertices[:3], sampleNormals[:1]); err != nil {
		t.Fatal(err)
	}
	b := NewPolygonBlock(KIND_F3)
	tri1 := b.NewPolygon()
	tri1.Vertices = []uint16{2, 1, 0}
	tri1.Color = Color{B: 255, Code: 0x20}
	p1.AddPolygonBlock(b)
	return m
}

func marshal(t *testing.T, m *StaticModel, opts *Options) []byte {
	t.Helper()
	b, err := m.Marshal(opts)
	if err != nil {
		t.Fatalf("Marshal: %+v", err)
	}
	return b
}

func decode(t *testing.T, b []byte, opts *Options) *StaticModel {
	t.Helper()
	m, err := NewFromData(b, opts)
	if err != nil {
		t.Fatalf("NewFromData: %+v", err)
	}
	return m
}

func TestRoundTrip(t *testing.T) {
	m := sampleModel(t)
	b1 := marshal(t, m, nil)

	m2 := decode(t, b1, nil)
	if !reflect.DeepEqual(m.Ajax(), m2.Ajax()) {
		t.Errorf("Decoded model differs:\n%s\nexpected:\n%s", utils.SDump(m2.Ajax()), utils.SDump(m.Ajax()))
	}
	if m2.Checksum != 0xdeadbeef {
		t.Errorf("Checksum 0x%x", m2.Checksum)
	}
	if !m2.HasAnimatedTextures() || !m2.HasCollision() || !m2.HasFlipbook() {
		t.Errorf("Decoded model lost sections: %v", m2)
	}

	b2 := marshal(t, m2, nil)
	if !bytes.Equal(b1, b2) {
		t.Errorf("Re-encoded model differs: %d vs %d bytes", len(b1), len(b2))
	}
}

func TestRoundTripEmptyModel(t *testing.T) {
	b := marshal(t, NewStaticModel(), nil)
	if len(b) != 8 {
		t.Errorf("Empty model is %d bytes; expected 8", len(b))
	}
	m := decode(t, b, nil)
	if len(m.Parts) != 0 || m.IsIncomplete() {
		t.Errorf("Decoded %v", m)
	}
}

func TestDecodeSharesStructures(t *testing.T) {
	m := decode(t, marshal(t, sampleModel(t), nil), nil)
	p := m.Parts[0]

	cels := p.Shared.Cels
	if cels[0].BoundingBox == nil || cels[0].BoundingBox != cels[1].BoundingBox {
		t.Errorf("Equal bounding boxes were not shared: %p %p", cels[0].BoundingBox, cels[1].BoundingBox)
	}
	if p.Shared.CollPrims[1].Matrix != p.Shared.Matrices[0] || p.Shared.CollPrims[0].Matrix != nil {
		t.Errorf("Collision matrix references were not resolved")
	}
	q := p.BlocksOfKind(KIND_FT4)[0].Polygons()[0]
	if p.Shared.Hilites[0].Polygon != q {
		t.Errorf("Hilite polygon was not resolved to FT4 polygon")
	}
	if p.TextureAnimation(q) != p.TextureAnimations()[0] {
		t.Errorf("Texture animation target was not resolved")
	}
}

func TestVertexRunsAreShared(t *testing.T) {
	m := sampleModel(t)
	// second part vertices repeat the head of the first part
	b := marshal(t, m, nil)

	withoutSharing := sampleModel(t)
	withoutSharing.Parts[1].Shared.Cels[0].Vertices = []SVector{{X: 7}, {X: 8}, {X: 9}}
	b2 := marshal(t, withoutSharing, nil)

	if len(b2)-len(b) != 3*SVECTOR_SIZE {
		t.Errorf("Shared vertices saved %d bytes; expected %d", len(b2)-len(b), 3*SVECTOR_SIZE)
	}
}

func headerPtr(data []byte, part, offset int) uint32 {
	return binary.LittleEndian.Uint32(data[4+part*PART_HEADER_SIZE+offset:])
}

// celField reads one of the four u32 fields of a part cel header.
func celField(data []byte, part, cel, field int) uint32 {
	celPtr := int(headerPtr(data, part, headerCelPtrOffset))
	return binary.LittleEndian.Uint32(data[celPtr+cel*PARTCEL_HEADER_SIZE+field*4:])
}

func TestElementRegionLayout(t *testing.T) {
	m := NewStaticModel()
	for i := 0; i < 3; i++ {
		normals := []SVector{{X: int16(i + 1)}}
		if _, err := m.AddPart().AddPartCel(shifted(sampleVertices[:3], int16(1000*(i+1))), normals); err != nil {
			t.Fatal(err)
		}
	}
	data := marshal(t, m, nil)

	order := []struct {
		name string
		ptr  uint32
		size int
	}{
		{"part 0 vertices", celField(data, 0, 0, 0), 3 * SVECTOR_SIZE},
		{"part 0 normals", celField(data, 0, 0, 1), SVECTOR_SIZE},
		{"part 1 vertices", celField(data, 1, 0, 0), 3 * SVECTOR_SIZE},
		{"part 2 vertices", celField(data, 2, 0, 0), 3 * SVECTOR_SIZE},
		{"part 1 normals", celField(data, 1, 0, 1), SVECTOR_SIZE},
		{"part 2 normals", celField(data, 2, 0, 1), SVECTOR_SIZE},
	}
	for i := 1; i < len(order); i++ {
		prev, cur := order[i-1], order[i]
		if cur.ptr != prev.ptr+uint32(prev.size) {
			t.Errorf("%s at 0x%x; expected right after %s at 0x%x", cur.name, cur.ptr, prev.name, prev.ptr)
		}
	}

	layout, err := m.Layout(nil)
	if err != nil {
		t.Fatal(err)
	}
	cels := layout[0][SECTION_CELS]
	last := order[len(order)-1]
	if int(order[0].ptr) < cels.Start || int(last.ptr)+last.size > cels.End {
		t.Errorf("Element region [0x%x:0x%x] is outside part 0 cel section [0x%x:0x%x]",
			order[0].ptr, int(last.ptr)+last.size, cels.Start, cels.End)
	}

	decoded := decode(t, data, nil)
	if !reflect.DeepEqual(m.Ajax(), decoded.Ajax()) {
		t.Errorf("Decoded model differs:\n%s", utils.SDump(decoded.Ajax()))
	}
}

func TestBoundingBoxDedupOnDisk(t *testing.T) {
	m := NewStaticModel()
	boxA := CalculateBoundingBox(sampleVertices)
	boxB := CalculateBoundingBox(shifted(sampleVertices, 50))

	p0 := m.AddPart()
	for _, box := range []*BoundingBox{boxA, boxB, boxA} {
		cel, err := p0.AddPartCel(sampleVertices, sampleNormals)
		if err != nil {
			t.Fatal(err)
		}
		cel.BoundingBox = box
	}
	p1 := m.AddPart()
	cel, err := p1.AddPartCel(sampleVertices[:3], sampleNormals[:1])
	if err != nil {
		t.Fatal(err)
	}
	equalToA := *boxA
	cel.BoundingBox = &equalToA

	data := marshal(t, m, nil)
	a0, b0, a1 := celField(data, 0, 0, 2), celField(data, 0, 1, 2), celField(data, 0, 2, 2)
	a2 := celField(data, 1, 0, 2)
	if a0 == 0 || b0 == 0 {
		t.Fatalf("Bounding box pointers missing: 0x%x 0x%x", a0, b0)
	}
	if a0 == b0 {
		t.Errorf("Different bounding boxes share offset 0x%x", a0)
	}
	if a1 != a0 {
		t.Errorf("Equal bounding boxes in one part at 0x%x and 0x%x", a0, a1)
	}
	if a2 != a0 {
		t.Errorf("Equal bounding box of part 1 at 0x%x; expected part 0 box at 0x%x", a2, a0)
	}

	decoded := decode(t, data, nil)
	if decoded.Parts[1].Shared.Cels[0].BoundingBox != decoded.Parts[0].Shared.Cels[0].BoundingBox {
		t.Errorf("Bounding box stored once is not shared between parts after decode")
	}
	if !bytes.Equal(data, marshal(t, decoded, nil)) {
		t.Errorf("Re-encoded model differs")
	}
}

func TestDecodeFlipbookBeforeTextureAnimations(t *testing.T) {
	m := sampleModel(t)
	data := marshal(t, m, nil)
	layout, err := m.Layout(nil)
	if err != nil {
		t.Fatal(err)
	}
	tex, fb := layout[0][SECTION_TEXANIMS], layout[0][SECTION_FLIPBOOK]
	if !tex.Present || !fb.Present || tex.End != fb.Start {
		t.Fatalf("Unexpected layout texanims %+v flipbook %+v", tex, fb)
	}

	// move the flipbook in front of the texture animations, targets hold
	// absolute animation offsets
	fbLen := fb.End - fb.Start
	texData := append([]byte(nil), data[tex.Start:tex.End]...)
	count := int(binary.LittleEndian.Uint32(texData))
	for i := 0; i < count; i++ {
		at := 4 + i*ANIM_TARGET_SIZE + 4
		binary.LittleEndian.PutUint32(texData[at:], binary.LittleEndian.Uint32(texData[at:])+uint32(fbLen))
	}
	swapped := append([]byte(nil), data[:tex.Start]...)
	swapped = append(swapped, data[fb.Start:fb.End]...)
	swapped = append(swapped, texData...)
	swapped = append(swapped, data[fb.End:]...)
	binary.LittleEndian.PutUint32(swapped[4+headerFlipbookPtrOffset:], uint32(tex.Start))
	binary.LittleEndian.PutUint32(swapped[4+headerTexAnimPtrOffset:], uint32(tex.Start+fbLen))

	decoded := decode(t, swapped, nil)
	if !reflect.DeepEqual(m.Ajax(), decoded.Ajax()) {
		t.Errorf("Decoded model differs:\n%s\nexpected:\n%s", utils.SDump(decoded.Ajax()), utils.SDump(m.Ajax()))
	}
	if !bytes.Equal(data, marshal(t, decoded, nil)) {
		t.Errorf("Re-encoded model is not in canonical section order")
	}
}

func TestQuadVertexOrderOnDisk(t *testing.T) {
	m := NewStaticModel()
	p := m.AddPart()
	if _, err := p.AddPartCel(sampleVertices[:4], sampleNormals); err != nil {
		t.Fatal(err)
	}
	b := NewPolygonBlock(KIND_G4)
	poly := b.NewPolygon()
	poly.Vertices = []uint16{0, 1, 2, 3}
	poly.Normals = []uint16{0, 1, 2, 3}
	p.AddPolygonBlock(b)

	data := marshal(t, m, nil)
	layout, err := m.Layout(nil)
	if err != nil {
		t.Fatal(err)
	}
	start := layout[0][SECTION_PRIMITIVES].Start

	var stored []uint16
	for i := 0; i < 10; i++ {
		stored = append(stored, binary.LittleEndian.Uint16(data[start+i*2:]))
	}
	expected := []uint16{uint16(KIND_G4), 1, 0, 1, 3, 2, 0, 1, 2, 3}
	if !reflect.DeepEqual(stored, expected) {
		t.Errorf("Stored block %v; expected %v", stored, expected)
	}

	m2 := decode(t, data, nil)
	got := m2.Parts[0].Blocks()[0].Polygons()[0]
	if !reflect.DeepEqual(got.Vertices, poly.Vertices) {
		t.Errorf("Decoded vertices %v; expected %v", got.Vertices, poly.Vertices)
	}
}

// ft4Model has one part with a single FT4 polygon at the primitive section start.
func ft4Model(t *testing.T) (*StaticModel, []byte, int) {
	t.Helper()
	m := NewStaticModel()
	p := m.AddPart()
	if _, err := p.AddPartCel(sampleVertices, sampleNormals); err != nil {
		t.Fatal(err)
	}
	b := NewPolygonBlock(KIND_FT4)
	poly := b.NewPolygon()
	poly.Vertices = []uint16{0, 1, 2, 3}
	poly.UVs = []UV{{1, 1}, {2, 2}, {3, 3}, {4, 4}}
	poly.TextureId = 3
	poly.Flags = 0x11
	p.AddPolygonBlock(b)

	data := marshal(t, m, nil)
	layout, err := m.Layout(nil)
	if err != nil {
		t.Fatal(err)
	}
	return m, data, layout[0][SECTION_PRIMITIVES].Start
}

func TestDecodeRejects(t *testing.T) {
	for _, test := range []struct {
		name   string
		modify func(data []byte, prims int)
		expect string
	}{
		{"unknown kind", func(d []byte, prims int) {
			binary.LittleEndian.PutUint16(d[prims:], 16)
		}, "Unknown polygon kind"},
		{"empty block", func(d []byte, prims int) {
			binary.LittleEndian.PutUint16(d[prims+2:], 0)
		}, "has 0 polygons"},
		{"oversized block", func(d []byte, prims int) {
			binary.LittleEndian.PutUint16(d[prims+2:], 2)
		}, "2 polygons, 1 remaining"},
		{"nonzero clut", func(d []byte, prims int) {
			// kind, count, 4 vertices, normal, uv0
			d[prims+16] = 1
		}, "clut"},
		{"unknown flags", func(d []byte, prims int) {
			binary.LittleEndian.PutUint16(d[4:], 0x8)
		}, "Unknown part flags"},
		{"flags mismatch", func(d []byte, prims int) {
			binary.LittleEndian.PutUint16(d[4:], PART_FLAG_ANIMATED_POLYS)
		}, "differ from computed"},
		{"runtime slot", func(d []byte, prims int) {
			binary.LittleEndian.PutUint32(d[4+headerRuntimeOffset:], 1)
		}, "runtime slot"},
		{"section inside header", func(d []byte, prims int) {
			binary.LittleEndian.PutUint32(d[4+headerPrimitivePtrOffset:], 0x10)
		}, "inside the model header"},
		{"shared section offset", func(d []byte, prims int) {
			binary.LittleEndian.PutUint32(d[4+headerFlipbookPtrOffset:], uint32(prims))
		}, "share offset"},
	} {
		_, data, prims := ft4Model(t)
		test.modify(data, prims)
		_, err := NewFromData(data, nil)
		if err == nil {
			t.Errorf("%s: decode succeeded", test.name)
		} else if !strings.Contains(err.Error(), test.expect) {
			t.Errorf("%s: error %q does not mention %q", test.name, err, test.expect)
		}
	}
}

func TestDecodeTruncated(t *testing.T) {
	data := marshal(t, sampleModel(t), nil)
	_, err := NewFromData(data[:len(data)-6], nil)
	if err == nil {
		t.Fatalf("Truncated model decoded")
	}
	if _, ok := errors.Cause(err).(*utils.OverrunError); !ok {
		t.Errorf("Error %v is not an overrun", err)
	}
}

func TestPolygonFlagsFirst(t *testing.T) {
	m, _, _ := ft4Model(t)
	caps := testCaps{flagsFirst: true}
	data := marshal(t, m, &Options{Caps: caps})
	layout, err := m.Layout(&Options{Caps: caps})
	if err != nil {
		t.Fatal(err)
	}
	prims := layout[0][SECTION_PRIMITIVES].Start
	if flags := binary.LittleEndian.Uint16(data[prims+4:]); flags != 0x11 {
		t.Errorf("First polygon word 0x%x; expected flags 0x11", flags)
	}

	m2 := decode(t, data, &Options{Caps: caps})
	if !reflect.DeepEqual(m.Ajax(), m2.Ajax()) {
		t.Errorf("Flags-first model differs after decode")
	}
}

func TestMatrixPadding(t *testing.T) {
	m := sampleModel(t)
	m.Parts[0].Shared.MatrixPadding = true

	if _, err := m.Marshal(nil); err == nil {
		t.Errorf("Matrix padding encoded without capability")
	}

	tolerant := &Options{Caps: testCaps{padding: true}}
	data := marshal(t, m, tolerant)
	if _, err := NewFromData(data, nil); err == nil {
		t.Errorf("Padded matrix section decoded without capability")
	}

	m2 := decode(t, data, tolerant)
	if !m2.Parts[0].Shared.MatrixPadding {
		t.Errorf("Matrix padding was not detected")
	}
	if len(m2.Parts[0].Shared.Matrices) != 1 {
		t.Errorf("Decoded %d matrices; expected 1", len(m2.Parts[0].Shared.Matrices))
	}
	if !bytes.Equal(data, marshal(t, m2, tolerant)) {
		t.Errorf("Padded model re-encoded differently")
	}
}

func TestMarshalValidation(t *testing.T) {
	for _, test := range []struct {
		name   string
		modify func(m *StaticModel)
	}{
		{"no cels", func(m *StaticModel) {
			m.Parts[1].Shared.Cels = nil
		}},
		{"cel shape", func(m *StaticModel) {
			m.Parts[0].Shared.Cels[1].Vertices = sampleVertices[:2]
		}},
		{"vertex index", func(m *StaticModel) {
			m.Parts[1].Blocks()[0].Polygons()[0].Vertices[0] = 3
		}},
		{"foreign hilite polygon", func(m *StaticModel) {
			m.Parts[0].Shared.Hilites[0].Polygon = NewPolygon(KIND_FT4)
		}},
		{"foreign matrix", func(m *StaticModel) {
			m.Parts[0].Shared.CollPrims[0].Matrix = &CollPrimMatrix{}
		}},
		{"flipbook range", func(m *StaticModel) {
			m.Parts[0].Shared.Flipbook.Actions[0].CelStart = 1
		}},
		{"uv count", func(m *StaticModel) {
			m.Parts[0].BlocksOfKind(KIND_FT4)[0].Polygons()[0].UVs = nil
		}},
	} {
		m := sampleModel(t)
		test.modify(m)
		if _, err := m.Marshal(nil); err == nil {
			t.Errorf("%s: invalid model encoded", test.name)
		}
	}
}

func TestUnresolvedTextureWarning(t *testing.T) {
	var logBuf bytes.Buffer
	opts := &Options{
		Textures: NewTextureTable([]uint16{5, 5}, []uint16{5}),
		Log:      utils.NewLogger(&logBuf),
	}
	if _, err := sampleModel(t).Marshal(opts); err != nil {
		t.Fatalf("Unresolved textures prevented encoding: %v", err)
	}
	if !strings.Contains(logBuf.String(), "unresolved textures [6 7]") {
		t.Errorf("Log does not report unresolved textures:\n%s", logBuf.String())
	}
}

func TestIncompleteModel(t *testing.T) {
	cpData := marshal(t, sampleModel(t), nil)
	cp := decode(t, cpData, nil)

	inc, err := NewIncompleteStaticModel(cp)
	if err != nil {
		t.Fatal(err)
	}
	if inc.Parts[0].Shared != cp.Parts[0].Shared || inc.Parts[0].Counterpart() != cp.Parts[0] {
		t.Fatalf("Incomplete part does not alias counterpart")
	}
	b := NewPolygonBlock(KIND_F4)
	quad(t, b, 4, 3, 2, 1)
	inc.Parts[0].AddPolygonBlock(b)
	b1 := NewPolygonBlock(KIND_LF2)
	quad(t, b1, 0, 2)
	inc.Parts[1].AddPolygonBlock(b1)

	data := marshal(t, inc, nil)
	if magic := binary.LittleEndian.Uint32(data[INCOMPLETE_PROBE_OFFSET:]); magic != INCOMPLETE_MAGIC {
		t.Errorf("Incomplete marker 0x%x", magic)
	}
	for _, off := range []int{headerCelPtrOffset, headerHilitePtrOffset, headerCollPrimPtrOffset,
		headerMatrixPtrOffset, headerTexAnimPtrOffset, headerFlipbookPtrOffset, headerPrimitivePtrOffset} {
		if a, b := binary.LittleEndian.Uint32(data[4+off:]), binary.LittleEndian.Uint32(cpData[4+off:]); a != b {
			t.Errorf("Part 0 header pointer at 0x%x is 0x%x; counterpart has 0x%x", off, a, b)
		}
	}

	if _, err := NewFromData(data, nil); err == nil {
		t.Errorf("Incomplete model decoded without counterpart")
	}

	var logBuf bytes.Buffer
	m := decode(t, data, &Options{Counterpart: cp, Log: utils.NewLogger(&logBuf)})
	if !m.IsIncomplete() || m.Counterpart() != cp {
		t.Fatalf("Decoded model is not incomplete: %v", m)
	}
	for i, p := range m.Parts {
		if p.Shared != cp.Parts[i].Shared {
			t.Errorf("Part %d shared data is not the counterpart's", i)
		}
		if len(p.Blocks()) != 1 || p.Blocks()[0] == cp.Parts[i].Blocks()[0] {
			t.Errorf("Part %d primitives were not decoded fresh", i)
		}
	}
	if !strings.Contains(logBuf.String(), "texture animations are not carried over") {
		t.Errorf("Missing counterpart texture animation warning:\n%s", logBuf.String())
	}
	if !reflect.DeepEqual(inc.Ajax(), m.Ajax()) {
		t.Errorf("Decoded incomplete model differs")
	}
	if !bytes.Equal(data, marshal(t, m, nil)) {
		t.Errorf("Re-encoded incomplete model differs")
	}

	// modification through the alias is visible on the counterpart
	m.Parts[0].Shared.Hilites[1].Vertex = 3
	if cp.Parts[0].Shared.Hilites[1].Vertex != 3 {
		t.Errorf("Shared modification is not visible on counterpart")
	}
}

func TestIncompleteModelRejectsCounterpartMismatch(t *testing.T) {
	cp := decode(t, marshal(t, sampleModel(t), nil), nil)
	inc, err := NewIncompleteStaticModel(cp)
	if err != nil {
		t.Fatal(err)
	}
	data := marshal(t, inc, nil)

	other := NewStaticModel()
	p := other.AddPart()
	p.AddPartCel(sampleVertices, nil)
	other.AddPart().AddPartCel(sampleVertices, nil)
	if _, err := NewFromData(data, &Options{Counterpart: other}); err == nil {
		t.Errorf("Incomplete model decoded against unrelated counterpart")
	}

	if _, err := NewIncompleteStaticModel(inc); err == nil {
		t.Errorf("Incomplete model accepted as counterpart")
	}
}
