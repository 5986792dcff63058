package mof

// Ajax views replace object references with indices so a model can be
// served as json and compared structurally.

type AjaxPolygon struct {
	Kind       string
	Vertices   []uint16
	EnvNormals []uint16 `json:",omitempty"`
	Normals    []uint16 `json:",omitempty"`
	UVs        []UV     `json:",omitempty"`
	Flags      uint16
	TextureId  uint16
	Color      Color
	// index into AjaxPart.Animations, -1 if not animated
	Animation int
}

type AjaxBlock struct {
	Kind     string
	Polygons []AjaxPolygon
}

type AjaxCel struct {
	Vertices []SVector
	Normals  []SVector
	// index into AjaxPart.BoundingBoxes, -1 if absent
	BoundingBox int
}

type AjaxHilite struct {
	Type   uint8
	Attach string
	Index  int
}

type AjaxCollPrim struct {
	Type    uint16
	Flags   uint16
	Offset  SVector
	Radius2 uint32
	XLen    uint16
	YLen    uint16
	ZLen    uint16
	User    uint16
	Matrix  int
}

type AjaxFlipbook struct {
	Flags   uint16
	Actions []FlipbookAction
}

type AjaxPart struct {
	Flags         uint16
	OwnsShared    bool
	VertexCount   int
	NormalCount   int
	Cels          []AjaxCel
	BoundingBoxes []BoundingBox
	Hilites       []AjaxHilite
	CollPrims     []AjaxCollPrim
	Matrices      []CollPrimMatrix
	MatrixPadding bool
	Flipbook      *AjaxFlipbook
	Animations    [][]TextureAnimationEntry
	Blocks        []AjaxBlock
}

type AjaxModel struct {
	Checksum   uint32
	Incomplete bool
	Parts      []AjaxPart
}

func (m *StaticModel) Ajax() *AjaxModel {
	am := &AjaxModel{Checksum: m.Checksum, Incomplete: m.incomplete}
	for _, p := range m.Parts {
		am.Parts = append(am.Parts, p.ajax())
	}
	return am
}

func (p *ModelPart) ajax() AjaxPart {
	shared := p.Shared
	ap := AjaxPart{
		Flags:         p.Flags(),
		OwnsShared:    p.OwnsShared(),
		VertexCount:   shared.VertexCount(),
		NormalCount:   shared.NormalCount(),
		MatrixPadding: shared.MatrixPadding,
	}
	if !p.OwnsShared() {
		ap.Flags = p.counterpart.Flags()
	}

	bboxes := make(map[BoundingBox]int)
	for _, cel := range shared.Cels {
		ac := AjaxCel{
			Vertices:    append([]SVector(nil), cel.Vertices...),
			Normals:     append([]SVector(nil), cel.Normals...),
			BoundingBox: -1,
		}
		if cel.BoundingBox != nil {
			i, ok := bboxes[*cel.BoundingBox]
			if !ok {
				i = len(ap.BoundingBoxes)
				bboxes[*cel.BoundingBox] = i
				ap.BoundingBoxes = append(ap.BoundingBoxes, *cel.BoundingBox)
			}
			ac.BoundingBox = i
		}
		ap.Cels = append(ap.Cels, ac)
	}

	for _, h := range shared.Hilites {
		ah := AjaxHilite{Type: h.Type, Attach: h.Attach.String()}
		switch h.Attach {
		case HILITE_ATTACH_VERTEX:
			ah.Index = int(h.Vertex)
		case HILITE_ATTACH_POLYGON:
			ah.Index = p.PolygonIndex(h.Polygon)
		}
		ap.Hilites = append(ap.Hilites, ah)
	}

	for _, cp := range shared.CollPrims {
		ap.CollPrims = append(ap.CollPrims, AjaxCollPrim{
			Type:    cp.Type,
			Flags:   cp.Flags,
			Offset:  cp.Offset,
			Radius2: cp.Radius2,
			XLen:    cp.XLen,
			YLen:    cp.YLen,
			ZLen:    cp.ZLen,
			User:    cp.User,
			Matrix:  shared.matrixIndex(cp.Matrix),
		})
	}
	for _, mat := range shared.Matrices {
		ap.Matrices = append(ap.Matrices, *mat)
	}
	if fb := shared.Flipbook; fb != nil {
		ap.Flipbook = &AjaxFlipbook{Flags: fb.Flags, Actions: append([]FlipbookAction(nil), fb.Actions...)}
	}

	for _, anim := range p.animations {
		ap.Animations = append(ap.Animations, append([]TextureAnimationEntry(nil), anim.Entries...))
	}

	for _, b := range p.blocks {
		ab := AjaxBlock{Kind: b.kind.String()}
		for _, poly := range b.polygons {
			animation := -1
			if anim := p.TextureAnimation(poly); anim != nil {
				animation = p.animationIndex(anim)
			}
			ab.Polygons = append(ab.Polygons, AjaxPolygon{
				Kind:       poly.kind.String(),
				Vertices:   append([]uint16(nil), poly.Vertices...),
				EnvNormals: append([]uint16(nil), poly.EnvNormals...),
				Normals:    append([]uint16(nil), poly.Normals...),
				UVs:        append([]UV(nil), poly.UVs...),
				Flags:      poly.Flags,
				TextureId:  poly.TextureId,
				Color:      poly.Color,
				Animation:  animation,
			})
		}
		ap.Blocks = append(ap.Blocks, ab)
	}
	return ap
}
