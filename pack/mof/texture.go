package mof

// TextureResolver maps a polygon texture id to an image id.
type TextureResolver interface {
	ResolveTexture(id uint16) (uint16, bool)
}

// TextureTable resolves ids that name an image directly, or that index the
// remap side table of a texture archive.
type TextureTable struct {
	Remap  []uint16
	Images map[uint16]struct{}
}

func NewTextureTable(remap []uint16, images []uint16) *TextureTable {
	tt := &TextureTable{Remap: remap, Images: make(map[uint16]struct{}, len(images))}
	for _, img := range images {
		tt.Images[img] = struct{}{}
	}
	return tt
}

func (tt *TextureTable) ResolveTexture(id uint16) (uint16, bool) {
	if _, ok := tt.Images[id]; ok {
		return id, true
	}
	if int(id) < len(tt.Remap) {
		global := tt.Remap[id]
		if _, ok := tt.Images[global]; ok {
			return global, true
		}
	}
	return id, false
}
