package mof

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/mof_browser/utils"
)

const (
	SVECTOR_SIZE      = 8
	BOUNDING_BOX_SIZE = 8 * SVECTOR_SIZE

	// normals are 4.12 fixed point
	FIXED_ONE = 4096
)

// SVector is the console short vector: three coordinates and a pad word
// that is kept verbatim.
type SVector struct {
	X, Y, Z, Pad int16
}

func (v SVector) Vec3() mgl32.Vec3 {
	return mgl32.Vec3{float32(v.X), float32(v.Y), float32(v.Z)}
}

func (v SVector) NormalVec3() mgl32.Vec3 {
	return v.Vec3().Mul(1.0 / FIXED_ONE)
}

func (v SVector) read(bs *utils.BufStack) SVector {
	v.X = bs.ReadLI16()
	v.Y = bs.ReadLI16()
	v.Z = bs.ReadLI16()
	v.Pad = bs.ReadLI16()
	return v
}

func (v SVector) write(bw *utils.BufWriter) {
	bw.WriteLI16(v.X)
	bw.WriteLI16(v.Y)
	bw.WriteLI16(v.Z)
	bw.WriteLI16(v.Pad)
}

func marshalSVectors(vs []SVector) []byte {
	bw := utils.NewBufWriter()
	for _, v := range vs {
		v.write(bw)
	}
	return bw.Bytes()
}

func unmarshalSVectors(raw []byte) []SVector {
	bs := utils.NewBufStack("svectors", raw)
	vs := make([]SVector, len(raw)/SVECTOR_SIZE)
	for i := range vs {
		vs[i] = vs[i].read(bs)
	}
	return vs
}

// BoundingBox holds the eight corners of a box.
type BoundingBox [8]SVector

func (bb *BoundingBox) read(bs *utils.BufStack) {
	for i := range bb {
		bb[i] = bb[i].read(bs)
	}
}

func (bb *BoundingBox) write(bw *utils.BufWriter) {
	for _, v := range bb {
		v.write(bw)
	}
}

// CalculateBoundingBox returns the axis aligned box around vertices.
// Corner order: bit 0 selects max x, bit 1 max y, bit 2 max z.
func CalculateBoundingBox(vertices []SVector) *BoundingBox {
	if len(vertices) == 0 {
		return nil
	}
	min := vertices[0].Vec3()
	max := min
	for _, v := range vertices[1:] {
		f := v.Vec3()
		for i := 0; i < 3; i++ {
			if f[i] < min[i] {
				min[i] = f[i]
			}
			if f[i] > max[i] {
				max[i] = f[i]
			}
		}
	}

	bb := &BoundingBox{}
	for i := range bb {
		corner := min
		for axis := 0; axis < 3; axis++ {
			if i&(1<<uint(axis)) != 0 {
				corner[axis] = max[axis]
			}
		}
		bb[i] = SVector{X: int16(corner[0]), Y: int16(corner[1]), Z: int16(corner[2])}
	}
	return bb
}
