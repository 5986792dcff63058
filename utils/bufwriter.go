package utils

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// BufWriter is the write-side counterpart of BufStack. Pointers are emitted
// as placeholders and patched once the target offset is known.
type BufWriter struct {
	buf bytes.Buffer
}

func NewBufWriter() *BufWriter {
	return &BufWriter{}
}

func (bw *BufWriter) Pos() int {
	return bw.buf.Len()
}

func (bw *BufWriter) Bytes() []byte {
	return bw.buf.Bytes()
}

func (bw *BufWriter) Write(b []byte) {
	bw.buf.Write(b)
}

func (bw *BufWriter) WriteZeros(amount int) {
	if amount > 0 {
		bw.buf.Write(make([]byte, amount))
	}
}

func (bw *BufWriter) WriteU8(v uint8) {
	bw.buf.WriteByte(v)
}

func (bw *BufWriter) WriteLU16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	bw.buf.Write(b[:])
}

func (bw *BufWriter) WriteLI16(v int16) {
	bw.WriteLU16(uint16(v))
}

func (bw *BufWriter) WriteLU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	bw.buf.Write(b[:])
}

func (bw *BufWriter) WriteLI32(v int32) {
	bw.WriteLU32(uint32(v))
}

// Align pads with zeros up to the next multiple of n.
func (bw *BufWriter) Align(n int) {
	if off := bw.buf.Len() % n; off != 0 {
		bw.WriteZeros(n - off)
	}
}

// Placeholder writes a zero u32 and returns its position for PatchLU32.
func (bw *BufWriter) Placeholder() int {
	pos := bw.buf.Len()
	bw.WriteLU32(0)
	return pos
}

func (bw *BufWriter) PatchLU32(pos int, v uint32) {
	if pos < 0 || pos+4 > bw.buf.Len() {
		panic(fmt.Sprintf("patch position 0x%x outside of written data 0x%x", pos, bw.buf.Len()))
	}
	binary.LittleEndian.PutUint32(bw.buf.Bytes()[pos:], v)
}

func (bw *BufWriter) PatchLU16(pos int, v uint16) {
	if pos < 0 || pos+2 > bw.buf.Len() {
		panic(fmt.Sprintf("patch position 0x%x outside of written data 0x%x", pos, bw.buf.Len()))
	}
	binary.LittleEndian.PutUint16(bw.buf.Bytes()[pos:], v)
}

// PatchHere patches the placeholder at pos with the current position.
func (bw *BufWriter) PatchHere(pos int) uint32 {
	here := uint32(bw.buf.Len())
	bw.PatchLU32(pos, here)
	return here
}
