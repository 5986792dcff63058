package utils

import (
	"bytes"
	"fmt"
)

type elementChunk struct {
	offset int
	data   []byte
}

// ElementBuffer stores runs of fixed-size elements in a BufWriter and hands
// out offsets. A run that already exists in a previously written chunk, or
// whose head matches the tail of the chunk being extended, is not written
// again.
type ElementBuffer struct {
	elementSize int
	chunks      []*elementChunk
}

func NewElementBuffer(elementSize int) *ElementBuffer {
	if elementSize <= 0 {
		panic("element size must be positive")
	}
	return &ElementBuffer{elementSize: elementSize}
}

func (eb *ElementBuffer) ElementSize() int {
	return eb.elementSize
}

func (eb *ElementBuffer) find(raw []byte) (int, bool) {
	for _, c := range eb.chunks {
		for from := 0; from+len(raw) <= len(c.data); {
			i := bytes.Index(c.data[from:], raw)
			if i < 0 {
				break
			}
			at := from + i
			if at%eb.elementSize == 0 {
				return c.offset + at, true
			}
			from = at + 1
		}
	}
	return 0, false
}

// Write places the elements (len(raw) must be a multiple of the element
// size) and returns their absolute offset. Empty input returns 0.
func (eb *ElementBuffer) Write(bw *BufWriter, raw []byte) uint32 {
	if len(raw)%eb.elementSize != 0 {
		panic(fmt.Sprintf("element run of %d bytes is not a multiple of %d", len(raw), eb.elementSize))
	}
	if len(raw) == 0 {
		return 0
	}
	if off, found := eb.find(raw); found {
		return uint32(off)
	}

	var last *elementChunk
	if len(eb.chunks) != 0 {
		last = eb.chunks[len(eb.chunks)-1]
		if last.offset+len(last.data) != bw.Pos() {
			last = nil
		}
	}
	if last == nil {
		last = &elementChunk{offset: bw.Pos()}
		eb.chunks = append(eb.chunks, last)
	}

	// reuse the longest chunk tail that equals our head
	shared := 0
	for n := len(raw) - eb.elementSize; n > 0; n -= eb.elementSize {
		if n <= len(last.data) && bytes.Equal(last.data[len(last.data)-n:], raw[:n]) {
			shared = n
			break
		}
	}

	offset := last.offset + len(last.data) - shared
	bw.Write(raw[shared:])
	last.data = append(last.data, raw[shared:]...)
	return uint32(offset)
}

// Read copies count elements starting at offset.
func (eb *ElementBuffer) Read(bs *BufStack, offset uint32, count int) []byte {
	if count == 0 {
		return nil
	}
	pos := bs.Pos()
	defer bs.Seek(pos)

	bs.Seek(int(offset))
	raw := make([]byte, count*eb.elementSize)
	copy(raw, bs.Read(len(raw)))
	return raw
}
