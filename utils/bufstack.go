package utils

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// OverrunError is the panic value raised when a read goes past the end of
// the underlying buffer. Decoders recover it at their top level.
type OverrunError struct {
	Stack  *BufStack
	Pos    int
	Amount int
}

func (oe *OverrunError) Error() string {
	return fmt.Sprintf("read of %d bytes at 0x%x overruns %v", oe.Amount, oe.Pos, oe.Stack)
}

// BufStack is a little-endian read cursor over an in-memory file.
// Sections marked during parsing are kept as a sorted tree for diagnostics.
type BufStack struct {
	childs []*BufStack
	buf    []byte
	start  int
	size   int
	pos    int
	kind   string
	name   string
}

func NewBufStack(kind string, b []byte) *BufStack {
	return &BufStack{
		buf:  b,
		size: len(b),
		kind: kind,
	}
}

func (bs *BufStack) addChild(childBs *BufStack) {
	index := sort.Search(len(bs.childs), func(i int) bool {
		return bs.childs[i].start > childBs.start
	})
	bs.childs = append(bs.childs, childBs)
	copy(bs.childs[index+1:], bs.childs[index:])
	bs.childs[index] = childBs
}

// MarkSection records [start, end) as a named region of the file. The
// returned section shares the parent buffer.
func (bs *BufStack) MarkSection(kind string, name string, start, end int) *BufStack {
	childBs := &BufStack{
		buf:   bs.buf,
		start: start,
		size:  end - start,
		kind:  kind,
		name:  name,
	}
	bs.addChild(childBs)
	return childBs
}

func (bs *BufStack) SetName(name string) *BufStack {
	bs.name = name
	return bs
}

func (bs *BufStack) Name() string {
	return bs.name
}

func (bs *BufStack) Kind() string {
	return bs.kind
}

func (bs *BufStack) Size() int {
	return bs.size
}

func (bs *BufStack) String() string {
	return fmt.Sprintf("buf<%v>(%v)[o:0x%x,s:0x%x,e:0x%x]",
		bs.kind, bs.name, bs.start, bs.size, bs.start+bs.size)
}

func (bs *BufStack) Error() string {
	return bs.String()
}

func (bs *BufStack) stringTree(pad int) string {
	sPad := ""
	for i := 0; i < pad; i++ {
		sPad += ".  "
	}
	s := sPad + bs.String() + "\n"
	pos := bs.start
	for i, child := range bs.childs {
		if child.start > pos {
			s += fmt.Sprintf("%s.  gap [o:0x%x,s:0x%x]\n", sPad, pos, child.start-pos)
		}
		s += child.stringTree(pad + 1)
		end := child.start + child.size
		if i != len(bs.childs)-1 && end > bs.childs[i+1].start {
			s += fmt.Sprintf("%s. [OVERLAP]\n", sPad)
		}
		if end > pos {
			pos = end
		}
	}
	return s
}

// StringTree renders every marked section with gaps and overlaps between them.
func (bs *BufStack) StringTree() string {
	return bs.stringTree(0)
}

func (bs *BufStack) Raw() []byte {
	return bs.buf[bs.start : bs.start+bs.size]
}

func (bs *BufStack) Pos() int {
	return bs.pos
}

func (bs *BufStack) Seek(pos int) {
	if pos < 0 || pos > len(bs.buf) {
		panic(&OverrunError{Stack: bs, Pos: pos})
	}
	bs.pos = pos
}

func (bs *BufStack) Remaining() int {
	return len(bs.buf) - bs.pos
}

// Align moves the cursor forward to the next multiple of n.
func (bs *BufStack) Align(n int) {
	if off := bs.pos % n; off != 0 {
		bs.Skip(n - off)
	}
}

func (bs *BufStack) Read(amount int) []byte {
	if amount < 0 || bs.pos+amount > len(bs.buf) {
		panic(&OverrunError{Stack: bs, Pos: bs.pos, Amount: amount})
	}
	oldPos := bs.pos
	bs.pos += amount
	return bs.buf[oldPos:bs.pos]
}

func (bs *BufStack) Skip(amount int) {
	bs.Read(amount)
}

func (bs *BufStack) ReadLU32() uint32 {
	return binary.LittleEndian.Uint32(bs.Read(4))
}

func (bs *BufStack) ReadLI32() int32 {
	return int32(bs.ReadLU32())
}

func (bs *BufStack) ReadLU16() uint16 {
	return binary.LittleEndian.Uint16(bs.Read(2))
}

func (bs *BufStack) ReadLI16() int16 {
	return int16(bs.ReadLU16())
}

func (bs *BufStack) ReadU8() uint8 {
	return bs.Read(1)[0]
}

// LU32 peeks at an absolute offset without moving the cursor.
// Out of range offsets yield 0.
func (bs *BufStack) LU32(off int) uint32 {
	if off < 0 || off+4 > len(bs.buf) {
		return 0
	}
	return binary.LittleEndian.Uint32(bs.buf[off:])
}

func (bs *BufStack) LU16(off int) uint16 {
	if off < 0 || off+2 > len(bs.buf) {
		return 0
	}
	return binary.LittleEndian.Uint16(bs.buf[off:])
}
