// Package buffer implements a bounds-checked cursor over a byte slice,
// the single point through which the parser, rewriter, disassembler and
// weeify pass all read module bytes.
package buffer

import (
	"encoding/binary"
	"math"

	"github.com/weewasm/weewasm/internal/leb"
	"github.com/weewasm/weewasm/internal/werr"
)

// Buffer is a cursor over [0, len(data)). No read method moves Pos past
// len(data) (only Seek can); every read method advances Pos by exactly
// the number of bytes consumed on success and leaves it unchanged on error.
type Buffer struct {
	data []byte
	pos  int
}

// New wraps data for reading from the start.
func New(data []byte) *Buffer {
	return &Buffer{data: data}
}

// Pos returns the current byte offset.
func (b *Buffer) Pos() int { return b.pos }

// Len returns the total length of the underlying data.
func (b *Buffer) Len() int { return len(b.data) }

// Done reports whether the cursor has reached the end.
func (b *Buffer) Done() bool { return b.pos >= len(b.data) }

// Remaining returns the number of unread bytes.
func (b *Buffer) Remaining() int { return len(b.data) - b.pos }

// Seek moves the cursor to an absolute offset, such as the start of a
// function body or an interpreter jump target. It validates the offset
// against neither section boundaries nor len(data); callers that care
// must check themselves.
func (b *Buffer) Seek(pos int) { b.pos = pos }

func (b *Buffer) need(n int, phase werr.Phase) error {
	if b.pos+n > len(b.data) {
		return werr.At(phase, werr.KindMalformed, b.pos, "unexpected end of input, need %d bytes, have %d", n, len(b.data)-b.pos)
	}
	return nil
}

// ReadU8 reads a single byte.
func (b *Buffer) ReadU8(phase werr.Phase) (byte, error) {
	if err := b.need(1, phase); err != nil {
		return 0, err
	}
	v := b.data[b.pos]
	b.pos++
	return v, nil
}

// ReadBytes returns a sub-slice of the underlying data of length n,
// without copying, and advances the cursor past it.
func (b *Buffer) ReadBytes(n int, phase werr.Phase) ([]byte, error) {
	if err := b.need(n, phase); err != nil {
		return nil, err
	}
	v := b.data[b.pos : b.pos+n]
	b.pos += n
	return v, nil
}

// PeekAt returns the raw byte at an absolute offset. It does not move the
// cursor.
func (b *Buffer) PeekAt(pos int) byte { return b.data[pos] }

// WriteAt overwrites count bytes at an absolute offset in place. Used by
// the rewriter to patch pc-relative deltas into already-padded label
// slots without shifting any other byte.
func (b *Buffer) WriteAt(pos int, bytes []byte) {
	copy(b.data[pos:pos+len(bytes)], bytes)
}

// Bytes returns the full underlying slice (rewrite/weeify operate over it
// directly once the buffer has been built).
func (b *Buffer) Bytes() []byte { return b.data }

// ReadU32LEB reads an unsigned 32-bit LEB128.
func (b *Buffer) ReadU32LEB(phase werr.Phase) (uint32, error) {
	v, n, err := leb.ReadUint32(b.data[b.pos:])
	if err != nil {
		return 0, werr.At(phase, werr.KindMalformed, b.pos, "%s", err)
	}
	b.pos += n
	return v, nil
}

// ReadI32LEB reads a signed 32-bit LEB128.
func (b *Buffer) ReadI32LEB(phase werr.Phase) (int32, error) {
	v, n, err := leb.ReadInt32(b.data[b.pos:])
	if err != nil {
		return 0, werr.At(phase, werr.KindMalformed, b.pos, "%s", err)
	}
	b.pos += n
	return v, nil
}

// ReadLabel reads a branch-label LEB128 and requires it to have occupied
// exactly 4 bytes, per the dialect's precondition that `weeify` pads every
// label to 4 bytes so the rewriter can overwrite it in place. Returns the
// byte offset the label started at, for the rewriter's back-patch list.
func (b *Buffer) ReadLabel(phase werr.Phase) (value uint32, startPos int, err error) {
	startPos = b.pos
	v, n, rerr := leb.ReadUint32(b.data[b.pos:])
	if rerr != nil {
		return 0, startPos, werr.At(phase, werr.KindMalformed, b.pos, "%s", rerr)
	}
	if n != 4 {
		return 0, startPos, werr.At(phase, werr.KindPrecondition, startPos, "expected 4 byte label, got %d bytes", n)
	}
	b.pos += n
	return v, startPos, nil
}

// ReadU32LE reads a fixed 4-byte little-endian unsigned integer.
func (b *Buffer) ReadU32LE(phase werr.Phase) (uint32, error) {
	bs, err := b.ReadBytes(4, phase)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(bs), nil
}

// ReadU64LE reads a fixed 8-byte little-endian unsigned integer.
func (b *Buffer) ReadU64LE(phase werr.Phase) (uint64, error) {
	bs, err := b.ReadBytes(8, phase)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(bs), nil
}

// ReadF64LE reads a fixed 8-byte little-endian IEEE-754 double, the only
// floating immediate the dialect permits (f64.const).
func (b *Buffer) ReadF64LE(phase werr.Phase) (float64, error) {
	bits, err := b.ReadU64LE(phase)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

// ReadName reads a length-prefixed UTF-8 string (module/member names,
// export names).
func (b *Buffer) ReadName(phase werr.Phase) (string, error) {
	n, err := b.ReadU32LEB(phase)
	if err != nil {
		return "", err
	}
	bs, err := b.ReadBytes(int(n), phase)
	if err != nil {
		return "", err
	}
	return string(bs), nil
}
