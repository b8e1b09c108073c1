// Package leb implements LEB128 encoding and decoding, including the
// fixed-width "padded" forms the weewasm dialect uses for branch labels
// and code-body lengths so the rewriter can patch deltas in place without
// ever reflowing a function body.
package leb

import "fmt"

// maxBytesFor returns the maximum number of LEB128 bytes a value of
// maxBits can ever require.
func maxBytesFor(maxBits uint) int {
	return (int(maxBits) + 6) / 7
}

// read decodes a LEB128 integer of at most maxBits bits from b, returning
// the raw bits, the number of bytes consumed, and whether the last payload
// byte's top bit (bit 6) was set (for sign extension by the caller).
func read(b []byte, maxBits uint) (result uint64, n int, signBit bool, err error) {
	var shift uint
	limit := maxBytesFor(maxBits)
	for {
		if n >= len(b) {
			return 0, n, false, fmt.Errorf("leb128: unexpected end of input")
		}
		cur := b[n]
		n++
		result |= uint64(cur&0x7f) << shift
		signBit = cur&0x40 != 0
		if cur&0x80 == 0 {
			return result, n, signBit, nil
		}
		shift += 7
		if n >= limit {
			return 0, n, false, fmt.Errorf("leb128: value wider than %d bits", maxBits)
		}
	}
}

// ReadUint32 decodes an unsigned 32-bit LEB128, returning the value and the
// number of bytes consumed.
func ReadUint32(b []byte) (uint32, int, error) {
	v, n, _, err := read(b, 32)
	return uint32(v), n, err
}

// ReadInt32 decodes a signed 32-bit LEB128 with sign extension.
func ReadInt32(b []byte) (int32, int, error) {
	v, n, signBit, err := read(b, 32)
	if err != nil {
		return 0, n, err
	}
	shift := uint(n) * 7
	if shift < 64 && signBit {
		v |= ^uint64(0) << shift
	}
	return int32(v), n, nil
}

// ReadUint64 decodes an unsigned 64-bit LEB128.
func ReadUint64(b []byte) (uint64, int, error) {
	v, n, _, err := read(b, 64)
	return v, n, err
}

// ReadInt64 decodes a signed 64-bit LEB128 with sign extension.
func ReadInt64(b []byte) (int64, int, error) {
	v, n, signBit, err := read(b, 64)
	if err != nil {
		return 0, n, err
	}
	shift := uint(n) * 7
	if shift < 64 && signBit {
		v |= ^uint64(0) << shift
	}
	return int64(v), n, nil
}

// EncodeUint32Padded4 encodes val as an unsigned LEB128 forced to exactly
// 4 bytes by setting the continuation bit on the first three, matching
// weeify.c's emit_u32leb4.
func EncodeUint32Padded4(val uint32) [4]byte {
	return [4]byte{
		0x80 | byte(val&0x7f),
		0x80 | byte((val>>7)&0x7f),
		0x80 | byte((val>>14)&0x7f),
		byte((val >> 21) & 0x7f),
	}
}

// EncodeInt32Padded4 encodes a signed pc-delta as a 4-byte padded LEB128.
// The sign is carried in the raw bit pattern (two's complement), same as
// an unsigned encode of the same bits, since LEB128 payload bits are
// agnostic to signedness — only decode-time sign extension differs.
func EncodeInt32Padded4(val int32) [4]byte {
	return EncodeUint32Padded4(uint32(val))
}

// EncodeUint32Padded5 encodes val as an unsigned LEB128 forced to exactly
// 5 bytes, matching weeify.c's emit_u32leb5 (used for body-length prefixes
// so they can be patched after the body is emitted).
func EncodeUint32Padded5(val uint32) [5]byte {
	return [5]byte{
		0x80 | byte(val&0x7f),
		0x80 | byte((val>>7)&0x7f),
		0x80 | byte((val>>14)&0x7f),
		0x80 | byte((val>>21)&0x7f),
		byte((val >> 28) & 0x7f),
	}
}

// EncodeInt32 encodes val as a minimal-length signed LEB128.
func EncodeInt32(val int32) []byte {
	var out []byte
	v := int64(val)
	for {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		done := (v == 0 && !signBitSet) || (v == -1 && signBitSet)
		if !done {
			b |= 0x80
		}
		out = append(out, b)
		if done {
			return out
		}
	}
}

// EncodeUint32 encodes val as a minimal-length unsigned LEB128.
func EncodeUint32(val uint32) []byte {
	var out []byte
	for {
		b := byte(val & 0x7f)
		val >>= 7
		if val != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if val == 0 {
			return out
		}
	}
}
