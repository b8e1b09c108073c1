// Package disasm implements the single instruction-at-a-time
// decode-and-advance routine shared by plain disassembly, the branch
// rewriter's "skip anything that isn't a branch" default case, and
// weeify's code-body transform. All three only ever need to know how
// many bytes an instruction's immediate occupies and, optionally, what
// to print for it.
package disasm

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/weewasm/weewasm/internal/buffer"
	"github.com/weewasm/weewasm/internal/opcode"
	"github.com/weewasm/weewasm/internal/werr"
)

var (
	mnemonicColor = color.New(color.FgCyan)
	immColor      = color.New(color.FgYellow)
	illegalColor  = color.New(color.FgRed)
)

// ReadOpcode reads a single opcode byte, reporting the position it was
// read from (for a caller building its own control stack, such as the
// rewriter).
func ReadOpcode(buf *buffer.Buffer, phase werr.Phase) (op byte, pos int, err error) {
	pos = buf.Pos()
	op, err = buf.ReadU8(phase)
	return op, pos, err
}

// SkipImmediate advances buf past op's immediate operand(s), given op was
// already read from buf. It is the routine the rewriter calls for every
// opcode that isn't one of the handful it treats specially.
func SkipImmediate(buf *buffer.Buffer, tbl *[256]opcode.Info, op byte, phase werr.Phase) error {
	_, err := decode(buf, tbl, op, phase, nil, false)
	return err
}

// Step reads one full instruction (opcode plus immediate) from buf,
// optionally writing a disassembly line to w (pass nil to only skip).
// It returns the opcode's metadata so a caller can inspect legality.
func Step(buf *buffer.Buffer, tbl *[256]opcode.Info, phase werr.Phase, w io.Writer, colorize bool) (opcode.Info, error) {
	op, _, err := ReadOpcode(buf, phase)
	if err != nil {
		return opcode.Info{}, err
	}
	return decode(buf, tbl, op, phase, w, colorize)
}

// decode reads op's immediate from buf and, if w is non-nil, writes a
// disassembly line for it. info.Mnemonic == "" means op has no assigned
// meaning in this dialect's opcode superset at all; that is reported as a
// diagnostic when printing but never an error — only weeify (when
// transforming) and the interpreter (when executing) refuse bytes outright.
func decode(buf *buffer.Buffer, tbl *[256]opcode.Info, op byte, phase werr.Phase, w io.Writer, colorize bool) (opcode.Info, error) {
	info, known := opcode.Lookup(tbl, op)
	if !known {
		if w != nil {
			fmt.Fprintf(w, "  %s\n", colorIf(colorize, illegalColor, fmt.Sprintf("<!illegal bytecode %#02x>", op)))
		}
		return info, nil
	}

	var operand string
	switch info.Imm {
	case opcode.ImmNone:
		// no bytes to consume
	case opcode.ImmBlockT:
		v, err := buf.ReadI32LEB(phase)
		if err != nil {
			return info, err
		}
		if v != -64 {
			return info, werr.At(phase, werr.KindMalformed, buf.Pos(), "block type must be empty (-64), got %d", v)
		}
		operand = "[]"
	case opcode.ImmLabel:
		v, _, err := buf.ReadLabel(phase)
		if err != nil {
			return info, err
		}
		operand = fmt.Sprintf("%d", v)
	case opcode.ImmLabels:
		count, err := buf.ReadU32LEB(phase)
		if err != nil {
			return info, err
		}
		labels := make([]uint32, count+1)
		for i := range labels {
			v, _, err := buf.ReadLabel(phase)
			if err != nil {
				return info, err
			}
			labels[i] = v
		}
		operand = fmt.Sprintf("%v", labels)
	case opcode.ImmFunc, opcode.ImmLocal, opcode.ImmGlobal, opcode.ImmTable,
		opcode.ImmMemory, opcode.ImmTag, opcode.ImmRefNullT:
		v, err := buf.ReadU32LEB(phase)
		if err != nil {
			return info, err
		}
		operand = fmt.Sprintf("%d", v)
	case opcode.ImmSigTable:
		sig, err := buf.ReadU32LEB(phase)
		if err != nil {
			return info, err
		}
		table, err := buf.ReadU32LEB(phase)
		if err != nil {
			return info, err
		}
		if table != 0 {
			return info, werr.At(phase, werr.KindUnsupported, buf.Pos(), "call_indirect table index must be 0, got %d", table)
		}
		operand = fmt.Sprintf("sig=%d table=%d", sig, table)
	case opcode.ImmMemarg:
		align, err := buf.ReadU32LEB(phase)
		if err != nil {
			return info, err
		}
		offset, err := buf.ReadU32LEB(phase)
		if err != nil {
			return info, err
		}
		operand = fmt.Sprintf("align=%d offset=%d", align, offset)
	case opcode.ImmI32:
		v, err := buf.ReadI32LEB(phase)
		if err != nil {
			return info, err
		}
		operand = fmt.Sprintf("%d", v)
	case opcode.ImmI64:
		// illegal in this dialect; still decode to keep the cursor in sync.
		_, n, lerr := leb64(buf, phase)
		if lerr != nil {
			return info, lerr
		}
		operand = fmt.Sprintf("<i64 %d bytes>", n)
	case opcode.ImmF32:
		if _, err := buf.ReadBytes(4, phase); err != nil {
			return info, err
		}
		operand = "<f32>"
	case opcode.ImmF64:
		v, err := buf.ReadF64LE(phase)
		if err != nil {
			return info, err
		}
		operand = fmt.Sprintf("%g", v)
	case opcode.ImmValTs:
		v, err := buf.ReadI32LEB(phase)
		if err != nil {
			return info, err
		}
		operand = fmt.Sprintf("valtype(%d)", v)
	case opcode.ImmPCDelta:
		bs, err := buf.ReadBytes(4, phase)
		if err != nil {
			return info, err
		}
		delta, _, derr := decodePadded4Signed(bs)
		if derr != nil {
			return info, werr.At(phase, werr.KindMalformed, buf.Pos(), "%s", derr)
		}
		operand = fmt.Sprintf("%+d", delta)
	case opcode.ImmPCDeltas:
		count, err := buf.ReadU32LEB(phase)
		if err != nil {
			return info, err
		}
		deltas := make([]int32, count+1)
		for i := range deltas {
			bs, err := buf.ReadBytes(4, phase)
			if err != nil {
				return info, err
			}
			delta, _, derr := decodePadded4Signed(bs)
			if derr != nil {
				return info, werr.At(phase, werr.KindMalformed, buf.Pos(), "%s", derr)
			}
			deltas[i] = delta
		}
		operand = fmt.Sprintf("%v", deltas)
	}

	if w != nil {
		mnemonic := colorIf(colorize, mnemonicColor, info.Mnemonic)
		if !info.Legal {
			mnemonic = colorIf(colorize, illegalColor, info.Mnemonic+" (illegal)")
		}
		if operand != "" {
			fmt.Fprintf(w, "  %s %s\n", mnemonic, colorIf(colorize, immColor, operand))
		} else {
			fmt.Fprintf(w, "  %s\n", mnemonic)
		}
	}
	return info, nil
}

func colorIf(colorize bool, c *color.Color, s string) string {
	if !colorize || color.NoColor {
		return s
	}
	return c.Sprint(s)
}

// leb64 reads a raw LEB128 of up to 64 bits, used only to skip over the
// illegal i64.const immediate while keeping the cursor in sync.
func leb64(buf *buffer.Buffer, phase werr.Phase) (uint64, int, error) {
	start := buf.Pos()
	for i := 0; i < 10; i++ {
		b, err := buf.ReadU8(phase)
		if err != nil {
			return 0, buf.Pos() - start, err
		}
		if b&0x80 == 0 {
			return 0, buf.Pos() - start, nil
		}
	}
	return 0, buf.Pos() - start, werr.At(phase, werr.KindMalformed, start, "i64 leb too long")
}

// decodePadded4Signed interprets a 4-byte padded LEB128 (as produced by
// weeify or written back by the rewriter) as a signed pc-delta.
func decodePadded4Signed(bs []byte) (int32, int, error) {
	var v uint32
	v |= uint32(bs[0]&0x7f)
	v |= uint32(bs[1]&0x7f) << 7
	v |= uint32(bs[2]&0x7f) << 14
	v |= uint32(bs[3]&0x7f) << 21
	if bs[3]&0x40 != 0 {
		v |= ^uint32(0) << 28
	}
	return int32(v), 4, nil
}
