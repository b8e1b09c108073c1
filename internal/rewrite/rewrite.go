// Package rewrite implements the single linear pass that turns structured
// br/br_if/br_table into PC-relative jmp/jmp_if/jmp_table, in place, over
// an already-weeified code body. It never allocates a new body buffer:
// every branch label was pre-padded to exactly 4 bytes by weeify, so a
// computed delta always fits back into the slot it came from.
package rewrite

import (
	"github.com/weewasm/weewasm/internal/buffer"
	"github.com/weewasm/weewasm/internal/config"
	"github.com/weewasm/weewasm/internal/disasm"
	"github.com/weewasm/weewasm/internal/leb"
	"github.com/weewasm/weewasm/internal/opcode"
	"github.com/weewasm/weewasm/internal/werr"
)

const phase = werr.PhaseRewrite

// backpatchRef is a not-yet-resolved branch target: the byte offset of
// the 4-byte label slot that named it.
type backpatchRef struct {
	pos int
}

// controlEntry tracks one open block/loop (or the function body itself,
// pushed as a synthetic entry before the first instruction) while the
// pass walks forward.
type controlEntry struct {
	isLoop  bool
	startPC int
	refs    []backpatchRef
}

// Func rewrites one function body in place, over buf's underlying bytes
// from codeStart to codeEnd (exclusive), as recorded by the parser.
func Func(buf *buffer.Buffer, tbl *[256]opcode.Info, codeStart, codeEnd int, cfg config.Config) error {
	stack := []controlEntry{{isLoop: false, startPC: codeStart}}
	buf.Seek(codeStart)

	for buf.Pos() < codeEnd {
		op, opPos, err := disasm.ReadOpcode(buf, phase)
		if err != nil {
			return err
		}

		switch op {
		case opcode.OpBlock, opcode.OpLoop:
			bt, err := buf.ReadI32LEB(phase)
			if err != nil {
				return err
			}
			if bt != -64 {
				return werr.At(phase, werr.KindMalformed, opPos, "block type must be empty (-64), got %d", bt)
			}
			stack = append(stack, controlEntry{isLoop: op == opcode.OpLoop, startPC: buf.Pos()})

		case opcode.OpEnd:
			if len(stack) == 0 {
				return werr.At(phase, werr.KindMalformed, opPos, "unmatched end")
			}
			entry := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			target := buf.Pos()
			if entry.isLoop {
				target = entry.startPC
			}
			for _, ref := range entry.refs {
				delta := int32(target - ref.pos)
				enc := leb.EncodeInt32Padded4(delta)
				buf.WriteAt(ref.pos, enc[:])
			}

		case opcode.OpBr, opcode.OpBrIf:
			newOp := opcode.OpJmp
			if op == opcode.OpBrIf {
				newOp = opcode.OpJmpIf
			}
			buf.WriteAt(opPos, []byte{newOp})
			depth, labelPos, err := buf.ReadLabel(phase)
			if err != nil {
				return err
			}
			if err := recordRef(stack, int(depth), labelPos, opPos); err != nil {
				return err
			}

		case opcode.OpBrTable:
			buf.WriteAt(opPos, []byte{opcode.OpJmpTable})
			count, err := buf.ReadU32LEB(phase)
			if err != nil {
				return err
			}
			for i := uint32(0); i <= count; i++ {
				depth, labelPos, err := buf.ReadLabel(phase)
				if err != nil {
					return err
				}
				if err := recordRef(stack, int(depth), labelPos, opPos); err != nil {
					return err
				}
			}

		default:
			if err := disasm.SkipImmediate(buf, tbl, op, phase); err != nil {
				return err
			}
		}
	}

	if len(stack) != 0 {
		return werr.At(phase, werr.KindMalformed, codeEnd, "%d unclosed block(s) at end of function body", len(stack))
	}
	return nil
}

func recordRef(stack []controlEntry, depth, labelPos, opPos int) error {
	idx := len(stack) - 1 - depth
	if idx < 0 {
		return werr.At(phase, werr.KindMalformed, opPos, "branch depth %d exceeds enclosing block nesting", depth)
	}
	stack[idx].refs = append(stack[idx].refs, backpatchRef{pos: labelPos})
	return nil
}
