// Package weeify implements the producer pass: it re-encodes a plain
// binary module's code section so every branch label occupies exactly
// 4 bytes and every body length occupies exactly 5, so internal/rewrite
// can later patch pc-relative deltas into those slots without shifting
// any other byte. Every other section is copied byte-for-byte.
package weeify

import (
	"github.com/weewasm/weewasm/internal/buffer"
	"github.com/weewasm/weewasm/internal/config"
	"github.com/weewasm/weewasm/internal/disasm"
	"github.com/weewasm/weewasm/internal/leb"
	"github.com/weewasm/weewasm/internal/opcode"
	"github.com/weewasm/weewasm/internal/werr"
)

const phase = werr.PhaseWeeify
const secCode = 10

// emitter accumulates the output module's bytes, with reserve/patch
// support for the 5-byte length prefixes that can only be known after
// their contents have been emitted.
type emitter struct {
	out []byte
}

func (e *emitter) byte(b byte)       { e.out = append(e.out, b) }
func (e *emitter) bytes(b []byte)    { e.out = append(e.out, b...) }
func (e *emitter) u32(v uint32)      { e.bytes(leb.EncodeUint32(v)) }
func (e *emitter) u32Padded4(v uint32) {
	enc := leb.EncodeUint32Padded4(v)
	e.bytes(enc[:])
}

// reserve5 appends 5 zero bytes and returns their offset, to be patched
// once the section or body it prefixes has been fully emitted.
func (e *emitter) reserve5() int {
	idx := len(e.out)
	e.out = append(e.out, 0, 0, 0, 0, 0)
	return idx
}

func (e *emitter) patch5(idx int, v uint32) {
	enc := leb.EncodeUint32Padded5(v)
	copy(e.out[idx:idx+5], enc[:])
}

// Transform reads a plain binary module and produces a weewasm-ready one.
func Transform(data []byte, cfg config.Config) ([]byte, error) {
	buf := buffer.New(data)
	e := &emitter{}

	header, err := buf.ReadBytes(8, phase)
	if err != nil {
		return nil, err
	}
	e.bytes(header)

	for !buf.Done() {
		startPos := buf.Pos()
		id, err := buf.ReadU8(phase)
		if err != nil {
			return nil, err
		}
		if id != secCode {
			length, err := buf.ReadU32LEB(phase)
			if err != nil {
				return nil, err
			}
			if _, err := buf.ReadBytes(int(length), phase); err != nil {
				return nil, err
			}
			cfg.Logger.Sugar().Debugf("section %d, %d bytes copied verbatim", id, length)
			e.bytes(data[startPos:buf.Pos()])
			continue
		}
		cfg.Logger.Sugar().Debugf("section %d at +%d: padding code bodies", id, startPos)
		if err := transformCodeSection(buf, e, cfg); err != nil {
			return nil, err
		}
	}

	return e.out, nil
}

func transformCodeSection(buf *buffer.Buffer, e *emitter, cfg config.Config) error {
	length, err := buf.ReadU32LEB(phase)
	if err != nil {
		return err
	}
	sectEnd := buf.Pos() + int(length)

	e.byte(secCode)
	lenIdx := e.reserve5()
	preLen := len(e.out)

	count, err := buf.ReadU32LEB(phase)
	if err != nil {
		return err
	}
	e.u32(count)

	for i := uint32(0); i < count; i++ {
		if err := transformBody(buf, e, cfg); err != nil {
			return err
		}
	}
	if buf.Pos() != sectEnd {
		return werr.At(phase, werr.KindMalformed, buf.Pos(), "code section: expected to end at +%d, ended at +%d", sectEnd, buf.Pos())
	}
	e.patch5(lenIdx, uint32(len(e.out)-preLen))
	return nil
}

func transformBody(buf *buffer.Buffer, e *emitter, cfg config.Config) error {
	bodySize, err := buf.ReadU32LEB(phase)
	if err != nil {
		return err
	}
	bodyEnd := buf.Pos() + int(bodySize)

	bodyLenIdx := e.reserve5()
	preLen := len(e.out)

	localsStart := buf.Pos()
	groups, err := buf.ReadU32LEB(phase)
	if err != nil {
		return err
	}
	for g := uint32(0); g < groups; g++ {
		if _, err := buf.ReadU32LEB(phase); err != nil {
			return err
		}
		if _, err := buf.ReadU8(phase); err != nil {
			return err
		}
	}
	e.bytes(buf.Bytes()[localsStart:buf.Pos()])

	for buf.Pos() < bodyEnd {
		if err := transformInstr(buf, e, cfg); err != nil {
			return err
		}
	}
	if buf.Pos() != bodyEnd {
		return werr.At(phase, werr.KindMalformed, buf.Pos(), "function body: expected to end at +%d, ended at +%d", bodyEnd, buf.Pos())
	}
	e.patch5(bodyLenIdx, uint32(len(e.out)-preLen))
	return nil
}

func transformInstr(buf *buffer.Buffer, e *emitter, cfg config.Config) error {
	opPos := buf.Pos()
	op, err := buf.ReadU8(phase)
	if err != nil {
		return err
	}
	info, known := opcode.Lookup(&opcode.WeeifyTable, op)
	if !known || !info.Legal {
		return werr.At(phase, werr.KindUnsupported, opPos, "weeify cannot emit opcode %#02x (%s)", op, info.Mnemonic)
	}

	switch info.Imm {
	case opcode.ImmLabel:
		v, err := buf.ReadU32LEB(phase)
		if err != nil {
			return err
		}
		e.byte(op)
		e.u32Padded4(v)
	case opcode.ImmLabels:
		count, err := buf.ReadU32LEB(phase)
		if err != nil {
			return err
		}
		e.byte(op)
		e.u32Padded4(count)
		for i := uint32(0); i <= count; i++ {
			v, err := buf.ReadU32LEB(phase)
			if err != nil {
				return err
			}
			e.u32Padded4(v)
		}
	default:
		if err := disasm.SkipImmediate(buf, &opcode.WeeifyTable, op, phase); err != nil {
			return err
		}
		e.bytes(buf.Bytes()[opPos:buf.Pos()])
	}
	return nil
}
