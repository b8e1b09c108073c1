// Package parser decodes a weewasm binary module into an internal/ir.Module.
// It enforces every dialect restriction the format allows to reject at
// parse time: single value types, the fixed intrinsic import triple, a
// single table/memory, and an export list containing only "main". It
// never decodes a code body's instruction stream — bodies are recorded as
// byte ranges into the original buffer, left for the rewriter and
// interpreter to walk.
package parser

import (
	"github.com/weewasm/weewasm/internal/buffer"
	"github.com/weewasm/weewasm/internal/config"
	"github.com/weewasm/weewasm/internal/ir"
	"github.com/weewasm/weewasm/internal/opcode"
	"github.com/weewasm/weewasm/internal/werr"
)

const (
	magic0, magic1, magic2, magic3 = 0x00, 0x61, 0x73, 0x6d
	version                        = 1

	secCustom   = 0
	secType     = 1
	secImport   = 2
	secFunction = 3
	secTable    = 4
	secMemory   = 5
	secGlobal   = 6
	secExport   = 7
	secStart    = 8
	secElement  = 9
	secCode     = 10
	secData     = 11
)

const phase = werr.PhaseParse

// Parse decodes data into a Module. cfg.Logger receives one debug line per
// section when cfg.Trace is set.
func Parse(data []byte, cfg config.Config) (*ir.Module, error) {
	buf := buffer.New(data)

	for _, want := range []byte{magic0, magic1, magic2, magic3} {
		b, err := buf.ReadU8(phase)
		if err != nil {
			return nil, err
		}
		if b != want {
			return nil, werr.At(phase, werr.KindMalformed, buf.Pos()-1, "bad magic byte")
		}
	}
	ver, err := buf.ReadU32LE(phase)
	if err != nil {
		return nil, err
	}
	if ver != version {
		return nil, werr.At(phase, werr.KindMalformed, buf.Pos()-4, "unsupported version %d", ver)
	}

	m := &ir.Module{Bytes: data, StartFunc: -1, MainFunc: -1}

	lastID := -1
	for !buf.Done() {
		id, err := buf.ReadU8(phase)
		if err != nil {
			return nil, err
		}
		if id == secCustom {
			n, err := buf.ReadU32LEB(phase)
			if err != nil {
				return nil, err
			}
			if _, err := buf.ReadBytes(int(n), phase); err != nil {
				return nil, err
			}
			continue
		}
		if int(id) <= lastID {
			return nil, werr.At(phase, werr.KindMalformed, buf.Pos()-1, "section id %d out of order or repeated (last %d)", id, lastID)
		}
		lastID = int(id)

		length, err := buf.ReadU32LEB(phase)
		if err != nil {
			return nil, err
		}
		sectStart := buf.Pos()
		sectEnd := sectStart + int(length)

		cfg.Logger.Sugar().Debugf("section %d, %d bytes at +%d", id, length, sectStart)

		switch id {
		case secType:
			err = readTypeSection(buf, m)
		case secImport:
			err = readImportSection(buf, m)
		case secFunction:
			err = readFunctionSection(buf, m)
		case secTable:
			err = readTableSection(buf, m)
		case secMemory:
			err = readMemorySection(buf, m)
		case secGlobal:
			err = readGlobalSection(buf, m)
		case secExport:
			err = readExportSection(buf, m)
		case secStart:
			err = readStartSection(buf, m)
		case secElement:
			err = readElementSection(buf, m)
		case secCode:
			err = readCodeSection(buf, m)
		case secData:
			err = readDataSection(buf, m)
		default:
			err = werr.At(phase, werr.KindMalformed, sectStart-1, "unknown section id %d", id)
		}
		if err != nil {
			return nil, err
		}
		if buf.Pos() != sectEnd {
			return nil, werr.At(phase, werr.KindMalformed, buf.Pos(), "section %d: expected to end at +%d, ended at +%d", id, sectEnd, buf.Pos())
		}
	}

	return m, nil
}

func readValueType(buf *buffer.Buffer) (ir.ValType, error) {
	b, err := buf.ReadU8(phase)
	if err != nil {
		return 0, err
	}
	switch b {
	case 0x7f:
		return ir.I32, nil
	case 0x7c:
		return ir.F64, nil
	case 0x6f:
		return ir.ExternRef, nil
	default:
		return 0, werr.At(phase, werr.KindUnsupported, buf.Pos()-1, "illegal value type byte %#02x", b)
	}
}

func readLimits(buf *buffer.Buffer) (ir.Limits, error) {
	flag, err := buf.ReadU8(phase)
	if err != nil {
		return ir.Limits{}, err
	}
	initial, err := buf.ReadU32LEB(phase)
	if err != nil {
		return ir.Limits{}, err
	}
	l := ir.Limits{Initial: initial}
	if flag&0x1 != 0 {
		max, err := buf.ReadU32LEB(phase)
		if err != nil {
			return ir.Limits{}, err
		}
		l.Max = max
		l.HasMax = true
	}
	return l, nil
}

// readConstInitExpr reads exactly one i32.const or f64.const followed by
// end; an empty expression or trailing bytes before end are malformed
// input and any other opcode is an unsupported construct, resolving
// spec.md's Open Question in favor of strictness.
func readConstInitExpr(buf *buffer.Buffer) (ir.Value, error) {
	op, err := buf.ReadU8(phase)
	if err != nil {
		return ir.Value{}, err
	}
	var v ir.Value
	switch op {
	case opcode.OpI32Const:
		n, err := buf.ReadI32LEB(phase)
		if err != nil {
			return ir.Value{}, err
		}
		v = ir.I32Value(n)
	case opcode.OpF64Const:
		f, err := buf.ReadF64LE(phase)
		if err != nil {
			return ir.Value{}, err
		}
		v = ir.F64Value(f)
	case opcode.OpEnd:
		return ir.Value{}, werr.At(phase, werr.KindMalformed, buf.Pos()-1, "empty init expression")
	default:
		return ir.Value{}, werr.At(phase, werr.KindUnsupported, buf.Pos()-1, "init expression must be i32.const or f64.const, got opcode %#02x", op)
	}
	end, err := buf.ReadU8(phase)
	if err != nil {
		return ir.Value{}, err
	}
	if end != opcode.OpEnd {
		return ir.Value{}, werr.At(phase, werr.KindMalformed, buf.Pos()-1, "init expression must contain exactly one constant")
	}
	return v, nil
}

const (
	maxTypeCount   = 100000
	maxImportCount = 1000
)

func readTypeSection(buf *buffer.Buffer, m *ir.Module) error {
	count, err := buf.ReadU32LEB(phase)
	if err != nil {
		return err
	}
	if count > maxTypeCount {
		return werr.At(phase, werr.KindUnsupported, buf.Pos(), "at most %d types are supported, got %d", maxTypeCount, count)
	}
	m.Sigs = make([]ir.Signature, 0, count)
	for i := uint32(0); i < count; i++ {
		tag, err := buf.ReadU8(phase)
		if err != nil {
			return err
		}
		if tag != 0x60 {
			return werr.At(phase, werr.KindMalformed, buf.Pos()-1, "func type tag must be 0x60, got %#02x", tag)
		}
		sig := ir.Signature{}
		nParams, err := buf.ReadU32LEB(phase)
		if err != nil {
			return err
		}
		for p := uint32(0); p < nParams; p++ {
			vt, err := readValueType(buf)
			if err != nil {
				return err
			}
			sig.Params = append(sig.Params, vt)
		}
		nResults, err := buf.ReadU32LEB(phase)
		if err != nil {
			return err
		}
		if nResults > 1 {
			return werr.At(phase, werr.KindUnsupported, buf.Pos(), "multi-return is not supported, got %d results", nResults)
		}
		for r := uint32(0); r < nResults; r++ {
			vt, err := readValueType(buf)
			if err != nil {
				return err
			}
			sig.Results = append(sig.Results, vt)
		}
		m.Sigs = append(m.Sigs, sig)
	}
	return nil
}

func readImportSection(buf *buffer.Buffer, m *ir.Module) error {
	count, err := buf.ReadU32LEB(phase)
	if err != nil {
		return err
	}
	if count > maxImportCount {
		return werr.At(phase, werr.KindUnsupported, buf.Pos(), "at most %d imports are supported, got %d", maxImportCount, count)
	}
	for i := uint32(0); i < count; i++ {
		modName, err := buf.ReadName(phase)
		if err != nil {
			return err
		}
		memberName, err := buf.ReadName(phase)
		if err != nil {
			return err
		}
		kindByte, err := buf.ReadU8(phase)
		if err != nil {
			return err
		}
		if kindByte != 0x00 {
			return werr.At(phase, werr.KindUnsupported, buf.Pos()-1, "only function imports are supported, got import kind %#02x", kindByte)
		}
		sigIndex, err := buf.ReadU32LEB(phase)
		if err != nil {
			return err
		}
		intrinsic, err := bindImport(modName, memberName)
		if err != nil {
			return err
		}
		m.Imports = append(m.Imports, ir.Import{ModuleName: modName, MemberName: memberName, Kind: ir.ImportFunc, SigIndex: sigIndex})
		m.Funcs = append(m.Funcs, ir.Func{SigIndex: sigIndex, Intrinsic: intrinsic})
		m.NumImportedFuncs++
	}
	return nil
}

func bindImport(modName, memberName string) (ir.Intrinsic, error) {
	if modName != "weewasm" {
		return 0, werr.New(phase, werr.KindLinkage, "unknown import module %q, only \"weewasm\" is bound", modName)
	}
	switch memberName {
	case "puti":
		return ir.IntrinsicPutI, nil
	case "putd":
		return ir.IntrinsicPutD, nil
	case "puts":
		return ir.IntrinsicPutS, nil
	default:
		return 0, werr.New(phase, werr.KindLinkage, "unknown import weewasm.%s", memberName)
	}
}

func readFunctionSection(buf *buffer.Buffer, m *ir.Module) error {
	count, err := buf.ReadU32LEB(phase)
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		sigIndex, err := buf.ReadU32LEB(phase)
		if err != nil {
			return err
		}
		m.Funcs = append(m.Funcs, ir.Func{SigIndex: sigIndex})
	}
	return nil
}

func readTableSection(buf *buffer.Buffer, m *ir.Module) error {
	count, err := buf.ReadU32LEB(phase)
	if err != nil {
		return err
	}
	if count != 1 {
		return werr.At(phase, werr.KindUnsupported, buf.Pos(), "expected exactly one table, got %d", count)
	}
	for i := uint32(0); i < count; i++ {
		elemType, err := buf.ReadU8(phase)
		if err != nil {
			return err
		}
		if elemType != 0x70 {
			return werr.At(phase, werr.KindUnsupported, buf.Pos()-1, "table element type must be funcref, got %#02x", elemType)
		}
		limits, err := readLimits(buf)
		if err != nil {
			return err
		}
		m.Table = &ir.Table{Limits: limits}
	}
	return nil
}

func readMemorySection(buf *buffer.Buffer, m *ir.Module) error {
	count, err := buf.ReadU32LEB(phase)
	if err != nil {
		return err
	}
	if count != 1 {
		return werr.At(phase, werr.KindUnsupported, buf.Pos(), "expected exactly one memory, got %d", count)
	}
	for i := uint32(0); i < count; i++ {
		limits, err := readLimits(buf)
		if err != nil {
			return err
		}
		m.Memory = &limits
	}
	return nil
}

func readGlobalSection(buf *buffer.Buffer, m *ir.Module) error {
	count, err := buf.ReadU32LEB(phase)
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		vt, err := readValueType(buf)
		if err != nil {
			return err
		}
		mutByte, err := buf.ReadU8(phase)
		if err != nil {
			return err
		}
		if mutByte > 1 {
			return werr.At(phase, werr.KindMalformed, buf.Pos()-1, "global mutability flag must be 0 or 1, got %d", mutByte)
		}
		init, err := readConstInitExpr(buf)
		if err != nil {
			return err
		}
		m.Globals = append(m.Globals, ir.Global{Type: vt, Mutable: mutByte == 1, Init: init})
	}
	return nil
}

func readExportSection(buf *buffer.Buffer, m *ir.Module) error {
	count, err := buf.ReadU32LEB(phase)
	if err != nil {
		return err
	}
	if count != 1 {
		return werr.At(phase, werr.KindUnsupported, buf.Pos(), "expected exactly one export, got %d", count)
	}
	for i := uint32(0); i < count; i++ {
		name, err := buf.ReadName(phase)
		if err != nil {
			return err
		}
		kind, err := buf.ReadU8(phase)
		if err != nil {
			return err
		}
		index, err := buf.ReadU32LEB(phase)
		if err != nil {
			return err
		}
		if kind != 0x00 {
			return werr.At(phase, werr.KindUnsupported, buf.Pos(), "only function exports are supported, got export kind %#02x", kind)
		}
		if name != "main" {
			return werr.At(phase, werr.KindUnsupported, buf.Pos(), "only an export literally named \"main\" is legal, got %q", name)
		}
		m.MainFunc = int32(index)
	}
	return nil
}

func readStartSection(buf *buffer.Buffer, m *ir.Module) error {
	index, err := buf.ReadU32LEB(phase)
	if err != nil {
		return err
	}
	m.StartFunc = int32(index)
	return nil
}

func readElementSection(buf *buffer.Buffer, m *ir.Module) error {
	count, err := buf.ReadU32LEB(phase)
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		flag, err := buf.ReadU32LEB(phase)
		if err != nil {
			return err
		}
		if flag != 0 {
			return werr.At(phase, werr.KindUnsupported, buf.Pos(), "only active element segments on table 0 are supported, got flag %d", flag)
		}
		offset, err := readConstInitExpr(buf)
		if err != nil {
			return err
		}
		n, err := buf.ReadU32LEB(phase)
		if err != nil {
			return err
		}
		indexes := make([]uint32, n)
		for j := uint32(0); j < n; j++ {
			idx, err := buf.ReadU32LEB(phase)
			if err != nil {
				return err
			}
			indexes[j] = idx
		}
		m.Elements = append(m.Elements, ir.Element{TableOffset: offset.I32, FuncIndexes: indexes})
	}
	return nil
}

func readCodeSection(buf *buffer.Buffer, m *ir.Module) error {
	count, err := buf.ReadU32LEB(phase)
	if err != nil {
		return err
	}
	expect := uint32(len(m.Funcs) - m.NumImportedFuncs)
	if count != expect {
		return werr.At(phase, werr.KindMalformed, buf.Pos(), "code section has %d bodies, expected %d", count, expect)
	}
	for i := uint32(0); i < count; i++ {
		bodySize, err := buf.ReadU32LEB(phase)
		if err != nil {
			return err
		}
		bodyStart := buf.Pos()
		bodyEnd := bodyStart + int(bodySize)

		var locals []ir.ValType
		localGroups, err := buf.ReadU32LEB(phase)
		if err != nil {
			return err
		}
		for g := uint32(0); g < localGroups; g++ {
			n, err := buf.ReadU32LEB(phase)
			if err != nil {
				return err
			}
			vt, err := readValueType(buf)
			if err != nil {
				return err
			}
			for k := uint32(0); k < n; k++ {
				locals = append(locals, vt)
			}
		}

		f := &m.Funcs[m.NumImportedFuncs+int(i)]
		f.NumLocals = locals
		f.CodeStart = buf.Pos()
		f.CodeEnd = bodyEnd

		if _, err := buf.ReadBytes(bodyEnd-buf.Pos(), phase); err != nil {
			return err
		}
	}
	return nil
}

func readDataSection(buf *buffer.Buffer, m *ir.Module) error {
	count, err := buf.ReadU32LEB(phase)
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		flag, err := buf.ReadU32LEB(phase)
		if err != nil {
			return err
		}
		if flag != 0 {
			return werr.At(phase, werr.KindUnsupported, buf.Pos(), "only active data segments on memory 0 are supported, got flag %d", flag)
		}
		offset, err := readConstInitExpr(buf)
		if err != nil {
			return err
		}
		n, err := buf.ReadU32LEB(phase)
		if err != nil {
			return err
		}
		start := buf.Pos()
		if _, err := buf.ReadBytes(int(n), phase); err != nil {
			return err
		}
		m.Data = append(m.Data, ir.Data{MemOffset: offset.I32, BytesStart: start, BytesEnd: start + int(n)})
	}
	return nil
}
