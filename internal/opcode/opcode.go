// Package opcode holds the 256-entry bytecode metadata table shared by the
// disassembler, the branch rewriter and the interpreter: for every opcode
// byte, its mnemonic, the shape of its immediate operand, and whether the
// weewasm dialect permits it to execute. The immediate shape is needed for
// every opcode that can appear in a code body, legal or not — the rewriter
// must skip over an illegal opcode's operand bytes just as surely as a
// legal one's, since the parser never decodes instruction streams itself.
package opcode

// ImmKind identifies the shape of an opcode's immediate operand(s).
type ImmKind int

const (
	ImmNone ImmKind = iota
	ImmBlockT
	ImmLabel
	ImmLabels
	ImmFunc
	ImmLocal
	ImmGlobal
	ImmTable
	ImmMemory
	ImmTag
	ImmRefNullT
	ImmSigTable
	ImmMemarg
	ImmI32
	ImmI64
	ImmF32
	ImmF64
	ImmValTs
	ImmPCDelta
	ImmPCDeltas
)

// Info describes one opcode byte.
type Info struct {
	Mnemonic string
	Imm      ImmKind
	Legal    bool
}

// Opcode byte constants referenced directly by the parser, rewriter and
// interpreter rather than looked up by mnemonic string.
const (
	OpUnreachable byte = 0x00
	OpNop         byte = 0x01
	OpBlock       byte = 0x02
	OpLoop        byte = 0x03
	OpIf          byte = 0x04
	OpElse        byte = 0x05
	OpEnd         byte = 0x0B
	OpBr          byte = 0x0C
	OpBrIf        byte = 0x0D
	OpBrTable     byte = 0x0E
	OpReturn      byte = 0x0F
	OpCall        byte = 0x10
	OpCallIndir   byte = 0x11
	OpDrop        byte = 0x1A
	OpSelect      byte = 0x1B
	OpLocalGet    byte = 0x20
	OpLocalSet    byte = 0x21
	OpLocalTee    byte = 0x22
	OpGlobalGet   byte = 0x23
	OpGlobalSet   byte = 0x24
	OpI32Load     byte = 0x28
	OpF64Load     byte = 0x2B
	OpI32Load8S   byte = 0x2C
	OpI32Load8U   byte = 0x2D
	OpI32Load16S  byte = 0x2E
	OpI32Load16U  byte = 0x2F
	OpI32Store    byte = 0x36
	OpF64Store    byte = 0x39
	OpI32Store8   byte = 0x3A
	OpI32Store16  byte = 0x3B
	OpMemorySize  byte = 0x3F
	OpMemoryGrow  byte = 0x40
	OpI32Const    byte = 0x41
	OpI64Const    byte = 0x42
	OpF32Const    byte = 0x43
	OpF64Const    byte = 0x44

	OpRefNull   byte = 0xD0
	OpRefIsNull byte = 0xD1
	OpRefFunc   byte = 0xD2

	OpJmp      byte = 0xF0
	OpJmpIf    byte = 0xF1
	OpJmpTable byte = 0xF2
)

// Table is the parser/rewriter/disassembler view: br/br_if/br_table,
// if/else and jmp/jmp_if/jmp_table are all legal (jmp* only ever appear
// after the rewriter has run).
var Table [256]Info

// WeeifyTable is the stricter producer-side view: identical to Table
// except if/else are additionally illegal, since weeify only ever
// consumes already-structured but not-yet-rewritten bodies and the
// original producer refuses to emit them (it only copies legal
// instructions byte-for-byte).
var WeeifyTable [256]Info

func legal(tbl *[256]Info, op byte, mnemonic string, imm ImmKind) {
	tbl[op] = Info{Mnemonic: mnemonic, Imm: imm, Legal: true}
}

func illegal(tbl *[256]Info, op byte, mnemonic string, imm ImmKind) {
	tbl[op] = Info{Mnemonic: mnemonic, Imm: imm, Legal: false}
}

func init() {
	build(&Table, true)
	build(&WeeifyTable, false)
}

// build populates tbl. allowIfElse controls whether if/else are marked
// legal (true for Table, false for WeeifyTable).
func build(tbl *[256]Info, allowIfElse bool) {
	legal(tbl, OpUnreachable, "unreachable", ImmNone)
	legal(tbl, OpNop, "nop", ImmNone)
	legal(tbl, OpBlock, "block", ImmBlockT)
	legal(tbl, OpLoop, "loop", ImmBlockT)
	if allowIfElse {
		legal(tbl, OpIf, "if", ImmBlockT)
		legal(tbl, OpElse, "else", ImmNone)
	} else {
		illegal(tbl, OpIf, "if", ImmBlockT)
		illegal(tbl, OpElse, "else", ImmNone)
	}
	legal(tbl, OpEnd, "end", ImmNone)
	legal(tbl, OpBr, "br", ImmLabel)
	legal(tbl, OpBrIf, "br_if", ImmLabel)
	legal(tbl, OpBrTable, "br_table", ImmLabels)
	legal(tbl, OpReturn, "return", ImmNone)
	legal(tbl, OpCall, "call", ImmFunc)
	legal(tbl, OpCallIndir, "call_indirect", ImmSigTable)

	legal(tbl, OpDrop, "drop", ImmNone)
	legal(tbl, OpSelect, "select", ImmNone)

	legal(tbl, 0x25, "table.get", ImmTable)
	legal(tbl, 0x26, "table.set", ImmTable)

	legal(tbl, OpLocalGet, "local.get", ImmLocal)
	legal(tbl, OpLocalSet, "local.set", ImmLocal)
	legal(tbl, OpLocalTee, "local.tee", ImmLocal)
	legal(tbl, OpGlobalGet, "global.get", ImmGlobal)
	legal(tbl, OpGlobalSet, "global.set", ImmGlobal)

	legal(tbl, OpI32Load, "i32.load", ImmMemarg)
	illegal(tbl, 0x29, "i64.load", ImmMemarg)
	illegal(tbl, 0x2A, "f32.load", ImmMemarg)
	legal(tbl, OpF64Load, "f64.load", ImmMemarg)
	legal(tbl, OpI32Load8S, "i32.load8_s", ImmMemarg)
	legal(tbl, OpI32Load8U, "i32.load8_u", ImmMemarg)
	legal(tbl, OpI32Load16S, "i32.load16_s", ImmMemarg)
	legal(tbl, OpI32Load16U, "i32.load16_u", ImmMemarg)
	for op := byte(0x30); op <= 0x35; op++ {
		illegal(tbl, op, "i64.load_variant", ImmMemarg)
	}
	legal(tbl, OpI32Store, "i32.store", ImmMemarg)
	illegal(tbl, 0x37, "i64.store", ImmMemarg)
	illegal(tbl, 0x38, "f32.store", ImmMemarg)
	legal(tbl, OpF64Store, "f64.store", ImmMemarg)
	legal(tbl, OpI32Store8, "i32.store8", ImmMemarg)
	legal(tbl, OpI32Store16, "i32.store16", ImmMemarg)
	for op := byte(0x3C); op <= 0x3E; op++ {
		illegal(tbl, op, "i64.store_variant", ImmMemarg)
	}

	legal(tbl, OpMemorySize, "memory.size", ImmMemory)
	legal(tbl, OpMemoryGrow, "memory.grow", ImmMemory)

	legal(tbl, OpI32Const, "i32.const", ImmI32)
	illegal(tbl, OpI64Const, "i64.const", ImmI64)
	illegal(tbl, OpF32Const, "f32.const", ImmF32)
	legal(tbl, OpF64Const, "f64.const", ImmF64)

	// i32 comparisons: eqz, eq, ne, lt_s, lt_u, gt_s, gt_u, le_s, le_u, ge_s, ge_u
	i32CmpNames := []string{"i32.eqz", "i32.eq", "i32.ne", "i32.lt_s", "i32.lt_u",
		"i32.gt_s", "i32.gt_u", "i32.le_s", "i32.le_u", "i32.ge_s", "i32.ge_u"}
	for i, name := range i32CmpNames {
		legal(tbl, byte(0x45+i), name, ImmNone)
	}
	for op := byte(0x50); op <= 0x5A; op++ {
		illegal(tbl, op, "i64.cmp_variant", ImmNone)
	}
	for op := byte(0x5B); op <= 0x60; op++ {
		illegal(tbl, op, "f32.cmp_variant", ImmNone)
	}
	f64CmpNames := []string{"f64.eq", "f64.ne", "f64.lt", "f64.gt", "f64.le", "f64.ge"}
	for i, name := range f64CmpNames {
		legal(tbl, byte(0x61+i), name, ImmNone)
	}

	i32ArithNames := []string{"i32.clz", "i32.ctz", "i32.popcnt", "i32.add", "i32.sub",
		"i32.mul", "i32.div_s", "i32.div_u", "i32.rem_s", "i32.rem_u", "i32.and", "i32.or",
		"i32.xor", "i32.shl", "i32.shr_s", "i32.shr_u", "i32.rotl", "i32.rotr"}
	for i, name := range i32ArithNames {
		legal(tbl, byte(0x67+i), name, ImmNone)
	}
	for op := byte(0x79); op <= 0x8A; op++ {
		illegal(tbl, op, "i64.arith_variant", ImmNone)
	}
	for op := byte(0x8B); op <= 0x98; op++ {
		illegal(tbl, op, "f32.arith_variant", ImmNone)
	}
	f64ArithNames := []string{"f64.abs", "f64.neg", "f64.ceil", "f64.floor", "f64.trunc",
		"f64.nearest", "f64.sqrt", "f64.add", "f64.sub", "f64.mul", "f64.div", "f64.min",
		"f64.max", "f64.copysign"}
	for i, name := range f64ArithNames {
		legal(tbl, byte(0x99+i), name, ImmNone)
	}

	illegal(tbl, 0xA7, "i32.wrap_i64", ImmNone)
	illegal(tbl, 0xA8, "i32.trunc_f32_s", ImmNone)
	illegal(tbl, 0xA9, "i32.trunc_f32_u", ImmNone)
	legal(tbl, 0xAA, "i32.trunc_f64_s", ImmNone)
	legal(tbl, 0xAB, "i32.trunc_f64_u", ImmNone)
	illegal(tbl, 0xAC, "i64.extend_i32_s", ImmNone)
	illegal(tbl, 0xAD, "i64.extend_i32_u", ImmNone)
	illegal(tbl, 0xAE, "i64.trunc_f32_s", ImmNone)
	illegal(tbl, 0xAF, "i64.trunc_f32_u", ImmNone)
	illegal(tbl, 0xB0, "i64.trunc_f64_s", ImmNone)
	illegal(tbl, 0xB1, "i64.trunc_f64_u", ImmNone)
	illegal(tbl, 0xB2, "f32.convert_i32_s", ImmNone)
	illegal(tbl, 0xB3, "f32.convert_i32_u", ImmNone)
	illegal(tbl, 0xB4, "f32.convert_i64_s", ImmNone)
	illegal(tbl, 0xB5, "f32.convert_i64_u", ImmNone)
	illegal(tbl, 0xB6, "f32.demote_f64", ImmNone)
	legal(tbl, 0xB7, "f64.convert_i32_s", ImmNone)
	legal(tbl, 0xB8, "f64.convert_i32_u", ImmNone)
	illegal(tbl, 0xB9, "f64.convert_i64_s", ImmNone)
	illegal(tbl, 0xBA, "f64.convert_i64_u", ImmNone)
	illegal(tbl, 0xBB, "f64.promote_f32", ImmNone)
	illegal(tbl, 0xBC, "i32.reinterpret_f32", ImmNone)
	illegal(tbl, 0xBD, "i64.reinterpret_f64", ImmNone)
	illegal(tbl, 0xBE, "f32.reinterpret_i32", ImmNone)
	illegal(tbl, 0xBF, "f64.reinterpret_i64", ImmNone)

	legal(tbl, 0xC0, "i32.extend8_s", ImmNone)
	legal(tbl, 0xC1, "i32.extend16_s", ImmNone)

	legal(tbl, OpRefNull, "ref.null", ImmRefNullT)
	legal(tbl, OpRefIsNull, "ref.is_null", ImmNone)
	legal(tbl, OpRefFunc, "ref.func", ImmFunc)

	// Rewritten forms only ever appear post-rewrite; always legal in both
	// tables since weeify never sees them (it runs before rewrite).
	legal(tbl, OpJmp, "jmp", ImmPCDelta)
	legal(tbl, OpJmpIf, "jmp_if", ImmPCDelta)
	legal(tbl, OpJmpTable, "jmp_table", ImmPCDeltas)
}

// Lookup returns the Info for op in tbl and whether an entry is known at
// all (an all-zero Info with Mnemonic == "" means a byte with no assigned
// meaning in this dialect's superset).
func Lookup(tbl *[256]Info, op byte) (Info, bool) {
	info := tbl[op]
	return info, info.Mnemonic != ""
}
