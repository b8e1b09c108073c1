// Package wasmtest builds raw (pre-weeify) binary modules byte-by-byte,
// for tests that exercise the parser, rewriter, weeify pass and
// interpreter without a wat2wasm toolchain, which isn't available in
// this environment.
package wasmtest

import (
	"encoding/binary"
	"math"

	"github.com/weewasm/weewasm/internal/ir"
	"github.com/weewasm/weewasm/internal/leb"
)

// Sig is a function signature in a module's type section.
type Sig struct {
	Params  []ir.ValType
	Results []ir.ValType
}

// Import is a function import entry.
type Import struct {
	Module, Member string
	SigIndex       uint32
}

// FuncDef is a module-defined function: its signature, any extra locals
// beyond its parameters, and its raw instruction bytes (plain, unpadded
// branch labels — as if hand-assembled, before weeify touches it).
type FuncDef struct {
	SigIndex uint32
	Locals   []ir.ValType
	Body     []byte
}

// Global is a global variable declaration with a constant i32 or f64
// initializer.
type Global struct {
	Type    ir.ValType
	Mutable bool
	I32     int32
	F64     float64
}

// DataSeg is an active data segment at a constant i32 offset.
type DataSeg struct {
	Offset int32
	Bytes  []byte
}

// ElemSeg is an active element segment at a constant i32 offset.
type ElemSeg struct {
	Offset      int32
	FuncIndexes []uint32
}

// Export binds a name to a function index.
type Export struct {
	Name      string
	FuncIndex uint32
}

// Spec describes a whole module to build.
type Spec struct {
	Sigs          []Sig
	Imports       []Import
	Funcs         []FuncDef
	HasTable      bool
	TableInitial  uint32
	HasMemory     bool
	MemoryInitial uint32
	Globals       []Global
	Data          []DataSeg
	Elements      []ElemSeg
	Exports       []Export
	Start         int32 // -1 means absent
}

func u32(v uint32) []byte { return leb.EncodeUint32(v) }

func name(s string) []byte {
	out := u32(uint32(len(s)))
	return append(out, s...)
}

func section(id byte, body []byte) []byte {
	out := []byte{id}
	out = append(out, u32(uint32(len(body)))...)
	return append(out, body...)
}

func valType(t ir.ValType) byte {
	switch t {
	case ir.I32:
		return 0x7f
	case ir.F64:
		return 0x7c
	default:
		return 0x6f
	}
}

func constExpr(g Global) []byte {
	if g.Type == ir.F64 {
		b := make([]byte, 9)
		b[0] = 0x44
		binary.LittleEndian.PutUint64(b[1:], math.Float64bits(g.F64))
		return append(b, 0x0B)
	}
	out := []byte{0x41}
	out = append(out, leb.EncodeInt32(g.I32)...)
	return append(out, 0x0B)
}

func i32ConstExpr(v int32) []byte {
	out := []byte{0x41}
	out = append(out, leb.EncodeInt32(v)...)
	return append(out, 0x0B)
}

// Build assembles spec into a raw binary module.
func Build(spec Spec) []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	if len(spec.Sigs) > 0 {
		var body []byte
		body = append(body, u32(uint32(len(spec.Sigs)))...)
		for _, s := range spec.Sigs {
			body = append(body, 0x60)
			body = append(body, u32(uint32(len(s.Params)))...)
			for _, p := range s.Params {
				body = append(body, valType(p))
			}
			body = append(body, u32(uint32(len(s.Results)))...)
			for _, r := range s.Results {
				body = append(body, valType(r))
			}
		}
		out = append(out, section(1, body)...)
	}

	if len(spec.Imports) > 0 {
		var body []byte
		body = append(body, u32(uint32(len(spec.Imports)))...)
		for _, imp := range spec.Imports {
			body = append(body, name(imp.Module)...)
			body = append(body, name(imp.Member)...)
			body = append(body, 0x00) // func import
			body = append(body, u32(imp.SigIndex)...)
		}
		out = append(out, section(2, body)...)
	}

	if len(spec.Funcs) > 0 {
		var body []byte
		body = append(body, u32(uint32(len(spec.Funcs)))...)
		for _, f := range spec.Funcs {
			body = append(body, u32(f.SigIndex)...)
		}
		out = append(out, section(3, body)...)
	}

	if spec.HasTable {
		body := []byte{0x01, 0x70, 0x00} // one table: funcref, no max
		body = append(body, u32(spec.TableInitial)...)
		out = append(out, section(4, body)...)
	}

	if spec.HasMemory {
		body := []byte{0x01, 0x00} // one memory, no max
		body = append(body, u32(spec.MemoryInitial)...)
		out = append(out, section(5, body)...)
	}

	if len(spec.Globals) > 0 {
		var body []byte
		body = append(body, u32(uint32(len(spec.Globals)))...)
		for _, g := range spec.Globals {
			body = append(body, valType(g.Type))
			if g.Mutable {
				body = append(body, 0x01)
			} else {
				body = append(body, 0x00)
			}
			body = append(body, constExpr(g)...)
		}
		out = append(out, section(6, body)...)
	}

	if len(spec.Exports) > 0 {
		var body []byte
		body = append(body, u32(uint32(len(spec.Exports)))...)
		for _, e := range spec.Exports {
			body = append(body, name(e.Name)...)
			body = append(body, 0x00)
			body = append(body, u32(e.FuncIndex)...)
		}
		out = append(out, section(7, body)...)
	}

	if spec.Start >= 0 {
		out = append(out, section(8, u32(uint32(spec.Start)))...)
	}

	if len(spec.Elements) > 0 {
		var body []byte
		body = append(body, u32(uint32(len(spec.Elements)))...)
		for _, e := range spec.Elements {
			body = append(body, u32(0)...) // flag 0: active, table 0
			body = append(body, i32ConstExpr(e.Offset)...)
			body = append(body, u32(uint32(len(e.FuncIndexes)))...)
			for _, fi := range e.FuncIndexes {
				body = append(body, u32(fi)...)
			}
		}
		out = append(out, section(9, body)...)
	}

	if len(spec.Funcs) > 0 {
		var body []byte
		body = append(body, u32(uint32(len(spec.Funcs)))...)
		for _, f := range spec.Funcs {
			var fb []byte
			fb = append(fb, u32(uint32(len(f.Locals)))...)
			for _, vt := range f.Locals {
				fb = append(fb, u32(1)...)
				fb = append(fb, valType(vt))
			}
			fb = append(fb, f.Body...)
			body = append(body, u32(uint32(len(fb)))...)
			body = append(body, fb...)
		}
		out = append(out, section(10, body)...)
	}

	if len(spec.Data) > 0 {
		var body []byte
		body = append(body, u32(uint32(len(spec.Data)))...)
		for _, d := range spec.Data {
			body = append(body, u32(0)...)
			body = append(body, i32ConstExpr(d.Offset)...)
			body = append(body, u32(uint32(len(d.Bytes)))...)
			body = append(body, d.Bytes...)
		}
		out = append(out, section(11, body)...)
	}

	return out
}

// Instruction helpers, used to assemble FuncDef.Body.

func Op(b byte) []byte { return []byte{b} }

func I32Const(v int32) []byte {
	return append([]byte{0x41}, leb.EncodeInt32(v)...)
}

func F64Const(v float64) []byte {
	b := make([]byte, 9)
	b[0] = 0x44
	binary.LittleEndian.PutUint64(b[1:], math.Float64bits(v))
	return b
}

func Br(depth uint32) []byte     { return append([]byte{0x0C}, u32(depth)...) }
func BrIf(depth uint32) []byte   { return append([]byte{0x0D}, u32(depth)...) }
func Call(idx uint32) []byte     { return append([]byte{0x10}, u32(idx)...) }
func LocalGet(idx uint32) []byte { return append([]byte{0x20}, u32(idx)...) }
func LocalSet(idx uint32) []byte { return append([]byte{0x21}, u32(idx)...) }
func LocalTee(idx uint32) []byte { return append([]byte{0x22}, u32(idx)...) }
func GlobalGet(idx uint32) []byte { return append([]byte{0x23}, u32(idx)...) }
func GlobalSet(idx uint32) []byte { return append([]byte{0x24}, u32(idx)...) }

func Block() []byte { return []byte{0x02, 0x40} }
func Loop() []byte  { return []byte{0x03, 0x40} }
func End() []byte   { return []byte{0x0B} }

func CallIndirect(sigIdx uint32) []byte {
	out := append([]byte{0x11}, u32(sigIdx)...)
	return append(out, u32(0)...)
}

func BrTable(depths []uint32, defaultDepth uint32) []byte {
	out := []byte{0x0E}
	out = append(out, u32(uint32(len(depths)))...)
	for _, d := range depths {
		out = append(out, u32(d)...)
	}
	out = append(out, u32(defaultDepth)...)
	return out
}

// Concat joins instruction byte slices into one body.
func Concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
