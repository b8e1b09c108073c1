package rewrite

import (
	"testing"

	"github.com/weewasm/weewasm/internal/buffer"
	"github.com/weewasm/weewasm/internal/config"
	"github.com/weewasm/weewasm/internal/ir"
	"github.com/weewasm/weewasm/internal/opcode"
	"github.com/weewasm/weewasm/internal/parser"
	"github.com/weewasm/weewasm/internal/wasmtest"
	"github.com/weewasm/weewasm/internal/weeify"
)

func buildWovenModule(t *testing.T) (*ir.Module, []byte) {
	t.Helper()
	body := wasmtest.Concat(
		wasmtest.Block(),
		wasmtest.I32Const(1),
		wasmtest.BrIf(0),
		wasmtest.I32Const(99),
		wasmtest.End(),
		wasmtest.I32Const(7),
		wasmtest.End(),
	)
	spec := wasmtest.Spec{
		Sigs:    []wasmtest.Sig{{Results: []ir.ValType{ir.I32}}},
		Funcs:   []wasmtest.FuncDef{{SigIndex: 0, Body: body}},
		Exports: []wasmtest.Export{{Name: "main", FuncIndex: 0}},
		Start:   -1,
	}
	woven, err := weeify.Transform(wasmtest.Build(spec), config.Default())
	if err != nil {
		t.Fatalf("weeify failed: %s", err)
	}
	m, err := parser.Parse(woven, config.Default())
	if err != nil {
		t.Fatalf("parse failed: %s", err)
	}
	return m, woven
}

func TestFuncRewritesBrIfToJmpIf(t *testing.T) {
	m, data := buildWovenModule(t)
	f := m.FuncByIndex(0)
	buf := buffer.New(data)

	if err := Func(buf, &opcode.Table, f.CodeStart, f.CodeEnd, config.Default()); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	// Locate the rewritten opcode: it must now be OpJmpIf, not OpBrIf.
	found := false
	for i := f.CodeStart; i < f.CodeEnd; i++ {
		if data[i] == opcode.OpJmpIf {
			found = true
			break
		}
	}
	if !found {
		t.Fatal("expected a jmp_if opcode to appear in the rewritten body")
	}
	for i := f.CodeStart; i < f.CodeEnd; i++ {
		if data[i] == opcode.OpBrIf {
			t.Fatal("br_if should have been replaced, not left in place")
		}
	}
}

func TestFuncRejectsBlockTypeOtherThanEmpty(t *testing.T) {
	// A block with an i32 (0x7f) block type is illegal in this dialect;
	// either weeify or the rewriter must reject it somewhere along the
	// pipeline, whichever runs the decode first.
	body := wasmtest.Concat(
		[]byte{0x02, 0x7f}, // block with a non-empty block type
		wasmtest.End(),
		wasmtest.End(),
	)
	spec := wasmtest.Spec{
		Sigs:  []wasmtest.Sig{{}},
		Funcs: []wasmtest.FuncDef{{SigIndex: 0, Body: body}},
		Start: -1,
	}
	woven, err := weeify.Transform(wasmtest.Build(spec), config.Default())
	if err != nil {
		return
	}
	m, perr := parser.Parse(woven, config.Default())
	if perr != nil {
		return
	}
	f := m.FuncByIndex(0)
	buf := buffer.New(woven)
	if err := Func(buf, &opcode.Table, f.CodeStart, f.CodeEnd, config.Default()); err == nil {
		t.Fatal("expected an error rejecting a non-empty block type somewhere in weeify/parse/rewrite")
	}
}

func TestFuncDetectsUnmatchedEnd(t *testing.T) {
	body := []byte{0x0B, 0x0B} // end with no opening body marker beyond the synthetic one
	spec := wasmtest.Spec{
		Sigs:  []wasmtest.Sig{{}},
		Funcs: []wasmtest.FuncDef{{SigIndex: 0, Body: body}},
		Start: -1,
	}
	woven, err := weeify.Transform(wasmtest.Build(spec), config.Default())
	if err != nil {
		t.Fatalf("weeify failed: %s", err)
	}
	m, err := parser.Parse(woven, config.Default())
	if err != nil {
		t.Fatalf("parse failed: %s", err)
	}
	f := m.FuncByIndex(0)
	buf := buffer.New(woven)
	// Two ends: one closes the function body's synthetic entry, the second
	// has nothing left on the control stack to close.
	if err := Func(buf, &opcode.Table, f.CodeStart, f.CodeEnd, config.Default()); err == nil {
		t.Fatal("expected an unmatched-end error")
	}
}
