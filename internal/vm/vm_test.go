package vm

import (
	"bytes"
	"testing"

	"github.com/weewasm/weewasm/internal/buffer"
	"github.com/weewasm/weewasm/internal/config"
	"github.com/weewasm/weewasm/internal/ir"
	"github.com/weewasm/weewasm/internal/opcode"
	"github.com/weewasm/weewasm/internal/parser"
	"github.com/weewasm/weewasm/internal/rewrite"
	"github.com/weewasm/weewasm/internal/wasmtest"
	"github.com/weewasm/weewasm/internal/weeify"
)

// run builds, weeifies, parses, rewrites and links spec, then invokes its
// "main" export with args, returning the results and stdout captured from
// any puti/putd/puts calls.
func run(t *testing.T, spec wasmtest.Spec, args []ir.Value) ([]ir.Value, string, error) {
	t.Helper()
	cfg := config.Default()
	raw := wasmtest.Build(spec)

	woven, err := weeify.Transform(raw, cfg)
	if err != nil {
		t.Fatalf("weeify: %s", err)
	}
	m, err := parser.Parse(woven, cfg)
	if err != nil {
		t.Fatalf("parse: %s", err)
	}
	buf := buffer.New(m.Bytes)
	for i := m.NumImportedFuncs; i < len(m.Funcs); i++ {
		f := &m.Funcs[i]
		if err := rewrite.Func(buf, &opcode.Table, f.CodeStart, f.CodeEnd, cfg); err != nil {
			t.Fatalf("rewrite: %s", err)
		}
	}
	inst, err := ir.NewInstance(m)
	if err != nil {
		t.Fatalf("link: %s", err)
	}
	var stdout bytes.Buffer
	machine := New(inst, FreeGasPolicy{}, &stdout, cfg)
	results, err := machine.Invoke(uint32(m.MainFunc), args)
	return results, stdout.String(), err
}

func TestInvokeAddition(t *testing.T) {
	spec := wasmtest.Spec{
		Sigs: []wasmtest.Sig{{Results: []ir.ValType{ir.I32}}},
		Funcs: []wasmtest.FuncDef{
			{SigIndex: 0, Body: wasmtest.Concat(wasmtest.I32Const(2), wasmtest.I32Const(3), wasmtest.Op(0x6A), wasmtest.End())},
		},
		Exports: []wasmtest.Export{{Name: "main", FuncIndex: 0}},
		Start:   -1,
	}
	results, _, err := run(t, spec, nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(results) != 1 || results[0] != ir.I32Value(5) {
		t.Fatalf("got %+v, want [5]", results)
	}
}

func TestInvokeDivideByZeroTraps(t *testing.T) {
	spec := wasmtest.Spec{
		Sigs: []wasmtest.Sig{{Results: []ir.ValType{ir.I32}}},
		Funcs: []wasmtest.FuncDef{
			{SigIndex: 0, Body: wasmtest.Concat(wasmtest.I32Const(1), wasmtest.I32Const(0), wasmtest.Op(0x6D), wasmtest.End())},
		},
		Exports: []wasmtest.Export{{Name: "main", FuncIndex: 0}},
		Start:   -1,
	}
	if _, _, err := run(t, spec, nil); err == nil {
		t.Fatal("expected a trap dividing by zero")
	}
}

func TestInvokeMemoryLoadStoreRoundTrip(t *testing.T) {
	// Built manually since memarg immediates aren't covered by the helper
	// set: align=0, offset=0.
	store := wasmtest.Concat(wasmtest.I32Const(0), wasmtest.I32Const(99), []byte{0x36, 0x00, 0x00}) // i32.store align=0 offset=0
	load := wasmtest.Concat(wasmtest.I32Const(0), []byte{0x28, 0x00, 0x00})                         // i32.load align=0 offset=0
	full := wasmtest.Concat(store, load, wasmtest.End())

	spec := wasmtest.Spec{
		Sigs:          []wasmtest.Sig{{Results: []ir.ValType{ir.I32}}},
		Funcs:         []wasmtest.FuncDef{{SigIndex: 0, Body: full}},
		HasMemory:     true,
		MemoryInitial: 1,
		Exports:       []wasmtest.Export{{Name: "main", FuncIndex: 0}},
		Start:         -1,
	}
	results, _, err := run(t, spec, nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(results) != 1 || results[0] != ir.I32Value(99) {
		t.Fatalf("got %+v, want [99]", results)
	}
}

func TestInvokeOutOfBoundsMemoryTraps(t *testing.T) {
	body := wasmtest.Concat(
		wasmtest.I32Const(0),
		[]byte{0x28, 0x00, 0xFF, 0xFF, 0xFF, 0xFF, 0x0F}, // i32.load align=0 offset=huge
		wasmtest.End(),
	)
	spec := wasmtest.Spec{
		Sigs:          []wasmtest.Sig{{Results: []ir.ValType{ir.I32}}},
		Funcs:         []wasmtest.FuncDef{{SigIndex: 0, Body: body}},
		HasMemory:     true,
		MemoryInitial: 1,
		Exports:       []wasmtest.Export{{Name: "main", FuncIndex: 0}},
		Start:         -1,
	}
	if _, _, err := run(t, spec, nil); err == nil {
		t.Fatal("expected an out-of-bounds trap")
	}
}

func TestInvokePutiWritesStdout(t *testing.T) {
	spec := wasmtest.Spec{
		Sigs: []wasmtest.Sig{{Params: []ir.ValType{ir.I32}}, {}},
		Imports: []wasmtest.Import{
			{Module: "weewasm", Member: "puti", SigIndex: 0},
		},
		Funcs: []wasmtest.FuncDef{
			{SigIndex: 1, Body: wasmtest.Concat(wasmtest.I32Const(7), wasmtest.Call(0), wasmtest.End())},
		},
		Exports: []wasmtest.Export{{Name: "main", FuncIndex: 1}},
		Start:   -1,
	}
	_, stdout, err := run(t, spec, nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if stdout != "7" {
		t.Fatalf("stdout = %q, want \"7\"", stdout)
	}
}

func TestInvokeRequiresMatchingArgCount(t *testing.T) {
	spec := wasmtest.Spec{
		Sigs:    []wasmtest.Sig{{Params: []ir.ValType{ir.I32}, Results: []ir.ValType{ir.I32}}},
		Funcs:   []wasmtest.FuncDef{{SigIndex: 0, Body: wasmtest.Concat(wasmtest.LocalGet(0), wasmtest.End())}},
		Exports: []wasmtest.Export{{Name: "main", FuncIndex: 0}},
		Start:   -1,
	}
	if _, _, err := run(t, spec, nil); err == nil {
		t.Fatal("expected an arity mismatch error")
	}
}
