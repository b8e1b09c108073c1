package main

import (
	"bytes"
	"fmt"
	"io"

	"github.com/weewasm/weewasm/internal/buffer"
	"github.com/weewasm/weewasm/internal/config"
	"github.com/weewasm/weewasm/internal/ir"
	"github.com/weewasm/weewasm/internal/opcode"
	"github.com/weewasm/weewasm/internal/parser"
	"github.com/weewasm/weewasm/internal/rewrite"
	"github.com/weewasm/weewasm/internal/vm"
	"github.com/weewasm/weewasm/internal/weeify"
	"github.com/weewasm/weewasm/internal/wasmtest"
)

type smokeCase struct {
	name string
	spec wasmtest.Spec
	args []ir.Value
	// want is checked against the single i32/f64 result, or stdout if
	// wantStdout is set.
	want       ir.Value
	wantStdout string
}

// runSmokeTests round-trips a handful of hand-built modules through
// weeify, parse, rewrite and the interpreter, in place of the original's
// run_tests(). Each case is printed pass/fail; the overall result is
// whether every case passed.
func runSmokeTests(w io.Writer) bool {
	cases := []smokeCase{
		addCase(),
		branchCase(),
		putiCase(),
		callIndirectCase(),
	}

	allOK := true
	for _, c := range cases {
		ok, detail := runSmokeCase(c)
		status := "ok"
		if !ok {
			status = "FAIL"
			allOK = false
		}
		fmt.Fprintf(w, "%-20s %s%s\n", c.name, status, detail)
	}
	return allOK
}

func runSmokeCase(c smokeCase) (bool, string) {
	cfg := config.Default()
	raw := wasmtest.Build(c.spec)

	woven, err := weeify.Transform(raw, cfg)
	if err != nil {
		return false, ": weeify: " + err.Error()
	}
	m, err := parser.Parse(woven, cfg)
	if err != nil {
		return false, ": parse: " + err.Error()
	}

	buf := buffer.New(m.Bytes)
	for i := m.NumImportedFuncs; i < len(m.Funcs); i++ {
		f := &m.Funcs[i]
		if err := rewrite.Func(buf, &opcode.Table, f.CodeStart, f.CodeEnd, cfg); err != nil {
			return false, ": rewrite: " + err.Error()
		}
	}

	inst, err := ir.NewInstance(m)
	if err != nil {
		return false, ": link: " + err.Error()
	}

	var stdout bytes.Buffer
	machine := vm.New(inst, vm.FreeGasPolicy{}, &stdout, cfg)
	results, err := machine.Invoke(uint32(m.MainFunc), c.args)
	if err != nil {
		return false, ": run: " + err.Error()
	}

	if c.wantStdout != "" {
		if stdout.String() != c.wantStdout {
			return false, fmt.Sprintf(": stdout %q, want %q", stdout.String(), c.wantStdout)
		}
		return true, ""
	}

	if len(results) != 1 {
		return false, fmt.Sprintf(": got %d result(s), want 1", len(results))
	}
	if results[0] != c.want {
		return false, fmt.Sprintf(": got %+v, want %+v", results[0], c.want)
	}
	return true, ""
}

func addCase() smokeCase {
	return smokeCase{
		name: "i32.add",
		spec: wasmtest.Spec{
			Sigs:  []wasmtest.Sig{{Results: []ir.ValType{ir.I32}}},
			Funcs: []wasmtest.FuncDef{{SigIndex: 0, Body: wasmtest.Concat(wasmtest.I32Const(2), wasmtest.I32Const(3), wasmtest.Op(0x6A), wasmtest.End())}},
			Exports: []wasmtest.Export{{Name: "main", FuncIndex: 0}},
			Start:   -1,
		},
		want: ir.I32Value(5),
	}
}

// branchCase sums 1..5 using a loop and br_if, exercising the rewriter's
// backward (loop) and forward (block) jump resolution in one body.
func branchCase() smokeCase {
	// locals: 0 = i (counter), 1 = sum
	body := wasmtest.Concat(
		wasmtest.I32Const(5), wasmtest.LocalSet(0),
		wasmtest.I32Const(0), wasmtest.LocalSet(1),
		wasmtest.Block(),
		wasmtest.Loop(),
		wasmtest.LocalGet(0), wasmtest.Op(0x45), // i32.eqz
		wasmtest.BrIf(1),
		wasmtest.LocalGet(1), wasmtest.LocalGet(0), wasmtest.Op(0x6A), wasmtest.LocalSet(1),
		wasmtest.LocalGet(0), wasmtest.I32Const(1), wasmtest.Op(0x6B), wasmtest.LocalSet(0),
		wasmtest.Br(0),
		wasmtest.End(), // loop
		wasmtest.End(), // block
		wasmtest.LocalGet(1),
		wasmtest.End(),
	)
	return smokeCase{
		name: "loop+br_if",
		spec: wasmtest.Spec{
			Sigs:    []wasmtest.Sig{{Results: []ir.ValType{ir.I32}}},
			Funcs:   []wasmtest.FuncDef{{SigIndex: 0, Locals: []ir.ValType{ir.I32, ir.I32}, Body: body}},
			Exports: []wasmtest.Export{{Name: "main", FuncIndex: 0}},
			Start:   -1,
		},
		want: ir.I32Value(15),
	}
}

func putiCase() smokeCase {
	return smokeCase{
		name: "call puti",
		spec: wasmtest.Spec{
			Sigs: []wasmtest.Sig{
				{Params: []ir.ValType{ir.I32}},
				{},
			},
			Imports: []wasmtest.Import{{Module: "weewasm", Member: "puti", SigIndex: 0}},
			Funcs: []wasmtest.FuncDef{{SigIndex: 1, Body: wasmtest.Concat(
				wasmtest.I32Const(42), wasmtest.Call(0), wasmtest.End(),
			)}},
			Exports: []wasmtest.Export{{Name: "main", FuncIndex: 1}},
			Start:   -1,
		},
		wantStdout: "42",
	}
}

func callIndirectCase() smokeCase {
	return smokeCase{
		name: "call_indirect",
		spec: wasmtest.Spec{
			Sigs: []wasmtest.Sig{{Results: []ir.ValType{ir.I32}}},
			Funcs: []wasmtest.FuncDef{
				{SigIndex: 0, Body: wasmtest.Concat(wasmtest.I32Const(7), wasmtest.End())},
				{SigIndex: 0, Body: wasmtest.Concat(wasmtest.I32Const(0), wasmtest.CallIndirect(0), wasmtest.End())},
			},
			HasTable:     true,
			TableInitial: 1,
			Elements:     []wasmtest.ElemSeg{{Offset: 0, FuncIndexes: []uint32{0}}},
			Exports:      []wasmtest.Export{{Name: "main", FuncIndex: 1}},
			Start:        -1,
		},
		want: ir.I32Value(7),
	}
}
