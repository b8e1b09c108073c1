package weeify

import (
	"bytes"
	"testing"

	"github.com/weewasm/weewasm/internal/buffer"
	"github.com/weewasm/weewasm/internal/config"
	"github.com/weewasm/weewasm/internal/ir"
	"github.com/weewasm/weewasm/internal/leb"
	"github.com/weewasm/weewasm/internal/opcode"
	"github.com/weewasm/weewasm/internal/wasmtest"
	"github.com/weewasm/weewasm/internal/werr"
)

func buildBranchingModule() []byte {
	body := wasmtest.Concat(
		wasmtest.Block(),
		wasmtest.I32Const(1),
		wasmtest.BrIf(0),
		wasmtest.I32Const(7),
		wasmtest.Op(0x0B), // end block
		wasmtest.I32Const(9),
		wasmtest.Op(0x0B), // end func
	)
	spec := wasmtest.Spec{
		Sigs:    []wasmtest.Sig{{Results: []ir.ValType{ir.I32}}},
		Funcs:   []wasmtest.FuncDef{{SigIndex: 0, Body: body}},
		Exports: []wasmtest.Export{{Name: "main", FuncIndex: 0}},
		Start:   -1,
	}
	return wasmtest.Build(spec)
}

func TestTransformPadsLabelsToFourBytes(t *testing.T) {
	woven, err := Transform(buildBranchingModule(), config.Default())
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	// Find the br_if opcode in the woven bytes and confirm its label is
	// exactly 4 bytes by checking that decoding it with ReadLabel lands
	// the cursor on the next i32.const opcode.
	idx := -1
	for i, b := range woven {
		if b == wasmtest.BrIf(0)[0] {
			idx = i
			break
		}
	}
	if idx < 0 {
		t.Fatal("br_if opcode not found in woven output")
	}
	buf := buffer.New(woven)
	buf.Seek(idx + 1)
	_, _, err = buf.ReadLabel(werr.PhaseWeeify)
	if err != nil {
		t.Fatalf("label after br_if did not decode as a padded 4-byte label: %s", err)
	}
	next, err := buf.ReadU8(werr.PhaseWeeify)
	if err != nil || next != opcode.OpI32Const {
		t.Fatalf("expected i32.const after the label, got %#02x, err=%v", next, err)
	}
}

func TestTransformCopiesNonCodeSectionsVerbatim(t *testing.T) {
	raw := buildBranchingModule()
	woven, err := Transform(raw, config.Default())
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	// The type, function and export sections precede the code section in
	// both and are never rewritten, so their bytes should appear identically.
	if len(woven) < len(raw) {
		t.Fatalf("woven output (%d bytes) should be >= raw input (%d bytes) once labels are padded", len(woven), len(raw))
	}
	codeStart := 8
	for raw[codeStart] != 10 {
		n, w, err := leb.ReadUint32(raw[codeStart+1:])
		if err != nil {
			t.Fatalf("bad section length at +%d: %s", codeStart+1, err)
		}
		codeStart += 1 + w + int(n)
	}
	if !bytes.Equal(raw[:codeStart], woven[:codeStart]) {
		t.Fatal("bytes before the code section differ between raw and woven modules")
	}
}

func TestTransformRejectsIfElse(t *testing.T) {
	body := wasmtest.Concat(
		wasmtest.Op(0x04), wasmtest.Op(0x40), // if (block type empty)
		wasmtest.Op(0x0B),
		wasmtest.Op(0x0B),
	)
	spec := wasmtest.Spec{
		Sigs:  []wasmtest.Sig{{}},
		Funcs: []wasmtest.FuncDef{{SigIndex: 0, Body: body}},
		Start: -1,
	}
	if _, err := Transform(wasmtest.Build(spec), config.Default()); err == nil {
		t.Fatal("expected weeify to reject an if instruction")
	}
}
