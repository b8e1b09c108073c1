package wasmtest

import "testing"

func TestBuildEmitsMagicAndVersion(t *testing.T) {
	data := Build(Spec{Start: -1})
	want := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	if len(data) < 8 {
		t.Fatalf("module too short: %d bytes", len(data))
	}
	for i, b := range want {
		if data[i] != b {
			t.Fatalf("header byte %d = %#02x, want %#02x", i, data[i], b)
		}
	}
}

func TestBuildOmitsEmptySections(t *testing.T) {
	data := Build(Spec{Start: -1})
	if len(data) != 8 {
		t.Fatalf("expected only the 8-byte header for an empty spec, got %d bytes", len(data))
	}
}

func TestBuildIncludesStartSection(t *testing.T) {
	spec := Spec{
		Sigs:  []Sig{{}},
		Funcs: []FuncDef{{SigIndex: 0, Body: []byte{0x0B}}},
		Start: 0,
	}
	data := Build(spec)
	found := false
	for _, b := range data {
		if b == 0x08 { // start section id
			found = true
			break
		}
	}
	if !found {
		t.Fatal("expected a start section (id 8) to be present")
	}
}

func TestConcatJoinsInstructionHelpers(t *testing.T) {
	got := Concat(I32Const(1), Op(0x0B))
	want := append(I32Const(1), 0x0B)
	if len(got) != len(want) {
		t.Fatalf("got %d bytes, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d = %#02x, want %#02x", i, got[i], want[i])
		}
	}
}

func TestI32ConstEncodesNegativeValues(t *testing.T) {
	enc := I32Const(-1)
	if len(enc) != 2 || enc[0] != 0x41 || enc[1] != 0x7f {
		t.Fatalf("I32Const(-1) = % x, want [41 7f]", enc)
	}
}
