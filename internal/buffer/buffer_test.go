package buffer

import (
	"testing"

	"github.com/weewasm/weewasm/internal/leb"
	"github.com/weewasm/weewasm/internal/werr"
)

func TestReadU8AdvancesAndBoundsChecks(t *testing.T) {
	b := New([]byte{0x01, 0x02})
	v, err := b.ReadU8(werr.PhaseParse)
	if err != nil || v != 0x01 {
		t.Fatalf("got (%d, %v), want (1, nil)", v, err)
	}
	if b.Pos() != 1 {
		t.Fatalf("pos = %d, want 1", b.Pos())
	}
	b.ReadU8(werr.PhaseParse)
	if _, err := b.ReadU8(werr.PhaseParse); err == nil {
		t.Fatal("expected an error reading past the end")
	}
}

func TestReadLabelRequiresFourBytes(t *testing.T) {
	padded := leb.EncodeUint32Padded4(9)
	b := New(padded[:])
	v, pos, err := b.ReadLabel(werr.PhaseRewrite)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if v != 9 || pos != 0 || b.Pos() != 4 {
		t.Fatalf("got (%d, %d, pos=%d)", v, pos, b.Pos())
	}

	short := New([]byte{0x09})
	if _, _, err := short.ReadLabel(werr.PhaseRewrite); err == nil {
		t.Fatal("expected a precondition error on an unpadded label")
	}
}

func TestReadF64LERoundTrip(t *testing.T) {
	b := New([]byte{0, 0, 0, 0, 0, 0, 0, 0})
	v, err := b.ReadF64LE(werr.PhaseParse)
	if err != nil || v != 0 {
		t.Fatalf("got (%v, %v)", v, err)
	}
}

func TestWriteAtDoesNotShiftSubsequentBytes(t *testing.T) {
	data := []byte{0xAA, 0x80, 0x80, 0x80, 0x00, 0xBB}
	b := New(data)
	b.WriteAt(1, []byte{0x01, 0x02, 0x03, 0x04})
	if b.Bytes()[0] != 0xAA || b.Bytes()[5] != 0xBB {
		t.Fatal("WriteAt shifted bytes outside its own range")
	}
	if b.Bytes()[1] != 0x01 || b.Bytes()[4] != 0x04 {
		t.Fatal("WriteAt did not write the expected bytes")
	}
}

func TestReadName(t *testing.T) {
	data := append(leb.EncodeUint32(5), []byte("hello")...)
	b := New(data)
	s, err := b.ReadName(werr.PhaseParse)
	if err != nil || s != "hello" {
		t.Fatalf("got (%q, %v)", s, err)
	}
}
