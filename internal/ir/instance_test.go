package ir

import "testing"

func TestNewInstanceAllocatesMemoryAndTable(t *testing.T) {
	m := &Module{
		Memory: &Limits{Initial: 2},
		Table:  &Table{Limits: Limits{Initial: 3}},
		Globals: []Global{
			{Type: I32, Init: I32Value(7)},
		},
	}
	inst, err := NewInstance(m)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(inst.Memory) != 2*PageSize {
		t.Fatalf("memory size = %d, want %d", len(inst.Memory), 2*PageSize)
	}
	if len(inst.Table) != 3 {
		t.Fatalf("table size = %d, want 3", len(inst.Table))
	}
	for _, slot := range inst.Table {
		if slot != -1 {
			t.Fatalf("uninitialized table slot = %d, want -1", slot)
		}
	}
	if inst.Globals[0].I32 != 7 {
		t.Fatalf("global[0] = %d, want 7", inst.Globals[0].I32)
	}
}

func TestNewInstanceAppliesDataSegment(t *testing.T) {
	m := &Module{
		Bytes:  []byte{0xDE, 0xAD, 0xBE, 0xEF},
		Memory: &Limits{Initial: 1},
		Data:   []Data{{MemOffset: 10, BytesStart: 0, BytesEnd: 4}},
	}
	inst, err := NewInstance(m)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	got := inst.Memory[10:14]
	want := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("memory[%d] = %#02x, want %#02x", 10+i, got[i], want[i])
		}
	}
}

func TestNewInstanceDataSegmentWithoutMemoryErrors(t *testing.T) {
	m := &Module{
		Bytes: []byte{0x01},
		Data:  []Data{{MemOffset: 0, BytesStart: 0, BytesEnd: 1}},
	}
	if _, err := NewInstance(m); err == nil {
		t.Fatal("expected an error linking a data segment with no declared memory")
	}
}

func TestNewInstanceDataSegmentOverrunErrors(t *testing.T) {
	m := &Module{
		Bytes:  []byte{0x01, 0x02},
		Memory: &Limits{Initial: 1},
		Data:   []Data{{MemOffset: int32(PageSize) - 1, BytesStart: 0, BytesEnd: 2}},
	}
	if _, err := NewInstance(m); err == nil {
		t.Fatal("expected an overrun error")
	}
}

func TestNewInstanceAppliesElementSegment(t *testing.T) {
	m := &Module{
		Table:    &Table{Limits: Limits{Initial: 4}},
		Elements: []Element{{TableOffset: 1, FuncIndexes: []uint32{5, 6}}},
	}
	inst, err := NewInstance(m)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if inst.Table[0] != -1 || inst.Table[1] != 5 || inst.Table[2] != 6 || inst.Table[3] != -1 {
		t.Fatalf("table = %v", inst.Table)
	}
}

func TestFuncByIndexOutOfRange(t *testing.T) {
	m := &Module{Funcs: []Func{{}}}
	if m.FuncByIndex(0) == nil {
		t.Fatal("expected func 0 to resolve")
	}
	if m.FuncByIndex(1) != nil {
		t.Fatal("expected out-of-range index to return nil")
	}
}
