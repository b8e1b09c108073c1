package vm

import (
	"testing"

	"github.com/weewasm/weewasm/internal/opcode"
)

func TestFreeGasPolicyChargesNothing(t *testing.T) {
	p := FreeGasPolicy{}
	if p.CostForOp(opcode.OpCall) != 0 || p.CostForGrow(10) != 0 {
		t.Fatal("FreeGasPolicy must always charge zero")
	}
}

func TestSimpleGasPolicyChargesCallsMore(t *testing.T) {
	p := SimpleGasPolicy{PerOp: 2, PerPage: 5}
	if got := p.CostForOp(opcode.OpCall); got != 8 {
		t.Fatalf("CostForOp(call) = %d, want 8", got)
	}
	if got := p.CostForOp(opcode.OpI32Const); got != 2 {
		t.Fatalf("CostForOp(i32.const) = %d, want 2", got)
	}
	if got := p.CostForGrow(3); got != 15 {
		t.Fatalf("CostForGrow(3) = %d, want 15", got)
	}
}
