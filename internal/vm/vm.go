// Package vm implements the tree-walking interpreter over an already
// rewritten module: branches are jmp/jmp_if/jmp_table with pc-relative
// deltas, so execution never needs a runtime control stack the way the
// pre-rewrite structured form would.
package vm

import (
	"io"
	"strconv"

	"github.com/weewasm/weewasm/internal/buffer"
	"github.com/weewasm/weewasm/internal/config"
	"github.com/weewasm/weewasm/internal/disasm"
	"github.com/weewasm/weewasm/internal/ir"
	"github.com/weewasm/weewasm/internal/opcode"
	"github.com/weewasm/weewasm/internal/werr"
)

const phase = werr.PhaseRun

// VM is one interpreter instance bound to a module Instance. It is not
// safe for concurrent use — the dialect has no suspension points, and
// neither does this interpreter (DESIGN NOTES: single-threaded execution
// throughout the pipeline).
type VM struct {
	instance *ir.Instance
	stack    []ir.Value
	gas      Gas
	policy   GasPolicy
	stdout   io.Writer
	cfg      config.Config
}

// New builds a VM over instance. stdout receives the output of the
// puti/putd/puts host intrinsics.
func New(instance *ir.Instance, policy GasPolicy, stdout io.Writer, cfg config.Config) *VM {
	if policy == nil {
		policy = FreeGasPolicy{}
	}
	return &VM{instance: instance, policy: policy, stdout: stdout, cfg: cfg}
}

// Invoke calls the function at funcIndex with args and runs it to
// completion, returning its result (0 or 1 values, per the dialect's
// no-multi-return rule) or a trap.
func (vm *VM) Invoke(funcIndex uint32, args []ir.Value) ([]ir.Value, error) {
	f := vm.instance.Module.FuncByIndex(funcIndex)
	if f == nil {
		return nil, werr.New(phase, werr.KindLinkage, "call to unknown function index %d", funcIndex)
	}
	if f.IsImported() {
		return vm.callIntrinsic(f, args)
	}

	sig := vm.instance.Module.Sigs[f.SigIndex]
	if len(args) != len(sig.Params) {
		return nil, werr.New(phase, werr.KindTrap, "function expects %d argument(s), got %d", len(sig.Params), len(args))
	}

	locals := make([]ir.Value, len(args)+len(f.NumLocals))
	copy(locals, args)
	for i, vt := range f.NumLocals {
		locals[len(args)+i] = zeroValue(vt)
	}

	buf := buffer.New(vm.instance.Module.Bytes)
	buf.Seek(f.CodeStart)
	frame := &Frame{Func: f, Locals: locals, StackBase: len(vm.stack)}

	for buf.Pos() < f.CodeEnd {
		if err := vm.step(buf, frame); err != nil {
			vm.stack = vm.stack[:frame.StackBase]
			return nil, err
		}
	}

	nres := len(sig.Results)
	if len(vm.stack)-frame.StackBase < nres {
		return nil, werr.New(phase, werr.KindTrap, "stack underflow returning from function")
	}
	results := append([]ir.Value(nil), vm.stack[len(vm.stack)-nres:]...)
	vm.stack = vm.stack[:frame.StackBase]
	return results, nil
}

func zeroValue(vt ir.ValType) ir.Value {
	switch vt {
	case ir.I32:
		return ir.I32Value(0)
	case ir.F64:
		return ir.F64Value(0)
	default:
		return ir.NullRef()
	}
}

func (vm *VM) callIntrinsic(f *ir.Func, args []ir.Value) ([]ir.Value, error) {
	switch f.Intrinsic {
	case ir.IntrinsicPutI:
		if len(args) != 1 || args[0].Type != ir.I32 {
			return nil, werr.New(phase, werr.KindTrap, "weewasm.puti expects one i32 argument")
		}
		io.WriteString(vm.stdout, strconv.FormatInt(int64(args[0].I32), 10))
		return nil, nil
	case ir.IntrinsicPutD:
		if len(args) != 1 || args[0].Type != ir.F64 {
			return nil, werr.New(phase, werr.KindTrap, "weewasm.putd expects one f64 argument")
		}
		io.WriteString(vm.stdout, strconv.FormatFloat(args[0].F64, 'f', -1, 64))
		return nil, nil
	case ir.IntrinsicPutS:
		if len(args) != 1 || args[0].Type != ir.ExternRef {
			return nil, werr.New(phase, werr.KindTrap, "weewasm.puts expects one externref argument")
		}
		if s, ok := args[0].Ref.(string); ok {
			io.WriteString(vm.stdout, s)
		}
		return nil, nil
	default:
		return nil, werr.New(phase, werr.KindLinkage, "call to unbound import")
	}
}

// step executes exactly one instruction, advancing buf and mutating
// frame/vm state. A control-transfer opcode (jmp, jmp_if, jmp_table,
// return) may reposition buf arbitrarily within [f.CodeStart, f.CodeEnd].
func (vm *VM) step(buf *buffer.Buffer, frame *Frame) error {
	opPos := buf.Pos()
	op, _, err := disasm.ReadOpcode(buf, phase)
	if err != nil {
		return err
	}
	if vm.cfg.Trace {
		vm.cfg.Logger.Sugar().Debugf("+%d: opcode %#02x", opPos, op)
	}
	vm.gas.Used += vm.policy.CostForOp(op)
	if vm.gas.Limit != 0 && vm.gas.Used > vm.gas.Limit {
		return werr.New(phase, werr.KindTrap, "out of gas")
	}

	switch op {
	case opcode.OpUnreachable:
		return werr.At(phase, werr.KindTrap, opPos, "unreachable executed")
	case opcode.OpNop:
		// no-op
	case opcode.OpBlock, opcode.OpLoop:
		if _, err := buf.ReadI32LEB(phase); err != nil {
			return err
		}
	case opcode.OpEnd:
		// no-op; scope bookkeeping happened at rewrite time

	case opcode.OpJmp:
		labelPos := buf.Pos()
		delta, err := readDelta4(buf, phase)
		if err != nil {
			return err
		}
		buf.Seek(labelPos + int(delta))

	case opcode.OpJmpIf:
		labelPos := buf.Pos()
		delta, err := readDelta4(buf, phase)
		if err != nil {
			return err
		}
		cond, err := vm.popI32()
		if err != nil {
			return err
		}
		if cond != 0 {
			buf.Seek(labelPos + int(delta))
		}

	case opcode.OpJmpTable:
		count, err := buf.ReadU32LEB(phase)
		if err != nil {
			return err
		}
		labelPositions := make([]int, count+1)
		deltas := make([]int32, count+1)
		for i := uint32(0); i <= count; i++ {
			labelPositions[i] = buf.Pos()
			d, err := readDelta4(buf, phase)
			if err != nil {
				return err
			}
			deltas[i] = d
		}
		idx, err := vm.popI32()
		if err != nil {
			return err
		}
		sel := uint32(idx)
		if sel > count {
			sel = count
		}
		buf.Seek(labelPositions[sel] + int(deltas[sel]))

	case opcode.OpReturn:
		buf.Seek(frame.Func.CodeEnd)

	case opcode.OpCall:
		idx, err := buf.ReadU32LEB(phase)
		if err != nil {
			return err
		}
		if err := vm.doCall(idx); err != nil {
			return err
		}

	case opcode.OpCallIndir:
		sigIdx, err := buf.ReadU32LEB(phase)
		if err != nil {
			return err
		}
		tableIdx, err := buf.ReadU32LEB(phase)
		if err != nil {
			return err
		}
		if tableIdx != 0 {
			return werr.At(phase, werr.KindUnsupported, opPos, "call_indirect table index must be 0")
		}
		slot, err := vm.popI32()
		if err != nil {
			return err
		}
		if slot < 0 || int(slot) >= len(vm.instance.Table) {
			return werr.At(phase, werr.KindTrap, opPos, "indirect call table index %d out of bounds", slot)
		}
		funcIdx := vm.instance.Table[slot]
		if funcIdx < 0 {
			return werr.At(phase, werr.KindTrap, opPos, "indirect call to uninitialized table slot %d", slot)
		}
		callee := vm.instance.Module.FuncByIndex(uint32(funcIdx))
		if callee == nil || callee.SigIndex != sigIdx {
			return werr.At(phase, werr.KindTrap, opPos, "indirect call type mismatch at table slot %d", slot)
		}
		if err := vm.doCall(uint32(funcIdx)); err != nil {
			return err
		}

	case opcode.OpDrop:
		if _, err := vm.pop(); err != nil {
			return err
		}
	case opcode.OpSelect:
		cond, err := vm.popI32()
		if err != nil {
			return err
		}
		b, err := vm.pop()
		if err != nil {
			return err
		}
		a, err := vm.pop()
		if err != nil {
			return err
		}
		if cond != 0 {
			vm.push(a)
		} else {
			vm.push(b)
		}

	case opcode.OpLocalGet:
		idx, err := buf.ReadU32LEB(phase)
		if err != nil {
			return err
		}
		if int(idx) >= len(frame.Locals) {
			return werr.At(phase, werr.KindTrap, opPos, "local index %d out of range", idx)
		}
		vm.push(frame.Locals[idx])
	case opcode.OpLocalSet, opcode.OpLocalTee:
		idx, err := buf.ReadU32LEB(phase)
		if err != nil {
			return err
		}
		v, err := vm.pop()
		if err != nil {
			return err
		}
		if int(idx) >= len(frame.Locals) {
			return werr.At(phase, werr.KindTrap, opPos, "local index %d out of range", idx)
		}
		frame.Locals[idx] = v
		if op == opcode.OpLocalTee {
			vm.push(v)
		}
	case opcode.OpGlobalGet:
		idx, err := buf.ReadU32LEB(phase)
		if err != nil {
			return err
		}
		if int(idx) >= len(vm.instance.Globals) {
			return werr.At(phase, werr.KindTrap, opPos, "global index %d out of range", idx)
		}
		vm.push(vm.instance.Globals[idx])
	case opcode.OpGlobalSet:
		idx, err := buf.ReadU32LEB(phase)
		if err != nil {
			return err
		}
		v, err := vm.pop()
		if err != nil {
			return err
		}
		if int(idx) >= len(vm.instance.Globals) {
			return werr.At(phase, werr.KindTrap, opPos, "global index %d out of range", idx)
		}
		vm.instance.Globals[idx] = v

	case opcode.OpMemorySize:
		if _, err := buf.ReadU32LEB(phase); err != nil {
			return err
		}
		vm.push(ir.I32Value(int32(len(vm.instance.Memory) / ir.PageSize)))
	case opcode.OpMemoryGrow:
		if _, err := buf.ReadU32LEB(phase); err != nil {
			return err
		}
		delta, err := vm.popI32()
		if err != nil {
			return err
		}
		old := len(vm.instance.Memory) / ir.PageSize
		vm.gas.Used += vm.policy.CostForGrow(uint32(delta))
		vm.instance.Memory = append(vm.instance.Memory, make([]byte, int(delta)*ir.PageSize)...)
		vm.push(ir.I32Value(int32(old)))

	case opcode.OpI32Const:
		v, err := buf.ReadI32LEB(phase)
		if err != nil {
			return err
		}
		vm.push(ir.I32Value(v))
	case opcode.OpF64Const:
		v, err := buf.ReadF64LE(phase)
		if err != nil {
			return err
		}
		vm.push(ir.F64Value(v))

	case opcode.OpRefNull:
		if _, err := buf.ReadU8(phase); err != nil {
			return err
		}
		vm.push(ir.NullRef())
	case opcode.OpRefIsNull:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		if v.Ref == nil {
			vm.push(ir.I32Value(1))
		} else {
			vm.push(ir.I32Value(0))
		}
	case opcode.OpRefFunc:
		idx, err := buf.ReadU32LEB(phase)
		if err != nil {
			return err
		}
		vm.push(ir.RefValue(idx))

	default:
		info, known := opcode.Lookup(&opcode.Table, op)
		if !known {
			return werr.At(phase, werr.KindUnsupported, opPos, "opcode %#02x is not executable in this dialect", op)
		}
		if !info.Legal {
			return werr.At(phase, werr.KindUnsupported, opPos, "opcode %s is not supported in this dialect", info.Mnemonic)
		}
		if info.Imm == opcode.ImmMemarg {
			return vm.execMemory(buf, op, opPos)
		}
		return vm.execNumeric(op, opPos)
	}
	return nil
}

func (vm *VM) doCall(idx uint32) error {
	f := vm.instance.Module.FuncByIndex(idx)
	if f == nil {
		return werr.New(phase, werr.KindLinkage, "call to unknown function index %d", idx)
	}
	sig := vm.instance.Module.Sigs[f.SigIndex]
	if len(vm.stack) < len(sig.Params) {
		return werr.New(phase, werr.KindTrap, "stack underflow calling function %d", idx)
	}
	args := append([]ir.Value(nil), vm.stack[len(vm.stack)-len(sig.Params):]...)
	vm.stack = vm.stack[:len(vm.stack)-len(sig.Params)]

	results, err := vm.Invoke(idx, args)
	if err != nil {
		return err
	}
	for _, r := range results {
		vm.push(r)
	}
	return nil
}

func readDelta4(buf *buffer.Buffer, phase werr.Phase) (int32, error) {
	bs, err := buf.ReadBytes(4, phase)
	if err != nil {
		return 0, err
	}
	var v uint32
	v |= uint32(bs[0] & 0x7f)
	v |= uint32(bs[1]&0x7f) << 7
	v |= uint32(bs[2]&0x7f) << 14
	v |= uint32(bs[3]&0x7f) << 21
	if bs[3]&0x40 != 0 {
		v |= ^uint32(0) << 28
	}
	return int32(v), nil
}

func (vm *VM) push(v ir.Value) { vm.stack = append(vm.stack, v) }

func (vm *VM) pop() (ir.Value, error) {
	if len(vm.stack) == 0 {
		return ir.Value{}, werr.New(phase, werr.KindTrap, "stack underflow")
	}
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v, nil
}

func (vm *VM) popI32() (int32, error) {
	v, err := vm.pop()
	if err != nil {
		return 0, err
	}
	if v.Type != ir.I32 {
		return 0, werr.New(phase, werr.KindTrap, "expected i32 on stack, got %s", v.Type)
	}
	return v.I32, nil
}

func (vm *VM) popF64() (float64, error) {
	v, err := vm.pop()
	if err != nil {
		return 0, err
	}
	if v.Type != ir.F64 {
		return 0, werr.New(phase, werr.KindTrap, "expected f64 on stack, got %s", v.Type)
	}
	return v.F64, nil
}
