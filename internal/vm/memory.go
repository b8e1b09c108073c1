package vm

import (
	"encoding/binary"
	"math"

	"github.com/weewasm/weewasm/internal/buffer"
	"github.com/weewasm/weewasm/internal/ir"
	"github.com/weewasm/weewasm/internal/opcode"
	"github.com/weewasm/weewasm/internal/werr"
)

// execMemory handles every load/store opcode. The memarg's align hint is
// decoded but ignored, matching the dialect's single untyped byte array
// memory model (DESIGN NOTES: "manual memory" carried forward as a plain
// []byte, no alignment-dependent fast path).
func (vm *VM) execMemory(buf *buffer.Buffer, op byte, opPos int) error {
	_, err := buf.ReadU32LEB(phase) // align, unused
	if err != nil {
		return err
	}
	offset, err := buf.ReadU32LEB(phase)
	if err != nil {
		return err
	}

	switch op {
	case opcode.OpI32Load:
		addr, err := vm.addr(offset, 4, opPos)
		if err != nil {
			return err
		}
		vm.push(ir.I32Value(int32(binary.LittleEndian.Uint32(vm.instance.Memory[addr:]))))
	case opcode.OpF64Load:
		addr, err := vm.addr(offset, 8, opPos)
		if err != nil {
			return err
		}
		bits := binary.LittleEndian.Uint64(vm.instance.Memory[addr:])
		vm.push(ir.F64Value(math.Float64frombits(bits)))
	case opcode.OpI32Load8S:
		addr, err := vm.addr(offset, 1, opPos)
		if err != nil {
			return err
		}
		vm.push(ir.I32Value(int32(int8(vm.instance.Memory[addr]))))
	case opcode.OpI32Load8U:
		addr, err := vm.addr(offset, 1, opPos)
		if err != nil {
			return err
		}
		vm.push(ir.I32Value(int32(vm.instance.Memory[addr])))
	case opcode.OpI32Load16S:
		addr, err := vm.addr(offset, 2, opPos)
		if err != nil {
			return err
		}
		vm.push(ir.I32Value(int32(int16(binary.LittleEndian.Uint16(vm.instance.Memory[addr:])))))
	case opcode.OpI32Load16U:
		addr, err := vm.addr(offset, 2, opPos)
		if err != nil {
			return err
		}
		vm.push(ir.I32Value(int32(binary.LittleEndian.Uint16(vm.instance.Memory[addr:]))))
	case opcode.OpI32Store:
		v, err := vm.popI32()
		if err != nil {
			return err
		}
		addr, err := vm.addr(offset, 4, opPos)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(vm.instance.Memory[addr:], uint32(v))
	case opcode.OpF64Store:
		v, err := vm.popF64()
		if err != nil {
			return err
		}
		addr, err := vm.addr(offset, 8, opPos)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint64(vm.instance.Memory[addr:], math.Float64bits(v))
	case opcode.OpI32Store8:
		v, err := vm.popI32()
		if err != nil {
			return err
		}
		addr, err := vm.addr(offset, 1, opPos)
		if err != nil {
			return err
		}
		vm.instance.Memory[addr] = byte(v)
	case opcode.OpI32Store16:
		v, err := vm.popI32()
		if err != nil {
			return err
		}
		addr, err := vm.addr(offset, 2, opPos)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint16(vm.instance.Memory[addr:], uint16(v))
	default:
		return werr.At(phase, werr.KindUnsupported, opPos, "memory opcode %#02x not implemented", op)
	}
	return nil
}

// addr pops the base i32 address, adds offset, and bounds-checks the
// resulting range against the current memory size.
func (vm *VM) addr(offset uint32, width int, opPos int) (int, error) {
	base, err := vm.popI32()
	if err != nil {
		return 0, err
	}
	if base < 0 {
		return 0, werr.At(phase, werr.KindTrap, opPos, "out of bounds memory access at address %d", base)
	}
	a := uint64(uint32(base)) + uint64(offset)
	if a+uint64(width) > uint64(len(vm.instance.Memory)) {
		return 0, werr.At(phase, werr.KindTrap, opPos, "out of bounds memory access at address %d", a)
	}
	return int(a), nil
}
