package vm

import (
	"math"
	"math/bits"

	"github.com/weewasm/weewasm/internal/ir"
	"github.com/weewasm/weewasm/internal/werr"
)

// execNumeric handles every comparison, arithmetic and conversion opcode
// that carries no immediate operand.
func (vm *VM) execNumeric(op byte, opPos int) error {
	switch {
	case op >= 0x45 && op <= 0x4F:
		return vm.i32Compare(op, opPos)
	case op >= 0x61 && op <= 0x66:
		return vm.f64Compare(op, opPos)
	case op >= 0x67 && op <= 0x78:
		return vm.i32Arith(op, opPos)
	case op >= 0x99 && op <= 0xA6:
		return vm.f64Arith(op, opPos)
	case op == 0xAA || op == 0xAB:
		return vm.f64ToI32(op, opPos)
	case op == 0xB7 || op == 0xB8:
		return vm.i32ToF64(op, opPos)
	case op == 0xC0:
		v, err := vm.popI32()
		if err != nil {
			return err
		}
		vm.push(ir.I32Value(int32(int8(v))))
		return nil
	case op == 0xC1:
		v, err := vm.popI32()
		if err != nil {
			return err
		}
		vm.push(ir.I32Value(int32(int16(v))))
		return nil
	default:
		return werr.At(phase, werr.KindUnsupported, opPos, "opcode %#02x not implemented", op)
	}
}

func (vm *VM) i32Compare(op byte, opPos int) error {
	if op == 0x45 { // i32.eqz
		a, err := vm.popI32()
		if err != nil {
			return err
		}
		vm.push(boolI32(a == 0))
		return nil
	}
	b, err := vm.popI32()
	if err != nil {
		return err
	}
	a, err := vm.popI32()
	if err != nil {
		return err
	}
	ua, ub := uint32(a), uint32(b)
	var result bool
	switch op {
	case 0x46:
		result = a == b
	case 0x47:
		result = a != b
	case 0x48:
		result = a < b
	case 0x49:
		result = ua < ub
	case 0x4A:
		result = a > b
	case 0x4B:
		result = ua > ub
	case 0x4C:
		result = a <= b
	case 0x4D:
		result = ua <= ub
	case 0x4E:
		result = a >= b
	case 0x4F:
		result = ua >= ub
	default:
		return werr.At(phase, werr.KindUnsupported, opPos, "i32 comparison %#02x not implemented", op)
	}
	vm.push(boolI32(result))
	return nil
}

func (vm *VM) f64Compare(op byte, opPos int) error {
	b, err := vm.popF64()
	if err != nil {
		return err
	}
	a, err := vm.popF64()
	if err != nil {
		return err
	}
	var result bool
	switch op {
	case 0x61:
		result = a == b
	case 0x62:
		result = a != b
	case 0x63:
		result = a < b
	case 0x64:
		result = a > b
	case 0x65:
		result = a <= b
	case 0x66:
		result = a >= b
	default:
		return werr.At(phase, werr.KindUnsupported, opPos, "f64 comparison %#02x not implemented", op)
	}
	vm.push(boolI32(result))
	return nil
}

func (vm *VM) i32Arith(op byte, opPos int) error {
	if op == 0x67 || op == 0x68 || op == 0x69 { // clz, ctz, popcnt: unary
		a, err := vm.popI32()
		if err != nil {
			return err
		}
		var r int32
		switch op {
		case 0x67:
			r = int32(bits.LeadingZeros32(uint32(a)))
		case 0x68:
			r = int32(bits.TrailingZeros32(uint32(a)))
		case 0x69:
			r = int32(bits.OnesCount32(uint32(a)))
		}
		vm.push(ir.I32Value(r))
		return nil
	}
	b, err := vm.popI32()
	if err != nil {
		return err
	}
	a, err := vm.popI32()
	if err != nil {
		return err
	}
	ua, ub := uint32(a), uint32(b)
	var r int32
	switch op {
	case 0x6A:
		r = a + b
	case 0x6B:
		r = a - b
	case 0x6C:
		r = a * b
	case 0x6D:
		if b == 0 {
			return werr.At(phase, werr.KindTrap, opPos, "integer division by zero")
		}
		if a == math.MinInt32 && b == -1 {
			return werr.At(phase, werr.KindTrap, opPos, "integer overflow")
		}
		r = a / b
	case 0x6E:
		if ub == 0 {
			return werr.At(phase, werr.KindTrap, opPos, "integer division by zero")
		}
		r = int32(ua / ub)
	case 0x6F:
		if b == 0 {
			return werr.At(phase, werr.KindTrap, opPos, "integer division by zero")
		}
		if a == math.MinInt32 && b == -1 {
			r = 0
		} else {
			r = a % b
		}
	case 0x70:
		if ub == 0 {
			return werr.At(phase, werr.KindTrap, opPos, "integer division by zero")
		}
		r = int32(ua % ub)
	case 0x71:
		r = a & b
	case 0x72:
		r = a | b
	case 0x73:
		r = a ^ b
	case 0x74:
		r = a << (ub & 31)
	case 0x75:
		r = a >> (ub & 31)
	case 0x76:
		r = int32(ua >> (ub & 31))
	case 0x77:
		r = int32(bits.RotateLeft32(ua, int(ub&31)))
	case 0x78:
		r = int32(bits.RotateLeft32(ua, -int(ub&31)))
	default:
		return werr.At(phase, werr.KindUnsupported, opPos, "i32 arithmetic %#02x not implemented", op)
	}
	vm.push(ir.I32Value(r))
	return nil
}

func (vm *VM) f64Arith(op byte, opPos int) error {
	unary := map[byte]func(float64) float64{
		0x99: math.Abs,
		0x9A: func(v float64) float64 { return -v },
		0x9B: math.Ceil,
		0x9C: math.Floor,
		0x9D: math.Trunc,
		0x9E: math.RoundToEven,
		0x9F: math.Sqrt,
	}
	if f, ok := unary[op]; ok {
		a, err := vm.popF64()
		if err != nil {
			return err
		}
		vm.push(ir.F64Value(f(a)))
		return nil
	}
	b, err := vm.popF64()
	if err != nil {
		return err
	}
	a, err := vm.popF64()
	if err != nil {
		return err
	}
	var r float64
	switch op {
	case 0xA0:
		r = a + b
	case 0xA1:
		r = a - b
	case 0xA2:
		r = a * b
	case 0xA3:
		r = a / b
	case 0xA4:
		r = math.Min(a, b)
	case 0xA5:
		r = math.Max(a, b)
	case 0xA6:
		r = math.Copysign(a, b)
	default:
		return werr.At(phase, werr.KindUnsupported, opPos, "f64 arithmetic %#02x not implemented", op)
	}
	vm.push(ir.F64Value(r))
	return nil
}

func (vm *VM) f64ToI32(op byte, opPos int) error {
	a, err := vm.popF64()
	if err != nil {
		return err
	}
	if math.IsNaN(a) || math.IsInf(a, 0) {
		return werr.At(phase, werr.KindTrap, opPos, "invalid integer conversion from %g", a)
	}
	if op == 0xAA { // trunc_f64_s
		if a < math.MinInt32 || a > math.MaxInt32 {
			return werr.At(phase, werr.KindTrap, opPos, "integer overflow converting %g to i32", a)
		}
		vm.push(ir.I32Value(int32(math.Trunc(a))))
		return nil
	}
	// trunc_f64_u
	if a < 0 || a > math.MaxUint32 {
		return werr.At(phase, werr.KindTrap, opPos, "integer overflow converting %g to u32", a)
	}
	vm.push(ir.I32Value(int32(uint32(math.Trunc(a)))))
	return nil
}

func (vm *VM) i32ToF64(op byte, opPos int) error {
	a, err := vm.popI32()
	if err != nil {
		return err
	}
	if op == 0xB7 { // convert_i32_s
		vm.push(ir.F64Value(float64(a)))
		return nil
	}
	vm.push(ir.F64Value(float64(uint32(a))))
	return nil
}

func boolI32(b bool) ir.Value {
	if b {
		return ir.I32Value(1)
	}
	return ir.I32Value(0)
}
