package vm

import "github.com/weewasm/weewasm/internal/ir"

// Frame is one activation record: the function being executed and its
// locals (parameters followed by declared locals). The instruction
// pointer itself lives in the *buffer.Buffer threaded through step(), not
// on Frame, since jmp/jmp_if/jmp_table reposition that buffer directly.
type Frame struct {
	Func   *ir.Func
	Locals []ir.Value
	// StackBase is the value-stack depth at call entry, so Return knows
	// how many operands below the result(s) to discard.
	StackBase int
}
