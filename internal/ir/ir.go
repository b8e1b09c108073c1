// Package ir defines the in-memory representation the parser produces and
// the interpreter consumes: the dialect's value types, declarations, and
// the Module/Instance split between static structure and runtime state.
package ir

// ValType is one of the three value types the dialect permits.
type ValType byte

const (
	I32       ValType = iota // 32-bit integer
	F64                      // IEEE-754 double
	ExternRef                // opaque host reference
)

func (t ValType) String() string {
	switch t {
	case I32:
		return "i32"
	case F64:
		return "f64"
	case ExternRef:
		return "externref"
	default:
		return "invalid"
	}
}

// Value is a tagged dialect value, the only shape values take on the
// interpreter's stack, in globals, and in locals.
type Value struct {
	Type ValType
	I32  int32
	F64  float64
	Ref  any // nil means null; any other value is an opaque host reference
}

func I32Value(v int32) Value    { return Value{Type: I32, I32: v} }
func F64Value(v float64) Value  { return Value{Type: F64, F64: v} }
func RefValue(v any) Value      { return Value{Type: ExternRef, Ref: v} }
func NullRef() Value            { return Value{Type: ExternRef, Ref: nil} }

// Limits bounds a table or memory's size, in table elements or 64KiB pages.
type Limits struct {
	Initial uint32
	Max     uint32
	HasMax  bool
}

// Signature is a function type: parameter types and at most one result
// type (the dialect forbids multi-return).
type Signature struct {
	Params  []ValType
	Results []ValType // length 0 or 1
}

// ImportKind identifies what an import declaration binds.
type ImportKind byte

const (
	ImportFunc ImportKind = iota
	ImportGlobal
	ImportTable
	ImportMemory
)

// Import is an import declaration. The dialect only ever legalizes
// ImportFunc entries bound to the fixed weewasm.{puti,putd,puts} triple;
// table/global/memory imports are parsed far enough to report the error
// but never legalized.
type Import struct {
	ModuleName string
	MemberName string
	Kind       ImportKind
	SigIndex   uint32 // valid when Kind == ImportFunc
}

// Intrinsic identifies a host-provided function bound via import.
type Intrinsic byte

const (
	NotIntrinsic Intrinsic = iota
	IntrinsicPutI
	IntrinsicPutD
	IntrinsicPutS
)

// Func is a function declaration: either an imported intrinsic (CodeStart
// == CodeEnd == 0) or a module-defined function with a code body recorded
// as a byte range into the original module bytes, not a copy.
type Func struct {
	SigIndex  uint32
	Intrinsic Intrinsic // NotIntrinsic for module-defined functions
	CodeStart int
	CodeEnd   int
	NumLocals []ValType // additional locals beyond the parameters, in order
}

// IsImported reports whether f is bound to a host intrinsic rather than a
// module-defined body.
func (f *Func) IsImported() bool { return f.Intrinsic != NotIntrinsic }

// Table holds the single funcref table the dialect permits (table ops are
// a non-goal beyond call_indirect, so rows are function indices).
type Table struct {
	Limits Limits
}

// Global is a global variable declaration with its initializer.
type Global struct {
	Type    ValType
	Mutable bool
	Init    Value
}

// Data is a passive-free data segment: always associated with the single
// memory at a constant offset.
type Data struct {
	MemOffset  int32
	BytesStart int
	BytesEnd   int
}

// Element initializes a contiguous range of the single table with
// function indices, at a constant offset.
type Element struct {
	TableOffset int32
	FuncIndexes []uint32
}

// Module is the static structure the parser produces: declarations plus
// byte ranges into the original module bytes for code and data, so
// nothing in a code body is ever copied before the rewriter runs over it.
type Module struct {
	Bytes []byte // the full original module buffer

	Sigs     []Signature
	Imports  []Import
	Funcs    []Func // imported functions first, then module-defined, per binary order
	Table    *Table // nil if the module declares no table
	Memory   *Limits
	Globals  []Global
	Data     []Data
	Elements []Element

	StartFunc int32 // -1 if absent
	MainFunc  int32 // -1 if absent; index of the function exported as "main"

	NumImportedFuncs int
}

// FuncByIndex returns the function declaration at a binary function
// index (imports first, then module-defined functions).
func (m *Module) FuncByIndex(idx uint32) *Func {
	if int(idx) >= len(m.Funcs) {
		return nil
	}
	return &m.Funcs[idx]
}

// Instance is runtime state built from a Module: mutable globals, a
// linear memory byte slice, and a function-reference table, each
// initialized from the Module's declarations and segments.
type Instance struct {
	Module  *Module
	Memory  []byte
	Table   []int32 // function indices; -1 marks an uninitialized slot
	Globals []Value
}
