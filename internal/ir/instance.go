package ir

import "github.com/weewasm/weewasm/internal/werr"

// PageSize is the fixed linear memory page size, in bytes.
const PageSize = 64 * 1024

// NewInstance builds runtime state from m: linear memory and the
// function-reference table sized per their declared limits, then
// populated by the module's data and element segments, and globals set
// to their initializer values. Grounded on the original's
// init_wasm_module/populate* sequence, collapsed into one pass since Go
// has no equivalent to the C version's separate allocate-then-fill steps.
func NewInstance(m *Module) (*Instance, error) {
	inst := &Instance{Module: m}

	inst.Globals = make([]Value, len(m.Globals))
	for i, g := range m.Globals {
		inst.Globals[i] = g.Init
	}

	if m.Memory != nil {
		inst.Memory = make([]byte, int(m.Memory.Initial)*PageSize)
	}
	for _, d := range m.Data {
		if inst.Memory == nil {
			return nil, werr.New(werr.PhaseLink, werr.KindLinkage, "data segment present but module declares no memory")
		}
		bytes := m.Bytes[d.BytesStart:d.BytesEnd]
		end := int(d.MemOffset) + len(bytes)
		if d.MemOffset < 0 || end > len(inst.Memory) {
			return nil, werr.New(werr.PhaseLink, werr.KindLinkage, "data segment at offset %d, length %d overruns memory of size %d", d.MemOffset, len(bytes), len(inst.Memory))
		}
		copy(inst.Memory[d.MemOffset:end], bytes)
	}

	if m.Table != nil {
		inst.Table = make([]int32, m.Table.Limits.Initial)
		for i := range inst.Table {
			inst.Table[i] = -1
		}
	}
	for _, e := range m.Elements {
		if inst.Table == nil {
			return nil, werr.New(werr.PhaseLink, werr.KindLinkage, "element segment present but module declares no table")
		}
		end := int(e.TableOffset) + len(e.FuncIndexes)
		if e.TableOffset < 0 || end > len(inst.Table) {
			return nil, werr.New(werr.PhaseLink, werr.KindLinkage, "element segment at offset %d, length %d overruns table of size %d", e.TableOffset, len(e.FuncIndexes), len(inst.Table))
		}
		for i, fi := range e.FuncIndexes {
			inst.Table[int(e.TableOffset)+i] = int32(fi)
		}
	}

	return inst, nil
}
