package typevar

import "fmt"

// VariableManager mints fresh type variables deterministically. Each
// constraint-generation run carries exactly one VariableManager, threaded
// explicitly through the call graph — never an ambient/global counter —
// so that two runs over identical input produce identical fresh names.
type VariableManager struct {
	prefix string
	next   int
}

// NewVariableManager creates a manager whose fresh names are
// prefix+counter, e.g. "τ0", "τ1", ...
func NewVariableManager(prefix string) *VariableManager {
	if prefix == "" {
		prefix = "tv"
	}
	return &VariableManager{prefix: prefix}
}

// Fresh mints a new, never-before-returned type variable.
func (m *VariableManager) Fresh() TypeVariable {
	name := fmt.Sprintf("%s%d", m.prefix, m.next)
	m.next++
	return TypeVariable{Name: name}
}

// Named returns a TypeVariable wrapping an existing program-level name
// (a register, a subprocedure symbol) without consuming the fresh counter.
func (m *VariableManager) Named(name string) TypeVariable {
	return TypeVariable{Name: name}
}

// Count reports how many fresh variables have been minted so far.
func (m *VariableManager) Count() int { return m.next }
