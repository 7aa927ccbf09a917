// Package ircontext supplies the three capability interfaces spec.md
// §4.B requires of the constraint generator's collaborators —
// RegisterMapping, PointsToMapping, SubprocedureLocators — plus one
// concrete, deterministic implementation of each. The concrete
// implementations are deliberately simple (a single reaching-definition
// model, flat stack/heap object identification) rather than a real
// abstract-interpretation pointer analysis, which is out of scope; they
// exist so the constraint generator in internal/genconstraints is fully
// exercised without an external analysis pass.
package ircontext

import (
	"fmt"
	"log"

	"github.com/luishsr/binary-type-inference/internal/ir"
	"github.com/luishsr/binary-type-inference/internal/runtimeimage"
	"github.com/luishsr/binary-type-inference/internal/typevar"
)

// RegisterMapping maps a register occurrence at a program point to the
// type variable representing all of its reaching definitions.
type RegisterMapping interface {
	Access(tid string, v ir.Variable, vm *typevar.VariableManager) (typevar.TypeVariable, typevar.ConstraintSet)
}

// TypeVariableAccess is one memory-access target resolved by a
// PointsToMapping: the type variable standing for the underlying
// object, the already-normalized offset into it, and the bit size of
// the access (spec.md §4.B's `(base, offset, size)`). Offset is
// normalized relative to the object the base type variable stands
// for — for a stack slot that means subtracting the current frame
// size — so two accesses to the same abstract slot always carry the
// same offset regardless of the raw SP-relative displacement at their
// respective call sites.
type TypeVariableAccess struct {
	Base   typevar.TypeVariable
	Offset int64
	Size   int64
}

// PointsToMapping resolves a memory address expression to the set of
// type variables it may point to, each with its normalized offset.
type PointsToMapping interface {
	PointsTo(tid string, address ir.Expression, sz ir.ByteSize, vm *typevar.VariableManager) []TypeVariableAccess
}

// SubprocedureLocators links a callee name to the type variable
// representing that subprocedure, so call-site constraints can be
// connected to the callee's In/Out labels.
type SubprocedureLocators interface {
	Locate(name string) (typevar.TypeVariable, bool)
}

// FlatRegisterMapping is a trivial single-reaching-definition model: the
// first time a (block Tid, register name) pair is seen it is assigned a
// fresh type variable, which is reused for every later access at that
// same site. Real reaching-definitions analysis is out of scope.
type FlatRegisterMapping struct {
	tvs map[string]typevar.TypeVariable
}

func NewFlatRegisterMapping() *FlatRegisterMapping {
	return &FlatRegisterMapping{tvs: make(map[string]typevar.TypeVariable)}
}

func (m *FlatRegisterMapping) Access(tid string, v ir.Variable, vm *typevar.VariableManager) (typevar.TypeVariable, typevar.ConstraintSet) {
	key := tid + ":" + v.Name
	if tv, ok := m.tvs[key]; ok {
		return tv, typevar.Empty()
	}
	tv := vm.Fresh()
	m.tvs[key] = tv
	return tv, typevar.Empty()
}

// FlatPointsToMapping identifies stack-relative and heap/global
// addresses with their own type variable, normalizing stack offsets the
// way original_source's PointsToContext.memory_access_into_tvar does:
// an address relative to the stack pointer is normalized by subtracting
// the current frame size, and any residue that is still negative is
// logged and dropped (spec.md §4.B, §8 scenario S6) rather than treated
// as an error — Inconsistency is recoverable, never fatal.
//
// Per the Open Question on aliasing uniqueness (see DESIGN.md), this
// mapping never merges two distinct addresses into one type variable
// even if a real points-to analysis might consider them aliases.
type FlatPointsToMapping struct {
	StackPointerName string
	FrameSize        int64

	// Image, if set, backs the diagnostic-only image-containment check
	// spec.md §4.H/§4.I describe: whether a normalized stack address
	// also happens to land inside the mapped binary. It never affects
	// which type variable an access resolves to.
	Image *runtimeimage.Image

	tvs    map[string]typevar.TypeVariable
	logger *log.Logger
}

func NewFlatPointsToMapping(stackPointerName string, frameSize int64, logger *log.Logger) *FlatPointsToMapping {
	if logger == nil {
		logger = log.Default()
	}
	return &FlatPointsToMapping{
		StackPointerName: stackPointerName,
		FrameSize:        frameSize,
		tvs:              make(map[string]typevar.TypeVariable),
		logger:           logger,
	}
}

func (m *FlatPointsToMapping) PointsTo(tid string, address ir.Expression, sz ir.ByteSize, vm *typevar.VariableManager) []TypeVariableAccess {
	if address.Kind != ir.ExprVar || address.Var == nil {
		return nil
	}

	var key string
	var offset int64
	if address.Var.Name == m.StackPointerName {
		normalized := address.Offset - m.FrameSize
		if normalized < 0 {
			m.logger.Printf("points-to: unhandled negative stack offset %d (raw %d, frame size %d) at %s, dropping",
				normalized, address.Offset, m.FrameSize, tid)
			return nil
		}
		if m.Image != nil && !m.Image.Contains(uint64(normalized)) {
			m.logger.Printf("points-to: normalized stack offset %d at %s falls outside the mapped image", normalized, tid)
		}
		key = fmt.Sprintf("stack@%d", normalized)
		offset = normalized
	} else {
		key = fmt.Sprintf("obj:%s", address.Var.Name)
		offset = address.Offset
	}

	tv, ok := m.tvs[key]
	if !ok {
		tv = vm.Fresh()
		m.tvs[key] = tv
	}
	return []TypeVariableAccess{{Base: tv, Offset: offset, Size: int64(sz) * 8}}
}

// FlatSubprocedureLocators resolves a callee by its program-level
// symbol name — every call to the same symbol shares the same type
// variable, so constraints generated at different call sites to the
// same subprocedure accumulate on its In/Out labels rather than
// diverging.
type FlatSubprocedureLocators struct {
	known map[string]typevar.TypeVariable
}

func NewFlatSubprocedureLocators(externs []ir.ExternSymbol, vm *typevar.VariableManager) *FlatSubprocedureLocators {
	known := make(map[string]typevar.TypeVariable, len(externs))
	for _, sym := range externs {
		known[sym.Name] = vm.Named(sym.Name)
	}
	return &FlatSubprocedureLocators{known: known}
}

func (s *FlatSubprocedureLocators) Locate(name string) (typevar.TypeVariable, bool) {
	if tv, ok := s.known[name]; ok {
		return tv, true
	}
	return typevar.TypeVariable{}, false
}

// Register records a subprocedure (not just an extern symbol) as
// locatable by name, so that calls between subs defined in the same
// project resolve to that sub's own type variable.
func (s *FlatSubprocedureLocators) Register(name string, tv typevar.TypeVariable) {
	s.known[name] = tv
}
