// Package genconstraints walks an interprocedural CFG — here, an
// internal/ir.Project — and emits subtype constraints per spec.md §4.C,
// using the three capability interfaces from internal/ircontext. It is
// the Go-idiom rendering of original_source's
// constraint_generation/mod.rs NodeContext/Context.
package genconstraints

import (
	"fmt"

	"github.com/luishsr/binary-type-inference/internal/ir"
	"github.com/luishsr/binary-type-inference/internal/ircontext"
	"github.com/luishsr/binary-type-inference/internal/typevar"
)

// NodeContext carries the three generator capabilities for one
// traversal. Unlike the teacher's analyzer-style Pipeline, there is
// nothing to chain here — NodeContext is consumed directly by Context.
type NodeContext struct {
	Registers    ircontext.RegisterMapping
	PointsTo     ircontext.PointsToMapping
	Subprocedure ircontext.SubprocedureLocators
}

// Context generates constraints for an entire project.
type Context struct {
	nodeCtx NodeContext
	vm      *typevar.VariableManager
}

// New builds a constraint-generation context using the given node
// context and variable manager. The caller owns vm and may inspect
// its Count() after generation to see how many fresh TVs were minted.
func New(nodeCtx NodeContext, vm *typevar.VariableManager) *Context {
	return &Context{nodeCtx: nodeCtx, vm: vm}
}

// GenerateConstraints walks every block of every subprocedure in proj in
// program order (deterministic traversal — no map iteration) and
// accumulates the constraint set spec.md §4.C describes.
func (c *Context) GenerateConstraints(proj *ir.Project) typevar.ConstraintSet {
	cs := typevar.Empty()
	for _, sub := range proj.Program.Subs {
		for _, blk := range sub.Blocks {
			cs = cs.Union(c.handleBlockStart(blk))
		}
	}
	return cs
}

func (c *Context) handleBlockStart(blk ir.Blk) typevar.ConstraintSet {
	cs := typevar.Empty()
	for _, def := range blk.Defs {
		cs = cs.Union(c.handleDef(blk.Tid, def))
	}
	return cs
}

func (c *Context) handleDef(tid string, def ir.Def) typevar.ConstraintSet {
	switch def.Kind {
	case ir.DefAssign:
		return c.handleAssign(tid, def)
	case ir.DefLoad:
		return c.handleLoad(tid, def)
	case ir.DefStore:
		return c.handleStore(tid, def)
	case ir.DefCall:
		return c.handleCall(tid, def)
	default:
		return typevar.Empty()
	}
}

// handleAssign implements "Assign(var, expr): compute DTV for var's new
// definition, recursively emit for expr. For expr = Var(v2), emit
// access(v2) ⊑ access(var)." Any other expression kind contributes no
// constraint, matching original_source's "_ => ConstraintSet::empty()".
func (c *Context) handleAssign(tid string, def ir.Def) typevar.ConstraintSet {
	if def.Var == nil || def.Value == nil {
		return typevar.Empty()
	}
	lhsTV, lhsExtra := c.nodeCtx.Registers.Access(tid, *def.Var, c.vm)
	cs := lhsExtra

	if def.Value.Kind != ir.ExprVar || def.Value.Var == nil {
		return cs
	}

	rhsTV, rhsExtra := c.nodeCtx.Registers.Access(tid, *def.Value.Var, c.vm)
	cs = cs.Union(rhsExtra)
	cs = cs.Add(typevar.NewSubtypeConstraint(
		typevar.NewDerivedTypeVar(rhsTV),
		typevar.NewDerivedTypeVar(lhsTV),
	))
	return cs
}

// handleLoad implements "Load(dst, addr): for each (tv, off, sz) in
// points_to(addr, sz), emit tv.Field(off,sz).Load ⊑ access(dst)."
func (c *Context) handleLoad(tid string, def ir.Def) typevar.ConstraintSet {
	if def.Var == nil || def.Address == nil {
		return typevar.Empty()
	}
	dstTV, cs := c.nodeCtx.Registers.Access(tid, *def.Var, c.vm)

	targets := c.nodeCtx.PointsTo.PointsTo(tid, *def.Address, def.Var.Size, c.vm)
	for _, access := range targets {
		source := typevar.NewDerivedTypeVar(access.Base).
			WithLabel(typevar.Field(access.Offset, access.Size)).
			WithLabel(typevar.Load())
		cs = cs.Add(typevar.NewSubtypeConstraint(source, typevar.NewDerivedTypeVar(dstTV)))
	}
	return cs
}

// handleStore implements "Store(addr, value): for each (tv, off, sz) in
// points_to(addr, sz), emit access_rhs(value) ⊑ tv.Field(off,sz).Store."
func (c *Context) handleStore(tid string, def ir.Def) typevar.ConstraintSet {
	if def.Address == nil || def.Value == nil {
		return typevar.Empty()
	}
	cs := typevar.Empty()

	if def.Value.Kind != ir.ExprVar || def.Value.Var == nil {
		return cs
	}
	rhsTV, rhsExtra := c.nodeCtx.Registers.Access(tid, *def.Value.Var, c.vm)
	cs = cs.Union(rhsExtra)

	targets := c.nodeCtx.PointsTo.PointsTo(tid, *def.Address, def.Value.Var.Size, c.vm)
	for _, access := range targets {
		dest := typevar.NewDerivedTypeVar(access.Base).
			WithLabel(typevar.Field(access.Offset, access.Size)).
			WithLabel(typevar.Store())
		cs = cs.Add(typevar.NewSubtypeConstraint(typevar.NewDerivedTypeVar(rhsTV), dest))
	}
	return cs
}

// handleCall implements "Call source / call return: use the
// subprocedure locator to relate actuals at the source to formals of
// the callee (callee.In(k)), and formals callee.Out(k) to actuals at
// the return; extern symbols participate the same way but their
// callees' TVs are by-name." An unresolved callee contributes no
// constraints rather than failing the whole traversal — a missing
// callee symbol is an input-completeness gap, not a malformed input.
func (c *Context) handleCall(tid string, def ir.Def) typevar.ConstraintSet {
	cs := typevar.Empty()
	if def.Call == nil {
		return cs
	}
	callee, ok := c.nodeCtx.Subprocedure.Locate(def.Call.Callee)
	if !ok {
		return cs
	}

	for i, arg := range def.Call.Args {
		if arg.Kind != ir.ExprVar || arg.Var == nil {
			continue
		}
		actualTV, extra := c.nodeCtx.Registers.Access(tid, *arg.Var, c.vm)
		cs = cs.Union(extra)
		formalIn := typevar.NewDerivedTypeVar(callee).WithLabel(typevar.In(i))
		cs = cs.Add(typevar.NewSubtypeConstraint(typevar.NewDerivedTypeVar(actualTV), formalIn))
	}

	for i, ret := range def.Call.Returns {
		actualTV, extra := c.nodeCtx.Registers.Access(fmt.Sprintf("%s:ret%d", tid, i), ret, c.vm)
		cs = cs.Union(extra)
		formalOut := typevar.NewDerivedTypeVar(callee).WithLabel(typevar.Out(i))
		cs = cs.Add(typevar.NewSubtypeConstraint(formalOut, typevar.NewDerivedTypeVar(actualTV)))
	}

	return cs
}
