package genconstraints

import (
	"testing"

	"github.com/luishsr/binary-type-inference/internal/ir"
	"github.com/luishsr/binary-type-inference/internal/ircontext"
	"github.com/luishsr/binary-type-inference/internal/typevar"
)

func newTestContext() (*Context, *typevar.VariableManager) {
	vm := typevar.NewVariableManager("τ")
	nodeCtx := NodeContext{
		Registers:    ircontext.NewFlatRegisterMapping(),
		PointsTo:     ircontext.NewFlatPointsToMapping("RSP", 0, nil),
		Subprocedure: ircontext.NewFlatSubprocedureLocators(nil, vm),
	}
	return New(nodeCtx, vm), vm
}

func TestHandleAssignEmitsSubtypeConstraint(t *testing.T) {
	ctx, _ := newTestContext()
	proj := &ir.Project{
		Program: ir.Program{
			Subs: []ir.Sub{
				{
					Tid: "sub_1",
					Blocks: []ir.Blk{
						{
							Tid: "blk_1",
							Defs: []ir.Def{
								{
									Tid:   "def_1",
									Kind:  ir.DefAssign,
									Var:   &ir.Variable{Name: "RAX"},
									Value: &ir.Expression{Kind: ir.ExprVar, Var: &ir.Variable{Name: "RBX"}},
								},
							},
						},
					},
				},
			},
		},
	}

	cs := ctx.GenerateConstraints(proj)
	if cs.Len() != 1 {
		t.Fatalf("expected exactly one constraint, got %d: %s", cs.Len(), cs)
	}
}

func TestHandleAssignConstExpressionEmitsNothing(t *testing.T) {
	ctx, _ := newTestContext()
	proj := &ir.Project{
		Program: ir.Program{
			Subs: []ir.Sub{
				{
					Tid: "sub_1",
					Blocks: []ir.Blk{
						{
							Tid: "blk_1",
							Defs: []ir.Def{
								{
									Tid:   "def_1",
									Kind:  ir.DefAssign,
									Var:   &ir.Variable{Name: "RAX"},
									Value: &ir.Expression{Kind: ir.ExprConst, Const: 42},
								},
							},
						},
					},
				},
			},
		},
	}

	cs := ctx.GenerateConstraints(proj)
	if !cs.IsEmpty() {
		t.Errorf("expected no constraints for a const assign, got %s", cs)
	}
}

func TestHandleLoadEmitsFieldLoadConstraint(t *testing.T) {
	ctx, _ := newTestContext()
	proj := &ir.Project{
		Program: ir.Program{
			Subs: []ir.Sub{
				{
					Tid: "sub_1",
					Blocks: []ir.Blk{
						{
							Tid: "blk_1",
							Defs: []ir.Def{
								{
									Tid:     "def_1",
									Kind:    ir.DefLoad,
									Var:     &ir.Variable{Name: "RAX", Size: 8},
									Address: &ir.Expression{Kind: ir.ExprVar, Var: &ir.Variable{Name: "RSP"}, Offset: 16},
								},
							},
						},
					},
				},
			},
		},
	}

	cs := ctx.GenerateConstraints(proj)
	if cs.Len() != 1 {
		t.Fatalf("expected one load constraint, got %d", cs.Len())
	}
	c := cs.Constraints()[0]
	if len(c.Left.Path) != 2 {
		t.Fatalf("expected left side path of length 2 (field, load), got %d", len(c.Left.Path))
	}
	if c.Left.Path[0].Kind != typevar.KindField || c.Left.Path[1].Kind != typevar.KindLoad {
		t.Errorf("expected [field, load] path, got %v", c.Left.Path)
	}
}

// TestHandleLoadUsesNormalizedStackOffsetNotRawOffset covers spec.md
// §4.B: the Field label on a stack-relative load must carry the
// points-to-normalized offset, not the raw SP-relative displacement —
// a load at raw offset 24 against a frame size of 16 must produce a
// Field label at offset 8.
func TestHandleLoadUsesNormalizedStackOffsetNotRawOffset(t *testing.T) {
	vm := typevar.NewVariableManager("τ")
	nodeCtx := NodeContext{
		Registers:    ircontext.NewFlatRegisterMapping(),
		PointsTo:     ircontext.NewFlatPointsToMapping("RSP", 16, nil),
		Subprocedure: ircontext.NewFlatSubprocedureLocators(nil, vm),
	}
	ctx := New(nodeCtx, vm)

	proj := &ir.Project{
		Program: ir.Program{
			Subs: []ir.Sub{
				{
					Tid: "sub_1",
					Blocks: []ir.Blk{
						{
							Tid: "blk_1",
							Defs: []ir.Def{
								{
									Tid:     "def_1",
									Kind:    ir.DefLoad,
									Var:     &ir.Variable{Name: "RAX", Size: 8},
									Address: &ir.Expression{Kind: ir.ExprVar, Var: &ir.Variable{Name: "RSP"}, Offset: 24},
								},
							},
						},
					},
				},
			},
		},
	}

	cs := ctx.GenerateConstraints(proj)
	if cs.Len() != 1 {
		t.Fatalf("expected one load constraint, got %d", cs.Len())
	}
	c := cs.Constraints()[0]
	field := c.Left.Path[0]
	if field.Kind != typevar.KindField {
		t.Fatalf("expected a field label, got %v", field)
	}
	if field.Offset != 8 {
		t.Errorf("expected the normalized offset 24-16=8, got raw-derived %d", field.Offset)
	}
	if field.Size != 64 {
		t.Errorf("expected a bit size of 64 for an 8-byte load, got %d", field.Size)
	}
}

func TestHandleStoreEmitsFieldStoreConstraint(t *testing.T) {
	ctx, _ := newTestContext()
	proj := &ir.Project{
		Program: ir.Program{
			Subs: []ir.Sub{
				{
					Tid: "sub_1",
					Blocks: []ir.Blk{
						{
							Tid: "blk_1",
							Defs: []ir.Def{
								{
									Tid:     "def_1",
									Kind:    ir.DefStore,
									Address: &ir.Expression{Kind: ir.ExprVar, Var: &ir.Variable{Name: "RSP"}, Offset: 8},
									Value:   &ir.Expression{Kind: ir.ExprVar, Var: &ir.Variable{Name: "RAX", Size: 8}},
								},
							},
						},
					},
				},
			},
		},
	}

	cs := ctx.GenerateConstraints(proj)
	if cs.Len() != 1 {
		t.Fatalf("expected one store constraint, got %d", cs.Len())
	}
	c := cs.Constraints()[0]
	if len(c.Right.Path) != 2 || c.Right.Path[1].Kind != typevar.KindStore {
		t.Errorf("expected right side to end in a store label, got %v", c.Right.Path)
	}
}

func TestHandleCallRelatesActualsToFormals(t *testing.T) {
	vm := typevar.NewVariableManager("τ")
	locators := ircontext.NewFlatSubprocedureLocators([]ir.ExternSymbol{{Tid: "ext_1", Name: "malloc"}}, vm)
	nodeCtx := NodeContext{
		Registers:    ircontext.NewFlatRegisterMapping(),
		PointsTo:     ircontext.NewFlatPointsToMapping("RSP", 0, nil),
		Subprocedure: locators,
	}
	ctx := New(nodeCtx, vm)

	proj := &ir.Project{
		Program: ir.Program{
			ExternSymbols: []ir.ExternSymbol{{Tid: "ext_1", Name: "malloc"}},
			Subs: []ir.Sub{
				{
					Tid: "sub_1",
					Blocks: []ir.Blk{
						{
							Tid: "blk_1",
							Defs: []ir.Def{
								{
									Tid:  "def_1",
									Kind: ir.DefCall,
									Call: &ir.CallSite{
										Callee:  "malloc",
										Args:    []ir.Expression{{Kind: ir.ExprVar, Var: &ir.Variable{Name: "RDI"}}},
										Returns: []ir.Variable{{Name: "RAX"}},
									},
								},
							},
						},
					},
				},
			},
		},
	}

	cs := ctx.GenerateConstraints(proj)
	if cs.Len() != 2 {
		t.Fatalf("expected two constraints (one In, one Out), got %d: %s", cs.Len(), cs)
	}

	var sawIn, sawOut bool
	for _, c := range cs.Constraints() {
		if len(c.Right.Path) == 1 && c.Right.Path[0].Kind == typevar.KindIn && c.Right.Base.Name == "malloc" {
			sawIn = true
		}
		if len(c.Left.Path) == 1 && c.Left.Path[0].Kind == typevar.KindOut && c.Left.Base.Name == "malloc" {
			sawOut = true
		}
	}
	if !sawIn {
		t.Error("expected a constraint targeting malloc.in_0")
	}
	if !sawOut {
		t.Error("expected a constraint sourced from malloc.out_0")
	}
}

func TestHandleCallUnresolvedCalleeEmitsNothing(t *testing.T) {
	ctx, _ := newTestContext()
	proj := &ir.Project{
		Program: ir.Program{
			Subs: []ir.Sub{
				{
					Tid: "sub_1",
					Blocks: []ir.Blk{
						{
							Tid: "blk_1",
							Defs: []ir.Def{
								{
									Tid:  "def_1",
									Kind: ir.DefCall,
									Call: &ir.CallSite{Callee: "unknown_fn"},
								},
							},
						},
					},
				},
			},
		},
	}

	cs := ctx.GenerateConstraints(proj)
	if !cs.IsEmpty() {
		t.Errorf("expected no constraints for unresolved callee, got %s", cs)
	}
}
