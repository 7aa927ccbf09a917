package lowering

import (
	"testing"

	"github.com/luishsr/binary-type-inference/internal/sketch"
	"github.com/luishsr/binary-type-inference/internal/typevar"
)

func buildSketch(t *testing.T, root string, cs typevar.ConstraintSet) *sketch.SketchGraph {
	t.Helper()
	rootTV := typevar.TypeVariable{Name: root}
	return sketch.Build(rootTV, cs, sketch.NewCPrimitiveLattice())
}

// TestScheduleStructuresTwoField implements spec.md §8 scenario S2.
func TestScheduleStructuresTwoField(t *testing.T) {
	fields := []Field{
		{ByteOffset: 0, BitSize: 32, Type: 10},
		{ByteOffset: 4, BitSize: 32, Type: 11},
	}
	out := scheduleStructures(fields)
	if len(out) != 1 {
		t.Fatalf("expected exactly one structure, got %d", len(out))
	}
	if len(out[0].Fields) != 2 {
		t.Fatalf("expected 2 fields in the single structure, got %d", len(out[0].Fields))
	}
}

// TestScheduleStructuresOverlappingSplit implements spec.md §8 scenario S3.
func TestScheduleStructuresOverlappingSplit(t *testing.T) {
	fields := []Field{
		{ByteOffset: 0, BitSize: 64, Type: 10},
		{ByteOffset: 4, BitSize: 32, Type: 11},
	}
	out := scheduleStructures(fields)
	if len(out) != 2 {
		t.Fatalf("expected fields to split into 2 structures, got %d", len(out))
	}
	if len(out[0].Fields) != 1 || len(out[1].Fields) != 1 {
		t.Errorf("expected each structure to hold exactly one field, got %+v", out)
	}
}

// TestScheduleStructuresContainmentDrop implements spec.md §8 scenario S4.
func TestScheduleStructuresContainmentDrop(t *testing.T) {
	fields := []Field{
		{ByteOffset: 0, BitSize: 64, Type: 10},
		{ByteOffset: 2, BitSize: 16, Type: 11},
	}
	out := scheduleStructures(fields)
	if len(out) != 1 {
		t.Fatalf("expected the contained field to be dropped, leaving 1 structure, got %d", len(out))
	}
	if len(out[0].Fields) != 1 || out[0].Fields[0].ByteOffset != 0 {
		t.Errorf("expected the surviving structure to hold only the (0,64) field, got %+v", out[0].Fields)
	}
}

// TestBuildFunctionTypesMultiReturnPad implements spec.md §8 scenario S5.
func TestBuildFunctionTypesMultiReturnPad(t *testing.T) {
	sub := typevar.NewDerivedTypeVar(typevar.TypeVariable{Name: "sub"})
	t0 := typevar.NewDerivedTypeVar(typevar.TypeVariable{Name: "t0"})
	t1 := typevar.NewDerivedTypeVar(typevar.TypeVariable{Name: "t1"})

	cs := typevar.NewConstraintSet(
		typevar.NewSubtypeConstraint(sub.WithLabel(typevar.Out(0)), t0),
		typevar.NewSubtypeConstraint(sub.WithLabel(typevar.Out(1)), t1),
	)

	s := buildSketch(t, "sub", cs)
	ctx := NewContext(
		map[string]*sketch.SketchGraph{"sub": s},
		map[string][]OutParamLocation{"sub": {{BitSize: 32}, {BitSize: 32}}},
		sketch.NewCPrimitiveLattice(),
	)

	types, ephemeral := ctx.Lower()
	rootID, ok := types[NodeRef{Root: "sub", Path: ""}]
	if !ok {
		t.Fatal("expected a type for the sub root node")
	}

	root := ephemeral[rootID]
	if root.Kind != KindFunction {
		t.Fatalf("expected the root node to lower to a Function, got kind %v", root.Kind)
	}
	if root.ReturnType == nil {
		t.Fatal("expected a return type for a 2-out-param function")
	}

	ret := ephemeral[*root.ReturnType]
	if ret.Kind != KindStructure {
		t.Fatalf("expected the return type to be a Structure, got kind %v", ret.Kind)
	}
	if len(ret.Fields) != 2 {
		t.Fatalf("expected 2 padded return fields, got %d", len(ret.Fields))
	}
	if ret.Fields[0].ByteOffset != 0 || ret.Fields[1].ByteOffset != 4 {
		t.Errorf("expected return fields at offsets 0 and 4, got %+v", ret.Fields)
	}
}

// TestBuildTypeTerminalPrimitive covers a leaf node with no outgoing
// edges: it must lower directly to a cached Primitive named after its
// tightened upper bound.
func TestBuildTypeTerminalPrimitive(t *testing.T) {
	x := typevar.NewDerivedTypeVar(typevar.TypeVariable{Name: "x"})
	int32TV := typevar.NewDerivedTypeVar(typevar.TypeVariable{Name: "int32"})
	cs := typevar.NewConstraintSet(typevar.NewSubtypeConstraint(x, int32TV))

	s := buildSketch(t, "x", cs)
	ctx := NewContext(map[string]*sketch.SketchGraph{"x": s}, nil, sketch.NewCPrimitiveLattice())

	types, ephemeral := ctx.Lower()
	id := types[NodeRef{Root: "x", Path: ""}]
	ct := ephemeral[id]
	if ct.Kind != KindPrimitive {
		t.Fatalf("expected a Primitive for a leaf node, got kind %v", ct.Kind)
	}
	if ct.Primitive != "int32" {
		t.Errorf("expected the tightened upper bound int32, got %s", ct.Primitive)
	}
}

// TestBuildTypePointerFromLoadEdge covers a node whose only outgoing
// edge is a Load, which must lower to a Pointer.
func TestBuildTypePointerFromLoadEdge(t *testing.T) {
	x := typevar.NewDerivedTypeVar(typevar.TypeVariable{Name: "x"})
	y := typevar.NewDerivedTypeVar(typevar.TypeVariable{Name: "y"})
	xLoad := x.WithLabel(typevar.Load())

	cs := typevar.NewConstraintSet(typevar.NewSubtypeConstraint(xLoad, y))

	s := buildSketch(t, "x", cs)
	ctx := NewContext(map[string]*sketch.SketchGraph{"x": s}, nil, sketch.NewCPrimitiveLattice())

	types, ephemeral := ctx.Lower()
	id := types[NodeRef{Root: "x", Path: ""}]
	ct := ephemeral[id]
	if ct.Kind != KindPointer {
		t.Fatalf("expected a Pointer for a node with only a Load edge, got kind %v", ct.Kind)
	}
	target := ephemeral[ct.PointerTarget]
	if target.Kind != KindAlias {
		t.Fatalf("expected the pointer target to be an Alias, got kind %v", target.Kind)
	}
	if target.AliasTarget.Root != "x" {
		t.Errorf("expected the alias to reference the x sketch, got %s", target.AliasTarget.Root)
	}
}

// TestLowerIsDeterministic lowers the same sketch in two fresh contexts
// and checks both allocate identical TypeIds.
func TestLowerIsDeterministic(t *testing.T) {
	x := typevar.NewDerivedTypeVar(typevar.TypeVariable{Name: "x"})
	int8TV := typevar.NewDerivedTypeVar(typevar.TypeVariable{Name: "int8"})
	cs := typevar.NewConstraintSet(typevar.NewSubtypeConstraint(x, int8TV))
	s := buildSketch(t, "x", cs)

	sketches := map[string]*sketch.SketchGraph{"x": s}
	lattice := sketch.NewCPrimitiveLattice()

	types1, _ := NewContext(sketches, nil, lattice).Lower()
	types2, _ := NewContext(sketches, nil, lattice).Lower()

	if types1[NodeRef{Root: "x", Path: ""}] != types2[NodeRef{Root: "x", Path: ""}] {
		t.Error("expected Lower to allocate identical TypeIds across repeated runs on identical input")
	}
}

// TestBuildTypeSingleCandidateNeverWrapsInUnion covers spec.md §8
// property 7: a node with exactly one structural candidate (here, a
// single Field edge at offset 0, so buildAliasTypes is the only
// candidate producer) must lower directly to that candidate, never to
// a singleton Union.
func TestBuildTypeSingleCandidateNeverWrapsInUnion(t *testing.T) {
	x := typevar.NewDerivedTypeVar(typevar.TypeVariable{Name: "x"})
	y := typevar.NewDerivedTypeVar(typevar.TypeVariable{Name: "y"})
	xField0 := x.WithLabel(typevar.Field(0, 32))

	cs := typevar.NewConstraintSet(typevar.NewSubtypeConstraint(xField0, y))

	s := buildSketch(t, "x", cs)
	ctx := NewContext(map[string]*sketch.SketchGraph{"x": s}, nil, sketch.NewCPrimitiveLattice())

	types, ephemeral := ctx.Lower()
	id := types[NodeRef{Root: "x", Path: ""}]
	if ct := ephemeral[id]; ct.Kind == KindUnion {
		t.Fatalf("expected the sole candidate to be returned directly, not wrapped in a singleton Union: %+v", ct)
	}
}

// TestBuildTypeNeverEmitsBothAliasAndStructure covers spec.md §8
// property 8: buildStructureTypes and buildAliasTypes are gated by the
// same hasNonZeroFields check in opposite senses, so a node can never
// produce both an Alias and a Structure candidate simultaneously.
func TestBuildTypeNeverEmitsBothAliasAndStructure(t *testing.T) {
	x := typevar.NewDerivedTypeVar(typevar.TypeVariable{Name: "x"})
	y := typevar.NewDerivedTypeVar(typevar.TypeVariable{Name: "y"})
	z := typevar.NewDerivedTypeVar(typevar.TypeVariable{Name: "z"})

	cs := typevar.NewConstraintSet(
		typevar.NewSubtypeConstraint(x.WithLabel(typevar.Field(0, 32)), y),
		typevar.NewSubtypeConstraint(x.WithLabel(typevar.Field(4, 32)), z),
	)

	s := buildSketch(t, "x", cs)
	ctx := NewContext(map[string]*sketch.SketchGraph{"x": s}, nil, sketch.NewCPrimitiveLattice())

	types, ephemeral := ctx.Lower()
	id := types[NodeRef{Root: "x", Path: ""}]
	seenStructure, seenAlias := false, false
	switch ct := ephemeral[id]; ct.Kind {
	case KindStructure:
		seenStructure = true
	case KindAlias:
		seenAlias = true
	case KindUnion:
		for _, memberID := range ct.Unions {
			switch ephemeral[memberID].Kind {
			case KindStructure:
				seenStructure = true
			case KindAlias:
				seenAlias = true
			}
		}
	}
	if seenStructure && seenAlias {
		t.Fatal("expected a node to never expose both a Structure and an Alias candidate")
	}
}
