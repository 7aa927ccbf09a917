package pipeline

import (
	"errors"
	"regexp"
	"sort"

	"github.com/luishsr/binary-type-inference/internal/genconstraints"
	"github.com/luishsr/binary-type-inference/internal/lowering"
	"github.com/luishsr/binary-type-inference/internal/sketch"
	"github.com/luishsr/binary-type-inference/internal/solver"
	"github.com/luishsr/binary-type-inference/internal/typevar"
)

var errNoProject = errors.New("no IR project to generate constraints from")

// GenerateProcessor walks ctx.Project and fills in ctx.Constraints.
type GenerateProcessor struct {
	// Prefix names the fresh type variables this run mints (e.g. "tv"),
	// keeping them distinguishable from a project's own named TVs.
	Prefix string
}

func (p GenerateProcessor) Process(ctx *PipelineContext) *PipelineContext {
	if ctx.Project == nil {
		ctx.Errs = append(ctx.Errs, errNoProject)
		return ctx
	}
	vm := typevar.NewVariableManager(p.Prefix)
	gen := genconstraints.New(ctx.NodeContext, vm)
	ctx.Constraints = gen.GenerateConstraints(ctx.Project)
	return ctx
}

// SolveProcessor saturates and reduces ctx.Constraints, per
// ctx.Interesting.
type SolveProcessor struct{}

func (SolveProcessor) Process(ctx *PipelineContext) *PipelineContext {
	pattern, err := regexp.Compile(ctx.Interesting)
	if err != nil {
		ctx.Errs = append(ctx.Errs, err)
		return ctx
	}
	rules := solver.NewRuleContext(pattern)

	reduced, graph, err := solver.Solve(ctx.Constraints, rules)
	if err != nil {
		ctx.Errs = append(ctx.Errs, err)
		return ctx
	}
	ctx.Reduced = reduced
	ctx.Graph = graph
	return ctx
}

// SketchProcessor builds one sketch per interesting type variable
// appearing in ctx.Reduced.
type SketchProcessor struct {
	Lattice sketch.Lattice
}

func (p SketchProcessor) Process(ctx *PipelineContext) *PipelineContext {
	lattice := p.Lattice
	if lattice == nil {
		lattice = sketch.NewCPrimitiveLattice()
	}
	roots := interestingRoots(ctx.Reduced)
	ctx.Sketches = sketch.BuildAll(roots, ctx.Reduced, lattice)
	return ctx
}

// interestingRoots collects every distinct base type variable
// appearing in a reduced constraint set. Reduce already restricts the
// set to endpoints both matching the interesting pattern, so every
// base encountered here is itself a valid sketch root.
func interestingRoots(cs typevar.ConstraintSet) []typevar.TypeVariable {
	seen := make(map[string]typevar.TypeVariable)
	for _, c := range cs.Constraints() {
		seen[c.Left.Base.Name] = c.Left.Base
		seen[c.Right.Base.Name] = c.Right.Base
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]typevar.TypeVariable, len(names))
	for i, name := range names {
		out[i] = seen[name]
	}
	return out
}

// LowerProcessor converts ctx.Sketches into a concrete CType mapping.
type LowerProcessor struct {
	Lattice sketch.Lattice
}

func (p LowerProcessor) Process(ctx *PipelineContext) *PipelineContext {
	lattice := p.Lattice
	if lattice == nil {
		lattice = sketch.NewCPrimitiveLattice()
	}
	loweringCtx := lowering.NewContext(ctx.Sketches, ctx.OutParams, lattice)
	ctx.Types, ctx.CTypes = loweringCtx.Lower()
	return ctx
}
