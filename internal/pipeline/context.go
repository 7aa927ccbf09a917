// Package pipeline chains the four inference stages — constraint
// generation, solving, sketch construction, and type lowering — into
// one ordered run, adapting the teacher's Pipeline/Processor shape
// (internal/pipeline/pipeline.go) to this domain's PipelineContext.
package pipeline

import (
	"github.com/luishsr/binary-type-inference/internal/genconstraints"
	"github.com/luishsr/binary-type-inference/internal/ir"
	"github.com/luishsr/binary-type-inference/internal/lowering"
	"github.com/luishsr/binary-type-inference/internal/sketch"
	"github.com/luishsr/binary-type-inference/internal/solver"
	"github.com/luishsr/binary-type-inference/internal/typevar"
)

// Processor is one stage of the pipeline; Run feeds each processor's
// output to the next.
type Processor interface {
	Process(ctx *PipelineContext) *PipelineContext
}

// Pipeline runs an ordered sequence of Processors over one
// PipelineContext.
type Pipeline struct {
	processors []Processor
}

// New builds a Pipeline from the given stages, run in order.
func New(processors ...Processor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Run feeds ctx through every stage in order. A stage that appends to
// ctx.Errs is not fatal to the run: the later stages still run over
// whatever the earlier ones left in ctx, and cmd/infer prints the generated and
// reduced constraint sets (and writes debug DOT output) from whatever
// ctx holds at the end, errors and all, so a caller sees partial
// results instead of nothing.
func (p *Pipeline) Run(initialCtx *PipelineContext) *PipelineContext {
	ctx := initialCtx
	for _, processor := range p.processors {
		ctx = processor.Process(ctx)
	}
	return ctx
}

// PipelineContext accumulates every stage's output, plus any errors
// encountered along the way — later stages that depend on a failed
// stage's output simply find it empty and produce nothing, rather than
// aborting the run (diagnostics from every reachable stage still
// surface at the end, per Run's doc comment above).
type PipelineContext struct {
	Project     *ir.Project
	NodeContext genconstraints.NodeContext
	Interesting string // the interesting-variable regex pattern, compiled by SolveProcessor
	OutParams   map[string][]lowering.OutParamLocation

	Constraints typevar.ConstraintSet
	Reduced     typevar.ConstraintSet
	Graph       *solver.Graph

	Sketches map[string]*sketch.SketchGraph

	Types  map[lowering.NodeRef]lowering.TypeId
	CTypes map[lowering.TypeId]lowering.CType

	Errs []error
}

// NewPipelineContext seeds a run over project using nodeCtx's register
// / points-to / subprocedure mappings and the given interesting-TV
// pattern.
func NewPipelineContext(project *ir.Project, nodeCtx genconstraints.NodeContext, interestingPattern string) *PipelineContext {
	return &PipelineContext{
		Project:     project,
		NodeContext: nodeCtx,
		Interesting: interestingPattern,
		OutParams:   make(map[string][]lowering.OutParamLocation),
	}
}
