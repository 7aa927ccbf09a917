// Command infer reads a decompiled-binary IR (as JSON) alongside its
// raw bytes and runs the full constraint-generation, FSA-solving,
// sketch-construction, and type-lowering pipeline over it, following
// the operation sequence original_source/src/bin/json_to_constraints.rs
// lays out: load IR, generate constraints, print, solve, print again,
// build sketches, lower, and optionally write the lowered types to
// disk.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"

	"github.com/luishsr/binary-type-inference/internal/config"
	"github.com/luishsr/binary-type-inference/internal/ctypes"
	"github.com/luishsr/binary-type-inference/internal/genconstraints"
	"github.com/luishsr/binary-type-inference/internal/ir"
	"github.com/luishsr/binary-type-inference/internal/ircontext"
	"github.com/luishsr/binary-type-inference/internal/pipeline"
	"github.com/luishsr/binary-type-inference/internal/runtimeimage"
	"github.com/luishsr/binary-type-inference/internal/sketch"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <input_bin> <input_json> [target_var] [-config path] [-debug-dir path] [-out path]\n", os.Args[0])
}

func main() {
	args, flags := parseArgs(os.Args[1:])
	if len(args) < 2 {
		usage()
		os.Exit(1)
	}

	runID := uuid.New().String()
	log.Printf("run %s: starting", runID)

	cfg := config.Default()
	if flags.configPath != "" {
		loaded, err := config.Load(flags.configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "loading config: %s\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	debugDir := flags.debugDir
	if debugDir == "" {
		debugDir = cfg.DebugDir
	}

	binBytes, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading %s: %s\n", args[0], err)
		os.Exit(1)
	}

	jsonBytes, err := os.ReadFile(args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading %s: %s\n", args[1], err)
		os.Exit(1)
	}

	var project ir.Project
	if err := json.Unmarshal(jsonBytes, &project); err != nil {
		fmt.Fprintf(os.Stderr, "parsing %s: %s\n", args[1], err)
		os.Exit(1)
	}
	if err := project.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}

	image := runtimeimage.New(binBytes, project.AddressBaseOffset)

	var targetVar string
	if len(args) >= 3 {
		targetVar = args[2]
	}

	subprocVM := newSubprocedureVariableManager()
	locators := ircontext.NewFlatSubprocedureLocators(project.Program.ExternSymbols, subprocVM)
	for _, sub := range project.Program.Subs {
		locators.Register(sub.Name, subprocVM.Named(sub.Name))
	}

	pointsTo := ircontext.NewFlatPointsToMapping(project.StackPointerReg, 0, log.Default())
	pointsTo.Image = image

	nodeCtx := genconstraints.NodeContext{
		Registers:    ircontext.NewFlatRegisterMapping(),
		PointsTo:     pointsTo,
		Subprocedure: locators,
	}

	ctx := pipeline.NewPipelineContext(&project, nodeCtx, cfg.InterestingVarPattern)
	ctx.OutParams = inferOutParams(project, cfg)

	p := pipeline.New(
		pipeline.GenerateProcessor{Prefix: "tv"},
		pipeline.SolveProcessor{},
		pipeline.SketchProcessor{Lattice: sketch.NewCPrimitiveLattice()},
		pipeline.LowerProcessor{Lattice: sketch.NewCPrimitiveLattice()},
	)
	ctx = p.Run(ctx)

	colorize := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	printConstraints("Generated constraints", ctx.Constraints.Constraints(), colorize)
	printConstraints("Simplified constraints", ctx.Reduced.Constraints(), colorize)

	if targetVar != "" {
		if s, ok := ctx.Sketches[targetVar]; ok {
			fmt.Println(s.DOT(sanitizeGraphName(targetVar)))
		} else {
			fmt.Fprintf(os.Stderr, "no sketch for %q (not an interesting type variable, or never constrained)\n", targetVar)
		}
	}

	if debugDir != "" {
		if err := writeDebugFiles(debugDir, runID, ctx); err != nil {
			fmt.Fprintf(os.Stderr, "writing debug files: %s\n", err)
		}
	}

	if len(ctx.Errs) != 0 {
		for _, e := range ctx.Errs {
			fmt.Fprintf(os.Stderr, "%s\n", e)
		}
		os.Exit(1)
	}

	if flags.outPath != "" {
		encoded, err := ctypes.Marshal(ctx.CTypes, ctx.Types)
		if err != nil {
			fmt.Fprintf(os.Stderr, "encoding lowered types: %s\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(flags.outPath, encoded, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "writing %s: %s\n", flags.outPath, err)
			os.Exit(1)
		}
	}

	log.Printf("run %s: done", runID)
}
