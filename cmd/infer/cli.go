package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/luishsr/binary-type-inference/internal/config"
	"github.com/luishsr/binary-type-inference/internal/ir"
	"github.com/luishsr/binary-type-inference/internal/lowering"
	"github.com/luishsr/binary-type-inference/internal/pipeline"
	"github.com/luishsr/binary-type-inference/internal/typevar"
)

// cliFlags holds the options that follow the positional arguments.
// Parsed by hand, following the teacher's cmd/funxy/main.go convention
// of scanning os.Args directly rather than reaching for the flag
// package.
type cliFlags struct {
	configPath string
	debugDir   string
	outPath    string
}

// parseArgs splits raw (os.Args[1:]) into its positional arguments and
// its "-name value" flags.
func parseArgs(raw []string) ([]string, cliFlags) {
	var positional []string
	var flags cliFlags

	for i := 0; i < len(raw); i++ {
		arg := raw[i]
		if !strings.HasPrefix(arg, "-") {
			positional = append(positional, arg)
			continue
		}
		if i+1 >= len(raw) {
			continue
		}
		value := raw[i+1]
		i++
		switch arg {
		case "-config":
			flags.configPath = value
		case "-debug-dir":
			flags.debugDir = value
		case "-out":
			flags.outPath = value
		}
	}
	return positional, flags
}

// newSubprocedureVariableManager supplies the type variables backing
// both a project's own subprocedures and its extern symbols. Those are
// obtained through Named and carry the symbol's own name; the manager's
// fresh-variable prefix ("sub") differs from GenerateProcessor's.
func newSubprocedureVariableManager() *typevar.VariableManager {
	return typevar.NewVariableManager("sub")
}

// inferOutParams derives the out-parameter locations lowering needs to
// build multi-value return structures (spec.md §4.F's
// buildReturnTypeStructure). The JSON IR this command reads
// (internal/ir.Project) carries no explicit "this is an out parameter"
// declaration, so until that's added to the IR shape this always
// reports none; a caller wanting multi-return lowering today supplies
// it directly against the lowering package, bypassing this CLI.
func inferOutParams(project ir.Project, cfg *config.Config) map[string][]lowering.OutParamLocation {
	return make(map[string][]lowering.OutParamLocation)
}

// printConstraints prints one constraint per line under a heading,
// optionally colorizing the heading when writing to a terminal.
func printConstraints(heading string, constraints []typevar.SubtypeConstraint, colorize bool) {
	if colorize {
		fmt.Printf("\x1b[1m%s\x1b[0m (%d):\n", heading, len(constraints))
	} else {
		fmt.Printf("%s (%d):\n", heading, len(constraints))
	}
	for _, c := range constraints {
		fmt.Println(c.String())
	}
}

// sanitizeGraphName turns a type variable name into a token safe to use
// as a Graphviz graph name.
func sanitizeGraphName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "sketch"
	}
	return b.String()
}

// writeDebugFiles dumps the solved FSA and every sketch's DOT rendering
// under dir, namespaced by runID so concurrent runs never clobber each
// other's debug output.
func writeDebugFiles(dir, runID string, ctx *pipeline.PipelineContext) error {
	runDir := filepath.Join(dir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}

	if ctx.Graph != nil {
		if err := os.WriteFile(filepath.Join(runDir, "constraints.dot"), []byte(ctx.Graph.DOT("constraints")), 0o644); err != nil {
			return err
		}
	}

	for name, s := range ctx.Sketches {
		fname := filepath.Join(runDir, sanitizeGraphName(name)+".dot")
		if err := os.WriteFile(fname, []byte(s.DOT(sanitizeGraphName(name))), 0o644); err != nil {
			return err
		}
	}
	return nil
}
