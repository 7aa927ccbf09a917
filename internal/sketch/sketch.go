package sketch

import (
	"fmt"
	"sort"
	"strings"

	"github.com/luishsr/binary-type-inference/internal/typevar"
)

// LatticeBounds is the (lower, upper) pair spec.md §3/§4.E attaches to
// every sketch node. Conflict is set when tightening would violate
// lower ⊑ upper — an Inconsistency (spec.md §7), recorded rather than
// treated as fatal.
type LatticeBounds struct {
	Lower    string
	Upper    string
	Conflict bool
}

// Edge connects one path key to another via a field label.
type Edge struct {
	To    string
	Label typevar.FieldLabel
}

// SketchGraph is the rooted automaton for one interesting type
// variable. Nodes are keyed by the canonical string of the path from
// the root (the empty string for the root itself); two constraints
// that reach the identical path are automatically merged by sharing
// that key, which is this implementation's rendering of "hash-consed
// by suffix" for the common case of identical full paths reaching the
// same position — a full right-language-equivalence minimization
// across distinct paths is not attempted.
type SketchGraph struct {
	Root    typevar.TypeVariable
	Lattice Lattice

	bounds map[string]*LatticeBounds
	edges  map[string][]Edge
	order  []string // insertion order, for deterministic iteration
}

func pathKey(labels []typevar.FieldLabel) string {
	if len(labels) == 0 {
		return ""
	}
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = l.String()
	}
	return strings.Join(parts, ".")
}

func newSketchGraph(root typevar.TypeVariable, lattice Lattice) *SketchGraph {
	s := &SketchGraph{
		Root:    root,
		Lattice: lattice,
		bounds:  make(map[string]*LatticeBounds),
		edges:   make(map[string][]Edge),
	}
	s.ensureNode(nil)
	return s
}

// ensureNode creates (if absent) every prefix node of path, wiring
// edges between consecutive prefixes, and returns the full path's key.
func (s *SketchGraph) ensureNode(path []typevar.FieldLabel) string {
	key := pathKey(path)
	if _, ok := s.bounds[key]; ok {
		return key
	}

	parentPath := path
	if len(path) > 0 {
		parentPath = path[:len(path)-1]
		parentKey := s.ensureNode(parentPath)
		label := path[len(path)-1]
		s.edges[parentKey] = append(s.edges[parentKey], Edge{To: key, Label: label})
	}

	s.bounds[key] = &LatticeBounds{Lower: s.Lattice.Bottom(), Upper: s.Lattice.Top()}
	s.order = append(s.order, key)
	return key
}

// Bounds returns the lattice bounds at the node reached by path
// (nil path or empty slice denotes the root).
func (s *SketchGraph) Bounds(path []typevar.FieldLabel) (LatticeBounds, bool) {
	return s.BoundsByKey(pathKey(path))
}

// BoundsByKey returns the lattice bounds at the node with the given
// path key, as returned by Paths() or an Edge's To field.
func (s *SketchGraph) BoundsByKey(key string) (LatticeBounds, bool) {
	b, ok := s.bounds[key]
	if !ok {
		return LatticeBounds{}, false
	}
	return *b, true
}

// Paths returns every node's path-key in deterministic insertion order.
func (s *SketchGraph) Paths() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Edges returns the outgoing edges from the node at the given path key,
// sorted by label for deterministic iteration.
func (s *SketchGraph) Edges(key string) []Edge {
	out := make([]Edge, len(s.edges[key]))
	copy(out, s.edges[key])
	sort.Slice(out, func(i, j int) bool { return out[i].Label.String() < out[j].Label.String() })
	return out
}

// DOT renders the sketch as a Graphviz dot graph, one node per path key
// labeled with its lattice bounds, for debugging a single interesting
// TV's inferred shape (spec.md §6 "reachability graph in a standard
// graph description format"), following the same node/edge rendering
// conventions as internal/solver.Graph.DOT.
func (s *SketchGraph) DOT(name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph %s {\n", name)

	for _, key := range s.order {
		bounds := s.bounds[key]
		label := key
		if label == "" {
			label = s.Root.Name
		}
		nodeLabel := fmt.Sprintf("%s [%s,%s]", label, bounds.Lower, bounds.Upper)
		if bounds.Conflict {
			nodeLabel += " !"
		}
		fmt.Fprintf(&b, "  %q [label=%q];\n", key, nodeLabel)
	}

	var edgeLines []string
	for _, key := range s.order {
		for _, e := range s.Edges(key) {
			edgeLines = append(edgeLines, fmt.Sprintf("  %q -> %q [label=%q];\n", key, e.To, e.Label.String()))
		}
	}
	sort.Strings(edgeLines)
	for _, line := range edgeLines {
		b.WriteString(line)
	}

	b.WriteString("}\n")
	return b.String()
}

func (s *SketchGraph) tightenUpper(path []typevar.FieldLabel, primitive string) {
	key := s.ensureNode(path)
	b := s.bounds[key]
	b.Upper = s.Lattice.Meet(b.Upper, primitive)
	if !s.Lattice.LessEq(b.Lower, b.Upper) {
		b.Conflict = true
	}
}

func (s *SketchGraph) tightenLower(path []typevar.FieldLabel, primitive string) {
	key := s.ensureNode(path)
	b := s.bounds[key]
	b.Lower = s.Lattice.Join(b.Lower, primitive)
	if !s.Lattice.LessEq(b.Lower, b.Upper) {
		b.Conflict = true
	}
}

// Build constructs the sketch for root from every reduced constraint
// touching it, per spec.md §4.E.
func Build(root typevar.TypeVariable, reduced typevar.ConstraintSet, lattice Lattice) *SketchGraph {
	s := newSketchGraph(root, lattice)

	for _, c := range reduced.Constraints() {
		leftIsRoot := c.Left.Base == root
		rightIsRoot := c.Right.Base == root
		if !leftIsRoot && !rightIsRoot {
			continue
		}

		if leftIsRoot {
			s.ensureNode(c.Left.Path)
		}
		if rightIsRoot {
			s.ensureNode(c.Right.Path)
		}

		// A recognized primitive flowing in (it is the LHS, the
		// position is the RHS) tightens the position's lower bound.
		if rightIsRoot && lattice.Contains(c.Left.Base.Name) && len(c.Left.Path) == 0 {
			s.tightenLower(c.Right.Path, lattice.Name(c.Left.Base.Name))
		}
		// A recognized primitive flowing out (the position is the
		// LHS, the primitive is the RHS) tightens the position's
		// upper bound.
		if leftIsRoot && lattice.Contains(c.Right.Base.Name) && len(c.Right.Path) == 0 {
			s.tightenUpper(c.Left.Path, lattice.Name(c.Right.Base.Name))
		}
	}

	return s
}

// BuildAll constructs one sketch per interesting type variable named in
// roots, processed in sorted order for determinism (spec.md §5's
// "sort before emit" discipline — independent per-TV construction could
// be parallelized by a caller without affecting this ordering).
func BuildAll(roots []typevar.TypeVariable, reduced typevar.ConstraintSet, lattice Lattice) map[string]*SketchGraph {
	sorted := make([]typevar.TypeVariable, len(roots))
	copy(sorted, roots)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	out := make(map[string]*SketchGraph, len(sorted))
	for _, r := range sorted {
		out[r.Name] = Build(r, reduced, lattice)
	}
	return out
}
