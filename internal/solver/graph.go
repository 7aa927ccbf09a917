package solver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/luishsr/binary-type-inference/internal/typevar"
)

// Direction marks which side of a derivation step a node represents:
// L ("left"/start) or R ("right"/end), per spec.md §3's FSA graph.
type Direction int

const (
	Left Direction = iota
	Right
)

func (d Direction) String() string {
	if d == Right {
		return "R"
	}
	return "L"
}

// EdgeKind is the stack action an edge performs.
type EdgeKind int

const (
	EdgeEpsilon EdgeKind = iota
	EdgePush
	EdgePop
)

func (k EdgeKind) String() string {
	switch k {
	case EdgePush:
		return "push"
	case EdgePop:
		return "pop"
	default:
		return "eps"
	}
}

// node is one (DTV, direction) pair.
type node struct {
	dtv typevar.DerivedTypeVar
	dir Direction
}

func (n node) key() string { return n.dtv.String() + "#" + n.dir.String() }

// edge is one stack-action transition between two arena-indexed nodes.
type edge struct {
	src, dst int
	kind     EdgeKind
	label    typevar.FieldLabel
}

// Graph is the arena-backed labeled multigraph spec.md §9 requires: an
// integer-indexed node/edge arena rather than owning pointers, so the
// graph stays cheap to build and to render even though it is cyclic.
type Graph struct {
	nodes []node
	edges []edge
	index map[string]int
}

func newGraph() *Graph {
	return &Graph{index: make(map[string]int)}
}

func (g *Graph) nodeIndex(d typevar.DerivedTypeVar, dir Direction) int {
	n := node{dtv: d, dir: dir}
	key := n.key()
	if idx, ok := g.index[key]; ok {
		return idx
	}
	idx := len(g.nodes)
	g.nodes = append(g.nodes, n)
	g.index[key] = idx
	return idx
}

func (g *Graph) addEdge(src, dst int, kind EdgeKind, label typevar.FieldLabel) {
	for _, e := range g.edges {
		if e.src == src && e.dst == dst && e.kind == kind && e.label == label {
			return
		}
	}
	g.edges = append(g.edges, edge{src: src, dst: dst, kind: kind, label: label})
}

// BuildGraph renders a constraint set as the literal node/edge
// structure spec.md §4.D.1 describes: two nodes per DTV prefix, an
// ε-edge per constraint, and Push/Pop edges between consecutive
// prefixes of every DTV's path (L-projection pushes on covariant
// labels and pops on contravariant ones; R-projection inverts both).
// This is built for the debug reachability dump (§6 outputs); the
// solved result itself comes from Saturate/Reduce, not from a walk over
// this structure (see closure.go's doc comment for why).
func BuildGraph(cs typevar.ConstraintSet) *Graph {
	g := newGraph()

	addProjection := func(d typevar.DerivedTypeVar, dir Direction, invert bool) {
		for i := 0; i < len(d.Path); i++ {
			prefix := typevar.DerivedTypeVar{Base: d.Base, Path: d.Path[:i]}
			next := typevar.DerivedTypeVar{Base: d.Base, Path: d.Path[:i+1]}
			label := d.Path[i]
			kind := EdgePush
			if label.Variance() == typevar.Contravariant {
				kind = EdgePop
			}
			if invert {
				if kind == EdgePush {
					kind = EdgePop
				} else {
					kind = EdgePush
				}
			}
			src := g.nodeIndex(prefix, dir)
			dst := g.nodeIndex(next, dir)
			g.addEdge(src, dst, kind, label)
		}
	}

	for _, c := range cs.Constraints() {
		leftR := g.nodeIndex(c.Left, Right)
		rightL := g.nodeIndex(c.Right, Left)
		g.addEdge(leftR, rightL, EdgeEpsilon, typevar.FieldLabel{})

		addProjection(c.Left, Left, false)
		addProjection(c.Left, Right, true)
		addProjection(c.Right, Left, false)
		addProjection(c.Right, Right, true)
	}

	return g
}

// DOT renders the graph in Graphviz's dot language for diagnostic
// dumping (spec.md §6 "reachability graph in a standard graph
// description format").
func (g *Graph) DOT(name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph %s {\n", name)

	type labeled struct {
		idx   int
		label string
	}
	ordered := make([]labeled, len(g.nodes))
	for i, n := range g.nodes {
		ordered[i] = labeled{idx: i, label: fmt.Sprintf("%s [%s]", n.dtv.String(), n.dir)}
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].label < ordered[j].label })
	for _, n := range ordered {
		fmt.Fprintf(&b, "  n%d [label=%q];\n", n.idx, n.label)
	}

	edgeLines := make([]string, len(g.edges))
	for i, e := range g.edges {
		lbl := e.kind.String()
		if e.kind != EdgeEpsilon {
			lbl = fmt.Sprintf("%s(%s)", lbl, e.label.String())
		}
		edgeLines[i] = fmt.Sprintf("  n%d -> n%d [label=%q];\n", e.src, e.dst, lbl)
	}
	sort.Strings(edgeLines)
	for _, line := range edgeLines {
		b.WriteString(line)
	}

	b.WriteString("}\n")
	return b.String()
}

// NodeCount and EdgeCount support tests asserting the arena actually
// grows as constraints are added.
func (g *Graph) NodeCount() int { return len(g.nodes) }
func (g *Graph) EdgeCount() int { return len(g.edges) }
