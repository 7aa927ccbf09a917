// Package lowering converts sketch graphs into concrete C-like types
// (spec.md §4.F), porting original_source's lowering::mod.rs
// LoweringContext almost function-for-function into Go idiom.
package lowering

import (
	"container/heap"
	"sort"

	"github.com/luishsr/binary-type-inference/internal/sketch"
	"github.com/luishsr/binary-type-inference/internal/typevar"
)

// TypeId is a monotonically increasing identifier allocated by a
// Context, shared across every sketch it lowers.
type TypeId int

// NodeRef names one node of one sketch: its root type variable plus the
// path-key within that sketch (the empty string for the root itself).
type NodeRef struct {
	Root string
	Path string
}

// Kind discriminates CType's algebraic variants (spec.md §3/§6).
type Kind int

const (
	KindPrimitive Kind = iota
	KindPointer
	KindAlias
	KindStructure
	KindUnion
	KindFunction
)

// Field is one member of a Structure, at ByteOffset with BitSize bits,
// typed Type.
type Field struct {
	ByteOffset int64
	BitSize    int64
	Type       TypeId
}

// Parameter is one positional Function parameter.
type Parameter struct {
	Index int
	Type  TypeId
}

// CType is the output type algebra. Exactly the fields relevant to Kind
// are populated.
type CType struct {
	Kind Kind

	Primitive string // KindPrimitive

	PointerTarget TypeId // KindPointer

	AliasTarget NodeRef // KindAlias, pre-finalization; resolved to a TypeId at protobuf-conversion time

	Fields []Field // KindStructure

	Unions []TypeId // KindUnion

	Params     []Parameter // KindFunction
	ReturnType *TypeId     // KindFunction; nil means no out-params
}

// OutParamLocation is one of a subprocedure's declared formal
// out-parameter slots, used only to pad a multi-return structure
// (spec.md §4.F "Function construction").
type OutParamLocation struct {
	BitSize int64
}

// Context is the lowering context: it owns TypeId allocation and the
// growing map from TypeId to CType, across every sketch it lowers.
type Context struct {
	sketches      map[string]*sketch.SketchGraph
	outParams     map[string][]OutParamLocation
	lattice       sketch.Lattice
	defaultBounds sketch.LatticeBounds

	ephemeral        map[TypeId]CType
	cachedPrimitives map[string]TypeId
	nextID           int
}

// NewContext builds a lowering context over every sketch in sketches.
// outParams maps a subprocedure's root TV name to its declared formal
// out-parameter locations (only consulted when padding a multi-return
// structure).
func NewContext(sketches map[string]*sketch.SketchGraph, outParams map[string][]OutParamLocation, lattice sketch.Lattice) *Context {
	return &Context{
		sketches:  sketches,
		outParams: outParams,
		lattice:   lattice,
		defaultBounds: sketch.LatticeBounds{
			Lower: lattice.Bottom(),
			Upper: lattice.Top(),
		},
		ephemeral:        make(map[TypeId]CType),
		cachedPrimitives: make(map[string]TypeId),
	}
}

func (c *Context) addType(ty CType) TypeId {
	id := TypeId(c.nextID)
	c.nextID++
	c.ephemeral[id] = ty
	return id
}

func (c *Context) buildTerminalType(bounds sketch.LatticeBounds) TypeId {
	name := c.lattice.Name(bounds.Upper)
	if id, ok := c.cachedPrimitives[name]; ok {
		return id
	}
	id := c.addType(CType{Kind: KindPrimitive, Primitive: name})
	c.cachedPrimitives[name] = id
	return id
}

func hasNonZeroFields(s *sketch.SketchGraph, path string) bool {
	for _, e := range s.Edges(path) {
		if e.Label.Kind == typevar.KindField && e.Label.Offset != 0 {
			return true
		}
	}
	return false
}

// buildStructureTypes implements "Structure candidates — from outgoing
// Field edges with non-zero offsets, applying the field scheduler."
func (c *Context) buildStructureTypes(s *sketch.SketchGraph, path string) []CType {
	if !hasNonZeroFields(s, path) {
		return nil
	}
	var fields []Field
	for _, e := range s.Edges(path) {
		if e.Label.Kind != typevar.KindField {
			continue
		}
		target := c.addType(CType{Kind: KindAlias, AliasTarget: NodeRef{Root: s.Root.Name, Path: e.To}})
		fields = append(fields, Field{ByteOffset: e.Label.Offset, BitSize: e.Label.Size, Type: target})
	}
	return scheduleStructures(fields)
}

// buildAliasTypes implements "Alias candidates — from outgoing Field
// edges all at offset 0 and no non-zero-offset fields: each target
// becomes a standalone Alias."
func buildAliasTypes(s *sketch.SketchGraph, path string) []CType {
	if hasNonZeroFields(s, path) {
		return nil
	}
	seen := make(map[string]bool)
	var targets []string
	for _, e := range s.Edges(path) {
		if e.Label.Kind != typevar.KindField {
			continue
		}
		if !seen[e.To] {
			seen[e.To] = true
			targets = append(targets, e.To)
		}
	}
	sort.Strings(targets)
	out := make([]CType, len(targets))
	for i, t := range targets {
		out[i] = CType{Kind: KindAlias, AliasTarget: NodeRef{Root: s.Root.Name, Path: t}}
	}
	return out
}

// buildPointerTypes implements "Pointer candidates — one
// Pointer{target} per distinct target of Load/Store edges."
func (c *Context) buildPointerTypes(s *sketch.SketchGraph, path string) []CType {
	seen := make(map[string]bool)
	var targets []string
	for _, e := range s.Edges(path) {
		if e.Label.Kind != typevar.KindLoad && e.Label.Kind != typevar.KindStore {
			continue
		}
		if !seen[e.To] {
			seen[e.To] = true
			targets = append(targets, e.To)
		}
	}
	sort.Strings(targets)
	out := make([]CType, len(targets))
	for i, t := range targets {
		alias := c.addType(CType{Kind: KindAlias, AliasTarget: NodeRef{Root: s.Root.Name, Path: t}})
		out[i] = CType{Kind: KindPointer, PointerTarget: alias}
	}
	return out
}

// collectParams groups outgoing edges by parameter index (for In or
// Out labels, selected via labelIndex), producing one Parameter per
// index — a Union of Aliases when an index has more than one target.
func (c *Context) collectParams(s *sketch.SketchGraph, path string, labelIndex func(typevar.FieldLabel) (int, bool)) []Parameter {
	byIndex := make(map[int][]string)
	var indices []int
	for _, e := range s.Edges(path) {
		idx, ok := labelIndex(e.Label)
		if !ok {
			continue
		}
		if _, seen := byIndex[idx]; !seen {
			indices = append(indices, idx)
		}
		byIndex[idx] = append(byIndex[idx], e.To)
	}
	sort.Ints(indices)

	params := make([]Parameter, 0, len(indices))
	for _, idx := range indices {
		targets := byIndex[idx]
		if len(targets) == 0 {
			continue
		}
		var typeID TypeId
		if len(targets) == 1 {
			typeID = c.addType(CType{Kind: KindAlias, AliasTarget: NodeRef{Root: s.Root.Name, Path: targets[0]}})
		} else {
			ids := make([]TypeId, len(targets))
			for i, t := range targets {
				ids[i] = c.addType(CType{Kind: KindAlias, AliasTarget: NodeRef{Root: s.Root.Name, Path: t}})
			}
			typeID = c.addType(CType{Kind: KindUnion, Unions: ids})
		}
		params = append(params, Parameter{Index: idx, Type: typeID})
	}
	return params
}

// buildReturnTypeStructure pads a multi-return structure: fields laid
// out at successive byte offsets equal to the cumulative bit sizes of
// the declared formal out-locations, using the computed out-param
// types where available and a default lattice-derived primitive
// elsewhere.
func (c *Context) buildReturnTypeStructure(origLocs []OutParamLocation, params []Parameter) CType {
	byIndex := make(map[int]Parameter, len(params))
	for _, p := range params {
		byIndex[p.Index] = p
	}

	var fields []Field
	var offset int64
	for i, loc := range origLocs {
		typeID, ok := byIndex[i]
		var t TypeId
		if ok {
			t = typeID.Type
		} else {
			t = c.buildTerminalType(c.defaultBounds)
		}
		fields = append(fields, Field{ByteOffset: offset, BitSize: loc.BitSize, Type: t})
		offset += loc.BitSize / 8
	}
	return CType{Kind: KindStructure, Fields: fields}
}

// buildFunctionTypes implements "Function construction."
func (c *Context) buildFunctionTypes(s *sketch.SketchGraph, path string, rootName string) []CType {
	inParams := c.collectParams(s, path, func(l typevar.FieldLabel) (int, bool) {
		if l.Kind == typevar.KindIn {
			return l.Index, true
		}
		return 0, false
	})
	outParams := c.collectParams(s, path, func(l typevar.FieldLabel) (int, bool) {
		if l.Kind == typevar.KindOut {
			return l.Index, true
		}
		return 0, false
	})
	sort.Slice(outParams, func(i, j int) bool { return outParams[i].Index < outParams[j].Index })

	origLocs := c.outParams[rootName]

	var retID *TypeId
	if len(outParams) > 1 || len(origLocs) > 1 {
		ret := c.buildReturnTypeStructure(origLocs, outParams)
		id := c.addType(ret)
		retID = &id
	} else if len(outParams) == 1 {
		id := outParams[0].Type
		retID = &id
	}

	if len(inParams) == 0 && len(outParams) == 0 {
		return nil
	}
	return []CType{{Kind: KindFunction, Params: inParams, ReturnType: retID}}
}

// buildType implements the per-node decision tree of spec.md §4.F.
func (c *Context) buildType(s *sketch.SketchGraph, path string) TypeId {
	if len(s.Edges(path)) == 0 {
		bounds, _ := s.BoundsByKey(path)
		return c.buildTerminalType(bounds)
	}

	var candidates []CType
	candidates = append(candidates, c.buildStructureTypes(s, path)...)
	candidates = append(candidates, buildAliasTypes(s, path)...)
	candidates = append(candidates, c.buildPointerTypes(s, path)...)
	candidates = append(candidates, c.buildFunctionTypes(s, path, s.Root.Name)...)

	if len(candidates) == 1 {
		return c.addType(candidates[0])
	}
	ids := make([]TypeId, len(candidates))
	for i, ct := range candidates {
		ids[i] = c.addType(ct)
	}
	return c.addType(CType{Kind: KindUnion, Unions: ids})
}

// Lower builds a TypeId for every node of every sketch in the context,
// returning the node→TypeId map and the accumulated TypeId→CType map.
// Types are local decisions, so nodes may be visited in any order; the
// node→TypeId map itself is keyed by NodeRef so callers can still
// recover a canonical (sorted) iteration order.
func (c *Context) Lower() (map[NodeRef]TypeId, map[TypeId]CType) {
	types := make(map[NodeRef]TypeId)

	var roots []string
	for name := range c.sketches {
		roots = append(roots, name)
	}
	sort.Strings(roots)

	for _, root := range roots {
		s := c.sketches[root]
		paths := append([]string{}, s.Paths()...)
		sort.Strings(paths)
		for _, p := range paths {
			types[NodeRef{Root: root, Path: p}] = c.buildType(s, p)
		}
	}

	return types, c.ephemeral
}

type classroom struct {
	seq       int
	scheduled []Field
}

func (cr *classroom) nextSchedulableOffset() int64 {
	if len(cr.scheduled) == 0 {
		return 0
	}
	last := cr.scheduled[len(cr.scheduled)-1]
	return last.ByteOffset + last.BitSize/8
}

func (cr *classroom) schedule(f Field) {
	cr.scheduled = append(cr.scheduled, f)
}

type classroomHeap []*classroom

func (h classroomHeap) Len() int { return len(h) }
func (h classroomHeap) Less(i, j int) bool {
	oi, oj := h[i].nextSchedulableOffset(), h[j].nextSchedulableOffset()
	if oi != oj {
		return oi < oj
	}
	return h[i].seq < h[j].seq
}
func (h classroomHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *classroomHeap) Push(x interface{}) {
	*h = append(*h, x.(*classroom))
}
func (h *classroomHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func fieldEnd(f Field) int64 { return f.ByteOffset + f.BitSize/8 }

// strictlyContains reports whether a's interval strictly contains b's
// (margin on both sides) — scenario S4. A field merely overlapping
// another at a shared boundary (scenario S3) is not contained; it is
// split into its own structure instead.
func strictlyContains(a, b Field) bool {
	return a.ByteOffset < b.ByteOffset && fieldEnd(a) > fieldEnd(b)
}

// scheduleStructures partitions fields into the minimum number of
// non-overlapping structures (spec.md §4.F "Field scheduling").
func scheduleStructures(fields []Field) []CType {
	sorted := make([]Field, len(fields))
	copy(sorted, fields)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ByteOffset < sorted[j].ByteOffset })

	h := &classroomHeap{}
	seq := 0

	for _, f := range sorted {
		contained := false
		for _, cr := range *h {
			for _, existing := range cr.scheduled {
				if strictlyContains(existing, f) {
					contained = true
					break
				}
			}
			if contained {
				break
			}
		}
		if contained {
			continue
		}

		if h.Len() > 0 {
			top := (*h)[0]
			if top.nextSchedulableOffset() <= f.ByteOffset {
				top.schedule(f)
				heap.Fix(h, 0)
				continue
			}
		}

		cr := &classroom{seq: seq}
		seq++
		cr.schedule(f)
		heap.Push(h, cr)
	}

	all := make([]*classroom, len(*h))
	copy(all, *h)
	sort.Slice(all, func(i, j int) bool { return all[i].seq < all[j].seq })

	out := make([]CType, len(all))
	for i, cr := range all {
		out[i] = CType{Kind: KindStructure, Fields: append([]Field{}, cr.scheduled...)}
	}
	return out
}
