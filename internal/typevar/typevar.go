// Package typevar implements the derived type variable algebra: type
// variables, field labels, paths, and the subtype constraints built from
// them. Everything here is a plain, comparable value — constraints are
// generated, solved and walked by value, never by pointer identity.
package typevar

import (
	"fmt"
	"sort"
	"strings"
)

// Variance tracks whether a field label's access direction agrees with
// (Covariant) or reverses (Contravariant) its containing path's variance.
type Variance int

const (
	Covariant Variance = iota
	Contravariant
)

func (v Variance) String() string {
	if v == Contravariant {
		return "contravariant"
	}
	return "covariant"
}

// Combine composes two variances along a path: contravariant labels flip
// the running variance, covariant ones leave it unchanged.
func (v Variance) Combine(next Variance) Variance {
	if next == Contravariant {
		if v == Covariant {
			return Contravariant
		}
		return Covariant
	}
	return v
}

// LabelKind distinguishes the shapes of field label spec.md §3 defines.
type LabelKind int

const (
	KindIn LabelKind = iota
	KindOut
	KindLoad
	KindStore
	KindField
)

// FieldLabel is one step of a derived type variable's access path.
//
// In(k) and Out(k) are contravariant and covariant respectively (a
// function's k-th parameter position is an input to the callee, so
// constraints on it flow opposite to constraints on the return value).
// Load is covariant (reading yields a value of the pointee's type).
// Store is contravariant (writing requires accepting the pointee's
// type). Field(offset,size) is covariant.
type FieldLabel struct {
	Kind   LabelKind
	Index  int // parameter index, for In/Out
	Offset int64
	Size   int64 // bit size, for Field
}

func In(index int) FieldLabel  { return FieldLabel{Kind: KindIn, Index: index} }
func Out(index int) FieldLabel { return FieldLabel{Kind: KindOut, Index: index} }
func Load() FieldLabel         { return FieldLabel{Kind: KindLoad} }
func Store() FieldLabel        { return FieldLabel{Kind: KindStore} }
func Field(offset, bitSize int64) FieldLabel {
	return FieldLabel{Kind: KindField, Offset: offset, Size: bitSize}
}

// Variance reports this label's own variance, independent of anything
// that precedes it on a path.
func (f FieldLabel) Variance() Variance {
	switch f.Kind {
	case KindIn, KindStore:
		return Contravariant
	default:
		return Covariant
	}
}

func (f FieldLabel) String() string {
	switch f.Kind {
	case KindIn:
		return fmt.Sprintf("in_%d", f.Index)
	case KindOut:
		return fmt.Sprintf("out_%d", f.Index)
	case KindLoad:
		return "load"
	case KindStore:
		return "store"
	case KindField:
		return fmt.Sprintf("@%d<%d>", f.Offset, f.Size)
	default:
		return "?"
	}
}

// Equal reports structural equality, used for label cancellation during
// FSA saturation (a Push(l) edge cancels against a matching Pop(l)).
func (f FieldLabel) Equal(other FieldLabel) bool {
	return f == other
}

// TypeVariable is the base of a derived type variable: either a named
// program variable/subprocedure ("sub_401000", "RAX") or a
// solver-minted fresh variable ("τ12").
type TypeVariable struct {
	Name string
}

func (t TypeVariable) String() string { return t.Name }

// DerivedTypeVar is a base type variable plus an access path of field
// labels, e.g. sub_401000.in_0.load.@8<32>.
type DerivedTypeVar struct {
	Base TypeVariable
	Path []FieldLabel
}

// NewDerivedTypeVar builds a DTV with no path (a bare base variable).
func NewDerivedTypeVar(base TypeVariable) DerivedTypeVar {
	return DerivedTypeVar{Base: base}
}

// WithLabel appends one label to the path, returning a new DTV (the
// original is never mutated — DTVs are values).
func (d DerivedTypeVar) WithLabel(label FieldLabel) DerivedTypeVar {
	path := make([]FieldLabel, len(d.Path)+1)
	copy(path, d.Path)
	path[len(d.Path)] = label
	return DerivedTypeVar{Base: d.Base, Path: path}
}

// WithPath appends a full suffix, returning a new DTV.
func (d DerivedTypeVar) WithPath(suffix []FieldLabel) DerivedTypeVar {
	if len(suffix) == 0 {
		return d
	}
	path := make([]FieldLabel, len(d.Path)+len(suffix))
	copy(path, d.Path)
	copy(path[len(d.Path):], suffix)
	return DerivedTypeVar{Base: d.Base, Path: path}
}

// Variance is the multiplicative composition of every label's own
// variance along the path: an even number of contravariant labels
// cancels out to covariant overall.
func (d DerivedTypeVar) Variance() Variance {
	v := Covariant
	for _, label := range d.Path {
		v = v.Combine(label.Variance())
	}
	return v
}

// BasePath returns the DTV with its base variable only, dropping the path.
func (d DerivedTypeVar) BasePath() DerivedTypeVar {
	return DerivedTypeVar{Base: d.Base}
}

// HasSameBase reports whether two DTVs share a base variable, whatever
// their paths; with differing paths this is the shape spec.md §9's
// "recursive DTV" open question concerns.
func (d DerivedTypeVar) HasSameBase(other DerivedTypeVar) bool {
	return d.Base == other.Base
}

func (d DerivedTypeVar) String() string {
	var b strings.Builder
	b.WriteString(d.Base.String())
	for _, label := range d.Path {
		b.WriteByte('.')
		b.WriteString(label.String())
	}
	return b.String()
}

// Equal reports structural equality of base and path.
func (d DerivedTypeVar) Equal(other DerivedTypeVar) bool {
	if d.Base != other.Base || len(d.Path) != len(other.Path) {
		return false
	}
	for i := range d.Path {
		if !d.Path[i].Equal(other.Path[i]) {
			return false
		}
	}
	return true
}

// Less gives DTVs a total, deterministic order so constraint sets can be
// sorted before being printed or walked — no map-iteration order ever
// reaches an output, per spec.md §9.
func (d DerivedTypeVar) Less(other DerivedTypeVar) bool {
	return d.String() < other.String()
}

// SubtypeConstraint is one edge of the constraint graph: Left ⊑ Right.
type SubtypeConstraint struct {
	Left  DerivedTypeVar
	Right DerivedTypeVar
}

func NewSubtypeConstraint(left, right DerivedTypeVar) SubtypeConstraint {
	return SubtypeConstraint{Left: left, Right: right}
}

func (c SubtypeConstraint) String() string {
	return fmt.Sprintf("%s ⊑ %s", c.Left, c.Right)
}

func (c SubtypeConstraint) Equal(other SubtypeConstraint) bool {
	return c.Left.Equal(other.Left) && c.Right.Equal(other.Right)
}

// ConstraintSet is an unordered collection of subtype constraints with
// value semantics (Add never mutates the receiver's backing array in a
// way visible to a caller still holding the old value).
type ConstraintSet struct {
	constraints []SubtypeConstraint
}

// Empty returns the zero-element constraint set.
func Empty() ConstraintSet {
	return ConstraintSet{}
}

// NewConstraintSet builds a set from the given constraints, deduplicated.
func NewConstraintSet(constraints ...SubtypeConstraint) ConstraintSet {
	var s ConstraintSet
	for _, c := range constraints {
		s = s.Add(c)
	}
	return s
}

// Add returns a new set containing c (a no-op if c is already present).
func (s ConstraintSet) Add(c SubtypeConstraint) ConstraintSet {
	for _, existing := range s.constraints {
		if existing.Equal(c) {
			return s
		}
	}
	next := make([]SubtypeConstraint, len(s.constraints), len(s.constraints)+1)
	copy(next, s.constraints)
	next = append(next, c)
	return ConstraintSet{constraints: next}
}

// Union returns a new set containing every constraint from both sets.
func (s ConstraintSet) Union(other ConstraintSet) ConstraintSet {
	out := s
	for _, c := range other.constraints {
		out = out.Add(c)
	}
	return out
}

// Constraints returns the set's members in canonical (sorted) order.
func (s ConstraintSet) Constraints() []SubtypeConstraint {
	out := make([]SubtypeConstraint, len(s.constraints))
	copy(out, s.constraints)
	sort.Slice(out, func(i, j int) bool {
		si, sj := out[i].String(), out[j].String()
		return si < sj
	})
	return out
}

// Len reports the number of constraints in the set.
func (s ConstraintSet) Len() int { return len(s.constraints) }

// IsEmpty reports whether the set has no constraints.
func (s ConstraintSet) IsEmpty() bool { return len(s.constraints) == 0 }

func (s ConstraintSet) String() string {
	ordered := s.Constraints()
	parts := make([]string, len(ordered))
	for i, c := range ordered {
		parts[i] = c.String()
	}
	return strings.Join(parts, "\n")
}
