// Package solver implements spec.md §4.D: it saturates a constraint set,
// restricts it to derivations between interesting type variables, and
// returns the result as a reduced constraint set, alongside a labeled
// pushdown graph over (DTV, direction) states connected by ε, Push and
// Pop edges that is built only for the debug dump.
//
// The saturation fixpoint (4.D.2) is a standard reduction of
// "subtyping with variant field access" to context-free-language
// reachability (Rehof/Fähndrich); the three closure rules the spec
// names — transitivity, label cancellation, and variance-sensitive
// propagation — are jointly equivalent to a simpler, directly
// implementable closure: for any known a ⊑ b, and any label l that
// appears as an extension of a or b anywhere in the input (a "used"
// label), add a.l ⊑ b.l when l is covariant or b.l ⊑ a.l when l is
// contravariant, plus ordinary transitive closure of ⊑. This is what
// Saturate computes directly over typevar.ConstraintSet; BuildGraph
// (graph.go) separately renders the same input as the literal node/edge
// arena spec.md §4.D.1 describes, for the debug reachability dump.
package solver

import (
	"sort"

	"github.com/luishsr/binary-type-inference/internal/typevar"
)

// usedSet is every prefix (including the full path) of every DTV
// appearing in a constraint set, keyed by canonical string. Saturate
// only extends the two sides of a constraint by labels recorded here as
// children of one of those sides, and only members of this set have
// recorded children, so every DTV in a derived constraint is either in
// this set or one recorded label beyond a member of it — a fixed,
// finite universe, which is what guarantees the fixpoint terminates
// (4.D.2).
type usedSet struct {
	prefixes map[string]typevar.DerivedTypeVar
	children map[string][]typevar.FieldLabel
}

func buildUsedSet(cs typevar.ConstraintSet) *usedSet {
	u := &usedSet{
		prefixes: make(map[string]typevar.DerivedTypeVar),
		children: make(map[string][]typevar.FieldLabel),
	}
	for _, c := range cs.Constraints() {
		u.registerPrefixes(c.Left)
		u.registerPrefixes(c.Right)
	}
	for _, d := range u.prefixes {
		if len(d.Path) == 0 {
			continue
		}
		parent := typevar.DerivedTypeVar{Base: d.Base, Path: d.Path[:len(d.Path)-1]}
		label := d.Path[len(d.Path)-1]
		key := parent.String()
		u.children[key] = append(u.children[key], label)
	}
	for key, labels := range u.children {
		sort.Slice(labels, func(i, j int) bool { return labels[i].String() < labels[j].String() })
		u.children[key] = labels
	}
	return u
}

func (u *usedSet) registerPrefixes(d typevar.DerivedTypeVar) {
	for i := 0; i <= len(d.Path); i++ {
		p := typevar.DerivedTypeVar{Base: d.Base, Path: d.Path[:i]}
		u.prefixes[p.String()] = p
	}
}

// childLabels returns the deduplicated union of d1's and d2's recorded
// child labels, in canonical order.
func (u *usedSet) childLabels(d1, d2 typevar.DerivedTypeVar) []typevar.FieldLabel {
	seen := make(map[typevar.FieldLabel]bool)
	var out []typevar.FieldLabel
	for _, label := range u.children[d1.String()] {
		if !seen[label] {
			seen[label] = true
			out = append(out, label)
		}
	}
	for _, label := range u.children[d2.String()] {
		if !seen[label] {
			seen[label] = true
			out = append(out, label)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Saturate closes cs under transitivity and variance-sensitive label
// extension until a full pass adds nothing new.
func Saturate(cs typevar.ConstraintSet) typevar.ConstraintSet {
	u := buildUsedSet(cs)

	for {
		changed := false
		current := cs.Constraints()

		// Transitivity: a ⊑ b, b ⊑ c ⇒ a ⊑ c.
		byLeft := make(map[string][]typevar.DerivedTypeVar)
		for _, c := range current {
			byLeft[c.Left.String()] = append(byLeft[c.Left.String()], c.Right)
		}
		for _, c := range current {
			for _, rhs := range byLeft[c.Right.String()] {
				if c.Left.Equal(rhs) {
					continue
				}
				cand := typevar.NewSubtypeConstraint(c.Left, rhs)
				next := cs.Add(cand)
				if next.Len() != cs.Len() {
					cs = next
					changed = true
				}
			}
		}

		// Variance-sensitive label extension.
		for _, c := range current {
			for _, label := range u.childLabels(c.Left, c.Right) {
				al := c.Left.WithLabel(label)
				bl := c.Right.WithLabel(label)
				var cand typevar.SubtypeConstraint
				if label.Variance() == typevar.Covariant {
					cand = typevar.NewSubtypeConstraint(al, bl)
				} else {
					cand = typevar.NewSubtypeConstraint(bl, al)
				}
				next := cs.Add(cand)
				if next.Len() != cs.Len() {
					cs = next
					changed = true
				}
			}
		}

		if !changed {
			return cs
		}
	}
}
