package solver

import (
	"regexp"

	"github.com/luishsr/binary-type-inference/internal/typevar"
)

// RuleContext names the type variables the solver must preserve as
// endpoints of the reduced constraint set — the "interesting" TVs spec.md
// §6.5 describes, typically subprocedure roots matched by a regex.
type RuleContext struct {
	pattern *regexp.Regexp
	roots   map[string]bool
}

// NewRuleContext builds a RuleContext from an interesting-variable
// regex plus any additional explicitly named roots.
func NewRuleContext(pattern *regexp.Regexp, extraRoots ...string) *RuleContext {
	roots := make(map[string]bool, len(extraRoots))
	for _, r := range extraRoots {
		roots[r] = true
	}
	return &RuleContext{pattern: pattern, roots: roots}
}

// IsInteresting reports whether name should be preserved as a root.
func (r *RuleContext) IsInteresting(name string) bool {
	if r.roots[name] {
		return true
	}
	if r.pattern == nil {
		return false
	}
	return r.pattern.MatchString(name)
}

// validate rejects constraint sets referencing structurally invalid
// field labels — spec.md §4.D.5's "contradictory variance annotations."
func validate(cs typevar.ConstraintSet) error {
	check := func(d typevar.DerivedTypeVar) error {
		for _, label := range d.Path {
			switch label.Kind {
			case typevar.KindIn, typevar.KindOut:
				if label.Index < 0 {
					return NewConstructionFailedError("negative parameter index in " + d.String())
				}
			case typevar.KindField:
				if label.Size <= 0 {
					return NewConstructionFailedError("non-positive field size in " + d.String())
				}
			}
		}
		return nil
	}
	for _, c := range cs.Constraints() {
		if err := check(c.Left); err != nil {
			return err
		}
		if err := check(c.Right); err != nil {
			return err
		}
	}
	return nil
}

// Reduce restricts a saturated constraint set to derivations whose
// endpoints are both interesting type variables, dropping reflexive
// constraints — the surviving set after 4.D.3's pop·push intersection
// and 4.D.4's walk, both of which only ever expose interesting-rooted
// endpoints to the caller.
func Reduce(saturated typevar.ConstraintSet, rules *RuleContext) typevar.ConstraintSet {
	out := typevar.Empty()
	for _, c := range saturated.Constraints() {
		if c.Left.Equal(c.Right) {
			continue
		}
		if rules.IsInteresting(c.Left.Base.Name) && rules.IsInteresting(c.Right.Base.Name) {
			out = out.Add(c)
		}
	}
	return out
}

// Solve runs the full pipeline 4.D describes: validate, saturate,
// reduce to interesting endpoints, and build the debug reachability
// graph over the saturated set.
func Solve(cs typevar.ConstraintSet, rules *RuleContext) (reduced typevar.ConstraintSet, graph *Graph, err error) {
	if err := validate(cs); err != nil {
		return typevar.Empty(), nil, err
	}
	saturated := Saturate(cs)
	reduced = Reduce(saturated, rules)
	graph = BuildGraph(saturated)
	return reduced, graph, nil
}
