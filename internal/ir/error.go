package ir

import "fmt"

// MalformedError indicates the decoded IR project is structurally
// invalid — a Def's Kind requires a field that was left nil.
type MalformedError struct {
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed IR: %s", e.Reason)
}

func NewMalformedError(reason string) *MalformedError {
	return &MalformedError{Reason: reason}
}

// Validate checks the structural invariants DefKind implies: Assign and
// Load must carry Var, Load and Store must carry Address.
func (p *Project) Validate() error {
	for _, sub := range p.Program.Subs {
		for _, blk := range sub.Blocks {
			for _, def := range blk.Defs {
				switch def.Kind {
				case DefAssign:
					if def.Var == nil || def.Value == nil {
						return NewMalformedError(fmt.Sprintf("assign def %s missing var or value", def.Tid))
					}
				case DefLoad:
					if def.Var == nil || def.Address == nil {
						return NewMalformedError(fmt.Sprintf("load def %s missing var or address", def.Tid))
					}
				case DefStore:
					if def.Address == nil || def.Value == nil {
						return NewMalformedError(fmt.Sprintf("store def %s missing address or value", def.Tid))
					}
				case DefCall:
					if def.Call == nil || def.Call.Callee == "" {
						return NewMalformedError(fmt.Sprintf("call def %s missing call site or callee", def.Tid))
					}
				}
			}
		}
	}
	return nil
}
