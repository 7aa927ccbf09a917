package ir

import "testing"

func TestProjectValidateAssignDef(t *testing.T) {
	p := &Project{
		Program: Program{
			Subs: []Sub{
				{
					Tid:  "sub_1",
					Name: "sub_401000",
					Blocks: []Blk{
						{
							Tid: "blk_1",
							Defs: []Def{
								{Tid: "def_1", Kind: DefAssign, Var: &Variable{Name: "RAX"}, Value: &Expression{Kind: ExprConst, Const: 1}},
							},
						},
					},
				},
			},
		},
	}

	if err := p.Validate(); err != nil {
		t.Fatalf("expected valid project, got %v", err)
	}
}

func TestProjectValidateRejectsIncompleteAssign(t *testing.T) {
	p := &Project{
		Program: Program{
			Subs: []Sub{
				{
					Tid: "sub_1",
					Blocks: []Blk{
						{Tid: "blk_1", Defs: []Def{{Tid: "def_1", Kind: DefAssign}}},
					},
				},
			},
		},
	}

	if err := p.Validate(); err == nil {
		t.Fatal("expected malformed error for assign def missing var/value")
	}
}

func TestProjectValidateRejectsIncompleteLoad(t *testing.T) {
	p := &Project{
		Program: Program{
			Subs: []Sub{
				{
					Tid: "sub_1",
					Blocks: []Blk{
						{Tid: "blk_1", Defs: []Def{{Tid: "def_1", Kind: DefLoad, Var: &Variable{Name: "RAX"}}}},
					},
				},
			},
		},
	}

	if err := p.Validate(); err == nil {
		t.Fatal("expected malformed error for load def missing address")
	}
}
