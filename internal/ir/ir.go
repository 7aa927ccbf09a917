// Package ir defines the narrowest possible JSON-decodable stand-in for
// a decompiled program IR: the shape an out-of-scope disassembly/IR
// extraction pass would hand to the constraint generator. It is not a
// disassembler; it exists so the rest of this engine has something
// concrete to traverse and so tests are self-contained.
package ir

// ByteSize is a storage size in bytes.
type ByteSize int64

// DatatypeProperties describes the target architecture facts the
// constraint generator and lowering stage need: pointer width and
// endianness.
type DatatypeProperties struct {
	PointerSize ByteSize `json:"pointer_size"`
	BigEndian   bool     `json:"big_endian"`
}

// Project is the top-level input: a program plus the architecture facts
// and the global address-base offset used to relocate a loaded image.
type Project struct {
	Program            Program            `json:"program"`
	DatatypeProperties DatatypeProperties `json:"datatype_properties"`
	StackPointerReg    string             `json:"stack_pointer_register"`
	AddressBaseOffset  int64              `json:"address_base_offset"`
}

// Program is the collection of subprocedures and the extern symbols
// they may call into.
type Program struct {
	Subs          []Sub          `json:"subs"`
	ExternSymbols []ExternSymbol `json:"extern_symbols"`
}

// ExternSymbol names an imported/external subprocedure (e.g. malloc),
// identified by a Tid and a human-readable name used for "interesting"
// TV and allocation/deallocation symbol matching.
type ExternSymbol struct {
	Tid  string `json:"tid"`
	Name string `json:"name"`
}

// Sub is one subprocedure: a Tid, a name, and its basic blocks.
type Sub struct {
	Tid    string `json:"tid"`
	Name   string `json:"name"`
	Blocks []Blk  `json:"blocks"`
}

// Blk is one basic block: a Tid, its defs in program order, and the
// Tids of its successor blocks (unused by constraint generation itself,
// kept for completeness of the IR shape).
type Blk struct {
	Tid    string `json:"tid"`
	Defs   []Def  `json:"defs"`
	Succs  []string `json:"succs"`
}

// DefKind distinguishes the four definition shapes the constraint
// generator recognizes: the three of original_source/src/constraint_generation/mod.rs
// Def::{Assign,Load,Store}, plus DefCall for a call site.
type DefKind int

const (
	DefAssign DefKind = iota
	DefLoad
	DefStore
	DefCall
)

// Def is one definition site within a block. Exactly the fields
// relevant to DefKind are populated; the rest are zero values.
type Def struct {
	Tid     string      `json:"tid"`
	Kind    DefKind     `json:"kind"`
	Var     *Variable   `json:"var,omitempty"`     // Assign, Load: the defined variable
	Value   *Expression `json:"value,omitempty"`   // Assign: the RHS; Store: the stored value
	Address *Expression `json:"address,omitempty"` // Load, Store: the memory address expression

	// Call describes a call-source/call-return site (spec §4.C).
	Call *CallSite `json:"call,omitempty"`
}

// CallSite is a call to Callee with the given actual arguments and
// destination variables receiving the callee's formal out-parameters
// (index-aligned: Returns[k] receives Out(k)).
type CallSite struct {
	Callee  string       `json:"callee"`
	Args    []Expression `json:"args"`
	Returns []Variable   `json:"returns"`
}

// ExpressionKind distinguishes the expression shapes this engine
// recognizes. Every kind other than ExprVar contributes no constraints,
// matching original_source's "_ => ConstraintSet::empty()".
type ExpressionKind int

const (
	ExprVar ExpressionKind = iota
	ExprConst
	ExprOther
)

// Expression is an RHS value or memory address expression. When Kind is
// ExprVar and this expression denotes a memory address, Offset carries
// the constant displacement added to Var (e.g. the "-8" in "RSP - 8"),
// matching the stack-relative addressing original_source's points-to
// context normalizes.
type Expression struct {
	Kind   ExpressionKind `json:"kind"`
	Var    *Variable      `json:"var,omitempty"`
	Const  int64          `json:"const,omitempty"`
	Offset int64          `json:"offset,omitempty"`
}

// Variable is a register or stack-slot reference: a name (e.g. "RAX",
// "RSP") and its storage size.
type Variable struct {
	Name string   `json:"name"`
	Size ByteSize `json:"size"`
}
