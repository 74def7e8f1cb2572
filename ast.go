// Copyright 2026 The gomake Authors
// SPDX-License-Identifier: Apache-2.0

package gomake

// Node is the interface implemented by every parsed statement.
type Node interface {
	node()
	Loc() Location
}

// AssignOp distinguishes the four assignment operators make recognizes.
type AssignOp int

const (
	OpRecursive   AssignOp = iota // =
	OpSimple                      // := or ::=
	OpAppend                      // +=
	OpConditional                 // ?=
)

// SetVariable is a variable assignment statement (§4.1).
type SetVariable struct {
	Name     Expr
	Value    Expr
	Op       AssignOp
	Override bool // parsed after the `override` keyword
	Line     int
	File     string
}

// RuleStmt is a rule header: targets : prereqs [ | order-only-prereqs ].
type RuleStmt struct {
	Targets     Expr
	Prereqs     Expr
	OrderOnly   Expr
	DoubleColon bool
	Line        int
	File        string
}

// CommandStmt is a single recipe line, attached to the preceding RuleStmt.
type CommandStmt struct {
	Text Expr
	Line int
	File string
}

// Include is an `include`/`-include` directive.
type Include struct {
	Paths    Expr
	Optional bool
	Line     int
	File     string
}

// CondKind enumerates the four conditional directive forms.
type CondKind int

const (
	CondIfeq CondKind = iota
	CondIfneq
	CondIfdef
	CondIfndef
)

// Conditional is an if.../else/endif block. Else holds either the statements
// of a plain `else` branch or, for `else ifeq ...`, a single nested
// Conditional representing the elif chain.
type Conditional struct {
	Kind  CondKind
	Left  Expr
	Right Expr // only meaningful for Ifeq/Ifneq
	Name  Expr // only meaningful for Ifdef/Ifndef
	Then  []Node
	Else  []Node
	Line  int
	File  string
}

// ExportDirective is `export`/`unexport` [names...]. Assign is non-nil for
// the combined form `export NAME = value`, which both assigns and exports
// in one statement.
type ExportDirective struct {
	Names  Expr // zero value means "export all currently-known variables"
	Assign *SetVariable
	Export bool
	Line   int
	File   string
}

// TargetVarStmt is a target-specific variable assignment:
// "target...: VAR = value" (§3 "target-scoped overrides").
type TargetVarStmt struct {
	Targets Expr
	Assign  SetVariable
	Line    int
	File    string
}

// VPathStmt is a `vpath` directive.
type VPathStmt struct {
	Pattern Expr // empty clears all vpaths; non-empty with no dirs clears that pattern's dirs
	Dirs    Expr
	Line    int
	File    string
}

// DefineStmt is a `define name ... endef` multi-line variable.
type DefineStmt struct {
	Name Expr
	Op   AssignOp
	Body string
	Line int
	File string
}

// ErrorStmt/WarningStmt/InfoStmt are the top-level $(error)/$(warning)/
// $(info) directive forms that occur as a bare statement line.
type ErrorStmt struct {
	Message Expr
	Line    int
	File    string
}

type WarningStmt struct {
	Message Expr
	Line    int
	File    string
}

type InfoStmt struct {
	Message Expr
	Line    int
	File    string
}

func (SetVariable) node()     {}
func (RuleStmt) node()        {}
func (CommandStmt) node()     {}
func (Include) node()         {}
func (Conditional) node()     {}
func (ExportDirective) node() {}
func (TargetVarStmt) node()   {}
func (VPathStmt) node()       {}
func (DefineStmt) node()      {}
func (ErrorStmt) node()       {}
func (WarningStmt) node()     {}
func (InfoStmt) node()        {}

func (n SetVariable) Loc() Location     { return Location{File: n.File, Line: n.Line} }
func (n RuleStmt) Loc() Location        { return Location{File: n.File, Line: n.Line} }
func (n CommandStmt) Loc() Location     { return Location{File: n.File, Line: n.Line} }
func (n Include) Loc() Location         { return Location{File: n.File, Line: n.Line} }
func (n Conditional) Loc() Location     { return Location{File: n.File, Line: n.Line} }
func (n ExportDirective) Loc() Location { return Location{File: n.File, Line: n.Line} }
func (n TargetVarStmt) Loc() Location   { return Location{File: n.File, Line: n.Line} }
func (n VPathStmt) Loc() Location       { return Location{File: n.File, Line: n.Line} }
func (n DefineStmt) Loc() Location      { return Location{File: n.File, Line: n.Line} }
func (n ErrorStmt) Loc() Location       { return Location{File: n.File, Line: n.Line} }
func (n WarningStmt) Loc() Location     { return Location{File: n.File, Line: n.Line} }
func (n InfoStmt) Loc() Location        { return Location{File: n.File, Line: n.Line} }

// File is the top-level result of parsing one makefile.
type File struct {
	Stmts []Node
	Path  string
}

// --- Expression tree (§3 "Expression") ---

// SegKind discriminates the three kinds of Expr segment.
type SegKind int

const (
	SegLiteral SegKind = iota
	SegVarRef
	SegFuncCall
)

// Segment is one piece of an unexpanded Expr.
type Segment struct {
	Kind    SegKind
	Literal string // SegLiteral
	VarName Expr   // SegVarRef: inner expression yielding the variable name (e.g. $($(x)))
	Func    string // SegFuncCall: function name
	Args    []Expr // SegFuncCall: unexpanded argument expressions
}

// Expr is an ordered sequence of segments, immutable after parse, associated
// with a source Location for diagnostics (§3).
type Expr struct {
	Segs []Segment
	Loc  Location
}

// NewLiteral builds a single-literal Expr, used for values already known to
// contain no references (automatic-variable expansion, synthetic defaults).
func NewLiteral(s string) Expr {
	if s == "" {
		return Expr{}
	}
	return Expr{Segs: []Segment{{Kind: SegLiteral, Literal: s}}}
}

// IsEmpty reports whether the expression has no segments at all.
func (e Expr) IsEmpty() bool { return len(e.Segs) == 0 }
