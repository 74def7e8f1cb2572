// Copyright 2026 The gomake Authors
// SPDX-License-Identifier: Apache-2.0

package gomake

import (
	"os"
	"strings"
)

// VarFlavor distinguishes how a variable's value behaves on reference
// (§3 "Variable").
type VarFlavor int

const (
	FlavorRecursive VarFlavor = iota // = : re-expanded on every reference
	FlavorSimple                     // := or ::= : expanded once, at definition
)

// VarOrigin records where a variable's current value came from, consulted
// by the `origin` function and by assignment-precedence rules (§3
// "Variable origins").
type VarOrigin int

const (
	OriginUndefined VarOrigin = iota
	OriginDefault
	OriginEnvironment
	OriginEnvironmentOverride
	OriginFile
	OriginCommandLine
	OriginOverride
	OriginAutomatic
)

func (o VarOrigin) String() string {
	switch o {
	case OriginUndefined:
		return "undefined"
	case OriginDefault:
		return "default"
	case OriginEnvironment:
		return "environment"
	case OriginEnvironmentOverride:
		return "environment override"
	case OriginFile:
		return "file"
	case OriginCommandLine:
		return "command line"
	case OriginOverride:
		return "override"
	case OriginAutomatic:
		return "automatic"
	}
	return "undefined"
}

// Variable is one binding in an Environment: either a raw, unexpanded
// expression (recursive flavor, re-evaluated on every reference, so that
// e.g. $(shell date) re-runs each time) or an already-expanded string
// (simple flavor, frozen at definition time).
type Variable struct {
	Name    string
	Flavor  VarFlavor
	Origin  VarOrigin
	Raw     Expr   // meaningful when Flavor == FlavorRecursive
	Value   string // meaningful when Flavor == FlavorSimple, or for automatics
	NoValue bool   // true for a variable explicitly undefined (§4.2 `undefine`)
}

// Environment is a chain of variable scopes. The global environment has no
// parent; a target-local environment's parent is the global one, so a
// recipe expansion consults target-specific variables (and automatic
// variables like $@) before falling back to globals (§3 "Variable
// environment").
type Environment struct {
	vars   map[string]*Variable
	order  []string // insertion order, for Names (export-all)
	parent *Environment
	mf     *Makefile
}

// NewEnvironment creates a scope. parent may be nil for the global scope.
func NewEnvironment(parent *Environment, mf *Makefile) *Environment {
	return &Environment{vars: make(map[string]*Variable), parent: parent, mf: mf}
}

// NewGlobalEnvironment seeds a fresh global scope from the process
// environment, each binding tagged OriginEnvironment, exactly as GNU make
// does before parsing any makefile.
func NewGlobalEnvironment(mf *Makefile) *Environment {
	e := NewEnvironment(nil, mf)
	for _, kv := range os.Environ() {
		name, val, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		e.vars[name] = &Variable{Name: name, Flavor: FlavorSimple, Origin: OriginEnvironment, Value: val}
		e.order = append(e.order, name)
	}
	return e
}

func (e *Environment) lookupLocal(name string) (*Variable, bool) {
	v, ok := e.vars[name]
	return v, ok
}

// Lookup searches this scope, then each ancestor, returning the nearest
// binding.
func (e *Environment) Lookup(name string) (*Variable, bool) {
	for env := e; env != nil; env = env.parent {
		if v, ok := env.lookupLocal(name); ok {
			if v.NoValue {
				return nil, false
			}
			return v, true
		}
	}
	return nil, false
}

// Origin reports the origin of name as the `origin` function would.
func (e *Environment) Origin(name string) VarOrigin {
	v, ok := e.Lookup(name)
	if !ok {
		return OriginUndefined
	}
	return v.Origin
}

// Flavor reports the flavor of name as the `flavor` function would; an
// undefined variable's flavor is reported as FlavorRecursive to match GNU
// make treating unset names as empty recursive variables.
func (e *Environment) Flavor(name string) VarFlavor {
	v, ok := e.Lookup(name)
	if !ok {
		return FlavorRecursive
	}
	return v.Flavor
}

func (e *Environment) store(v *Variable) {
	if _, existed := e.vars[v.Name]; !existed {
		e.order = append(e.order, v.Name)
	}
	e.vars[v.Name] = v
}

// canAssign applies the override-precedence rule from §3: a variable whose
// origin is command line or override can only be replaced by an `override`
// assignment; any other assignment to it is silently ignored, matching GNU
// make rather than erroring.
func canAssign(existing *Variable, override bool) bool {
	if existing == nil {
		return true
	}
	if override {
		return true
	}
	switch existing.Origin {
	case OriginCommandLine, OriginOverride:
		return false
	}
	return true
}

// Define implements `=`/`:=`/`?=` assignment (§4.1/§4.2). origin is the
// origin to stamp on success (OriginFile for ordinary makefile assignments,
// OriginCommandLine for `NAME=value` CLI overrides).
func (e *Environment) Define(name string, op AssignOp, raw Expr, origin VarOrigin, override bool) error {
	existing, _ := e.lookupLocal(name)
	if op == OpConditional {
		if _, ok := e.Lookup(name); ok {
			return nil
		}
	}
	if !canAssign(existing, override) {
		return nil
	}
	o := origin
	if override {
		o = OriginOverride
	}
	switch op {
	case OpSimple:
		val, err := e.Expand(raw)
		if err != nil {
			return err
		}
		e.store(&Variable{Name: name, Flavor: FlavorSimple, Origin: o, Value: val})
	default: // OpRecursive, OpConditional (first definition only reaches here)
		e.store(&Variable{Name: name, Flavor: FlavorRecursive, Origin: o, Raw: raw})
	}
	return nil
}

// Append implements `+=` (§4.1): a simple-flavored target is extended with
// the expansion of the new text; a recursive-flavored (or undefined)
// target keeps deferring expansion, with the new raw text concatenated
// after a space.
func (e *Environment) Append(name string, raw Expr, origin VarOrigin, override bool) error {
	existing, ok := e.lookupLocal(name)
	if !ok {
		if parentV, pok := e.Lookup(name); pok {
			existing = parentV
			ok = true
		}
	}
	if ok && !canAssign(existing, override) {
		return nil
	}
	o := origin
	if override {
		o = OriginOverride
	}
	if !ok {
		e.store(&Variable{Name: name, Flavor: FlavorRecursive, Origin: o, Raw: raw})
		return nil
	}
	if existing.Flavor == FlavorSimple {
		add, err := e.Expand(raw)
		if err != nil {
			return err
		}
		val := existing.Value
		if val != "" && add != "" {
			val += " "
		}
		val += add
		e.store(&Variable{Name: name, Flavor: FlavorSimple, Origin: o, Value: val})
		return nil
	}
	combined := existing.Raw
	if !combined.IsEmpty() && !raw.IsEmpty() {
		combined = Expr{Segs: append(append([]Segment{}, combined.Segs...), Segment{Kind: SegLiteral, Literal: " "}), Loc: combined.Loc}
		combined.Segs = append(combined.Segs, raw.Segs...)
	} else if combined.IsEmpty() {
		combined = raw
	}
	e.store(&Variable{Name: name, Flavor: FlavorRecursive, Origin: o, Raw: combined})
	return nil
}

// Undefine makes name genuinely unset in this scope rather than
// empty-valued. The parser has no `undefine` directive, so no makefile
// statement reaches it.
func (e *Environment) Undefine(name string) {
	e.store(&Variable{Name: name, NoValue: true, Origin: OriginUndefined})
}

// SetAutomatic binds one of the per-recipe automatic variables ($@, $<,
// $^, ...), always simple-flavored and tagged OriginAutomatic.
func (e *Environment) SetAutomatic(name, value string) {
	e.store(&Variable{Name: name, Flavor: FlavorSimple, Origin: OriginAutomatic, Value: value})
}

// Names returns every variable name bound in this scope or an ancestor,
// nearest-scope value winning, used by `export` with no argument list.
func (e *Environment) Names() []string {
	seen := make(map[string]bool)
	var names []string
	for env := e; env != nil; env = env.parent {
		for _, n := range env.order {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	return names
}
