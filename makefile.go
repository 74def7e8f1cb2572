// Copyright 2026 The gomake Authors
// SPDX-License-Identifier: Apache-2.0

package gomake

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// vpathEntry is one `vpath` directive's state.
type vpathEntry struct {
	Pattern string
	Dirs    []string
}

type targetVarAssign struct {
	Name     string
	Op       AssignOp
	Value    Expr
	Override bool
}

// Options configures a Makefile load/build, gathering what in GNU make
// would be command-line flags and NAME=VALUE overrides (§6).
type Options struct {
	Dir            string
	MakeCmd        string // absolute path to the running binary, bound to $(MAKE)
	Jobs           int
	KeepGoing      bool
	DryRun         bool
	Silent         bool
	Debug          bool
	PrintDirectory bool
	Overrides      map[string]string
	Tracer         *Tracer
	DebugLog       string
	TraceLog       string
	RestartLimit   int
}

// Makefile is the evaluated form of one or more makefiles: variable
// environment, rule set, VPATH table, and the Target graph built lazily
// from them. It is the single owner of every Rule and Target; nothing
// outside this struct holds a Target by pointer across a restart (§4.3,
// §5 "single-owner").
type Makefile struct {
	Dir            string
	Jobs           int
	KeepGoing      bool
	DryRun         bool
	Silent         bool
	Debug          bool
	PrintDirectory bool
	Tracer         *Tracer
	DebugLog       string
	TraceLog       string

	Global        *Environment
	Rules         []*Rule
	explicitRules map[string][]*Rule
	PatternRules  []*Rule
	VPaths        []vpathEntry
	DefaultGoal   string
	PhonyNames    map[string]bool
	Exported      map[string]bool
	TargetVars    map[string][]targetVarAssign
	Targets       map[string]*Target
	Included      []string
	includedSeen  map[string]bool
	currentRule   *Rule

	restartAttempt int
}

// NewMakefile builds an empty Makefile seeded with the process environment
// and any command-line overrides, ready to have files loaded into it.
func NewMakefile(opts Options) *Makefile {
	mf := &Makefile{
		Dir: opts.Dir, Jobs: opts.Jobs, KeepGoing: opts.KeepGoing, DryRun: opts.DryRun,
		Silent: opts.Silent, Debug: opts.Debug, PrintDirectory: opts.PrintDirectory, Tracer: opts.Tracer,
		DebugLog: opts.DebugLog, TraceLog: opts.TraceLog,
		explicitRules: map[string][]*Rule{},
		PhonyNames:    map[string]bool{},
		Exported:      map[string]bool{},
		TargetVars:    map[string][]targetVarAssign{},
		Targets:       map[string]*Target{},
		includedSeen:  map[string]bool{},
	}
	mf.Global = NewGlobalEnvironment(mf)
	for name, val := range opts.Overrides {
		_ = mf.Global.Define(name, OpSimple, NewLiteral(val), OriginCommandLine, false)
	}
	mf.Global.SetAutomatic("MAKE", opts.MakeCmd)
	mf.Global.SetAutomatic("MAKE_RESTARTS", "0")
	mf.Global.SetAutomatic("MAKELEVEL", os.Getenv("MAKELEVEL"))
	// Default tool variables consumed by implicitRuleTable's recipes
	// (§4.4 step 3); OriginDefault so any makefile assignment overrides
	// them without needing `override`.
	_ = mf.Global.Define("CC", OpSimple, NewLiteral("cc"), OriginDefault, false)
	_ = mf.Global.Define("CXX", OpSimple, NewLiteral("g++"), OriginDefault, false)
	_ = mf.Global.Define("AS", OpSimple, NewLiteral("as"), OriginDefault, false)
	return mf
}

// Load parses path, evaluates it, and runs the makefile-restart protocol
// (§4.3): if evaluation causes one of the files already read to be
// remade, parsing restarts from scratch against a brand-new Makefile,
// bounded by opts.RestartLimit (default 64) so a misbehaving rule cannot
// loop forever.
func Load(path string, opts Options) (*Makefile, error) {
	return LoadAll([]string{path}, opts)
}

// LoadAll is Load generalized to more than one makefile (GNU make's
// repeatable `-f`/`--file`, §6): every path is evaluated in sequence into
// the same Makefile, as if concatenated, and the whole sequence restarts
// together if any included file is remade.
func LoadAll(paths []string, opts Options) (*Makefile, error) {
	limit := opts.RestartLimit
	if limit == 0 {
		limit = 64
	}
	for attempt := 0; ; attempt++ {
		if attempt > limit {
			return nil, wrapData(Location{}, "Makefile restart limit (%d) exceeded", limit)
		}
		mf := NewMakefile(opts)
		mf.restartAttempt = attempt
		mf.Global.SetAutomatic("MAKE_RESTARTS", strconv.Itoa(attempt))
		if mf.Tracer != nil {
			mf.Tracer.OnMakefileCreate(attempt)
		}
		for _, path := range paths {
			if err := mf.LoadFile(path); err != nil {
				return nil, err
			}
		}
		mf.finishParsing()
		changed, err := mf.remakeIncluded()
		if err != nil {
			return nil, err
		}
		if !changed {
			return mf, nil
		}
	}
}

// LoadFile parses and evaluates one makefile (recursively following its
// own `include` directives) into mf.
func (mf *Makefile) LoadFile(path string) error {
	abs := path
	if mf.Dir != "" && !filepath.IsAbs(abs) {
		abs = filepath.Join(mf.Dir, path)
	}
	f, err := os.Open(abs)
	if err != nil {
		return err
	}
	defer f.Close()
	file, err := Parse(f, path)
	if err != nil {
		return err
	}
	if !mf.includedSeen[abs] {
		mf.includedSeen[abs] = true
		mf.Included = append(mf.Included, path)
	}
	return mf.eval(file.Stmts, mf.Global)
}

func (mf *Makefile) eval(stmts []Node, env *Environment) error {
	for _, n := range stmts {
		if err := mf.evalOne(n, env); err != nil {
			return err
		}
	}
	return nil
}

func (mf *Makefile) evalOne(n Node, env *Environment) error {
	switch s := n.(type) {
	case SetVariable:
		name, err := env.Expand(s.Name)
		if err != nil {
			return err
		}
		origin := OriginFile
		var assignErr error
		if s.Op == OpAppend {
			assignErr = env.Append(strings.TrimSpace(name), s.Value, origin, s.Override)
		} else {
			assignErr = env.Define(strings.TrimSpace(name), s.Op, s.Value, origin, s.Override)
		}
		return assignErr

	case DefineStmt:
		name, err := env.Expand(s.Name)
		if err != nil {
			return err
		}
		body := parseExprString(s.Body, s.Loc())
		if s.Op == OpAppend {
			return env.Append(strings.TrimSpace(name), body, OriginFile, false)
		}
		return env.Define(strings.TrimSpace(name), s.Op, body, OriginFile, false)

	case RuleStmt:
		return mf.evalRule(s, env)

	case TargetVarStmt:
		targetsText, err := env.Expand(s.Targets)
		if err != nil {
			return err
		}
		varName, err := env.Expand(s.Assign.Name)
		if err != nil {
			return err
		}
		for _, tname := range strings.Fields(targetsText) {
			mf.TargetVars[tname] = append(mf.TargetVars[tname], targetVarAssign{
				Name: strings.TrimSpace(varName), Op: s.Assign.Op, Value: s.Assign.Value, Override: s.Assign.Override,
			})
		}
		return nil

	case CommandStmt:
		if mf.currentRule == nil {
			return wrapSyntax(s.Loc(), "recipe command with no rule")
		}
		mf.currentRule.Commands = append(mf.currentRule.Commands, s)
		return nil

	case Include:
		return mf.evalInclude(s, env)

	case Conditional:
		ok, err := mf.evalCond(s, env)
		if err != nil {
			return err
		}
		if ok {
			return mf.eval(s.Then, env)
		}
		return mf.eval(s.Else, env)

	case ExportDirective:
		return mf.evalExport(s, env)

	case VPathStmt:
		return mf.evalVPath(s, env)

	case ErrorStmt:
		msg, err := env.Expand(s.Message)
		if err != nil {
			return err
		}
		return wrapData(s.Loc(), "%s", msg)

	case WarningStmt:
		msg, err := env.Expand(s.Message)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "%s: %s\n", s.Loc(), msg)
		return nil

	case InfoStmt:
		msg, err := env.Expand(s.Message)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, msg)
		return nil
	}
	return wrapSyntax(n.Loc(), "unhandled statement %T", n)
}

func (mf *Makefile) evalRule(s RuleStmt, env *Environment) error {
	targetsText, err := env.Expand(s.Targets)
	if err != nil {
		return err
	}
	prereqsText, err := env.Expand(s.Prereqs)
	if err != nil {
		return err
	}
	orderOnlyText, err := env.Expand(s.OrderOnly)
	if err != nil {
		return err
	}
	names := strings.Fields(targetsText)
	if len(names) == 0 {
		return wrapSyntax(s.Loc(), "rule has no targets")
	}
	r := &Rule{
		Targets:     names,
		Prereqs:     strings.Fields(prereqsText),
		OrderOnly:   strings.Fields(orderOnlyText),
		DoubleColon: s.DoubleColon,
		Loc:         s.Loc(),
	}
	mf.currentRule = r
	mf.Rules = append(mf.Rules, r)
	if r.IsPatternRule() {
		mf.PatternRules = append(mf.PatternRules, r)
		return nil
	}
	for _, name := range names {
		if name == ".PHONY" {
			for _, p := range r.Prereqs {
				mf.PhonyNames[p] = true
			}
			continue
		}
		mf.explicitRules[name] = append(mf.explicitRules[name], r)
	}
	if mf.DefaultGoal == "" && names[0] != ".PHONY" && !strings.HasPrefix(names[0], ".") {
		mf.DefaultGoal = names[0]
	}
	return nil
}

func (mf *Makefile) evalInclude(s Include, env *Environment) error {
	text, err := env.Expand(s.Paths)
	if err != nil {
		return err
	}
	for _, p := range strings.Fields(text) {
		if err := mf.LoadFile(p); err != nil {
			if s.Optional && os.IsNotExist(errCause(err)) {
				continue
			}
			return err
		}
	}
	return nil
}

func errCause(err error) error {
	type causer interface{ Cause() error }
	for {
		c, ok := err.(causer)
		if !ok {
			return err
		}
		err = c.Cause()
	}
}

func (mf *Makefile) evalCond(s Conditional, env *Environment) (bool, error) {
	switch s.Kind {
	case CondIfeq, CondIfneq:
		left, err := env.Expand(s.Left)
		if err != nil {
			return false, err
		}
		right, err := env.Expand(s.Right)
		if err != nil {
			return false, err
		}
		eq := left == right
		if s.Kind == CondIfneq {
			return !eq, nil
		}
		return eq, nil
	case CondIfdef, CondIfndef:
		name, err := env.Expand(s.Name)
		if err != nil {
			return false, err
		}
		v, ok := env.Lookup(strings.TrimSpace(name))
		defined := ok
		if ok {
			val, err := env.Expand(Expr{Segs: []Segment{{Kind: SegVarRef, VarName: NewLiteral(strings.TrimSpace(name))}}, Loc: s.Loc()})
			if err != nil {
				return false, err
			}
			_ = v
			defined = strings.TrimSpace(val) != ""
		}
		if s.Kind == CondIfndef {
			return !defined, nil
		}
		return defined, nil
	}
	return false, wrapSyntax(s.Loc(), "unknown conditional kind")
}

func (mf *Makefile) evalExport(s ExportDirective, env *Environment) error {
	if s.Assign != nil {
		if err := mf.evalOne(*s.Assign, env); err != nil {
			return err
		}
		name, err := env.Expand(s.Assign.Name)
		if err != nil {
			return err
		}
		mf.Exported[strings.TrimSpace(name)] = s.Export
		return nil
	}
	if s.Names.IsEmpty() {
		for _, n := range env.Names() {
			mf.Exported[n] = s.Export
		}
		return nil
	}
	text, err := env.Expand(s.Names)
	if err != nil {
		return err
	}
	for _, n := range strings.Fields(text) {
		mf.Exported[n] = s.Export
	}
	return nil
}

func (mf *Makefile) evalVPath(s VPathStmt, env *Environment) error {
	pat, err := env.Expand(s.Pattern)
	if err != nil {
		return err
	}
	pat = strings.TrimSpace(pat)
	dirsText, err := env.Expand(s.Dirs)
	if err != nil {
		return err
	}
	dirs := strings.Fields(dirsText)
	if pat == "" {
		mf.VPaths = nil
		return nil
	}
	if len(dirs) == 0 {
		kept := mf.VPaths[:0]
		for _, e := range mf.VPaths {
			if e.Pattern != pat {
				kept = append(kept, e)
			}
		}
		mf.VPaths = kept
		return nil
	}
	mf.VPaths = append(mf.VPaths, vpathEntry{Pattern: pat, Dirs: dirs})
	return nil
}

// finishParsing runs once the whole makefile tree has been read: it stamps
// .PHONY targets and orders included files deterministically for the
// remake step (§4.3).
func (mf *Makefile) finishParsing() {
	for name := range mf.PhonyNames {
		t := mf.GetTarget(name)
		t.Phony = true
	}
	sort.Strings(mf.Included)
}

// remakeIncluded implements "remake included makefiles, then restart if
// any changed" (§4.3): any included file that is also the target of an
// explicit rule is rebuilt like any other goal (pattern and implicit rules
// are not tried for included files), and a changed mtime signals the
// caller to reparse from scratch.
func (mf *Makefile) remakeIncluded() (bool, error) {
	changed := false
	for _, inc := range mf.Included {
		if _, ok := mf.explicitRules[inc]; !ok {
			continue
		}
		t := mf.GetTarget(inc)
		before := t.Mtime
		existedBefore := t.Exists
		if err := mf.Build([]string{inc}); err != nil {
			return false, err
		}
		mf.statTarget(t)
		if !existedBefore && t.Exists {
			changed = true
		} else if t.Exists && t.Mtime.After(before) {
			changed = true
		}
	}
	return changed, nil
}

// ExportedEnviron returns process-style NAME=VALUE pairs for every
// variable marked exported, used by buildSubprocessEnviron (which adds
// MAKE, MAKELEVEL and MAKEFLAGS) to build a recipe's subprocess
// environment (§4.5, §6).
func (mf *Makefile) ExportedEnviron(env *Environment) []string {
	var out []string
	for name, exported := range mf.Exported {
		if !exported {
			continue
		}
		v, ok := env.Lookup(name)
		if !ok {
			continue
		}
		val := v.Value
		if v.Flavor == FlavorRecursive {
			if s, err := env.Expand(v.Raw); err == nil {
				val = s
			}
		}
		out = append(out, name+"="+val)
	}
	return out
}
