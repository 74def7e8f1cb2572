// Copyright 2026 The gomake Authors
// SPDX-License-Identifier: Apache-2.0

package gomake

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TargetState is the state machine every Target moves through on its way
// to being built (§3 "Target state machine"): NEW -> RESOLVED -> READY ->
// RUNNING -> DONE(success|failure).
type TargetState int

const (
	StateNew TargetState = iota
	StateResolved
	StateReady
	StateRunning
	StateDoneSuccess
	StateDoneFailure
)

func (s TargetState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateResolved:
		return "resolved"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateDoneSuccess:
		return "done(success)"
	case StateDoneFailure:
		return "done(failure)"
	}
	return "unknown"
}

// Target is one node of the dependency graph. The Makefile is the sole
// owner of every Target; a Target refers to its prerequisites by name, not
// by pointer, so the graph has no reference cycles even when a makefile
// describes one (the scheduler, not the data structure, detects that).
type Target struct {
	Name      string
	Phony     bool
	Rule      *Rule // chosen rule, nil if none found
	Stem      string
	Prereqs   []string
	OrderOnly []string
	State     TargetState
	Mtime     time.Time
	Exists    bool
	Env       *Environment
	WasRemade bool
	Err       error

	// Siblings holds the other rule branches for a double-colon target,
	// each built independently with its own recipe (§4.4 "double-colon").
	Siblings []*Rule
}

// GetTarget returns the Target named name, creating and resolving it on
// first request (§4.4 "Target resolution"). Resolution order is: an
// explicit rule naming it exactly, then the makefile's pattern rules, then
// the built-in implicit rules (in both tiers the matching rule with
// buildable prerequisites and the shortest stem wins), then VPATH/disk
// existence with no recipe. A target
// that resolves to nothing still gets a Target record; NoRuleError is
// raised lazily, only if the scheduler actually needs to build it and it
// turns out to be missing (§4.4 "deferred to request time").
func (mf *Makefile) GetTarget(name string) *Target {
	if t, ok := mf.Targets[name]; ok {
		return t
	}
	t := &Target{Name: name, State: StateNew}
	mf.Targets[name] = t
	t.Env = NewEnvironment(mf.Global, mf)
	for _, tv := range mf.TargetVars[name] {
		_ = t.Env.Define(tv.Name, tv.Op, tv.Value, OriginFile, tv.Override)
	}
	mf.resolveTarget(t)
	return t
}

func (mf *Makefile) resolveTarget(t *Target) {
	defer func() { t.State = StateResolved }()
	if mf.Tracer != nil {
		mf.Tracer.OnTargetProcessRules(t.Name)
	}

	if rules, ok := mf.explicitRules[t.Name]; ok && len(rules) > 0 {
		if rules[0].DoubleColon {
			t.Rule = rules[0]
			t.Siblings = rules[1:]
			t.bindPrereqs(mf, rules[0], "")
		} else {
			merged := mf.mergeExplicitRuleStanzas(t.Name, rules)
			t.Rule = merged
			t.bindPrereqs(mf, merged, "")
		}
		mf.statTarget(t)
		return
	}

	if r, stem, ok := mf.selectPatternRule(mf.PatternRules, t.Name); ok {
		t.Rule = r
		t.Stem = stem
		t.bindPrereqs(mf, r, stem)
		mf.statTarget(t)
		return
	}

	if r, stem, ok := mf.selectPatternRule(implicitRuleTable, t.Name); ok {
		t.Rule = r
		t.Stem = stem
		t.bindPrereqs(mf, r, stem)
		mf.statTarget(t)
		return
	}

	mf.statTarget(t)
	if !t.Exists {
		if loc := mf.vpathLocate(t.Name); loc != "" {
			if fi, err := os.Stat(loc); err == nil {
				t.Exists = true
				t.Mtime = fi.ModTime()
			}
		}
	}
}

// mergeExplicitRuleStanzas unions the prerequisite and order-only lists of
// every single-colon rule stanza naming target, in stanza order, and picks
// the effective recipe: the last stanza with a non-empty command list wins,
// and a warning is printed if it overrides an earlier stanza that also had
// commands (§4.4 step 1). Double-colon stanzas never reach this function;
// they stay independent siblings.
func (mf *Makefile) mergeExplicitRuleStanzas(name string, rules []*Rule) *Rule {
	merged := &Rule{Targets: []string{name}, Loc: rules[0].Loc}
	seenPrereq := map[string]bool{}
	seenOrderOnly := map[string]bool{}
	var effective *Rule
	for _, r := range rules {
		for _, p := range r.Prereqs {
			if !seenPrereq[p] {
				seenPrereq[p] = true
				merged.Prereqs = append(merged.Prereqs, p)
			}
		}
		for _, p := range r.OrderOnly {
			if !seenOrderOnly[p] {
				seenOrderOnly[p] = true
				merged.OrderOnly = append(merged.OrderOnly, p)
			}
		}
		if len(r.Commands) > 0 {
			if effective != nil && len(effective.Commands) > 0 {
				fmt.Fprintf(os.Stderr, "%s: warning: overriding commands for target %q\n", r.Loc, name)
				fmt.Fprintf(os.Stderr, "%s: warning: ignoring old commands for target %q\n", effective.Loc, name)
			}
			effective = r
		}
	}
	if effective == nil {
		effective = rules[len(rules)-1]
	}
	merged.Commands = effective.Commands
	merged.TargetVars = effective.TargetVars
	return merged
}

// selectPatternRule implements §4.4 step 2/3's pattern- and implicit-rule
// search: among every rule in rules whose pattern matches name, keep the
// one whose prerequisites are buildable with the shortest captured stem,
// breaking ties in favor of the earliest-declared candidate.
func (mf *Makefile) selectPatternRule(rules []*Rule, name string) (rule *Rule, stem string, ok bool) {
	for _, r := range rules {
		candStem, matched := r.Pattern().Match(name)
		if !matched {
			continue
		}
		if !mf.prereqsBuildable(expandPercentList(r.Prereqs, candStem)) {
			continue
		}
		if rule == nil || len(candStem) < len(stem) {
			rule, stem, ok = r, candStem, true
		}
	}
	return rule, stem, ok
}

// prereqsBuildable reports whether every name in prereqs already exists (on
// disk or via VPATH), is named by an explicit rule, or matches a pattern or
// implicit rule whose own prerequisites exist or are explicit targets (§4.4
// step 2's "themselves buildable by some rule"). The lookahead is one level
// deep: a prerequisite reachable only through a chain of two or more
// pattern rules counts as unbuildable.
func (mf *Makefile) prereqsBuildable(prereqs []string) bool {
	for _, p := range prereqs {
		if mf.fileExists(p) {
			continue
		}
		if mf.vpathLocate(p) != "" {
			continue
		}
		if rules, ok := mf.explicitRules[p]; ok && len(rules) > 0 {
			continue
		}
		if mf.anyPatternMatches(mf.PatternRules, p) || mf.anyPatternMatches(implicitRuleTable, p) {
			continue
		}
		return false
	}
	return true
}

func (mf *Makefile) anyPatternMatches(rules []*Rule, name string) bool {
	for _, r := range rules {
		stem, ok := r.Pattern().Match(name)
		if !ok {
			continue
		}
		usable := true
		for _, p := range expandPercentList(r.Prereqs, stem) {
			if _, explicit := mf.explicitRules[p]; !explicit && !mf.fileExists(p) && mf.vpathLocate(p) == "" {
				usable = false
				break
			}
		}
		if usable {
			return true
		}
	}
	return false
}

// expandPercentList substitutes stem for '%' across every entry of list,
// leaving literal (non-pattern) entries untouched.
func expandPercentList(list []string, stem string) []string {
	out := make([]string, len(list))
	for i, p := range list {
		out[i] = expandPercent(p, stem)
	}
	return out
}

// implicitRuleTable is gomake's small built-in/implicit rule database,
// tried as the last resolution tier before VPATH/disk fallback (§4.4 step
// 3). It covers the handful of compile-and-link rules any C/C++ build
// actually exercises; it is not a reimplementation of GNU make's full
// default rule set.
var implicitRuleTable = buildImplicitRuleTable()

func buildImplicitRuleTable() []*Rule {
	loc := Location{File: "<builtin>"}
	cmd := func(text string) CommandStmt {
		return CommandStmt{Text: parseExprString(text, loc), Line: loc.Line, File: loc.File}
	}
	rule := func(target, prereq, recipe string) *Rule {
		return &Rule{
			Targets:  []string{target},
			Prereqs:  []string{prereq},
			Loc:      loc,
			Commands: []CommandStmt{cmd(recipe)},
		}
	}
	return []*Rule{
		rule("%.o", "%.c", "$(CC) $(CPPFLAGS) $(CFLAGS) -c -o $@ $<"),
		rule("%.o", "%.cc", "$(CXX) $(CPPFLAGS) $(CXXFLAGS) -c -o $@ $<"),
		rule("%.o", "%.cpp", "$(CXX) $(CPPFLAGS) $(CXXFLAGS) -c -o $@ $<"),
		rule("%.o", "%.s", "$(AS) $(ASFLAGS) -o $@ $<"),
		rule("%", "%.o", "$(CC) $(LDFLAGS) -o $@ $<"),
	}
}

func (t *Target) bindPrereqs(mf *Makefile, r *Rule, stem string) {
	expand := func(list []string) []string {
		out := make([]string, 0, len(list))
		for _, p := range list {
			if stem != "" {
				p = expandPercent(p, stem)
			}
			out = append(out, p)
		}
		return out
	}
	t.Prereqs = expand(r.Prereqs)
	t.OrderOnly = expand(r.OrderOnly)
}

func (mf *Makefile) statTarget(t *Target) {
	path := t.Name
	if mf.Dir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(mf.Dir, path)
	}
	if fi, err := os.Stat(path); err == nil {
		t.Exists = true
		t.Mtime = fi.ModTime()
	}
}

// fileExists reports whether name is present on disk, relative to mf.Dir
// the same way statTarget resolves a target's own path.
func (mf *Makefile) fileExists(name string) bool {
	path := name
	if mf.Dir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(mf.Dir, path)
	}
	_, err := os.Stat(path)
	return err == nil
}

// vpathLocate searches VPATH entries for a readable file matching name,
// returning its resolved path or "" (§4.4 "VPATH search").
func (mf *Makefile) vpathLocate(name string) string {
	if _, err := os.Stat(name); err == nil {
		return name
	}
	for _, entry := range mf.VPaths {
		if entry.Pattern != "" {
			if _, ok := (Pattern{Text: entry.Pattern}).Match(name); !ok {
				continue
			}
		}
		for _, dir := range entry.Dirs {
			if mf.Dir != "" && !filepath.IsAbs(dir) {
				dir = filepath.Join(mf.Dir, dir)
			}
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}

// Stale reports whether t must be (re)built: it has no file on disk, is
// marked phony, or is older than any of its normal (non-order-only)
// prerequisites (§3 "staleness", mtime-based per the engine's authoritative
// rule).
func (t *Target) Stale(mf *Makefile) bool {
	if t.Phony || !t.Exists {
		return true
	}
	for _, name := range t.Prereqs {
		p := mf.GetTarget(name)
		if !p.Exists || p.Mtime.After(t.Mtime) {
			return true
		}
	}
	return false
}
