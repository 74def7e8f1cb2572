// Copyright 2026 The gomake Authors
// SPDX-License-Identifier: Apache-2.0

package gomake

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/gomake-project/gomake/internal/cliflags"
	"mvdan.cc/sh/v3/syntax"
)

// automaticVars binds $@ $< $^ $+ $? $* and their D/F suffixed variants
// into a fresh child of t.Env for one recipe invocation (§4.2 "automatic
// variables").
func automaticVars(mf *Makefile, t *Target, rule *Rule) *Environment {
	env := NewEnvironment(t.Env, mf)
	prereqs := rule.Prereqs
	if t.Stem != "" {
		expanded := make([]string, len(prereqs))
		for i, p := range prereqs {
			expanded[i] = expandPercent(p, t.Stem)
		}
		prereqs = expanded
	}
	var newer []string
	for _, p := range prereqs {
		pt := mf.GetTarget(p)
		if !pt.Exists || pt.Mtime.After(t.Mtime) {
			newer = append(newer, p)
		}
	}
	first := ""
	if len(prereqs) > 0 {
		first = prereqs[0]
	}
	set := func(name, value string) {
		env.SetAutomatic(name, value)
		env.SetAutomatic(name+"D", dirOf(value))
		env.SetAutomatic(name+"F", notdirOf(value))
	}
	set("@", t.Name)
	set("<", first)
	set("^", uniqueJoin(prereqs))
	set("+", strings.Join(prereqs, " "))
	set("?", strings.Join(newer, " "))
	set("*", t.Stem)
	return env
}

func dirOf(p string) string {
	if p == "" {
		return ""
	}
	return mapWords(p, func(w string) string { return trimTrailingSlash(dirname(w)) })
}

func notdirOf(p string) string {
	if p == "" {
		return ""
	}
	return mapWords(p, basenameOf)
}

func uniqueJoin(words []string) string {
	seen := make(map[string]bool, len(words))
	var out []string
	for _, w := range words {
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	return strings.Join(out, " ")
}

// runRecipe expands and executes every command of rule for t, in order,
// honoring the `@`/`-`/`+` line modifiers and `.SILENT`/dry-run (§4.5).
func runRecipe(mf *Makefile, t *Target, rule *Rule) error {
	env := automaticVars(mf, t, rule)
	if mf.Tracer != nil {
		mf.Tracer.OnRuleContextProcessCommands(t.Name, len(rule.Commands))
	}
	silentTarget := mf.Silent
	for _, r := range mf.explicitRules[".SILENT"] {
		if len(r.Prereqs) == 0 {
			silentTarget = true
		}
		for _, p := range r.Prereqs {
			if p == t.Name {
				silentTarget = true
			}
		}
	}
	for jobID, cmd := range rule.Commands {
		text, err := env.Expand(cmd.Text)
		if err != nil {
			return err
		}
		line := strings.TrimLeft(text, " \t")
		silent := silentTarget
		ignoreErr := false
		forceRun := false
	modifiers:
		for len(line) > 0 {
			switch line[0] {
			case '@':
				silent = true
				line = strings.TrimLeft(line[1:], " \t")
			case '-':
				ignoreErr = true
				line = strings.TrimLeft(line[1:], " \t")
			case '+':
				forceRun = true
				line = strings.TrimLeft(line[1:], " \t")
			default:
				break modifiers
			}
		}
		if line == "" {
			continue
		}
		if !silent {
			fmt.Fprintln(os.Stdout, line)
		}
		if mf.Tracer != nil {
			mf.Tracer.OnCommandRun(t.Name, line)
		}
		if mf.DryRun && !forceRun && !isSubmakeInvocation(exprLiteralText(cmd.Text)) {
			continue
		}
		if mf.Tracer != nil {
			mf.Tracer.OnJobStart(t.Name, line, jobID)
		}
		err = runOneCommand(mf, t, env, line)
		if mf.Tracer != nil {
			mf.Tracer.OnJobFinish(t.Name, jobID, err == nil)
		}
		if err != nil {
			if ignoreErr {
				continue
			}
			if !t.Phony {
				removePartialOutput(mf, t)
			}
			return &CommandError{Target: t.Name, Cmd: line, Code: exitCode(err)}
		}
	}
	return nil
}

// isSubmakeInvocation reports whether the unexpanded recipe text line
// references $(MAKE)/${MAKE}, which must run even under -n (§4.5 "the
// reference permits"); the shell grammar, not a substring search, tells a
// real reference from one inside a single-quoted string.
func isSubmakeInvocation(line string) bool {
	f := syntax.NewParser()
	stmts, err := f.Parse(strings.NewReader(line), "")
	if err != nil {
		return strings.Contains(line, "$(MAKE)") || strings.Contains(line, "${MAKE}")
	}
	found := false
	syntax.Walk(stmts, func(node syntax.Node) bool {
		if pe, ok := node.(*syntax.ParamExp); ok && pe.Param != nil && pe.Param.Value == "MAKE" {
			found = true
			return false
		}
		if cs, ok := node.(*syntax.CmdSubst); ok && len(cs.Stmts) == 1 {
			if call, ok := cs.Stmts[0].Cmd.(*syntax.CallExpr); ok && len(call.Args) == 1 && call.Args[0].Lit() == "MAKE" {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

// runOneCommand dispatches line either straight to os/exec (when it parses
// as a single plain command with no shell metacharacters) or through
// `sh -c`, grounded in the shell-grammar detection the DOMAIN STACK
// describes.
func runOneCommand(mf *Makefile, t *Target, env *Environment, line string) error {
	argv, direct := tryDirectExec(line)
	var cmd *exec.Cmd
	if direct && len(argv) > 0 {
		cmd = exec.Command(argv[0], argv[1:]...)
	} else {
		cmd = exec.Command("sh", "-c", "set -e\n"+line)
	}
	cmd.Dir = mf.Dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = buildSubprocessEnviron(mf, env)
	return cmd.Run()
}

// tryDirectExec reports whether line parses as a single bare command with
// no pipes, redirections, substitutions or control structures, in which
// case it can bypass the shell entirely.
func tryDirectExec(line string) ([]string, bool) {
	p := syntax.NewParser()
	file, err := p.Parse(strings.NewReader(line), "")
	if err != nil || len(file.Stmts) != 1 {
		return nil, false
	}
	stmt := file.Stmts[0]
	if stmt.Negated || len(stmt.Redirs) != 0 {
		return nil, false
	}
	call, ok := stmt.Cmd.(*syntax.CallExpr)
	if !ok || len(call.Assigns) != 0 {
		return nil, false
	}
	var argv []string
	for _, w := range call.Args {
		if len(w.Parts) != 1 {
			return nil, false
		}
		lit, ok := w.Parts[0].(*syntax.Lit)
		if !ok {
			return nil, false
		}
		argv = append(argv, lit.Value)
	}
	if len(argv) == 0 {
		return nil, false
	}
	return argv, true
}

func buildSubprocessEnviron(mf *Makefile, env *Environment) []string {
	base := os.Environ()
	base = append(base, mf.ExportedEnviron(env)...)
	if v, ok := env.Lookup("MAKE"); ok {
		val := v.Value
		if v.Flavor != FlavorSimple {
			if s, err := env.Expand(v.Raw); err == nil {
				val = s
			}
		}
		base = append(base, "MAKE="+val)
	}
	base = append(base, "MAKELEVEL="+cliflags.NextLevel(os.Getenv("MAKELEVEL")))
	base = append(base, "MAKEFLAGS="+cliflags.Derive(cliflags.Resolved{
		KeepGoing: mf.KeepGoing, Silent: mf.Silent, DryRun: mf.DryRun, Debug: mf.Debug,
		Jobs:      mf.Jobs,
		DebugLog:  mf.DebugLog,
		TraceLog:  mf.TraceLog,
	}))
	return base
}

func removePartialOutput(mf *Makefile, t *Target) {
	path := t.Name
	if mf.Dir != "" {
		path = mf.Dir + string(os.PathSeparator) + path
	}
	_ = os.Remove(path)
}

func exitCode(err error) int {
	if ee, ok := err.(*exec.ExitError); ok {
		return ee.ExitCode()
	}
	return 1
}

func dirname(p string) string {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return "."
	}
	if i == 0 {
		return "/"
	}
	return p[:i]
}

func trimTrailingSlash(p string) string {
	if !strings.HasSuffix(p, "/") {
		return p + "/"
	}
	return p
}

func basenameOf(p string) string {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return p
	}
	return p[i+1:]
}
