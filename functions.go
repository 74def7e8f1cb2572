// Copyright 2026 The gomake Authors
// SPDX-License-Identifier: Apache-2.0

package gomake

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// funcArity maps a builtin function name to the number of top-level commas
// its argument list is split on: n means "split into at most n parts, the
// final part keeping any further commas", -1 means "split on every
// top-level comma" (variadic: or, and, call). This mirrors GNU make's
// per-function argument handling described in §4.2.
var funcArity = map[string]int{
	"subst":      3,
	"patsubst":   3,
	"strip":      1,
	"findstring": 2,
	"filter":     2,
	"filter-out": 2,
	"sort":       1,
	"word":       2,
	"words":      1,
	"wordlist":   3,
	"firstword":  1,
	"lastword":   1,
	"dir":        1,
	"notdir":     1,
	"suffix":     1,
	"basename":   1,
	"addprefix":  2,
	"addsuffix":  2,
	"join":       2,
	"wildcard":   1,
	"realpath":   1,
	"abspath":    1,
	"if":         3,
	"or":         -1,
	"and":        -1,
	"foreach":    3,
	"call":       -1,
	"eval":       1,
	"origin":     1,
	"flavor":     1,
	"shell":      1,
	"error":      1,
	"warning":    1,
	"info":       1,
	"value":      1,
}

func isBuiltinFuncName(name string) bool {
	_, ok := funcArity[name]
	return ok
}

// evalFunc evaluates one function-call segment. ctx carries the
// environment and the cycle-detection stack used for recursive variable
// expansion (§4.2 "Expression evaluation").
func evalFunc(ctx *evalCtx, name string, args []Expr) (string, error) {
	switch name {
	case "$subst":
		return evalSubstRef(ctx, args)
	case "subst":
		from, to, text := ctx.expand3(args)
		if from.err != nil {
			return "", from.err
		}
		return strings.ReplaceAll(text.val, from.val, to.val), firstErr(from, to, text)
	case "patsubst":
		pat, repl, text := ctx.expand3(args)
		if err := firstErr(pat, repl, text); err != nil {
			return "", err
		}
		return patsubstWords(pat.val, repl.val, text.val), nil
	case "strip":
		s, err := ctx.expand1(args)
		if err != nil {
			return "", err
		}
		return strings.Join(strings.Fields(s), " "), nil
	case "findstring":
		needle, hay, err := ctx.expand2(args)
		if err != nil {
			return "", err
		}
		if strings.Contains(hay, needle) {
			return needle, nil
		}
		return "", nil
	case "filter":
		pats, text, err := ctx.expand2(args)
		if err != nil {
			return "", err
		}
		return strings.Join(filterWords(strings.Fields(pats), strings.Fields(text), true), " "), nil
	case "filter-out":
		pats, text, err := ctx.expand2(args)
		if err != nil {
			return "", err
		}
		return strings.Join(filterWords(strings.Fields(pats), strings.Fields(text), false), " "), nil
	case "sort":
		s, err := ctx.expand1(args)
		if err != nil {
			return "", err
		}
		words := strings.Fields(s)
		sort.Strings(words)
		words = uniqueSorted(words)
		return strings.Join(words, " "), nil
	case "word":
		nStr, text, err := ctx.expand2(args)
		if err != nil {
			return "", err
		}
		n, convErr := strconv.Atoi(strings.TrimSpace(nStr))
		if convErr != nil || n < 1 {
			return "", wrapData(ctx.loc(), "$(word): index %q must be a positive integer", nStr)
		}
		words := strings.Fields(text)
		if n > len(words) {
			return "", nil
		}
		return words[n-1], nil
	case "words":
		s, err := ctx.expand1(args)
		if err != nil {
			return "", err
		}
		return strconv.Itoa(len(strings.Fields(s))), nil
	case "wordlist":
		sStr, eStr, text := ctx.expand3(args)
		if err := firstErr(sStr, eStr, text); err != nil {
			return "", err
		}
		start, e1 := strconv.Atoi(strings.TrimSpace(sStr.val))
		end, e2 := strconv.Atoi(strings.TrimSpace(eStr.val))
		if e1 != nil || e2 != nil || start < 1 {
			return "", wrapData(ctx.loc(), "$(wordlist): invalid bounds %q,%q", sStr.val, eStr.val)
		}
		words := strings.Fields(text.val)
		if start > len(words) {
			return "", nil
		}
		if end > len(words) {
			end = len(words)
		}
		if end < start {
			return "", nil
		}
		return strings.Join(words[start-1:end], " "), nil
	case "firstword":
		s, err := ctx.expand1(args)
		if err != nil {
			return "", err
		}
		words := strings.Fields(s)
		if len(words) == 0 {
			return "", nil
		}
		return words[0], nil
	case "lastword":
		s, err := ctx.expand1(args)
		if err != nil {
			return "", err
		}
		words := strings.Fields(s)
		if len(words) == 0 {
			return "", nil
		}
		return words[len(words)-1], nil
	case "dir":
		s, err := ctx.expand1(args)
		if err != nil {
			return "", err
		}
		return mapWords(s, func(w string) string { return filepath.Dir(w) + "/" }), nil
	case "notdir":
		s, err := ctx.expand1(args)
		if err != nil {
			return "", err
		}
		return mapWords(s, filepath.Base), nil
	case "suffix":
		s, err := ctx.expand1(args)
		if err != nil {
			return "", err
		}
		var out []string
		for _, w := range strings.Fields(s) {
			if ext := filepath.Ext(w); ext != "" {
				out = append(out, ext)
			}
		}
		return strings.Join(out, " "), nil
	case "basename":
		s, err := ctx.expand1(args)
		if err != nil {
			return "", err
		}
		return mapWords(s, func(w string) string {
			return strings.TrimSuffix(w, filepath.Ext(w))
		}), nil
	case "addprefix":
		prefix, text, err := ctx.expand2(args)
		if err != nil {
			return "", err
		}
		return mapWords(text, func(w string) string { return prefix + w }), nil
	case "addsuffix":
		suffix, text, err := ctx.expand2(args)
		if err != nil {
			return "", err
		}
		return mapWords(text, func(w string) string { return w + suffix }), nil
	case "join":
		a, b, err := ctx.expand2(args)
		if err != nil {
			return "", err
		}
		return joinWords(strings.Fields(a), strings.Fields(b)), nil
	case "wildcard":
		s, err := ctx.expand1(args)
		if err != nil {
			return "", err
		}
		return strings.Join(expandWildcards(ctx.env.mf, strings.Fields(s)), " "), nil
	case "realpath":
		s, err := ctx.expand1(args)
		if err != nil {
			return "", err
		}
		return mapWords(s, func(w string) string {
			p, rerr := filepath.EvalSymlinks(w)
			if rerr != nil {
				return ""
			}
			abs, aerr := filepath.Abs(p)
			if aerr != nil {
				return ""
			}
			return abs
		}), nil
	case "abspath":
		s, err := ctx.expand1(args)
		if err != nil {
			return "", err
		}
		return mapWords(s, func(w string) string {
			abs, aerr := filepath.Abs(w)
			if aerr != nil {
				return w
			}
			return filepath.Clean(abs)
		}), nil
	case "if":
		if len(args) < 2 {
			return "", wrapData(ctx.loc(), "$(if) requires at least 2 arguments")
		}
		cond, err := ctx.expandExpr(args[0])
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(cond) != "" {
			return ctx.expandExpr(args[1])
		}
		if len(args) >= 3 {
			return ctx.expandExpr(args[2])
		}
		return "", nil
	case "or":
		for _, a := range args {
			v, err := ctx.expandExpr(a)
			if err != nil {
				return "", err
			}
			if strings.TrimSpace(v) != "" {
				return v, nil
			}
		}
		return "", nil
	case "and":
		var last string
		for _, a := range args {
			v, err := ctx.expandExpr(a)
			if err != nil {
				return "", err
			}
			if strings.TrimSpace(v) == "" {
				return "", nil
			}
			last = v
		}
		return last, nil
	case "foreach":
		if len(args) != 3 {
			return "", wrapData(ctx.loc(), "$(foreach) requires 3 arguments")
		}
		varName, err := ctx.expandExpr(args[0])
		if err != nil {
			return "", err
		}
		list, err := ctx.expandExpr(args[1])
		if err != nil {
			return "", err
		}
		var out []string
		for _, w := range strings.Fields(list) {
			child := NewEnvironment(ctx.env, ctx.env.mf)
			child.SetAutomatic(strings.TrimSpace(varName), w)
			childCtx := &evalCtx{env: child, stack: ctx.stack}
			v, err := childCtx.expandExpr(args[2])
			if err != nil {
				return "", err
			}
			out = append(out, v)
		}
		return strings.Join(out, " "), nil
	case "call":
		return evalCall(ctx, args)
	case "eval":
		s, err := ctx.expand1(args)
		if err != nil {
			return "", err
		}
		mf := ctx.env.mf
		if mf == nil {
			return "", nil
		}
		file, err := Parse(strings.NewReader(s), ctx.loc().File)
		if err != nil {
			return "", err
		}
		return "", mf.eval(file.Stmts, mf.Global)
	case "origin":
		n, err := ctx.expand1(args)
		if err != nil {
			return "", err
		}
		return ctx.env.Origin(strings.TrimSpace(n)).String(), nil
	case "flavor":
		n, err := ctx.expand1(args)
		if err != nil {
			return "", err
		}
		if ctx.env.Flavor(strings.TrimSpace(n)) == FlavorSimple {
			return "simple", nil
		}
		return "recursive", nil
	case "value":
		n, err := ctx.expand1(args)
		if err != nil {
			return "", err
		}
		v, ok := ctx.env.Lookup(strings.TrimSpace(n))
		if !ok {
			return "", nil
		}
		if v.Flavor == FlavorSimple {
			return v.Value, nil
		}
		return exprLiteralText(v.Raw), nil
	case "shell":
		s, err := ctx.expand1(args)
		if err != nil {
			return "", err
		}
		return ctx.env.mf.runShellCapture(s)
	case "error":
		s, err := ctx.expand1(args)
		if err != nil {
			return "", err
		}
		return "", wrapData(ctx.loc(), "%s", s)
	case "warning":
		s, err := ctx.expand1(args)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(os.Stderr, "%s: %s\n", ctx.loc(), s)
		return "", nil
	case "info":
		s, err := ctx.expand1(args)
		if err != nil {
			return "", err
		}
		fmt.Fprintln(os.Stdout, s)
		return "", nil
	}
	return "", wrapData(ctx.loc(), "unknown function %q", name)
}

func evalCall(ctx *evalCtx, args []Expr) (string, error) {
	if len(args) == 0 {
		return "", wrapData(ctx.loc(), "$(call) requires a function name")
	}
	name, err := ctx.expandExpr(args[0])
	if err != nil {
		return "", err
	}
	name = strings.TrimSpace(name)
	v, ok := ctx.env.Lookup(name)
	if !ok {
		return "", nil
	}
	child := NewEnvironment(ctx.env, ctx.env.mf)
	child.SetAutomatic("0", name)
	for i, a := range args[1:] {
		val, err := ctx.expandExpr(a)
		if err != nil {
			return "", err
		}
		child.SetAutomatic(strconv.Itoa(i+1), val)
	}
	childCtx := &evalCtx{env: child, stack: append(append([]string{}, ctx.stack...), "$(call "+name+")")}
	if v.Flavor == FlavorSimple {
		return childCtx.expandExpr(NewLiteral(v.Value))
	}
	return childCtx.expandExpr(v.Raw)
}

func evalSubstRef(ctx *evalCtx, args []Expr) (string, error) {
	if len(args) != 3 {
		return "", wrapData(ctx.loc(), "malformed substitution reference")
	}
	name, err := ctx.expandExpr(args[0])
	if err != nil {
		return "", err
	}
	from, to, err := ctx.expand2(args[1:])
	if err != nil {
		return "", err
	}
	if !strings.Contains(from, "%") {
		from, to = "%"+from, "%"+to
	}
	v, ok := ctx.env.Lookup(strings.TrimSpace(name))
	if !ok {
		return "", nil
	}
	var text string
	if v.Flavor == FlavorSimple {
		text = v.Value
	} else {
		text, err = ctx.expandExpr(v.Raw)
		if err != nil {
			return "", err
		}
	}
	return patsubstWords(from, to, text), nil
}

// patsubstWords applies a %-pattern substitution to every whitespace-
// separated word of text (§4.2 "patsubst", and the $(var:pat=repl) form).
func patsubstWords(pat, repl, text string) string {
	words := strings.Fields(text)
	for i, w := range words {
		if stem, ok := matchPercent(pat, w); ok {
			words[i] = expandPercent(repl, stem)
		}
	}
	return strings.Join(words, " ")
}

// matchPercent matches a single %-pattern (at most one '%') against w,
// returning the stem captured by % if it matches.
func matchPercent(pat, w string) (string, bool) {
	i := strings.IndexByte(pat, '%')
	if i < 0 {
		if pat == w {
			return "", true
		}
		return "", false
	}
	prefix, suffix := pat[:i], pat[i+1:]
	if !strings.HasPrefix(w, prefix) || !strings.HasSuffix(w, suffix) {
		return "", false
	}
	if len(prefix)+len(suffix) > len(w) {
		return "", false
	}
	return w[len(prefix) : len(w)-len(suffix)], true
}

func expandPercent(repl, stem string) string {
	i := strings.IndexByte(repl, '%')
	if i < 0 {
		return repl
	}
	return repl[:i] + stem + repl[i+1:]
}

func filterWords(pats, words []string, keep bool) []string {
	var out []string
	for _, w := range words {
		matched := false
		for _, p := range pats {
			if _, ok := matchPercent(p, w); ok {
				matched = true
				break
			}
		}
		if matched == keep {
			out = append(out, w)
		}
	}
	return out
}

func uniqueSorted(words []string) []string {
	if len(words) == 0 {
		return words
	}
	out := words[:1]
	for _, w := range words[1:] {
		if w != out[len(out)-1] {
			out = append(out, w)
		}
	}
	return out
}

func mapWords(s string, f func(string) string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = f(w)
	}
	return strings.Join(words, " ")
}

func joinWords(a, b []string) string {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		var av, bv string
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		out = append(out, av+bv)
	}
	return strings.Join(out, " ")
}

func expandWildcards(mf *Makefile, patterns []string) []string {
	var out []string
	for _, pat := range patterns {
		dir := ""
		if mf != nil {
			dir = mf.Dir
		}
		full := pat
		if dir != "" && !filepath.IsAbs(pat) {
			full = filepath.Join(dir, pat)
		}
		matches, err := filepath.Glob(full)
		if err != nil {
			continue
		}
		for _, m := range matches {
			if dir != "" {
				if rel, rerr := filepath.Rel(dir, m); rerr == nil {
					m = rel
				}
			}
			out = append(out, m)
		}
	}
	return out
}

// runShellCapture runs cmd through sh -c and returns its stdout with
// trailing newlines stripped and internal newlines folded to spaces, the
// way GNU make's $(shell) does (§4.2).
func (mf *Makefile) runShellCapture(cmdline string) (string, error) {
	cmd := exec.Command("sh", "-c", cmdline)
	cmd.Dir = mf.Dir
	cmd.Stderr = os.Stderr
	out, err := cmd.Output()
	_ = err // $(shell) failures are silent in GNU make; only the output (possibly empty) matters
	s := strings.TrimRight(string(out), "\n")
	return strings.ReplaceAll(s, "\n", " "), nil
}

func exprLiteralText(e Expr) string {
	var b strings.Builder
	for _, seg := range e.Segs {
		switch seg.Kind {
		case SegLiteral:
			b.WriteString(seg.Literal)
		case SegVarRef:
			b.WriteString("$(")
			b.WriteString(exprLiteralText(seg.VarName))
			b.WriteString(")")
		case SegFuncCall:
			b.WriteString("$(")
			b.WriteString(seg.Func)
			for _, a := range seg.Args {
				b.WriteString(",")
				b.WriteString(exprLiteralText(a))
			}
			b.WriteString(")")
		}
	}
	return b.String()
}
