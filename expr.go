// Copyright 2026 The gomake Authors
// SPDX-License-Identifier: Apache-2.0

package gomake

import "strings"

// --- parsing: text -> Expr ---

// parseExprString parses the unexpanded text of a variable value, rule
// target/prerequisite list, or recipe command into an Expr tree (§4.1).
func parseExprString(s string, loc Location) Expr {
	segs := parseSegs(s, loc)
	if len(segs) == 0 {
		return Expr{Loc: loc}
	}
	return Expr{Segs: segs, Loc: loc}
}

func parseSegs(s string, loc Location) []Segment {
	var segs []Segment
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			segs = append(segs, Segment{Kind: SegLiteral, Literal: lit.String()})
			lit.Reset()
		}
	}
	i := 0
	for i < len(s) {
		c := s[i]
		if c != '$' {
			lit.WriteByte(c)
			i++
			continue
		}
		i++
		if i >= len(s) {
			lit.WriteByte('$')
			break
		}
		switch {
		case s[i] == '$':
			lit.WriteByte('$')
			i++
		case s[i] == '(' || s[i] == '{':
			end := findMatchingDelim(s, i)
			if end < 0 {
				lit.WriteByte('$')
				lit.WriteByte(s[i])
				i++
				continue
			}
			inner := s[i+1 : end]
			flush()
			segs = append(segs, parseDollarParen(inner, loc))
			i = end + 1
		default:
			flush()
			segs = append(segs, Segment{Kind: SegVarRef, VarName: NewLiteral(s[i : i+1])})
			i++
		}
	}
	flush()
	return segs
}

// parseDollarParen parses the text between a $( or ${ and its matching
// close, as one of: a substitution reference ($(VAR:from=to)), a builtin
// function call (first top-level whitespace follows a known name), or a
// plain (possibly computed) variable reference (§4.1/§4.2).
func parseDollarParen(inner string, loc Location) Segment {
	if name, from, to, ok := trySubstRef(inner); ok {
		return Segment{Kind: SegFuncCall, Func: "$subst", Args: []Expr{
			parseExprString(name, loc), parseExprString(from, loc), parseExprString(to, loc),
		}}
	}
	if name, rest, ok := splitFuncHead(inner); ok && isBuiltinFuncName(name) {
		parts := splitArgsN(rest, funcArity[name])
		argExprs := make([]Expr, 0, len(parts))
		for _, a := range parts {
			argExprs = append(argExprs, parseExprString(a, loc))
		}
		return Segment{Kind: SegFuncCall, Func: name, Args: argExprs}
	}
	return Segment{Kind: SegVarRef, VarName: parseExprString(inner, loc)}
}

// firstTopLevel returns the index and byte of the first character of s
// that is one of targets and sits outside any (...)/{...} nesting.
func firstTopLevel(s, targets string) (int, byte) {
	depth := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '(', '{':
			depth++
			continue
		case ')', '}':
			if depth > 0 {
				depth--
			}
			continue
		}
		if depth != 0 {
			continue
		}
		if strings.IndexByte(targets, c) >= 0 {
			return i, c
		}
	}
	return -1, 0
}

// trySubstRef recognizes the $(VAR:from=to) substitution-reference form,
// which is not a function call: it is distinguished from one by having no
// top-level whitespace before its colon.
func trySubstRef(inner string) (name, from, to string, ok bool) {
	idx, ch := firstTopLevel(inner, " \t:")
	if idx < 0 || ch != ':' {
		return "", "", "", false
	}
	rest := inner[idx+1:]
	eqIdx, eqCh := firstTopLevel(rest, "=")
	if eqIdx < 0 || eqCh != '=' {
		return "", "", "", false
	}
	return inner[:idx], rest[:eqIdx], rest[eqIdx+1:], true
}

func splitFuncHead(inner string) (name, rest string, ok bool) {
	idx, _ := firstTopLevel(inner, " \t")
	if idx < 0 {
		return "", "", false
	}
	return inner[:idx], inner[idx+1:], true
}

// --- expansion: Expr -> string ---

// evalCtx threads the environment, a variable-reference cycle-detection
// stack, and a diagnostic Location through one top-level expansion.
type evalCtx struct {
	env      *Environment
	stack    []string
	location Location
}

func (ctx *evalCtx) loc() Location { return ctx.location }

func (ctx *evalCtx) arg(args []Expr, i int) Expr {
	if i < len(args) {
		return args[i]
	}
	return Expr{}
}

func (ctx *evalCtx) expandExpr(e Expr) (string, error) {
	if len(e.Segs) == 0 {
		return "", nil
	}
	var b strings.Builder
	for _, seg := range e.Segs {
		switch seg.Kind {
		case SegLiteral:
			b.WriteString(seg.Literal)
		case SegVarRef:
			name, err := ctx.expandExpr(seg.VarName)
			if err != nil {
				return "", err
			}
			v, err := ctx.expandVarByName(name)
			if err != nil {
				return "", err
			}
			b.WriteString(v)
		case SegFuncCall:
			v, err := evalFunc(ctx, seg.Func, seg.Args)
			if err != nil {
				return "", err
			}
			b.WriteString(v)
		}
	}
	return b.String(), nil
}

func (ctx *evalCtx) expandVarByName(name string) (string, error) {
	for _, s := range ctx.stack {
		if s == name {
			return "", wrapData(ctx.loc(), "variable %q references itself (possibly indirectly)", name)
		}
	}
	v, ok := ctx.env.Lookup(name)
	if !ok {
		return "", nil
	}
	if v.Flavor == FlavorSimple {
		return v.Value, nil
	}
	child := &evalCtx{env: ctx.env, stack: append(append([]string{}, ctx.stack...), name), location: ctx.location}
	return child.expandExpr(v.Raw)
}

func (ctx *evalCtx) expand1(args []Expr) (string, error) {
	return ctx.expandExpr(ctx.arg(args, 0))
}

func (ctx *evalCtx) expand2(args []Expr) (string, string, error) {
	a, err := ctx.expandExpr(ctx.arg(args, 0))
	if err != nil {
		return "", "", err
	}
	b, err := ctx.expandExpr(ctx.arg(args, 1))
	if err != nil {
		return "", "", err
	}
	return a, b, nil
}

type valErr struct {
	val string
	err error
}

func (ctx *evalCtx) try(args []Expr, i int) valErr {
	v, err := ctx.expandExpr(ctx.arg(args, i))
	return valErr{val: v, err: err}
}

func (ctx *evalCtx) expand3(args []Expr) (valErr, valErr, valErr) {
	return ctx.try(args, 0), ctx.try(args, 1), ctx.try(args, 2)
}

func firstErr(vs ...valErr) error {
	for _, v := range vs {
		if v.err != nil {
			return v.err
		}
	}
	return nil
}

// Expand is the public entry point: expand text in this environment,
// starting a fresh cycle-detection stack (§4.2).
func (e *Environment) Expand(expr Expr) (string, error) {
	ctx := &evalCtx{env: e, location: expr.Loc}
	return ctx.expandExpr(expr)
}

// ExpandString is a convenience for expanding raw source text directly,
// for callers that never built an Expr (in this repository, the tests).
func (e *Environment) ExpandString(s string, loc Location) (string, error) {
	return e.Expand(parseExprString(s, loc))
}
