// Copyright 2026 The gomake Authors
// SPDX-License-Identifier: Apache-2.0

package gomake

import (
	"bufio"
	"io"
	"strings"
)

// parser turns raw physical lines into a statement tree. It mirrors the
// line-buffering shape of the dialect parser this package grew out of:
// lines are read upfront into a slice and walked with an explicit cursor
// rather than through a streaming tokenizer, which keeps backtracking for
// line-continuation and recipe-context decisions simple.
type parser struct {
	lines    []string
	pos      int
	file     string
	inRecipe bool

	// hasInlineRecipe/inlineRecipeText/inlineRecipeLine carry a recipe
	// command written after a ';' on a rule-header line (e.g.
	// "all: ; @echo hi") from scanAndBuild back to parseBlock, which
	// appends it as its own CommandStmt right after the RuleStmt.
	hasInlineRecipe  bool
	inlineRecipeText string
	inlineRecipeLine int
}

// Parse reads one makefile from r and returns its statement tree. It does
// not expand any variable or evaluate any conditional; that happens later
// when a Makefile evaluates the returned File (§4.3).
func Parse(r io.Reader, filename string) (*File, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	p := &parser{lines: lines, file: filename}
	stmts, err := p.parseBlock(false)
	if err != nil {
		return nil, err
	}
	return &File{Stmts: stmts, Path: filename}, nil
}

// --- cursor primitives ---

func (p *parser) peekRaw() (string, bool) {
	if p.pos >= len(p.lines) {
		return "", false
	}
	return p.lines[p.pos], true
}

func (p *parser) nextRaw() (string, int, bool) {
	if p.pos >= len(p.lines) {
		return "", 0, false
	}
	line := p.lines[p.pos]
	lineNum := p.pos + 1
	p.pos++
	return line, lineNum, true
}

func (p *parser) peekTrimmed() (string, bool) {
	raw, ok := p.peekRaw()
	if !ok {
		return "", false
	}
	return strings.TrimSpace(raw), true
}

// readRecipeLine consumes one tab-prefixed recipe line, following backslash
// continuations literally (the shell, not make, interprets them) per §4.1's
// "recipe lines join on a trailing backslash, preserving the backslash and
// newline for the shell to interpret."
func (p *parser) readRecipeLine() (string, int) {
	line, lineNum, _ := p.nextRaw()
	text := strings.TrimPrefix(line, "\t")
	for endsInLoneBackslash(text) {
		next, ok := p.peekRaw()
		if !ok {
			break
		}
		p.pos++
		text += "\n" + next
	}
	return text, lineNum
}

func endsInLoneBackslash(s string) bool {
	n := 0
	for n < len(s) && s[len(s)-1-n] == '\\' {
		n++
	}
	return n%2 == 1
}

// readLogicalLine consumes one non-recipe statement, folding each
// backslash-newline continuation into a single space (§4.1).
func (p *parser) readLogicalLine() (string, int) {
	line, lineNum, _ := p.nextRaw()
	text := strings.TrimSpace(line)
	for endsInLoneBackslash(text) {
		text = strings.TrimRight(text[:len(text)-1], " \t")
		next, ok := p.peekRaw()
		if !ok {
			break
		}
		p.pos++
		text += " " + strings.TrimSpace(next)
	}
	return text, lineNum
}

// parseBlock parses statements until EOF or, when inConditional, until it
// reaches a terminating "else"/"else if..."/"endif" line (left unconsumed
// for the caller).
func (p *parser) parseBlock(inConditional bool) ([]Node, error) {
	var stmts []Node
	for {
		raw, ok := p.peekRaw()
		if !ok {
			return stmts, nil
		}
		if raw == "" {
			p.pos++
			continue
		}
		if raw[0] == '\t' {
			if !p.inRecipe {
				return nil, wrapSyntax(Location{File: p.file, Line: p.pos + 1}, "missing separator")
			}
			text, lineNum := p.readRecipeLine()
			stmts = append(stmts, CommandStmt{
				Text: parseExprString(text, Location{File: p.file, Line: lineNum}),
				Line: lineNum, File: p.file,
			})
			continue
		}
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			p.pos++
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			p.pos++
			continue
		}
		if inConditional && isCondTerminator(trimmed) {
			return stmts, nil
		}
		if strings.HasPrefix(trimmed, "define ") || trimmed == "define" {
			stmt, err := p.parseDefine(trimmed)
			if err != nil {
				return nil, err
			}
			p.inRecipe = false
			stmts = append(stmts, stmt)
			continue
		}
		p.inRecipe = false
		logical, lineNum := p.readLogicalLine()
		node, err := p.parseStatement(logical, lineNum)
		if err != nil {
			return nil, err
		}
		if node == nil {
			continue
		}
		if _, isRule := node.(RuleStmt); isRule {
			p.inRecipe = true
		}
		stmts = append(stmts, node)
		if p.hasInlineRecipe {
			loc := Location{File: p.file, Line: p.inlineRecipeLine}
			stmts = append(stmts, CommandStmt{
				Text: parseExprString(p.inlineRecipeText, loc),
				Line: p.inlineRecipeLine, File: p.file,
			})
			p.hasInlineRecipe = false
		}
	}
}

func isCondTerminator(trimmed string) bool {
	return trimmed == "endif" || trimmed == "else" || strings.HasPrefix(trimmed, "else ") || strings.HasPrefix(trimmed, "else\t")
}

// parseDefine consumes a `define NAME [op]` header line already peeked (but
// not consumed) and every raw body line up to and including the matching
// `endef`.
func (p *parser) parseDefine(headerTrimmed string) (Node, error) {
	_, lineNum, _ := p.nextRaw()
	loc := Location{File: p.file, Line: lineNum}
	rest := strings.TrimSpace(strings.TrimPrefix(headerTrimmed, "define"))
	op := OpRecursive
	name := rest
	if kind, pos, width := scanSeparator(rest); kind != sepNone && kind != sepColon && kind != sepDoubleColon {
		if o, ok := kind.assignOp(); ok {
			op = o
			name = strings.TrimSpace(rest[:pos])
			_ = width
		}
	}
	var body []string
	for {
		raw, ok := p.peekRaw()
		if !ok {
			return nil, wrapSyntax(loc, "define %q missing endef", name)
		}
		if strings.TrimSpace(raw) == "endef" {
			p.pos++
			break
		}
		p.pos++
		body = append(body, raw)
	}
	return DefineStmt{
		Name: parseExprString(name, loc),
		Op:   op,
		Body: strings.Join(body, "\n"),
		Line: lineNum, File: p.file,
	}, nil
}

// parseConditional parses an if-header line (already isolated, not
// consumed from the cursor) through its matching endif, handling
// "else"/"else if..." chains.
func (p *parser) parseConditional(header string, lineNum int) (Node, error) {
	loc := Location{File: p.file, Line: lineNum}
	cond, err := parseCondHead(header, loc)
	if err != nil {
		return nil, err
	}
	cond.Line, cond.File = lineNum, p.file
	then, err := p.parseBlock(true)
	if err != nil {
		return nil, err
	}
	cond.Then = then
	term, ok := p.peekTrimmed()
	if !ok {
		return nil, wrapSyntax(loc, "unterminated conditional (missing endif)")
	}
	switch {
	case term == "endif":
		p.pos++
		return cond, nil
	case term == "else":
		p.pos++
		elseBody, err := p.parseBlock(true)
		if err != nil {
			return nil, err
		}
		cond.Else = elseBody
		term2, ok := p.peekTrimmed()
		if !ok || term2 != "endif" {
			return nil, wrapSyntax(loc, "unterminated conditional (missing endif)")
		}
		p.pos++
		return cond, nil
	case strings.HasPrefix(term, "else "):
		elseLineNum := p.pos + 1
		p.pos++
		nestedHeader := strings.TrimSpace(term[len("else "):])
		nested, err := p.parseConditional(nestedHeader, elseLineNum)
		if err != nil {
			return nil, err
		}
		cond.Else = []Node{nested}
		return cond, nil
	}
	return nil, wrapSyntax(loc, "unterminated conditional (missing endif)")
}

func parseCondHead(s string, loc Location) (Conditional, error) {
	var kind CondKind
	var rest string
	switch {
	case strings.HasPrefix(s, "ifeq"):
		kind, rest = CondIfeq, strings.TrimSpace(s[len("ifeq"):])
	case strings.HasPrefix(s, "ifneq"):
		kind, rest = CondIfneq, strings.TrimSpace(s[len("ifneq"):])
	case strings.HasPrefix(s, "ifdef"):
		kind, rest = CondIfdef, strings.TrimSpace(s[len("ifdef"):])
	case strings.HasPrefix(s, "ifndef"):
		kind, rest = CondIfndef, strings.TrimSpace(s[len("ifndef"):])
	default:
		return Conditional{}, wrapSyntax(loc, "unrecognized conditional: %s", s)
	}
	c := Conditional{Kind: kind}
	if kind == CondIfdef || kind == CondIfndef {
		c.Name = parseExprString(rest, loc)
		return c, nil
	}
	left, right, err := parseEqArgs(rest)
	if err != nil {
		return Conditional{}, wrapSyntax(loc, "%s", err.Error())
	}
	c.Left = parseExprString(left, loc)
	c.Right = parseExprString(right, loc)
	return c, nil
}

func parseEqArgs(rest string) (string, string, error) {
	rest = strings.TrimSpace(rest)
	if strings.HasPrefix(rest, "(") {
		end := findMatchingDelim(rest, 0)
		if end < 0 {
			return "", "", errUnterminatedCond
		}
		inner := rest[1:end]
		a, b, ok := splitTopLevelComma(inner)
		if !ok {
			return "", "", errCondArity
		}
		return strings.TrimSpace(a), strings.TrimSpace(b), nil
	}
	a, after, err := readQuoted(rest)
	if err != nil {
		return "", "", err
	}
	after = strings.TrimSpace(after)
	b, _, err := readQuoted(after)
	if err != nil {
		return "", "", err
	}
	return a, b, nil
}

type condErr string

func (e condErr) Error() string { return string(e) }

const (
	errUnterminatedCond = condErr("unterminated ifeq/ifneq arguments")
	errCondArity        = condErr("ifeq/ifneq requires two comma-separated arguments")
)

// parseStatement dispatches a single logical (non-recipe, non-define) line.
func (p *parser) parseStatement(logical string, lineNum int) (Node, error) {
	if logical == "" {
		return nil, nil
	}
	loc := Location{File: p.file, Line: lineNum}
	switch {
	case strings.HasPrefix(logical, "-include ") || logical == "-include":
		rest := strings.TrimSpace(strings.TrimPrefix(logical, "-include"))
		return Include{Paths: parseExprString(rest, loc), Optional: true, Line: lineNum, File: p.file}, nil
	case strings.HasPrefix(logical, "sinclude ") || logical == "sinclude":
		rest := strings.TrimSpace(strings.TrimPrefix(logical, "sinclude"))
		return Include{Paths: parseExprString(rest, loc), Optional: true, Line: lineNum, File: p.file}, nil
	case strings.HasPrefix(logical, "include ") || logical == "include":
		rest := strings.TrimSpace(strings.TrimPrefix(logical, "include"))
		return Include{Paths: parseExprString(rest, loc), Line: lineNum, File: p.file}, nil
	case hasCondPrefix(logical):
		return p.parseConditional(logical, lineNum)
	case strings.HasPrefix(logical, "export ") || logical == "export":
		return p.parseExportLike(logical, true, lineNum)
	case strings.HasPrefix(logical, "unexport ") || logical == "unexport":
		return p.parseExportLike(logical, false, lineNum)
	case strings.HasPrefix(logical, "override "):
		rest := strings.TrimSpace(strings.TrimPrefix(logical, "override"))
		node, err := p.scanAndBuild(rest, lineNum)
		if err != nil {
			return nil, err
		}
		sv, ok := node.(SetVariable)
		if !ok {
			return nil, wrapSyntax(loc, "override requires a variable assignment")
		}
		sv.Override = true
		return sv, nil
	case strings.HasPrefix(logical, "vpath"):
		rest := strings.TrimSpace(strings.TrimPrefix(logical, "vpath"))
		pat, dirs := splitFirstWord(rest)
		return VPathStmt{
			Pattern: parseExprString(pat, loc), Dirs: parseExprString(dirs, loc),
			Line: lineNum, File: p.file,
		}, nil
	case isBareDirectiveCall(logical, "error"):
		return ErrorStmt{Message: parseExprString(extractCallArg(logical, "error"), loc), Line: lineNum, File: p.file}, nil
	case isBareDirectiveCall(logical, "warning"):
		return WarningStmt{Message: parseExprString(extractCallArg(logical, "warning"), loc), Line: lineNum, File: p.file}, nil
	case isBareDirectiveCall(logical, "info"):
		return InfoStmt{Message: parseExprString(extractCallArg(logical, "info"), loc), Line: lineNum, File: p.file}, nil
	default:
		return p.scanAndBuild(logical, lineNum)
	}
}

func hasCondPrefix(s string) bool {
	for _, kw := range []string{"ifeq", "ifneq", "ifdef", "ifndef"} {
		if s == kw || strings.HasPrefix(s, kw+" ") || strings.HasPrefix(s, kw+"\t") || strings.HasPrefix(s, kw+"(") {
			return true
		}
	}
	return false
}

func splitFirstWord(s string) (first, rest string) {
	s = strings.TrimSpace(s)
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i+1:])
}

func isBareDirectiveCall(s, name string) bool {
	prefix := "$(" + name
	if !strings.HasPrefix(s, prefix) || !strings.HasSuffix(s, ")") {
		return false
	}
	after := s[len(prefix):]
	if after == ")" {
		return true
	}
	return len(after) > 0 && (after[0] == ' ' || after[0] == '\t')
}

func extractCallArg(s, name string) string {
	prefix := "$(" + name
	inner := s[len(prefix) : len(s)-1]
	return strings.TrimSpace(inner)
}

func (p *parser) parseExportLike(logical string, export bool, lineNum int) (Node, error) {
	loc := Location{File: p.file, Line: lineNum}
	kw := "export"
	if !export {
		kw = "unexport"
	}
	rest := strings.TrimSpace(strings.TrimPrefix(logical, kw))
	if rest == "" {
		return ExportDirective{Export: export, Line: lineNum, File: p.file}, nil
	}
	if kind, pos, width := scanSeparator(rest); kind != sepNone && kind != sepColon && kind != sepDoubleColon {
		if op, ok := kind.assignOp(); ok {
			name := strings.TrimSpace(rest[:pos])
			value := strings.TrimSpace(rest[pos+width:])
			sv := SetVariable{
				Name: parseExprString(name, loc), Value: parseExprString(value, loc),
				Op: op, Line: lineNum, File: p.file,
			}
			return ExportDirective{Export: export, Assign: &sv, Line: lineNum, File: p.file}, nil
		}
	}
	return ExportDirective{Names: parseExprString(rest, loc), Export: export, Line: lineNum, File: p.file}, nil
}

// scanAndBuild parses a bare assignment or rule-header line: the fallback
// once no directive keyword matched (§4.1 "Statement forms").
func (p *parser) scanAndBuild(text string, lineNum int) (Node, error) {
	loc := Location{File: p.file, Line: lineNum}
	p.hasInlineRecipe = false
	kind, pos, width := scanSeparator(text)
	if op, ok := kind.assignOp(); ok {
		name := strings.TrimSpace(text[:pos])
		value := strings.TrimSpace(text[pos+width:])
		return SetVariable{
			Name: parseExprString(name, loc), Value: parseExprString(value, loc),
			Op: op, Line: lineNum, File: p.file,
		}, nil
	}
	if kind == sepColon || kind == sepDoubleColon {
		targetsText := strings.TrimSpace(text[:pos])
		if targetsText == "" {
			return nil, wrapSyntax(loc, "missing target name before ':'")
		}
		restText := text[pos+width:]
		prereqText, recipeText, hasInline := splitInlineRecipe(restText)
		trimmedPrereq := strings.TrimSpace(prereqText)
		if rkind, rpos, rwidth := scanSeparator(trimmedPrereq); rkind != sepNone && rkind != sepColon && rkind != sepDoubleColon {
			if op, ok := rkind.assignOp(); ok {
				name := strings.TrimSpace(trimmedPrereq[:rpos])
				value := strings.TrimSpace(trimmedPrereq[rpos+rwidth:])
				sv := SetVariable{
					Name: parseExprString(name, loc), Value: parseExprString(value, loc),
					Op: op, Line: lineNum, File: p.file,
				}
				return TargetVarStmt{
					Targets: parseExprString(targetsText, loc), Assign: sv,
					Line: lineNum, File: p.file,
				}, nil
			}
		}
		normal, orderOnly := splitOrderOnly(prereqText)
		if hasInline {
			if trimmed := strings.TrimSpace(recipeText); trimmed != "" {
				p.hasInlineRecipe = true
				p.inlineRecipeText = trimmed
				p.inlineRecipeLine = lineNum
			}
		}
		return RuleStmt{
			Targets:     parseExprString(targetsText, loc),
			Prereqs:     parseExprString(strings.TrimSpace(normal), loc),
			OrderOnly:   parseExprString(strings.TrimSpace(orderOnly), loc),
			DoubleColon: kind == sepDoubleColon,
			Line:        lineNum, File: p.file,
		}, nil
	}
	return nil, wrapSyntax(loc, "unrecognized syntax: %s", text)
}
