// Copyright 2026 The gomake Authors
// SPDX-License-Identifier: Apache-2.0

package gomake

import (
	"fmt"

	"github.com/pkg/errors"
)

// SyntaxError reports a makefile that could not be parsed: unmatched
// conditionals, malformed rule headers, missing separators.
type SyntaxError struct {
	Loc Location
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: %s", e.Loc, e.Msg)
}

// DataError reports a makefile that parsed but whose evaluation is
// inconsistent: a recursive variable that references itself, a malformed
// function call argument, or a call to $(error).
type DataError struct {
	Loc Location
	Msg string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("%s: %s", e.Loc, e.Msg)
}

// NoRuleError reports a target with no applicable rule, raised lazily at
// the point the target is actually requested (§4.4).
type NoRuleError struct {
	Target string
}

func (e *NoRuleError) Error() string {
	return fmt.Sprintf("no rule to make target %q", e.Target)
}

// CommandError reports a recipe command that exited non-zero.
type CommandError struct {
	Target string
	Cmd    string
	Code   int
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("recipe for target %q failed: %s (exit %d)", e.Target, e.Cmd, e.Code)
}

func wrapSyntax(loc Location, format string, args ...interface{}) error {
	return errors.WithStack(&SyntaxError{Loc: loc, Msg: fmt.Sprintf(format, args...)})
}

func wrapData(loc Location, format string, args ...interface{}) error {
	return errors.WithStack(&DataError{Loc: loc, Msg: fmt.Sprintf(format, args...)})
}
