// Copyright 2026 The gomake Authors
// SPDX-License-Identifier: Apache-2.0

// Package cliflags parses and re-derives MAKEFLAGS/MAKELEVEL, independent
// of cobra's own flag registration, so the same logic serves both the
// running process (consuming an inherited MAKEFLAGS) and a recursive
// $(MAKE) sub-invocation (deriving one to pass down) (spec.md §6).
package cliflags

import (
	"regexp"
	"strconv"
	"strings"
)

// simpleOpts matches a MAKEFLAGS value made only of short-option letters
// with no leading dash ("ks" rather than "-ks"), the form GNU make accepts
// and silently fixes up.
var simpleOpts = regexp.MustCompile(`^[a-zA-Z]+(\s|$)`)

// ParseMakeflags splits a MAKEFLAGS environment value into argv-style
// tokens: whitespace separates tokens, a backslash escapes the following
// character (including a literal space inside one token), and a value
// with no leading '-' and only letters before the first space is treated
// as a run of short options, per the original's parsemakeflags.
func ParseMakeflags(value string) ([]string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if simpleOpts.MatchString(value) {
		value = "-" + value
	}

	var opts []string
	var cur strings.Builder
	i := 0
	for i < len(value) {
		c := value[i]
		if c == ' ' || c == '\t' {
			opts = append(opts, cur.String())
			cur.Reset()
			i++
			for i < len(value) && (value[i] == ' ' || value[i] == '\t') {
				i++
			}
			continue
		}
		if c == '\\' {
			i++
			if i == len(value) {
				return nil, errTrailingBackslash
			}
			c = value[i]
		}
		cur.WriteByte(c)
		i++
	}
	if cur.Len() > 0 {
		opts = append(opts, cur.String())
	}
	return opts, nil
}

type makeflagsError string

func (e makeflagsError) Error() string { return string(e) }

const errTrailingBackslash = makeflagsError("MAKEFLAGS has trailing backslash")

// Resolved is the set of options that feed MAKEFLAGS re-derivation for a
// recursive $(MAKE) invocation.
type Resolved struct {
	KeepGoing      bool
	Silent         bool
	DryRun         bool
	Debug          bool
	PrintDirectory bool
	Jobs           int
	DebugLog       string
	TraceLog       string
}

// Derive rebuilds a MAKEFLAGS string from resolved option values rather
// than passing argv through verbatim, so flags implied by an earlier
// MAKEFLAGS (e.g. one this process itself inherited) still reach a child
// $(MAKE) even when the recipe line invokes it with no flags of its own
// (SPEC_FULL.md supplemented feature #2, grounded on command.py's
// shortflags/longflags assembly).
func Derive(r Resolved) string {
	var shortFlags strings.Builder
	var longFlags []string

	if r.KeepGoing {
		shortFlags.WriteByte('k')
	}
	if r.Silent {
		shortFlags.WriteByte('s')
	}
	if r.DryRun {
		shortFlags.WriteByte('n')
	}
	if r.Debug {
		shortFlags.WriteByte('d')
	}
	if r.DebugLog != "" {
		longFlags = append(longFlags, "--debug-log="+r.DebugLog)
	}
	if r.Jobs != 1 {
		longFlags = append(longFlags, "-j"+strconv.Itoa(r.Jobs))
	}
	if r.TraceLog != "" {
		longFlags = append(longFlags, "--trace-log="+r.TraceLog)
	}

	out := shortFlags.String()
	if len(longFlags) > 0 {
		if out != "" {
			out += " "
		}
		out += strings.Join(longFlags, " ")
	}
	return out
}

// NextLevel increments a MAKELEVEL environment value for a sub-make,
// treating a missing or unparsable value as level 0.
func NextLevel(current string) string {
	lvl, err := strconv.Atoi(strings.TrimSpace(current))
	if err != nil {
		lvl = 0
	}
	return strconv.Itoa(lvl + 1)
}
