// Copyright 2026 The gomake Authors
// SPDX-License-Identifier: Apache-2.0

package gomake

import "strings"

// Pattern wraps a single make pattern: text containing at most one '%',
// which captures a stem (§3 "Rule", §4.4). A pattern with no '%' matches
// only its own literal text.
type Pattern struct {
	Text string
}

// IsPattern reports whether p contains the '%' wildcard.
func (p Pattern) IsPattern() bool { return strings.Contains(p.Text, "%") }

// Match reports whether name matches p, returning the captured stem.
func (p Pattern) Match(name string) (stem string, ok bool) {
	return matchPercent(p.Text, name)
}

// Expand substitutes stem for '%' in p, used to build a pattern rule's
// prerequisite list from its target's captured stem.
func (p Pattern) Expand(stem string) string {
	return expandPercent(p.Text, stem)
}
