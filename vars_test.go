// Copyright 2026 The gomake Authors
// SPDX-License-Identifier: Apache-2.0

package gomake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleFlavorFreezesAtDefinition(t *testing.T) {
	env := NewEnvironment(nil, nil)
	require.NoError(t, env.Define("A", OpSimple, NewLiteral("1"), OriginFile, false))
	require.NoError(t, env.Define("B", OpSimple, parseExprString("$(A)", Location{}), OriginFile, false))
	require.NoError(t, env.Define("A", OpSimple, NewLiteral("2"), OriginFile, false))

	v, ok := env.Lookup("B")
	require.True(t, ok)
	assert.Equal(t, "1", v.Value, "simple-flavor B should have captured A's value at definition time")
}

func TestRecursiveFlavorReEvaluatesOnReference(t *testing.T) {
	env := NewEnvironment(nil, nil)
	require.NoError(t, env.Define("A", OpSimple, NewLiteral("1"), OriginFile, false))
	require.NoError(t, env.Define("B", OpRecursive, parseExprString("$(A)", Location{}), OriginFile, false))
	require.NoError(t, env.Define("A", OpSimple, NewLiteral("2"), OriginFile, false))

	got, err := env.Expand(parseExprString("$(B)", Location{}))
	require.NoError(t, err)
	assert.Equal(t, "2", got, "recursive-flavor B must re-expand A at reference time")
}

func TestSimpleExpansionIsIdempotent(t *testing.T) {
	env := NewEnvironment(nil, nil)
	require.NoError(t, env.Define("X", OpSimple, NewLiteral("abc"), OriginFile, false))
	expr := parseExprString("$(X)$(X)", Location{})
	first, err := env.Expand(expr)
	require.NoError(t, err)
	second, err := env.Expand(expr)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, "abcabc", first)
}

func TestConditionalAssignmentOnlyFirstWins(t *testing.T) {
	env := NewEnvironment(nil, nil)
	require.NoError(t, env.Define("X", OpConditional, NewLiteral("first"), OriginFile, false))
	require.NoError(t, env.Define("X", OpConditional, NewLiteral("second"), OriginFile, false))
	_, ok := env.Lookup("X")
	require.True(t, ok)
	got, err := env.Expand(parseExprString("$(X)", Location{}))
	require.NoError(t, err)
	assert.Equal(t, "first", got)
}

func TestCommandLineOverridePrecedence(t *testing.T) {
	env := NewEnvironment(nil, nil)
	require.NoError(t, env.Define("X", OpSimple, NewLiteral("cli"), OriginCommandLine, false))
	// An ordinary file assignment must not be able to clobber a command-line
	// value, matching GNU make's override-precedence rule (§3).
	require.NoError(t, env.Define("X", OpSimple, NewLiteral("file"), OriginFile, false))
	v, ok := env.Lookup("X")
	require.True(t, ok)
	assert.Equal(t, "cli", v.Value)

	// An `override` directive can still win.
	require.NoError(t, env.Define("X", OpSimple, NewLiteral("overridden"), OriginFile, true))
	v, ok = env.Lookup("X")
	require.True(t, ok)
	assert.Equal(t, "overridden", v.Value)
}

func TestAppendSimpleFlavor(t *testing.T) {
	env := NewEnvironment(nil, nil)
	require.NoError(t, env.Define("X", OpSimple, NewLiteral("a"), OriginFile, false))
	require.NoError(t, env.Append("X", NewLiteral("b"), OriginFile, false))
	v, ok := env.Lookup("X")
	require.True(t, ok)
	assert.Equal(t, "a b", v.Value)
}

func TestAppendRecursiveFlavorKeepsDeferring(t *testing.T) {
	env := NewEnvironment(nil, nil)
	require.NoError(t, env.Define("A", OpSimple, NewLiteral("1"), OriginFile, false))
	require.NoError(t, env.Define("X", OpRecursive, parseExprString("$(A)", Location{}), OriginFile, false))
	require.NoError(t, env.Append("X", parseExprString("$(A)", Location{}), OriginFile, false))
	require.NoError(t, env.Define("A", OpSimple, NewLiteral("2"), OriginFile, false))

	got, err := env.Expand(parseExprString("$(X)", Location{}))
	require.NoError(t, err)
	assert.Equal(t, "2 2", got)
}

func TestUndefineMakesLookupFail(t *testing.T) {
	env := NewEnvironment(nil, nil)
	require.NoError(t, env.Define("X", OpSimple, NewLiteral("1"), OriginFile, false))
	env.Undefine("X")
	_, ok := env.Lookup("X")
	assert.False(t, ok)
}

func TestEnvironmentLookupFallsBackToParent(t *testing.T) {
	parent := NewEnvironment(nil, nil)
	require.NoError(t, parent.Define("X", OpSimple, NewLiteral("parent"), OriginFile, false))
	child := NewEnvironment(parent, nil)
	v, ok := child.Lookup("X")
	require.True(t, ok)
	assert.Equal(t, "parent", v.Value)

	require.NoError(t, child.Define("X", OpSimple, NewLiteral("child"), OriginFile, false))
	v, ok = child.Lookup("X")
	require.True(t, ok)
	assert.Equal(t, "child", v.Value)

	v, ok = parent.Lookup("X")
	require.True(t, ok)
	assert.Equal(t, "parent", v.Value, "child assignment must not mutate the parent scope")
}

func TestOriginAndFlavorReporting(t *testing.T) {
	env := NewEnvironment(nil, nil)
	require.NoError(t, env.Define("X", OpSimple, NewLiteral("1"), OriginCommandLine, false))
	assert.Equal(t, OriginCommandLine, env.Origin("X"))
	assert.Equal(t, FlavorSimple, env.Flavor("X"))
	assert.Equal(t, OriginUndefined, env.Origin("NOPE"))
}
