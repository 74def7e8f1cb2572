// Copyright 2026 The gomake Authors
// SPDX-License-Identifier: Apache-2.0

package gomake

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureStdout redirects os.Stdout for the duration of fn and returns
// whatever was written to it, used because recipe echo and $(info) output
// go straight to the process's real stdout (§4.5).
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w
	fn()
	require.NoError(t, w.Close())
	os.Stdout = old
	var buf bytes.Buffer
	_, err = io.Copy(&buf, r)
	require.NoError(t, err)
	return buf.String()
}

// TestScenarioMinimalBuild is end-to-end scenario 1: `all: ; @echo hi`.
func TestScenarioMinimalBuild(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Makefile"), "all: ; @echo hi\n")
	mf, err := Load(filepath.Join(dir, "Makefile"), Options{Dir: dir, Jobs: 1})
	require.NoError(t, err)

	out := captureStdout(t, func() {
		require.NoError(t, mf.Build([]string{"all"}))
	})
	assert.Contains(t, out, "hi")
}

// TestScenarioSimpleDependencySequential is end-to-end scenario 2 at -j1:
// "a" must fully finish before "b" starts, so stdout is exactly "A\nB\n".
func TestScenarioSimpleDependencySequential(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Makefile"), "all: a b\na: ; @echo A\nb: ; @echo B\n")
	mf, err := Load(filepath.Join(dir, "Makefile"), Options{Dir: dir, Jobs: 1})
	require.NoError(t, err)

	out := captureStdout(t, func() {
		require.NoError(t, mf.Build([]string{"all"}))
	})
	assert.Equal(t, "A\nB\n", out)
}

// TestScenarioSimpleDependencyParallel is end-to-end scenario 2 at -j2: both
// "a" and "b" must appear exactly once each, in any order, and the build
// must still succeed.
func TestScenarioSimpleDependencyParallel(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Makefile"), "all: a b\na: ; @echo A\nb: ; @echo B\n")
	mf, err := Load(filepath.Join(dir, "Makefile"), Options{Dir: dir, Jobs: 2})
	require.NoError(t, err)

	out := captureStdout(t, func() {
		require.NoError(t, mf.Build([]string{"all"}))
	})
	lines := strings.Fields(out)
	assert.ElementsMatch(t, []string{"A", "B"}, lines)
}

// TestScenarioPatternRuleAutomaticVars is end-to-end scenario 3.
func TestScenarioPatternRuleAutomaticVars(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Makefile"), "%.o: %.c ; @echo $< -o $@\n")
	writeFile(t, filepath.Join(dir, "foo.c"), "int main(){}")
	mf, err := Load(filepath.Join(dir, "Makefile"), Options{Dir: dir, Jobs: 1})
	require.NoError(t, err)

	out := captureStdout(t, func() {
		require.NoError(t, mf.Build([]string{"foo.o"}))
	})
	assert.Contains(t, out, "foo.c -o foo.o")
}

// TestScenarioFailureWithoutKeepGoing is end-to-end scenario 4: without
// -k, a failing independent goal yields a fatal error (the CLI maps this
// to exit code 2, §7); the scheduler does not require the other goal to
// finish, but it must not deadlock either way.
func TestScenarioFailureWithoutKeepGoing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Makefile"), "x:\n\tfalse\n\ny:\n\tsleep 0.05\n\ttouch y.done\n")
	mf, err := Load(filepath.Join(dir, "Makefile"), Options{Dir: dir, Jobs: 2})
	require.NoError(t, err)

	err = mf.Build([]string{"x", "y"})
	require.Error(t, err)
	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
}

// TestScenarioKeepGoing is end-to-end scenario 5: with -k, the independent
// goal "y" always completes even though "x" fails, and the overall exit
// is still an error.
func TestScenarioKeepGoing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Makefile")
	writeFile(t, path, "x:\n\tfalse\n\ny:\n\ttouch y.done\n")
	mf, err := Load(path, Options{Dir: dir, Jobs: 2, KeepGoing: true})
	require.NoError(t, err)

	err = mf.Build([]string{"x", "y"})
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(dir, "y.done"))
	assert.NoError(t, statErr, "-k must still build the independent goal")
}

// TestScenarioRecursiveVariableCycle is end-to-end scenario 6: a cyclic
// recursive-variable reference is reported as a DataError naming the
// cycle, and no recipe command ever runs.
func TestScenarioRecursiveVariableCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Makefile"), "A = $(B)\nB = $(A)\nall: ; @echo $(A)\n")
	mf, err := Load(filepath.Join(dir, "Makefile"), Options{Dir: dir, Jobs: 1})
	require.NoError(t, err)

	var out string
	err = nil
	out = captureStdout(t, func() {
		err = mf.Build([]string{"all"})
	})
	require.Error(t, err)
	var de *DataError
	require.ErrorAs(t, err, &de)
	assert.Contains(t, err.Error(), "references itself")
	assert.Empty(t, strings.TrimSpace(out), "no command may run once the cycle is detected")
}
