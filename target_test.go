// Copyright 2026 The gomake Authors
// SPDX-License-Identifier: Apache-2.0

package gomake

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func loadInDir(t *testing.T, dir, content string, opts Options) *Makefile {
	t.Helper()
	path := filepath.Join(dir, "Makefile")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	opts.Dir = dir
	mf, err := Load(path, opts)
	require.NoError(t, err)
	return mf
}

// TestTargetStateMachineReachesDoneSuccess walks NEW -> RESOLVED -> READY ->
// RUNNING -> DONE(success) for a single freshly-built target.
func TestTargetStateMachineReachesDoneSuccess(t *testing.T) {
	dir := t.TempDir()
	mf := loadInDir(t, dir, "out.txt:\n\ttouch out.txt\n", Options{Jobs: 1})

	target := mf.GetTarget("out.txt")
	require.Equal(t, StateResolved, target.State, "GetTarget must leave a newly resolved target in StateResolved")

	require.NoError(t, mf.Build([]string{"out.txt"}))
	require.Equal(t, StateDoneSuccess, target.State)
	assert := require.New(t)
	assert.True(target.WasRemade)
	_, err := os.Stat(filepath.Join(dir, "out.txt"))
	assert.NoError(err)
}

// TestTargetStateMachineReachesDoneFailure checks a failing recipe lands in
// DONE(failure) with the recipe's error recorded on the Target.
func TestTargetStateMachineReachesDoneFailure(t *testing.T) {
	dir := t.TempDir()
	mf := loadInDir(t, dir, "bad:\n\texit 1\n", Options{Jobs: 1})

	err := mf.Build([]string{"bad"})
	require.Error(t, err)
	target := mf.GetTarget("bad")
	require.Equal(t, StateDoneFailure, target.State)
	require.Error(t, target.Err)
}

// TestDoubleColonBranchRunsAtMostOnce covers "T executed at most once per
// double-colon branch": each independent branch of a double-colon target
// gets its own recipe invocation, and running the combined target once
// never reruns either branch a second time.
func TestDoubleColonBranchRunsAtMostOnce(t *testing.T) {
	dir := t.TempDir()
	mkfile := "log::\n\techo a >> log.txt\n\nlog::\n\techo b >> log.txt\n"
	mf := loadInDir(t, dir, mkfile, Options{Jobs: 1})

	require.NoError(t, mf.Build([]string{"log"}))
	data, err := os.ReadFile(filepath.Join(dir, "log.txt"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2, "each double-colon branch must run exactly once")
	require.ElementsMatch(t, []string{"a", "b"}, lines)
}

// TestDiamondDependencyBuildsSharedPrereqOnce exercises the doneCh dedup
// path: two dependents of the same prerequisite must not trigger two
// recipe runs for it.
func TestDiamondDependencyBuildsSharedPrereqOnce(t *testing.T) {
	dir := t.TempDir()
	mkfile := `top: left right
	cat left right > top

left: base
	echo left >> counter.txt
	cp base left

right: base
	echo right >> counter.txt
	cp base right

base:
	echo x > base
	echo base >> counter.txt
`
	mf := loadInDir(t, dir, mkfile, Options{Jobs: 4})
	require.NoError(t, mf.Build([]string{"top"}))

	baseTarget := mf.GetTarget("base")
	require.Equal(t, StateDoneSuccess, baseTarget.State)

	data, err := os.ReadFile(filepath.Join(dir, "top"))
	require.NoError(t, err)
	assert := require.New(t)
	assert.Contains(string(data), "x")

	counter, err := os.ReadFile(filepath.Join(dir, "counter.txt"))
	assert.NoError(err)
	assert.Equal(1, strings.Count(string(counter), "base"), "the shared prerequisite's recipe must run exactly once")
}

// TestPrereqCompletesBeforeDependentStarts is a direct check of "the
// completion timestamp of a prerequisite precedes the start timestamp of
// its dependent": the dependent's recipe reads a file the prerequisite's
// recipe writes, and only succeeds if ordering held.
func TestPrereqCompletesBeforeDependentStarts(t *testing.T) {
	dir := t.TempDir()
	mkfile := "child: parent\n\ttest -f parent.done\n\ttouch child.done\n\nparent:\n\tsleep 0.05\n\ttouch parent.done\n"
	mf := loadInDir(t, dir, mkfile, Options{Jobs: 2})
	require.NoError(t, mf.Build([]string{"child"}))
	_, err := os.Stat(filepath.Join(dir, "child.done"))
	require.NoError(t, err, "child recipe only succeeds if parent.done existed by the time it ran")
}

// TestJobsLimitsInFlightSubprocesses drives five independent targets, each
// sleeping 100ms, through a single Build call under -j2 ("at no instant are
// more than N recipe subprocesses in-flight"). With five 100ms jobs and a
// concurrency bound of 2, at least three batches must run in sequence, so
// the whole build cannot finish in much less than 300ms; with no bound at
// all (every job starts at once) it would finish in about 100ms.
func TestJobsLimitsInFlightSubprocesses(t *testing.T) {
	dir := t.TempDir()
	var lines []string
	var targets []string
	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("t%d", i)
		targets = append(targets, name)
		lines = append(lines, fmt.Sprintf("%s:\n\tsleep 0.1\n", name))
	}
	mf := loadInDir(t, dir, strings.Join(lines, "\n"), Options{Jobs: 2})

	start := time.Now()
	require.NoError(t, mf.Build(targets))
	elapsed := time.Since(start)

	require.GreaterOrEqualf(t, elapsed, 250*time.Millisecond,
		"5 jobs at -j2 with 100ms recipes must take at least 3 batches, got %s", elapsed)
}

// TestStaleComparesPrereqAndTargetMtime exercises Target.Stale directly: a
// target newer than its prerequisite is not stale; touching the
// prerequisite later makes it stale again.
func TestStaleComparesPrereqAndTargetMtime(t *testing.T) {
	dir := t.TempDir()
	mf := loadInDir(t, dir, "out: in\n\tcp in out\n", Options{Jobs: 1})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "in"), []byte("v1"), 0o644))
	require.NoError(t, mf.Build([]string{"out"}))

	out := mf.GetTarget("out")
	require.False(t, out.Stale(mf))

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "in"), []byte("v2"), 0o644))
	mf.statTarget(mf.GetTarget("in"))
	require.True(t, out.Stale(mf))
}

// TestPhonyTargetAlwaysStale checks that a name listed under .PHONY is
// always rebuilt regardless of any file with that name on disk.
func TestPhonyTargetAlwaysStale(t *testing.T) {
	dir := t.TempDir()
	mf := loadInDir(t, dir, ".PHONY: clean\nclean:\n\trm -f leftover\n", Options{Jobs: 1})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clean"), []byte(""), 0o644))

	target := mf.GetTarget("clean")
	require.True(t, target.Phony)
	require.True(t, target.Stale(mf))
}

// TestMissingPrereqWithNoRuleFails checks NoRuleError is raised lazily, at
// build time, for a prerequisite with neither a rule nor a file on disk.
func TestMissingPrereqWithNoRuleFails(t *testing.T) {
	dir := t.TempDir()
	mf := loadInDir(t, dir, "out: missing.txt\n\ttouch out\n", Options{Jobs: 1})
	err := mf.Build([]string{"out"})
	require.Error(t, err)
	var noRule *NoRuleError
	require.ErrorAs(t, err, &noRule)
}

// TestMultipleSingleColonStanzasMergePrereqs checks that a target named by
// more than one single-colon rule stanza gets the union of every stanza's
// prerequisites, not just the first stanza's (§4.4 step 1).
func TestMultipleSingleColonStanzasMergePrereqs(t *testing.T) {
	dir := t.TempDir()
	mkfile := "out: a\nout: b\n\ttouch out\n"
	mf := loadInDir(t, dir, mkfile, Options{Jobs: 1})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b"), []byte(""), 0o644))

	target := mf.GetTarget("out")
	require.ElementsMatch(t, []string{"a", "b"}, target.Prereqs)
}

// TestMultipleSingleColonStanzasLaterCommandsOverride checks that when more
// than one stanza for the same target carries a non-empty command list, the
// later one is the effective recipe (§4.4 step 1's command-conflict rule).
func TestMultipleSingleColonStanzasLaterCommandsOverride(t *testing.T) {
	dir := t.TempDir()
	mkfile := "out:\n\ttouch first\n\nout:\n\ttouch second\n"
	mf := loadInDir(t, dir, mkfile, Options{Jobs: 1})

	require.NoError(t, mf.Build([]string{"out"}))
	_, errSecond := os.Stat(filepath.Join(dir, "second"))
	require.NoError(t, errSecond, "the later stanza's commands must be the ones that run")
	_, errFirst := os.Stat(filepath.Join(dir, "first"))
	require.True(t, os.IsNotExist(errFirst), "the earlier stanza's commands must be overridden, not also run")
}

// TestImplicitCompileRuleAppliesWhenNoPatternRuleMatches exercises the
// implicit/built-in rule tier (§4.4 step 3): with no explicit or pattern
// rule for foo.o, the built-in "%.o: %.c" compile rule must still resolve
// and build it from foo.c.
func TestImplicitCompileRuleAppliesWhenNoPatternRuleMatches(t *testing.T) {
	dir := t.TempDir()
	mf := loadInDir(t, dir, "all: foo.o\n", Options{Jobs: 1})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "foo.c"), []byte("int main(){}"), 0o644))

	target := mf.GetTarget("foo.o")
	require.NotNil(t, target.Rule, "the built-in %%.o: %%.c rule must resolve foo.o")
	require.Equal(t, "foo", target.Stem)
	require.Equal(t, []string{"foo.c"}, target.Prereqs)
}

// TestPatternRuleSelectionSkipsUnbuildableCandidate checks that a matching
// pattern rule whose prerequisite cannot be built (no file, no rule) is
// passed over in favor of a later, buildable match (§4.4 step 2).
func TestPatternRuleSelectionSkipsUnbuildableCandidate(t *testing.T) {
	dir := t.TempDir()
	mkfile := "%.out: %.missing\n\ttouch $@\n\n%.out: %.c\n\ttouch $@\n"
	mf := loadInDir(t, dir, mkfile, Options{Jobs: 1})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "foo.c"), []byte("int main(){}"), 0o644))

	target := mf.GetTarget("foo.out")
	require.NotNil(t, target.Rule)
	require.Equal(t, []string{"foo.c"}, target.Prereqs, "the unbuildable %.missing candidate must be skipped")
}

// TestKeepGoingBuildsIndependentTargetDespiteFailure covers §7
// keep-going semantics at the scheduler level: an unrelated target must
// still complete even though a sibling goal's recipe fails.
func TestKeepGoingBuildsIndependentTargetDespiteFailure(t *testing.T) {
	dir := t.TempDir()
	mkfile := "bad:\n\texit 1\n\ngood:\n\ttouch good.done\n"
	mf := loadInDir(t, dir, mkfile, Options{Jobs: 2, KeepGoing: true})

	err := mf.Build([]string{"bad", "good"})
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(dir, "good.done"))
	require.NoError(t, statErr, "keep-going must still build the independent goal")
}
