// Copyright 2026 The gomake Authors
// SPDX-License-Identifier: Apache-2.0

package gomake

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// TestRestartFixpointStopsAfterIncludedFileIsRemade covers "restart
// fixpoint": an included makefile that is remade triggers one restart, and
// the restarted parse does not trigger yet another one once the included
// file is already up to date.
func TestRestartFixpointStopsAfterIncludedFileIsRemade(t *testing.T) {
	dir := t.TempDir()
	// config.mk has a rule that regenerates it from config.in. It starts out
	// older than config.in, so the first parse remakes it and restarts; after
	// that it is up to date and the restarted parse is the last one.
	writeFile(t, filepath.Join(dir, "Makefile"), "include config.mk\n\nall: config.mk\n\ttouch built\n")
	writeFile(t, filepath.Join(dir, "config.mk"), "config.mk: config.in\n\ttouch config.mk\n")
	writeFile(t, filepath.Join(dir, "config.in"), "")
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "config.mk"), old, old))

	mf, err := Load(filepath.Join(dir, "Makefile"), Options{Dir: dir, Jobs: 1})
	require.NoError(t, err)
	restarts, ok := mf.Global.Lookup("MAKE_RESTARTS")
	require.True(t, ok)
	assert.Equal(t, "1", restarts.Value, "remaking config.mk must cause exactly one restart")
	require.NoError(t, mf.Build([]string{"all"}))
	_, statErr := os.Stat(filepath.Join(dir, "built"))
	assert.NoError(t, statErr)
}

func TestRestartLimitIsEnforced(t *testing.T) {
	dir := t.TempDir()
	// config.mk is marked phony, so it is always considered stale and its
	// recipe reruns (advancing its mtime) on every single restart pass,
	// never letting the restart protocol reach a fixpoint.
	writeFile(t, filepath.Join(dir, "Makefile"), "include config.mk\n\nall:\n\ttouch built\n")
	writeFile(t, filepath.Join(dir, "config.mk"), ".PHONY: config.mk\nconfig.mk:\n\tsleep 0.01\n\ttouch config.mk\n")

	_, err := Load(filepath.Join(dir, "Makefile"), Options{Dir: dir, Jobs: 1, RestartLimit: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "restart limit")
}

func TestOptionalIncludeOfMissingFileIsIgnored(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Makefile"), "-include nope.mk\n\nall:\n\ttouch built\n")

	mf, err := Load(filepath.Join(dir, "Makefile"), Options{Dir: dir, Jobs: 1})
	require.NoError(t, err)
	require.NoError(t, mf.Build([]string{"all"}))
}

func TestRequiredIncludeOfMissingFileFails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Makefile"), "include nope.mk\n\nall:\n\ttouch built\n")

	_, err := Load(filepath.Join(dir, "Makefile"), Options{Dir: dir, Jobs: 1})
	require.Error(t, err)
}

func TestLoadAllConcatenatesMultipleMakefiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.mk"), "FOO = foo\n")
	writeFile(t, filepath.Join(dir, "b.mk"), "all:\n\ttouch $(FOO).done\n")

	mf, err := LoadAll([]string{filepath.Join(dir, "a.mk"), filepath.Join(dir, "b.mk")}, Options{Dir: dir, Jobs: 1})
	require.NoError(t, err)
	require.NoError(t, mf.Build([]string{"all"}))
	_, statErr := os.Stat(filepath.Join(dir, "foo.done"))
	assert.NoError(t, statErr)
}

func TestConditionalIfeqSelectsBranch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Makefile"), "MODE = release\nifeq ($(MODE),release)\nFLAG = -O2\nelse\nFLAG = -O0\nendif\nall:\n\ttouch $(FLAG).done\n")

	mf, err := Load(filepath.Join(dir, "Makefile"), Options{Dir: dir, Jobs: 1})
	require.NoError(t, err)
	got, err := mf.Global.ExpandString("$(FLAG)", Location{})
	require.NoError(t, err)
	assert.Equal(t, "-O2", got)
}

func TestExportDirectivePropagatesToRecipeEnvironment(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Makefile"),
		"export GREETING = hello\nall:\n\ttest \"$$GREETING\" = hello && touch ok.done\n")

	mf, err := Load(filepath.Join(dir, "Makefile"), Options{Dir: dir, Jobs: 1})
	require.NoError(t, err)
	require.NoError(t, mf.Build([]string{"all"}))
	_, statErr := os.Stat(filepath.Join(dir, "ok.done"))
	assert.NoError(t, statErr)
}

func TestDefaultGoalIsFirstNonSpecialTarget(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Makefile"), "build:\n\ttouch out\n\n.PHONY: clean\nclean:\n\trm -f out\n")

	mf, err := Load(filepath.Join(dir, "Makefile"), Options{Dir: dir, Jobs: 1})
	require.NoError(t, err)
	assert.Equal(t, "build", mf.DefaultGoal)
}

func TestVPathLocatesPrerequisiteOutsideWorkingDir(t *testing.T) {
	dir := t.TempDir()
	srcDir := filepath.Join(dir, "src")
	require.NoError(t, os.Mkdir(srcDir, 0o755))
	writeFile(t, filepath.Join(srcDir, "in.txt"), "data")
	writeFile(t, filepath.Join(dir, "Makefile"), "vpath %.txt src\n\nout.txt: in.txt\n\ttouch out.txt\n")

	mf, err := Load(filepath.Join(dir, "Makefile"), Options{Dir: dir, Jobs: 1})
	require.NoError(t, err)
	in := mf.GetTarget("in.txt")
	assert.True(t, in.Exists, "VPATH must locate in.txt under src/ even though it has no rule")
}
