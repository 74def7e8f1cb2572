// Copyright 2026 The gomake Authors
// SPDX-License-Identifier: Apache-2.0

package main

import "testing"

func TestProcessArgsSplitsOverridesAndTargets(t *testing.T) {
	cfg := NewConfig()
	err := processArgs(cfg, []string{"all", "CC=clang", "clean", "CFLAGS=-O2 -g"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Targets) != 2 || cfg.Targets[0] != "all" || cfg.Targets[1] != "clean" {
		t.Fatalf("unexpected targets: %v", cfg.Targets)
	}
	if cfg.Overrides["CC"] != "clang" {
		t.Fatalf("expected CC=clang override, got %v", cfg.Overrides)
	}
	if cfg.Overrides["CFLAGS"] != "-O2 -g" {
		t.Fatalf("expected CFLAGS override to keep internal spaces, got %q", cfg.Overrides["CFLAGS"])
	}
}

func TestResolvePrintDirectorySilentWins(t *testing.T) {
	cfg := NewConfig()
	cfg.PrintDirectory = true
	cfg.Silent = true
	if cfg.resolvePrintDirectory() {
		t.Fatal("silent should suppress directory banners even when -w is set")
	}
}

func TestResolvePrintDirectoryNoPrintDirWins(t *testing.T) {
	cfg := NewConfig()
	cfg.PrintDirectory = true
	cfg.NoPrintDir = true
	if cfg.resolvePrintDirectory() {
		t.Fatal("--no-print-directory should override -w")
	}
}

func TestNewRootCmdRegistersFlags(t *testing.T) {
	cmd := NewRootCmd()
	for _, name := range []string{"file", "makefile", "debug", "keep-going", "debug-log",
		"directory", "version", "jobs", "print-directory", "no-print-directory",
		"silent", "just-print", "dry-run", "recon", "trace-log"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected flag %q to be registered", name)
		}
	}
}
