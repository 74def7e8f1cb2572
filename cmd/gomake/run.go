// Copyright 2026 The gomake Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gomake-project/gomake"
	"golang.org/x/term"
)

// run executes one gomake invocation end to end: resolve the working
// directory, print the Entering banner, load the makefile tree, build
// the requested targets (or the default goal), and print Leaving on the
// way out, mirroring the original's `Entering directory`/`Leaving
// directory` pair around `_MakeContext` (§6).
func run(cfg *Config) error {
	dir, err := os.Getwd()
	if err != nil {
		return err
	}
	if cfg.Directory != "" && !filepath.IsAbs(cfg.Directory) {
		dir = filepath.Join(dir, cfg.Directory)
	} else if cfg.Directory != "" {
		dir = cfg.Directory
	}

	makefiles := cfg.Makefiles
	if len(makefiles) == 0 {
		makefiles = []string{defaultMakefileName(dir)}
	}

	exe, err := os.Executable()
	if err != nil {
		exe = "gomake"
	}

	var tracer *gomake.Tracer
	if cfg.TraceLog != "" {
		tracer = gomake.NewTracer(cfg.TraceLog, cfg.Debug)
	}

	opts := gomake.Options{
		Dir:            dir,
		MakeCmd:        exe,
		Jobs:           cfg.Jobs,
		KeepGoing:      cfg.KeepGoing,
		DryRun:         cfg.DryRun,
		Silent:         cfg.Silent,
		Debug:          cfg.Debug,
		PrintDirectory: cfg.resolvePrintDirectory(),
		Overrides:      cfg.Overrides,
		Tracer:         tracer,
		DebugLog:       cfg.DebugLog,
		TraceLog:       cfg.TraceLog,
	}

	printBanner := opts.PrintDirectory
	if printBanner {
		fmt.Fprintf(os.Stdout, "gomake: Entering directory %s\n", quoteDir(dir))
	}
	leave := func() {
		if printBanner {
			fmt.Fprintf(os.Stdout, "gomake: Leaving directory %s\n", quoteDir(dir))
		}
	}

	mf, err := gomake.LoadAll(makefiles, opts)
	if err != nil {
		leave()
		return err
	}

	if err := mf.Build(cfg.Targets); err != nil {
		leave()
		return err
	}
	leave()
	return nil
}

func defaultMakefileName(dir string) string {
	for _, name := range []string{"Makefile", "makefile", "GNUmakefile"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return name
		}
	}
	return "Makefile"
}

func quoteDir(dir string) string {
	return "'" + dir + "'"
}

// useColor reports whether diagnostic output should be colorized,
// resolved the way `sdlcforge-make-help/internal/cli/terminal.go`
// resolves it for its own error banners: auto-detected from whether
// stderr is a terminal.
func useColor() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}
