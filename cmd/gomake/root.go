// Copyright 2026 The gomake Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

// NewRootCmd assembles the gomake root command: every flag from spec.md
// §6 registered on a single cobra.Command, matching the flat (no
// subcommand) shape GNU make itself and `marcelocantos-mk/cmd/mk`
// both use.
func NewRootCmd() *cobra.Command {
	cfg := NewConfig()

	cmd := &cobra.Command{
		Use:           "gomake [options] [target...] [VAR=value...]",
		Short:         "A GNU-make-compatible build engine",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return processArgs(cfg, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.ShowVersion {
				fmt.Fprintf(cmd.OutOrStdout(), "gomake version %s\n", version)
				return nil
			}
			return run(cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVarP(&cfg.Makefiles, "file", "f", nil, "read FILE as a makefile (repeatable)")
	flags.BoolVarP(&cfg.Debug, "debug", "d", false, "add content fingerprints to --trace-log command records and pass -d to sub-makes (no debug output is printed)")
	flags.BoolVarP(&cfg.KeepGoing, "keep-going", "k", false, "continue after failures in independent subgraphs")
	flags.StringVar(&cfg.DebugLog, "debug-log", "", "pass --debug-log=PATH to sub-makes in MAKEFLAGS (nothing is written to PATH)")
	flags.StringVarP(&cfg.Directory, "directory", "C", "", "change to DIR before reading makefiles")
	flags.BoolVarP(&cfg.ShowVersion, "version", "v", false, "print version banner and exit")
	flags.IntVarP(&cfg.Jobs, "jobs", "j", 1, "allow up to N concurrent recipe commands")
	flags.BoolVarP(&cfg.PrintDirectory, "print-directory", "w", true, "print Entering/Leaving directory messages")
	flags.BoolVar(&cfg.NoPrintDir, "no-print-directory", false, "turn off -w, even if it was turned on implicitly")
	flags.BoolVarP(&cfg.Silent, "silent", "s", false, "suppress command echo (implies no directory prints)")
	flags.BoolVarP(&cfg.DryRun, "just-print", "n", false, "print commands but do not execute most of them")
	flags.BoolVar(&cfg.DryRun, "dry-run", false, "alias for --just-print")
	flags.BoolVar(&cfg.DryRun, "recon", false, "alias for --just-print")
	flags.StringVar(&cfg.TraceLog, "trace-log", "", "enable the NDJSON tracer and write events to PATH")

	// --makefile is a plain alias for --file, both appending into the same
	// backing slice so either spelling (or a mix of both, repeated) works.
	flags.Var(aliasValue{&cfg.Makefiles}, "makefile", "alias for --file")

	return cmd
}

// aliasValue adapts a []string flag alias so both --file and --makefile
// append into the same backing slice.
type aliasValue struct{ dst *[]string }

func (a aliasValue) String() string {
	if a.dst == nil {
		return ""
	}
	return strings.Join(*a.dst, ",")
}

func (a aliasValue) Set(s string) error {
	*a.dst = append(*a.dst, s)
	return nil
}

func (a aliasValue) Type() string { return "stringArray" }

// processArgs splits positional arguments into NAME=VALUE command-line
// overrides (origin command-line, §6) and target names, the way
// `marcelocantos-mk/cmd/mk/main.go`'s arg loop does for its own
// `vars.Set`/target split.
func processArgs(cfg *Config, args []string) error {
	for _, arg := range args {
		if name, value, ok := strings.Cut(arg, "="); ok && validOverrideName(name) {
			cfg.Overrides[name] = value
			continue
		}
		cfg.Targets = append(cfg.Targets, arg)
	}
	return nil
}

func validOverrideName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r == ' ' || r == '\t' {
			return false
		}
	}
	return true
}
