// Copyright 2026 The gomake Authors
// SPDX-License-Identifier: Apache-2.0

package main

// Config holds every resolved command-line option for one invocation
// (spec.md §6), gathered before NewMakefile/Load ever runs so that
// validation lives in one place (PreRunE) rather than scattered through
// RunE.
type Config struct {
	Makefiles      []string
	Debug          bool
	KeepGoing      bool
	DebugLog       string
	Directory      string
	ShowVersion    bool
	Jobs           int
	PrintDirectory bool
	NoPrintDir     bool
	Silent         bool
	DryRun         bool
	TraceLog       string

	Targets   []string
	Overrides map[string]string
}

// NewConfig returns a Config with gomake's defaults: one job at a time and
// directory banners on (GNU make itself defaults banners to off outside
// sub-makes).
func NewConfig() *Config {
	return &Config{
		Jobs:           1,
		PrintDirectory: true,
		Overrides:      map[string]string{},
	}
}

// resolvePrintDirectory applies --no-print-directory's override and
// -s/--silent's "implies no directory prints" rule (§6).
func (c *Config) resolvePrintDirectory() bool {
	if c.NoPrintDir || c.Silent {
		return false
	}
	return c.PrintDirectory
}
