// Copyright 2026 The gomake Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
)

func main() {
	os.Exit(mainRun())
}

func mainRun() int {
	cmd := NewRootCmd()
	err := cmd.Execute()
	if err == nil {
		return 0
	}

	msg := fmt.Sprintf("gomake: %s", err)
	if useColor() {
		msg = "\x1b[31m" + msg + "\x1b[0m"
	}
	fmt.Fprintln(os.Stderr, msg)
	return 2
}
