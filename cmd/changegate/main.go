// Copyright 2026 The Changegate Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/changegate/changegate/cmd/changegate/commands"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := commands.Root().Execute(ctx, args)
	if err == nil {
		return 0
	}
	// check answers "is this signal off?" with exit code 3; that is a
	// result, not a failure, so no "error:" line for it (or for any
	// other error carrying its own exit code).
	if coder, ok := err.(interface{ ExitCode() int }); ok {
		return coder.ExitCode()
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	return 1
}
