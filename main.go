// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"audioviz/cmd"
	"audioviz/internal/app"
	"audioviz/internal/build"
	applog "audioviz/internal/log"
)

// main is the entry point. Startup validates build information and parses
// the command line; the root command then runs until SIGINT or SIGTERM.
func main() {
	if err := build.Initialize(); err != nil {
		applog.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cmd.NewRootCommand(app.Run, os.Stdout)
	if err := root.ExecuteContext(ctx); err != nil {
		stop()
		applog.Fatalf("%v", err)
	}
}
