package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"planhub/cli/internal/command"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := command.BuildApp(command.Deps{})
	app.Version = version
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
