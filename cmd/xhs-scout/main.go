package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"xhs-scout/internal/app"
	"xhs-scout/internal/observability"
)

// Version задаётся через -ldflags при сборке.
var Version = "dev"

func main() {
	ctx, cancel := app.GracefulShutdown(context.Background(), observability.Nop())
	defer cancel()

	if err := execute(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, err)
		}
		cancel()
		os.Exit(1)
	}
}
