package main

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/meow-stack/runscope/cmd/runscope/cmd"
	rerrors "github.com/meow-stack/runscope/internal/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := cmd.Execute(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var rerr *rerrors.RepoError
		if errors.As(err, &rerr) {
			for _, k := range slices.Sorted(maps.Keys(rerr.Details)) {
				fmt.Fprintf(os.Stderr, "  %s: %v\n", k, rerr.Details[k])
			}
		}
		os.Exit(1)
	}
}
