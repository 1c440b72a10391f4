package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	perrors "avatarpipe/internal/pkg/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand(defaultRunnerFactory)
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			reportError(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// reportError prints the error and, for coded errors, the captured stack.
func reportError(w io.Writer, err error) {
	fmt.Fprintf(w, "\nError: %v\n", err)
	if stack := perrors.FullStack(err); stack != "" {
		fmt.Fprint(w, stack)
	}
}
