package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"userctl/internal/cli"
)

func main() {
	// Cancel in-flight queries on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one userctl invocation and returns its exit status: 0 when the
// command completed, including not-found and duplicate outcomes, and 1 for
// usage, configuration and storage failures.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	app := &cli.App{}
	root := cli.NewRootCommand(app)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		app.Logger(stderr).WithError(err).Error("command failed")
		return 1
	}
	return 0
}
