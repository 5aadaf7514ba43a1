// cmd/bam/main.go
//
// This is the entry point for the bam CLI.
// `bam install|build|deploy` run the lifecycle of the configuration found in
// the working directory; `bam clone` bootstraps a project from git.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kingrea/bam/internal/cli"
)

// version is replaced at link time: -ldflags "-X main.version=1.2.3"
var version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.New(cli.Options{Version: version}).Run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
