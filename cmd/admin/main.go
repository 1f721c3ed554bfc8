// Package main provides the operator administration utilities.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	admincmd "github.com/potaudit/potaudit/internal/cmd/admin"
	"github.com/potaudit/potaudit/internal/platform/config"
)

func main() {
	cfg, err := admincmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := admincmd.Run(ctx, cfg, os.Stdout, os.Stderr); err != nil {
		config.Exitf("Error: %v", err)
	}
}
