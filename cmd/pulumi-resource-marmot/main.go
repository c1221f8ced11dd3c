package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/goto/pulumi-marmot/cli"
	"github.com/pulumi/pulumi/sdk/v3/go/common/util/cmdutil"
)

func main() {
	// stdout carries the port handshake, everything else goes to stderr
	cfg, err := cli.LoadPluginConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cli.ServeProvider(ctx, cfg); err != nil {
		cancel()
		cmdutil.ExitError(err.Error())
	}
}
