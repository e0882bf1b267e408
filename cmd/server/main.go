// Command server is the docs site: public pages and APIs on one port,
// metrics, probes and pprof on an internal ops port.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/keithlinneman/docsite/internal/cfg"
	v "github.com/keithlinneman/docsite/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	var conf cfg.App
	return &cli.Command{
		Name:    v.AppName,
		Usage:   "Serve the docs site",
		Version: v.Get().String(),
		Flags:   cfg.Flags(&conf),
		Action: func(ctx context.Context, _ *cli.Command) error {
			if err := cfg.Validate(conf); err != nil {
				return fmt.Errorf("config error:\n%w", err)
			}
			site, err := cfg.LoadSite(conf.SiteConfig)
			if err != nil {
				return fmt.Errorf("site config error: %w", err)
			}
			return serve(ctx, conf, site)
		},
	}
}
