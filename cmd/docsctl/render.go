package main

import (
	"bytes"
	"context"
	"time"

	"github.com/samber/oops"
	"github.com/urfave/cli/v3"

	"github.com/keithlinneman/docsite/internal/cfg"
	"github.com/keithlinneman/docsite/internal/docload"
	"github.com/keithlinneman/docsite/internal/docpage"
	"github.com/keithlinneman/docsite/internal/log"
	"github.com/keithlinneman/docsite/internal/toolfetch"
)

func newRenderCommand() *cli.Command {
	return &cli.Command{
		Name:      "render",
		Usage:     "Render a docs page to HTML on stdout",
		ArgsUsage: "<type> [page] [version]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "site-config",
				Usage:   "Site settings TOML file",
				Sources: cli.EnvVars("DOCSITE_SITE_CONFIG"),
			},
			&cli.StringFlag{Name: "anchor", Usage: "Anchor to record for scrolling, with or without #"},
			&cli.DurationFlag{Name: "timeout", Usage: "Overrides the tool page fetch timeout"},
		},
		Action: renderAction,
	}
}

func renderAction(ctx context.Context, cmd *cli.Command) error {
	typ, page, version, err := routeArgs(cmd, "docsctl render <type> [page] [version]")
	if err != nil {
		return err
	}
	site, err := cfg.LoadSite(cmd.String("site-config"))
	if err != nil {
		return err
	}
	snap, err := loadBundle(ctx, cmd)
	if err != nil {
		return err
	}

	timeout := site.Tools.FetchTimeout
	if d := cmd.Duration("timeout"); d > 0 {
		timeout = d
	}
	fetcher := toolfetch.New(toolfetch.Options{
		Timeout:   timeout,
		MaxBytes:  site.Tools.MaxBytes,
		UserAgent: site.Tools.UserAgent,
	})
	defer fetcher.Close()

	renderer, err := docpage.NewRenderer(nil, site.DocsPage())
	if err != nil {
		return oops.Code("TEMPLATE_INVALID").Wrapf(err, "parsing docs templates")
	}

	var outcome docpage.Outcome
	sess := docpage.Open(ctx, snap.Catalog.Meta, docpage.Route{Type: typ, Page: page, Version: version}, docpage.SessionOptions{
		Loader:       docload.New(snap.Catalog.Modules, fetcher),
		Logger:       log.Nop(),
		HeaderOffset: float64(site.Docs.HeaderOffset),
		Observe: func(_ string, o docpage.Outcome, _ time.Duration) {
			outcome = o
		},
	})
	defer sess.Close()
	st := sess.Load(docpage.LoadOptions{Hash: cmd.String("anchor")})

	var buf bytes.Buffer
	if err := renderer.Render(&buf, st); err != nil {
		return oops.Code("RENDER_FAILED").Wrapf(err, "rendering docs page")
	}
	if _, err := cmd.Root().Writer.Write(buf.Bytes()); err != nil {
		return err
	}

	if st.Status() == docpage.StatusNotFound {
		return oops.
			Code("PAGE_NOT_FOUND").
			With("type", typ).
			With("page", page).
			With("outcome", string(outcome)).
			Hint("Run 'docsctl resolve' to see which content the route loads").
			Errorf("page %q of type %q rendered as not found", page, typ)
	}
	return nil
}
