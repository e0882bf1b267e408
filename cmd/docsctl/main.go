// Command docsctl inspects an unpacked content bundle offline: it resolves
// docs pages, prints tables of contents, renders pages to HTML and checks a
// bundle before it is published.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/samber/oops"
	"github.com/urfave/cli/v3"

	"github.com/keithlinneman/docsite/internal/catalog"
	"github.com/keithlinneman/docsite/internal/content"
	v "github.com/keithlinneman/docsite/internal/version"
)

func main() {
	if err := run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	return newRootCommand().Run(ctx, args)
}

func newRootCommand() *cli.Command {
	vi := v.Get()
	return &cli.Command{
		Name:    "docsctl",
		Usage:   "Inspect and render a docsite content bundle",
		Version: fmt.Sprintf("%s (commit %s, built %s)", vi.Version, vi.Commit, vi.BuildDate),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "content-dir",
				Aliases: []string{"d"},
				Usage:   "Unpacked content bundle directory",
				Value:   ".",
				Sources: cli.EnvVars("DOCSITE_CONTENT_DIR"),
			},
		},
		Commands: []*cli.Command{
			newResolveCommand(),
			newTOCCommand(),
			newRenderCommand(),
			newSummaryCommand(),
		},
	}
}

// loadBundle reads the bundle named by --content-dir.
func loadBundle(ctx context.Context, cmd *cli.Command) (*content.Snapshot, error) {
	dir := cmd.String("content-dir")
	snap, err := content.LoadDir(ctx, dir, catalog.Options{})
	if err != nil {
		return nil, oops.
			Code("BUNDLE_UNREADABLE").
			With("content_dir", dir).
			Hint("Point --content-dir at an unpacked bundle containing meta.json").
			Wrapf(err, "loading content bundle")
	}
	return snap, nil
}

// routeArgs reads <type> [page] [version] from the positional arguments.
func routeArgs(cmd *cli.Command, usage string) (typ, page, version string, err error) {
	n := cmd.Args().Len()
	if n < 1 || n > 3 {
		return "", "", "", oops.
			Code("INVALID_ARGS").
			Hint("Usage: "+usage).
			Errorf("expected 1 to 3 arguments, got %d", n)
	}
	return cmd.Args().Get(0), cmd.Args().Get(1), cmd.Args().Get(2), nil
}
