package main

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/oops"
	"github.com/urfave/cli/v3"

	"github.com/keithlinneman/docsite/internal/docmeta"
)

func newResolveCommand() *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Show which content a docs route loads",
		ArgsUsage: "<type> [page] [version]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Output as JSON"},
		},
		Action: resolveAction,
	}
}

func resolveAction(ctx context.Context, cmd *cli.Command) error {
	typ, page, version, err := routeArgs(cmd, "docsctl resolve <type> [page] [version]")
	if err != nil {
		return err
	}
	snap, err := loadBundle(ctx, cmd)
	if err != nil {
		return err
	}

	p, err := snap.Catalog.Meta.Resolve(typ, page, version)
	if errors.Is(err, docmeta.ErrNotFound) {
		return oops.
			Code("METADATA_NOT_FOUND").
			With("type", typ).
			With("page", page).
			Hint("Run 'docsctl summary' to list the page types in the bundle").
			Errorf("no page %q of type %q", page, typ)
	}
	if err != nil {
		return err
	}

	out := cmd.Root().Writer
	if cmd.Bool("json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(p); err != nil {
			return oops.Code("JSON_ERROR").Wrapf(err, "encoding page")
		}
		return nil
	}

	source := p.FilePath
	if p.IsTool {
		source = p.Meta.ResourceURI
	}
	available := "no"
	if snap.Catalog.Modules.Has(p.FilePath) {
		available = "yes"
	}
	if p.IsTool {
		available = "remote"
	}

	w := table.NewWriter()
	w.SetOutputMirror(out)
	w.SetStyle(table.StyleRounded)
	w.AppendRows([]table.Row{
		{"TYPE", p.Type},
		{"KEY", p.Key},
		{"VERSION", p.Version},
		{"TITLE", p.Meta.Title},
		{"SOURCE", source},
		{"TOOL", strconv.FormatBool(p.IsTool)},
		{"VERSIONS", strings.Join(p.Meta.Versions, ", ")},
		{"MODULE", available},
	})
	w.Render()
	return nil
}
