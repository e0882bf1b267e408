package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/oops"
	"github.com/urfave/cli/v3"

	"github.com/keithlinneman/docsite/internal/toc"
)

func newTOCCommand() *cli.Command {
	return &cli.Command{
		Name:      "toc",
		Usage:     "Print the table of contents of a markdown file",
		ArgsUsage: "<file|->",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Output as JSON"},
			&cli.IntFlag{Name: "min-level", Usage: "Shallowest heading level to list", Value: 1},
			&cli.IntFlag{Name: "max-level", Usage: "Deepest heading level to list", Value: 6},
		},
		Action: tocAction,
	}
}

func tocAction(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return oops.
			Code("INVALID_ARGS").
			Hint("Usage: docsctl toc <file|->").
			Errorf("expected 1 argument, got %d", cmd.Args().Len())
	}

	name := cmd.Args().First()
	var raw []byte
	var err error
	if name == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(name)
	}
	if err != nil {
		return oops.
			Code("FILE_NOT_FOUND").
			With("file", name).
			Wrapf(err, "reading markdown")
	}

	entries := toc.Filter(toc.Extract(raw), cmd.Int("min-level"), cmd.Int("max-level"))
	return writeTOC(cmd.Root().Writer, entries, cmd.Bool("json"))
}

func writeTOC(out io.Writer, entries []toc.Entry, asJSON bool) error {
	if asJSON {
		if entries == nil {
			entries = []toc.Entry{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(entries); err != nil {
			return oops.Code("JSON_ERROR").Wrapf(err, "encoding toc")
		}
		return nil
	}

	w := table.NewWriter()
	w.SetOutputMirror(out)
	w.SetStyle(table.StyleRounded)
	w.AppendHeader(table.Row{"LEVEL", "HEADING", "ANCHOR"})
	for _, e := range entries {
		w.AppendRow(table.Row{e.Level, strings.Repeat("  ", max(e.Level-1, 0)) + e.Text, "#" + e.ID})
	}
	w.Render()
	return nil
}
