package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/oops"
	"github.com/urfave/cli/v3"

	"github.com/keithlinneman/docsite/internal/catalog"
	"github.com/keithlinneman/docsite/internal/content"
)

func newSummaryCommand() *cli.Command {
	return &cli.Command{
		Name:  "summary",
		Usage: "Count pages and modules and check the bundle can be published",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Output as JSON"},
			&cli.IntFlag{Name: "min-files", Usage: "Fail when the bundle has fewer files", Value: 3},
			&cli.BoolFlag{Name: "require-provenance", Usage: "Fail when provenance.json is missing"},
			&cli.BoolFlag{Name: "allow-missing-modules", Usage: "Accept pages whose content module is absent"},
		},
		Action: summaryAction,
	}
}

type summaryReport struct {
	Version string          `json:"version,omitempty"`
	Catalog catalog.Summary `json:"catalog"`
	Valid   bool            `json:"valid"`
	Problem string          `json:"problem,omitempty"`
}

func summaryAction(ctx context.Context, cmd *cli.Command) error {
	snap, err := loadBundle(ctx, cmd)
	if err != nil {
		return err
	}

	report := summaryReport{
		Version: snap.Meta.Version,
		Catalog: snap.Catalog.Summarize(),
		Valid:   true,
	}
	verr := content.ValidateSnapshot(snap, content.ValidationOptions{
		MinFiles:            cmd.Int("min-files"),
		RequireProvenance:   cmd.Bool("require-provenance"),
		AllowMissingModules: cmd.Bool("allow-missing-modules"),
	})
	if verr != nil {
		report.Valid = false
		report.Problem = verr.Error()
	}

	out := cmd.Root().Writer
	if cmd.Bool("json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return oops.Code("JSON_ERROR").Wrapf(err, "encoding summary")
		}
	} else {
		writeSummary(out, report)
	}

	if verr != nil {
		return oops.
			Code("BUNDLE_INVALID").
			With("content_dir", cmd.String("content-dir")).
			Hint("Fix the bundle before publishing; the server would refuse to swap it in").
			Wrapf(verr, "bundle check failed")
	}
	return nil
}

func writeSummary(out io.Writer, r summaryReport) {
	w := table.NewWriter()
	w.SetOutputMirror(out)
	w.SetStyle(table.StyleRounded)
	w.AppendHeader(table.Row{"TYPE", "PAGES"})

	types := make([]string, 0, len(r.Catalog.Types))
	for typ := range r.Catalog.Types {
		types = append(types, typ)
	}
	slices.Sort(types)
	for _, typ := range types {
		w.AppendRow(table.Row{typ, r.Catalog.Types[typ]})
	}
	w.AppendFooter(table.Row{"TOTAL", r.Catalog.Pages})
	w.Render()

	_, _ = fmt.Fprintf(out, "modules: %d  team members: %d\n", r.Catalog.Modules, r.Catalog.Team)
	for _, m := range r.Catalog.Missing {
		_, _ = fmt.Fprintf(out, "%s %s\n", color.YellowString("missing module:"), m)
	}

	if r.Valid {
		_, _ = fmt.Fprintln(out, color.GreenString("bundle OK"))
		return
	}
	_, _ = fmt.Fprintf(out, "%s %s\n", color.RedString("bundle invalid:"), r.Problem)
}
