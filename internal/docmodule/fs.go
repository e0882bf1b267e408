package docmodule

import (
	"context"
	"io/fs"
	"runtime"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/samber/oops"
	"golang.org/x/sync/errgroup"
)

// Root is the bundle directory holding content modules.
const Root = "mdx"

// DefaultPatterns are the globs (relative to the bundle root) that identify
// content modules.
func DefaultPatterns() []string {
	return []string{Root + "/**/*.md", Root + "/**/*.mdx"}
}

// BuildOptions controls FromFS.
type BuildOptions struct {
	// Patterns selects module files. Empty means DefaultPatterns.
	Patterns []string
	// Concurrency bounds parallel parsing. Zero means GOMAXPROCS.
	Concurrency int
}

// FromFS discovers content modules in fsys and parses them up front, so
// a lookup at request time never touches the filesystem or the parser.
func FromFS(ctx context.Context, fsys fs.FS, opts BuildOptions) (*Registry, error) {
	patterns := opts.Patterns
	if len(patterns) == 0 {
		patterns = DefaultPatterns()
	}

	seen := make(map[string]struct{})
	var files []string
	for _, pattern := range patterns {
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, oops.
				Code("CONFIG_INVALID").
				With("pattern", pattern).
				Wrapf(err, "matching content modules")
		}
		for _, m := range matches {
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	sort.Strings(files)

	limit := opts.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	modules := make([]*Module, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, name := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			raw, err := fs.ReadFile(fsys, name)
			if err != nil {
				return oops.
					Code("MODULE_LOAD_FAILED").
					With("path", name).
					Wrapf(err, "reading content module")
			}
			modules[i] = NewModule(strings.TrimPrefix(name, Root+"/"), raw)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	loaders := make(map[string]LoaderFunc, len(modules))
	for _, m := range modules {
		loaders[m.Path] = static(m)
	}
	return NewRegistry(loaders), nil
}

func static(m *Module) LoaderFunc {
	return func(context.Context) (*Module, error) { return m, nil }
}
