// Package docload loads the content of a resolved documentation page.
package docload

import (
	"context"
	"errors"
	"fmt"

	"github.com/gomarkdown/markdown/ast"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/keithlinneman/docsite/internal/docmeta"
	"github.com/keithlinneman/docsite/internal/docmodule"
	"github.com/keithlinneman/docsite/internal/toc"
)

// ErrLoadFailed is wrapped by every Load error.
var ErrLoadFailed = errors.New("docload: load failed")

// Kind tags where a document came from.
type Kind string

const (
	KindModule Kind = "module"
	KindRaw    Kind = "raw"
)

// Document is a loaded page, ready to render.
type Document struct {
	Kind Kind
	// Module is set for KindModule.
	Module *docmodule.Module
	// Raw is the fetched text for KindRaw.
	Raw []byte
	// Root is the parsed, heading-annotated document for either kind.
	Root ast.Node
	TOC  []toc.Entry
}

// Fetcher retrieves tool page resources.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// Modules resolves bundled content modules.
type Modules interface {
	Lookup(ctx context.Context, contentPath string) (*docmodule.Module, error)
}

// Loader loads page content from either source.
type Loader struct {
	modules Modules
	fetcher Fetcher
}

// New returns a Loader. Either dependency may be nil, in which case pages
// that need it fail to load.
func New(modules Modules, fetcher Fetcher) *Loader {
	return &Loader{modules: modules, fetcher: fetcher}
}

var tracer = otel.Tracer("docsite/docload")

// Load retrieves the content for page. Tool pages are fetched from their
// resource URI and run through the TOC extractor; other pages come from the
// module registry with a precomputed TOC. Every failure, including a panic
// while parsing, wraps ErrLoadFailed.
func (l *Loader) Load(ctx context.Context, page docmeta.Page) (doc *Document, err error) {
	ctx, span := tracer.Start(ctx, "docload.Load")
	span.SetAttributes(
		attribute.String("docs.type", page.Type),
		attribute.String("docs.key", page.Key),
		attribute.Bool("docs.tool", page.IsTool),
	)
	defer func() {
		if rec := recover(); rec != nil {
			doc = nil
			err = failure(page).Wrapf(fmt.Errorf("%w: panic: %v", ErrLoadFailed, rec), "loading page")
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "load failed")
		}
		span.End()
	}()

	if page.IsTool {
		return l.loadTool(ctx, page)
	}
	return l.loadModule(ctx, page)
}

func (l *Loader) loadTool(ctx context.Context, page docmeta.Page) (*Document, error) {
	if l.fetcher == nil {
		return nil, failure(page).Wrapf(ErrLoadFailed, "no fetcher configured")
	}
	raw, err := l.fetcher.Fetch(ctx, page.Meta.ResourceURI)
	if err != nil {
		return nil, failure(page).Wrapf(errors.Join(ErrLoadFailed, err), "fetching tool page")
	}
	root := toc.Parse(raw)
	return &Document{
		Kind: KindRaw,
		Raw:  raw,
		Root: root,
		TOC:  toc.Collect(root),
	}, nil
}

func (l *Loader) loadModule(ctx context.Context, page docmeta.Page) (*Document, error) {
	if l.modules == nil {
		return nil, failure(page).Wrapf(ErrLoadFailed, "no module registry")
	}
	m, err := l.modules.Lookup(ctx, page.FilePath)
	if err != nil {
		return nil, failure(page).Wrapf(errors.Join(ErrLoadFailed, err), "importing content module")
	}
	return &Document{
		Kind:   KindModule,
		Module: m,
		Root:   m.Document,
		TOC:    m.TableOfContents(),
	}, nil
}

func failure(page docmeta.Page) oops.OopsErrorBuilder {
	return oops.
		Code("LOAD_FAILED").
		With("type", page.Type).
		With("key", page.Key).
		With("path", page.FilePath)
}
