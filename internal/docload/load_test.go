package docload

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keithlinneman/docsite/internal/docmeta"
	"github.com/keithlinneman/docsite/internal/docmodule"
	"github.com/keithlinneman/docsite/internal/toc"
	"github.com/keithlinneman/docsite/internal/toolfetch"
)

type fetchFunc func(ctx context.Context, uri string) ([]byte, error)

func (f fetchFunc) Fetch(ctx context.Context, uri string) ([]byte, error) { return f(ctx, uri) }

func toolPage(uri string) docmeta.Page {
	return docmeta.Page{
		Type:   docmeta.ToolsType,
		Key:    "0x.js",
		IsTool: true,
		Meta:   docmeta.PageMeta{Title: "0x.js", ResourceURI: uri},
	}
}

func TestLoad_ToolTOCMatchesHeadingOrder(t *testing.T) {
	text := "# 0x.js\n\n## Install\n\n### npm\n\n## Usage\n\n#### Deep\n\n## API\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(text))
	}))
	defer srv.Close()

	l := New(nil, toolfetch.New(toolfetch.Options{Transport: http.DefaultTransport}))
	doc, err := l.Load(context.Background(), toolPage(srv.URL))
	require.NoError(t, err)

	assert.Equal(t, KindRaw, doc.Kind)
	assert.Equal(t, text, string(doc.Raw))
	assert.Equal(t, toc.Extract([]byte(text)), doc.TOC)

	var texts []string
	var levels []int
	for _, e := range doc.TOC {
		texts = append(texts, e.Text)
		levels = append(levels, e.Level)
	}
	assert.Equal(t, []string{"0x.js", "Install", "npm", "Usage", "Deep", "API"}, texts)
	assert.Equal(t, []int{1, 2, 3, 2, 4, 2}, levels)
}

func TestLoad_ToolFetch404(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	l := New(nil, toolfetch.New(toolfetch.Options{Transport: http.DefaultTransport}))
	doc, err := l.Load(context.Background(), toolPage(srv.URL))
	assert.Nil(t, doc)
	assert.ErrorIs(t, err, ErrLoadFailed)
	assert.ErrorIs(t, err, toolfetch.ErrFetchFailed)
}

func TestLoad_ToolWithoutFetcher(t *testing.T) {
	_, err := New(nil, nil).Load(context.Background(), toolPage("http://example.invalid"))
	assert.ErrorIs(t, err, ErrLoadFailed)
}

func TestLoad_PanicBecomesLoadFailure(t *testing.T) {
	l := New(nil, fetchFunc(func(context.Context, string) ([]byte, error) {
		panic("extractor blew up")
	}))
	doc, err := l.Load(context.Background(), toolPage("http://x"))
	assert.Nil(t, doc)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLoadFailed)
	assert.Contains(t, err.Error(), "extractor blew up")
}

func TestLoad_Module(t *testing.T) {
	m := docmodule.NewModule("guides/intro.mdx", []byte("# Intro\n\n## Step one\n"))
	reg := docmodule.NewRegistry(map[string]docmodule.LoaderFunc{
		"guides/intro.mdx": func(context.Context) (*docmodule.Module, error) { return m, nil },
	})

	page := docmeta.Page{Type: "guides", Key: "intro", FilePath: "guides/intro.mdx"}
	doc, err := New(reg, nil).Load(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, KindModule, doc.Kind)
	assert.Same(t, m, doc.Module)
	assert.Equal(t, m.Document, doc.Root)
	assert.Equal(t, m.TableOfContents(), doc.TOC)
}

func TestLoad_UnknownModule(t *testing.T) {
	reg := docmodule.NewRegistry(nil)
	page := docmeta.Page{Type: "guides", Key: "missing", FilePath: "guides/missing.mdx"}
	_, err := New(reg, nil).Load(context.Background(), page)
	assert.ErrorIs(t, err, ErrLoadFailed)
	assert.ErrorIs(t, err, docmodule.ErrNotFound)
}

func TestLoad_ModuleLoaderError(t *testing.T) {
	boom := errors.New("boom")
	reg := docmodule.NewRegistry(map[string]docmodule.LoaderFunc{
		"a": func(context.Context) (*docmodule.Module, error) { return nil, boom },
	})
	_, err := New(reg, nil).Load(context.Background(), docmeta.Page{FilePath: "a.mdx"})
	assert.ErrorIs(t, err, ErrLoadFailed)
	assert.ErrorIs(t, err, boom)
}
