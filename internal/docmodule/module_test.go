package docmodule

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	tests := []struct{ in, want string }{
		{"guides/intro.mdx", "guides/intro"},
		{"mdx/guides/intro.mdx", "guides/intro"},
		{"/guides/intro.md", "guides/intro"},
		{"guides/intro", "guides/intro"},
		{"tools/0x.js/v3.0.0/reference.mdx", "tools/0x.js/v3.0.0/reference"},
		{"guides/../guides/intro.MDX", "guides/intro"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Key(tt.in), tt.in)
	}
}

func TestNewModule(t *testing.T) {
	m := NewModule("guides/intro.mdx", []byte("---\ntitle: Intro\n---\n# Intro\n\n## Setup\n"))
	assert.Equal(t, "Intro", m.Title)
	require.NotNil(t, m.Document)

	entries := m.TableOfContents()
	require.Len(t, entries, 2)
	assert.Equal(t, "setup", entries[1].ID)

	// callers get a copy
	entries[0].ID = "changed"
	assert.Equal(t, "intro", m.TableOfContents()[0].ID)
}

func TestRegistry_Lookup(t *testing.T) {
	m := NewModule("guides/intro.mdx", []byte("# Intro"))
	r := NewRegistry(map[string]LoaderFunc{"guides/intro.mdx": static(m)})

	got, err := r.Lookup(context.Background(), "guides/intro.mdx")
	require.NoError(t, err)
	assert.Same(t, m, got)

	_, err = r.Lookup(context.Background(), "guides/missing.mdx")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_LoaderError(t *testing.T) {
	boom := errors.New("boom")
	r := NewRegistry(map[string]LoaderFunc{
		"broken": func(context.Context) (*Module, error) { return nil, boom },
	})
	_, err := r.Lookup(context.Background(), "broken.mdx")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestRegistry_Nil(t *testing.T) {
	var r *Registry
	assert.Equal(t, 0, r.Len())
	_, err := r.Lookup(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFromFS(t *testing.T) {
	fsys := fstest.MapFS{
		"mdx/guides/intro.mdx":           {Data: []byte("# Intro\n\n## One\n")},
		"mdx/core-concepts/index.md":     {Data: []byte("# Core")},
		"mdx/tools/0x.js/v3.0.0/ref.mdx": {Data: []byte("# Ref")},
		"images/logo.png":                {Data: []byte("PNG")},
		"mdx/notes.txt":                  {Data: []byte("not a module")},
	}

	r, err := FromFS(context.Background(), fsys, BuildOptions{Concurrency: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"core-concepts/index", "guides/intro", "tools/0x.js/v3.0.0/ref"}, r.Paths())

	m, err := r.Lookup(context.Background(), "guides/intro.mdx")
	require.NoError(t, err)
	assert.Len(t, m.TableOfContents(), 2)
}

func TestFromFS_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fsys := fstest.MapFS{"mdx/a.md": {Data: []byte("# A")}}
	_, err := FromFS(ctx, fsys, BuildOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRegistry_Has(t *testing.T) {
	reg := NewRegistry(map[string]LoaderFunc{"mdx/guides/intro.mdx": nil})
	assert.True(t, reg.Has("guides/intro"))
	assert.True(t, reg.Has("/mdx/guides/intro.md"))
	assert.False(t, reg.Has("guides/outro"))

	var nilReg *Registry
	assert.False(t, nilReg.Has("guides/intro"))
}
