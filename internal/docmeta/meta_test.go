package docmeta

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const metaJSON = `{
  "core-concepts": {
    "core-concepts": {"title": "Core Concepts", "path": "core-concepts/index.mdx"}
  },
  "guides": {
    "market-making": {
      "title": "Market making",
      "description": "Provide liquidity",
      "keywords": "mm, liquidity",
      "path": "guides/market-making.mdx"
    }
  },
  "tools": {
    "0x-js": {
      "title": "0x.js",
      "subtitle": "Library",
      "path": "tools/0x.js/v3.0.0/reference.mdx",
      "resourceUri": "https://example.com/0x.js/v3.0.0/reference.md",
      "versions": ["v3.0.0", "v2.1.0"]
    }
  }
}`

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := ParseRegistry([]byte(metaJSON))
	require.NoError(t, err)
	return r
}

func TestParseRegistry(t *testing.T) {
	r := testRegistry(t)
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []string{"core-concepts", "guides", "tools"}, r.Types())
	assert.Equal(t, []string{"market-making"}, r.Keys("guides"))
}

func TestParseRegistry_Invalid(t *testing.T) {
	_, err := ParseRegistry([]byte(`[1,2,3]`))
	require.Error(t, err)
}

func TestResolve_Found(t *testing.T) {
	r := testRegistry(t)
	p, err := r.Resolve("guides", "market-making", "")
	require.NoError(t, err)
	assert.Equal(t, "market-making", p.Key)
	assert.Equal(t, "guides/market-making.mdx", p.FilePath)
	assert.Equal(t, "Provide liquidity", p.Meta.Description)
	assert.False(t, p.IsTool)
}

func TestResolve_TypeIsKey(t *testing.T) {
	r := testRegistry(t)
	p, err := r.Resolve("core-concepts", "", "")
	require.NoError(t, err)
	assert.Equal(t, "core-concepts", p.Key)
	assert.Equal(t, "Core Concepts", p.Meta.Title)
}

func TestResolve_NotFound(t *testing.T) {
	r := testRegistry(t)
	for _, tc := range [][2]string{{"guides", "nope"}, {"nope", ""}, {"tools", "market-making"}} {
		_, err := r.Resolve(tc[0], tc[1], "")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotFound), "type=%s key=%s", tc[0], tc[1])
	}
}

func TestResolve_NilRegistry(t *testing.T) {
	var r *Registry
	_, err := r.Resolve("guides", "market-making", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolve_Version(t *testing.T) {
	r := testRegistry(t)

	p, err := r.Resolve("tools", "0x-js", "v2.1.0")
	require.NoError(t, err)
	assert.True(t, p.IsTool)
	assert.Equal(t, "tools/0x.js/v2.1.0/reference.mdx", p.FilePath)
	// metadata itself is untouched
	assert.Equal(t, "tools/0x.js/v3.0.0/reference.mdx", p.Meta.Path)

	p, err = r.Resolve("tools", "0x-js", "")
	require.NoError(t, err)
	assert.Equal(t, "tools/0x.js/v3.0.0/reference.mdx", p.FilePath)
}

func TestResolve_VersionIgnoredWhenUnversioned(t *testing.T) {
	r := testRegistry(t)
	p, err := r.Resolve("guides", "market-making", "v9")
	require.NoError(t, err)
	assert.Equal(t, "guides/market-making.mdx", p.FilePath)
}

func TestResolve_Idempotent(t *testing.T) {
	r := testRegistry(t)
	a, errA := r.Resolve("tools", "0x-js", "v2.1.0")
	b, errB := r.Resolve("tools", "0x-js", "v2.1.0")
	require.NoError(t, errA)
	require.NoError(t, errB)
	assert.Equal(t, a, b)
}

func TestRegistry_Immutable(t *testing.T) {
	src := map[string]map[string]PageMeta{
		"tools": {"x": {Title: "X", Versions: []string{"v1"}}},
	}
	r := NewRegistry(src)
	src["tools"]["x"] = PageMeta{Title: "changed"}

	m, ok := r.Lookup("tools", "x")
	require.True(t, ok)
	assert.Equal(t, "X", m.Title)

	m.Versions[0] = "mutated"
	again, _ := r.Lookup("tools", "x")
	assert.Equal(t, "v1", again.Versions[0])
}
