package toc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNest(t *testing.T) {
	entries := []Entry{
		{Text: "A", ID: "a", Level: 2},
		{Text: "A.1", ID: "a1", Level: 3},
		{Text: "A.1.a", ID: "a1a", Level: 4},
		{Text: "A.2", ID: "a2", Level: 3},
		{Text: "B", ID: "b", Level: 2},
	}
	roots := Nest(entries)
	require.Len(t, roots, 2)
	assert.Equal(t, "a", roots[0].ID)
	require.Len(t, roots[0].Children, 2)
	assert.Equal(t, "a1", roots[0].Children[0].ID)
	assert.Equal(t, "a1a", roots[0].Children[0].Children[0].ID)
	assert.Equal(t, "a2", roots[0].Children[1].ID)
	assert.Empty(t, roots[1].Children)
}

func TestNest_StartsDeep(t *testing.T) {
	roots := Nest([]Entry{{ID: "x", Level: 3}, {ID: "y", Level: 2}})
	require.Len(t, roots, 2)
	assert.Equal(t, "x", roots[0].ID)
	assert.Equal(t, "y", roots[1].ID)
}

func TestFilter(t *testing.T) {
	entries := []Entry{{Level: 1}, {Level: 2}, {Level: 3}, {Level: 4}}
	assert.Len(t, Filter(entries, 2, 3), 2)
	assert.Len(t, Filter(entries, 0, 0), 4)
	assert.Len(t, Filter(entries, 0, 2), 2)
}
