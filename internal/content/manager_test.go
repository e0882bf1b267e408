package content

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_Empty(t *testing.T) {
	m := NewManager()
	_, ok := m.Get()
	assert.False(t, ok)
	assert.ErrorIs(t, m.ReadyErr(), ErrNoContent)
	assert.Nil(t, m.Catalog())
	assert.Empty(t, m.ContentVersion())
	assert.Empty(t, m.ContentHash())
}

func TestManager_SetWithoutFS(t *testing.T) {
	m := NewManager()
	m.Set(Snapshot{Meta: Meta{Hash: "abc"}})
	_, ok := m.Get()
	assert.False(t, ok, "a snapshot without files is not servable")
	assert.ErrorIs(t, m.ReadyErr(), ErrNoContent)
}

func TestManager_SetGet(t *testing.T) {
	m := NewManager()
	snap := snapshotOf(t, docsFiles("2026.10.1"))
	snap.Meta.Hash = "f00d"
	snap.LoadedAt = time.Time{}

	m.Set(*snap)
	got, ok := m.Get()
	require.True(t, ok)
	require.NoError(t, m.ReadyErr())
	assert.NotSame(t, snap, got, "Set stores a copy")
	assert.False(t, got.LoadedAt.IsZero())
	assert.Same(t, snap.Catalog, m.Catalog())
	assert.Equal(t, "f00d", m.ContentHash())
}

func TestManager_ContentVersion(t *testing.T) {
	m := NewManager()
	snap := snapshotOf(t, docsFiles("from-provenance"))
	snap.Meta.Version = "from-meta"
	m.Set(*snap)
	assert.Equal(t, "from-provenance", m.ContentVersion())

	snap.Provenance = nil
	m.Set(*snap)
	assert.Equal(t, "from-meta", m.ContentVersion())
}

func TestManager_ConcurrentSwap(t *testing.T) {
	m := NewManager()
	a := snapshotOf(t, docsFiles("a"))
	a.Meta.Hash = "a"
	b := snapshotOf(t, docsFiles("b"))
	b.Meta.Hash = "b"
	m.Set(*a)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := range 200 {
			if i%2 == 0 {
				m.Set(*b)
			} else {
				m.Set(*a)
			}
		}
	}()
	go func() {
		defer wg.Done()
		for range 200 {
			s, ok := m.Get()
			if assert.True(t, ok) {
				assert.Equal(t, s.Meta.Hash, s.Provenance.Version, "fields of one snapshot never mix")
			}
		}
	}()
	wg.Wait()
}
