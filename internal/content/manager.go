package content

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/keithlinneman/docsite/internal/catalog"
)

// ErrNoContent is returned by ReadyErr until a snapshot is set.
var ErrNoContent = errors.New("content: no active snapshot")

// Manager holds the active snapshot. Reads never block; Set replaces the
// whole snapshot so readers see either the old bundle or the new one.
type Manager struct {
	active atomic.Pointer[Snapshot]
}

func NewManager() *Manager { return &Manager{} }

// Set stores a copy of s, stamping LoadedAt when it is zero.
func (m *Manager) Set(s Snapshot) {
	if s.LoadedAt.IsZero() {
		s.LoadedAt = time.Now().UTC()
	}
	m.active.Store(&s)
}

// Get returns the active snapshot. ok is false until one with a
// filesystem has been set.
func (m *Manager) Get() (snap *Snapshot, ok bool) {
	s := m.active.Load()
	return s, s != nil && s.FS != nil
}

// ReadyErr backs the readiness probe.
func (m *Manager) ReadyErr() error {
	if _, ok := m.Get(); !ok {
		return ErrNoContent
	}
	return nil
}

func field[T any](m *Manager, f func(*Snapshot) T) T {
	if s := m.active.Load(); s != nil {
		return f(s)
	}
	var zero T
	return zero
}

func (m *Manager) Catalog() *catalog.Catalog {
	return field(m, func(s *Snapshot) *catalog.Catalog { return s.Catalog })
}

// ContentVersion prefers the provenance version over the bundle meta.
// With ContentHash it satisfies httpmw.ContentInfo.
func (m *Manager) ContentVersion() string {
	return field(m, func(s *Snapshot) string {
		if s.Provenance != nil && s.Provenance.Version != "" {
			return s.Provenance.Version
		}
		return s.Meta.Version
	})
}

func (m *Manager) ContentHash() string {
	return field(m, func(s *Snapshot) string { return s.Meta.Hash })
}
