package content

import (
	"context"
	"io/fs"
	"time"

	"github.com/keithlinneman/docsite/internal/catalog"
	"github.com/keithlinneman/docsite/internal/xerrors"
)

// Source records where a bundle came from.
type Source string

const (
	SourceUnknown Source = "unknown"
	SourceSeed    Source = "seed"
	SourceDisk    Source = "disk"
	SourceS3      Source = "s3"
)

// Meta is what the server knows about a bundle apart from its contents.
type Meta struct {
	Version    string    `json:"version,omitempty"`
	Hash       string    `json:"hash,omitempty"`
	VerifiedAt time.Time `json:"verified_at,omitempty"`
	Source     Source    `json:"source,omitempty"`
	Signed     bool      `json:"signed,omitempty"` // signature checked against KMS
}

// Snapshot is one immutable bundle: its files, the docs catalog built
// from them and its provenance when the bundle ships one.
type Snapshot struct {
	FS         fs.FS
	Meta       Meta
	Provenance *Provenance
	Catalog    *catalog.Catalog
	LoadedAt   time.Time
}

// NewSnapshot builds the docs catalog of fsys. An unreadable
// provenance.json is treated as absent; ValidateSnapshot decides whether
// that is acceptable. meta.Version defaults to the provenance version.
func NewSnapshot(ctx context.Context, fsys fs.FS, meta Meta, opts catalog.Options) (*Snapshot, error) {
	if fsys == nil {
		return nil, xerrors.New("snapshot: nil filesystem")
	}
	cat, err := catalog.Build(ctx, fsys, opts)
	if err != nil {
		return nil, xerrors.Wrap(err, "build docs catalog")
	}

	prov, _ := LoadProvenance(fsys)
	if meta.Version == "" && prov != nil {
		meta.Version = prov.Version
	}
	return &Snapshot{
		FS:         fsys,
		Meta:       meta,
		Provenance: prov,
		Catalog:    cat,
		LoadedAt:   time.Now().UTC(),
	}, nil
}
