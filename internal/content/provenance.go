package content

import (
	"encoding/json"
	"errors"
	"io/fs"
	"time"

	"github.com/keithlinneman/docsite/internal/xerrors"
)

// ProvenanceFilePath is written by the bundle build at the archive root.
const ProvenanceFilePath = "provenance.json"

// Provenance describes how a bundle was built: the docs commit it came
// from, what it contains and the tools that produced it. It is served
// as-is by /api/content/provenance.
type Provenance struct {
	Schema      string    `json:"schema"`
	Version     string    `json:"version"`
	ContentHash string    `json:"content_hash"`
	CreatedAt   time.Time `json:"created_at"`

	Source struct {
		Repository  string    `json:"repository"`
		Commit      string    `json:"commit"`
		CommitShort string    `json:"commit_short"`
		CommitDate  time.Time `json:"commit_date"`
		Branch      string    `json:"branch"`
		Dirty       bool      `json:"dirty"`
	} `json:"source"`

	Summary struct {
		TotalFiles int            `json:"total_files"`
		TotalSize  int64          `json:"total_size"`
		FileTypes  map[string]int `json:"file_types"`
	} `json:"summary"`

	Tooling map[string]Tool `json:"tooling,omitempty"`
}

type Tool struct {
	Version string `json:"version"`
	SHA256  string `json:"sha256,omitempty"`
}

// ErrNoProvenance is returned by LoadProvenance when the bundle has no
// provenance.json.
var ErrNoProvenance = errors.New("bundle has no " + ProvenanceFilePath)

func LoadProvenance(fsys fs.FS) (*Provenance, error) {
	data, err := fs.ReadFile(fsys, ProvenanceFilePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoProvenance
	}
	if err != nil {
		return nil, xerrors.Wrapf(err, "read %s", ProvenanceFilePath)
	}
	p := new(Provenance)
	if err := json.Unmarshal(data, p); err != nil {
		return nil, xerrors.Wrapf(err, "parse %s", ProvenanceFilePath)
	}
	return p, nil
}
