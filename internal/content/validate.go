package content

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/keithlinneman/docsite/internal/catalog"
	"github.com/keithlinneman/docsite/internal/xerrors"
)

// ValidationOptions selects the checks a bundle must pass before it is
// served. The zero value requires meta.json and at least one docs page
// whose content modules all exist.
type ValidationOptions struct {
	MinFiles            int  // 0 disables the file count check
	RequireProvenance   bool // otherwise a missing provenance.json is accepted
	AllowMissingModules bool // pages without a module then render as not found
}

func DefaultValidationOptions() ValidationOptions {
	return ValidationOptions{MinFiles: 3, RequireProvenance: true}
}

// ErrInvalidBundle is wrapped by every ValidateSnapshot failure.
var ErrInvalidBundle = errors.New("invalid content bundle")

// ValidateSnapshot checks snap before it replaces the active content. All
// failing checks are reported together.
func ValidateSnapshot(snap *Snapshot, opts ValidationOptions) error {
	if snap == nil || snap.FS == nil {
		return xerrors.Newf("%w: no filesystem", ErrInvalidBundle)
	}

	var problems []error
	fail := func(format string, args ...any) {
		problems = append(problems, xerrors.Newf(format, args...))
	}

	if info, err := fs.Stat(snap.FS, catalog.MetaFile); err != nil {
		fail("%s: %w", catalog.MetaFile, err)
	} else if info.Size() == 0 {
		fail("%s is empty", catalog.MetaFile)
	}

	switch {
	case snap.Catalog == nil:
		fail("no docs catalog")
	case snap.Catalog.Meta.Len() == 0:
		fail("docs catalog has no pages")
	case !opts.AllowMissingModules:
		if missing := snap.Catalog.MissingModules(); len(missing) > 0 {
			fail("%d docs pages have no content module: %s", len(missing), strings.Join(missing, ", "))
		}
	}

	if opts.MinFiles > 0 {
		n, err := countFiles(snap.FS)
		switch {
		case err != nil:
			fail("count files: %w", err)
		case n < opts.MinFiles:
			fail("bundle has %d files, need at least %d", n, opts.MinFiles)
		}
	}

	if opts.RequireProvenance && snap.Provenance == nil {
		fail("%s is missing or unreadable", ProvenanceFilePath)
	}

	if len(problems) == 0 {
		return nil
	}
	return xerrors.Wrap(errors.Join(append([]error{ErrInvalidBundle}, problems...)...), "validate")
}

func countFiles(fsys fs.FS) (int, error) {
	n := 0
	err := fs.WalkDir(fsys, ".", func(_ string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			n++
		}
		return err
	})
	return n, err
}
