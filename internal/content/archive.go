package content

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"path"
	"strings"
	"testing/fstest"

	"github.com/keithlinneman/docsite/internal/pathutil"
	"github.com/keithlinneman/docsite/internal/xerrors"
)

// Limits bound what a bundle may unpack to. Zero fields take the
// DefaultLimits value.
type Limits struct {
	Archive int64 // compressed bytes
	File    int64 // bytes per file
	Total   int64 // bytes across all files
	Files   int   // number of files
}

var DefaultLimits = Limits{
	Archive: 50 << 20,
	File:    10 << 20,
	Total:   100 << 20,
	Files:   20_000,
}

func (l Limits) withDefaults() Limits {
	if l.Archive <= 0 {
		l.Archive = DefaultLimits.Archive
	}
	if l.File <= 0 {
		l.File = DefaultLimits.File
	}
	if l.Total <= 0 {
		l.Total = DefaultLimits.Total
	}
	if l.Files <= 0 {
		l.Files = DefaultLimits.Files
	}
	return l
}

// ErrTooLarge is wrapped when a bundle or one of its files exceeds Limits.
var ErrTooLarge = errors.New("content exceeds size limit")

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, xerrors.Newf("%w: more than %d bytes", ErrTooLarge, limit)
	}
	return data, nil
}

// readHashed is readLimited that also returns the hex SHA-256 of the data.
func readHashed(r io.Reader, limit int64) ([]byte, string, error) {
	h := sha256.New()
	data, err := readLimited(io.TeeReader(r, h), limit)
	if err != nil {
		return nil, "", err
	}
	return data, hex.EncodeToString(h.Sum(nil)), nil
}

// unpack extracts a tar.gz into memory. Only regular files and
// directories are accepted and every name must stay inside the root.
func unpack(archive []byte, lim Limits) (fs.FS, error) {
	lim = lim.withDefaults()
	gz, err := gzip.NewReader(bytes.NewReader(archive))
	if err != nil {
		return nil, xerrors.Wrap(err, "open gzip")
	}
	defer gz.Close()

	out := fstest.MapFS{}
	var total int64
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, xerrors.Wrap(err, "read tar header")
		}

		name, err := entryName(hdr.Name)
		if err != nil {
			return nil, err
		}
		if name == "" {
			continue
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			continue
		case tar.TypeReg:
		default:
			return nil, xerrors.Newf("archive entry %s has unsupported type %q", name, hdr.Typeflag)
		}

		if len(out) >= lim.Files {
			return nil, xerrors.Newf("%w: more than %d files", ErrTooLarge, lim.Files)
		}
		if hdr.Size > lim.File {
			return nil, xerrors.Newf("%w: %s is %d bytes", ErrTooLarge, name, hdr.Size)
		}
		data, err := readLimited(tr, lim.File)
		if err != nil {
			return nil, xerrors.Wrapf(err, "read %s", name)
		}
		if total += int64(len(data)); total > lim.Total {
			return nil, xerrors.Newf("%w: unpacked size over %d bytes", ErrTooLarge, lim.Total)
		}
		out[name] = &fstest.MapFile{Data: data, Mode: hdr.FileInfo().Mode().Perm(), ModTime: hdr.ModTime}
	}
}

// entryName cleans a tar entry name. It returns "" for the root entry and
// an error for names that escape the root.
func entryName(raw string) (string, error) {
	rel := strings.TrimPrefix(raw, "./")
	if rel == "." {
		return "", nil
	}
	if path.IsAbs(rel) {
		return "", xerrors.Newf("archive entry %q escapes the bundle root", raw)
	}
	name, err := pathutil.Rel(rel)
	if err != nil {
		return "", xerrors.Wrap(err, "archive entry escapes the bundle root")
	}
	return name, nil
}
