package sitehandler

import (
	"io/fs"
	"path"
	"strings"

	"github.com/keithlinneman/docsite/internal/pathutil"
)

// target is where a request path leads inside a bundle: a file to serve,
// a canonical URL to redirect to, or neither.
type target struct {
	file     string
	redirect string
}

func (t target) found() bool { return t.file != "" || t.redirect != "" }

// resolve maps a URL path onto fsys. Directories are served through their
// index.html, and a directory requested without its trailing slash
// redirects to the slashed form. Paths with NULs, backslashes or dot
// segments never resolve.
func resolve(urlPath string, fsys fs.FS) target {
	if strings.Contains(urlPath, "..") {
		return target{}
	}
	name, err := pathutil.Rel(urlPath)
	if err != nil {
		return target{}
	}
	dir := strings.HasSuffix(urlPath, "/")

	switch {
	case dir || name == "":
		return fileTarget(fsys, path.Join(name, "index.html"))
	case path.Ext(name) != "":
		return fileTarget(fsys, name)
	case isFile(fsys, name+"/index.html"):
		return target{redirect: "/" + name + "/"}
	}
	return target{}
}

func fileTarget(fsys fs.FS, name string) target {
	if isFile(fsys, name) {
		return target{file: name}
	}
	return target{}
}

func isFile(fsys fs.FS, name string) bool {
	if !fs.ValidPath(name) || name == "." {
		return false
	}
	info, err := fs.Stat(fsys, name)
	return err == nil && info.Mode().IsRegular()
}
