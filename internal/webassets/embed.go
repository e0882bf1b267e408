// Package webassets embeds the files the server ships with: maintenance and
// 404 fallbacks, a seed content bundle and the site stylesheet and scripts.
package webassets

import (
	"embed"
	"fmt"
	"io/fs"
)

// fallback/, seed/ and static/ must exist and have at least one file each to satisfy go:embed
//
//go:embed fallback seed static
var embedded embed.FS

func FallbackFS() fs.FS {
	return mustSub("fallback")
}

// StaticFS holds the stylesheet and scripts served under /_site/.
func StaticFS() fs.FS {
	return mustSub("static")
}

// SeedSiteFS returns (fs, true) only if seed looks like a content bundle (has meta.json)
func SeedSiteFS() (fs.FS, bool) {
	sub, err := fs.Sub(embedded, "seed")
	if err != nil {
		return nil, false
	}
	if _, err := fs.Stat(sub, "meta.json"); err != nil {
		return nil, false
	}
	return sub, true
}

func mustSub(dir string) fs.FS {
	sub, err := fs.Sub(embedded, dir)
	if err != nil {
		panic(fmt.Errorf("webassets: %s subfs: %w", dir, err))
	}
	return sub
}
