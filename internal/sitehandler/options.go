package sitehandler

import (
	"errors"
	"io/fs"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/keithlinneman/docsite/internal/content"
	"github.com/keithlinneman/docsite/internal/log"
	"github.com/keithlinneman/docsite/internal/xerrors"
)

// ErrInvalidOptions is wrapped by New when Options are unusable.
var ErrInvalidOptions = errors.New("sitehandler: invalid options")

type SnapshotProvider interface {
	Get() (*content.Snapshot, bool)
}

// CacheRule sets Cache-Control for bundle files whose path matches
// Pattern, a doublestar glob. The first matching rule wins.
type CacheRule struct {
	Pattern string
	Value   string
}

// DefaultCacheRules keeps HTML revalidating and lets fingerprinted assets
// live for a year.
var DefaultCacheRules = []CacheRule{
	{"**/*.{html,htm}", "no-cache"},
	{"**/*.{css,js,mjs,map}", "public, max-age=31536000, immutable"},
	{"**/*.{png,jpg,jpeg,webp,gif,svg,ico,avif}", "public, max-age=31536000, immutable"},
	{"**/*.{woff,woff2,ttf,otf,eot}", "public, max-age=31536000, immutable"},
	{"**", "public, max-age=3600"},
}

// DefaultHidden are bundle inputs that feed rendered pages: the page
// registry, the team roster, provenance and the raw MDX sources.
var DefaultHidden = []string{"meta.json", "team.json", "provenance.json", "mdx/**"}

type Options struct {
	Logger  log.Logger
	Content SnapshotProvider

	// FallbackFS holds MaintenanceFile, served with 503 while no bundle is
	// active, and an optional Fallback404File.
	FallbackFS      fs.FS
	MaintenanceFile string // default "maintenance.html"
	Fallback404File string // default "404.html"

	// Site404File is read from the active bundle in preference to the
	// fallback 404.
	Site404File string // default "404.html"

	CacheRules []CacheRule // default DefaultCacheRules
	Hidden     []string    // doublestar globs answered with 404, default DefaultHidden
}

func (o *Options) setDefaults() {
	if o.Logger == nil {
		o.Logger = log.Nop()
	}
	if o.MaintenanceFile == "" {
		o.MaintenanceFile = "maintenance.html"
	}
	if o.Fallback404File == "" {
		o.Fallback404File = "404.html"
	}
	if o.Site404File == "" {
		o.Site404File = "404.html"
	}
	if o.CacheRules == nil {
		o.CacheRules = DefaultCacheRules
	}
	if o.Hidden == nil {
		o.Hidden = DefaultHidden
	}
}

func (o *Options) validate() error {
	switch {
	case o.Content == nil:
		return xerrors.Newf("%w: Content is nil", ErrInvalidOptions)
	case o.FallbackFS == nil:
		return xerrors.Newf("%w: FallbackFS is nil", ErrInvalidOptions)
	}
	for _, rule := range o.CacheRules {
		if !doublestar.ValidatePattern(rule.Pattern) {
			return xerrors.Newf("%w: bad cache pattern %q", ErrInvalidOptions, rule.Pattern)
		}
	}
	for _, p := range o.Hidden {
		if !doublestar.ValidatePattern(p) {
			return xerrors.Newf("%w: bad hidden pattern %q", ErrInvalidOptions, p)
		}
	}
	// a mispackaged binary should fail at boot, not at the first outage
	if !isFile(o.FallbackFS, o.MaintenanceFile) {
		return xerrors.Newf("%w: %q missing from fallback FS", ErrInvalidOptions, o.MaintenanceFile)
	}
	return nil
}

func (o *Options) hidden(name string) bool {
	return matchAny(o.Hidden, name)
}

func (o *Options) cacheControl(name string) string {
	for _, rule := range o.CacheRules {
		if doublestar.MatchUnvalidated(rule.Pattern, name) {
			return rule.Value
		}
	}
	return ""
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if doublestar.MatchUnvalidated(p, name) {
			return true
		}
	}
	return false
}
