// Package sitehttp serves the rendered site pages: documentation under
// /docs, the team page and the staking section. Every request renders
// against the content snapshot that is active when it starts.
package sitehttp

import (
	"bytes"
	"errors"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/docsite/internal/catalog"
	"github.com/keithlinneman/docsite/internal/content"
	"github.com/keithlinneman/docsite/internal/docload"
	"github.com/keithlinneman/docsite/internal/docmeta"
	"github.com/keithlinneman/docsite/internal/docpage"
	"github.com/keithlinneman/docsite/internal/httpmw"
	"github.com/keithlinneman/docsite/internal/log"
	"github.com/keithlinneman/docsite/internal/pages"
	"github.com/keithlinneman/docsite/internal/render"
)

// SnapshotProvider returns the active content snapshot.
type SnapshotProvider interface {
	Get() (*content.Snapshot, bool)
}

// Observer records docs page outcomes.
type Observer interface {
	ObserveDocsPageLoad(pageType, outcome string, elapsed time.Duration)
}

// UnknownType labels page loads whose route type is not in the catalog.
const UnknownType = "unknown"

var ErrInvalidOptions = errors.New("sitehttp: invalid options")

type Options struct {
	Content SnapshotProvider
	// Fetcher retrieves tool pages. Nil makes every tool page a NotFound.
	Fetcher docload.Fetcher
	Docs    *docpage.Renderer
	Pages   *pages.Renderer
	Staking pages.StakingDefaults
	// Fallback serves requests this package cannot answer: no active
	// content (maintenance page) and staking pages with no module.
	Fallback http.Handler
	Metrics  Observer
	// HeaderOffset is passed to each session for anchor scrolling.
	HeaderOffset float64
	// Components renders staking modules. Nil means render.Default().
	Components *render.Registry
	// Assets holds the site chrome (stylesheet, scripts) served under
	// AssetsPrefix. Nil skips the route.
	Assets fs.FS
}

// AssetsPrefix is the URL path the layout templates load chrome from.
const AssetsPrefix = "/_site/"

// Site holds the page handlers.
type Site struct {
	opts Options
}

// New checks opts and returns a Site.
func New(opts Options) (*Site, error) {
	if opts.Content == nil || opts.Docs == nil || opts.Pages == nil || opts.Fallback == nil {
		return nil, ErrInvalidOptions
	}
	if opts.Components == nil {
		opts.Components = render.Default()
	}
	if opts.Staking.Title == "" {
		opts.Staking = pages.DefaultStaking()
	}
	return &Site{opts: opts}, nil
}

// RegisterRoutes mounts the page routes on r.
func (s *Site) RegisterRoutes(r chi.Router) {
	r.With(httpmw.Scope("docs")).Group(func(r chi.Router) {
		r.Get("/docs/{type}", s.HandleDocs)
		r.Get("/docs/{type}/{page}", s.HandleDocs)
		r.Get("/docs/{type}/{page}/{version}", s.HandleDocs)
	})
	r.With(httpmw.Scope("team")).Get("/about/team", s.HandleTeam)
	if s.opts.Assets != nil {
		r.Handle(AssetsPrefix+"*", assetsHandler(s.opts.Assets))
	}
	r.With(httpmw.Scope("staking")).Group(func(r chi.Router) {
		r.Get("/staking", s.HandleStaking)
		r.Get("/staking/{page}", s.HandleStaking)
	})
}

// catalog returns the active catalog, or nil after serving the fallback.
func (s *Site) catalog(w http.ResponseWriter, r *http.Request) *catalog.Catalog {
	snap, ok := s.opts.Content.Get()
	if !ok || snap == nil || snap.Catalog == nil {
		s.opts.Fallback.ServeHTTP(w, r)
		return nil
	}
	return snap.Catalog
}

// HandleDocs renders one documentation page view. The view is a session
// that lives for the request: a client that disconnects closes it and a
// load finishing afterwards is discarded.
func (s *Site) HandleDocs(w http.ResponseWriter, r *http.Request) {
	cat := s.catalog(w, r)
	if cat == nil {
		return
	}
	ctx := r.Context()

	route := docpage.Route{
		Type:    chi.URLParam(r, "type"),
		Page:    chi.URLParam(r, "page"),
		Version: chi.URLParam(r, "version"),
	}

	sess := docpage.Open(ctx, cat.Meta, route, docpage.SessionOptions{
		Loader:       docload.New(cat.Modules, s.opts.Fetcher),
		Logger:       log.FromContext(ctx),
		HeaderOffset: s.opts.HeaderOffset,
		Observe:      s.observer(cat.Meta),
	})
	defer sess.Close()

	st := sess.Load(docpage.LoadOptions{Hash: r.URL.Query().Get("anchor")})

	var buf bytes.Buffer
	if err := s.opts.Docs.Render(&buf, st); err != nil {
		s.renderFailed(w, r, err, "render docs page")
		return
	}
	writeHTML(w, docpage.StatusCode(st), buf.Bytes())
}

// HandleTeam renders the roster of the active bundle.
func (s *Site) HandleTeam(w http.ResponseWriter, r *http.Request) {
	cat := s.catalog(w, r)
	if cat == nil {
		return
	}
	var buf bytes.Buffer
	if err := s.opts.Pages.RenderTeam(&buf, cat.Roster); err != nil {
		s.renderFailed(w, r, err, "render team page")
		return
	}
	writeHTML(w, http.StatusOK, buf.Bytes())
}

// HandleStaking renders mdx/staking/index or mdx/staking/{page} in the
// staking layout. Pages without a module go to the fallback handler.
func (s *Site) HandleStaking(w http.ResponseWriter, r *http.Request) {
	cat := s.catalog(w, r)
	if cat == nil {
		return
	}
	ctx := r.Context()

	page := chi.URLParam(r, "page")
	isHome := page == ""
	if isHome {
		page = "index"
	}
	modulePath := "staking/" + page
	if !cat.Modules.Has(modulePath) {
		s.opts.Fallback.ServeHTTP(w, r)
		return
	}

	m, err := cat.Modules.Lookup(ctx, modulePath)
	if err != nil {
		log.FromContext(ctx).Warn(ctx, "staking module load failed", "path", modulePath, "error", err)
		s.opts.Fallback.ServeHTTP(w, r)
		return
	}

	props := pages.StakingProps{
		Title:       m.Title,
		Description: m.Description,
		IsHome:      isHome,
	}
	body := s.opts.Components.Render(m.Document, render.Options{})

	var buf bytes.Buffer
	if err := s.opts.Pages.RenderStaking(&buf, s.opts.Staking, props, body); err != nil {
		s.renderFailed(w, r, err, "render staking page")
		return
	}
	writeHTML(w, http.StatusOK, buf.Bytes())
}

// observer returns the session callback. Route types outside the catalog
// share one label so arbitrary URLs cannot grow the metric.
func (s *Site) observer(meta *docmeta.Registry) func(string, docpage.Outcome, time.Duration) {
	if s.opts.Metrics == nil {
		return nil
	}
	return func(pageType string, outcome docpage.Outcome, elapsed time.Duration) {
		if !meta.HasType(pageType) {
			pageType = UnknownType
		}
		s.opts.Metrics.ObserveDocsPageLoad(pageType, string(outcome), elapsed)
	}
}

func (s *Site) renderFailed(w http.ResponseWriter, r *http.Request, err error, msg string) {
	ctx := r.Context()
	log.FromContext(ctx).Error(ctx, err, msg, "url.path", r.URL.Path)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func assetsHandler(fsys fs.FS) http.Handler {
	files := http.StripPrefix(AssetsPrefix, http.FileServerFS(fsys))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// no directory listings
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		// chrome ships with the binary, not the bundle
		w.Header().Set("Cache-Control", "public, max-age=3600")
		files.ServeHTTP(w, r)
	})
}

func writeHTML(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	// pages change with every bundle swap
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
