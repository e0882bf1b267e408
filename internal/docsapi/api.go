// Package docsapi serves the JSON side of the documentation site: page
// metadata with its table of contents, the content bundle summary and the
// "was this helpful" feedback form.
package docsapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/docsite/internal/catalog"
	"github.com/keithlinneman/docsite/internal/content"
	"github.com/keithlinneman/docsite/internal/docload"
	"github.com/keithlinneman/docsite/internal/log"
	"github.com/keithlinneman/docsite/internal/toc"
)

// SnapshotProvider defines the interface for getting content snapshots
type SnapshotProvider interface {
	Get() (*content.Snapshot, bool)
}

// FeedbackRecorder counts answers to the helpful prompt.
type FeedbackRecorder interface {
	IncDocsFeedback(pageType string, helpful bool)
}

// Options configures the API.
type Options struct {
	Content SnapshotProvider
	// Fetcher retrieves tool pages for their table of contents. Tool pages
	// report no TOC when nil.
	Fetcher  docload.Fetcher
	Feedback FeedbackRecorder
	Logger   log.Logger
}

// API implements the docs API endpoints
type API struct {
	content  SnapshotProvider
	fetcher  docload.Fetcher
	feedback FeedbackRecorder
	logger   log.Logger
}

// NewAPI creates a new docs API handler
func NewAPI(opts Options) *API {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	return &API{
		content:  opts.Content,
		fetcher:  opts.Fetcher,
		feedback: opts.Feedback,
		logger:   opts.Logger,
	}
}

// RegisterRoutes attaches the docs endpoints to the router
func (api *API) RegisterRoutes(r chi.Router) {
	r.Get("/api/docs/{type}", api.HandlePage)
	r.Get("/api/docs/{type}/{page}", api.HandlePage)
	r.Post("/api/docs/feedback", api.HandleFeedback)
	r.Get("/api/content/summary", api.HandleContentSummary)
	r.Get("/api/content/provenance", api.HandleContentProvenance)
}

// PageResponse describes one resolved docs page.
type PageResponse struct {
	Type        string      `json:"type"`
	Key         string      `json:"key"`
	Version     string      `json:"version,omitempty"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Keywords    string      `json:"keywords,omitempty"`
	Subtitle    string      `json:"subtitle,omitempty"`
	Versions    []string    `json:"versions,omitempty"`
	Tool        bool        `json:"tool"`
	TOC         []toc.Entry `json:"toc"`
}

// ContentSummaryResponse is a lightweight summary of the active bundle
type ContentSummaryResponse struct {
	Version     string          `json:"version"`
	ContentHash string          `json:"content_hash"`
	CommitShort string          `json:"commit_short,omitempty"`
	Source      string          `json:"source"`
	Signed      bool            `json:"signed"`
	LoadedAt    time.Time       `json:"loaded_at"`
	Catalog     catalog.Summary `json:"catalog"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HandlePage serves the metadata and table of contents of a docs page.
// The optional ?version= query selects a page version.
func (api *API) HandlePage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	snap, ok := api.content.Get()
	if !ok || snap.Catalog == nil {
		api.writeJSON(ctx, w, http.StatusServiceUnavailable, errorResponse{Error: "no content loaded"})
		return
	}

	typ := chi.URLParam(r, "type")
	page, err := snap.Catalog.Meta.Resolve(typ, chi.URLParam(r, "page"), r.URL.Query().Get("version"))
	if err != nil {
		api.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Error: "page not found"})
		return
	}

	resp := PageResponse{
		Type:        page.Type,
		Key:         page.Key,
		Version:     page.Version,
		Title:       page.Meta.Title,
		Description: page.Meta.Description,
		Keywords:    page.Meta.Keywords,
		Subtitle:    page.Meta.Subtitle,
		Versions:    page.Meta.Versions,
		Tool:        page.IsTool,
		TOC:         []toc.Entry{},
	}

	if !page.IsTool || api.fetcher != nil {
		doc, err := docload.New(snap.Catalog.Modules, api.fetcher).Load(ctx, page)
		if err != nil {
			api.logger.Warn(ctx, "docs api: page content failed to load",
				"type", page.Type,
				"key", page.Key,
				"error", err,
			)
			api.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Error: "page not found"})
			return
		}
		if doc.TOC != nil {
			resp.TOC = doc.TOC
		}
	}

	api.writeJSON(ctx, w, http.StatusOK, resp)
}

// HandleFeedback records a yes/no answer for a docs page and redirects
// back to it.
func (api *API) HandleFeedback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		api.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "invalid form"})
		return
	}
	typ := r.PostForm.Get("type")
	key := r.PostForm.Get("page")

	var helpful bool
	switch r.PostForm.Get("helpful") {
	case "yes":
		helpful = true
	case "no":
	default:
		api.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "helpful must be yes or no"})
		return
	}

	snap, ok := api.content.Get()
	if !ok || snap.Catalog == nil {
		api.writeJSON(ctx, w, http.StatusServiceUnavailable, errorResponse{Error: "no content loaded"})
		return
	}
	page, err := snap.Catalog.Meta.Resolve(typ, key, "")
	if err != nil {
		api.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Error: "page not found"})
		return
	}

	if api.feedback != nil {
		api.feedback.IncDocsFeedback(page.Type, helpful)
	}
	api.logger.Debug(ctx, "recorded docs feedback",
		"type", page.Type,
		"key", page.Key,
		"helpful", helpful,
	)

	http.Redirect(w, r, PagePath(page.Type, page.Key)+"?feedback=thanks", http.StatusSeeOther)
}

// HandleContentSummary serves a summary of the active bundle and its catalog
func (api *API) HandleContentSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	snap, ok := api.content.Get()
	if !ok {
		api.writeJSON(ctx, w, http.StatusServiceUnavailable, errorResponse{Error: "no content loaded"})
		return
	}

	resp := ContentSummaryResponse{
		Version:     snap.Meta.Version,
		ContentHash: snap.Meta.Hash,
		Source:      string(snap.Meta.Source),
		Signed:      snap.Meta.Signed,
		LoadedAt:    snap.LoadedAt.Truncate(time.Second),
		Catalog:     snap.Catalog.Summarize(),
	}
	if p := snap.Provenance; p != nil {
		resp.CommitShort = p.Source.CommitShort
		if resp.Version == "" {
			resp.Version = p.Version
		}
	}

	api.logger.Debug(ctx, "served content summary",
		"version", resp.Version,
		"pages", resp.Catalog.Pages,
	)

	api.writeJSON(ctx, w, http.StatusOK, resp)
}

// HandleContentProvenance serves provenance.json of the active bundle.
func (api *API) HandleContentProvenance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	snap, ok := api.content.Get()
	if !ok {
		api.writeJSON(ctx, w, http.StatusServiceUnavailable, errorResponse{Error: "no content loaded"})
		return
	}
	if snap.Provenance == nil {
		api.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Error: "provenance not available for this bundle"})
		return
	}
	api.writeJSON(ctx, w, http.StatusOK, snap.Provenance)
}

// PagePath is the public URL of a docs page. Pages keyed by their own type
// live at /docs/{type}.
func PagePath(typ, key string) string {
	p := "/docs/" + url.PathEscape(typ)
	if key != "" && key != typ {
		p += "/" + url.PathEscape(key)
	}
	return p
}

func (api *API) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		api.logger.Warn(ctx, "failed to encode JSON response", "error", err)
	}
}
