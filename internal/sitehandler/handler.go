// Package sitehandler serves the raw files of the active content bundle:
// the site chrome, images and any static HTML the bundle ships. It is the
// fallback behind the rendered docs, team and staking pages, and answers
// with the maintenance page while no bundle is loaded.
package sitehandler

import (
	"io/fs"
	"net/http"
)

type Handler struct {
	opts Options
}

func New(opts Options) (*Handler, error) {
	opts.setDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Handler{opts: opts}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	snap, ok := h.opts.Content.Get()
	if !ok {
		h.maintenance(w, r)
		return
	}

	t := resolve(r.URL.Path, snap.FS)
	if t.file != "" && h.opts.hidden(t.file) {
		t = target{}
	}
	switch {
	case t.redirect != "":
		http.Redirect(w, r, t.redirect, http.StatusPermanentRedirect)
	case t.file != "":
		if cc := h.opts.cacheControl(t.file); cc != "" {
			w.Header().Set("Cache-Control", cc)
		}
		http.ServeFileFS(w, r, snap.FS, t.file)
	default:
		h.NotFound(w, r)
	}
}

// NotFound writes the 404 page of the active bundle, else the embedded
// fallback, else plain text.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	if snap, ok := h.opts.Content.Get(); ok && isFile(snap.FS, h.opts.Site404File) {
		serveWithStatus(w, r, http.StatusNotFound, snap.FS, h.opts.Site404File)
		return
	}
	if isFile(h.opts.FallbackFS, h.opts.Fallback404File) {
		serveWithStatus(w, r, http.StatusNotFound, h.opts.FallbackFS, h.opts.Fallback404File)
		return
	}
	http.Error(w, "404 page not found", http.StatusNotFound)
}

func (h *Handler) maintenance(w http.ResponseWriter, r *http.Request) {
	h.opts.Logger.Debug(r.Context(), "no active content, serving maintenance page")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Retry-After", "60")
	serveWithStatus(w, r, http.StatusServiceUnavailable, h.opts.FallbackFS, h.opts.MaintenanceFile)
}

// forcedStatus replaces the first status written through it. ServeFileFS
// always picks its own status, which is wrong for 404 and 503 pages.
type forcedStatus struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *forcedStatus) WriteHeader(code int) {
	if !w.written {
		w.written = true
		code = w.status
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *forcedStatus) Write(p []byte) (int, error) {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(p)
}

func serveWithStatus(w http.ResponseWriter, r *http.Request, status int, fsys fs.FS, name string) {
	// ServeFileFS inspects the URL: a conditional request would become a
	// 304 and a path with ".." a 400.
	r = r.Clone(r.Context())
	r.URL.Path = "/" + name
	r.Header.Del("If-Modified-Since")
	r.Header.Del("If-None-Match")
	http.ServeFileFS(&forcedStatus{ResponseWriter: w, status: status}, r, fsys, name)
}
