package docpage

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/keithlinneman/docsite/internal/docload"
	"github.com/keithlinneman/docsite/internal/docmeta"
	"github.com/keithlinneman/docsite/internal/log"
	"github.com/keithlinneman/docsite/internal/viewport"
)

// Loader loads the content of a resolved page.
type Loader interface {
	Load(ctx context.Context, page docmeta.Page) (*docload.Document, error)
}

// Outcome classifies how a page view ended, for metrics.
type Outcome string

const (
	OutcomeLoaded     Outcome = "loaded"
	OutcomeNotFound   Outcome = "not_found"
	OutcomeLoadFailed Outcome = "load_failed"
	OutcomeDropped    Outcome = "dropped"
)

// Route is the page addressed by a request.
type Route struct {
	Type    string
	Page    string
	Version string
}

// SessionOptions configures a Session.
type SessionOptions struct {
	Loader Loader
	Logger log.Logger
	// HeaderOffset is the height of the fixed header, in pixels.
	HeaderOffset float64
	// Observe, if set, is called once per session with the outcome.
	Observe func(pageType string, outcome Outcome, elapsed time.Duration)
}

// LoadOptions are the per-view inputs to Load.
type LoadOptions struct {
	// Hash is the URL fragment naming the anchor to show.
	Hash string
	// Viewport, if set, is scrolled to the anchor once the document is
	// committed and its images have loaded.
	Viewport viewport.Viewport
}

// Session is one page view. Load runs at most once; Close abandons the
// view, cancelling an in-flight load and discarding its result.
type Session struct {
	opts     SessionOptions
	logger   log.Logger
	pageType string
	ctx      context.Context
	cancel   context.CancelFunc
	once     sync.Once

	mu     sync.Mutex
	state  State
	closed bool
}

// Open resolves route against reg and returns a session for it. A route
// with no metadata starts in NotFound and never loads.
func Open(ctx context.Context, reg *docmeta.Registry, route Route, opts SessionOptions) *Session {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		opts:     opts,
		ctx:      sctx,
		cancel:   cancel,
		pageType: route.Type,
		logger:   opts.Logger.With("docs_type", route.Type, "docs_page", route.Page),
	}

	page, err := reg.Resolve(route.Type, route.Page, route.Version)
	if err != nil {
		s.state.NotFound = true
		s.logger.Debug(ctx, "docs page metadata not found", "error", err)
		s.observe(OutcomeNotFound, 0)
		return s
	}
	s.state.Page = page
	return s
}

// Load loads the page content once and returns the resulting state.
// Later calls return the current state without loading again.
func (s *Session) Load(opts LoadOptions) State {
	s.once.Do(func() {
		s.mu.Lock()
		skip := s.state.NotFound || s.closed
		s.mu.Unlock()
		if !skip {
			s.load(opts)
		}
	})
	return s.State()
}

func (s *Session) load(opts LoadOptions) {
	start := time.Now()
	var (
		doc *docload.Document
		err error
	)
	if s.opts.Loader == nil {
		err = errors.New("docpage: no loader configured")
	} else {
		doc, err = s.opts.Loader.Load(s.ctx, s.state.Page)
	}
	elapsed := time.Since(start)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Debug(s.ctx, "dropping docs page load that finished after the view closed",
			"elapsed", elapsed,
			"error", err,
		)
		s.observe(OutcomeDropped, elapsed)
		return
	}
	if err != nil {
		s.state.NotFound = true
		s.mu.Unlock()
		s.logger.Warn(s.ctx, "docs page load failed", "error", err, "elapsed", elapsed)
		s.observe(OutcomeLoadFailed, elapsed)
		return
	}
	s.state.Document = doc
	s.state.TOC = doc.TOC
	if opts.Hash != "" {
		s.state.Anchor = viewport.AnchorID(opts.Hash)
	}
	s.mu.Unlock()
	s.observe(OutcomeLoaded, elapsed)

	// the document is committed; only now may layout be measured
	if opts.Hash != "" && opts.Viewport != nil {
		if _, err := viewport.ScrollToHash(s.ctx, opts.Viewport, opts.Hash, s.opts.HeaderOffset); err != nil {
			s.logger.Debug(s.ctx, "scroll to anchor skipped", "anchor", s.state.Anchor, "error", err)
		}
	}
}

// State returns a copy of the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.TOC = slices.Clone(s.state.TOC)
	return st
}

// Close abandons the view. It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
}

func (s *Session) observe(outcome Outcome, elapsed time.Duration) {
	if s.opts.Observe != nil {
		s.opts.Observe(s.pageType, outcome, elapsed)
	}
}
