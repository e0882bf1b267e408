// Package docpage drives one documentation page view: resolve, load once,
// optionally position on an anchor, and render the result.
package docpage

import (
	"github.com/keithlinneman/docsite/internal/docload"
	"github.com/keithlinneman/docsite/internal/docmeta"
	"github.com/keithlinneman/docsite/internal/toc"
)

// Status is the derived phase of a page view.
type Status int

const (
	StatusLoading Status = iota
	StatusLoaded
	StatusNotFound
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusLoaded:
		return "loaded"
	case StatusNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// State is what a page view knows. It is written by at most one load.
type State struct {
	Page     docmeta.Page
	Document *docload.Document
	TOC      []toc.Entry
	NotFound bool
	// Anchor is the element id named by the request hash, if any.
	Anchor string
}

// Status derives the phase from the fields. NotFound wins over a document.
func (s State) Status() Status {
	switch {
	case s.NotFound:
		return StatusNotFound
	case s.Document != nil:
		return StatusLoaded
	default:
		return StatusLoading
	}
}
