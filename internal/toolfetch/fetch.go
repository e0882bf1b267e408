// Package toolfetch retrieves the raw content of tool documentation pages.
//
// Tool pages are not bundled with the site; their markdown lives at an
// external resource URI (typically a generated README or reference page)
// and is fetched on demand.
package toolfetch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/html"
	"resty.dev/v3"
)

// ErrFetchFailed marks every failure to obtain a tool resource.
var ErrFetchFailed = errors.New("toolfetch: fetch failed")

// DefaultMaxBytes caps a fetched resource.
const DefaultMaxBytes = 4 << 20

// Options configures a Fetcher.
type Options struct {
	// Timeout bounds one fetch. Zero means no timeout beyond the caller's context.
	Timeout time.Duration
	// MaxBytes caps the response body. Zero means DefaultMaxBytes.
	MaxBytes int64
	// UserAgent is sent with every request.
	UserAgent string
	// Transport overrides the HTTP transport; nil uses the default transport
	// wrapped with otelhttp.
	Transport http.RoundTripper
}

// Fetcher performs HTTP GETs against tool resource URIs.
type Fetcher struct {
	client   *resty.Client
	maxBytes int64
}

// New builds a Fetcher.
func New(opts Options) *Fetcher {
	rt := opts.Transport
	if rt == nil {
		rt = otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return "toolfetch " + r.URL.Host
			}),
		)
	}

	client := resty.New()
	client.SetTransport(rt)
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}
	client.SetHeader("Accept", "text/markdown, text/plain;q=0.9, text/html;q=0.5, */*;q=0.1")

	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Fetcher{client: client, maxBytes: maxBytes}
}

// Close releases idle connections held by the client.
func (f *Fetcher) Close() error {
	return f.client.Close()
}

// Fetch GETs uri and returns its body as markdown text. HTML documents are
// converted to markdown. Transport errors and non-2xx responses wrap
// ErrFetchFailed.
func (f *Fetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	if strings.TrimSpace(uri) == "" {
		return nil, fetchErr(uri).Wrapf(ErrFetchFailed, "empty resource uri")
	}

	resp, err := f.client.R().SetContext(ctx).Get(uri)
	if err != nil {
		return nil, fetchErr(uri).Wrapf(errors.Join(ErrFetchFailed, err), "fetching tool resource")
	}
	defer resp.Body.Close()

	status := resp.StatusCode()
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return nil, fetchErr(uri).
			With("status", status).
			Wrapf(ErrFetchFailed, "tool resource returned non-success status %d", status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fetchErr(uri).Wrapf(errors.Join(ErrFetchFailed, err), "reading tool resource")
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fetchErr(uri).
			With("max_bytes", f.maxBytes).
			Wrapf(ErrFetchFailed, "tool resource too large")
	}

	if isHTML(resp.Header().Get("Content-Type")) {
		md, err := HTMLToMarkdown(body)
		if err != nil {
			return nil, fetchErr(uri).Wrapf(errors.Join(ErrFetchFailed, err), "converting html resource")
		}
		return md, nil
	}
	return body, nil
}

func fetchErr(uri string) oops.OopsErrorBuilder {
	return oops.Code("FETCH_FAILED").With("uri", uri)
}

func isHTML(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "text/html" || mt == "application/xhtml+xml"
}

// HTMLToMarkdown converts an HTML document to markdown, keeping only the
// <main> element (or <body>) when present.
func HTMLToMarkdown(body []byte) ([]byte, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	node := findElement(doc, "main")
	if node == nil {
		node = findElement(doc, "body")
	}
	if node == nil {
		node = doc
	}
	return htmltomarkdown.ConvertNode(node)
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}
