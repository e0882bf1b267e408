// Package httpmw holds the middleware stacked in front of the public docs
// router by httpserver.NewHandler.
//
// The outermost layers set security headers, assign a request ID and
// resolve the client address so the rate limiter and logs see the real
// peer. Inside those sit tracing, content bundle headers, metrics and the
// request-scoped logger. The chi router itself adds route annotation and
// the access log, which skip the site chrome and bundle images.
//
// Request logs never carry user-supplied values such as the user agent or
// arbitrary headers.
package httpmw
