// Package metrics owns the Prometheus registry served on the ops port.
//
// Labels are limited to values the server controls: HTTP method, chi
// route pattern, status, page type and outcome. Request paths, slugs and
// versions never become label values.
package metrics
