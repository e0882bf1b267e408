// Package ratelimit throttles the public listener per client address with
// token buckets from golang.org/x/time/rate.
//
// Buckets live in memory and are evicted after a quiet period, so limits
// are per instance. Requests for the site chrome and bundle images can be
// exempted because one docs page view pulls several of them.
package ratelimit
