// Package health reports whether a precomputed cache is warm enough to
// serve.
//
// A WarmupChecker compares the cache store's contents against the full
// combination space of a registered handler, so hosts can gate request
// serving on warmup completion (e.g. through a readiness probe).
package health
