// Package intercept wraps a target function so calls are served from
// the precomputed cache instead of recomputing.
//
// Cache misses follow an explicit policy: strict mode fails fast with
// ErrCacheMiss, lazy-fill mode computes once (collapsing concurrent
// misses for the same key) and caches the result. The policy is
// mandatory configuration; the two modes have opposite latency and
// consistency tradeoffs and must never be chosen silently.
package intercept
