// Package precache precomputes every result of a function over finite
// parameter domains and serves calls from a durable cache.
//
// A host declares, per parameter, a name and an ordered finite value
// set; registers the slow target function; runs precomputation once at
// startup; and serves requests through the returned wrapped callable.
// Results persist to a single human-inspectable JSON snapshot that is
// reloaded on the next startup, so a restart begins warm.
package precache
