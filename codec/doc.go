// Package codec converts parameter combinations to and from canonical
// cache keys.
//
// Keys are a handler-name prefix followed by ordered name=value pairs
// joined with "&", percent-escaped so that encoding is injective and
// the persisted form stays human-readable. The prefix keeps handlers
// sharing one store from colliding.
package codec
