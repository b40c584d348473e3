// Package domain declares finite, ordered parameter value sets and
// enumerates their Cartesian product.
//
// A Registry freezes the domain set for one target function at
// registration time; combinations produced later always reflect the
// frozen set, never live state.
package domain
