// Package precompute executes a target function once per parameter
// combination under bounded concurrency and records every outcome in
// the cache store.
//
// Runs are idempotent: combinations already cached with an Ok entry are
// skipped, so a re-run against a warm store only fills the gaps. One
// combination's failure never aborts the run; it is recorded as a
// failed entry and surfaced in the run summary.
package precompute
