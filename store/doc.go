// Package store provides the in-memory cache of precomputed results and
// its durable snapshot.
//
// The store maps canonical cache keys to entries. Snapshots are written
// atomically (temp file then rename) so a crash mid-flush never corrupts
// the previous durable copy; loading a corrupt snapshot degrades to a
// cold store instead of failing startup.
package store
