package health

import (
	"context"
	"errors"
	"time"

	"github.com/jonwraymond/precache/codec"
	"github.com/jonwraymond/precache/domain"
	"github.com/jonwraymond/precache/store"
)

// Sentinel errors for warmup checks.
var (
	ErrNilRegistry = errors.New("health: registry is nil")
	ErrNilStore    = errors.New("health: store is nil")
)

// Status represents warmup state of a cache.
type Status int

const (
	// StatusWarm indicates every combination has a successful entry.
	StatusWarm Status = iota
	// StatusDegraded indicates the run covered the space but some
	// combinations recorded failures.
	StatusDegraded
	// StatusCold indicates the cache has not been (fully) precomputed.
	StatusCold
)

func (s Status) String() string {
	switch s {
	case StatusWarm:
		return "warm"
	case StatusDegraded:
		return "degraded"
	case StatusCold:
		return "cold"
	default:
		return "unknown"
	}
}

// Result is the outcome of one warmup check.
type Result struct {
	Status    Status
	Message   string
	Details   map[string]any
	Timestamp time.Time
}

// WarmupChecker checks one handler's cache coverage.
//
// Contract:
// - Concurrency: safe for concurrent use; reads the store only.
type WarmupChecker struct {
	name     string
	registry *domain.Registry
	store    *store.Store
}

// NewWarmupChecker creates a checker for the handler named name.
func NewWarmupChecker(name string, registry *domain.Registry, st *store.Store) (*WarmupChecker, error) {
	if registry == nil {
		return nil, ErrNilRegistry
	}
	if st == nil {
		return nil, ErrNilStore
	}
	return &WarmupChecker{name: name, registry: registry, store: st}, nil
}

// Name returns the handler name this checker covers.
func (c *WarmupChecker) Name() string {
	return c.name
}

// Check reports cache coverage of the combination space. Only entries
// belonging to this handler count; other handlers sharing the store do
// not affect the result.
func (c *WarmupChecker) Check(_ context.Context) Result {
	expected := c.registry.Size()
	total, ok := c.store.CountPrefix(codec.Prefix(c.name))
	failed := total - ok

	details := map[string]any{
		"expected": expected,
		"ok":       ok,
		"failed":   failed,
	}

	res := Result{
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
	switch {
	case ok >= expected:
		res.Status = StatusWarm
		res.Message = "cache fully precomputed"
	case ok+failed >= expected:
		res.Status = StatusDegraded
		res.Message = "precomputation complete with failures"
	default:
		res.Status = StatusCold
		res.Message = "cache not fully precomputed"
	}
	return res
}
