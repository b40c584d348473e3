package intercept

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/precache/codec"
	"github.com/jonwraymond/precache/domain"
	"github.com/jonwraymond/precache/observe"
	"github.com/jonwraymond/precache/store"
)

// Sentinel errors for wrapped calls.
var (
	ErrCacheMiss        = errors.New("intercept: combination not precomputed")
	ErrPrecomputeFailed = errors.New("intercept: precomputation recorded a failure for this combination")
	ErrNilTarget        = errors.New("intercept: target function is nil")
	ErrNilStore         = errors.New("intercept: store is nil")
	ErrNoMissPolicy     = errors.New("intercept: miss policy must be set explicitly")
)

// MissPolicy selects how a wrapped call handles a cache miss.
type MissPolicy int

const (
	// missUnset is the zero value and is rejected: the policy choice
	// must be explicit.
	missUnset MissPolicy = iota

	// MissStrict fails fast with ErrCacheMiss. Use when the cache is
	// expected to be fully warmed before serving.
	MissStrict

	// MissLazyFill computes synchronously on miss, caches the result,
	// and returns it. The caller pays the original latency once.
	MissLazyFill
)

func (p MissPolicy) String() string {
	switch p {
	case MissStrict:
		return "strict"
	case MissLazyFill:
		return "lazy-fill"
	default:
		return "unset"
	}
}

// TargetFunc is the computation being wrapped. It must match the
// function registered for precomputation.
type TargetFunc func(ctx context.Context, combo domain.Combination) (any, error)

// Config configures a Wrapper.
type Config struct {
	// Handler names the wrapped function. It scopes cache keys and
	// must match the name the entries were precomputed under.
	Handler string

	// MissPolicy is required; the zero value is rejected.
	MissPolicy MissPolicy

	// Instruments receives telemetry for lookups. May be nil.
	Instruments *observe.Instruments
}

// Wrapper serves calls for a target function from the cache store.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - A hit with status Ok never re-executes the target.
// - A hit with status Failed replays the recorded failure so callers
//   observe a consistent error for a combination known to fail.
// - Under lazy-fill, concurrent misses for one key collapse into a
//   single target invocation.
type Wrapper struct {
	target   TargetFunc
	store    *store.Store
	cfg      Config
	inflight singleflight.Group
}

// New creates a Wrapper around target.
func New(target TargetFunc, st *store.Store, cfg Config) (*Wrapper, error) {
	if target == nil {
		return nil, ErrNilTarget
	}
	if st == nil {
		return nil, ErrNilStore
	}
	if cfg.MissPolicy != MissStrict && cfg.MissPolicy != MissLazyFill {
		return nil, fmt.Errorf("%w: got %s", ErrNoMissPolicy, cfg.MissPolicy)
	}
	return &Wrapper{target: target, store: st, cfg: cfg}, nil
}

// Call serves one invocation for the given combination. The returned
// value is the JSON-serialized result, identical in content to what the
// target produced when the entry was computed.
func (w *Wrapper) Call(ctx context.Context, combo domain.Combination) (json.RawMessage, error) {
	key, err := codec.Encode(w.cfg.Handler, combo)
	if err != nil {
		return nil, err
	}

	if entry, ok := w.store.Get(ctx, key); ok {
		switch entry.Status {
		case store.StatusOk:
			w.cfg.Instruments.LookupDone(ctx, w.cfg.Handler, observe.LookupHit)
			return entry.Value, nil
		case store.StatusFailed:
			w.cfg.Instruments.LookupDone(ctx, w.cfg.Handler, observe.LookupHitFailed)
			return nil, fmt.Errorf("%w: %s: %s", ErrPrecomputeFailed, key, entry.Err)
		}
	}

	w.cfg.Instruments.LookupDone(ctx, w.cfg.Handler, observe.LookupMiss)

	if w.cfg.MissPolicy == MissStrict {
		return nil, fmt.Errorf("%w: %s", ErrCacheMiss, key)
	}
	return w.lazyFill(ctx, key, combo)
}

// lazyFill computes the value for key, caching the outcome. Concurrent
// callers for the same key share one invocation.
func (w *Wrapper) lazyFill(ctx context.Context, key string, combo domain.Combination) (json.RawMessage, error) {
	v, err, _ := w.inflight.Do(key, func() (any, error) {
		// Another caller may have filled the entry while this one
		// queued on the flight group.
		if entry, ok := w.store.Get(ctx, key); ok && entry.Status == store.StatusOk {
			return entry.Value, nil
		}

		result, err := w.target(ctx, combo)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("intercept: marshal result for %s: %w", key, err)
		}
		if err := w.store.Put(ctx, key, store.Ok(key, data)); err != nil {
			return nil, err
		}
		w.cfg.Instruments.LookupDone(ctx, w.cfg.Handler, observe.LookupLazyFilled)
		return json.RawMessage(data), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(json.RawMessage), nil
}
