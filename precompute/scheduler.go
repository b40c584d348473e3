package precompute

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/precache/codec"
	"github.com/jonwraymond/precache/domain"
	"github.com/jonwraymond/precache/observe"
	"github.com/jonwraymond/precache/store"
)

// Sentinel errors for scheduler configuration and runs.
var (
	ErrNilTarget      = errors.New("precompute: target function is nil")
	ErrNilStore       = errors.New("precompute: store is nil")
	ErrNilRegistry    = errors.New("precompute: registry is nil")
	ErrBadConcurrency = errors.New("precompute: concurrency must be at least 1")
)

// TargetFunc is the computation being precomputed. It receives one
// concrete combination and returns a JSON-serializable result.
type TargetFunc func(ctx context.Context, combo domain.Combination) (any, error)

// Config configures one precomputation run.
type Config struct {
	// Handler names the target function. It scopes cache keys, so
	// handlers sharing one store never collide, and labels logs,
	// metrics and spans.
	Handler string

	// Concurrency bounds the number of in-flight target invocations.
	// Required; the target typically fronts an expensive downstream
	// system that must not receive the whole combination space at once.
	Concurrency int

	// JobTimeout, when positive, bounds each individual target
	// invocation. A timed-out job is recorded as failed; siblings
	// proceed.
	JobTimeout time.Duration

	// FlushPath, when set, persists the store once after the run
	// completes. Flush failures are reported in the summary, not fatal.
	FlushPath string

	// Instruments receives telemetry for the run. May be nil.
	Instruments *observe.Instruments
}

func (c Config) validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: got %d", ErrBadConcurrency, c.Concurrency)
	}
	return nil
}

// Failure records one combination whose computation failed.
type Failure struct {
	Key string
	Err error
}

// Summary reports the outcome of a precomputation run.
type Summary struct {
	// Planned is the size of the full combination space.
	Planned int
	// Succeeded is the number of combinations computed and cached.
	Succeeded int
	// Skipped is the number of combinations already cached as Ok.
	Skipped int
	// Failed is the number of combinations whose computation failed.
	Failed int
	// Failures lists each failed combination with its error.
	Failures []Failure
	// FlushErr is the error from the post-run flush, if one was
	// requested and failed. The in-memory store is still valid.
	FlushErr error
}

// Scheduler runs precomputation for one registered target function.
//
// Contract:
// - Concurrency: Run may be called concurrently with wrapped-call
//   reads of the same store; per-key writes are atomic.
// - Idempotence: re-running against a warm store skips Ok entries and
//   performs zero redundant target invocations for them.
// - Cancellation: ctx cancellation stops scheduling new jobs; entries
//   already written remain valid, so an interrupted run is resumable.
type Scheduler struct {
	registry *domain.Registry
	target   TargetFunc
	store    *store.Store
	cfg      Config
}

// New creates a Scheduler. The registry, target and store are required.
func New(registry *domain.Registry, target TargetFunc, st *store.Store, cfg Config) (*Scheduler, error) {
	if registry == nil {
		return nil, ErrNilRegistry
	}
	if target == nil {
		return nil, ErrNilTarget
	}
	if st == nil {
		return nil, ErrNilStore
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Scheduler{registry: registry, target: target, store: st, cfg: cfg}, nil
}

// Run enumerates the full combination space and executes the target
// once per combination not already cached as Ok, with at most
// Config.Concurrency invocations in flight.
//
// Run returns a non-nil Summary even when err is non-nil: on
// cancellation the summary covers the jobs that completed before the
// run stopped.
func (s *Scheduler) Run(ctx context.Context) (Summary, error) {
	log := s.cfg.Instruments.Log("precompute")
	combos := s.registry.Combinations()

	summary := Summary{Planned: len(combos)}
	var mu sync.Mutex

	log.Info(ctx, "precomputation starting",
		observe.Field{Key: "handler", Value: s.cfg.Handler},
		observe.Field{Key: "combinations", Value: len(combos)},
		observe.Field{Key: "concurrency", Value: s.cfg.Concurrency},
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

scheduling:
	for _, combo := range combos {
		// Stop scheduling once the run context is gone; completed
		// entries stay valid and the run is resumable.
		select {
		case <-gctx.Done():
			break scheduling
		default:
		}

		key, err := codec.Encode(s.cfg.Handler, combo)
		if err != nil {
			// Unencodable combinations cannot occur for a validated
			// registry; treat defensively as a per-job failure.
			mu.Lock()
			summary.Failed++
			summary.Failures = append(summary.Failures, Failure{Key: key, Err: err})
			mu.Unlock()
			continue
		}

		if existing, ok := s.store.Get(gctx, key); ok && existing.Status == store.StatusOk {
			mu.Lock()
			summary.Skipped++
			mu.Unlock()
			s.cfg.Instruments.JobDone(gctx, s.cfg.Handler, observe.OutcomeSkipped)
			continue
		}

		combo := combo
		g.Go(func() error {
			outcome := s.runJob(gctx, key, combo)
			mu.Lock()
			switch outcome.Status {
			case store.StatusOk:
				summary.Succeeded++
			case store.StatusFailed:
				summary.Failed++
				summary.Failures = append(summary.Failures, Failure{Key: key, Err: errors.New(outcome.Err)})
			}
			mu.Unlock()
			// Job failures are isolated; never propagate into the
			// group, which would cancel siblings.
			return nil
		})
	}

	waitErr := g.Wait()
	if waitErr == nil && ctx.Err() != nil {
		waitErr = ctx.Err()
	}

	if s.cfg.FlushPath != "" && waitErr == nil {
		start := time.Now()
		ferr := s.store.Flush(ctx, s.cfg.FlushPath)
		s.cfg.Instruments.FlushDone(ctx, time.Since(start), ferr)
		if ferr != nil {
			summary.FlushErr = ferr
			log.Error(ctx, "post-run flush failed",
				observe.Field{Key: "path", Value: s.cfg.FlushPath},
				observe.Field{Key: "error", Value: ferr.Error()},
			)
		}
	}

	log.Info(ctx, "precomputation finished",
		observe.Field{Key: "handler", Value: s.cfg.Handler},
		observe.Field{Key: "succeeded", Value: summary.Succeeded},
		observe.Field{Key: "failed", Value: summary.Failed},
		observe.Field{Key: "skipped", Value: summary.Skipped},
	)

	return summary, waitErr
}

// runJob executes the target for one combination and records the
// resulting entry. The returned entry mirrors what was stored.
func (s *Scheduler) runJob(ctx context.Context, key string, combo domain.Combination) store.Entry {
	jobCtx := ctx
	if s.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, s.cfg.JobTimeout)
		defer cancel()
	}

	jobCtx, span := s.cfg.Instruments.StartJob(jobCtx, s.cfg.Handler, key)

	result, err := s.target(jobCtx, combo)
	var entry store.Entry
	if err == nil {
		var data json.RawMessage
		data, err = json.Marshal(result)
		if err != nil {
			err = fmt.Errorf("precompute: marshal result for %s: %w", key, err)
		} else {
			entry = store.Ok(key, data)
		}
	}
	if err != nil {
		entry = store.Failed(key, err)
	}

	s.cfg.Instruments.EndJob(span, err)

	if putErr := s.store.Put(ctx, key, entry); putErr != nil {
		entry = store.Failed(key, putErr)
		_ = s.store.Put(ctx, key, entry)
	}

	if err != nil {
		s.cfg.Instruments.JobDone(ctx, s.cfg.Handler, observe.OutcomeFailed)
	} else {
		s.cfg.Instruments.JobDone(ctx, s.cfg.Handler, observe.OutcomeSucceeded)
	}
	return entry
}
