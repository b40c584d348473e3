package precache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/jonwraymond/precache/domain"
	"github.com/jonwraymond/precache/intercept"
	"github.com/jonwraymond/precache/observe"
	"github.com/jonwraymond/precache/precompute"
	"github.com/jonwraymond/precache/store"
)

// Sentinel errors for cache construction and registration.
var (
	ErrEmptyName        = errors.New("precache: handler name is empty")
	ErrDuplicateHandler = errors.New("precache: handler already registered")
)

// TargetFunc is the slow computation being precomputed and wrapped.
type TargetFunc = precompute.TargetFunc

// Config configures a Cache. Concurrency and MissPolicy carry cache
// semantics and are required; there are no implicit defaults for them.
type Config struct {
	// CachePath is where the snapshot is persisted. Environment
	// variables in the path ($VAR or ${VAR}) are expanded. Empty means
	// the cache is memory-only and nothing is persisted.
	CachePath string

	// Concurrency bounds in-flight target invocations during
	// precomputation. Required.
	Concurrency int

	// MissPolicy selects strict-fail or lazy-fill miss handling for
	// wrapped calls. Required.
	MissPolicy intercept.MissPolicy

	// JobTimeout, when positive, bounds each precomputation job.
	JobTimeout time.Duration

	// Observer supplies telemetry. Nil disables telemetry.
	Observer *observe.Observer
}

// Cache owns the store shared by every registered handler, plus the
// telemetry plumbing. Hosts construct it explicitly and pass it by
// reference; there is no process-wide singleton.
type Cache struct {
	cfg         Config
	path        string
	store       *store.Store
	instruments *observe.Instruments
	logger      observe.Logger

	mu          sync.Mutex
	handles     map[string]*Handle
	loadWarning error
	loadStats   store.LoadStats
}

// New constructs a Cache and, when CachePath is set, loads the
// persisted snapshot. An unreadable or corrupt snapshot degrades to a
// cold start: New still succeeds and the failure is available from
// LoadWarning for the host to log.
func New(ctx context.Context, cfg Config) (*Cache, error) {
	if cfg.Concurrency < 1 {
		return nil, fmt.Errorf("%w: got %d", precompute.ErrBadConcurrency, cfg.Concurrency)
	}
	if cfg.MissPolicy != intercept.MissStrict && cfg.MissPolicy != intercept.MissLazyFill {
		return nil, fmt.Errorf("%w: got %s", intercept.ErrNoMissPolicy, cfg.MissPolicy)
	}

	var instruments *observe.Instruments
	if cfg.Observer != nil {
		var err error
		instruments, err = observe.NewInstruments(cfg.Observer)
		if err != nil {
			return nil, fmt.Errorf("precache: build instruments: %w", err)
		}
	}

	c := &Cache{
		cfg:         cfg,
		path:        os.ExpandEnv(cfg.CachePath),
		store:       store.New(),
		instruments: instruments,
		logger:      instruments.Log("precache"),
		handles:     make(map[string]*Handle),
	}

	if c.path != "" {
		stats, err := c.store.Load(ctx, c.path)
		c.loadStats = stats
		if err != nil {
			c.loadWarning = err
			c.logger.Warn(ctx, "snapshot load failed, starting cold",
				observe.Field{Key: "path", Value: c.path},
				observe.Field{Key: "error", Value: err.Error()},
			)
		} else if stats.Loaded > 0 || stats.Discarded > 0 {
			c.logger.Info(ctx, "snapshot loaded",
				observe.Field{Key: "path", Value: c.path},
				observe.Field{Key: "loaded", Value: stats.Loaded},
				observe.Field{Key: "discarded", Value: stats.Discarded},
			)
		}
	}

	return c, nil
}

// LoadWarning returns the snapshot load failure from New, if any. The
// cache is usable either way; a warning means it started cold.
func (c *Cache) LoadWarning() error {
	return c.loadWarning
}

// LoadStats reports how many persisted entries were rehydrated at
// construction and how many were discarded as corrupt.
func (c *Cache) LoadStats() store.LoadStats {
	return c.loadStats
}

// Store exposes the underlying store for health checks and inspection.
func (c *Cache) Store() *store.Store {
	return c.store
}

// Register binds a target function to its parameter domains and
// returns the wrapped handle. Registration fails fast on any domain
// that is not finite and enumerable; that is fatal configuration and
// must stop host startup.
func (c *Cache) Register(name string, target TargetFunc, domains ...domain.Domain) (*Handle, error) {
	if name == "" {
		return nil, ErrEmptyName
	}

	registry, err := domain.NewRegistry(domains...)
	if err != nil {
		return nil, fmt.Errorf("precache: register %q: %w", name, err)
	}

	scheduler, err := precompute.New(registry, target, c.store, precompute.Config{
		Handler:     name,
		Concurrency: c.cfg.Concurrency,
		JobTimeout:  c.cfg.JobTimeout,
		FlushPath:   c.path,
		Instruments: c.instruments,
	})
	if err != nil {
		return nil, fmt.Errorf("precache: register %q: %w", name, err)
	}

	wrapper, err := intercept.New(intercept.TargetFunc(target), c.store, intercept.Config{
		Handler:     name,
		MissPolicy:  c.cfg.MissPolicy,
		Instruments: c.instruments,
	})
	if err != nil {
		return nil, fmt.Errorf("precache: register %q: %w", name, err)
	}

	h := &Handle{
		name:      name,
		registry:  registry,
		scheduler: scheduler,
		wrapper:   wrapper,
		store:     c.store,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.handles[name]; exists {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateHandler, name)
	}
	c.handles[name] = h
	return h, nil
}

// RunPrecomputation precomputes every registered handler. Hosts call
// this once during startup, before serving anything that depends on the
// cache. Re-invocation is idempotent: combinations already cached as
// successful are skipped.
//
// Per-combination failures are reported in the summaries, not as the
// returned error; err is non-nil only when a run is cancelled.
func (c *Cache) RunPrecomputation(ctx context.Context) (map[string]precompute.Summary, error) {
	c.mu.Lock()
	handles := make([]*Handle, 0, len(c.handles))
	for _, h := range c.handles {
		handles = append(handles, h)
	}
	c.mu.Unlock()

	summaries := make(map[string]precompute.Summary, len(handles))
	for _, h := range handles {
		summary, err := h.RunPrecomputation(ctx)
		summaries[h.name] = summary
		if err != nil {
			return summaries, err
		}
	}
	return summaries, nil
}

// Flush persists the snapshot immediately. Normally unnecessary: each
// precomputation run flushes once on completion.
func (c *Cache) Flush(ctx context.Context) error {
	if c.path == "" {
		return nil
	}
	return c.store.Flush(ctx, c.path)
}
