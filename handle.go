package precache

import (
	"context"
	"encoding/json"

	"github.com/jonwraymond/precache/domain"
	"github.com/jonwraymond/precache/health"
	"github.com/jonwraymond/precache/intercept"
	"github.com/jonwraymond/precache/precompute"
	"github.com/jonwraymond/precache/store"
)

// Handle is one registered target function: the wrapped callable plus
// its precomputation entry point.
type Handle struct {
	name      string
	registry  *domain.Registry
	scheduler *precompute.Scheduler
	wrapper   *intercept.Wrapper
	store     *store.Store
}

// Name returns the handler name given at registration.
func (h *Handle) Name() string {
	return h.name
}

// Registry returns the frozen domain registry for this handler.
func (h *Handle) Registry() *domain.Registry {
	return h.registry
}

// Call invokes the wrapped function with values in declaration order
// and returns the JSON-serialized result. Values outside the declared
// domains are rejected before any cache lookup.
func (h *Handle) Call(ctx context.Context, values ...domain.Value) (json.RawMessage, error) {
	combo, err := h.registry.Combination(values...)
	if err != nil {
		return nil, err
	}
	return h.wrapper.Call(ctx, combo)
}

// CallInto is Call followed by unmarshaling the result into out.
func (h *Handle) CallInto(ctx context.Context, out any, values ...domain.Value) error {
	data, err := h.Call(ctx, values...)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// RunPrecomputation executes the precomputation run for this handler.
// See precompute.Scheduler.Run for idempotence and cancellation
// semantics.
func (h *Handle) RunPrecomputation(ctx context.Context) (precompute.Summary, error) {
	return h.scheduler.Run(ctx)
}

// Checker returns a warmup checker for this handler, for wiring into
// host readiness probes.
func (h *Handle) Checker() (*health.WarmupChecker, error) {
	return health.NewWarmupChecker(h.name, h.registry, h.store)
}
