package precache_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/jonwraymond/precache"
	"github.com/jonwraymond/precache/domain"
	"github.com/jonwraymond/precache/health"
	"github.com/jonwraymond/precache/intercept"
	"github.com/jonwraymond/precache/precompute"
	"github.com/jonwraymond/precache/store"
)

type report struct {
	Revenue int `json:"revenue"`
}

// salesReport mirrors the slow report computation used throughout:
// ONLINE revenue from subregion name length, physical stores from the
// store number.
func salesReport(_ context.Context, combo domain.Combination) (any, error) {
	subregion, _ := combo.Value("subregion")
	storeID, _ := combo.Value("store_id")

	var revenue int
	if storeID == "ONLINE" {
		revenue = len(subregion) * 5000
	} else {
		n, err := strconv.Atoi(string(storeID))
		if err != nil {
			return nil, err
		}
		revenue = n * 1000
	}
	return report{Revenue: revenue}, nil
}

func salesDomains(t *testing.T) []domain.Domain {
	t.Helper()
	subregion, err := domain.Strings("subregion", "EMEA", "APAC", "AMER")
	if err != nil {
		t.Fatalf("Strings() failed: %v", err)
	}
	storeID, err := domain.Strings("store_id", "101", "202", "303", "404", "ONLINE")
	if err != nil {
		t.Fatalf("Strings() failed: %v", err)
	}
	return []domain.Domain{subregion, storeID}
}

func TestNew_ConfigValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("missing concurrency", func(t *testing.T) {
		_, err := precache.New(ctx, precache.Config{MissPolicy: intercept.MissStrict})
		if !errors.Is(err, precompute.ErrBadConcurrency) {
			t.Errorf("New() error = %v, want ErrBadConcurrency", err)
		}
	})

	t.Run("missing miss policy", func(t *testing.T) {
		_, err := precache.New(ctx, precache.Config{Concurrency: 2})
		if !errors.Is(err, intercept.ErrNoMissPolicy) {
			t.Errorf("New() error = %v, want ErrNoMissPolicy", err)
		}
	})

	t.Run("valid memory-only", func(t *testing.T) {
		c, err := precache.New(ctx, precache.Config{
			Concurrency: 2,
			MissPolicy:  intercept.MissStrict,
		})
		if err != nil {
			t.Fatalf("New() failed: %v", err)
		}
		if c.LoadWarning() != nil {
			t.Errorf("LoadWarning() = %v, want nil", c.LoadWarning())
		}
	})
}

func TestNew_ExpandsCachePath(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	t.Setenv("PRECACHE_TEST_DIR", dir)

	c, err := precache.New(ctx, precache.Config{
		CachePath:   "$PRECACHE_TEST_DIR/cache.json",
		Concurrency: 2,
		MissPolicy:  intercept.MissStrict,
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	h, err := c.Register("sales-report", salesReport, salesDomains(t)...)
	if err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	if _, err := h.RunPrecomputation(ctx); err != nil {
		t.Fatalf("RunPrecomputation() failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "cache.json")); err != nil {
		t.Errorf("expanded cache path not written: %v", err)
	}
}

func TestRegister_Validation(t *testing.T) {
	ctx := context.Background()
	c, err := precache.New(ctx, precache.Config{Concurrency: 2, MissPolicy: intercept.MissStrict})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	t.Run("empty name", func(t *testing.T) {
		_, err := c.Register("", salesReport, salesDomains(t)...)
		if !errors.Is(err, precache.ErrEmptyName) {
			t.Errorf("Register() error = %v, want ErrEmptyName", err)
		}
	})

	t.Run("unregisterable parameters fail fast", func(t *testing.T) {
		_, err := c.Register("broken", salesReport)
		if !errors.Is(err, domain.ErrUnregisterable) {
			t.Errorf("Register() error = %v, want ErrUnregisterable", err)
		}
	})

	t.Run("duplicate handler", func(t *testing.T) {
		if _, err := c.Register("sales-report", salesReport, salesDomains(t)...); err != nil {
			t.Fatalf("first Register() failed: %v", err)
		}
		_, err := c.Register("sales-report", salesReport, salesDomains(t)...)
		if !errors.Is(err, precache.ErrDuplicateHandler) {
			t.Errorf("Register() error = %v, want ErrDuplicateHandler", err)
		}
	})
}

func TestEndToEnd_WarmServeRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sales_report_cache.json")

	var calls atomic.Int64
	target := func(ctx context.Context, combo domain.Combination) (any, error) {
		calls.Add(1)
		return salesReport(ctx, combo)
	}

	// First process lifetime: register, precompute, serve.
	c, err := precache.New(ctx, precache.Config{
		CachePath:   path,
		Concurrency: 4,
		MissPolicy:  intercept.MissStrict,
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	h, err := c.Register("sales-report", target, salesDomains(t)...)
	if err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	summaries, err := c.RunPrecomputation(ctx)
	if err != nil {
		t.Fatalf("RunPrecomputation() failed: %v", err)
	}
	if s := summaries["sales-report"]; s.Succeeded != 15 {
		t.Fatalf("Summary = %+v, want Succeeded=15", s)
	}
	if calls.Load() != 15 {
		t.Fatalf("target invoked %d times, want 15", calls.Load())
	}

	// Serving: repeated calls never re-invoke the target.
	var r report
	for i := 0; i < 5; i++ {
		if err := h.CallInto(ctx, &r, "AMER", "ONLINE"); err != nil {
			t.Fatalf("CallInto() failed: %v", err)
		}
		if r.Revenue != 20000 {
			t.Errorf("revenue = %d, want 20000", r.Revenue)
		}
	}
	if calls.Load() != 15 {
		t.Errorf("target invoked %d times after serving, want still 15", calls.Load())
	}

	// Warmth is observable by the host.
	checker, err := h.Checker()
	if err != nil {
		t.Fatalf("Checker() failed: %v", err)
	}
	if got := checker.Check(ctx).Status; got != health.StatusWarm {
		t.Errorf("warmup status = %v, want warm", got)
	}

	// Second process lifetime: the snapshot makes the restart warm and
	// re-running precomputation performs zero target invocations.
	c2, err := precache.New(ctx, precache.Config{
		CachePath:   path,
		Concurrency: 4,
		MissPolicy:  intercept.MissStrict,
	})
	if err != nil {
		t.Fatalf("restart New() failed: %v", err)
	}
	if c2.LoadStats().Loaded != 15 {
		t.Fatalf("LoadStats().Loaded = %d, want 15", c2.LoadStats().Loaded)
	}

	h2, err := c2.Register("sales-report", target, salesDomains(t)...)
	if err != nil {
		t.Fatalf("restart Register() failed: %v", err)
	}
	summary, err := h2.RunPrecomputation(ctx)
	if err != nil {
		t.Fatalf("restart RunPrecomputation() failed: %v", err)
	}
	if summary.Skipped != 15 || summary.Succeeded != 0 {
		t.Errorf("restart Summary = %+v, want Skipped=15", summary)
	}
	if calls.Load() != 15 {
		t.Errorf("target invoked %d times after restart run, want still 15", calls.Load())
	}

	if err := h2.CallInto(ctx, &r, "EMEA", "101"); err != nil {
		t.Fatalf("CallInto() after restart failed: %v", err)
	}
	if r.Revenue != 101000 {
		t.Errorf("revenue = %d, want 101000", r.Revenue)
	}
}

func TestRegister_HandlersShareStoreWithoutCollision(t *testing.T) {
	ctx := context.Background()
	c, err := precache.New(ctx, precache.Config{Concurrency: 4, MissPolicy: intercept.MissStrict})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	// Two handlers over identical domains: same combinations, different
	// results. Each must serve its own.
	sales, err := c.Register("sales-report", salesReport, salesDomains(t)...)
	if err != nil {
		t.Fatalf("Register(sales-report) failed: %v", err)
	}
	headcount, err := c.Register("headcount-report", func(_ context.Context, combo domain.Combination) (any, error) {
		subregion, _ := combo.Value("subregion")
		return map[string]int{"headcount": len(subregion)}, nil
	}, salesDomains(t)...)
	if err != nil {
		t.Fatalf("Register(headcount-report) failed: %v", err)
	}

	summaries, err := c.RunPrecomputation(ctx)
	if err != nil {
		t.Fatalf("RunPrecomputation() failed: %v", err)
	}
	for name, s := range summaries {
		if s.Succeeded != 15 {
			t.Errorf("handler %s Summary = %+v, want Succeeded=15", name, s)
		}
	}

	var r report
	if err := sales.CallInto(ctx, &r, "AMER", "ONLINE"); err != nil {
		t.Fatalf("sales CallInto() failed: %v", err)
	}
	if r.Revenue != 20000 {
		t.Errorf("sales revenue = %d, want 20000", r.Revenue)
	}

	var hc struct {
		Headcount int `json:"headcount"`
	}
	if err := headcount.CallInto(ctx, &hc, "AMER", "ONLINE"); err != nil {
		t.Fatalf("headcount CallInto() failed: %v", err)
	}
	if hc.Headcount != 4 {
		t.Errorf("headcount = %d, want 4", hc.Headcount)
	}

	// Each handler's warmth is judged on its own entries only.
	for _, h := range []*precache.Handle{sales, headcount} {
		checker, err := h.Checker()
		if err != nil {
			t.Fatalf("Checker() failed: %v", err)
		}
		if got := checker.Check(ctx).Status; got != health.StatusWarm {
			t.Errorf("handler %s warmup status = %v, want warm", h.Name(), got)
		}
	}
}

func TestNew_CorruptSnapshotDegradesToCold(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.json")
	if err := os.WriteFile(path, []byte("{corrupt"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	c, err := precache.New(ctx, precache.Config{
		CachePath:   path,
		Concurrency: 2,
		MissPolicy:  intercept.MissStrict,
	})
	if err != nil {
		t.Fatalf("New() must not fail on a corrupt snapshot: %v", err)
	}
	if !errors.Is(c.LoadWarning(), store.ErrPersistence) {
		t.Errorf("LoadWarning() = %v, want ErrPersistence", c.LoadWarning())
	}

	// The cold cache still precomputes and serves normally.
	h, err := c.Register("sales-report", salesReport, salesDomains(t)...)
	if err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	summary, err := h.RunPrecomputation(ctx)
	if err != nil {
		t.Fatalf("RunPrecomputation() failed: %v", err)
	}
	if summary.Succeeded != 15 {
		t.Errorf("Summary = %+v, want Succeeded=15", summary)
	}
}

func TestCall_StrictVsLazy(t *testing.T) {
	ctx := context.Background()

	domains := salesDomains(t)

	t.Run("strict rejects unwarmed", func(t *testing.T) {
		c, err := precache.New(ctx, precache.Config{Concurrency: 2, MissPolicy: intercept.MissStrict})
		if err != nil {
			t.Fatalf("New() failed: %v", err)
		}
		h, err := c.Register("sales-report", salesReport, domains...)
		if err != nil {
			t.Fatalf("Register() failed: %v", err)
		}

		_, err = h.Call(ctx, "AMER", "ONLINE")
		if !errors.Is(err, intercept.ErrCacheMiss) {
			t.Errorf("Call() error = %v, want ErrCacheMiss", err)
		}
	})

	t.Run("lazy fills on demand", func(t *testing.T) {
		c, err := precache.New(ctx, precache.Config{Concurrency: 2, MissPolicy: intercept.MissLazyFill})
		if err != nil {
			t.Fatalf("New() failed: %v", err)
		}

		var calls atomic.Int64
		h, err := c.Register("sales-report", func(ctx context.Context, combo domain.Combination) (any, error) {
			calls.Add(1)
			return salesReport(ctx, combo)
		}, domains...)
		if err != nil {
			t.Fatalf("Register() failed: %v", err)
		}

		var r report
		if err := h.CallInto(ctx, &r, "AMER", "ONLINE"); err != nil {
			t.Fatalf("CallInto() failed: %v", err)
		}
		if r.Revenue != 20000 {
			t.Errorf("revenue = %d, want 20000", r.Revenue)
		}
		if err := h.CallInto(ctx, &r, "AMER", "ONLINE"); err != nil {
			t.Fatalf("second CallInto() failed: %v", err)
		}
		if calls.Load() != 1 {
			t.Errorf("target invoked %d times, want 1 (second call served from cache)", calls.Load())
		}
	})

	t.Run("out of domain rejected before lookup", func(t *testing.T) {
		c, err := precache.New(ctx, precache.Config{Concurrency: 2, MissPolicy: intercept.MissLazyFill})
		if err != nil {
			t.Fatalf("New() failed: %v", err)
		}
		h, err := c.Register("sales-report", salesReport, domains...)
		if err != nil {
			t.Fatalf("Register() failed: %v", err)
		}

		_, err = h.Call(ctx, "LATAM", "ONLINE")
		if !errors.Is(err, domain.ErrUnknownValue) {
			t.Errorf("Call() error = %v, want ErrUnknownValue", err)
		}
	})
}
