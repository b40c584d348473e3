package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestStore_GetPut(t *testing.T) {
	s := New()
	ctx := context.Background()

	// Get on empty store
	if _, ok := s.Get(ctx, "missing"); ok {
		t.Error("Get on empty store should return ok=false")
	}

	entry := Ok("k1", json.RawMessage(`{"revenue":20000}`))
	if err := s.Put(ctx, "k1", entry); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, ok := s.Get(ctx, "k1")
	if !ok {
		t.Fatal("Get after Put should return ok=true")
	}
	if got.Status != StatusOk {
		t.Errorf("Status = %q, want %q", got.Status, StatusOk)
	}
	if string(got.Value) != `{"revenue":20000}` {
		t.Errorf("Value = %s, want {\"revenue\":20000}", got.Value)
	}
	if got.Key != "k1" {
		t.Errorf("Key = %q, want k1", got.Key)
	}
}

func TestStore_PutOverwrite(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Put(ctx, "k", Ok("k", json.RawMessage(`1`))); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Put(ctx, "k", Ok("k", json.RawMessage(`2`))); err != nil {
		t.Fatalf("Put (overwrite) failed: %v", err)
	}

	got, _ := s.Get(ctx, "k")
	if string(got.Value) != "2" {
		t.Errorf("Value = %s, want 2 (last writer wins)", got.Value)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestStore_PutValidation(t *testing.T) {
	s := New()
	ctx := context.Background()

	tests := []struct {
		name    string
		key     string
		entry   Entry
		wantErr error
	}{
		{"empty key", "", Ok("", json.RawMessage(`1`)), ErrInvalidKey},
		{"ok without value", "k", Entry{Status: StatusOk}, ErrInvalidEntry},
		{"failed without message", "k", Entry{Status: StatusFailed}, ErrInvalidEntry},
		{"unknown status", "k", Entry{Status: "weird"}, ErrInvalidEntry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Put(ctx, tt.key, tt.entry); !errors.Is(err, tt.wantErr) {
				t.Errorf("Put() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestStore_FailedEntry(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Put(ctx, "k", Failed("k", errors.New("db unreachable"))); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, ok := s.Get(ctx, "k")
	if !ok {
		t.Fatal("Get should return ok=true")
	}
	if got.Status != StatusFailed {
		t.Errorf("Status = %q, want %q", got.Status, StatusFailed)
	}
	if got.Err != "db unreachable" {
		t.Errorf("Err = %q, want db unreachable", got.Err)
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := New()
	ctx := context.Background()

	const numGoroutines = 50
	const opsPerGoroutine = 200

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < opsPerGoroutine; j++ {
				key := fmt.Sprintf("key-%d", j%10)
				switch j % 3 {
				case 0:
					_ = s.Put(ctx, key, Ok(key, json.RawMessage(`true`)))
				case 1:
					_, _ = s.Get(ctx, key)
				case 2:
					_ = s.Len()
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestStore_CountOk(t *testing.T) {
	s := New()
	ctx := context.Background()

	_ = s.Put(ctx, "a", Ok("a", json.RawMessage(`1`)))
	_ = s.Put(ctx, "b", Ok("b", json.RawMessage(`2`)))
	_ = s.Put(ctx, "c", Failed("c", errors.New("boom")))

	if got := s.CountOk(); got != 2 {
		t.Errorf("CountOk() = %d, want 2", got)
	}
	if got := s.Len(); got != 3 {
		t.Errorf("Len() = %d, want 3", got)
	}
}

func TestStore_CountPrefix(t *testing.T) {
	s := New()
	ctx := context.Background()

	_ = s.Put(ctx, "sales?a=1", Ok("sales?a=1", json.RawMessage(`1`)))
	_ = s.Put(ctx, "sales?a=2", Failed("sales?a=2", errors.New("boom")))
	_ = s.Put(ctx, "inventory?a=1", Ok("inventory?a=1", json.RawMessage(`1`)))

	total, ok := s.CountPrefix("sales?")
	if total != 2 || ok != 1 {
		t.Errorf("CountPrefix(sales?) = (%d, %d), want (2, 1)", total, ok)
	}
	total, ok = s.CountPrefix("inventory?")
	if total != 1 || ok != 1 {
		t.Errorf("CountPrefix(inventory?) = (%d, %d), want (1, 1)", total, ok)
	}
	if total, _ = s.CountPrefix("reports?"); total != 0 {
		t.Errorf("CountPrefix(reports?) total = %d, want 0", total)
	}
}

func TestStore_Keys(t *testing.T) {
	s := New()
	ctx := context.Background()

	_ = s.Put(ctx, "a", Ok("a", json.RawMessage(`1`)))
	_ = s.Put(ctx, "b", Ok("b", json.RawMessage(`2`)))

	keys := s.Keys()
	if len(keys) != 2 {
		t.Fatalf("len(Keys()) = %d, want 2", len(keys))
	}
	seen := map[string]bool{}
	for _, k := range keys {
		seen[k] = true
	}
	if !seen["a"] || !seen["b"] {
		t.Errorf("Keys() = %v, want both a and b", keys)
	}
}
