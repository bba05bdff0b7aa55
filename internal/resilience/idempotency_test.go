package resilience

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/pkg/logger"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/statestore"
)

func TestExecuteOnceComputesExactlyOnce(t *testing.T) {
	store := statestore.NewMemoryStore()
	guard := NewGuard(logger.NewNop(), store, time.Hour)
	ctx := context.Background()

	calls := 0
	compute := func(ctx context.Context) (any, error) {
		calls++
		return map[string]any{"value": 42}, nil
	}
	params := map[string]any{"creator_id": "c1", "date": "2026-03-02"}

	first, err := guard.ExecuteOnce(ctx, "rotation_advance", params, compute)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := guard.ExecuteOnce(ctx, "rotation_advance", params, compute)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if calls != 1 {
		t.Fatalf("compute must run exactly once, ran %d times", calls)
	}
	if string(first) != string(second) {
		t.Fatalf("duplicate must receive the stored result verbatim: %s vs %s", first, second)
	}
}

func TestOperationKeyOrderIndependent(t *testing.T) {
	a, err := OperationKey("op", json.RawMessage(`{"a":1,"b":"x"}`))
	if err != nil {
		t.Fatalf("key a: %v", err)
	}
	b, err := OperationKey("op", json.RawMessage(`{"b":"x","a":1}`))
	if err != nil {
		t.Fatalf("key b: %v", err)
	}
	if a != b {
		t.Fatalf("keys must be order-independent: %s vs %s", a, b)
	}
	c, err := OperationKey("op", json.RawMessage(`{"a":2,"b":"x"}`))
	if err != nil {
		t.Fatalf("key c: %v", err)
	}
	if a == c {
		t.Fatalf("different params must produce different keys")
	}
}

func TestExecuteOnceExpiryRecomputes(t *testing.T) {
	store := statestore.NewMemoryStore()
	current := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return current })
	guard := NewGuard(logger.NewNop(), store, 10*time.Minute)
	ctx := context.Background()

	calls := 0
	compute := func(ctx context.Context) (any, error) {
		calls++
		return calls, nil
	}
	if _, err := guard.ExecuteOnce(ctx, "op", map[string]int{"k": 1}, compute); err != nil {
		t.Fatalf("first: %v", err)
	}
	// Inside TTL: served from the record.
	current = current.Add(5 * time.Minute)
	if _, err := guard.ExecuteOnce(ctx, "op", map[string]int{"k": 1}, compute); err != nil {
		t.Fatalf("second: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 compute inside TTL, got %d", calls)
	}
	// Past TTL: the record is purged on lookup and compute runs again.
	current = current.Add(10 * time.Minute)
	if _, err := guard.ExecuteOnce(ctx, "op", map[string]int{"k": 1}, compute); err != nil {
		t.Fatalf("third: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected recompute after expiry, got %d computes", calls)
	}
}

func TestExecuteOnceCollapsesConcurrentDuplicates(t *testing.T) {
	store := statestore.NewMemoryStore()
	guard := NewGuard(logger.NewNop(), store, time.Hour)
	ctx := context.Background()

	var mu sync.Mutex
	calls := 0
	started := make(chan struct{})
	release := make(chan struct{})
	compute := func(ctx context.Context) (any, error) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			close(started)
			<-release
		}
		return "done", nil
	}

	var wg sync.WaitGroup
	results := make([]json.RawMessage, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i == 1 {
				// The second caller arrives while the first is mid-flight.
				<-started
			}
			out, err := guard.ExecuteOnce(ctx, "op", map[string]int{"k": 1}, compute)
			if err != nil {
				t.Errorf("caller %d: %v", i, err)
				return
			}
			results[i] = out
		}(i)
	}
	go func() {
		<-started
		time.Sleep(10 * time.Millisecond)
		close(release)
	}()
	wg.Wait()

	if calls != 1 {
		t.Fatalf("concurrent duplicates must collapse to one compute, got %d", calls)
	}
	if string(results[0]) != string(results[1]) {
		t.Fatalf("both callers must observe the same stored result")
	}
}
