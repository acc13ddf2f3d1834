package shutdown

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aisgo/ais-modelcode/logger"
)

func TestShutdownHookTimeout(t *testing.T) {
	m := NewManager(ManagerParams{
		Logger: logger.NewNop(),
		Config: &Config{
			Timeout:     time.Second,
			HookTimeout: 50 * time.Millisecond,
		},
	})

	var fastCalled atomic.Bool
	m.Register("slow", PriorityNormal, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	m.Register("fast", PriorityNormal, func(context.Context) error {
		fastCalled.Store(true)
		return nil
	})

	start := time.Now()
	err := m.Shutdown(context.Background())
	elapsed := time.Since(start)

	if !fastCalled.Load() {
		t.Fatalf("fast hook not executed")
	}
	if elapsed > 500*time.Millisecond {
		t.Fatalf("shutdown took too long: %v", elapsed)
	}
	if !errors.Is(err, context.DeadlineExceeded) || !strings.Contains(err.Error(), "slow") {
		t.Fatalf("expected slow hook deadline error, got %v", err)
	}
	select {
	case <-m.Done():
	default:
		t.Fatalf("done channel should be closed")
	}
}

func TestShutdownRunsHTTPBeforeProducerBeforeStorage(t *testing.T) {
	m := NewManager(ManagerParams{})

	var mu sync.Mutex
	var order []string
	record := func(name string) Hook {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}
	}

	m.Register("mysql", PriorityStorage, record("storage"))
	m.Register("mq-producer", PriorityProducer, record("producer"))
	m.Register("http", PriorityHTTP, record("http"))

	if err := m.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	// 重复调用不再执行钩子
	if err := m.Shutdown(context.Background()); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}

	want := []string{"http", "producer", "storage"}
	if len(order) != len(want) {
		t.Fatalf("order = %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestShutdownStopsAtOverallTimeout(t *testing.T) {
	m := NewManager(ManagerParams{Config: &Config{Timeout: 30 * time.Millisecond}})

	var storageCalled atomic.Bool
	m.Register("http", PriorityHTTP, func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
	m.Register("sqlite", PriorityStorage, func(context.Context) error {
		storageCalled.Store(true)
		return nil
	})

	if err := m.Shutdown(context.Background()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if storageCalled.Load() {
		t.Fatalf("later stage should be skipped after timeout")
	}
}
