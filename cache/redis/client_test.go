package redis

import (
	"context"
	stderrors "errors"
	"testing"
	"time"
)

func TestClientCacheOps(t *testing.T) {
	client, server := newTestClientWithServer(t)
	ctx := context.Background()

	if err := client.Set(ctx, "modelcode:structure:SLU", `{"kind":"three_layer"}`, 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	val, err := client.Get(ctx, "modelcode:structure:SLU")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if val != `{"kind":"three_layer"}` {
		t.Fatalf("unexpected value: %s", val)
	}

	if err := client.Set(ctx, "modelcode:structure:AC", "{}", 2*time.Second); err != nil {
		t.Fatalf("set with ttl: %v", err)
	}
	server.FastForward(3 * time.Second)
	if server.Exists("modelcode:structure:AC") {
		t.Fatalf("expected expired key")
	}
	if !server.Exists("modelcode:structure:SLU") {
		t.Fatalf("key without ttl should survive")
	}

	if err := client.Del(ctx, "modelcode:structure:SLU"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if _, err := client.Get(ctx, "modelcode:structure:SLU"); !stderrors.Is(err, Nil) {
		t.Fatalf("expected Nil after del, got %v", err)
	}
}

func TestClientGetMissingIsNil(t *testing.T) {
	client, _ := newTestClientWithServer(t)

	_, err := client.Get(context.Background(), "absent")
	if !stderrors.Is(err, Nil) {
		t.Fatalf("expected Nil, got %v", err)
	}
	if err := client.Del(context.Background()); err != nil {
		t.Fatalf("empty del should be a no-op: %v", err)
	}
}

func TestConfigAddr(t *testing.T) {
	if got := (Config{Host: "cache", Port: 6380}).Addr(); got != "cache:6380" {
		t.Fatalf("unexpected addr: %s", got)
	}
}
