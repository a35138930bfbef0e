package cache

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestDisabledService(t *testing.T) {
	ctx := context.Background()
	svc := NewService(nil)

	if svc.IsAvailable() {
		t.Error("Expected cache without client to be unavailable")
	}
	if err := svc.Set(ctx, "k", []string{"v"}, 0); err != nil {
		t.Errorf("Set on disabled cache should be ignored, got %v", err)
	}
	var dest []string
	if err := svc.Get(ctx, "k", &dest); !errors.Is(err, ErrMiss) {
		t.Errorf("Expected ErrMiss, got %v", err)
	}
	if err := svc.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete on disabled cache should be ignored, got %v", err)
	}
	if err := svc.Ping(ctx); err == nil {
		t.Error("Expected ping to fail without client")
	}
}

func TestConnect_EmptyAddr(t *testing.T) {
	svc, err := Connect(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if svc.IsAvailable() {
		t.Error("Expected disabled cache for empty address")
	}
}

func TestSearchKey(t *testing.T) {
	a := SearchKey("posts", " AI Safety ", 10, "key-1")
	b := SearchKey("posts", "ai safety", 10, "key-1")
	if a != b {
		t.Errorf("Expected normalized queries to share a key: %q vs %q", a, b)
	}
	if a == SearchKey("posts", "ai safety", 10, "key-2") {
		t.Error("Different credentials must not share a key")
	}
	if a == SearchKey("clusters", "ai safety", 10, "key-1") || a == SearchKey("posts", "ai safety", 20, "key-1") {
		t.Error("Kind and limit must be part of the key")
	}
	if strings.Contains(a, "key-1") {
		t.Error("API key must not appear in the cache key")
	}
	if !strings.HasPrefix(ClusterKey("ai", "key-1"), PrefixCluster) {
		t.Error("Expected cluster prefix")
	}
}
