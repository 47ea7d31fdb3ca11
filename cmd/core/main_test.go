package main

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-credit-ledger/internal/config"
)

// closeTracker 記錄 Close 是否被呼叫
type closeTracker struct {
	usecase.Store
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return c.Store.Close()
}

func trackStore(t *testing.T) *closeTracker {
	t.Helper()
	tracker := &closeTracker{}
	orig := openStore
	openStore = func(ctx context.Context, cfg *config.Config) (usecase.Store, error) {
		s, err := orig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		tracker.Store = s
		return tracker, nil
	}
	t.Cleanup(func() { openStore = orig })
	return tracker
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.GRPC.Addr = "127.0.0.1:0"
	cfg.Ledger.WALPath = filepath.Join(t.TempDir(), "wal.log")
	cfg.Ledger.WALNoSync = true
	cfg.ApplyDefaults()
	return cfg
}

func TestRunClosesStoreWhenListenFails(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer busy.Close()

	tracker := trackStore(t)
	cfg := testConfig(t)
	cfg.GRPC.Addr = busy.Addr().String()

	if err := run(context.Background(), cfg); err == nil {
		t.Fatal("run() should fail when the grpc address is taken")
	}
	if !tracker.closed {
		t.Fatal("store must be closed before run() returns")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	tracker := trackStore(t)
	cfg := testConfig(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run() did not return after cancel")
	}
	if !tracker.closed {
		t.Fatal("store must be closed on shutdown")
	}
}

func TestNewStoreUnknown(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ledger.Store = "cassandra"
	if _, err := newStore(context.Background(), cfg); err == nil {
		t.Fatal("unknown store should fail")
	}
}
