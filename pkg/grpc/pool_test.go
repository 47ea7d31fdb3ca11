package grpc

import (
	"sync"
	"testing"
)

func TestGetConnectionReusesTarget(t *testing.T) {
	p := NewPool()
	defer p.Close()

	var wg sync.WaitGroup
	conns := make([]any, 20)
	for i := range conns {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn, err := p.GetConnection("localhost:50051")
			if err != nil {
				t.Errorf("GetConnection() error = %v", err)
				return
			}
			conns[i] = conn
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(conns); i++ {
		if conns[i] != conns[0] {
			t.Fatalf("connection %d differs from the first one", i)
		}
	}
}

func TestGetConnectionAfterClose(t *testing.T) {
	p := NewPool()
	first, err := p.GetConnection("localhost:50051")
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	second, err := p.GetConnection("localhost:50051")
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	if first == second {
		t.Fatal("closed connection must not be reused")
	}
}
