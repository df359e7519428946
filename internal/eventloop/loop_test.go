package eventloop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestLoopRunsWorkInPostOrder(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	var (
		mu  sync.Mutex
		got []int
	)
	for i := 0; i < 100; i++ {
		i := i
		if !l.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}) {
			t.Fatalf("Post %d rejected", i)
		}
	}
	if err := l.Call(ctx, func() {}); err != nil {
		t.Fatalf("Call: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 100 {
		t.Fatalf("ran %d items, want 100", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("item %d ran as %d", i, v)
		}
	}
}

func TestLoopCloseRejectsWorkAndStopsRun(t *testing.T) {
	l := New()
	go l.Run(context.Background())

	l.Close()
	select {
	case <-l.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after Close")
	}
	if l.Post(func() {}) {
		t.Fatalf("Post accepted after Close")
	}
	if err := l.Call(context.Background(), func() {}); !errors.Is(err, ErrClosed) {
		t.Fatalf("Call err = %v, want ErrClosed", err)
	}
}

func TestLoopStopsOnContextCancel(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	cancel()
	select {
	case <-l.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}

func TestManualDrainRunsNestedPosts(t *testing.T) {
	m := NewManual()
	var order []string
	m.Post(func() {
		order = append(order, "a")
		m.Post(func() { order = append(order, "c") })
	})
	m.Post(func() { order = append(order, "b") })

	if m.Len() != 2 {
		t.Fatalf("Len = %d, want 2", m.Len())
	}
	if ran := m.Drain(); ran != 3 {
		t.Fatalf("Drain ran %d, want 3", ran)
	}
	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Fatalf("order = %v", order)
	}
	if m.Post(nil) {
		t.Fatalf("nil work accepted")
	}
}
