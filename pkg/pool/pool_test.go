package pool

import "testing"

type widget struct {
	n int
}

func TestPool_AllocateDeallocate(t *testing.T) {
	p := New[widget](4)

	h1, err := p.Allocate(func(w *widget) { w.n = 1 })
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if p.Live() != 1 {
		t.Fatalf("expected live=1, got %d", p.Live())
	}
	if p.Get(h1).n != 1 {
		t.Fatalf("expected n=1, got %d", p.Get(h1).n)
	}

	p.Deallocate(h1)
	if p.Live() != 0 {
		t.Fatalf("expected live=0 after deallocate, got %d", p.Live())
	}
	if p.IsLive(h1) {
		t.Fatalf("expected handle not live after deallocate")
	}
}

func TestPool_ExhaustionIsFatal(t *testing.T) {
	p := New[widget](2)
	if _, err := p.Allocate(nil); err != nil {
		t.Fatalf("allocate 1: %v", err)
	}
	if _, err := p.Allocate(nil); err != nil {
		t.Fatalf("allocate 2: %v", err)
	}
	if _, err := p.Allocate(nil); err == nil {
		t.Fatalf("expected exhaustion error on third allocate")
	}
}

func TestPool_ReusesFreedSlot(t *testing.T) {
	p := New[widget](2)
	h1, _ := p.Allocate(func(w *widget) { w.n = 10 })
	_, _ = p.Allocate(func(w *widget) { w.n = 20 })
	p.Deallocate(h1)

	h3, err := p.Allocate(func(w *widget) { w.n = 30 })
	if err != nil {
		t.Fatalf("expected reuse of freed slot, got error: %v", err)
	}
	if p.Get(h3).n != 30 {
		t.Fatalf("expected reused slot initialized to 30, got %d", p.Get(h3).n)
	}
}
