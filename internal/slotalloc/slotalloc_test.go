package slotalloc

import (
	"sync"
	"testing"

	"github.com/mackron/miniaudio-sub001/internal/datasource"
)

func TestAllocFreeRoundTrip(t *testing.T) {
	a := New()
	h, res := a.Alloc()
	if res != datasource.Success {
		t.Fatalf("alloc failed: %v", res)
	}
	if a.Count() != 1 {
		t.Fatalf("count = %d, want 1", a.Count())
	}
	if res := a.Free(h); res != datasource.Success {
		t.Fatalf("free failed: %v", res)
	}
	if a.Count() != 0 {
		t.Fatalf("count after free = %d, want 0", a.Count())
	}
}

func TestFreeUnallocatedFails(t *testing.T) {
	a := New()
	if res := a.Free(Handle(0)); res != datasource.InvalidOperation {
		t.Fatalf("expected InvalidOperation, got %v", res)
	}
}

func TestHandlesDistinctAcrossReuse(t *testing.T) {
	a := New()
	h1, _ := a.Alloc()
	if res := a.Free(h1); res != datasource.Success {
		t.Fatal(res)
	}
	h2, _ := a.Alloc()
	if h1.Slot() != h2.Slot() {
		t.Fatalf("expected slot reuse (likely group scan order), got %d vs %d", h1.Slot(), h2.Slot())
	}
	if h1 == h2 {
		t.Fatal("expected distinct handles on slot reuse (refcount must advance)")
	}
	if h2.Refcount() <= h1.Refcount() {
		t.Fatalf("expected refcount to advance: %d -> %d", h1.Refcount(), h2.Refcount())
	}
}

func TestExhaustion(t *testing.T) {
	a := New()
	handles := make([]Handle, 0, Capacity)
	for i := 0; i < Capacity; i++ {
		h, res := a.Alloc()
		if res != datasource.Success {
			t.Fatalf("alloc %d failed: %v", i, res)
		}
		handles = append(handles, h)
	}
	if _, res := a.Alloc(); res != datasource.OutOfMemory {
		t.Fatalf("expected OutOfMemory once full, got %v", res)
	}
	for _, h := range handles {
		if res := a.Free(h); res != datasource.Success {
			t.Fatalf("free failed: %v", res)
		}
	}
	if a.Count() != 0 {
		t.Fatalf("count = %d, want 0", a.Count())
	}
}

func TestConcurrentAllocFree(t *testing.T) {
	a := New()
	const goroutines = 16
	const iterations = 200

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				h, res := a.Alloc()
				if res != datasource.Success {
					continue // pool momentarily exhausted by siblings, acceptable
				}
				if res := a.Free(h); res != datasource.Success {
					t.Errorf("free failed: %v", res)
				}
			}
		}()
	}
	wg.Wait()

	if a.Count() != 0 {
		t.Fatalf("count after concurrent churn = %d, want 0", a.Count())
	}
}
