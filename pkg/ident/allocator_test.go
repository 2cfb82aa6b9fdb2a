package ident

import (
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestAllocateReturnsDistinctIdentifiers(t *testing.T) {
	a := NewAllocator()
	first, err := a.Allocate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := a.Allocate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct identifiers, got %s twice", first)
	}
	if first == uuid.Nil || second == uuid.Nil {
		t.Fatal("allocator returned the nil identifier")
	}
}

func TestAllocateConcurrentCallersNeverCollide(t *testing.T) {
	const callers = 1000

	a := NewAllocator()
	results := make(chan uuid.UUID, callers)
	var wg sync.WaitGroup

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := a.Allocate()
			if err != nil {
				t.Errorf("allocate failed: %v", err)
				return
			}
			results <- id
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[uuid.UUID]struct{}, callers)
	for id := range results {
		seen[id] = struct{}{}
	}
	if len(seen) != callers {
		t.Fatalf("expected %d unique identifiers, got %d", callers, len(seen))
	}
	if a.Count() != callers {
		t.Fatalf("expected allocator to record %d identifiers, got %d", callers, a.Count())
	}
}
