package ident

import (
	"sync"

	"github.com/Alwanly/service-fleet-control/pkg/faults"
	"github.com/google/uuid"
)

// Allocator hands out 128-bit identifiers for every entity kind. Values come
// from the crypto/rand-backed random UUID generator; the issued set guards
// against the negligible chance of a repeat so no two calls, concurrent or
// not, ever return the same identifier.
type Allocator struct {
	mu     sync.Mutex
	issued map[uuid.UUID]struct{}
}

func NewAllocator() *Allocator {
	return &Allocator{
		issued: make(map[uuid.UUID]struct{}),
	}
}

const maxDraws = 8

// Allocate returns a fresh identifier. It fails only when the entropy source
// does, which is an internal condition the caller cannot recover from.
func (a *Allocator) Allocate() (uuid.UUID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := 0; i < maxDraws; i++ {
		id, err := uuid.NewRandom()
		if err != nil {
			return uuid.Nil, faults.Internal("entropy source unavailable", err)
		}
		if _, dup := a.issued[id]; dup {
			continue
		}
		a.issued[id] = struct{}{}
		return id, nil
	}
	return uuid.Nil, faults.New(faults.KindInternal, "identifier space exhausted")
}

// Count reports how many identifiers have been issued.
func (a *Allocator) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.issued)
}
