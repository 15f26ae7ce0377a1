package fuelstock

import "sync"

// productLocks hands out one mutex per product code. Entries are reference
// counted and dropped when the last holder unlocks, so the map only holds
// products with in-flight operations.
type productLocks struct {
	mu    sync.Mutex
	locks map[string]*productLock
}

type productLock struct {
	mu   sync.Mutex
	refs int
}

func newProductLocks() *productLocks {
	return &productLocks{locks: make(map[string]*productLock)}
}

// Lock blocks until product is free and returns the matching unlock func.
func (p *productLocks) Lock(product string) func() {
	p.mu.Lock()
	l, ok := p.locks[product]
	if !ok {
		l = &productLock{}
		p.locks[product] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, product)
		}
		p.mu.Unlock()
	}
}

func (p *productLocks) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.locks)
}
