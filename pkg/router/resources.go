package router

import "sync"

// resourceBudget tracks the in-use weight per named resource (cpu, memory,
// io, ...) against a fixed cap declared at bootstrap. Claims are taken and
// released under a short-held mutex; no claim ever awaits with the lock
// held (spec §5).
type resourceBudget struct {
	mux   sync.Mutex
	caps  map[string]int
	inUse map[string]int
}

func newResourceBudget(caps map[string]int) *resourceBudget {
	b := &resourceBudget{
		caps:  make(map[string]int, len(caps)),
		inUse: make(map[string]int, len(caps)),
	}
	for k, v := range caps {
		b.caps[k] = v
	}
	return b
}

// claimGuard releases its weights exactly once, on every exit path
// (success, handler error, or panic), via defer at the call site.
type claimGuard struct {
	budget  *resourceBudget
	weights map[string]int
	mux     sync.Mutex
	done    bool
}

// Release is idempotent: calling it twice (e.g. once from a deferred
// recover and once from normal flow) only credits the budget back once.
func (g *claimGuard) Release() {
	if g == nil {
		return
	}
	g.mux.Lock()
	defer g.mux.Unlock()
	if g.done {
		return
	}
	g.done = true
	g.budget.release(g.weights)
}

// claim attempts to reserve weights against the budget. It either succeeds
// atomically for every named resource or reserves nothing.
func (b *resourceBudget) claim(weights map[string]int) (*claimGuard, bool) {
	if len(weights) == 0 {
		return &claimGuard{budget: b, weights: weights, done: true}, true
	}
	b.mux.Lock()
	defer b.mux.Unlock()
	for resource, weight := range weights {
		limit, declared := b.caps[resource]
		if !declared {
			continue // unconstrained resource
		}
		if b.inUse[resource]+weight > limit {
			return nil, false
		}
	}
	for resource, weight := range weights {
		if _, declared := b.caps[resource]; declared {
			b.inUse[resource] += weight
		}
	}
	return &claimGuard{budget: b, weights: weights}, true
}

func (b *resourceBudget) release(weights map[string]int) {
	if len(weights) == 0 {
		return
	}
	b.mux.Lock()
	defer b.mux.Unlock()
	for resource, weight := range weights {
		if _, declared := b.caps[resource]; declared {
			b.inUse[resource] -= weight
		}
	}
}
