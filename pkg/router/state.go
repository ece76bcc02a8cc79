package router

import "sync/atomic"

// State is the shared, mutable router state: the method table and the
// resource budget (spec §3 "Router state"). It may be registered into at
// any time after bootstrap; readers always see a consistent snapshot
// because registration clones the table before swapping the pointer.
type State struct {
	table   atomic.Pointer[methodTable]
	budget  *resourceBudget
	allCaps map[string]int
}

// NewState creates router state with the given resource caps, e.g.
// {"cpu": 100, "memory": 100, "io": 50}. A resource absent from caps is
// treated as unconstrained.
func NewState(caps map[string]int) *State {
	s := &State{
		budget:  newResourceBudget(caps),
		allCaps: caps,
	}
	s.table.Store(newMethodTable())
	return s
}

// Register adds or replaces a method entry. It refuses to register a
// method whose weight on any named resource exceeds that resource's cap
// (spec §4.2.1), returning an error rather than installing a method that
// could never be claimed.
func (s *State) Register(entry MethodEntry) error {
	for {
		old := s.table.Load()
		next, err := old.withRegistered(entry, s.allCaps)
		if err != nil {
			return err
		}
		if s.table.CompareAndSwap(old, next) {
			return nil
		}
		// lost the race with a concurrent registration; retry against the new base
	}
}

// snapshot returns the currently installed method table and the shared
// resource budget. This is a cheap structural read: no lock is held
// across any subsequent await (spec §4.2.2 step 1).
func (s *State) snapshot() (*methodTable, *resourceBudget) {
	return s.table.Load(), s.budget
}
