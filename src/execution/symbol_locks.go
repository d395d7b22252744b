package execution

import "sync"

// symbolLocks hands out one mutex per symbol. Entries are never removed; the symbol
// universe of a run is small and fixed by the feed subscription.
type symbolLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newSymbolLocks() *symbolLocks {
	return &symbolLocks{locks: make(map[string]*sync.Mutex)}
}

func (s *symbolLocks) lock(symbol string) func() {
	s.mu.Lock()
	l, ok := s.locks[symbol]
	if !ok {
		l = &sync.Mutex{}
		s.locks[symbol] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}
