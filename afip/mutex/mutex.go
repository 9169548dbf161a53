package mutex

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// KeyedMutex serializes work per key. Entries are dropped once no goroutine holds
// or waits for them.
type KeyedMutex[K comparable] struct {
	mu    sync.Mutex
	table map[K]*entry
}

func (m *KeyedMutex[K]) Lock(key K) {
	m.mu.Lock()
	if m.table == nil {
		m.table = make(map[K]*entry)
	}
	e, ok := m.table[key]
	if !ok {
		e = &entry{}
		m.table[key] = e
	}
	e.refs++
	m.mu.Unlock()

	e.mu.Lock()
}

func (m *KeyedMutex[K]) Unlock(key K) {
	m.mu.Lock()
	e, ok := m.table[key]
	if !ok {
		m.mu.Unlock()
		panic("mutex: unlock of unlocked key")
	}
	e.refs--
	if e.refs == 0 {
		delete(m.table, key)
	}
	m.mu.Unlock()

	e.mu.Unlock()
}

func (m *KeyedMutex[K]) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.table)
}
