package localstore

import (
	"errors"
	"sync"
)

// ErrUnavailable is returned by a Memory store that has been switched off.
var ErrUnavailable = errors.New("localstore: unavailable")

// Memory is an in-process Store, used in tests and as a last resort when no
// file store can be opened.
type Memory struct {
	mu     sync.Mutex
	values map[string]string
	broken bool
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{values: map[string]string{}}
}

// SetBroken makes every subsequent call fail with ErrUnavailable (or succeed
// again when broken is false).
func (m *Memory) SetBroken(broken bool) {
	m.mu.Lock()
	m.broken = broken
	m.mu.Unlock()
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.broken {
		return "", false, ErrUnavailable
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.broken {
		return ErrUnavailable
	}
	m.values[key] = value
	return nil
}

func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.broken {
		return ErrUnavailable
	}
	delete(m.values, key)
	return nil
}

// Verify implementations satisfy Store at compile time.
var (
	_ Store = (*File)(nil)
	_ Store = (*Memory)(nil)
)
