// Package memo holds time-bounded memoized values owned by the component that
// needs them.
package memo

import (
	"sync"
	"time"
)

// Value memoizes a single value for ttl.
type Value[T any] struct {
	mu         sync.Mutex
	value      T
	capturedAt time.Time
	set        bool
	ttl        time.Duration
	now        func() time.Time
}

// New returns an empty memo whose values expire after ttl.
func New[T any](ttl time.Duration) *Value[T] {
	return &Value[T]{ttl: ttl, now: time.Now}
}

// Get returns the value if it was set less than ttl ago.
func (v *Value[T]) Get() (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	var zero T
	if !v.set || v.now().Sub(v.capturedAt) >= v.ttl {
		return zero, false
	}

	return v.value, true
}

// Set stores value and stamps it with the current time.
func (v *Value[T]) Set(value T) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.value = value
	v.capturedAt = v.now()
	v.set = true
}

// Reset forgets the value.
func (v *Value[T]) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()

	var zero T
	v.value = zero
	v.set = false
}

// Map memoizes one value per key.
type Map[K comparable, T any] struct {
	mu      sync.Mutex
	entries map[K]*Value[T]
	ttl     time.Duration
	now     func() time.Time
}

// NewMap returns an empty keyed memo whose values expire after ttl.
func NewMap[K comparable, T any](ttl time.Duration) *Map[K, T] {
	return &Map[K, T]{entries: make(map[K]*Value[T]), ttl: ttl, now: time.Now}
}

func (m *Map[K, T]) entry(key K) *Value[T] {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		e = &Value[T]{ttl: m.ttl, now: m.now}
		m.entries[key] = e
	}

	return e
}

// Get returns the value for key if it is still fresh.
func (m *Map[K, T]) Get(key K) (T, bool) {
	return m.entry(key).Get()
}

// Set stores the value for key.
func (m *Map[K, T]) Set(key K, value T) {
	m.entry(key).Set(value)
}

// Reset forgets every key.
func (m *Map[K, T]) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[K]*Value[T])
}
