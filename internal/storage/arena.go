package storage

import (
	"fmt"
	"maps"
	"sync"
)

// Op names an arena operation. It is passed to fault injectors and recorded
// on errors.
type Op string

const (
	OpGet    Op = "get"
	OpInsert Op = "insert"
	OpPut    Op = "put"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpList   Op = "list"
)

// FaultFunc decides whether an operation fails. Returning a non-nil error
// aborts the operation before any state is touched.
type FaultFunc func(op Op, key string) error

// Option configures an Arena.
type Option func(*options)

type options struct {
	faults FaultFunc
}

// WithFaults installs a fault injector. Used by tests to exercise the
// ACCESSREADERROR and ACCESSWRITEERROR paths.
func WithFaults(f FaultFunc) Option {
	return func(o *options) {
		o.faults = f
	}
}

// Arena is an in-memory keyed store. Every write is a single critical
// section, so check-then-insert and read-modify-write never interleave.
type Arena[K comparable, V any] struct {
	name   string
	mu     sync.RWMutex
	items  map[K]V
	faults FaultFunc
}

// NewArena creates an empty arena. The name appears in error messages.
func NewArena[K comparable, V any](name string, opts ...Option) *Arena[K, V] {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return &Arena[K, V]{
		name:   name,
		items:  make(map[K]V),
		faults: o.faults,
	}
}

func (a *Arena[K, V]) fault(op Op, key K) error {
	if a.faults == nil {
		return nil
	}
	k := fmt.Sprint(key)
	if err := a.faults(op, k); err != nil {
		return NewError(err, op, a.name).WithKey(k)
	}
	return nil
}

func (a *Arena[K, V]) fail(err error, op Op, key K) error {
	return NewError(err, op, a.name).WithKey(fmt.Sprint(key))
}

// Get returns the value stored under key.
func (a *Arena[K, V]) Get(key K) (V, error) {
	var zero V
	if err := a.fault(OpGet, key); err != nil {
		return zero, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	v, ok := a.items[key]
	if !ok {
		return zero, a.fail(ErrNotFound, OpGet, key)
	}
	return v, nil
}

// Has reports whether key is present.
func (a *Arena[K, V]) Has(key K) (bool, error) {
	if err := a.fault(OpGet, key); err != nil {
		return false, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	_, ok := a.items[key]
	return ok, nil
}

// Insert stores value under key only if the key is absent.
func (a *Arena[K, V]) Insert(key K, value V) error {
	if err := a.fault(OpInsert, key); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.items[key]; ok {
		return a.fail(ErrCollision, OpInsert, key)
	}
	a.items[key] = value
	return nil
}

// Put stores value under key, replacing any previous value.
func (a *Arena[K, V]) Put(key K, value V) error {
	if err := a.fault(OpPut, key); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.items[key] = value
	return nil
}

// Update applies fn to the value under key and stores the result. If fn
// returns an error nothing is written and the error is returned as is.
func (a *Arena[K, V]) Update(key K, fn func(V) (V, error)) (V, error) {
	var zero V
	if err := a.fault(OpUpdate, key); err != nil {
		return zero, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	cur, ok := a.items[key]
	if !ok {
		return zero, a.fail(ErrNotFound, OpUpdate, key)
	}
	next, err := fn(cur)
	if err != nil {
		return zero, err
	}
	a.items[key] = next
	return next, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (a *Arena[K, V]) Delete(key K) error {
	if err := a.fault(OpDelete, key); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.items, key)
	return nil
}

// Snapshot returns a shallow copy of every entry.
func (a *Arena[K, V]) Snapshot() (map[K]V, error) {
	if a.faults != nil {
		if err := a.faults(OpList, ""); err != nil {
			return nil, NewError(err, OpList, a.name)
		}
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	return maps.Clone(a.items), nil
}

// Len returns the number of entries.
func (a *Arena[K, V]) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.items)
}
