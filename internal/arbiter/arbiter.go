// Package arbiter guards the single dissector instance a plugin owns.
//
// The engine calls back into a plugin synchronously and may re-enter it
// while a dissect callback is still on the stack. Dissect and probe callbacks
// take shared access, which nests; registration and handoff take exclusive
// access. A request that conflicts with the current holders fails with
// core.ErrReentrant instead of blocking, so a misbehaving engine is reported
// rather than deadlocked.
package arbiter

import (
	"fmt"
	"sync"

	"firestige.xyz/dissect/internal/core"
)

// State is the observable holding state of an Arbiter.
type State int

const (
	Empty State = iota
	Available
	HeldShared
	HeldExclusive
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Available:
		return "available"
	case HeldShared:
		return "held(shared)"
	case HeldExclusive:
		return "held(exclusive)"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Arbiter holds one value of type T and hands out access to it.
type Arbiter[T any] struct {
	mu        sync.Mutex
	value     T
	set       bool
	shared    int
	exclusive bool
}

func New[T any]() *Arbiter[T] {
	return &Arbiter[T]{}
}

// Setup stores the instance. It may be called once.
func (a *Arbiter[T]) Setup(v T) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.set {
		return core.ErrAlreadySetup
	}
	a.value = v
	a.set = true
	return nil
}

// Exclusive runs fn with sole access to the instance.
func (a *Arbiter[T]) Exclusive(fn func(T) error) error {
	a.mu.Lock()
	switch {
	case !a.set:
		a.mu.Unlock()
		return core.ErrNotSetup
	case a.exclusive, a.shared > 0:
		state := a.stateLocked()
		a.mu.Unlock()
		return fmt.Errorf("exclusive access while %s: %w", state, core.ErrReentrant)
	}
	a.exclusive = true
	v := a.value
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.exclusive = false
		a.mu.Unlock()
	}()
	return fn(v)
}

// Shared runs fn with read access to the instance. Shared holders nest.
func (a *Arbiter[T]) Shared(fn func(T) error) error {
	a.mu.Lock()
	switch {
	case !a.set:
		a.mu.Unlock()
		return core.ErrNotSetup
	case a.exclusive:
		a.mu.Unlock()
		return fmt.Errorf("shared access while %s: %w", HeldExclusive, core.ErrReentrant)
	}
	a.shared++
	v := a.value
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.shared--
		a.mu.Unlock()
	}()
	return fn(v)
}

func (a *Arbiter[T]) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stateLocked()
}

// Depth is the number of nested shared holders.
func (a *Arbiter[T]) Depth() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.shared
}

func (a *Arbiter[T]) stateLocked() State {
	switch {
	case !a.set:
		return Empty
	case a.exclusive:
		return HeldExclusive
	case a.shared > 0:
		return HeldShared
	default:
		return Available
	}
}
