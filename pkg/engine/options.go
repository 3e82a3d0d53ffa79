// Package engine computes which tasks of an execution graph can run next and derives task,
// sub-group and graph status. Every function here is pure over the snapshot it is given.
package engine

import (
	"sync/atomic"

	"github.com/dukex/flowengine/pkg/graph"
)

// Options are the engine mode flags, read once per scheduling tick.
type Options struct {
	// IndependentContext gives concurrently ready siblings isolated context copies.
	IndependentContext bool
	// KeyPath enables key-path semantics; when false key statuses never relax dependencies.
	KeyPath bool
	// MaxDepth bounds diagnostic tree walks.
	MaxDepth int
}

// DefaultOptions returns the options a driver starts with.
func DefaultOptions() Options {
	return Options{
		IndependentContext: true,
		KeyPath:            true,
		MaxDepth:           graph.DefaultMaxDepth,
	}
}

// OptionsHolder shares one atomically swapped Options value across ticks.
type OptionsHolder struct {
	current atomic.Pointer[Options]
}

// NewOptionsHolder creates a holder initialised with opts.
func NewOptionsHolder(opts Options) *OptionsHolder {
	h := &OptionsHolder{}
	h.Store(opts)

	return h
}

// Load returns the current options.
func (h *OptionsHolder) Load() Options {
	opts := h.current.Load()
	if opts == nil {
		return DefaultOptions()
	}

	return *opts
}

// Store replaces the current options.
func (h *OptionsHolder) Store(opts Options) {
	h.current.Store(&opts)
}

// Update applies fn to a copy of the current options and stores the result, retrying when
// another writer got there first.
func (h *OptionsHolder) Update(fn func(*Options)) Options {
	for {
		old := h.current.Load()

		next := DefaultOptions()
		if old != nil {
			next = *old
		}

		fn(&next)

		if h.current.CompareAndSwap(old, &next) {
			return next
		}
	}
}
