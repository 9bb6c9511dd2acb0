// Package callbacks correlates asynchronous completions with the request
// that started them through an opaque id.
package callbacks

import (
	stderrors "errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/grovetools/editsync/errors"
)

// Handler receives nil on success or the failure reason.
type Handler func(err error)

// Registry maps ids to pending handlers. Each handler fires at most once.
// There is no expiry: an id that is never called stays pending until
// Forget, which Pending makes visible.
type Registry struct {
	mu       sync.Mutex
	handlers map[string]Handler
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register stores h under a fresh id and returns the id.
func (r *Registry) Register(h Handler) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.handlers[id] = h
	r.mu.Unlock()
	return id
}

// RegisterID stores h under a caller-chosen id.
func (r *Registry) RegisterID(id string, h Handler) error {
	if id == "" {
		return errors.New(errors.ErrCodeInvalidInput, "callback id cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[id]; exists {
		return errors.CallbackExists(id)
	}
	r.handlers[id] = h
	return nil
}

// Call fires the handler for id with success. It reports whether a handler
// was found; an unknown id is not an error.
func (r *Registry) Call(id string) bool {
	return r.fire(id, nil)
}

// CallError fires the handler for id with a failure carrying message, or
// the default message when message is empty.
func (r *Registry) CallError(id, message string) bool {
	if message == "" {
		message = errors.DefaultCallbackErrorMessage
	}
	return r.fire(id, stderrors.New(message))
}

func (r *Registry) fire(id string, err error) bool {
	r.mu.Lock()
	h, ok := r.handlers[id]
	if ok {
		delete(r.handlers, id)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	if h != nil {
		h(err)
	}
	return true
}

// Forget drops id without firing its handler.
func (r *Registry) Forget(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.handlers[id]
	delete(r.handlers, id)
	return ok
}

// Pending returns the number of ids still waiting.
func (r *Registry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handlers)
}

// IDs returns the pending ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.handlers))
	for id := range r.handlers {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	sort.Strings(ids)
	return ids
}
