package transport

import (
	"fmt"
	"sync"
)

// RegMax bounds the number of registered handlers.
const RegMax = 16

// Handler is the contract a registered function satisfies: given args,
// produce out (at most len(out) bytes, reporting the used length via
// outLen), observing timeout on a best-effort basis. A negative return
// causes an ERR response for REQ messages.
type Handler func(args []byte, out []byte, timeout_ms int) (outLen int, rc int)

type registryEntry struct {
	name    string
	handler Handler
}

// Registry is the bounded, append-only function table. Register rejects
// a duplicate name rather than silently shadowing an earlier entry.
type Registry struct {
	mu      sync.Mutex
	entries []registryEntry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make([]registryEntry, 0, RegMax)}
}

// ErrRegistryFull is returned by Register once RegMax entries exist.
var ErrRegistryFull = fmt.Errorf("transport: registry full (max %d)", RegMax)

// ErrDuplicateName is returned by Register when name already has a handler.
var ErrDuplicateName = fmt.Errorf("transport: duplicate handler name")

// Register appends (name, handler) under the registry mutex. name must
// satisfy the same bounds as a typed message's name.
func (r *Registry) Register(name string, h Handler) error {
	if len(name) < MinName || len(name) > MaxName {
		return fmt.Errorf("transport: name length %d out of [%d,%d]", len(name), MinName, MaxName)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.name == name {
			return ErrDuplicateName
		}
	}
	if len(r.entries) >= RegMax {
		return ErrRegistryFull
	}
	r.entries = append(r.entries, registryEntry{name: name, handler: h})
	return nil
}

// Find returns the handler registered for name, or nil, false if none
// matches. A linear scan under the registry mutex, byte-identical match.
func (r *Registry) Find(name string) (Handler, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.name == name {
			return e.handler, true
		}
	}
	return nil, false
}
