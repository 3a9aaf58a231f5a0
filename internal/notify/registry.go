package notify

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownBackend is returned by Open for a name nobody registered.
var ErrUnknownBackend = errors.New("unknown notification backend")

// Constructor creates a Notifier. Backends register one with Register.
type Constructor func() (Notifier, error)

var (
	registry      = make(map[string]Constructor)
	registryMutex sync.RWMutex
)

// Register makes a backend available under name. It is called from init
// functions in backend files and panics on duplicate or nil registration.
func Register(name string, constructor Constructor) {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if constructor == nil {
		panic(fmt.Sprintf("notify: Register constructor is nil for backend %s", name))
	}
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("notify: Register called twice for backend %s", name))
	}
	registry[name] = constructor
}

// Open creates a Notifier using the named backend. An empty name selects
// DefaultBackend.
func Open(name string) (Notifier, error) {
	if name == "" {
		name = DefaultBackend
	}
	registryMutex.RLock()
	constructor := registry[name]
	registryMutex.RUnlock()

	if constructor == nil {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownBackend, name, Backends())
	}
	n, err := constructor()
	if err != nil {
		return nil, fmt.Errorf("create %s notifier: %w", name, err)
	}
	return n, nil
}

// Backends returns the registered backend names, sorted.
func Backends() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
