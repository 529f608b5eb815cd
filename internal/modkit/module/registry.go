package module

import "sync"

// registry of port sets by module name, filled while the API is composed
var (
	mu  sync.RWMutex
	reg = map[string]any{}
)

// Register stores the port set of a module
func Register(name string, ports any) {
	mu.Lock()
	defer mu.Unlock()
	reg[name] = ports
}

// Lookup returns the port set registered under name as T
func Lookup[T any](name string) (T, bool) {
	mu.RLock()
	defer mu.RUnlock()
	v, ok := reg[name].(T)
	return v, ok
}
