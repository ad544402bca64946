package jit

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrBackendUnavailable is returned by backends that cannot run on
	// this platform or build.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrUnknownBackend is returned when backend is not registered.
	ErrUnknownBackend = errors.New("unknown backend")
)

// DefaultBackend is used when no backend is requested.
const DefaultBackend = "closure"

// Program is lowered code of a graph. Tick runs node steps of one tick over
// the state the program was compiled for.
type Program interface {
	Tick()
}

// Backend lowers IR into a program.
type Backend interface {
	Name() string
	Compile(ir *GraphIR, layout *Layout, state *State) (Program, error)
}

var (
	backendsMu sync.RWMutex
	backends   = make(map[string]Backend)
)

// Register makes backend available by its name. It panics if the name is
// taken.
func Register(b Backend) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if _, ok := backends[b.Name()]; ok {
		panic(fmt.Sprintf("jit: backend %q registered twice", b.Name()))
	}
	backends[b.Name()] = b
}

// Lookup returns registered backend.
func Lookup(name string) (Backend, error) {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	b, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
	return b, nil
}

// Backends returns sorted names of registered backends.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register(closureBackend{})
	Register(nativeBackend{})
}

// nativeBackend is the placeholder for machine code generation.
type nativeBackend struct{}

func (nativeBackend) Name() string {
	return "native"
}

func (nativeBackend) Compile(*GraphIR, *Layout, *State) (Program, error) {
	return nil, fmt.Errorf("%w: native code generation is not supported", ErrBackendUnavailable)
}
