package compiler

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"pipelined.dev/graph"
)

var (
	// ErrUnknownType is returned when description references a node type
	// that is not registered.
	ErrUnknownType = errors.New("unknown node type")
	// ErrDuplicateType is returned when a type name is registered twice.
	ErrDuplicateType = errors.New("duplicate node type")
	// ErrArity is returned when node is instantiated with wrong number of
	// constructor arguments.
	ErrArity = errors.New("wrong number of arguments")
)

// NodeType describes how to instantiate a node from a description.
type NodeType struct {
	// Name used in descriptions.
	Name string
	// Defaults holds default value of every constructor argument. Fewer
	// arguments than defaults can be provided.
	Defaults []float32
	// New returns a new node. It receives exactly len(Defaults) arguments.
	New func(args []float32) graph.Node
	// Constructor is the name of exported Go function with the same
	// arguments in the package of the node type. Generated code calls it.
	Constructor string
}

// Args returns full list of constructor arguments.
func (t NodeType) Args(args []float32) ([]float32, error) {
	if len(args) > len(t.Defaults) {
		return nil, fmt.Errorf("%w: %s takes %d, got %d", ErrArity, t.Name, len(t.Defaults), len(args))
	}
	full := make([]float32, len(t.Defaults))
	copy(full, t.Defaults)
	copy(full, args)
	return full, nil
}

// Registry holds available node types.
type Registry struct {
	mu    sync.RWMutex
	types map[string]NodeType
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		types: make(map[string]NodeType),
	}
}

// Register adds types to the registry.
func (r *Registry) Register(types ...NodeType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range types {
		if t.Name == "" || t.New == nil {
			return fmt.Errorf("%w: %q is incomplete", ErrUnknownType, t.Name)
		}
		if _, ok := r.types[t.Name]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateType, t.Name)
		}
		r.types[t.Name] = t
	}
	return nil
}

// Lookup returns type by name.
func (r *Registry) Lookup(name string) (NodeType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

// Names returns sorted names of registered types.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
