package operator

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ssargent/tether/pkg/config"
)

// Constructor builds an operator from its configuration
type Constructor func(cfg config.Operator) (Operator, error)

// Registry maps operator names to constructors
type Registry struct {
	mutex        sync.RWMutex
	constructors map[string]Constructor
}

// NewRegistry creates a registry holding the built-in operators
func NewRegistry() *Registry {
	r := &Registry{constructors: make(map[string]Constructor)}
	r.Register("identity", newIdentity)
	r.Register("project", newProject)
	r.Register("drop-nulls", newDropNulls)
	r.Register("count", newCount)
	r.Register("concat", newConcat)
	r.Register("pair", newPair)
	r.Register("starlark", NewScript)
	return r
}

// Register adds or replaces a constructor
func (r *Registry) Register(name string, c Constructor) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.constructors[name] = c
}

// Names returns the registered names in sorted order
func (r *Registry) Names() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New constructs the operator named by cfg. A kind set in cfg must match
// the kind of the constructed operator.
func (r *Registry) New(cfg config.Operator) (Operator, error) {
	r.mutex.RLock()
	c, ok := r.constructors[cfg.Name]
	r.mutex.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperator, cfg.Name)
	}
	if cfg.Kind != "" {
		if _, err := ParseKind(cfg.Kind); err != nil {
			return nil, err
		}
	}

	op, err := c(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create operator %s: %w", cfg.Name, err)
	}
	if cfg.Kind != "" && Kind(cfg.Kind) != op.Kind() {
		return nil, fmt.Errorf("%w: %s is a %s operator, not %s", ErrKindMismatch, cfg.Name, op.Kind(), cfg.Kind)
	}
	return op, nil
}

// Build constructs the head operator and the chained operators behind it
func (r *Registry) Build(head config.Operator, chain []config.Operator) (*Chain, error) {
	c := &Chain{}
	for _, cfg := range append([]config.Operator{head}, chain...) {
		op, err := r.New(cfg)
		if err != nil {
			return nil, err
		}
		if err := c.Add(cfg.Name, op, cfg.Params); err != nil {
			return nil, err
		}
	}
	return c, nil
}
