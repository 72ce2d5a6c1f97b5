package step

import (
	"fmt"
	"sort"
	"sync"

	"converge/internal/config"
	convergeerrors "converge/pkg/errors"
)

// Env carries plan-level context into step builders. Categories are opaque
// to the controller and forwarded to steps unexamined.
type Env struct {
	Categories []string
}

// Builder constructs a Step from its plan configuration.
type Builder func(cfg config.Step, env Env) (Step, error)

// Registry maps plan step types to builders.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]Builder)}
}

// Register adds a builder for the given step type. Registering the same
// type twice is a programming error.
func (r *Registry) Register(stepType string, builder Builder) error {
	if stepType == "" {
		return convergeerrors.NewValidationError("type", "step type is empty", nil)
	}
	if builder == nil {
		return convergeerrors.NewValidationError("type", fmt.Sprintf("nil builder for type %q", stepType), nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.builders[stepType]; exists {
		return convergeerrors.NewValidationError("type", fmt.Sprintf("step type %q already registered", stepType), nil)
	}
	r.builders[stepType] = builder
	return nil
}

// Types returns the registered step types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.builders))
	for t := range r.builders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Build constructs one Step from its configuration.
func (r *Registry) Build(cfg config.Step, env Env) (Step, error) {
	r.mu.RLock()
	builder, ok := r.builders[cfg.Type]
	r.mu.RUnlock()

	if !ok {
		return nil, convergeerrors.NewValidationError(cfg.ID, fmt.Sprintf("no builder registered for step type %q", cfg.Type), nil)
	}
	return builder(cfg, env)
}

// BuildAll constructs the full step list in plan order.
func (r *Registry) BuildAll(cfgs []config.Step, env Env) ([]Step, error) {
	steps := make([]Step, 0, len(cfgs))
	for _, cfg := range cfgs {
		s, err := r.Build(cfg, env)
		if err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	return steps, nil
}
