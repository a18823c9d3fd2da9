package script

import (
	"fmt"
	"sync"

	"floatshelf/internal/domain"
)

// Registry holds script runners keyed by command kind.
type Registry struct {
	mu      sync.RWMutex
	runners map[domain.ScriptKind]domain.ScriptRunner
}

// NewRegistry creates an empty runner registry.
func NewRegistry() *Registry {
	return &Registry{
		runners: make(map[domain.ScriptKind]domain.ScriptRunner),
	}
}

// Register adds a runner. Returns error if its kind is already registered.
func (r *Registry) Register(runner domain.ScriptRunner) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kind := runner.Kind()
	if _, exists := r.runners[kind]; exists {
		return fmt.Errorf("runner %q already registered", kind)
	}
	r.runners[kind] = runner
	return nil
}

// Get retrieves the runner for a command kind.
func (r *Registry) Get(kind domain.ScriptKind) (domain.ScriptRunner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	runner, ok := r.runners[kind]
	if !ok {
		return nil, domain.NewDomainError("Registry.Get", domain.ErrRunnerNotFound, string(kind))
	}
	return runner, nil
}

// Kinds returns all registered command kinds.
func (r *Registry) Kinds() []domain.ScriptKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]domain.ScriptKind, 0, len(r.runners))
	for kind := range r.runners {
		kinds = append(kinds, kind)
	}
	return kinds
}
