package main

import (
	"converge/internal/step"
	commandstep "converge/internal/steps/command"
	pkgstep "converge/internal/steps/pkg"
)

// newStepRegistry wires the built-in step kinds.
func newStepRegistry() (*step.Registry, error) {
	registry := step.NewRegistry()

	if err := commandstep.Register(registry); err != nil {
		return nil, err
	}
	if err := pkgstep.Register(registry); err != nil {
		return nil, err
	}

	return registry, nil
}
