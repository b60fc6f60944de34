package solver

import "github.com/kilianp07/pvopt/core/factory"

var engineRegistry = factory.NewRegistry[Factory]()

// RegisterEngine adds a solver engine identified by name.
func RegisterEngine(name string, f factory.Factory[Factory]) error {
	return engineRegistry.Register(name, f)
}

// NewFactory returns the solver factory described by cfg.
func NewFactory(cfg factory.ModuleConfig) (Factory, error) {
	return engineRegistry.Create(cfg)
}
