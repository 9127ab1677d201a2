/*
 * Copyright (C) 2025 Nuts community
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 *
 */

package core

import (
	"errors"
	"fmt"
	"os"
)

// Engine is the base interface of every module registered on the System.
type Engine interface{}

// Named is implemented by engines that have a name, which is also used as config key.
type Named interface {
	// Name returns the name of the engine.
	Name() string
}

// Configurable is implemented by engines that need to (re)configure themselves after config has been loaded.
type Configurable interface {
	// Configure checks the config and sets up the engine. It must not start long-running processes.
	Configure(config ServerConfig) error
}

// Runnable is implemented by engines that have long-running processes.
type Runnable interface {
	// Start starts the engine.
	Start() error
	// Shutdown stops the engine, waiting for running processes to finish.
	Shutdown() error
}

// Injectable is implemented by engines that have their own config section.
type Injectable interface {
	Named
	// Config returns a pointer to the engine's config struct.
	Config() interface{}
}

// Routable enables connecting a REST API to the echo server.
type Routable interface {
	// Routes configures the HTTP routes on the given router
	Routes(router EchoRouter)
}

// Diagnosable allows the implementer, mostly engines, to return diagnostics.
type Diagnosable interface {
	Diagnostics() []DiagnosticResult
}

// ViewableDiagnostics is a Diagnosable that has a name, so its diagnostics can be listed per engine.
type ViewableDiagnostics interface {
	Named
	Diagnosable
}

// NewSystem creates a new, empty System.
func NewSystem() *System {
	return &System{
		engines: []Engine{},
		Config:  NewServerConfig(),
	}
}

// System is the control structure where engines are registered.
type System struct {
	// engines is the slice of all registered engines, in order of registration
	engines []Engine
	// Config holds the global and raw config
	Config *ServerConfig
	// Routers is used to connect API implementations to the HTTP engine.
	Routers []Routable
}

// Load loads the config and injects config values into engines
func (system *System) Load(flags FlagSource) error {
	if err := system.Config.Load(flags.Flags()); err != nil {
		return err
	}
	return system.VisitEnginesE(func(engine Engine) error {
		if m, ok := engine.(Injectable); ok {
			return system.Config.InjectIntoEngine(m)
		}
		return nil
	})
}

// Diagnostics returns the compound diagnostics for all engines.
func (system *System) Diagnostics() []DiagnosticResult {
	result := make([]DiagnosticResult, 0)
	system.VisitEngines(func(engine Engine) {
		if m, ok := engine.(Diagnosable); ok {
			result = append(result, m.Diagnostics()...)
		}
	})
	return result
}

// Configure configures all engines in the system.
func (system *System) Configure() error {
	if err := os.MkdirAll(system.Config.Datadir, os.ModePerm); err != nil {
		return fmt.Errorf("unable to create datadir (dir=%s): %w", system.Config.Datadir, err)
	}
	return system.VisitEnginesE(func(engine Engine) error {
		if m, ok := engine.(Configurable); ok {
			if err := m.Configure(*system.Config); err != nil {
				return fmt.Errorf("unable to configure %s: %w", engineName(engine), err)
			}
		}
		return nil
	})
}

// Start starts all engines in the system, in order of registration.
func (system *System) Start() error {
	return system.VisitEnginesE(func(engine Engine) error {
		if m, ok := engine.(Runnable); ok {
			return m.Start()
		}
		return nil
	})
}

// Shutdown shuts down all engines in the system, in reverse order of registration.
// All engines are shut down, even if one of them fails; the errors are joined.
func (system *System) Shutdown() error {
	var errs []error
	for i := len(system.engines) - 1; i >= 0; i-- {
		if m, ok := system.engines[i].(Runnable); ok {
			if err := m.Shutdown(); err != nil {
				errs = append(errs, fmt.Errorf("unable to shut down %s: %w", engineName(system.engines[i]), err))
			}
		}
	}
	return errors.Join(errs...)
}

// VisitEngines applies the given function on all engines in the system.
func (system *System) VisitEngines(visitor func(engine Engine)) {
	_ = system.VisitEnginesE(func(engine Engine) error {
		visitor(engine)
		return nil
	})
}

// VisitEnginesE applies the given function on all engines in the system, stopping when an error is returned.
// The error is passed through.
func (system *System) VisitEnginesE(visitor func(engine Engine) error) error {
	for _, e := range system.engines {
		if err := visitor(e); err != nil {
			return err
		}
	}
	return nil
}

// RegisterEngine adds an engine to the system.
func (system *System) RegisterEngine(engine Engine) {
	system.engines = append(system.engines, engine)
}

// RegisterRoutes registers an API implementation. Its routes are bound when the server starts.
func (system *System) RegisterRoutes(router Routable) {
	system.Routers = append(system.Routers, router)
}

// FindEngineByName returns the named engine with the given name, or nil if it isn't registered.
func (system *System) FindEngineByName(name string) Engine {
	for _, engine := range system.engines {
		if n, ok := engine.(Named); ok && n.Name() == name {
			return engine
		}
	}
	return nil
}

func engineName(engine Engine) string {
	if n, ok := engine.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", engine)
}
