// Package subsystem runs the host's subsystems through their startup and
// shutdown phases in a fixed order.
package subsystem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/socialchef/beacon/internal/registry"
)

// Subsystem is a unit of host functionality with a two-phase startup.
// PreInitialise publishes services into the registry; PostInitialise may rely
// on everything published by every subsystem's PreInitialise.
type Subsystem interface {
	Name() string
	PreInitialise(reg *registry.Context) error
	PostInitialise(ctx context.Context, reg *registry.Context) error
	Shutdown(ctx context.Context) error
}

// Engine drives a fixed list of subsystems.
type Engine struct {
	reg        *registry.Context
	log        *slog.Logger
	subsystems []Subsystem
	started    []Subsystem
}

func NewEngine(reg *registry.Context, log *slog.Logger, subsystems ...Subsystem) *Engine {
	return &Engine{reg: reg, log: log, subsystems: subsystems}
}

// Start runs every PreInitialise, then every PostInitialise, in registration
// order. On failure the subsystems already started are shut down and the
// error is returned.
func (e *Engine) Start(ctx context.Context) error {
	for _, s := range e.subsystems {
		if err := s.PreInitialise(e.reg); err != nil {
			return e.abort(ctx, fmt.Errorf("%s: pre-initialise: %w", s.Name(), err))
		}
		e.started = append(e.started, s)
	}

	for _, s := range e.subsystems {
		if err := s.PostInitialise(ctx, e.reg); err != nil {
			return e.abort(ctx, fmt.Errorf("%s: post-initialise: %w", s.Name(), err))
		}
		e.log.Info("Subsystem initialised", "subsystem", s.Name())
	}
	return nil
}

// Shutdown stops started subsystems in reverse order and returns every error.
func (e *Engine) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(e.started) - 1; i >= 0; i-- {
		s := e.started[i]
		if err := s.Shutdown(ctx); err != nil {
			e.log.Error("Subsystem shutdown failed", "subsystem", s.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: shutdown: %w", s.Name(), err))
		}
	}
	e.started = nil
	return errors.Join(errs...)
}

// Registry returns the context shared by the engine's subsystems.
func (e *Engine) Registry() *registry.Context {
	return e.reg
}

func (e *Engine) abort(ctx context.Context, err error) error {
	if shutdownErr := e.Shutdown(ctx); shutdownErr != nil {
		return errors.Join(err, shutdownErr)
	}
	return err
}
