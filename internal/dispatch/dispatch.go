// Package dispatch forwards an encoded effect selection to everything
// downstream of the form: the console, the 7-segment display driver, the
// signal-path control program and the UART link to the DSP board.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dygy/gape-select/internal/effect"
)

// Selection is what a sink receives for one submission
type Selection struct {
	Output effect.Output
	// Preset is the selected preset number, 0 for hand-entered values
	Preset int
}

// Sink is a downstream consumer of selections
type Sink interface {
	Name() string
	Send(ctx context.Context, sel Selection) error
	// Clear blanks whatever the sink shows and stops anything it started
	Clear(ctx context.Context) error
}

// Dispatcher fans a selection out to its sinks in order.
// It is safe for concurrent use.
type Dispatcher struct {
	sinks  []Sink
	logger *slog.Logger

	mu    sync.Mutex
	count int
}

// New creates a dispatcher over sinks
func New(logger *slog.Logger, sinks ...Sink) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		sinks:  sinks,
		logger: logger,
	}
}

// Send delivers sel to every sink. A failing sink does not stop the others;
// all failures are joined into the returned error.
func (d *Dispatcher) Send(ctx context.Context, sel Selection) error {
	if !sel.Output.Effect().Valid() {
		return fmt.Errorf("dispatch %v: tag does not name an effect", sel.Output)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.count++
	var errs []error
	for _, s := range d.sinks {
		if err := s.Send(ctx, sel); err != nil {
			d.logger.Error("sink failed", slog.String("sink", s.Name()), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		d.logger.Debug("sink updated", slog.String("sink", s.Name()), slog.String("output", sel.Output.String()))
	}
	return errors.Join(errs...)
}

// Clear blanks every sink
func (d *Dispatcher) Clear(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clear(ctx)
}

// Close clears the sinks if anything was sent through this dispatcher
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.count == 0 {
		return nil
	}
	return d.clear(ctx)
}

func (d *Dispatcher) clear(ctx context.Context) error {
	var errs []error
	for _, s := range d.sinks {
		if err := s.Clear(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Checker is implemented by sinks that can verify their setup up front
type Checker interface {
	Check() error
}

// Check runs the preflight of every sink that has one and joins the failures
func (d *Dispatcher) Check() error {
	var errs []error
	for _, s := range d.sinks {
		if c, ok := s.(Checker); ok {
			if err := c.Check(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// Count returns how many selections have been sent
func (d *Dispatcher) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count
}

// Sinks returns the sink names in dispatch order
func (d *Dispatcher) Sinks() []string {
	names := make([]string, len(d.sinks))
	for i, s := range d.sinks {
		names[i] = s.Name()
	}
	return names
}
