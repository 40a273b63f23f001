package pipeline

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/dygy/gape-select/internal/dispatch"
	"github.com/dygy/gape-select/internal/effect"
	"github.com/dygy/gape-select/internal/history"
	"github.com/dygy/gape-select/internal/progress"
)

// Result describes a dispatched submission
type Result struct {
	Output effect.Output
	Preset effect.Preset
	Record *history.Record // nil when history is disabled
}

// Orchestrator runs a submission: validate and encode, dispatch, record
type Orchestrator struct {
	catalog    atomic.Pointer[effect.Catalog]
	dispatcher *dispatch.Dispatcher
	history    *history.Store
	progress   *progress.Reporter
}

// NewOrchestrator creates a new orchestrator. store may be nil to disable
// history; rep may be nil to run silently.
func NewOrchestrator(catalog *effect.Catalog, d *dispatch.Dispatcher, store *history.Store, rep *progress.Reporter) *Orchestrator {
	if catalog == nil {
		catalog = effect.DefaultCatalog()
	}
	if rep == nil {
		rep = progress.NewReporter(io.Discard, false)
	}
	o := &Orchestrator{
		dispatcher: d,
		history:    store,
		progress:   rep,
	}
	o.catalog.Store(catalog)
	return o
}

// Catalog returns the presets currently in use
func (o *Orchestrator) Catalog() *effect.Catalog {
	return o.catalog.Load()
}

// SetCatalog swaps the preset catalog, e.g. after a config reload
func (o *Orchestrator) SetCatalog(c *effect.Catalog) {
	o.catalog.Store(c)
}

// Encode validates and encodes req without dispatching it
func (o *Orchestrator) Encode(req effect.Request) (effect.Preset, effect.Output, error) {
	return o.Catalog().Resolve(req)
}

// Submit encodes req and forwards it downstream. Nothing is dispatched or
// recorded when validation fails.
func (o *Orchestrator) Submit(ctx context.Context, req effect.Request) (*Result, error) {
	o.progress.StartStage(progress.StageValidate)
	preset, out, err := o.Encode(req)
	if err != nil {
		return nil, err
	}
	if preset.Name != "" {
		o.progress.StageComplete("%s preset %q -> %s", req.Effect, preset.Name, out)
	} else {
		o.progress.StageComplete("%s -> %s", req.Effect, out)
	}

	rec := &history.Record{
		Effect:   req.Effect,
		Preset:   preset.Name,
		PresetNo: o.boardPreset(preset, out),
		Fields:   req.Fields(),
		Output:   out,
	}
	if err := o.dispatch(ctx, rec); err != nil {
		return nil, err
	}

	return &Result{Output: out, Preset: preset, Record: rec}, nil
}

// boardPreset is the preset number sent to the control program. Overrides
// that change the encoding make it 0, so the board does not load the stock
// values while the display shows different ones.
func (o *Orchestrator) boardPreset(preset effect.Preset, out effect.Output) int {
	if preset.Number == 0 {
		return 0
	}
	stock, err := o.Catalog().Encode(effect.NewRequest(preset.Effect, preset.Name, nil))
	if err != nil || stock != out {
		return 0
	}
	return preset.Number
}

// Resend dispatches the latest recorded submission again
func (o *Orchestrator) Resend(ctx context.Context) (*Result, error) {
	if o.history == nil {
		return nil, fmt.Errorf("resend: history is disabled")
	}
	latest, err := o.history.Latest()
	if err != nil {
		return nil, fmt.Errorf("resend: %w", err)
	}

	rec := &history.Record{
		Effect:   latest.Effect,
		Preset:   latest.Preset,
		PresetNo: latest.PresetNo,
		Fields:   latest.Fields,
		Output:   latest.Output,
	}
	if err := o.dispatch(ctx, rec); err != nil {
		return nil, err
	}

	return &Result{
		Output: rec.Output,
		Preset: effect.Preset{Number: rec.PresetNo, Name: rec.Preset, Effect: rec.Effect},
		Record: rec,
	}, nil
}

func (o *Orchestrator) dispatch(ctx context.Context, rec *history.Record) error {
	o.progress.StartStage(progress.StageDispatch)
	o.progress.Update("Sinks: %s", strings.Join(o.dispatcher.Sinks(), ", "))
	if err := o.dispatcher.Send(ctx, dispatch.Selection{Output: rec.Output, Preset: rec.PresetNo}); err != nil {
		return fmt.Errorf("dispatch %s: %w", rec.Output, err)
	}
	rec.Sinks = o.dispatcher.Sinks()
	o.progress.StageComplete("Sent to %d sink(s)", len(rec.Sinks))

	o.progress.StartStage(progress.StageRecord)
	if o.history == nil {
		o.progress.StageComplete("Skipped (history disabled)")
		return nil
	}
	if err := o.history.Save(rec); err != nil {
		o.progress.Warning("History save failed: %v", err)
		return nil
	}
	o.progress.StageComplete("Saved as version %d", rec.Version)
	return nil
}

// Clear blanks the display and stops the downstream programs
func (o *Orchestrator) Clear(ctx context.Context) error {
	return o.dispatcher.Clear(ctx)
}

// Close clears downstream if anything was submitted
func (o *Orchestrator) Close(ctx context.Context) error {
	return o.dispatcher.Close(ctx)
}
