package effect

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	apperrors "github.com/dygy/gape-select/internal/errors"
)

// Preset is a named default parameter set. Values hold the same raw text a
// user would type, so presets go through the same parsing as form input.
type Preset struct {
	Number int               `json:"number" yaml:"number"`
	Name   string            `json:"name" yaml:"name"`
	Effect Effect            `json:"effect" yaml:"effect"`
	Values map[string]string `json:"values" yaml:"values"`
}

// Built-in presets. Numbers match the selection table of the control program.
var builtinPresets = []Preset{
	{1, "Large Room", Delay, map[string]string{FieldDelayTime: "0.5s", FieldGain: "0.5"}},
	{2, "Small Room", Delay, map[string]string{FieldDelayTime: "0.25s", FieldGain: "1"}},
	{3, "Coffee Shop", Compressor, map[string]string{FieldThreshold: "-12dB", FieldRatio: "2"}},
	{4, "Celestial Immolation", Compressor, map[string]string{FieldThreshold: "-2dB", FieldRatio: "9"}},
	{5, "Bass Boost", Equalizer, map[string]string{FieldLow: "10", FieldMid: "0", FieldHigh: "0"}},
	{6, "Mid Boost", Equalizer, map[string]string{FieldLow: "0", FieldMid: "10", FieldHigh: "0"}},
	{7, "High Boost", Equalizer, map[string]string{FieldLow: "0", FieldMid: "0", FieldHigh: "10"}},
}

// Catalog holds the presets offered for each effect.
// A Catalog is not modified after construction; build a new one to change it.
type Catalog struct {
	presets []Preset
}

var defaultCatalog = mustCatalog(builtinPresets...)

// DefaultCatalog returns the built-in presets
func DefaultCatalog() *Catalog {
	return defaultCatalog
}

// NewCatalog builds a catalog from presets, validating each one. Presets with
// Number 0 are numbered after the highest number seen so far.
func NewCatalog(presets ...Preset) (*Catalog, error) {
	c := &Catalog{}
	for _, p := range presets {
		if err := c.add(p); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Extend returns a new catalog holding c's presets followed by extra
func (c *Catalog) Extend(extra ...Preset) (*Catalog, error) {
	all := make([]Preset, 0, len(c.presets)+len(extra))
	all = append(all, c.presets...)
	all = append(all, extra...)
	return NewCatalog(all...)
}

func mustCatalog(presets ...Preset) *Catalog {
	c, err := NewCatalog(presets...)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) add(p Preset) error {
	if !p.Effect.Valid() {
		return fmt.Errorf("preset %q: %w", p.Name, apperrors.NewValidationError("effect", p.Effect.String(), "unknown effect"))
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("preset for %s: %w", p.Effect, apperrors.NewValidationError("preset", "", "name is required"))
	}

	maxNumber := 0
	for _, existing := range c.presets {
		if existing.Number > maxNumber {
			maxNumber = existing.Number
		}
		if existing.Number == p.Number && p.Number != 0 {
			return fmt.Errorf("preset %q: number %d already used by %q", p.Name, p.Number, existing.Name)
		}
		if existing.Effect == p.Effect && presetKey(existing.Name) == presetKey(p.Name) {
			return fmt.Errorf("preset %q: duplicate name for %s", p.Name, p.Effect)
		}
	}
	if p.Number < 0 {
		return fmt.Errorf("preset %q: %w", p.Name, apperrors.NewValidationError("preset", strconv.Itoa(p.Number), "number must be positive"))
	}
	if p.Number == 0 {
		p.Number = maxNumber + 1
	}

	values := make(map[string]string, len(p.Values))
	for k, v := range p.Values {
		values[normalizeFieldName(k)] = v
	}
	p.Values = values

	// Every preset must encode on its own
	for _, f := range p.Effect.Fields() {
		raw, ok := p.Values[f.Name]
		if !ok {
			return fmt.Errorf("preset %q: %w", p.Name, apperrors.NewValidationError(f.Name, "", "required"))
		}
		if _, err := f.Parse(raw); err != nil {
			return fmt.Errorf("preset %q: %w", p.Name, err)
		}
	}

	c.presets = append(c.presets, p)
	return nil
}

// All returns every preset ordered by number
func (c *Catalog) All() []Preset {
	out := make([]Preset, len(c.presets))
	copy(out, c.presets)
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// Presets returns the presets for one effect ordered by number
func (c *Catalog) Presets(e Effect) []Preset {
	var out []Preset
	for _, p := range c.All() {
		if p.Effect == e {
			out = append(out, p)
		}
	}
	return out
}

// Lookup finds a preset of effect e by name or by number
func (c *Catalog) Lookup(e Effect, ref string) (Preset, bool) {
	key := presetKey(ref)
	n, numErr := strconv.Atoi(strings.TrimSpace(ref))
	for _, p := range c.presets {
		if p.Effect != e {
			continue
		}
		if presetKey(p.Name) == key || (numErr == nil && p.Number == n) {
			return p, true
		}
	}
	return Preset{}, false
}

// presetKey folds case and treats spaces, underscores and hyphens alike
func presetKey(name string) string {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return r == ' ' || r == '_' || r == '-'
	})
	return strings.Join(fields, "-")
}
