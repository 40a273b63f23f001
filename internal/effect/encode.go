package effect

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/dygy/gape-select/internal/errors"
)

// Output is the encoded tuple [tag, p1, p2, p3]. Unused slots stay 0.
type Output [4]uint8

// Effect returns the tag byte as an Effect
func (o Output) Effect() Effect {
	return Effect(o[0])
}

// Args formats the tuple as command line arguments
func (o Output) Args() []string {
	args := make([]string, len(o))
	for i, v := range o {
		args[i] = strconv.Itoa(int(v))
	}
	return args
}

// Bytes returns the raw tuple for byte-oriented links
func (o Output) Bytes() []byte {
	return []byte{o[0], o[1], o[2], o[3]}
}

func (o Output) String() string {
	return "[" + strings.Join(o.Args(), ", ") + "]"
}

// Request is everything the encoder needs: the selected effect, an optional
// preset and the raw text of any hand-entered fields.
type Request struct {
	Effect Effect
	Preset string
	fields map[string]string
}

// fieldAliases maps alternate form names onto canonical field names
var fieldAliases = map[string]string{
	"time":      FieldDelayTime,
	"delay":     FieldDelayTime,
	"low_band":  FieldLow,
	"mid_band":  FieldMid,
	"high_band": FieldHigh,
}

// NewRequest builds a Request. The fields map is copied; blank values are
// dropped so they fall back to the preset.
func NewRequest(e Effect, preset string, fields map[string]string) Request {
	copied := make(map[string]string, len(fields))
	for k, v := range fields {
		if strings.TrimSpace(v) == "" {
			continue
		}
		copied[normalizeFieldName(k)] = v
	}
	return Request{
		Effect: e,
		Preset: strings.TrimSpace(preset),
		fields: copied,
	}
}

// Field returns the raw text entered for a field
func (r Request) Field(name string) (string, bool) {
	v, ok := r.fields[normalizeFieldName(name)]
	return v, ok
}

// Fields returns a copy of the raw field text
func (r Request) Fields() map[string]string {
	out := make(map[string]string, len(r.fields))
	for k, v := range r.fields {
		out[k] = v
	}
	return out
}

func normalizeFieldName(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.ReplaceAll(key, "-", "_")
	if canonical, ok := fieldAliases[key]; ok {
		return canonical
	}
	return key
}

// Encode validates req against the built-in presets and bounds
func Encode(req Request) (Output, error) {
	return DefaultCatalog().Encode(req)
}

// Encode validates req and encodes it. On error the zero Output is returned.
func (c *Catalog) Encode(req Request) (Output, error) {
	_, out, err := c.Resolve(req)
	return out, err
}

// Resolve is Encode that also reports the preset the request selected.
// The preset is zero when none was named.
func (c *Catalog) Resolve(req Request) (Preset, Output, error) {
	if !req.Effect.Valid() {
		return Preset{}, Output{}, apperrors.NewValidationError("effect", strconv.Itoa(int(req.Effect)), "unknown effect")
	}

	var preset Preset
	if req.Preset != "" {
		p, ok := c.Lookup(req.Effect, req.Preset)
		if !ok {
			return Preset{}, Output{}, apperrors.NewValidationError("preset", req.Preset,
				fmt.Sprintf("no such preset for %s", req.Effect))
		}
		preset = p
	}

	out := Output{uint8(req.Effect)}
	for _, f := range req.Effect.Fields() {
		raw, ok := req.Field(f.Name)
		if !ok {
			raw, ok = preset.Values[f.Name]
		}
		if !ok {
			return Preset{}, Output{}, apperrors.NewValidationError(f.Name, "", "required")
		}

		v, err := f.Parse(raw)
		if err != nil {
			return Preset{}, Output{}, err
		}
		out[f.Slot] = f.Encode(v)
	}

	return preset, out, nil
}
