// Package effect validates effect parameters and encodes them into the
// four-byte tuple consumed by the display driver and the signal-path controller.
package effect

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/dygy/gape-select/internal/errors"
)

// Effect is the tag byte identifying which effect's parameters follow
type Effect uint8

const (
	None       Effect = 0
	Delay      Effect = 1
	Compressor Effect = 2
	Equalizer  Effect = 3
)

var effectNames = map[Effect]string{
	Delay:      "delay",
	Compressor: "compressor",
	Equalizer:  "equalizer",
}

var effectAliases = map[string]Effect{
	"delay":      Delay,
	"compressor": Compressor,
	"comp":       Compressor,
	"equalizer":  Equalizer,
	"eq":         Equalizer,
}

// Effects returns every selectable effect in tag order
func Effects() []Effect {
	return []Effect{Delay, Compressor, Equalizer}
}

// ParseEffect accepts an effect name, a short alias or the tag digit
func ParseEffect(s string) (Effect, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if e, ok := effectAliases[key]; ok {
		return e, nil
	}
	if n, err := strconv.Atoi(key); err == nil && n > 0 && n < 256 && Effect(n).Valid() {
		return Effect(n), nil
	}
	return None, apperrors.NewValidationError("effect", s, "unknown effect (delay, compressor, equalizer)")
}

// Valid reports whether e is a selectable effect
func (e Effect) Valid() bool {
	_, ok := effectNames[e]
	return ok
}

func (e Effect) String() string {
	if name, ok := effectNames[e]; ok {
		return name
	}
	return fmt.Sprintf("effect(%d)", uint8(e))
}

// Fields returns the parameters the effect carries, in output slot order
func (e Effect) Fields() []Field {
	return effectFields[e]
}

// MarshalText encodes the effect by name
func (e Effect) MarshalText() ([]byte, error) {
	if !e.Valid() {
		return nil, fmt.Errorf("marshal %s: %w", e, apperrors.ErrInvalidParameter)
	}
	return []byte(e.String()), nil
}

// UnmarshalText accepts anything ParseEffect does
func (e *Effect) UnmarshalText(text []byte) error {
	parsed, err := ParseEffect(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}
