package effect

import (
	"errors"
	"math"
	"strconv"
	"testing"

	apperrors "github.com/dygy/gape-select/internal/errors"
)

func TestEncodeDelay(t *testing.T) {
	t.Run("TimeScalesTo510", func(t *testing.T) {
		for _, tm := range []float64{0, 0.1, 0.25, 0.3, 0.333, 0.49, 0.5} {
			req := NewRequest(Delay, "", map[string]string{
				FieldDelayTime: strconv.FormatFloat(tm, 'f', -1, 64),
				FieldGain:      "0",
			})
			out, err := Encode(req)
			if err != nil {
				t.Fatalf("time %v: unexpected error: %v", tm, err)
			}
			want := uint8(math.Round(tm * 510))
			if out[1] != want {
				t.Errorf("time %v: p1 = %d, want %d", tm, out[1], want)
			}
		}
	})

	t.Run("GainScalesTo255", func(t *testing.T) {
		for _, g := range []float64{0, 0.2, 0.5, 0.75, 1} {
			req := NewRequest(Delay, "", map[string]string{
				FieldDelayTime: "0",
				FieldGain:      strconv.FormatFloat(g, 'f', -1, 64),
			})
			out, err := Encode(req)
			if err != nil {
				t.Fatalf("gain %v: unexpected error: %v", g, err)
			}
			want := uint8(math.Round(g * 255))
			if out[2] != want {
				t.Errorf("gain %v: p2 = %d, want %d", g, out[2], want)
			}
		}
	})

	t.Run("FullTuple", func(t *testing.T) {
		out, err := Encode(NewRequest(Delay, "", map[string]string{"time": "0.5", "gain": "0.5"}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := (Output{1, 255, 128, 0}); out != want {
			t.Errorf("got %v, want %v", out, want)
		}
	})
}

func TestEncodeCompressor(t *testing.T) {
	tests := []struct {
		threshold string
		ratio     string
		want      Output
		wantErr   string // failing field, empty when valid
	}{
		{"6", "2", Output{2, 206, 2, 0}, ""},
		{"-12", "2", Output{2, 188, 2, 0}, ""},
		{"-200", "1", Output{2, 0, 1, 0}, ""},
		{"0", "254", Output{2, 200, 254, 0}, ""},
		{"-12dB", "4:1", Output{2, 188, 4, 0}, ""},
		{"6.01", "2", Output{}, FieldThreshold},
		{"-200.5", "2", Output{}, FieldThreshold},
		{"0", "0", Output{}, FieldRatio},
		{"0", "255", Output{}, FieldRatio},
		{"0", "0.99", Output{}, FieldRatio},
	}

	for _, tt := range tests {
		t.Run(tt.threshold+"/"+tt.ratio, func(t *testing.T) {
			out, err := Encode(NewRequest(Compressor, "", map[string]string{
				FieldThreshold: tt.threshold,
				FieldRatio:     tt.ratio,
			}))
			if tt.wantErr != "" {
				assertValidation(t, err, tt.wantErr)
				if out != (Output{}) {
					t.Errorf("expected no output on error, got %v", out)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if out != tt.want {
				t.Errorf("got %v, want %v", out, tt.want)
			}
		})
	}
}

func TestEncodeEqualizer(t *testing.T) {
	t.Run("Flat", func(t *testing.T) {
		out, err := Encode(NewRequest(Equalizer, "", map[string]string{"low": "0", "mid": "0", "high": "0"}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := (Output{3, 10, 10, 10}); out != want {
			t.Errorf("got %v, want %v", out, want)
		}
	})

	t.Run("Extremes", func(t *testing.T) {
		out, err := Encode(NewRequest(Equalizer, "", map[string]string{"low": "-10", "mid": "10dB", "high": " 2.5 "}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := (Output{3, 0, 20, 13}); out != want {
			t.Errorf("got %v, want %v", out, want)
		}
	})

	t.Run("OutOfBound", func(t *testing.T) {
		for _, field := range []string{FieldLow, FieldMid, FieldHigh} {
			fields := map[string]string{"low": "0", "mid": "0", "high": "0"}
			fields[field] = "10.5"
			_, err := Encode(NewRequest(Equalizer, "", fields))
			assertValidation(t, err, field)
		}
	})
}

func TestEncodeRejectsNonNumeric(t *testing.T) {
	tests := []struct {
		effect Effect
		fields map[string]string
		field  string
	}{
		{Delay, map[string]string{"delay_time": "abc", "gain": "0.5"}, FieldDelayTime},
		{Delay, map[string]string{"delay_time": "0.2", "gain": "loud"}, FieldGain},
		{Delay, map[string]string{"delay_time": "500ms", "gain": "0.5"}, FieldDelayTime},
		{Compressor, map[string]string{"threshold": "NaN", "ratio": "2"}, FieldThreshold},
		{Compressor, map[string]string{"threshold": "0", "ratio": "Inf"}, FieldRatio},
		{Equalizer, map[string]string{"low": "0", "mid": "1e", "high": "0"}, FieldMid},
		{Delay, map[string]string{"delay_time": "0x1p-1", "gain": "0.5"}, FieldDelayTime},
		{Equalizer, map[string]string{"low": "0", "mid": "0", "high": "-0X1p0"}, FieldHigh},
	}

	for _, tt := range tests {
		t.Run(tt.field+"/"+tt.fields[tt.field], func(t *testing.T) {
			out, err := Encode(NewRequest(tt.effect, "", tt.fields))
			assertValidation(t, err, tt.field)
			if out != (Output{}) {
				t.Errorf("expected no output on error, got %v", out)
			}
		})
	}
}

func TestEncodeMissingField(t *testing.T) {
	_, err := Encode(NewRequest(Delay, "", map[string]string{"delay_time": "0.1", "gain": "   "}))
	assertValidation(t, err, FieldGain)
}

func TestEncodeUnknownEffect(t *testing.T) {
	_, err := Encode(NewRequest(Effect(9), "", nil))
	assertValidation(t, err, "effect")
}

func TestEncodePresets(t *testing.T) {
	tests := []struct {
		effect Effect
		preset string
		want   Output
	}{
		{Delay, "Large Room", Output{1, 255, 128, 0}},
		{Delay, "small-room", Output{1, 128, 255, 0}},
		{Compressor, "coffee_shop", Output{2, 188, 2, 0}},
		{Compressor, "4", Output{2, 198, 9, 0}},
		{Equalizer, "bass boost", Output{3, 20, 10, 10}},
		{Equalizer, "Mid Boost", Output{3, 10, 20, 10}},
		{Equalizer, "HIGH BOOST", Output{3, 10, 10, 20}},
	}

	for _, tt := range tests {
		t.Run(tt.preset, func(t *testing.T) {
			out, err := Encode(NewRequest(tt.effect, tt.preset, nil))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if out != tt.want {
				t.Errorf("got %v, want %v", out, tt.want)
			}
		})
	}

	t.Run("FieldOverridesPreset", func(t *testing.T) {
		out, err := Encode(NewRequest(Delay, "Large Room", map[string]string{"gain": "1"}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := (Output{1, 255, 255, 0}); out != want {
			t.Errorf("got %v, want %v", out, want)
		}
	})

	t.Run("PresetOfOtherEffect", func(t *testing.T) {
		_, err := Encode(NewRequest(Equalizer, "Large Room", nil))
		assertValidation(t, err, "preset")
	})
}

func TestOutputFormatting(t *testing.T) {
	out := Output{2, 188, 2, 0}
	if got := out.String(); got != "[2, 188, 2, 0]" {
		t.Errorf("String() = %q", got)
	}
	args := out.Args()
	if len(args) != 4 || args[0] != "2" || args[1] != "188" {
		t.Errorf("Args() = %v", args)
	}
	if out.Effect() != Compressor {
		t.Errorf("Effect() = %v", out.Effect())
	}
}

func TestRequestIsCopied(t *testing.T) {
	fields := map[string]string{"low": "1", "mid": "2", "high": "3"}
	req := NewRequest(Equalizer, "", fields)
	fields["low"] = "bogus"

	out, err := Encode(req)
	if err != nil {
		t.Fatalf("request should not see later map writes: %v", err)
	}
	if out[1] != 11 {
		t.Errorf("p1 = %d, want 11", out[1])
	}
}

func assertValidation(t *testing.T, err error, field string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected validation error for %s, got nil", field)
	}
	if !errors.Is(err, apperrors.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
	var verr *apperrors.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if verr.Field != field {
		t.Errorf("error field = %q, want %q (%v)", verr.Field, field, err)
	}
}
