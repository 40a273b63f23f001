package main

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/dygy/gape-select/internal/effect"
	apperrors "github.com/dygy/gape-select/internal/errors"
	"github.com/dygy/gape-select/internal/progress"
)

func TestBuildRequest(t *testing.T) {
	effectName, presetName = "comp", "coffee-shop"
	delayTime, gain, threshold, ratio = "", "", "", "4:1"
	lowBand, midBand, highBand = "", "", ""
	t.Cleanup(func() { effectName, presetName, ratio = "", "", "" })

	req, err := buildRequest()
	if err != nil {
		t.Fatalf("buildRequest: %v", err)
	}
	out, err := effect.DefaultCatalog().Encode(req)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if out != (effect.Output{2, 188, 4, 0}) {
		t.Errorf("output = %v", out)
	}

	effectName = "reverb"
	if _, err := buildRequest(); !errors.Is(err, apperrors.ErrInvalidParameter) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestFormatValues(t *testing.T) {
	got := formatValues(effect.Delay, map[string]string{"delay_time": "0.5s", "gain": "0.5"})
	if got != "delay_time=0.5s, gain=0.5" {
		t.Errorf("formatValues = %q", got)
	}
}

func TestReportFailure(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    string
		printed bool
	}{
		{"Validation", apperrors.NewValidationError("gain", "2", "must be between 0 and 1"), "", false},
		{"NoHistory", fmt.Errorf("resend: %w", apperrors.ErrNoHistory), "", false},
		{"MissingTool", fmt.Errorf("dispatch: %w", apperrors.NewProcessError("display_effect", "display", -1, "",
			fmt.Errorf("%w: ./display_effect", apperrors.ErrToolNotInstalled))), "display_effect is not installed", true},
		{"DriverFailed", apperrors.NewProcessError("send_effect", "control", 1, "gpio busy", errors.New("exit status 1")),
			"Nothing was recorded", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			cmd := &cobra.Command{}
			err := reportFailure(cmd, progress.NewReporter(&buf, false), tt.err)

			if err != tt.err {
				t.Errorf("error should be returned unchanged, got %v", err)
			}
			if cmd.SilenceErrors != tt.printed {
				t.Errorf("SilenceErrors = %v, want %v", cmd.SilenceErrors, tt.printed)
			}
			if !tt.printed {
				if buf.Len() != 0 {
					t.Errorf("unexpected output: %q", buf.String())
				}
				return
			}
			if !strings.Contains(buf.String(), "Error: ") || !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, buf.String())
			}
		})
	}
}
