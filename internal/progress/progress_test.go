package progress

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/dygy/gape-select/internal/effect"
)

func TestReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf, false)

	r.StartStage(StageValidate)
	r.Update("hidden unless verbose")
	r.StageComplete("delay %s", "ok")
	r.Warning("serial port %s busy", "/dev/ttyUSB0")
	r.Error(errors.New("gain \"2\": must be between 0 and 1"))
	r.Done(effect.Output{1, 255, 128, 0})

	out := buf.String()
	for _, want := range []string{
		"[1/3] Validating parameters...",
		"      delay ok",
		"Warning: serial port /dev/ttyUSB0 busy",
		"Error: gain \"2\"",
		"Done! Effect [1, 255, 128, 0] submitted",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "hidden") {
		t.Error("Update should be silent when not verbose")
	}
}
