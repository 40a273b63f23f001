package dispatch

import (
	"io"
	"log/slog"
	"path/filepath"

	"github.com/dygy/gape-select/internal/config"
	"github.com/dygy/gape-select/internal/exec"
)

// FromConfig builds a dispatcher with the sinks the config enables, in the
// order console, display, control, serial.
func FromConfig(cfg *config.Config, console io.Writer, logger *slog.Logger) *Dispatcher {
	runner := exec.NewRunner(cfg.Sudo)

	var sinks []Sink
	if cfg.Console && console != nil {
		sinks = append(sinks, NewConsoleSink(console))
	}
	if cfg.Display.Enabled {
		sinks = append(sinks, NewDisplaySink(cfg.Display.Command, runner, logger).TrackPID(pidFile(cfg, "display")))
	}
	if cfg.Control.Enabled {
		sinks = append(sinks, NewControlSink(cfg.Control.Command, runner, logger).TrackPID(pidFile(cfg, "control")))
	}
	if cfg.Serial.Enabled {
		sinks = append(sinks, NewSerialSink(cfg.Serial.Port, cfg.Serial.Baud, nil))
	}
	return New(logger, sinks...)
}

func pidFile(cfg *config.Config, name string) string {
	if cfg.RunDir == "" {
		return ""
	}
	return filepath.Join(cfg.RunDir, name+".pid")
}
