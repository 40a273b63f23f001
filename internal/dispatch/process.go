package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	apperrors "github.com/dygy/gape-select/internal/errors"
	"github.com/dygy/gape-select/internal/exec"
)

// clearArg tells the display driver to blank the display and exit
const clearArg = "-1"

// ProcessSink keeps one long-running external program fed with the latest
// selection. Each Send stops the previous instance before starting a new one.
// With a pid file the previous instance may come from an earlier run of gape.
type ProcessSink struct {
	name      string
	command   string
	runner    *exec.Runner
	args      func(Selection) []string
	clearArgs []string
	pidFile   string
	logger    *slog.Logger

	mu      sync.Mutex
	current *exec.Process
}

// NewDisplaySink drives the 7-segment display: `command tag p1 p2 p3`.
// Clearing runs `command -1` once.
func NewDisplaySink(command string, runner *exec.Runner, logger *slog.Logger) *ProcessSink {
	return &ProcessSink{
		name:    "display",
		command: command,
		runner:  runner,
		args: func(sel Selection) []string {
			return sel.Output.Args()
		},
		clearArgs: []string{clearArg},
		logger:    orDefault(logger),
	}
}

// NewControlSink drives the signal-path control program: `command effect preset`
func NewControlSink(command string, runner *exec.Runner, logger *slog.Logger) *ProcessSink {
	return &ProcessSink{
		name:    "control",
		command: command,
		runner:  runner,
		args: func(sel Selection) []string {
			return []string{strconv.Itoa(int(sel.Output[0])), strconv.Itoa(sel.Preset)}
		},
		logger: orDefault(logger),
	}
}

// TrackPID records the running instance in path so that later runs can
// stop it. It returns s.
func (s *ProcessSink) TrackPID(path string) *ProcessSink {
	s.pidFile = path
	return s
}

func (s *ProcessSink) Name() string { return s.name }

// Check reports a ProcessError wrapping ErrToolNotInstalled when the
// command cannot be found
func (s *ProcessSink) Check() error {
	if err := s.runner.LookPath(s.command); err != nil {
		return apperrors.NewProcessError(s.tool(), "preflight", -1, "", err)
	}
	return nil
}

// Send replaces the running instance with one started for sel
func (s *ProcessSink) Send(ctx context.Context, sel Selection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.stop(ctx); err != nil {
		return err
	}

	args := s.args(sel)
	p, err := s.runner.Start(s.command, args...)
	if err != nil {
		if lookErr := s.runner.LookPath(s.command); lookErr != nil {
			err = lookErr
		}
		return apperrors.NewProcessError(s.tool(), s.name, -1, "", err)
	}
	s.current = p
	s.logger.Debug("process started", slog.String("sink", s.name), slog.String("command", s.command),
		slog.Any("args", args), slog.Int("pid", p.PID()))
	if err := s.writePID(p.PID()); err != nil {
		s.logger.Warn("pid not recorded", slog.String("sink", s.name), slog.Any("error", err))
	}

	go s.watch(p)
	return nil
}

// Clear stops the running instance and, for the display, blanks it
func (s *ProcessSink) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.stop(ctx); err != nil {
		return err
	}
	if s.clearArgs == nil {
		return nil
	}

	result, err := s.runner.Run(ctx, s.command, s.clearArgs...)
	if err != nil {
		exitCode, stderr := -1, ""
		if result != nil {
			exitCode, stderr = result.ExitCode, result.Stderr
		}
		return apperrors.NewProcessError(s.tool(), "clear", exitCode, stderr, err)
	}
	return nil
}

// Running reports whether an instance started by this sink is still alive
func (s *ProcessSink) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil && s.current.Running()
}

// stop ends the instance this sink started and then the one named in the
// pid file, which another gape process may have started
func (s *ProcessSink) stop(ctx context.Context) error {
	if p := s.current; p != nil {
		s.current = nil
		if p.Running() {
			if err := p.Stop(ctx); err != nil {
				return fmt.Errorf("stop previous %s: %w", s.name, err)
			}
		}
	}

	pid, err := s.readPID()
	if err != nil {
		s.logger.Warn("ignoring pid file", slog.String("path", s.pidFile), slog.Any("error", err))
	}
	if pid == 0 {
		return nil
	}
	if err := s.runner.Terminate(ctx, pid, s.command); err != nil {
		return fmt.Errorf("stop previous %s: %w", s.name, err)
	}
	s.logger.Debug("stopped earlier instance", slog.String("sink", s.name), slog.Int("pid", pid))
	if err := os.Remove(s.pidFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *ProcessSink) readPID() (int, error) {
	if s.pidFile == "" {
		return 0, nil
	}
	data, err := os.ReadFile(s.pidFile)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		os.Remove(s.pidFile)
		return 0, fmt.Errorf("parse %s: %w", s.pidFile, err)
	}
	return pid, nil
}

func (s *ProcessSink) writePID(pid int) error {
	if s.pidFile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.pidFile), 0755); err != nil {
		return err
	}
	return os.WriteFile(s.pidFile, []byte(strconv.Itoa(pid)+"\n"), 0644)
}

// watch logs instances that die on their own with an error
func (s *ProcessSink) watch(p *exec.Process) {
	<-p.Done()
	if err := p.Err(); err != nil && !s.stopped(p) {
		s.logger.Warn("process exited", slog.String("sink", s.name),
			slog.Any("error", err), slog.String("stderr", p.Stderr()))
	}
}

// stopped reports whether p was replaced or cleared by this sink
func (s *ProcessSink) stopped(p *exec.Process) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != p
}

func (s *ProcessSink) tool() string {
	return filepath.Base(s.command)
}

func orDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// ConsoleSink prints the encoded tuple, one per line
type ConsoleSink struct {
	w io.Writer
}

// NewConsoleSink creates a console sink writing to w
func NewConsoleSink(w io.Writer) *ConsoleSink {
	return &ConsoleSink{w: w}
}

func (c *ConsoleSink) Name() string { return "console" }

func (c *ConsoleSink) Send(ctx context.Context, sel Selection) error {
	_, err := fmt.Fprintln(c.w, sel.Output)
	return err
}

func (c *ConsoleSink) Clear(ctx context.Context) error { return nil }
