package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	apperrors "github.com/dygy/gape-select/internal/errors"
)

const stopGrace = 2 * time.Second

// Result holds command execution output
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Runner executes external commands with context support
type Runner struct {
	// Sudo prefixes every command with sudo, as the display and GPIO drivers
	// need root on the Pi.
	Sudo     bool
	SudoPath string
}

// NewRunner creates a new command runner
func NewRunner(sudo bool) *Runner {
	return &Runner{
		Sudo:     sudo,
		SudoPath: "sudo",
	}
}

// Run executes a command to completion and captures its output
func (r *Runner) Run(ctx context.Context, name string, args ...string) (*Result, error) {
	start := time.Now()

	cmd := r.command(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
	}

	if err != nil {
		return result, fmt.Errorf("command %s failed: %w", name, err)
	}

	return result, nil
}

// Start launches a command in the background. The caller owns the returned
// Process and must Stop it.
func (r *Runner) Start(name string, args ...string) (*Process, error) {
	ctx, cancel := context.WithCancel(context.Background())

	cmd := r.command(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	// SIGTERM first so sudo forwards it to the driver
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = stopGrace

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start %s: %w", name, err)
	}

	p := &Process{
		Name:    name,
		Args:    args,
		Started: time.Now(),
		cmd:     cmd,
		cancel:  cancel,
		done:    make(chan struct{}),
		stderr:  &stderr,
	}
	go p.wait()
	return p, nil
}

// LookPath reports whether name can be executed
func (r *Runner) LookPath(name string) error {
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("%w: %s", apperrors.ErrToolNotInstalled, name)
	}
	return nil
}

// Terminate sends SIGTERM to pid, typically a driver started by an earlier
// run, and waits for it to exit. Under sudo the signal is sent with
// `sudo kill` since the target is owned by root. A pid that is gone, or
// that no longer runs name, is left alone.
func (r *Runner) Terminate(ctx context.Context, pid int, name string) error {
	if pid <= 0 || !alive(pid) || !runs(pid, name) {
		return nil
	}

	if r.Sudo {
		if _, err := r.Run(ctx, "kill", "-TERM", strconv.Itoa(pid)); err != nil && alive(pid) {
			return fmt.Errorf("terminate %d: %w", pid, err)
		}
	} else if err := syscall.Kill(pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("terminate %d: %w", pid, err)
	}

	deadline := time.NewTimer(stopGrace)
	defer deadline.Stop()
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for alive(pid) {
		select {
		case <-ctx.Done():
			return fmt.Errorf("terminate %d: %w", pid, ctx.Err())
		case <-deadline.C:
			return fmt.Errorf("terminate %d: still running after %s", pid, stopGrace)
		case <-ticker.C:
		}
	}
	return nil
}

// alive reports whether pid exists. EPERM means it exists but belongs to
// another user, e.g. a driver started under sudo.
func alive(pid int) bool {
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

// runs reports whether the command line of pid mentions name. Without /proc
// the check cannot be made and the pid is trusted.
func runs(pid int, name string) bool {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/cmdline", pid))
	if err != nil {
		_, statErr := os.Stat("/proc/self")
		return statErr != nil
	}
	base := filepath.Base(name)
	for _, arg := range strings.Split(string(data), "\x00") {
		if arg != "" && filepath.Base(arg) == base {
			return true
		}
	}
	return false
}

func (r *Runner) command(ctx context.Context, name string, args ...string) *exec.Cmd {
	if r.Sudo {
		return exec.CommandContext(ctx, r.SudoPath, append([]string{name}, args...)...)
	}
	return exec.CommandContext(ctx, name, args...)
}

// Process is a command running in the background
type Process struct {
	Name    string
	Args    []string
	Started time.Time

	cmd    *exec.Cmd
	cancel context.CancelFunc
	done   chan struct{}

	stderr *bytes.Buffer

	mu  sync.Mutex
	err error
}

func (p *Process) wait() {
	err := p.cmd.Wait()
	p.cancel()
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
	close(p.done)
}

// PID returns the operating system process id
func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// Running reports whether the process has not exited yet
func (p *Process) Running() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Done is closed when the process exits
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Err returns the exit error once the process has finished
func (p *Process) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Stderr waits for the process to exit and returns what it wrote to stderr
func (p *Process) Stderr() string {
	<-p.done
	return p.stderr.String()
}

// Stop kills the process and waits for it to exit or ctx to expire
func (p *Process) Stop(ctx context.Context) error {
	p.cancel()
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop %s: %w", p.Name, ctx.Err())
	}
}
