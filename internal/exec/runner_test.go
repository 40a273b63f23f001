package exec

import (
	"context"
	"errors"
	"os"
	osexec "os/exec"
	"strings"
	"testing"
	"time"

	apperrors "github.com/dygy/gape-select/internal/errors"
)

func TestRun(t *testing.T) {
	r := NewRunner(false)
	ctx := context.Background()

	t.Run("CapturesOutput", func(t *testing.T) {
		res, err := r.Run(ctx, "sh", "-c", "echo 1 255 128 0")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.TrimSpace(res.Stdout) != "1 255 128 0" {
			t.Errorf("stdout = %q", res.Stdout)
		}
	})

	t.Run("ReportsExitCode", func(t *testing.T) {
		res, err := r.Run(ctx, "sh", "-c", "echo could not initialize i2c >&2; exit 3")
		if err == nil {
			t.Fatal("expected error")
		}
		if res.ExitCode != 3 {
			t.Errorf("exit code = %d, want 3", res.ExitCode)
		}
		if !strings.Contains(res.Stderr, "i2c") {
			t.Errorf("stderr = %q", res.Stderr)
		}
	})
}

func TestStartStop(t *testing.T) {
	r := NewRunner(false)

	p, err := r.Start("sleep", "30")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !p.Running() {
		t.Fatal("process should be running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if p.Running() {
		t.Error("process should have exited")
	}
}

func TestStartExitsOnItsOwn(t *testing.T) {
	r := NewRunner(false)

	p, err := r.Start("sh", "-c", "echo done >&2")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}
	if p.Err() != nil {
		t.Errorf("unexpected exit error: %v", p.Err())
	}
	if strings.TrimSpace(p.Stderr()) != "done" {
		t.Errorf("stderr = %q", p.Stderr())
	}
}

func TestLookPath(t *testing.T) {
	r := NewRunner(false)
	if err := r.LookPath("sh"); err != nil {
		t.Errorf("sh should be found: %v", err)
	}
	err := r.LookPath("display_effect_missing_binary")
	if !errors.Is(err, apperrors.ErrToolNotInstalled) {
		t.Errorf("expected ErrToolNotInstalled, got %v", err)
	}
}

func TestTerminate(t *testing.T) {
	if _, err := os.Stat("/proc/self/cmdline"); err != nil {
		t.Skip("needs /proc")
	}
	r := NewRunner(false)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// started outside the runner, like a driver left behind by an earlier run
	cmd := osexec.Command("sh", "-c", "while true; do sleep 0.1; done")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	exited := make(chan struct{})
	go func() {
		cmd.Wait()
		close(exited)
	}()

	t.Run("LeavesOtherPrograms", func(t *testing.T) {
		if err := r.Terminate(ctx, cmd.Process.Pid, "./display_effect"); err != nil {
			t.Fatalf("terminate: %v", err)
		}
		select {
		case <-exited:
			t.Fatal("a pid running another program must not be signalled")
		case <-time.After(200 * time.Millisecond):
		}
	})

	t.Run("StopsMatchingProgram", func(t *testing.T) {
		if err := r.Terminate(ctx, cmd.Process.Pid, "/bin/sh"); err != nil {
			t.Fatalf("terminate: %v", err)
		}
		select {
		case <-exited:
		case <-time.After(time.Second):
			t.Fatal("process still running")
		}
	})

	t.Run("GoneIsNotAnError", func(t *testing.T) {
		if err := r.Terminate(ctx, cmd.Process.Pid, "sh"); err != nil {
			t.Errorf("terminate exited pid: %v", err)
		}
		if err := r.Terminate(ctx, 0, "sh"); err != nil {
			t.Errorf("terminate pid 0: %v", err)
		}
	})
}
