package stage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"panelcast/internal/logging"
)

// Driver launches an expanded invocation and reports its exit code. A non-nil
// error means the work did not complete successfully; exit code -1 means the
// process never ran to completion (launch failure or signal).
type Driver interface {
	Launch(ctx context.Context, inv Invocation, stderr io.Writer) (int, error)
}

// CommandDriver runs the invocation as a child process in its own process
// group. Cancelling ctx sends SIGTERM to the group and SIGKILL after
// KillGrace.
type CommandDriver struct {
	KillGrace time.Duration
	Logger    *slog.Logger
}

// Launch implements Driver.
func (d *CommandDriver) Launch(ctx context.Context, inv Invocation, stderr io.Writer) (int, error) {
	logger := d.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	cmd := exec.CommandContext(ctx, inv.Command, inv.Args...)
	cmd.Dir = inv.WorkDir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Stderr = stderr
	stdout := &lineLogger{logger: logger}
	cmd.Stdout = stdout

	var (
		mu       sync.Mutex
		escalate *time.Timer
	)
	cmd.Cancel = func() error {
		pid := cmd.Process.Pid
		logger.Warn("terminating stage process group",
			logging.String(logging.FieldEventType, "stage_cancel"),
			logging.Int("pgid", pid),
			logging.Duration("grace", d.KillGrace),
		)
		mu.Lock()
		escalate = time.AfterFunc(d.KillGrace, func() {
			_ = unix.Kill(-pid, unix.SIGKILL)
		})
		mu.Unlock()
		return unix.Kill(-pid, unix.SIGTERM)
	}
	cmd.WaitDelay = d.KillGrace + time.Second

	if err := cmd.Start(); err != nil {
		return -1, err
	}

	err := cmd.Wait()
	stdout.flush()
	mu.Lock()
	if escalate != nil {
		escalate.Stop()
	}
	mu.Unlock()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), err
	}
	return -1, err
}

// lineLogger logs child stdout one line at a time at debug level.
type lineLogger struct {
	logger  *slog.Logger
	pending []byte
}

func (l *lineLogger) Write(p []byte) (int, error) {
	l.pending = append(l.pending, p...)
	for {
		idx := bytes.IndexByte(l.pending, '\n')
		if idx < 0 {
			break
		}
		l.emit(l.pending[:idx])
		l.pending = l.pending[idx+1:]
	}
	return len(p), nil
}

func (l *lineLogger) flush() {
	if len(l.pending) > 0 {
		l.emit(l.pending)
		l.pending = nil
	}
}

func (l *lineLogger) emit(line []byte) {
	text := string(bytes.TrimRight(line, "\r"))
	if text == "" {
		return
	}
	l.logger.Debug("stage output", logging.String("line", text))
}
