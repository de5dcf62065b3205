package runner

import (
	"context"
	"io"
	"os/exec"
	"syscall"
	"time"

	"github.com/programme-lv/tmjob/api"
)

// Process is a single step program started through bash.
type Process struct {
	cmd     *exec.Cmd
	stderr  *tailBuffer
	started bool
	startAt time.Time
}

func newProcess(
	ctx context.Context,
	shell string,
	script string,
	dir string,
	env []string,
	stdin io.Reader,
	stdout io.Writer,
	stderr io.Writer,
	killGrace time.Duration,
) *Process {
	tail := newTailBuffer(stderrTailBytes)
	cmd := exec.CommandContext(ctx, shell, "-c", script)
	cmd.Dir = dir
	cmd.Env = env
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	if stderr != nil {
		cmd.Stderr = io.MultiWriter(stderr, tail)
	} else {
		cmd.Stderr = tail
	}
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = killGrace
	return &Process{cmd: cmd, stderr: tail}
}

func (process *Process) Start() error {
	if process.started {
		panic("process should not be started twice")
	}
	process.started = true
	process.startAt = time.Now()
	return process.cmd.Start()
}

// Wait waits for the program to exit. A non-zero exit is not an error; it
// is reported in the returned data.
func (process *Process) Wait() (*api.RunData, error) {
	if !process.started {
		panic("process should be started before waiting")
	}

	err := process.cmd.Wait()
	wall := time.Since(process.startAt)
	// Exit errors, cancellation and wait-delay overruns all leave a
	// ProcessState behind; only failures to wait at all do not.
	state := process.cmd.ProcessState
	if state == nil {
		return nil, err
	}
	data := &api.RunData{
		Stderr:     process.stderr.String(),
		ExitCode:   int64(state.ExitCode()),
		CpuMillis:  (state.UserTime() + state.SystemTime()).Milliseconds(),
		WallMillis: wall.Milliseconds(),
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		sig := int64(ws.Signal())
		data.ExitSignal = &sig
	}
	return data, nil
}
