// Package runner executes the steps of a job one after another, the way the
// batch script does: stdin and stdout redirected to files in the job
// directory, exit codes recorded but not acted upon.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/programme-lv/tmjob/api"
	"github.com/programme-lv/tmjob/internal/archive"
	"github.com/programme-lv/tmjob/internal/gatherer"
	"github.com/programme-lv/tmjob/internal/gatherer/multigath"
	"github.com/programme-lv/tmjob/internal/gatherer/respbuilder"
	"github.com/programme-lv/tmjob/internal/toolchain"
)

const (
	DefaultShell     = "bash"
	DefaultKillGrace = 30 * time.Second
)

var ErrNoSteps = errors.New("job has no steps")

type Runner struct {
	// Dir is the job directory, used as the working directory of every step
	Dir string

	// Stdout receives the output of steps without a stdout file
	Stdout io.Writer
	// Stderr receives the error output of every step
	Stderr io.Writer

	// BaseEnv is the environment the toolchain variables are merged into
	BaseEnv []string

	Shell     string
	KillGrace time.Duration

	logger *slog.Logger
}

func New(dir string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		Dir:       dir,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		BaseEnv:   os.Environ(),
		Shell:     DefaultShell,
		KillGrace: DefaultKillGrace,
		logger:    logger,
	}
}

// Run executes the job's steps in order. Each step starts only after the
// previous one exited. The returned error is non-nil only when the job could
// not be run as a whole or was interrupted; failed steps are reported in the
// result.
func (r *Runner) Run(ctx context.Context, job api.JobReq, gath gatherer.Gatherer) (*api.JobResult, error) {
	builder := respbuilder.New(job.JobUuid)
	gath = multigath.New(builder, gath)
	logger := r.logger.With("job", job.JobUuid)

	if err := r.check(job); err != nil {
		gath.FinishJob(err)
		return builder.Result(), err
	}

	env := toolchain.Merge(r.BaseEnv, job.Toolchain)
	gath.StartJob(systemInfo())

	var runErr error
	for i, step := range job.Steps {
		if err := ctx.Err(); err != nil {
			runErr = err
			skipRest(gath, job.Steps[i:], "interrupted")
			break
		}

		gath.StartStep(step.Name)
		logger.Info("starting step", "step", step.Name, "cmd", step.Command)
		data, err := r.runStep(ctx, job.Toolchain, env, step)
		if err != nil {
			runErr = fmt.Errorf("failed to run step %s: %w", step.Name, err)
			msg := runErr.Error()
			gath.FinishStep(step.Name, &api.RunData{Command: step.Command, ExitCode: 1, StartError: &msg})
			skipRest(gath, job.Steps[i+1:], "internal error")
			break
		}
		gath.FinishStep(step.Name, data)
		logger.Info("finished step", "step", step.Name, "exit", data.ExitCode, "wall_ms", data.WallMillis)

		if ctx.Err() != nil {
			runErr = ctx.Err()
			skipRest(gath, job.Steps[i+1:], "interrupted")
			break
		}
		if job.StopOnFailure && !data.Ok() {
			skipRest(gath, job.Steps[i+1:], fmt.Sprintf("step %s failed", step.Name))
			break
		}
	}

	if runErr == nil && job.ArchiveLogs {
		runErr = r.archiveLogs(job.Steps, logger)
	}

	gath.FinishJob(runErr)
	return builder.Result(), runErr
}

// check rejects jobs that cannot be started at all.
func (r *Runner) check(job api.JobReq) error {
	if len(job.Steps) == 0 {
		return ErrNoSteps
	}
	if err := toolchain.Validate(job.Toolchain); err != nil {
		return fmt.Errorf("invalid toolchain: %w", err)
	}
	st, err := os.Stat(r.Dir)
	if err != nil {
		return fmt.Errorf("failed to access job directory: %w", err)
	}
	if !st.IsDir() {
		return fmt.Errorf("job directory %s is not a directory", r.Dir)
	}
	return nil
}

// runStep returns an error only for failures outside the program itself.
func (r *Runner) runStep(ctx context.Context, tc api.Toolchain, env []string, step api.Step) (*api.RunData, error) {
	var stdin io.Reader
	if step.Stdin != nil {
		f, err := os.Open(r.path(*step.Stdin))
		if err != nil {
			msg := err.Error()
			return &api.RunData{Command: step.Command, ExitCode: 1, StartError: &msg}, nil
		}
		defer f.Close()
		stdin = f
	}

	var stdout io.Writer = r.Stdout
	if step.Stdout != nil {
		f, err := os.Create(r.path(*step.Stdout))
		if err != nil {
			msg := err.Error()
			return &api.RunData{Command: step.Command, ExitCode: 1, StartError: &msg}, nil
		}
		defer f.Close()
		stdout = f
	}

	process := newProcess(ctx, r.Shell, toolchain.Wrap(tc, step.Command),
		r.Dir, env, stdin, stdout, r.Stderr, r.KillGrace)
	if err := process.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", r.Shell, err)
	}
	data, err := process.Wait()
	if err != nil {
		return nil, fmt.Errorf("failed to wait for %s: %w", step.Command, err)
	}
	data.Command = step.Command
	return data, nil
}

func (r *Runner) archiveLogs(steps []api.Step, logger *slog.Logger) error {
	for _, step := range steps {
		if step.Stdout == nil {
			continue
		}
		path := r.path(*step.Stdout)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		dst, err := archive.CompressFile(path)
		if err != nil {
			return fmt.Errorf("failed to archive %s: %w", *step.Stdout, err)
		}
		logger.Debug("archived log", "log", dst)
	}
	return nil
}

func (r *Runner) path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(r.Dir, name)
}

func skipRest(gath gatherer.Gatherer, steps []api.Step, reason string) {
	for _, s := range steps {
		gath.SkipStep(s.Name, reason)
	}
}
