package slurm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
)

type Submitter struct {
	sbatchPath string
	logger     *slog.Logger
}

func NewSubmitter(sbatchPath string, logger *slog.Logger) *Submitter {
	if sbatchPath == "" {
		sbatchPath = "sbatch"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{sbatchPath: sbatchPath, logger: logger}
}

// Submit hands the script to sbatch from workDir and returns the job id.
func (s *Submitter) Submit(ctx context.Context, scriptPath string, workDir string) (int64, error) {
	cmd := exec.CommandContext(ctx, s.sbatchPath, "--parsable", scriptPath)
	cmd.Dir = workDir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	s.logger.Debug("submitting batch script", "script", scriptPath, "dir", workDir)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return 0, fmt.Errorf("sbatch exited with code %d: %s", exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return 0, fmt.Errorf("failed to run sbatch: %w", err)
	}

	id, err := ParseJobID(string(out))
	if err != nil {
		return 0, err
	}
	s.logger.Info("submitted batch job", "job_id", id)
	return id, nil
}

// ParseJobID reads the output of "sbatch --parsable", which is
// "<id>" or "<id>;<cluster>".
func ParseJobID(out string) (int64, error) {
	out = strings.TrimSpace(out)
	if out == "" {
		return 0, fmt.Errorf("sbatch printed no job id")
	}
	lines := strings.Split(out, "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	idStr, _, _ := strings.Cut(last, ";")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse sbatch job id %q: %w", last, err)
	}
	return id, nil
}
