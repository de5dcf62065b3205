package slurm

import (
	"fmt"
	"strings"

	"github.com/programme-lv/tmjob/api"
	"github.com/programme-lv/tmjob/internal/toolchain"
)

// Script renders the batch script equivalent of a job. The output depends
// only on the job, so resubmitting the same job requests the same resources.
func Script(job api.JobReq) (string, error) {
	d := Directives(job.Directives)
	if err := d.Validate(); err != nil {
		return "", err
	}
	if err := toolchain.Validate(job.Toolchain); err != nil {
		return "", fmt.Errorf("invalid toolchain: %w", err)
	}

	var b strings.Builder
	b.WriteString("#!/bin/bash\n")
	for _, line := range d.Lines() {
		b.WriteString(line + "\n")
	}
	b.WriteString("\n")

	if prelude := toolchain.Prelude(job.Toolchain); prelude != "" {
		b.WriteString(prelude + "\n")
	}
	for _, line := range toolchain.Exports(job.Toolchain) {
		b.WriteString(line + "\n")
	}
	if job.StopOnFailure {
		b.WriteString("set -e\n")
	}
	b.WriteString("\n")

	for _, step := range job.Steps {
		b.WriteString(StepLine(step) + "\n")
	}
	return b.String(), nil
}

// StepLine renders one step as a shell command with its redirections.
func StepLine(step api.Step) string {
	line := step.Command
	if step.Stdin != nil {
		line += " < " + toolchain.Quote(*step.Stdin)
	}
	if step.Stdout != nil {
		line += " > " + toolchain.Quote(*step.Stdout)
	}
	return line
}
