package api

// StepStatus is the outcome of a single pipeline step
type StepStatus string

const (
	StepOk      StepStatus = "ok"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// StepResult represents the result of a single step
type StepResult struct {
	Name   string     `json:"name"`
	Status StepStatus `json:"status"`

	// Resource usage (only if the program started)
	CpuMillis  *int64 `json:"cpu_ms,omitempty"`
	WallMillis *int64 `json:"wall_ms,omitempty"`

	// Exit information
	ExitCode   *int64 `json:"exit_code,omitempty"`
	ExitSignal *int64 `json:"exit_signal,omitempty"`

	// Error message if the program could not be started
	ErrorMessage *string `json:"error_message,omitempty"`
	SkipReason   *string `json:"skip_reason,omitempty"`

	// Stderr tail
	Stderr *string `json:"stderr,omitempty"`
}

// JobResult is a complete summary of one pipeline run
type JobResult struct {
	JobUuid string `json:"job_uuid"`

	Steps []StepResult `json:"steps"`

	// Overall error message (for internal errors)
	ErrorMessage *string `json:"error_message,omitempty"`

	StartTime   string `json:"start_time"`
	FinishTime  string `json:"finish_time"`
	TotalTimeMs int64  `json:"total_time_ms"`

	SystemInfo *string `json:"system_info,omitempty"`
}

// Failed reports whether any step failed or the job hit an internal error.
func (r *JobResult) Failed() bool {
	if r.ErrorMessage != nil {
		return true
	}
	for _, s := range r.Steps {
		if s.Status == StepFailed {
			return true
		}
	}
	return false
}
