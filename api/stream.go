package api

import "time"

// MsgType is a message type for streaming responses
type MsgType string

// Streaming message type constants
const (
	StartJobMsg   MsgType = "job_start"
	StartStepMsg  MsgType = "step_start"
	FinishStepMsg MsgType = "step_finish"
	SkipStepMsg   MsgType = "step_skip"
	FinishJobMsg  MsgType = "job_finish"
)

// Runtime data size constraints for streaming
const (
	MaxRuntimeDataHeight = 40
	MaxRuntimeDataWidth  = 80
)

// Header is the common header for all streaming response messages
type Header struct {
	JobUuid string  `json:"job_uuid"`
	MsgType MsgType `json:"msg_type"`
}

// RunData contains execution information for one step
type RunData struct {
	Command  string `json:"cmd"`
	Stderr   string `json:"err"`
	ExitCode int64  `json:"exit"`

	CpuMillis  int64 `json:"cpu_ms"`
	WallMillis int64 `json:"wall_ms"`

	ExitSignal *int64 `json:"signal"`

	// Set when the program never started, e.g. a missing stdin file
	StartError *string `json:"start_error"`
}

// Ok reports whether the step started and exited with code zero.
func (d *RunData) Ok() bool {
	return d != nil && d.StartError == nil && d.ExitSignal == nil && d.ExitCode == 0
}

// StartJob message sent when the pipeline begins
type StartJob struct {
	Header
	SystemInfo  string `json:"system_info"`
	StartedTime string `json:"started_time"`
}

// StartStep message sent when a step begins
type StartStep struct {
	Header
	Step string `json:"step"`
}

// FinishStep message sent when a step completes
type FinishStep struct {
	Header
	Step        string   `json:"step"`
	RuntimeData *RunData `json:"runtime_data"`
}

// SkipStep message sent when a step is not run
type SkipStep struct {
	Header
	Step   string `json:"step"`
	Reason string `json:"reason"`
}

// FinishJob message sent when the pipeline completes
type FinishJob struct {
	Header
	ErrorMessage *string `json:"error_message"`
	FinishedTime string  `json:"finished_time"`
}

// Helper function to create a header
func NewHeader(jobUuid string, msgType MsgType) Header {
	return Header{
		JobUuid: jobUuid,
		MsgType: msgType,
	}
}

func NewStartJob(jobUuid, systemInfo string) StartJob {
	return StartJob{
		Header:      NewHeader(jobUuid, StartJobMsg),
		SystemInfo:  systemInfo,
		StartedTime: time.Now().Format(time.RFC3339),
	}
}

func NewStartStep(jobUuid, step string) StartStep {
	return StartStep{
		Header: NewHeader(jobUuid, StartStepMsg),
		Step:   step,
	}
}

func NewFinishStep(jobUuid, step string, runtimeData *RunData) FinishStep {
	return FinishStep{
		Header:      NewHeader(jobUuid, FinishStepMsg),
		Step:        step,
		RuntimeData: runtimeData,
	}
}

func NewSkipStep(jobUuid, step, reason string) SkipStep {
	return SkipStep{
		Header: NewHeader(jobUuid, SkipStepMsg),
		Step:   step,
		Reason: reason,
	}
}

func NewFinishJob(jobUuid string, errorMessage *string) FinishJob {
	return FinishJob{
		Header:       NewHeader(jobUuid, FinishJobMsg),
		ErrorMessage: errorMessage,
		FinishedTime: time.Now().Format(time.RFC3339),
	}
}
