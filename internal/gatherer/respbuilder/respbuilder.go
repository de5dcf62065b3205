package respbuilder

import (
	"time"

	"github.com/programme-lv/tmjob/api"
)

// Builder gathers pipeline events and builds a complete api.JobResult.
type Builder struct {
	jobUuid    string
	systemInfo string

	started  time.Time
	finished *time.Time

	steps []api.StepResult

	errorMessage *string
}

func New(jobUuid string) *Builder {
	return &Builder{
		jobUuid: jobUuid,
		started: time.Now(),
	}
}

// StartJob implements gatherer.Gatherer.
func (b *Builder) StartJob(systemInfo string) {
	b.systemInfo = systemInfo
	b.started = time.Now()
}

// StartStep implements gatherer.Gatherer.
func (b *Builder) StartStep(name string) {}

// FinishStep implements gatherer.Gatherer.
func (b *Builder) FinishStep(name string, data *api.RunData) {
	sr := api.StepResult{Name: name, Status: api.StepOk}
	if data == nil {
		b.steps = append(b.steps, sr)
		return
	}
	if !data.Ok() {
		sr.Status = api.StepFailed
	}
	if data.StartError != nil {
		msg := *data.StartError
		sr.ErrorMessage = &msg
	} else {
		cpu := data.CpuMillis
		wall := data.WallMillis
		code := data.ExitCode
		sr.CpuMillis = &cpu
		sr.WallMillis = &wall
		sr.ExitCode = &code
		if data.ExitSignal != nil {
			sig := *data.ExitSignal
			sr.ExitSignal = &sig
		}
	}
	if len(data.Stderr) > 0 {
		stderr := data.Stderr
		sr.Stderr = &stderr
	}
	b.steps = append(b.steps, sr)
}

// SkipStep implements gatherer.Gatherer.
func (b *Builder) SkipStep(name string, reason string) {
	b.steps = append(b.steps, api.StepResult{
		Name:       name,
		Status:     api.StepSkipped,
		SkipReason: &reason,
	})
}

// FinishJob implements gatherer.Gatherer.
func (b *Builder) FinishJob(errIfAny error) {
	now := time.Now()
	b.finished = &now
	if errIfAny != nil {
		msg := errIfAny.Error()
		b.errorMessage = &msg
	}
}

// Result builds the api.JobResult from gathered data.
func (b *Builder) Result() *api.JobResult {
	start := b.started.Format(time.RFC3339)
	finish := start
	total := int64(0)
	if b.finished != nil {
		finish = b.finished.Format(time.RFC3339)
		total = b.finished.Sub(b.started).Milliseconds()
	}
	steps := make([]api.StepResult, len(b.steps))
	copy(steps, b.steps)
	return &api.JobResult{
		JobUuid: b.jobUuid,
		Steps:   steps,
		ErrorMessage: func() *string {
			if b.errorMessage == nil {
				return nil
			}
			v := *b.errorMessage
			return &v
		}(),
		StartTime:   start,
		FinishTime:  finish,
		TotalTimeMs: total,
		SystemInfo: func() *string {
			if b.systemInfo == "" {
				return nil
			}
			v := b.systemInfo
			return &v
		}(),
	}
}
