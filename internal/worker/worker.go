// Package worker consumes job requests from an SQS queue and runs them one
// at a time.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"
	"github.com/programme-lv/tmjob/api"
	"github.com/programme-lv/tmjob/internal/gatherer"
	"github.com/programme-lv/tmjob/internal/gatherer/multigath"
	"github.com/programme-lv/tmjob/internal/gatherer/natsgath"
	"github.com/programme-lv/tmjob/internal/gatherer/sqsgath"
	"github.com/programme-lv/tmjob/internal/jobfile"
	"github.com/programme-lv/tmjob/internal/runner"
	"github.com/programme-lv/tmjob/internal/slurm"
)

// Queue is the part of *sqs.Client the worker uses
type Queue interface {
	sqsgath.Sender
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

var _ Queue = (*sqs.Client)(nil)

const retryDelay = time.Second

type Worker struct {
	queue    Queue
	queueUrl string
	store    Fetcher
	jobsDir  string

	// WaitTime is the long-poll duration of one receive call
	WaitTime time.Duration
	// Progress receives the events of every job, e.g. a terminal gatherer
	Progress gatherer.Gatherer
	// Nats publishes progress of jobs that name a subject
	Nats natsgath.Publisher
	// Runner adjusts the runner of every job before it starts
	Runner func(*runner.Runner)

	logger *slog.Logger
}

func New(queue Queue, queueUrl string, store Fetcher, jobsDir string, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		queue:    queue,
		queueUrl: queueUrl,
		store:    store,
		jobsDir:  jobsDir,
		WaitTime: 20 * time.Second,
		logger:   logger.With("queue", queueUrl),
	}
}

// Run receives and handles messages until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.jobsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create jobs directory: %w", err)
	}
	w.logger.Info("worker started", "jobs_dir", w.jobsDir)

	for {
		if ctx.Err() != nil {
			return nil
		}
		output, err := w.queue.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(w.queueUrl),
			MaxNumberOfMessages: 1,
			WaitTimeSeconds:     int32(w.WaitTime / time.Second),
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Error("failed to receive messages", "error", err)
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		for _, msg := range output.Messages {
			if err := w.Handle(ctx, msg); err != nil {
				w.logger.Error("failed to handle message", "message_id", aws.ToString(msg.MessageId), "error", err)
			}
		}
	}
}

// Handle runs the job in one message. The message is deleted once the job
// has finished, whatever its outcome. Malformed messages and interrupted
// jobs stay on the queue.
func (w *Worker) Handle(ctx context.Context, msg types.Message) error {
	job, err := Decode([]byte(aws.ToString(msg.Body)))
	if err != nil {
		return err
	}

	logger := w.logger.With("job", job.JobUuid)
	gath := w.gatherer(job)

	dir := filepath.Join(w.jobsDir, job.JobUuid)
	d := slurm.Directives(job.Directives)
	err = d.Validate()
	if err == nil {
		err = os.MkdirAll(dir, 0o755)
	}
	if err == nil {
		err = StageInputs(ctx, dir, job.Inputs, w.store)
	}
	if err != nil {
		logger.Error("failed to prepare job", "error", err)
		gath.FinishJob(err)
	} else {
		r := runner.New(dir, logger)
		if w.Runner != nil {
			w.Runner(r)
		}
		res, runErr := r.Run(ctx, job, gath)
		if runErr != nil {
			logger.Error("job ended with error", "error", runErr)
		} else if res.Failed() {
			logger.Warn("job finished with failed steps")
		} else {
			logger.Info("job finished")
		}
	}

	if ctx.Err() != nil {
		return fmt.Errorf("job %s interrupted: %w", job.JobUuid, ctx.Err())
	}
	return w.delete(msg)
}

// Decode reads a queued job request. Fields the message leaves out keep the
// values of the stock script, as in a job file.
func Decode(body []byte) (api.JobReq, error) {
	job := jobfile.Default()
	fresh := job.JobUuid
	job.JobUuid = ""
	job.Steps = nil
	if err := json.Unmarshal(body, &job); err != nil {
		return api.JobReq{}, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	if job.JobUuid == "" {
		job.JobUuid = fresh
	} else if _, err := uuid.Parse(job.JobUuid); err != nil {
		return api.JobReq{}, fmt.Errorf("invalid job uuid %q: %w", job.JobUuid, err)
	}
	if len(job.Steps) == 0 {
		job.Steps = jobfile.DefaultSteps()
	}
	return job, nil
}

func (w *Worker) gatherer(job api.JobReq) gatherer.Gatherer {
	gs := []gatherer.Gatherer{w.Progress}
	if job.ResSqsUrl != nil {
		gs = append(gs, sqsgath.New(w.queue, job.JobUuid, *job.ResSqsUrl))
	}
	if job.ResNatsSubject != nil {
		if w.Nats == nil {
			w.logger.Warn("job asks for nats progress but no connection is configured", "job", job.JobUuid)
		} else {
			gs = append(gs, natsgath.New(w.Nats, job.JobUuid, *job.ResNatsSubject))
		}
	}
	return multigath.New(gs...)
}

func (w *Worker) delete(msg types.Message) error {
	// a finished job is acknowledged even when ctx is already done
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := w.queue.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(w.queueUrl),
		ReceiptHandle: msg.ReceiptHandle,
	})
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}
