package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/nats-io/nats.go"
	"github.com/programme-lv/tmjob/internal/gatherer/termgath"
	"github.com/programme-lv/tmjob/internal/worker"
	"github.com/programme-lv/tmjob/internal/xdg"
	"github.com/urfave/cli/v3"
)

var errNoQueue = errors.New("TMJOB_JOB_QUEUE_URL is not set")

func (a *app) workerCommand() *cli.Command {
	return &cli.Command{
		Name:  "worker",
		Usage: "consume job requests from the SQS job queue",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if a.cfg.JobQueueUrl == "" {
				return errNoQueue
			}

			awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(a.cfg.AwsRegion))
			if err != nil {
				return fmt.Errorf("failed to load AWS config: %w", err)
			}

			store, err := a.newFileStore(ctx)
			if err != nil {
				return err
			}

			jobsDir := xdg.New().JobsDir()
			if a.cfg.StateDir != "" {
				jobsDir = filepath.Join(a.cfg.StateDir, "jobs")
			}

			w := worker.New(sqs.NewFromConfig(awsCfg), a.cfg.JobQueueUrl, store, jobsDir, a.logger)
			w.WaitTime = a.cfg.QueueWait
			w.Progress = termgath.New()

			if a.cfg.NatsUrl != "" {
				nc, err := nats.Connect(a.cfg.NatsUrl, nats.Name("tmjob worker"))
				if err != nil {
					return fmt.Errorf("failed to connect to NATS: %w", err)
				}
				defer nc.Drain()
				w.Nats = nc
			}

			return w.Run(ctx)
		},
	}
}
