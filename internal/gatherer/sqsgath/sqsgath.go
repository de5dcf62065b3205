package sqsgath

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/programme-lv/tmjob/api"
)

// Sender is the part of *sqs.Client the gatherer uses
type Sender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

var _ Sender = (*sqs.Client)(nil)

const sendTimeout = 10 * time.Second

type sqsResQueueGatherer struct {
	sqsClient Sender
	queueUrl  string
	jobUuid   string
	logger    *slog.Logger
}

func New(client Sender, jobUuid string, responseSqsUrl string) *sqsResQueueGatherer {
	return &sqsResQueueGatherer{
		sqsClient: client,
		queueUrl:  responseSqsUrl,
		jobUuid:   jobUuid,
		logger:    slog.Default().With("queue", responseSqsUrl),
	}
}

func (s *sqsResQueueGatherer) send(msg interface{}) {
	b, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("failed to marshal message", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	_, err = s.sqsClient.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueUrl),
		MessageBody: aws.String(string(b)),
	})
	if err != nil {
		s.logger.Error("failed to send message", "error", err)
	}
}

func (s *sqsResQueueGatherer) StartJob(systemInfo string) {
	s.send(api.NewStartJob(s.jobUuid, systemInfo))
}

func (s *sqsResQueueGatherer) StartStep(name string) {
	s.send(api.NewStartStep(s.jobUuid, name))
}

func (s *sqsResQueueGatherer) FinishStep(name string, data *api.RunData) {
	s.send(api.NewFinishStep(
		s.jobUuid,
		name,
		api.TrimRunData(data, api.MaxRuntimeDataHeight*2, api.MaxRuntimeDataWidth*2),
	))
}

func (s *sqsResQueueGatherer) SkipStep(name string, reason string) {
	s.send(api.NewSkipStep(s.jobUuid, name, reason))
}

func (s *sqsResQueueGatherer) FinishJob(errIfAny error) {
	var msg *string
	if errIfAny != nil {
		m := errIfAny.Error()
		msg = &m
	}
	s.send(api.NewFinishJob(s.jobUuid, msg))
}
