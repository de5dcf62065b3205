package natsgath

import (
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/programme-lv/tmjob/api"
)

// Publisher is the part of *nats.Conn the gatherer uses
type Publisher interface {
	Publish(subj string, data []byte) error
}

var _ Publisher = (*nats.Conn)(nil)

type natsGatherer struct {
	nc      Publisher
	subject string
	jobUuid string
	logger  *slog.Logger
}

// New creates a new NATS gatherer that streams progress to the given subject.
func New(nc Publisher, jobUuid string, subject string) *natsGatherer {
	return &natsGatherer{
		nc:      nc,
		subject: subject,
		jobUuid: jobUuid,
		logger:  slog.Default().With("subject", subject),
	}
}

func (s *natsGatherer) send(msg interface{}) {
	b, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("failed to marshal message", "error", err)
		return
	}

	if err := s.nc.Publish(s.subject, b); err != nil {
		s.logger.Error("failed to publish message to NATS", "error", err)
	}
}

func (s *natsGatherer) StartJob(systemInfo string) {
	s.send(api.NewStartJob(s.jobUuid, systemInfo))
}

func (s *natsGatherer) StartStep(name string) {
	s.send(api.NewStartStep(s.jobUuid, name))
}

func (s *natsGatherer) FinishStep(name string, data *api.RunData) {
	s.send(api.NewFinishStep(
		s.jobUuid,
		name,
		api.TrimRunData(data, api.MaxRuntimeDataHeight, api.MaxRuntimeDataWidth),
	))
}

func (s *natsGatherer) SkipStep(name string, reason string) {
	s.send(api.NewSkipStep(s.jobUuid, name, reason))
}

func (s *natsGatherer) FinishJob(errIfAny error) {
	var msg *string
	if errIfAny != nil {
		m := errIfAny.Error()
		msg = &m
	}
	s.send(api.NewFinishJob(s.jobUuid, msg))
}
