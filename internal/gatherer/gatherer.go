// Package gatherer defines the sink for job progress events. Implementations
// live in the subpackages: terminal output, NATS, SQS and a result builder.
package gatherer

import "github.com/programme-lv/tmjob/api"

//go:generate mockgen -source=gatherer.go -destination=mocks/mock_gatherer.go -package=mocks

type Gatherer interface {
	StartJob(systemInfo string)

	StartStep(name string)
	FinishStep(name string, data *api.RunData)
	SkipStep(name string, reason string)

	FinishJob(errIfAny error)
}

// Discard drops every event
type Discard struct{}

func (Discard) StartJob(string) {}
func (Discard) StartStep(string) {}
func (Discard) FinishStep(string, *api.RunData) {}
func (Discard) SkipStep(string, string) {}
func (Discard) FinishJob(error) {}
